package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// CallKind labels a recorded oracle call.
type CallKind string

const (
	CallNavigate CallKind = "navigate"
	CallExtract  CallKind = "extract"
	CallAction   CallKind = "action"
	CallEvidence CallKind = "evidence"
	CallComplete CallKind = "complete"
)

// Call is one recorded oracle invocation.
type Call struct {
	Kind        CallKind
	URL         string
	Instruction string
}

type extractRule struct {
	match string
	raw   map[string]any
	err   error
}

// Scripted is a deterministic in-memory oracle for tests. Extraction replies
// are configured as substring-matched rules; every call is recorded so tests
// can assert exactly which oracle traffic a workflow produced.
type Scripted struct {
	mu    sync.Mutex
	calls []Call

	extractRules []extractRule

	NavigateErr error
	ActionErr   error
	Evidence    []byte
	EvidenceErr error
	CompletionText string
	CompletionErr  error
}

// NewScripted returns an empty scripted oracle that captures a one-byte
// evidence image by default.
func NewScripted() *Scripted {
	return &Scripted{Evidence: []byte{0x89}}
}

// StubExtract registers a canned raw response for any extraction whose
// instruction contains match. Rules are consulted in registration order.
func (s *Scripted) StubExtract(match string, raw map[string]any) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extractRules = append(s.extractRules, extractRule{match: match, raw: raw})
	return s
}

// StubExtractErr registers an extraction failure for matching instructions.
func (s *Scripted) StubExtractErr(match string, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extractRules = append(s.extractRules, extractRule{match: match, err: err})
	return s
}

func (s *Scripted) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

// Calls returns a copy of all recorded calls in order.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsOfKind filters recorded calls by kind.
func (s *Scripted) CallsOfKind(kind CallKind) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// HasInstruction reports whether any recorded call instruction contains
// substr.
func (s *Scripted) HasInstruction(substr string) bool {
	for _, c := range s.Calls() {
		if strings.Contains(c.Instruction, substr) {
			return true
		}
	}
	return false
}

// Navigate implements Client.
func (s *Scripted) Navigate(ctx context.Context, url string) error {
	s.record(Call{Kind: CallNavigate, URL: url})
	if err := ctx.Err(); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if s.NavigateErr != nil {
		return &NavigationError{URL: url, Err: s.NavigateErr}
	}
	return nil
}

// ExtractFacts implements Client.
func (s *Scripted) ExtractFacts(ctx context.Context, instruction string, shape Schema) (FactRecord, error) {
	s.record(Call{Kind: CallExtract, Instruction: instruction})
	if err := ctx.Err(); err != nil {
		return nil, &ExtractionError{Instruction: instruction, Err: err}
	}

	s.mu.Lock()
	rules := append([]extractRule(nil), s.extractRules...)
	s.mu.Unlock()

	for _, rule := range rules {
		if !strings.Contains(instruction, rule.match) {
			continue
		}
		if rule.err != nil {
			return nil, &ExtractionError{Instruction: instruction, Err: rule.err}
		}
		facts, err := Conform(rule.raw, shape)
		if err != nil {
			return nil, &ExtractionError{Instruction: instruction, Err: err}
		}
		return facts, nil
	}
	return nil, &ExtractionError{
		Instruction: instruction,
		Err:         fmt.Errorf("no scripted response matches %q", instruction),
	}
}

// PerformAction implements Client.
func (s *Scripted) PerformAction(ctx context.Context, instruction string) error {
	s.record(Call{Kind: CallAction, Instruction: instruction})
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.ActionErr
}

// CaptureEvidence implements Client.
func (s *Scripted) CaptureEvidence(ctx context.Context) ([]byte, error) {
	s.record(Call{Kind: CallEvidence})
	if err := ctx.Err(); err != nil {
		return nil, &EvidenceError{Err: err}
	}
	if s.EvidenceErr != nil {
		return nil, &EvidenceError{Err: s.EvidenceErr}
	}
	if s.Evidence == nil {
		return nil, &EvidenceError{Err: errors.New("no evidence configured")}
	}
	return append([]byte(nil), s.Evidence...), nil
}

// Complete implements Completer.
func (s *Scripted) Complete(ctx context.Context, prompt string, image []byte) (string, error) {
	s.record(Call{Kind: CallComplete, Instruction: prompt})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.CompletionErr != nil {
		return "", s.CompletionErr
	}
	return s.CompletionText, nil
}
