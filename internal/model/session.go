// Package model defines the validated data shapes shared across the opt-out
// workflow: user profiles, broker definitions, attempt results, sessions, and
// analyzer outputs.
package model

import (
	"time"
)

// Confidence bounds for analyzer outputs. Zero means analysis itself failed;
// anything parsed successfully lands in [1,10].
const (
	ConfidenceFloor = 0
	ConfidenceCeil  = 10

	// ApplyConfidenceThreshold is the minimum diagnosis confidence that is
	// folded back into a broker's learned instructions.
	ApplyConfidenceThreshold = 6
)

// Diagnosis is the structured output of post-failure analysis. It is
// ephemeral: consumed immediately to update a broker's learned instructions
// when confident enough, otherwise discarded.
type Diagnosis struct {
	Problem             string   `json:"problem"`
	Fix                 string   `json:"fix"`
	NextSteps           []string `json:"next_steps,omitempty"`
	SpecialInstructions string   `json:"special_instructions,omitempty"`
	Confidence          int      `json:"confidence"`
}

// Actionable reports whether the diagnosis is confident enough to rewrite the
// broker's learned instructions.
func (d Diagnosis) Actionable() bool {
	return d.Confidence >= ApplyConfidenceThreshold
}

// PageStructuralAnalysis is the analyzer's advisory page breakdown. It is
// computed on demand and never fed back into the workflow automatically.
type PageStructuralAnalysis struct {
	Steps           []string `json:"steps,omitempty"`
	PageType        string   `json:"page_type"`
	RequiredFields  []string `json:"required_fields,omitempty"`
	RequiredActions []string `json:"required_actions,omitempty"`
	Confidence      int      `json:"confidence"`
}

// ClampConfidence forces a parsed confidence into the analyzer scale. Values
// below 1 clamp to 1 because reaching this point means parsing succeeded.
func ClampConfidence(v int) int {
	if v < 1 {
		return 1
	}
	if v > ConfidenceCeil {
		return ConfidenceCeil
	}
	return v
}

// RemovalAttemptResult records the outcome of one broker attempt. Created
// once per broker per run and never mutated after the workflow that produced
// it returns.
type RemovalAttemptResult struct {
	ID           string     `json:"id"`
	BrokerName   string     `json:"broker"`
	Success      bool       `json:"success"`
	Error        string     `json:"error,omitempty"`
	Details      string     `json:"details,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	EvidencePath string     `json:"evidence_path,omitempty"`
	Diagnosis    *Diagnosis `json:"diagnosis,omitempty"`
}

// RemovalSession is one end-to-end run: a user snapshot plus the ordered
// attempt results. It is persisted after every broker so a killed run loses
// at most the in-flight attempt.
type RemovalSession struct {
	ID        string                 `json:"id"`
	User      UserProfile            `json:"user"`
	Results   []RemovalAttemptResult `json:"results"`
	StartTime time.Time              `json:"start_time"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
}

// Tally summarizes attempt outcomes.
type Tally struct {
	Succeeded int
	Failed    int
}

// Tally counts successes and failures across the session so far.
func (s RemovalSession) Tally() Tally {
	var t Tally
	for _, r := range s.Results {
		if r.Success {
			t.Succeeded++
		} else {
			t.Failed++
		}
	}
	return t
}
