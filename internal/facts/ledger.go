// Package facts keeps a deductive ledger of everything a removal run did:
// phase transitions, probe outcomes, issued actions, and attempt results.
// Base facts are pushed into a Mangle store as the workflow executes, and a
// small built-in rule set derives run-level conclusions (brokers that need
// operator attention, brokers worth retrying) that the CLI can surface.
package facts

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// Fact is one normalized event emitted by the workflow.
type Fact struct {
	Predicate string    `json:"predicate"`
	Args      []any     `json:"args"`
	Timestamp time.Time `json:"timestamp"`
}

// builtinRules derive run-level conclusions from the base facts the workflow
// emits. The base predicates must be declared up front because they arrive
// as facts at runtime, not as clauses. Confidence comparisons happen Go-side
// before emission, so the rules stay pure conjunctions.
const builtinRules = `
Decl attempt_failed(Broker).
Decl weak_diagnosis(Broker).
Decl learned_available(Broker).

needs_attention(Broker) :- attempt_failed(Broker), weak_diagnosis(Broker).
retry_candidate(Broker) :- attempt_failed(Broker), learned_available(Broker).
`

// Ledger wraps the Mangle store plus a temporal buffer indexed by predicate.
type Ledger struct {
	mu          sync.RWMutex
	programInfo *analysis.ProgramInfo
	store       factstore.FactStore

	facts []Fact
	index map[string][]int
}

// NewLedger parses the built-in rules and prepares an empty store.
func NewLedger() (*Ledger, error) {
	sourceUnit, err := parse.Unit(bytes.NewReader([]byte(builtinRules)))
	if err != nil {
		return nil, fmt.Errorf("parse built-in rules: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(sourceUnit, make(map[ast.PredicateSym]ast.Decl))
	if err != nil {
		return nil, fmt.Errorf("analyze built-in rules: %w", err)
	}

	return &Ledger{
		programInfo: programInfo,
		store:       factstore.NewSimpleInMemoryStore(),
		index:       make(map[string][]int),
	}, nil
}

// Record appends facts to the buffer and the Mangle store, then re-evaluates
// the rule program so derived predicates stay current.
func (l *Ledger) Record(facts ...Fact) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	base := len(l.facts)
	l.facts = append(l.facts, facts...)
	for i, f := range facts {
		l.index[f.Predicate] = append(l.index[f.Predicate], base+i)
		l.store.Add(factToAtom(f))
	}

	if err := engine.EvalProgram(l.programInfo, l.store); err != nil {
		return fmt.Errorf("eval rules: %w", err)
	}
	return nil
}

// ByPredicate returns recorded base facts for a predicate, in order.
func (l *Ledger) ByPredicate(predicate string) []Fact {
	l.mu.RLock()
	defer l.mu.RUnlock()

	indices := l.index[predicate]
	out := make([]Fact, 0, len(indices))
	for _, idx := range indices {
		out = append(out, l.facts[idx])
	}
	return out
}

// Derived returns the facts Mangle derived for a rule-head predicate.
func (l *Ledger) Derived(predicate string) ([]Fact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	arity := -1
	for sym := range l.programInfo.Decls {
		if sym.Symbol == predicate {
			arity = sym.Arity
			break
		}
	}

	var queryAtom ast.Atom
	if arity >= 0 {
		args := make([]ast.BaseTerm, arity)
		for i := range args {
			args[i] = ast.Variable{Symbol: fmt.Sprintf("V%d", i)}
		}
		queryAtom = ast.Atom{Predicate: ast.PredicateSym{Symbol: predicate, Arity: arity}, Args: args}
	} else {
		queryAtom = ast.Atom{Predicate: ast.PredicateSym{Symbol: predicate, Arity: arity}}
	}

	var out []Fact
	err := l.store.GetFacts(queryAtom, func(atom ast.Atom) error {
		out = append(out, atomToFact(atom))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get derived facts: %w", err)
	}
	return out, nil
}

// DerivedNames returns the first argument of every derived fact for a
// predicate, convenient for the name-keyed rules above.
func (l *Ledger) DerivedNames(predicate string) ([]string, error) {
	derived, err := l.Derived(predicate)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(derived))
	for _, f := range derived {
		if len(f.Args) > 0 {
			names = append(names, fmt.Sprintf("%v", f.Args[0]))
		}
	}
	return names, nil
}

func factToAtom(f Fact) ast.Atom {
	args := make([]ast.BaseTerm, len(f.Args))
	for i, arg := range f.Args {
		args[i] = toConstant(arg)
	}
	return ast.Atom{
		Predicate: ast.PredicateSym{Symbol: f.Predicate, Arity: len(f.Args)},
		Args:      args,
	}
}

func atomToFact(atom ast.Atom) Fact {
	args := make([]any, len(atom.Args))
	for i, arg := range atom.Args {
		args[i] = fromConstant(arg)
	}
	return Fact{Predicate: atom.Predicate.Symbol, Args: args, Timestamp: time.Now()}
}

func toConstant(v any) ast.Constant {
	switch val := v.(type) {
	case string:
		return ast.String(val)
	case int:
		return ast.Number(int64(val))
	case int64:
		return ast.Number(val)
	case float64:
		return ast.Float64(val)
	case bool:
		if val {
			return ast.String("true")
		}
		return ast.String("false")
	default:
		return ast.String(fmt.Sprintf("%v", v))
	}
}

func fromConstant(c ast.BaseTerm) any {
	switch term := c.(type) {
	case ast.Constant:
		switch term.Type {
		case ast.StringType:
			val, _ := term.StringValue()
			return val
		case ast.NumberType:
			return term.NumberValue
		case ast.Float64Type:
			if val, err := term.Float64Value(); err == nil {
				return val
			}
		}
		return term.String()
	case ast.Variable:
		return term.Symbol
	default:
		return fmt.Sprintf("%v", c)
	}
}
