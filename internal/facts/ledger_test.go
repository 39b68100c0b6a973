package facts

import (
	"sort"
	"testing"
)

func TestNewLedgerAnalyzesRulesWithoutBaseFacts(t *testing.T) {
	// The rule bodies reference predicates that only ever arrive as runtime
	// facts. Analysis must accept them from the declarations alone, and
	// derivation over an empty store must yield nothing.
	ledger, err := NewLedger()
	if err != nil {
		t.Fatalf("NewLedger() error: %v", err)
	}

	for _, pred := range []string{PredNeedsAttention, PredRetryCandidate} {
		derived, err := ledger.DerivedNames(pred)
		if err != nil {
			t.Fatalf("DerivedNames(%s) error: %v", pred, err)
		}
		if len(derived) != 0 {
			t.Errorf("DerivedNames(%s) = %v, want empty before any facts", pred, derived)
		}
	}
}

func TestLedgerRecordAndQuery(t *testing.T) {
	ledger, err := NewLedger()
	if err != nil {
		t.Fatalf("NewLedger() error: %v", err)
	}

	err = ledger.Record(
		PhaseEntered("a1", "spokeo", "PageLoaded"),
		PhaseEntered("a1", "spokeo", "FillingForm"),
		ProbeResult("a1", "success_confirmation", "matched"),
	)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	phases := ledger.ByPredicate(PredPhaseEntered)
	if len(phases) != 2 {
		t.Fatalf("expected 2 phase_entered facts, got %d", len(phases))
	}
	if phases[0].Args[2] != "PageLoaded" || phases[1].Args[2] != "FillingForm" {
		t.Errorf("phase facts out of order: %v", phases)
	}

	probes := ledger.ByPredicate(PredProbeResult)
	if len(probes) != 1 {
		t.Fatalf("expected 1 probe_result fact, got %d", len(probes))
	}
}

func TestLedgerByPredicateEmpty(t *testing.T) {
	ledger, err := NewLedger()
	if err != nil {
		t.Fatalf("NewLedger() error: %v", err)
	}
	if got := ledger.ByPredicate("no_such_predicate"); len(got) != 0 {
		t.Errorf("expected no facts, got %v", got)
	}
}

func TestNeedsAttentionDerivation(t *testing.T) {
	ledger, err := NewLedger()
	if err != nil {
		t.Fatalf("NewLedger() error: %v", err)
	}

	// Failed with a weak diagnosis: needs attention.
	// Failed but with learned instructions: retry candidate, not attention.
	// Succeeded: neither.
	err = ledger.Record(
		AttemptResult("a1", "spokeo", false),
		AttemptFailed("spokeo"),
		WeakDiagnosis("spokeo"),
		AttemptResult("a2", "whitepages", false),
		AttemptFailed("whitepages"),
		LearnedAvailable("whitepages"),
		AttemptResult("a3", "beenverified", true),
	)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	attention, err := ledger.DerivedNames(PredNeedsAttention)
	if err != nil {
		t.Fatalf("DerivedNames(needs_attention) error: %v", err)
	}
	if len(attention) != 1 || attention[0] != "spokeo" {
		t.Errorf("needs_attention = %v, want [spokeo]", attention)
	}

	retries, err := ledger.DerivedNames(PredRetryCandidate)
	if err != nil {
		t.Fatalf("DerivedNames(retry_candidate) error: %v", err)
	}
	if len(retries) != 1 || retries[0] != "whitepages" {
		t.Errorf("retry_candidate = %v, want [whitepages]", retries)
	}
}

func TestDerivationUpdatesIncrementally(t *testing.T) {
	ledger, err := NewLedger()
	if err != nil {
		t.Fatalf("NewLedger() error: %v", err)
	}

	if err := ledger.Record(AttemptFailed("spokeo")); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	attention, err := ledger.DerivedNames(PredNeedsAttention)
	if err != nil {
		t.Fatalf("DerivedNames() error: %v", err)
	}
	if len(attention) != 0 {
		t.Fatalf("needs_attention before weak_diagnosis = %v, want empty", attention)
	}

	if err := ledger.Record(WeakDiagnosis("spokeo")); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	attention, err = ledger.DerivedNames(PredNeedsAttention)
	if err != nil {
		t.Fatalf("DerivedNames() error: %v", err)
	}
	if len(attention) != 1 || attention[0] != "spokeo" {
		t.Errorf("needs_attention = %v, want [spokeo]", attention)
	}
}

func TestDerivedNamesDeduplicated(t *testing.T) {
	ledger, err := NewLedger()
	if err != nil {
		t.Fatalf("NewLedger() error: %v", err)
	}

	// Recording the same base facts twice must not duplicate derivations;
	// the store is a set.
	for i := 0; i < 2; i++ {
		if err := ledger.Record(AttemptFailed("spokeo"), WeakDiagnosis("spokeo")); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}
	attention, err := ledger.DerivedNames(PredNeedsAttention)
	if err != nil {
		t.Fatalf("DerivedNames() error: %v", err)
	}
	sort.Strings(attention)
	if len(attention) != 1 {
		t.Errorf("needs_attention = %v, want single entry", attention)
	}
}
