package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/matt-meaningfulgigs/data-killer/internal/model"
	"github.com/matt-meaningfulgigs/data-killer/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testUser() model.UserProfile {
	return model.UserProfile{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.com",
		Street:      "12 Analytical Way",
		City:        "Austin",
		State:       "TX",
		Zip:         "78701",
		Phone:       "512-555-0100",
		DateOfBirth: "1985-12-10",
	}
}

func brokers(names ...string) []model.BrokerDefinition {
	out := make([]model.BrokerDefinition, 0, len(names))
	for _, n := range names {
		out = append(out, model.BrokerDefinition{
			Name:      n,
			URL:       "https://" + n + ".example.com",
			OptOutURL: "https://" + n + ".example.com/optout",
		})
	}
	return out
}

// scriptedRunner returns canned results per broker and can panic on demand.
type scriptedRunner struct {
	succeed  map[string]bool
	panicOn  string
	ran      []string
	snapshot func()
}

func (r *scriptedRunner) Run(ctx context.Context, broker model.BrokerDefinition, user model.UserProfile) model.RemovalAttemptResult {
	r.ran = append(r.ran, broker.Name)
	if r.snapshot != nil {
		defer r.snapshot()
	}
	if broker.Name == r.panicOn {
		panic("boom: " + broker.Name)
	}
	return model.RemovalAttemptResult{
		ID:         broker.Name + "-attempt",
		BrokerName: broker.Name,
		Success:    r.succeed[broker.Name],
	}
}

func newSessionStore(t *testing.T) *store.SessionStore {
	t.Helper()
	return store.NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
}

func TestRunProcessesBrokersInOrder(t *testing.T) {
	runner := &scriptedRunner{succeed: map[string]bool{"alpha": true, "beta": false, "gamma": true}}
	sessions := newSessionStore(t)
	o := NewOrchestrator(runner, sessions, discardLogger())

	session, err := o.Run(context.Background(), testUser(), brokers("alpha", "beta", "gamma"))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{"alpha", "beta", "gamma"}
	if len(runner.ran) != len(want) {
		t.Fatalf("ran %v, want %v", runner.ran, want)
	}
	for i, n := range want {
		if runner.ran[i] != n {
			t.Errorf("ran[%d] = %q, want %q", i, runner.ran[i], n)
		}
		if session.Results[i].BrokerName != n {
			t.Errorf("Results[%d] = %q, want %q", i, session.Results[i].BrokerName, n)
		}
	}

	tally := session.Tally()
	if tally.Succeeded != 2 || tally.Failed != 1 {
		t.Errorf("tally = %+v, want 2/1", tally)
	}
	if session.EndTime == nil {
		t.Error("EndTime not set")
	}

	persisted, err := sessions.Load()
	if err != nil {
		t.Fatalf("load persisted session: %v", err)
	}
	if len(persisted.Results) != 3 {
		t.Errorf("persisted results = %d, want 3", len(persisted.Results))
	}
}

func TestSnapshotAfterEveryBroker(t *testing.T) {
	sessions := newSessionStore(t)

	var counts []int
	runner := &scriptedRunner{succeed: map[string]bool{}}
	runner.snapshot = func() {
		// Observed as each attempt finishes, before the orchestrator
		// persists it: only the previous brokers are on disk.
		s, err := sessions.Load()
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			t.Errorf("load mid-run: %v", err)
			return
		}
		counts = append(counts, len(s.Results))
	}

	o := NewOrchestrator(runner, sessions, discardLogger())
	if _, err := o.Run(context.Background(), testUser(), brokers("a", "b", "c")); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// At broker k, exactly k-1 results were persisted.
	want := []int{0, 1, 2}
	for i, c := range counts {
		if c != want[i] {
			t.Errorf("persisted results before broker %d = %d, want %d", i+1, c, want[i])
		}
	}
}

func TestPanicDoesNotStopTheRun(t *testing.T) {
	runner := &scriptedRunner{
		succeed: map[string]bool{"alpha": true, "gamma": true},
		panicOn: "beta",
	}
	o := NewOrchestrator(runner, newSessionStore(t), discardLogger())

	session, err := o.Run(context.Background(), testUser(), brokers("alpha", "beta", "gamma"))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(session.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(session.Results))
	}

	failed := session.Results[1]
	if failed.Success {
		t.Error("panicked attempt must record failure")
	}
	if failed.BrokerName != "beta" || failed.Error == "" {
		t.Errorf("panicked result = %+v, want beta failure with error text", failed)
	}
	if !session.Results[2].Success {
		t.Error("run must continue past a panicked broker")
	}
}

func TestInvalidProfileIsSetupError(t *testing.T) {
	o := NewOrchestrator(&scriptedRunner{}, newSessionStore(t), discardLogger())

	_, err := o.Run(context.Background(), model.UserProfile{}, brokers("alpha"))
	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("error = %v, want *SetupError", err)
	}
	if setupErr.Stage != "profile validation" {
		t.Errorf("Stage = %q, want profile validation", setupErr.Stage)
	}
}

func TestEmptyBrokerListIsSetupError(t *testing.T) {
	o := NewOrchestrator(&scriptedRunner{}, newSessionStore(t), discardLogger())

	_, err := o.Run(context.Background(), testUser(), nil)
	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("error = %v, want *SetupError", err)
	}
}

func TestCancellationStopsBetweenBrokers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	runner := &scriptedRunner{succeed: map[string]bool{"alpha": true}}
	runner.snapshot = cancel

	o := NewOrchestrator(runner, newSessionStore(t), discardLogger())
	session, err := o.Run(ctx, testUser(), brokers("alpha", "beta", "gamma"))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(runner.ran) != 1 {
		t.Errorf("ran %v, want only alpha before cancellation", runner.ran)
	}
	if len(session.Results) != 1 {
		t.Errorf("results = %d, want 1", len(session.Results))
	}
	if session.EndTime == nil {
		t.Error("EndTime must be set even on an interrupted run")
	}
}
