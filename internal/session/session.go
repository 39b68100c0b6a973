// Package session orchestrates a removal run: it walks the broker list
// strictly sequentially, hands each broker to the workflow engine, persists
// the session snapshot after every broker, and aggregates the final tally.
// Nothing that happens inside one broker's attempt is allowed to stop the
// run; the per-broker boundary here is the sole recovery point.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/matt-meaningfulgigs/data-killer/internal/facts"
	"github.com/matt-meaningfulgigs/data-killer/internal/model"
	"github.com/matt-meaningfulgigs/data-killer/internal/store"
)

// SetupError marks faults that abort the run before any broker is processed:
// an invalid catalog or profile, or an oracle session that cannot start.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed at %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Runner is the per-broker workflow the orchestrator drives. It never
// returns an error: faults are downgraded into the result.
type Runner interface {
	Run(ctx context.Context, broker model.BrokerDefinition, user model.UserProfile) model.RemovalAttemptResult
}

// Orchestrator runs one session end to end.
type Orchestrator struct {
	runner   Runner
	sessions *store.SessionStore
	ledger   *facts.Ledger
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrchestrator(runner Runner, sessions *store.SessionStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		runner:   runner,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// WithLedger attaches the fact ledger so run-level conclusions can be
// derived afterwards.
func (o *Orchestrator) WithLedger(l *facts.Ledger) *Orchestrator {
	o.ledger = l
	return o
}

// Run processes brokers in order and returns the completed session. The
// session snapshot on disk is rewritten after every broker, so a killed run
// loses at most the in-flight attempt. A snapshot write failure is logged
// and the run continues; the in-memory session stays authoritative.
func (o *Orchestrator) Run(ctx context.Context, user model.UserProfile, brokers []model.BrokerDefinition) (model.RemovalSession, error) {
	if err := user.Validate(); err != nil {
		return model.RemovalSession{}, &SetupError{Stage: "profile validation", Err: err}
	}
	if len(brokers) == 0 {
		return model.RemovalSession{}, &SetupError{Stage: "broker selection", Err: fmt.Errorf("no brokers to process")}
	}

	session := model.RemovalSession{
		ID:        uuid.NewString(),
		User:      user,
		StartTime: o.now(),
	}

	o.logger.Info("session started", "session_id", session.ID, "brokers", len(brokers))

	for _, broker := range brokers {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("session interrupted", "session_id", session.ID, "error", err)
			break
		}

		result := o.attempt(ctx, broker, user)
		session.Results = append(session.Results, result)
		o.persist(session)
	}

	end := o.now()
	session.EndTime = &end
	o.persist(session)

	tally := session.Tally()
	o.logger.Info("session finished",
		"session_id", session.ID,
		"succeeded", tally.Succeeded,
		"failed", tally.Failed)
	return session, nil
}

// attempt runs one broker inside a recover boundary. A panic anywhere in the
// workflow becomes a failure result instead of ending the run.
func (o *Orchestrator) attempt(ctx context.Context, broker model.BrokerDefinition, user model.UserProfile) (result model.RemovalAttemptResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("attempt panicked", "broker", broker.Name, "panic", r)
			result = model.RemovalAttemptResult{
				ID:         uuid.NewString(),
				BrokerName: broker.Name,
				Success:    false,
				Error:      fmt.Sprintf("internal fault: %v", r),
				Timestamp:  o.now(),
			}
		}
	}()
	return o.runner.Run(ctx, broker, user)
}

func (o *Orchestrator) persist(session model.RemovalSession) {
	if o.sessions == nil {
		return
	}
	if err := o.sessions.Save(session); err != nil {
		o.logger.Warn("session snapshot write failed", "session_id", session.ID, "error", err)
	}
}

// NeedsAttention lists brokers the fact ledger derived as needing operator
// follow-up. Nil without a ledger.
func (o *Orchestrator) NeedsAttention() ([]string, error) {
	if o.ledger == nil {
		return nil, nil
	}
	return o.ledger.DerivedNames(facts.PredNeedsAttention)
}

// RetryCandidates lists failed brokers that picked up learned instructions
// during this run and are worth retrying.
func (o *Orchestrator) RetryCandidates() ([]string, error) {
	if o.ledger == nil {
		return nil, nil
	}
	return o.ledger.DerivedNames(facts.PredRetryCandidate)
}
