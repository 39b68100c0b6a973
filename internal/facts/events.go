package facts

import "time"

// Predicates emitted by the removal workflow and orchestrator.
const (
	PredPhaseEntered     = "phase_entered"
	PredProbeResult      = "probe_result"
	PredActionIssued     = "action_issued"
	PredAttemptResult    = "attempt_result"
	PredAttemptFailed    = "attempt_failed"
	PredWeakDiagnosis    = "weak_diagnosis"
	PredLearnedAvailable = "learned_available"
)

// Predicates derived by the built-in rules.
const (
	PredNeedsAttention = "needs_attention"
	PredRetryCandidate = "retry_candidate"
)

func PhaseEntered(attemptID, broker, phase string) Fact {
	return Fact{Predicate: PredPhaseEntered, Args: []any{attemptID, broker, phase}, Timestamp: time.Now()}
}

func ProbeResult(attemptID, probe, outcome string) Fact {
	return Fact{Predicate: PredProbeResult, Args: []any{attemptID, probe, outcome}, Timestamp: time.Now()}
}

func ActionIssued(attemptID, kind string) Fact {
	return Fact{Predicate: PredActionIssued, Args: []any{attemptID, kind}, Timestamp: time.Now()}
}

func AttemptResult(attemptID, broker string, success bool) Fact {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	return Fact{Predicate: PredAttemptResult, Args: []any{attemptID, broker, outcome}, Timestamp: time.Now()}
}

func AttemptFailed(broker string) Fact {
	return Fact{Predicate: PredAttemptFailed, Args: []any{broker}, Timestamp: time.Now()}
}

func WeakDiagnosis(broker string) Fact {
	return Fact{Predicate: PredWeakDiagnosis, Args: []any{broker}, Timestamp: time.Now()}
}

func LearnedAvailable(broker string) Fact {
	return Fact{Predicate: PredLearnedAvailable, Args: []any{broker}, Timestamp: time.Now()}
}
