package oracle

import "fmt"

// NavigationError reports a failed page load. It is scoped to one broker's
// attempt and never aborts the run.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ExtractionError reports that the oracle could not be reached or returned
// data that does not conform to the requested shape. Callers treat it as
// "facts unknown".
type ExtractionError struct {
	Instruction string
	Err         error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract facts (%.60s...): %v", e.Instruction, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EvidenceError reports that a page snapshot could not be captured.
type EvidenceError struct {
	Err error
}

func (e *EvidenceError) Error() string {
	return fmt.Sprintf("capture evidence: %v", e.Err)
}

func (e *EvidenceError) Unwrap() error { return e.Err }
