// Package workflow drives one broker opt-out attempt end to end: navigate to
// the opt-out page, optionally search for the user's listing, replay any
// learned instructions, fill and submit the form, and classify the outcome.
// Every page interaction goes through the oracle client; the engine itself
// never touches the browser directly.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matt-meaningfulgigs/data-killer/internal/facts"
	"github.com/matt-meaningfulgigs/data-killer/internal/model"
	"github.com/matt-meaningfulgigs/data-killer/internal/oracle"
)

// Phase labels for logging and the fact ledger.
const (
	PhaseStart       = "Start"
	PhasePageLoaded  = "PageLoaded"
	PhaseSearch      = "SearchPhase"
	PhaseListing     = "ListingPhase"
	PhaseInstruction = "InstructionPhase"
	PhaseFill        = "FillPhase"
	PhaseConsent     = "ConsentPhase"
	PhaseSubmit      = "SubmitPhase"
	PhaseVerify      = "VerifyPhase"
	PhaseTerminal    = "Terminal"
)

// Outcome messages. Tests and downstream tooling match on these exact
// strings.
const (
	msgListingNotFound  = "Could not find user listing"
	msgSuccessConfirmed = "Success confirmed: "
	msgStillOnForm      = "Still on form page - submission failed. Page type: "
	msgNoIndicators     = "No clear success indicators found"
)

// searchFirstBrokers is the hard-coded fallback for brokers known to require
// a person search before any opt-out form is reachable, covering the case
// where the structural probe misses it. Config may extend this list but
// never shrink it.
var searchFirstBrokers = map[string]bool{
	"spokeo":       true,
	"whitepages":   true,
	"beenverified": true,
	"radaris":      true,
}

// FailureAnalyzer is the post-hoc classification the engine invokes on a
// failed attempt that has evidence.
type FailureAnalyzer interface {
	AnalyzeFailure(ctx context.Context, evidence []byte, broker model.BrokerDefinition, errorText string) model.Diagnosis
	ApplyDiagnosis(brokerName string, diag model.Diagnosis) (model.BrokerDefinition, error)
}

// EvidenceWriter persists evidence snapshots and returns their path.
type EvidenceWriter interface {
	Write(brokerName string, success bool, image []byte) (string, error)
}

// Engine runs the per-broker state machine. One engine is shared across all
// brokers in a run; it holds no per-attempt state.
type Engine struct {
	client   oracle.Client
	analyzer FailureAnalyzer
	evidence EvidenceWriter
	ledger   *facts.Ledger
	logger   *slog.Logger

	settleDelay time.Duration
	searchFirst map[string]bool

	// sleep is injected so tests run instantly.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithAnalyzer attaches post-failure analysis. Without it, failed attempts
// carry no diagnosis.
func WithAnalyzer(a FailureAnalyzer) Option {
	return func(e *Engine) { e.analyzer = a }
}

// WithLedger records phase transitions, probes, and actions as facts.
func WithLedger(l *facts.Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithSettleDelay overrides the pause between a fill action and its
// verification probe.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) { e.settleDelay = d }
}

// WithExtraSearchFirst extends the search-first allow-list.
func WithExtraSearchFirst(names []string) Option {
	return func(e *Engine) {
		for _, n := range names {
			e.searchFirst[strings.ToLower(strings.TrimSpace(n))] = true
		}
	}
}

func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = fn }
}

func New(client oracle.Client, evidence EvidenceWriter, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		client:      client,
		evidence:    evidence,
		logger:      logger,
		settleDelay: 2 * time.Second,
		searchFirst: make(map[string]bool, len(searchFirstBrokers)),
		sleep:       sleepWithContext,
	}
	for name := range searchFirstBrokers {
		e.searchFirst[name] = true
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// attempt carries the state of one broker run through the phases.
type attempt struct {
	id       string
	broker   model.BrokerDefinition
	user     model.UserProfile
	result   model.RemovalAttemptResult
	evidence []byte
}

func (a *attempt) fail(errText string) {
	a.result.Success = false
	a.result.Error = errText
}

// Run executes the state machine for one broker and returns the attempt
// result. It never returns an error: every fault inside the attempt is
// downgraded to a failure result so the session continues with the next
// broker.
func (e *Engine) Run(ctx context.Context, broker model.BrokerDefinition, user model.UserProfile) model.RemovalAttemptResult {
	id := uuid.NewString()
	at := &attempt{
		id:     id,
		broker: broker,
		user:   user,
		result: model.RemovalAttemptResult{
			ID:         id,
			BrokerName: broker.Name,
			Timestamp:  time.Now(),
		},
	}

	e.logger.Info("starting removal attempt", "broker", broker.Name, "attempt_id", at.id)

	if e.runPhases(ctx, at) {
		at.result.Success = true
	}
	e.terminal(ctx, at)
	return at.result
}

// runPhases walks the phases in order and reports whether verification
// classified the attempt as a success. A false return means the failure
// fields on the result are already populated.
func (e *Engine) runPhases(ctx context.Context, at *attempt) bool {
	e.enterPhase(at, PhaseStart)
	if !e.navigate(ctx, at) {
		return false
	}
	e.enterPhase(at, PhasePageLoaded)

	if e.needsSearch(ctx, at) {
		e.enterPhase(at, PhaseSearch)
		e.search(ctx, at)
		e.enterPhase(at, PhaseListing)
		if !e.findListing(ctx, at) {
			at.fail(msgListingNotFound)
			return false
		}
	}

	if instructions, ok := at.broker.ReplayInstructions(); ok {
		e.enterPhase(at, PhaseInstruction)
		e.replayInstructions(ctx, at, instructions)
	}

	e.enterPhase(at, PhaseFill)
	e.fillForm(ctx, at)

	e.enterPhase(at, PhaseConsent)
	e.handleConsent(ctx, at)

	e.enterPhase(at, PhaseSubmit)
	e.submit(ctx, at)

	e.enterPhase(at, PhaseVerify)
	return e.verify(ctx, at)
}

func (e *Engine) enterPhase(at *attempt, phase string) {
	e.logger.Info("phase", "broker", at.broker.Name, "phase", phase)
	e.recordFact(facts.PhaseEntered(at.id, at.broker.Name, phase))
}

func (e *Engine) recordFact(f facts.Fact) {
	if e.ledger == nil {
		return
	}
	if err := e.ledger.Record(f); err != nil {
		e.logger.Warn("fact ledger rejected fact", "predicate", f.Predicate, "error", err)
	}
}

func (e *Engine) navigate(ctx context.Context, at *attempt) bool {
	url := at.broker.OptOutURL
	if url == "" {
		url = at.broker.URL
	}
	if err := e.client.Navigate(ctx, url); err != nil {
		e.logger.Warn("navigation failed", "broker", at.broker.Name, "url", url, "error", err)
		at.fail(err.Error())
		return false
	}
	return true
}

// needsSearch asks the oracle whether a person search must happen before the
// opt-out form is reachable, with the allow-list as a fallback for oracle
// misses. A probe failure means facts unknown, not an attempt failure.
func (e *Engine) needsSearch(ctx context.Context, at *attempt) bool {
	if e.searchFirst[strings.ToLower(at.broker.Name)] {
		e.recordFact(facts.ProbeResult(at.id, "needs_search_first", "allow-list"))
		return true
	}

	rec, err := e.client.ExtractFacts(ctx,
		"Look at this page and determine whether the user must first search for their own listing before an opt-out request can be made. Answer needs_search_first as true or false.",
		oracle.NewSchema(oracle.Bool("needs_search_first")))
	if err != nil {
		e.logger.Debug("search probe inconclusive", "broker", at.broker.Name, "error", err)
		e.recordFact(facts.ProbeResult(at.id, "needs_search_first", "unknown"))
		return false
	}
	needed := rec.Bool("needs_search_first")
	e.recordFact(facts.ProbeResult(at.id, "needs_search_first", fmt.Sprintf("%t", needed)))
	return needed
}

// search issues one search action with the user's identifying details. No
// verification that the search executed; the listing probe follows.
func (e *Engine) search(ctx context.Context, at *attempt) {
	instruction := fmt.Sprintf(
		"Search this site for the person %s. Use the search form on the page. Helpful details: address %s, phone %s. Submit the search.",
		at.user.FullName(), at.user.FullAddress(), at.user.Phone)
	e.performAction(ctx, at, "search", instruction)
	_ = e.sleep(ctx, e.settleDelay)
}

// findListing probes for the user's listing, retrying once with a relaxed
// match before giving up.
func (e *Engine) findListing(ctx context.Context, at *attempt) bool {
	shape := oracle.NewSchema(oracle.Bool("listing_found"))

	rec, err := e.client.ExtractFacts(ctx, fmt.Sprintf(
		"Find the search result listing that matches %s (location %s, %s). If such a listing is visible, click it. Answer listing_found as true only if a matching listing was found and clicked.",
		at.user.FullName(), at.user.City, at.user.State), shape)
	if err == nil && rec.Bool("listing_found") {
		e.recordFact(facts.ProbeResult(at.id, "listing_found", "exact"))
		return true
	}

	rec, err = e.client.ExtractFacts(ctx, fmt.Sprintf(
		"Find any plausible listing for a person named %s, even a partial match. If one is visible, click it. Answer listing_found as true only if a listing was found and clicked.",
		at.user.FullName()), shape)
	if err == nil && rec.Bool("listing_found") {
		e.recordFact(facts.ProbeResult(at.id, "listing_found", "relaxed"))
		return true
	}

	e.recordFact(facts.ProbeResult(at.id, "listing_found", "none"))
	return false
}

func (e *Engine) replayInstructions(ctx context.Context, at *attempt, instructions string) {
	e.performAction(ctx, at, "replay",
		"Execute these specific steps exactly: "+instructions)
	_ = e.sleep(ctx, e.settleDelay)
}

// fillForm issues one broad fill action listing every user field, verifies,
// and retries the unfilled remainder at most once.
func (e *Engine) fillForm(ctx context.Context, at *attempt) {
	e.performAction(ctx, at, "fill", fmt.Sprintf(
		"Fill out the opt-out form on this page with these values. First name: %s. Last name: %s. Email: %s. Phone: %s. Street address: %s. City: %s. State: %s. Zip code: %s. Date of birth: %s. Leave fields that do not exist on the form alone.",
		at.user.FirstName, at.user.LastName, at.user.Email, at.user.Phone,
		at.user.Street, at.user.City, at.user.State, at.user.Zip,
		at.user.DateOfBirth))
	if e.sleep(ctx, e.settleDelay) != nil {
		return
	}

	rec, err := e.client.ExtractFacts(ctx,
		"Check the form on this page. Answer all_fields_filled as true only if every visible required field already contains a value.",
		oracle.NewSchema(oracle.Bool("all_fields_filled")))
	if err != nil {
		e.logger.Debug("fill probe inconclusive", "broker", at.broker.Name, "error", err)
		return
	}
	if rec.Bool("all_fields_filled") {
		e.recordFact(facts.ProbeResult(at.id, "all_fields_filled", "true"))
		return
	}

	e.recordFact(facts.ProbeResult(at.id, "all_fields_filled", "false"))
	e.performAction(ctx, at, "fill-retry",
		"Fill any remaining empty fields on this form using the personal details already entered elsewhere on the page.")
	_ = e.sleep(ctx, e.settleDelay)
}

// handleConsent runs the two advisory consent probes. The probes instruct
// the oracle to check or select anything required as a side effect of the
// extraction, so a probe failure is logged and ignored.
func (e *Engine) handleConsent(ctx context.Context, at *attempt) {
	checkboxes, err := e.client.ExtractFacts(ctx,
		"Inspect this form for required checkboxes such as terms of service, privacy policy, or consent confirmations. Check every required checkbox that is not already checked. Answer checkboxes_handled as true if all required checkboxes are now checked.",
		oracle.NewSchema(oracle.Bool("checkboxes_handled")))
	if err != nil {
		e.logger.Debug("checkbox probe inconclusive", "broker", at.broker.Name, "error", err)
	} else {
		e.recordFact(facts.ProbeResult(at.id, "checkboxes_handled", fmt.Sprintf("%t", checkboxes.Bool("checkboxes_handled"))))
	}

	radios, err := e.client.ExtractFacts(ctx,
		"Inspect this form for required radio button groups. Select the option appropriate for a personal data removal request in any group without a selection. Answer radios_handled as true if every required group now has a selection.",
		oracle.NewSchema(oracle.Bool("radios_handled")))
	if err != nil {
		e.logger.Debug("radio probe inconclusive", "broker", at.broker.Name, "error", err)
		return
	}
	e.recordFact(facts.ProbeResult(at.id, "radios_handled", fmt.Sprintf("%t", radios.Bool("radios_handled"))))
}

// submit runs a corrective fill pass, checks readiness, retries unchecked
// boxes once, and clicks submit only when the form looks ready.
func (e *Engine) submit(ctx context.Context, at *attempt) {
	e.performAction(ctx, at, "fill-final",
		"Fill any form fields that are still empty using the personal details already provided.")

	shape := oracle.NewSchema(
		oracle.Bool("ready_to_submit"),
		oracle.Bool("unchecked_boxes"),
	)
	probe := "Check whether this form is ready to submit. Answer ready_to_submit as true only if no required field is empty and no required checkbox is unchecked. Answer unchecked_boxes as true if any required checkbox remains unchecked."

	rec, err := e.client.ExtractFacts(ctx, probe, shape)
	if err != nil {
		e.logger.Debug("readiness probe inconclusive", "broker", at.broker.Name, "error", err)
		e.recordFact(facts.ProbeResult(at.id, "ready_to_submit", "unknown"))
		return
	}

	if !rec.Bool("ready_to_submit") && rec.Bool("unchecked_boxes") {
		e.performAction(ctx, at, "consent-retry",
			"Go through the form and check each required checkbox that is still unchecked.")
		rec, err = e.client.ExtractFacts(ctx, probe, shape)
		if err != nil {
			e.logger.Debug("readiness recheck inconclusive", "broker", at.broker.Name, "error", err)
			e.recordFact(facts.ProbeResult(at.id, "ready_to_submit", "unknown"))
			return
		}
	}

	if !rec.Bool("ready_to_submit") {
		e.logger.Warn("form not ready, skipping submit", "broker", at.broker.Name)
		e.recordFact(facts.ProbeResult(at.id, "ready_to_submit", "false"))
		return
	}
	e.recordFact(facts.ProbeResult(at.id, "ready_to_submit", "true"))

	e.performAction(ctx, at, "submit",
		"Find the submit button for this opt-out form, such as a button labeled Submit, Send, Continue, or Remove my info, and click it.")
	_ = e.sleep(ctx, e.settleDelay)
}

// verify classifies the outcome in strict priority order: explicit failure
// phrases outrank explicit success phrases, which outrank the still-on-form
// check, with ambiguity defaulting to failure. A probe error drops through
// to the next tier.
func (e *Engine) verify(ctx context.Context, at *attempt) bool {
	rec, err := e.client.ExtractFacts(ctx,
		"Look at this page for explicit failure indicators: messages about missing or invalid fields, the words invalid or error, or phrases like something went wrong. Answer failures_found as true if any are visible and list their exact texts in failure_texts.",
		oracle.NewSchema(oracle.Bool("failures_found"), oracle.Strings("failure_texts")))
	if err == nil && rec.Bool("failures_found") {
		texts := rec.Strings("failure_texts")
		msg := strings.Join(texts, "; ")
		if msg == "" {
			msg = "failure indicators present"
		}
		e.recordFact(facts.ProbeResult(at.id, "verify", "failure-phrases"))
		at.fail(msg)
		return false
	}

	rec, err = e.client.ExtractFacts(ctx,
		"Look at this page for explicit success indicators such as thank you, confirmation, request received, or opt-out successful. Answer success_found as true if one is visible and put its exact text in matched_text.",
		oracle.NewSchema(oracle.Bool("success_found"), oracle.String("matched_text")))
	if err == nil && rec.Bool("success_found") {
		e.recordFact(facts.ProbeResult(at.id, "verify", "success-phrases"))
		at.result.Details = msgSuccessConfirmed + rec.String("matched_text")
		return true
	}

	rec, err = e.client.ExtractFacts(ctx,
		"Determine whether this page still looks like an unsubmitted form: a submit button or empty form fields still visible. Answer still_on_form as true or false and describe the page in page_type with one word such as form, confirmation, search, or other.",
		oracle.NewSchema(oracle.Bool("still_on_form"), oracle.String("page_type")))
	if err == nil && rec.Bool("still_on_form") {
		e.recordFact(facts.ProbeResult(at.id, "verify", "still-on-form"))
		at.result.Success = false
		at.result.Details = msgStillOnForm + rec.String("page_type")
		return false
	}

	e.recordFact(facts.ProbeResult(at.id, "verify", "ambiguous"))
	at.result.Success = false
	at.result.Details = msgNoIndicators
	return false
}

// terminal always attempts an evidence snapshot, then runs failure analysis
// when the attempt failed and evidence exists. Neither step changes the
// verdict already recorded.
func (e *Engine) terminal(ctx context.Context, at *attempt) {
	e.enterPhase(at, PhaseTerminal)

	image, err := e.client.CaptureEvidence(ctx)
	if err != nil {
		e.logger.Warn("evidence capture failed", "broker", at.broker.Name, "error", err)
	} else {
		at.evidence = image
		if e.evidence != nil {
			path, werr := e.evidence.Write(at.broker.Name, at.result.Success, image)
			if werr != nil {
				e.logger.Warn("evidence write failed", "broker", at.broker.Name, "error", werr)
			} else {
				at.result.EvidencePath = path
			}
		}
	}

	e.recordFact(facts.AttemptResult(at.id, at.broker.Name, at.result.Success))
	if at.result.Success {
		e.logger.Info("attempt succeeded", "broker", at.broker.Name, "details", at.result.Details)
		return
	}
	e.recordFact(facts.AttemptFailed(at.broker.Name))
	e.logger.Info("attempt failed",
		"broker", at.broker.Name, "error", at.result.Error, "details", at.result.Details)

	if e.analyzer == nil || len(at.evidence) == 0 {
		return
	}

	errText := at.result.Error
	if errText == "" {
		errText = at.result.Details
	}
	diag := e.analyzer.AnalyzeFailure(ctx, at.evidence, at.broker, errText)
	at.result.Diagnosis = &diag

	if diag.Actionable() {
		if _, err := e.analyzer.ApplyDiagnosis(at.broker.Name, diag); err != nil {
			e.logger.Warn("could not apply diagnosis", "broker", at.broker.Name, "error", err)
		} else {
			e.recordFact(facts.LearnedAvailable(at.broker.Name))
		}
	} else {
		e.recordFact(facts.WeakDiagnosis(at.broker.Name))
	}
}

// performAction fires a best-effort action and records it. Transport
// failures were already swallowed by the client; only cancellation comes
// back, and the phases treat that as settle-and-continue.
func (e *Engine) performAction(ctx context.Context, at *attempt, kind, instruction string) {
	e.recordFact(facts.ActionIssued(at.id, kind))
	if err := e.client.PerformAction(ctx, instruction); err != nil {
		e.logger.Debug("action interrupted", "broker", at.broker.Name, "kind", kind, "error", err)
	}
}
