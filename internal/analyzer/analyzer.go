// Package analyzer classifies failed removal attempts after the fact. Given
// the evidence screenshot and whatever error text the workflow collected, it
// asks the oracle for a free-form explanation, parses that into a structured
// diagnosis, and can promote a confident diagnosis into the broker's learned
// instructions so the next run behaves differently.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/matt-meaningfulgigs/data-killer/internal/model"
	"github.com/matt-meaningfulgigs/data-killer/internal/oracle"
	"github.com/matt-meaningfulgigs/data-killer/internal/store"
)

// placeholderText fills diagnosis fields whenever analysis itself fails.
// Confidence zero guarantees it is never folded back into the catalog.
const placeholderText = "manual review required"

// Analyzer drives both analysis modes against a text/vision oracle.
type Analyzer struct {
	completer oracle.Completer
	catalog   *store.Catalog
	logger    *slog.Logger
	now       func() time.Time
}

func New(completer oracle.Completer, catalog *store.Catalog, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		completer: completer,
		catalog:   catalog,
		logger:    logger,
		now:       time.Now,
	}
}

// AnalyzeFailure asks the oracle why an attempt failed and parses the answer.
// It never returns an error: any internal fault yields the zero-confidence
// placeholder so the caller's verdict is unaffected.
func (a *Analyzer) AnalyzeFailure(ctx context.Context, evidence []byte, broker model.BrokerDefinition, errorText string) model.Diagnosis {
	prompt := failurePrompt(broker, errorText)
	text, err := a.completer.Complete(ctx, prompt, evidence)
	if err != nil {
		a.logger.Warn("failure analysis unavailable", "broker", broker.Name, "error", err)
		return placeholderDiagnosis()
	}

	diag := parseDiagnosis(text)
	a.logger.Info("failure analyzed",
		"broker", broker.Name,
		"confidence", diag.Confidence,
		"actionable", diag.Actionable())
	return diag
}

// AnalyzePage asks the oracle to break a page down structurally. Text-only;
// symmetric error handling with AnalyzeFailure.
func (a *Analyzer) AnalyzePage(ctx context.Context, brokerName, pageContext string) model.PageStructuralAnalysis {
	prompt := pagePrompt(brokerName, pageContext)
	text, err := a.completer.Complete(ctx, prompt, nil)
	if err != nil {
		a.logger.Warn("page analysis unavailable", "broker", brokerName, "error", err)
		return placeholderAnalysis()
	}
	return parsePageAnalysis(text)
}

// ApplyDiagnosis folds an actionable diagnosis into the broker's learned
// instructions and persists the catalog. Diagnoses below the confidence
// threshold are discarded without touching storage.
func (a *Analyzer) ApplyDiagnosis(brokerName string, diag model.Diagnosis) (model.BrokerDefinition, error) {
	if !diag.Actionable() {
		a.logger.Debug("diagnosis below threshold, discarded",
			"broker", brokerName, "confidence", diag.Confidence)
		return model.BrokerDefinition{}, nil
	}

	instructions := diag.SpecialInstructions
	if strings.TrimSpace(instructions) == "" {
		instructions = diag.Fix
	}
	if strings.TrimSpace(instructions) == "" {
		return model.BrokerDefinition{}, fmt.Errorf("diagnosis for %q has no replayable instructions", brokerName)
	}

	updated, err := a.catalog.UpdateBroker(brokerName, func(b *model.BrokerDefinition) {
		b.Learned = &model.LearnedInstructions{
			Instructions: instructions,
			Confidence:   diag.Confidence,
			UpdatedAt:    a.now(),
		}
	})
	if err != nil {
		return model.BrokerDefinition{}, fmt.Errorf("apply diagnosis: %w", err)
	}

	a.logger.Info("learned instructions updated",
		"broker", brokerName, "confidence", diag.Confidence)
	return updated, nil
}

func failurePrompt(broker model.BrokerDefinition, errorText string) string {
	var sb strings.Builder
	sb.WriteString("An automated opt-out attempt against the data broker \"")
	sb.WriteString(broker.Name)
	sb.WriteString("\" failed. The screenshot shows the final page state.\n")
	sb.WriteString("Opt-out URL: ")
	sb.WriteString(broker.OptOutURL)
	sb.WriteString("\n")
	if errorText != "" {
		sb.WriteString("Recorded error: ")
		sb.WriteString(errorText)
		sb.WriteString("\n")
	}
	if broker.RequiresIDUpload {
		sb.WriteString("This broker requires an identity document upload.\n")
	}
	sb.WriteString("\nExplain what went wrong and how the next attempt should differ. Answer with labeled lines:\n")
	sb.WriteString("Problem: <what blocked the attempt>\n")
	sb.WriteString("Fix: <what to change>\n")
	sb.WriteString("Steps:\n1. <first step>\n2. <second step>\n")
	sb.WriteString("Special Instructions: <exact instructions to replay next time>\n")
	sb.WriteString("Confidence: <1-10>\n")
	return sb.String()
}

func pagePrompt(brokerName, pageContext string) string {
	var sb strings.Builder
	sb.WriteString("Describe the structure of this page from the data broker \"")
	sb.WriteString(brokerName)
	sb.WriteString("\".\n\nPage context:\n")
	sb.WriteString(pageContext)
	sb.WriteString("\n\nAnswer with labeled lines:\n")
	sb.WriteString("Page Type: <form|search|listing|confirmation|other>\n")
	sb.WriteString("Steps:\n1. <first step>\n")
	sb.WriteString("Required Fields: <comma-separated field names>\n")
	sb.WriteString("Required Actions: <comma-separated action names>\n")
	sb.WriteString("Confidence: <1-10>\n")
	return sb.String()
}

func placeholderDiagnosis() model.Diagnosis {
	return model.Diagnosis{
		Problem:    placeholderText,
		Fix:        placeholderText,
		Confidence: model.ConfidenceFloor,
	}
}

func placeholderAnalysis() model.PageStructuralAnalysis {
	return model.PageStructuralAnalysis{
		PageType:   "unknown",
		Confidence: model.ConfidenceFloor,
	}
}

var (
	numberedStep = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)
	firstInteger = regexp.MustCompile(`-?\d+`)
)

// parseDiagnosis extracts labeled fields from the oracle's free-form answer.
// Matching is case-insensitive and line-oriented; numbered lines after a
// Steps: label become next steps. Anything missing falls back to the
// placeholder, and a response with no recognizable labels at all yields
// confidence zero.
func parseDiagnosis(text string) model.Diagnosis {
	diag := model.Diagnosis{Confidence: model.ConfidenceFloor}
	parsedAny := false
	inSteps := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if inSteps {
			if m := numberedStep.FindStringSubmatch(trimmed); m != nil {
				diag.NextSteps = append(diag.NextSteps, strings.TrimSpace(m[1]))
				continue
			}
			inSteps = false
		}

		switch {
		case matchLabel(trimmed, "problem"):
			diag.Problem = labelValue(trimmed)
			parsedAny = true
		case matchLabel(trimmed, "fix"):
			diag.Fix = labelValue(trimmed)
			parsedAny = true
		case matchLabel(trimmed, "special instructions"):
			diag.SpecialInstructions = labelValue(trimmed)
			parsedAny = true
		case matchLabel(trimmed, "steps"), matchLabel(trimmed, "next steps"):
			inSteps = true
			parsedAny = true
			if v := labelValue(trimmed); v != "" {
				diag.NextSteps = append(diag.NextSteps, v)
			}
		case matchLabel(trimmed, "confidence"):
			if n, ok := parseConfidence(labelValue(trimmed)); ok {
				diag.Confidence = n
				parsedAny = true
			}
		}
	}

	if !parsedAny {
		return placeholderDiagnosis()
	}
	if diag.Problem == "" {
		diag.Problem = placeholderText
	}
	if diag.Fix == "" {
		diag.Fix = placeholderText
	}
	if diag.Confidence == model.ConfidenceFloor {
		diag.Confidence = model.ClampConfidence(0)
	}
	return diag
}

func parsePageAnalysis(text string) model.PageStructuralAnalysis {
	out := model.PageStructuralAnalysis{Confidence: model.ConfidenceFloor}
	parsedAny := false
	inSteps := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if inSteps {
			if m := numberedStep.FindStringSubmatch(trimmed); m != nil {
				out.Steps = append(out.Steps, strings.TrimSpace(m[1]))
				continue
			}
			inSteps = false
		}

		switch {
		case matchLabel(trimmed, "page type"):
			out.PageType = labelValue(trimmed)
			parsedAny = true
		case matchLabel(trimmed, "steps"):
			inSteps = true
			parsedAny = true
			if v := labelValue(trimmed); v != "" {
				out.Steps = append(out.Steps, v)
			}
		case matchLabel(trimmed, "required fields"):
			out.RequiredFields = splitList(labelValue(trimmed))
			parsedAny = true
		case matchLabel(trimmed, "required actions"):
			out.RequiredActions = splitList(labelValue(trimmed))
			parsedAny = true
		case matchLabel(trimmed, "confidence"):
			if n, ok := parseConfidence(labelValue(trimmed)); ok {
				out.Confidence = n
				parsedAny = true
			}
		}
	}

	if !parsedAny {
		return placeholderAnalysis()
	}
	if out.PageType == "" {
		out.PageType = "unknown"
	}
	if out.Confidence == model.ConfidenceFloor {
		out.Confidence = model.ClampConfidence(0)
	}
	return out
}

func matchLabel(line, label string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, label+":")
}

func labelValue(line string) string {
	_, after, ok := strings.Cut(line, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(after)
}

// parseConfidence pulls the first integer out of the value and clamps it to
// the analyzer scale.
func parseConfidence(v string) (int, bool) {
	m := firstInteger.FindString(v)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return model.ClampConfidence(n), true
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
