// Package log provides a slog handler that keeps the user's identifying
// information out of log output. The workflow logs every phase transition
// with structured attributes, and several of those attributes would otherwise
// carry the exact PII this tool exists to remove from the internet.
package log

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// piiKeys are attribute keys whose values are always masked.
var piiKeys = map[string]bool{
	"email":         true,
	"phone":         true,
	"date_of_birth": true,
	"dob":           true,
	"first_name":    true,
	"last_name":     true,
	"full_name":     true,
	"street":        true,
	"address":       true,
	"zip":           true,
	"ssn":           true,

	// Oracle credentials never belong in a trace either.
	"api_key":       true,
	"authorization": true,
	"token":         true,
}

// piiPatterns mask values that look identifying regardless of key name.
var piiPatterns = []*regexp.Regexp{
	// Email addresses
	regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`),
	// US phone numbers with common separators
	regexp.MustCompile(`^\+?1?[\s.\-(]*\d{3}[\s.\-)]*\d{3}[\s.\-]*\d{4}$`),
	// ISO dates that plausibly are a date of birth
	regexp.MustCompile(`^(19|20)\d{2}-\d{2}-\d{2}$`),
}

// MaskValue replaces redacted attribute values.
const MaskValue = "***REDACTED***"

// RedactHandler wraps another slog.Handler and masks identifying attributes
// before they reach it. It composes with any underlying handler (text, JSON,
// file-backed).
type RedactHandler struct {
	handler slog.Handler
}

// NewRedactHandler wraps handler, falling back to slog.Default's handler when
// nil.
func NewRedactHandler(handler slog.Handler) *RedactHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &RedactHandler{handler: handler}
}

func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, clean)
}

func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &RedactHandler{handler: h.handler.WithAttrs(clean)}
}

func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{handler: h.handler.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		clean := make([]slog.Attr, len(group))
		for i, ga := range group {
			clean[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	}

	if piiKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString && isPIIValue(a.Value.String()) {
		return slog.String(a.Key, MaskValue)
	}

	return a
}

func isPIIValue(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	for _, pattern := range piiPatterns {
		if pattern.MatchString(v) {
			return true
		}
	}
	return false
}

// NewRedactedLogger builds a logger that writes through a RedactHandler.
func NewRedactedLogger(handler slog.Handler) *slog.Logger {
	return slog.New(NewRedactHandler(handler))
}
