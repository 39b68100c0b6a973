// Package oracle defines the capability boundary between the removal workflow
// and the page-understanding service: a live browser page plus a vision/text
// model that can read it and act on it. The workflow only ever sees the
// Client interface; the network-backed implementation and the deterministic
// scripted one are interchangeable.
package oracle

import (
	"context"
	"fmt"
)

// Client is the page-understanding capability. Exactly four operations; no
// retries are built in at this layer, retry policy belongs to the caller.
type Client interface {
	// Navigate loads a URL and waits for the network to settle. It returns
	// a *NavigationError on network or timeout failure.
	Navigate(ctx context.Context, url string) error

	// ExtractFacts sends the current page state and a natural-language
	// instruction to the oracle and returns a record conforming to shape.
	// It returns a *ExtractionError when the oracle cannot be reached or
	// returns non-conforming data; callers must treat that as "facts
	// unknown", never as a crash.
	ExtractFacts(ctx context.Context, instruction string, shape Schema) (FactRecord, error)

	// PerformAction asks the oracle to carry out a described interaction
	// against the current page. Best-effort: implementations report only
	// context cancellation. Action failures are deliberately swallowed
	// here and surface later through verification probes, because the
	// oracle cannot confirm action success synchronously.
	PerformAction(ctx context.Context, instruction string) error

	// CaptureEvidence takes a full-page image snapshot. It returns a
	// *EvidenceError when capture is impossible.
	CaptureEvidence(ctx context.Context) ([]byte, error)
}

// Completer is the narrower text/vision capability the outcome analyzer
// needs: one prompt, optionally one image, free-form text back.
type Completer interface {
	Complete(ctx context.Context, prompt string, image []byte) (string, error)
}

// FieldKind describes the type a schema field must decode to.
type FieldKind string

const (
	KindBool    FieldKind = "bool"
	KindString  FieldKind = "string"
	KindNumber  FieldKind = "number"
	KindStrings FieldKind = "strings"
)

// Field is one named, typed slot the caller expects the oracle to fill.
type Field struct {
	Name string    `json:"name"`
	Kind FieldKind `json:"kind"`
}

// Schema declares the shape an extraction must conform to.
type Schema struct {
	Fields []Field `json:"fields"`
}

// NewSchema builds a schema from fields.
func NewSchema(fields ...Field) Schema {
	return Schema{Fields: fields}
}

// Bool declares a boolean field.
func Bool(name string) Field { return Field{Name: name, Kind: KindBool} }

// String declares a string field.
func String(name string) Field { return Field{Name: name, Kind: KindString} }

// Number declares a numeric field.
func Number(name string) Field { return Field{Name: name, Kind: KindNumber} }

// Strings declares an array-of-strings field.
func Strings(name string) Field { return Field{Name: name, Kind: KindStrings} }

// FactRecord is a conformance-checked extraction result. Values are only
// stored after Conform validated them, so the typed getters cannot fail.
type FactRecord map[string]any

// Bool returns the named boolean fact, false when absent.
func (r FactRecord) Bool(name string) bool {
	v, _ := r[name].(bool)
	return v
}

// String returns the named string fact, empty when absent.
func (r FactRecord) String(name string) string {
	v, _ := r[name].(string)
	return v
}

// Number returns the named numeric fact, zero when absent.
func (r FactRecord) Number(name string) float64 {
	v, _ := r[name].(float64)
	return v
}

// Strings returns the named string-list fact, nil when absent.
func (r FactRecord) Strings(name string) []string {
	v, _ := r[name].([]string)
	return v
}

// Conform validates raw oracle output against the schema and returns a typed
// record. Every declared field must be present with a compatible JSON type;
// undeclared fields are dropped. JSON numbers are accepted for number fields,
// and []any of strings for strings fields.
func Conform(raw map[string]any, shape Schema) (FactRecord, error) {
	out := make(FactRecord, len(shape.Fields))
	for _, f := range shape.Fields {
		v, ok := raw[f.Name]
		if !ok {
			return nil, fmt.Errorf("field %q missing from oracle response", f.Name)
		}
		switch f.Kind {
		case KindBool:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("field %q: expected bool, got %T", f.Name, v)
			}
			out[f.Name] = b
		case KindString:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("field %q: expected string, got %T", f.Name, v)
			}
			out[f.Name] = s
		case KindNumber:
			switch n := v.(type) {
			case float64:
				out[f.Name] = n
			case int:
				out[f.Name] = float64(n)
			default:
				return nil, fmt.Errorf("field %q: expected number, got %T", f.Name, v)
			}
		case KindStrings:
			switch list := v.(type) {
			case []string:
				out[f.Name] = append([]string(nil), list...)
			case []any:
				strs := make([]string, 0, len(list))
				for _, item := range list {
					s, ok := item.(string)
					if !ok {
						return nil, fmt.Errorf("field %q: expected strings, found %T element", f.Name, item)
					}
					strs = append(strs, s)
				}
				out[f.Name] = strs
			default:
				return nil, fmt.Errorf("field %q: expected strings, got %T", f.Name, v)
			}
		default:
			return nil, fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
		}
	}
	return out, nil
}
