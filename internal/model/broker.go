package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LearnedInstructions is the machine-writable slot on a broker. It is only
// ever written by diagnosis application, never by hand, and always carries
// the confidence that earned it.
type LearnedInstructions struct {
	Instructions string    `json:"instructions"`
	Confidence   int       `json:"confidence"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BrokerDefinition describes one data-broker site in the catalog. Name is the
// unique key; Learned may be rewritten in place between runs, making the
// catalog process-wide mutable shared state.
type BrokerDefinition struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	OptOutURL        string `json:"opt_out_url"`
	RequiresIDUpload bool   `json:"requires_id_upload"`
	// Notes is static operator documentation about the broker.
	Notes string `json:"notes,omitempty"`
	// ManualInstructions holds operator-authored replay steps executed
	// verbatim before form filling.
	ManualInstructions string `json:"manual_instructions,omitempty"`
	// Learned is the diagnosis-promoted instruction cache.
	Learned *LearnedInstructions `json:"learned,omitempty"`
}

// Validate checks the fields the workflow depends on. A catalog entry that
// fails validation aborts the whole run.
func (b BrokerDefinition) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("broker name is required")
	}
	if strings.TrimSpace(b.OptOutURL) == "" {
		return fmt.Errorf("broker %q: opt_out_url is required", b.Name)
	}
	if _, err := url.ParseRequestURI(b.OptOutURL); err != nil {
		return fmt.Errorf("broker %q: opt_out_url: %w", b.Name, err)
	}
	if b.URL != "" {
		if _, err := url.ParseRequestURI(b.URL); err != nil {
			return fmt.Errorf("broker %q: url: %w", b.Name, err)
		}
	}
	if b.Learned != nil && strings.TrimSpace(b.Learned.Instructions) == "" {
		return fmt.Errorf("broker %q: learned instructions must not be empty", b.Name)
	}
	return nil
}

// ReplayInstructions returns the instruction text the workflow should execute
// verbatim before filling, preferring a learned fix over manual steps. The
// second return reports whether any instructions exist.
func (b BrokerDefinition) ReplayInstructions() (string, bool) {
	if b.Learned != nil && strings.TrimSpace(b.Learned.Instructions) != "" {
		return b.Learned.Instructions, true
	}
	if strings.TrimSpace(b.ManualInstructions) != "" {
		return b.ManualInstructions, true
	}
	return "", false
}
