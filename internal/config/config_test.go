package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
oracle:
  endpoint: "https://oracle.example.com/v1/understand"
  request_timeout: "45s"
browser:
  headless: false
  viewport_width: 1280
workflow:
  settle_delay: "250ms"
  search_first:
    - PeopleFinderPro
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Oracle.Endpoint != "https://oracle.example.com/v1/understand" {
		t.Fatalf("endpoint not overlaid: %s", cfg.Oracle.Endpoint)
	}
	if cfg.Oracle.Timeout() != 45*time.Second {
		t.Fatalf("timeout not overlaid: %v", cfg.Oracle.Timeout())
	}
	if cfg.Browser.IsHeadless() {
		t.Fatal("headless override ignored")
	}
	if cfg.Browser.Width() != 1280 {
		t.Fatalf("viewport width not overlaid: %d", cfg.Browser.Width())
	}
	// Untouched fields keep defaults.
	if cfg.Browser.Height() != 1080 {
		t.Fatalf("viewport height default lost: %d", cfg.Browser.Height())
	}
	if cfg.Workflow.SettleDelayDuration() != 250*time.Millisecond {
		t.Fatalf("settle delay not overlaid: %v", cfg.Workflow.SettleDelayDuration())
	}
	if len(cfg.Workflow.SearchFirst) != 1 || cfg.Workflow.SearchFirst[0] != "PeopleFinderPro" {
		t.Fatalf("search_first not overlaid: %v", cfg.Workflow.SearchFirst)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestValidateRejectsEmptyOracleEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Oracle.Endpoint = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateRequiresBrowserTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Browser.DebuggerURL = ""
	cfg.Browser.Launch = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStoragePathResolution(t *testing.T) {
	s := StorageConfig{
		DataDir:     "/var/lib/datakiller",
		CatalogFile: "brokers.json",
		SessionFile: "/tmp/session.json",
		EvidenceDir: "evidence",
	}
	if got := s.CatalogPath(); got != "/var/lib/datakiller/brokers.json" {
		t.Fatalf("catalog path: %s", got)
	}
	if got := s.SessionPath(); got != "/tmp/session.json" {
		t.Fatalf("absolute session path mangled: %s", got)
	}
	if got := s.EvidencePath(); got != "/var/lib/datakiller/evidence" {
		t.Fatalf("evidence path: %s", got)
	}
}

func TestDurationFallbacks(t *testing.T) {
	b := BrowserConfig{NavigationTimeout: "bogus", SettleWindow: ""}
	if b.NavTimeout() != 30*time.Second {
		t.Fatalf("nav timeout fallback: %v", b.NavTimeout())
	}
	if b.Settle() != 500*time.Millisecond {
		t.Fatalf("settle fallback: %v", b.Settle())
	}
}
