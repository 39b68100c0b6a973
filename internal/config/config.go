// Package config captures the tunable settings for the data-killer CLI:
// oracle endpoint, browser control, storage locations, and workflow pacing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Browser  BrowserConfig  `yaml:"browser"`
	Storage  StorageConfig  `yaml:"storage"`
	Workflow WorkflowConfig `yaml:"workflow"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// File redirects log output away from the interactive prompts when set.
	File string `yaml:"file"`
}

// OracleConfig points at the vision/text completion endpoint backing page
// understanding and failure analysis.
type OracleConfig struct {
	Endpoint string `yaml:"endpoint"`
	// APIKeyEnv names the environment variable holding the bearer token.
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	// RequestTimeout bounds a single oracle round trip (e.g. "90s").
	RequestTimeout string `yaml:"request_timeout"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). Optional when
	// launch is set.
	DebuggerURL string `yaml:"debugger_url"`
	// Launch command to start Chrome (e.g., ["chrome", "--remote-debugging-port=9222"]).
	Launch []string `yaml:"launch"`
	// Headless controls whether Chrome runs headless (default: true).
	Headless *bool `yaml:"headless"`
	// NavigationTimeout per page load (e.g., "30s").
	NavigationTimeout string `yaml:"navigation_timeout"`
	// SettleWindow is how long the network must stay quiet after a load or
	// action before we consider the page settled (e.g., "500ms").
	SettleWindow string `yaml:"settle_window"`
	// Viewport for new pages (default: 1920x1080).
	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`
}

// StorageConfig locates the flat-file stores. Relative entries resolve
// against DataDir.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	CatalogFile string `yaml:"catalog_file"`
	ProfileFile string `yaml:"profile_file"`
	SessionFile string `yaml:"session_file"`
	EvidenceDir string `yaml:"evidence_dir"`
}

// WorkflowConfig tunes the removal state machine.
type WorkflowConfig struct {
	// SettleDelay is the pause after fill and corrective actions (e.g., "1s").
	SettleDelay string `yaml:"settle_delay"`
	// SearchFirst extends the built-in list of brokers that always get a
	// search phase regardless of what the structural probe reports.
	SearchFirst []string `yaml:"search_first"`
}

// DefaultConfig provides reasonable defaults for local use.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level: "info",
			File:  "datakiller.log",
		},
		Oracle: OracleConfig{
			Endpoint:       "http://localhost:8787/v1/understand",
			APIKeyEnv:      "DATAKILLER_ORACLE_KEY",
			Model:          "vision-default",
			RequestTimeout: "90s",
		},
		Browser: BrowserConfig{
			Launch:            []string{"chrome"},
			NavigationTimeout: "30s",
			SettleWindow:      "500ms",
			ViewportWidth:     1920,
			ViewportHeight:    1080,
		},
		Storage: StorageConfig{
			DataDir:     filepath.Join(xdg.DataHome, "datakiller"),
			CatalogFile: "brokers.json",
			ProfileFile: "profile.json",
			SessionFile: "session.json",
			EvidenceDir: "evidence",
		},
		Workflow: WorkflowConfig{
			SettleDelay: "1s",
		},
	}
}

// Load reads YAML config from disk and overlays defaults. An empty path
// returns pure defaults; a named file that cannot be read is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate ensures required fields exist so a run can start deterministically.
func (c *Config) Validate() error {
	if c.Oracle.Endpoint == "" {
		return errors.New("oracle.endpoint is required")
	}
	if c.Browser.DebuggerURL == "" && len(c.Browser.Launch) == 0 {
		return errors.New("browser.debugger_url or browser.launch must be provided")
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	return nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Timeout returns the parsed oracle request timeout with a sane default.
func (o OracleConfig) Timeout() time.Duration {
	return parseDurationOr(o.RequestTimeout, 90*time.Second)
}

// APIKey resolves the bearer token from the configured environment variable.
func (o OracleConfig) APIKey() string {
	if o.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(o.APIKeyEnv)
}

// NavTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavTimeout() time.Duration {
	return parseDurationOr(b.NavigationTimeout, 30*time.Second)
}

// Settle returns the parsed network-settle window with a sane default.
func (b BrowserConfig) Settle() time.Duration {
	return parseDurationOr(b.SettleWindow, 500*time.Millisecond)
}

// IsHeadless returns whether Chrome should run headless (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// Width returns the viewport width with a sane default.
func (b BrowserConfig) Width() int {
	if b.ViewportWidth <= 0 {
		return 1920
	}
	return b.ViewportWidth
}

// Height returns the viewport height with a sane default.
func (b BrowserConfig) Height() int {
	if b.ViewportHeight <= 0 {
		return 1080
	}
	return b.ViewportHeight
}

// SettleDelayDuration returns the parsed inter-action delay with a sane default.
func (w WorkflowConfig) SettleDelayDuration() time.Duration {
	return parseDurationOr(w.SettleDelay, time.Second)
}

func (s StorageConfig) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.DataDir, p)
}

// CatalogPath returns the broker catalog location.
func (s StorageConfig) CatalogPath() string { return s.resolve(s.CatalogFile) }

// ProfilePath returns the user profile location.
func (s StorageConfig) ProfilePath() string { return s.resolve(s.ProfileFile) }

// SessionPath returns the session log location.
func (s StorageConfig) SessionPath() string { return s.resolve(s.SessionFile) }

// EvidencePath returns the evidence image directory.
func (s StorageConfig) EvidencePath() string { return s.resolve(s.EvidenceDir) }
