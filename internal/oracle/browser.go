package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/matt-meaningfulgigs/data-killer/internal/config"
)

// Browser is the network-backed oracle: a Rod-driven Chrome page for
// navigation and screenshots, and an HTTP completion endpoint that reads the
// page image and either extracts facts or performs actions through the
// browser bridge.
type Browser struct {
	oracleCfg  config.OracleConfig
	browserCfg config.BrowserConfig
	logger     *slog.Logger

	http    *resty.Client
	browser *rod.Browser
	page    *rod.Page
}

// NewBrowser builds an unstarted browser-backed oracle.
func NewBrowser(cfg config.Config, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().SetTimeout(cfg.Oracle.Timeout())
	if key := cfg.Oracle.APIKey(); key != "" {
		client.SetAuthToken(key)
	}
	return &Browser{
		oracleCfg:  cfg.Oracle,
		browserCfg: cfg.Browser,
		logger:     logger,
		http:       client,
	}
}

// Start connects to an existing Chrome or launches a new one, then opens the
// single incognito page the whole run shares.
func (b *Browser) Start(ctx context.Context) error {
	controlURL := b.browserCfg.DebuggerURL
	if controlURL == "" && len(b.browserCfg.Launch) > 0 {
		bin := b.browserCfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(b.browserCfg.IsHeadless())
		for _, rawFlag := range b.browserCfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			// Fallback: let Rod pick the port and defaults.
			fallback := launcher.New().Bin(bin).Headless(b.browserCfg.IsHeadless())
			alt, altErr := fallback.Launch()
			if altErr != nil {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
			url = alt
		}
		controlURL = url
	}

	if controlURL == "" {
		return errors.New("no debugger_url or launch command provided")
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	incognito, err := browser.Incognito()
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             b.browserCfg.Width(),
		Height:            b.browserCfg.Height(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		b.logger.Warn("failed to set viewport", "error", err)
	}

	b.browser = browser
	b.page = page
	b.logger.Info("browser connected", "control_url", controlURL)
	return nil
}

// Close shuts down the page and browser.
func (b *Browser) Close() error {
	if b.page != nil {
		_ = b.page.Close()
		b.page = nil
	}
	if b.browser != nil {
		err := b.browser.Close()
		b.browser = nil
		return err
	}
	return nil
}

// Navigate implements Client.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	if b.page == nil {
		return &NavigationError{URL: url, Err: errors.New("browser not started")}
	}
	page := b.page.Context(ctx).Timeout(b.browserCfg.NavTimeout())
	if err := page.Navigate(url); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	b.waitSettle(ctx)
	return nil
}

// waitSettle blocks until the network has been quiet for the configured
// window. Best-effort; a page that never quiets is bounded by the navigation
// timeout.
func (b *Browser) waitSettle(ctx context.Context) {
	if b.page == nil {
		return
	}
	page := b.page.Context(ctx).Timeout(b.browserCfg.NavTimeout())
	wait := page.WaitRequestIdle(b.browserCfg.Settle(), nil, nil, nil)
	wait()
}

// ExtractFacts implements Client.
func (b *Browser) ExtractFacts(ctx context.Context, instruction string, shape Schema) (FactRecord, error) {
	shot, err := b.screenshot(false)
	if err != nil {
		return nil, &ExtractionError{Instruction: instruction, Err: err}
	}

	var reply understandResponse
	resp, err := b.http.R().
		SetContext(ctx).
		SetBody(understandRequest{
			Mode:        "extract",
			Model:       b.oracleCfg.Model,
			Instruction: instruction,
			Schema:      shape.Fields,
			ImageB64:    base64.StdEncoding.EncodeToString(shot),
		}).
		SetResult(&reply).
		Post(b.oracleCfg.Endpoint)
	if err != nil {
		return nil, &ExtractionError{Instruction: instruction, Err: err}
	}
	if resp.IsError() {
		return nil, &ExtractionError{Instruction: instruction, Err: fmt.Errorf("oracle returned %s", resp.Status())}
	}
	if reply.Error != "" {
		return nil, &ExtractionError{Instruction: instruction, Err: errors.New(reply.Error)}
	}

	facts, err := Conform(reply.Facts, shape)
	if err != nil {
		return nil, &ExtractionError{Instruction: instruction, Err: err}
	}
	return facts, nil
}

// PerformAction implements Client. Transport failures are logged and
// swallowed; only context cancellation propagates.
func (b *Browser) PerformAction(ctx context.Context, instruction string) error {
	shot, err := b.screenshot(false)
	if err != nil {
		b.logger.Warn("action issued without page image", "error", err)
	}

	req := understandRequest{
		Mode:        "act",
		Model:       b.oracleCfg.Model,
		Instruction: instruction,
	}
	if len(shot) > 0 {
		req.ImageB64 = base64.StdEncoding.EncodeToString(shot)
	}

	resp, err := b.http.R().SetContext(ctx).SetBody(req).Post(b.oracleCfg.Endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Warn("action call failed; relying on later verification", "error", err)
		return nil
	}
	if resp.IsError() {
		b.logger.Warn("oracle rejected action", "status", resp.Status())
		return nil
	}
	b.waitSettle(ctx)
	return nil
}

// CaptureEvidence implements Client.
func (b *Browser) CaptureEvidence(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &EvidenceError{Err: err}
	}
	shot, err := b.screenshot(true)
	if err != nil {
		return nil, &EvidenceError{Err: err}
	}
	return shot, nil
}

// Complete implements Completer for the outcome analyzer.
func (b *Browser) Complete(ctx context.Context, prompt string, image []byte) (string, error) {
	req := understandRequest{
		Mode:   "complete",
		Model:  b.oracleCfg.Model,
		Prompt: prompt,
	}
	if len(image) > 0 {
		req.ImageB64 = base64.StdEncoding.EncodeToString(image)
	}

	var reply understandResponse
	resp, err := b.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&reply).
		Post(b.oracleCfg.Endpoint)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("oracle returned %s", resp.Status())
	}
	if reply.Error != "" {
		return "", errors.New(reply.Error)
	}
	return reply.Text, nil
}

func (b *Browser) screenshot(fullPage bool) ([]byte, error) {
	if b.page == nil {
		return nil, errors.New("browser not started")
	}
	return b.page.Screenshot(fullPage, nil)
}

type understandRequest struct {
	Mode        string  `json:"mode"`
	Model       string  `json:"model,omitempty"`
	Instruction string  `json:"instruction,omitempty"`
	Prompt      string  `json:"prompt,omitempty"`
	Schema      []Field `json:"schema,omitempty"`
	ImageB64    string  `json:"image_base64,omitempty"`
}

type understandResponse struct {
	Facts map[string]any `json:"facts,omitempty"`
	Text  string         `json:"text,omitempty"`
	Error string         `json:"error,omitempty"`
}
