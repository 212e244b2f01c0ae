package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const defaultRenderTimeout = 45 * time.Second

// RodRendererConfig configures RodRenderer.
type RodRendererConfig struct {
	Enabled bool
	// ControlURL points at a running Chromium DevTools endpoint. Empty launches a local headless browser.
	ControlURL string
	Timeout    time.Duration
}

// RodRenderer prints HTML to PDF through headless Chromium.
type RodRenderer struct {
	cfg     RodRendererConfig
	connect func(ctx context.Context) (*rod.Browser, func(), error)
}

// NewRodRenderer builds a renderer. A disabled renderer returns ErrChannelUnconfigured.
func NewRodRenderer(cfg RodRendererConfig) *RodRenderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRenderTimeout
	}
	cfg.ControlURL = strings.TrimSpace(cfg.ControlURL)
	r := &RodRenderer{cfg: cfg}
	r.connect = r.dial
	return r
}

// Configured reports whether rendering is enabled.
func (r *RodRenderer) Configured() bool {
	return r != nil && r.cfg.Enabled
}

// RenderPDF loads html into a fresh page and prints it with backgrounds.
func (r *RodRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	if !r.Configured() {
		return nil, ErrChannelUnconfigured
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	browser, release, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("notify: open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("notify: load invoice html: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("notify: wait for invoice: %w", err)
	}
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("notify: print pdf: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("notify: read pdf: %w", err)
	}
	return data, nil
}

func (r *RodRenderer) dial(ctx context.Context) (*rod.Browser, func(), error) {
	controlURL := r.cfg.ControlURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().Headless(true).Leakless(false).Context(ctx)
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("notify: launch browser: %w", err)
		}
		controlURL = u
	}
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, nil, fmt.Errorf("notify: connect browser: %w", err)
	}
	if l == nil {
		// A shared browser must survive this render, so work in a disposable context.
		incognito, err := browser.Incognito()
		if err != nil {
			return nil, nil, fmt.Errorf("notify: browser context: %w", err)
		}
		return incognito, func() { _ = incognito.Close() }, nil
	}
	release := func() {
		_ = browser.Close()
		l.Kill()
	}
	return browser, release, nil
}
