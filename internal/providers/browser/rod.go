package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// ChromeConfig selects a remote DevTools endpoint or a local launch
type ChromeConfig struct {
	RemoteURL  string // empty launches a local Chrome
	Headless   bool
	NavTimeout time.Duration
	Logger     *zap.Logger
}

// Chrome owns one browser connection
type Chrome struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	cfg     ChromeConfig
	log     *zap.Logger
}

// Connect attaches to (or launches) Chrome
func Connect(ctx context.Context, cfg ChromeConfig) (*Chrome, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	log := cfg.Logger.Named("chrome")

	c := &Chrome{cfg: cfg, log: log}
	wsURL := cfg.RemoteURL
	if wsURL == "" {
		c.lnch = launcher.New().Headless(cfg.Headless)
		u, err := c.lnch.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		log.Info("launched local chrome", zap.String("url", wsURL))
	} else {
		log.Info("connecting to remote chrome", zap.String("url", wsURL))
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		c.killLauncher()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	c.browser = b
	return c, nil
}

// Open navigates a new tab to rawURL and waits for load
func (c *Chrome) Open(ctx context.Context, rawURL string) (*RodPage, error) {
	page, err := c.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(rawURL); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", rawURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		c.log.Warn("wait load timeout", zap.String("url", rawURL), zap.Error(err))
	}
	return &RodPage{page: page, url: rawURL, log: c.log}, nil
}

// Close disconnects and stops a launched Chrome
func (c *Chrome) Close() error {
	var err error
	if c.browser != nil {
		err = c.browser.Close()
	}
	c.killLauncher()
	return err
}

func (c *Chrome) killLauncher() {
	if c.lnch != nil {
		c.lnch.Kill()
		c.lnch = nil
	}
}

// snapshotScript stamps rendered geometry into data-bounds, serializes the
// document, then removes the stamps again
const snapshotScript = `() => {
  const els = document.body ? Array.from(document.body.querySelectorAll('*')) : [];
  const sx = window.scrollX, sy = window.scrollY;
  for (const el of els) {
    const r = el.getBoundingClientRect();
    el.setAttribute('data-bounds', [r.top + sy, r.left + sx, r.width, r.height].map(Math.round).join(','));
  }
  const html = document.documentElement.outerHTML;
  for (const el of els) el.removeAttribute('data-bounds');
  return JSON.stringify({html: html, width: window.innerWidth});
}`

type snapshotResult struct {
	HTML  string  `json:"html"`
	Width float64 `json:"width"`
}

// RodPage is a live Chrome tab. Queries run against a snapshot of the
// rendered DOM that carries real geometry; Evaluate and Screenshot hit the
// live page.
type RodPage struct {
	page *rod.Page
	url  string
	log  *zap.Logger

	mu          sync.Mutex
	snap        *StaticPage
	screenshots []string
}

// NewRodPage wraps an already navigated rod page
func NewRodPage(page *rod.Page, rawURL string, log *zap.Logger) *RodPage {
	if log == nil {
		log = zap.NewNop()
	}
	return &RodPage{page: page, url: rawURL, log: log}
}

// URL returns the address the tab was opened on
func (p *RodPage) URL() string {
	return p.url
}

// Refresh drops the cached snapshot so the next query re-reads the DOM
func (p *RodPage) Refresh() {
	p.mu.Lock()
	p.snap = nil
	p.mu.Unlock()
}

func (p *RodPage) snapshot(ctx context.Context) (*StaticPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap != nil {
		return p.snap, nil
	}

	res, err := p.page.Context(ctx).Eval(snapshotScript)
	if err != nil {
		return nil, fmt.Errorf("browser: snapshot: %w", err)
	}
	var s snapshotResult
	if err := sonic.UnmarshalString(res.Value.Str(), &s); err != nil {
		return nil, fmt.Errorf("browser: decode snapshot: %w", err)
	}

	sp, err := ParseStaticPage(p.url, []byte(s.HTML), "text/html; charset=utf-8", WithViewportWidth(s.Width))
	if err != nil {
		return nil, err
	}
	p.snap = sp
	return sp, nil
}

// StructureSummary digests the rendered DOM
func (p *RodPage) StructureSummary(ctx context.Context) (*types.PageContext, error) {
	sp, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sp.StructureSummary(ctx)
}

// SampleZoneHTML samples a zone from the rendered DOM
func (p *RodPage) SampleZoneHTML(ctx context.Context, anchors []string) (*types.ZoneSample, error) {
	sp, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sp.SampleZoneHTML(ctx, anchors)
}

// QueryElements snapshots matches with rendered bounds
func (p *RodPage) QueryElements(ctx context.Context, selector string) ([]types.DOMElement, error) {
	sp, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sp.QueryElements(ctx, selector)
}

// ItemFields reads field values from the rendered DOM
func (p *RodPage) ItemFields(ctx context.Context, itemSelector string, fields map[string]types.FieldSelector) ([]map[string]string, error) {
	sp, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sp.ItemFields(ctx, itemSelector, fields)
}

// TextElements returns text-owning elements with rendered bounds
func (p *RodPage) TextElements(ctx context.Context) ([]types.DOMElement, error) {
	sp, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sp.TextElements(ctx)
}

// Links returns anchors from the rendered DOM
func (p *RodPage) Links(ctx context.Context, anchors []string) ([]types.Link, error) {
	sp, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sp.Links(ctx, anchors)
}

// HTML returns rendered outer HTML
func (p *RodPage) HTML(ctx context.Context, anchors []string) (string, error) {
	sp, err := p.snapshot(ctx)
	if err != nil {
		return "", err
	}
	return sp.HTML(ctx, anchors)
}

// Evaluate runs the function body in the live page
func (p *RodPage) Evaluate(ctx context.Context, script string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	res, err := p.page.Context(ctx).Eval("(args) => {\n"+script+"\n}", args)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return res.Value.Val(), nil
}

// Screenshot captures the full page to a temp PNG
func (p *RodPage) Screenshot(ctx context.Context) (string, error) {
	data, err := p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return "", fmt.Errorf("browser: screenshot: %w", err)
	}

	path := filepath.Join(os.TempDir(), "pagesense-"+uuid.NewString()+".png")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("browser: write screenshot: %w", err)
	}

	p.mu.Lock()
	p.screenshots = append(p.screenshots, path)
	p.mu.Unlock()
	return path, nil
}

// Close closes the tab and removes screenshots it wrote
func (p *RodPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.screenshots {
		if err := os.Remove(s); err != nil && !os.IsNotExist(err) {
			p.log.Warn("remove screenshot", zap.String("path", s), zap.Error(err))
		}
	}
	p.screenshots = nil
	if p.snap != nil {
		_ = p.snap.Close()
	}
	return p.page.Close()
}

var (
	_ Page = (*StaticPage)(nil)
	_ Page = (*RodPage)(nil)
)
