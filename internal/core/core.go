// Package core wires the fingerprint, cache, understanding pipeline and
// extraction engine into one context object.
package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/domain/cache"
	"github.com/GriffinCanCode/PageSense/backend/internal/domain/crossval"
	"github.com/GriffinCanCode/PageSense/backend/internal/domain/extraction"
	"github.com/GriffinCanCode/PageSense/backend/internal/domain/fingerprint"
	"github.com/GriffinCanCode/PageSense/backend/internal/domain/understanding"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/browser"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/llm"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/ocr"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// Options configures a Core. Nil collaborators are built from Config.
type Options struct {
	Config    *config.Config
	Completer llm.Completer
	Detector  ocr.Detector
	Logger    *logging.Logger
	Metrics   *monitoring.Metrics
	Tracer    *tracing.Tracer // nil disables spans
	Now       func() time.Time
}

// Core owns the cache and both pipelines
type Core struct {
	Cache    *cache.Store
	Pipeline *understanding.Pipeline
	Engine   *extraction.Engine
	Metrics  *monitoring.Metrics

	cfg      *config.Config
	log      *zap.Logger
	tracer   *tracing.Tracer
	breakers []breakerReporter
}

// breakerReporter is implemented by remote clients guarded by a breaker
type breakerReporter interface {
	Breaker() resilience.Snapshot
}

// Stats is the admin view of the core
type Stats struct {
	Cache    cache.Stats                `json:"cache"`
	Metrics  monitoring.MetricsSnapshot `json:"metrics"`
	Breakers []resilience.Snapshot      `json:"breakers,omitempty"`
}

// New builds a Core
func New(opts Options) (*Core, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	completer := opts.Completer
	if completer == nil {
		var err error
		if completer, err = NewCompleter(cfg.LLM, logger.Component("llm")); err != nil {
			return nil, err
		}
	}
	detector := opts.Detector
	if detector == nil && cfg.OCR.Endpoint != "" {
		detector = ocr.NewHTTPDetector(cfg.OCR.Endpoint, cfg.OCR.Timeout.Std(), logger.Component("ocr"))
	}

	store := cache.New(cache.Options{
		Dir:            cfg.Cache.Dir,
		MemoryCapacity: cfg.Cache.MemoryCapacity,
		MaxAge:         cfg.Cache.MaxAge.Std(),
		DomainCap:      cfg.Cache.DomainCap,
		SweepThreshold: cfg.Cache.SweepThreshold,
		Logger:         logger.Logger,
		Metrics:        metrics,
		Now:            opts.Now,
	})

	pipeline := understanding.New(understanding.Options{
		Completer:   completer,
		Logger:      logger.Logger,
		Metrics:     metrics,
		Temperature: cfg.LLM.Temperature,
		Now:         opts.Now,
	})

	cv := cfg.CrossValidation
	engine := extraction.New(extraction.Config{
		Completer:     completer,
		Detector:      detector,
		Logger:        logger.Logger,
		Metrics:       metrics,
		FallbackScale: cfg.Extraction.FallbackScale,
		ProseMaxChars: cfg.Extraction.ProseMaxChars,
		LinkCap:       cfg.Extraction.LinkCap,
		Temperature:   cfg.LLM.Temperature,
		Validator: &crossval.Validator{
			OverlapThreshold:     cv.OverlapThreshold,
			AgreementBoost:       cv.AgreementBoost,
			OCROnlyFloor:         cv.OCROnlyFloor,
			DOMOnlyFloor:         cv.DOMOnlyFloor,
			PositionTolerancePx:  cv.PositionTolerancePx,
			PositionTolerancePct: cv.PositionTolerancePct,
			Metrics:              metrics,
		},
	})

	c := &Core{
		Cache:    store,
		Pipeline: pipeline,
		Engine:   engine,
		Metrics:  metrics,
		cfg:      cfg,
		log:      logger.Component("core"),
		tracer:   opts.Tracer,
	}
	for _, remote := range []any{completer, detector} {
		if r, ok := remote.(breakerReporter); ok {
			c.breakers = append(c.breakers, r)
		}
	}
	return c, nil
}

// NewCompleter builds the configured completion client
func NewCompleter(cfg config.LLMConfig, log *zap.Logger) (llm.Completer, error) {
	lc := llm.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxRetries:  cfg.MaxRetries,
		RPS:         cfg.RPS,
	}
	switch cfg.Provider {
	case "http":
		return llm.NewHTTPClient(lc, cfg.Timeout.Std(), log), nil
	case "openai":
		return llm.NewOpenAIClient(lc, cfg.Timeout.Std(), log), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// Fingerprint keys a page by its URL and structure summary. A page whose
// summary fails is keyed by URL alone.
func (c *Core) Fingerprint(ctx context.Context, page browser.Page) string {
	pc, err := page.StructureSummary(ctx)
	if err != nil {
		c.log.Warn("structure summary failed, keying by url", zap.String("url", page.URL()), zap.Error(err))
		return fingerprint.Fingerprint(page.URL(), nil)
	}
	return fingerprint.Fingerprint(page.URL(), &pc.Structure)
}

// Understand returns the cached understanding for a page, running the
// pipeline at most once per fingerprint. When a completion is cut short the
// best-effort result is returned uncached with an ErrInterrupted error.
func (c *Core) Understand(ctx context.Context, page browser.Page, goal types.Goal) (u *types.PageUnderstanding, err error) {
	span, ctx := c.tracer.StartSpan(ctx, "understand")
	defer func() { c.tracer.End(span, err) }()

	key := c.Fingerprint(ctx, page)
	span.SetTag("fingerprint", key)

	var degraded *types.PageUnderstanding
	u, err = c.Cache.GetOrCompute(ctx, key, func(ctx context.Context) (*types.PageUnderstanding, error) {
		u, err := c.Pipeline.Attempt(ctx, page, goal)
		u.CacheFingerprint = key
		if err != nil {
			degraded = u
			return nil, err
		}
		return u, nil
	})
	// degraded is written before the compute result is delivered, so it is
	// only read once the error says the compute itself finished
	if errors.Is(err, understanding.ErrInterrupted) && degraded != nil {
		c.log.Warn("serving uncached understanding", zap.String("fingerprint", key), zap.Error(err))
		return degraded, err
	}
	return u, err
}

// Refresh drops any cached understanding for the page and recomputes it
func (c *Core) Refresh(ctx context.Context, page browser.Page, goal types.Goal) (*types.PageUnderstanding, error) {
	c.Cache.Invalidate(ctx, c.Fingerprint(ctx, page))
	return c.Understand(ctx, page, goal)
}

// Extract pulls items from a zone of an understood page
func (c *Core) Extract(ctx context.Context, page browser.Page, u *types.PageUnderstanding, zone string, goal types.Goal) (items []types.Item, err error) {
	span, ctx := c.tracer.StartSpan(ctx, "extract")
	span.SetTag("zone", zone)
	defer func() {
		span.SetTag("items", strconv.Itoa(len(items)))
		c.tracer.End(span, err)
	}()

	return c.Engine.Extract(ctx, page, u, zone, extraction.Options{Goal: goal})
}

// Run understands a page and extracts its primary zone. An interrupted
// understanding is still extracted from and its error returned alongside.
func (c *Core) Run(ctx context.Context, page browser.Page, goal types.Goal) (*types.PageUnderstanding, []types.Item, error) {
	u, err := c.Understand(ctx, page, goal)
	if u == nil {
		return nil, nil, err
	}
	items, xerr := c.Extract(ctx, page, u, "", goal)
	if xerr != nil {
		return u, nil, xerr
	}
	return u, items, err
}

// Stats reports cache occupancy and counters
func (c *Core) Stats() Stats {
	st := Stats{
		Cache:   c.Cache.Stats(),
		Metrics: c.Metrics.Snapshot(),
	}
	for _, r := range c.breakers {
		st.Breakers = append(st.Breakers, r.Breaker())
	}
	return st
}

// Config returns the configuration the core was built with
func (c *Core) Config() *config.Config {
	return c.cfg
}

// Tracer returns the span tracer, nil when tracing is off
func (c *Core) Tracer() *tracing.Tracer {
	return c.tracer
}
