// Package extraction pulls items out of a page using a PageUnderstanding.
//
// Four methods are registered by default:
//   - selector: item and field selectors from the understanding
//   - vision: OCR (or DOM) text blocks in reading order, read by the model
//   - hybrid: selector items whose prices are checked against OCR
//   - prose: zone HTML rendered to markdown, read by the model
//
// A strategy's fallback runs once when its method finds nothing; fallback
// items have their confidence scaled down.
package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/domain/crossval"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/browser"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/llm"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/ocr"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/id"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// Defaults for Config
const (
	DefaultFallbackScale = 0.7
	DefaultProseMaxChars = 12000
	DefaultLinkCap       = 50
)

// ErrNoUnderstanding is returned when Extract is called without an understanding
var ErrNoUnderstanding = errors.New("extraction: nil understanding")

// Target is everything an extractor needs for one zone
type Target struct {
	Page          browser.Page
	Understanding *types.PageUnderstanding
	Zone          types.ZoneType
	ZoneInfo      *types.Zone // nil for the whole page
	Goal          types.Goal
	Log           *zap.Logger

	ran map[types.Method]bool // methods already run for this extraction
}

func (t Target) mark(m types.Method) {
	if t.ran != nil {
		t.ran[m] = true
	}
}

// Anchors returns the zone's DOM anchors, empty for the whole page
func (t Target) Anchors() []string {
	if t.ZoneInfo == nil {
		return nil
	}
	return t.ZoneInfo.DOMAnchors
}

// Extractor implements one method
type Extractor func(ctx context.Context, t Target) ([]types.Item, error)

// Config configures an Engine
type Config struct {
	Completer     llm.Completer
	Detector      ocr.Detector // optional
	Logger        *zap.Logger
	Metrics       *monitoring.Metrics
	FallbackScale float64
	ProseMaxChars int
	LinkCap       int
	Temperature   float64
	Validator     *crossval.Validator // thresholds for ExtractAndValidate
}

// Options are per-call settings
type Options struct {
	Goal types.Goal
}

// Engine runs extraction strategies
type Engine struct {
	extractors map[types.Method]Extractor
	llm        llm.Completer
	ocr        ocr.Detector
	md         *converter.Converter
	log        *zap.Logger
	metrics    *monitoring.Metrics
	cfg        Config
}

// New creates an Engine with the four built-in methods registered
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.FallbackScale <= 0 {
		cfg.FallbackScale = DefaultFallbackScale
	}
	if cfg.ProseMaxChars <= 0 {
		cfg.ProseMaxChars = DefaultProseMaxChars
	}
	if cfg.LinkCap <= 0 {
		cfg.LinkCap = DefaultLinkCap
	}

	e := &Engine{
		llm:     cfg.Completer,
		ocr:     cfg.Detector,
		log:     cfg.Logger.Named("extraction"),
		metrics: cfg.Metrics,
		cfg:     cfg,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
	e.extractors = map[types.Method]Extractor{
		types.MethodSelector: e.extractSelector,
		types.MethodVision:   e.extractVision,
		types.MethodHybrid:   e.extractHybrid,
		types.MethodProse:    e.extractProse,
	}
	return e
}

// Register replaces the extractor for a method
func (e *Engine) Register(m types.Method, ex Extractor) {
	e.extractors[m] = ex
}

// defaultStrategy applies when the understanding has none for the zone
var defaultStrategy = types.ExtractionStrategy{
	Method:     types.MethodSelector,
	Fallback:   types.MethodPtr(types.MethodVision),
	Confidence: 0.5,
	Reason:     "default",
}

// Resolve picks the target zone and its strategy. The zone is the explicit
// argument, else the primary zone, else the whole page.
func Resolve(u *types.PageUnderstanding, zoneType string) (types.ZoneType, types.ExtractionStrategy) {
	zone := types.ZoneType(zoneType)
	if zone == "" {
		zone = types.ZoneType(u.PrimaryZone)
	}
	if zone == "" {
		zone = types.ZonePage
	}

	if s, ok := u.StrategyFor(string(zone)); ok {
		return zone, *s
	}
	s := defaultStrategy
	s.Zone = string(zone)
	return zone, s
}

// Extract runs the zone's strategy and at most one fallback. Method
// failures degrade to zero items; only caller cancellation is an error.
func (e *Engine) Extract(ctx context.Context, page browser.Page, u *types.PageUnderstanding, zoneType string, opts Options) ([]types.Item, error) {
	if u == nil {
		return nil, ErrNoUnderstanding
	}
	if opts.Goal == "" {
		opts.Goal = types.GoalProducts
	}

	zone, strat := Resolve(u, zoneType)
	log := e.log.With(
		zap.String("run", id.NewExtractionID().String()),
		zap.String("url", page.URL()),
		zap.String("zone", string(zone)))

	t := Target{Page: page, Understanding: u, Zone: zone, Goal: opts.Goal, Log: log, ran: map[types.Method]bool{}}
	if z, ok := u.ZoneByType(zone); ok {
		t.ZoneInfo = z
	}

	items := e.run(ctx, strat.Method, strat.Confidence, t)
	if len(items) == 0 && strat.Fallback != nil && !t.ran[*strat.Fallback] {
		fb := *strat.Fallback
		log.Info("primary method found nothing, falling back",
			zap.String("method", string(strat.Method)),
			zap.String("fallback", string(fb)))
		e.metrics.RecordFallback(string(strat.Method), string(fb))

		items = e.run(ctx, fb, strat.Confidence, t)
		for _, it := range items {
			if c, ok := it[types.KeyConfidence].(float64); ok {
				it[types.KeyConfidence] = c * e.cfg.FallbackScale
			}
		}
	}

	if len(items) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	log.Debug("extraction complete", zap.Int("items", len(items)))
	return items, nil
}

// run executes one method and stamps method and confidence on its items
func (e *Engine) run(ctx context.Context, m types.Method, confidence float64, t Target) []types.Item {
	ex, ok := e.extractors[m]
	if !ok {
		t.Log.Warn("no extractor registered", zap.String("method", string(m)))
		return nil
	}
	t.mark(m)

	items, err := ex(ctx, t)
	if err != nil {
		t.Log.Warn("extractor failed", zap.String("method", string(m)), zap.Error(err))
		items = nil
	}

	out := items[:0]
	for _, it := range items {
		if len(it) == 0 {
			continue
		}
		if _, ok := it[types.KeyMethod]; !ok {
			it[types.KeyMethod] = string(m)
		}
		if _, ok := it[types.KeyConfidence].(float64); !ok {
			it[types.KeyConfidence] = confidence
		}
		out = append(out, it)
	}
	e.metrics.RecordExtraction(string(m), len(out))
	return out
}

func (e *Engine) complete(ctx context.Context, prompt string) (string, error) {
	if e.llm == nil {
		return "", fmt.Errorf("no completer configured")
	}
	resp, err := e.llm.Complete(ctx, llm.Request{
		System:      extractionSystemPrompt,
		Prompt:      prompt,
		Temperature: e.cfg.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
