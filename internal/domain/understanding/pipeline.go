package understanding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/domain/fingerprint"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/browser"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/llm"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/scraper"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/id"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// Token budgets per phase
const (
	zonesMaxTokens      = 2000
	selectorsMaxTokens  = 1200
	strategiesMaxTokens = 1200
)

// NoZonesNote explains the whole-page fallback
const NoZonesNote = "no zones identified; whole page extracted as prose"

// ErrInterrupted marks an understanding built after a completion call was
// cancelled or timed out. The value is usable but must not be cached.
var ErrInterrupted = errors.New("understanding interrupted")

// Options configures a Pipeline
type Options struct {
	Completer   llm.Completer
	Logger      *zap.Logger
	Metrics     *monitoring.Metrics
	Temperature float64
	Now         func() time.Time
}

// Pipeline turns a page into a PageUnderstanding in three model calls:
// zones, selectors, strategies
type Pipeline struct {
	llm       llm.Completer
	log       *zap.Logger
	metrics   *monitoring.Metrics
	temp      float64
	now       func() time.Time
	sanitizer *bluemonday.Policy
}

// New creates a Pipeline
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		llm:       opts.Completer,
		log:       opts.Logger.Named("understanding"),
		metrics:   opts.Metrics,
		temp:      opts.Temperature,
		now:       opts.Now,
		sanitizer: scraper.StructurePolicy(),
	}
}

// zonesResult is the phase 1 wire format
type zonesResult struct {
	PageType       string       `json:"page_type"`
	HasProducts    bool         `json:"has_products"`
	HasListContent bool         `json:"has_list_content"`
	Zones          []types.Zone `json:"zones"`
}

// strategiesResult is the phase 3 wire format
type strategiesResult struct {
	Strategies []struct {
		Zone       string  `json:"zone"`
		Method     string  `json:"method"`
		Confidence float64 `json:"confidence"`
		Fallback   *string `json:"fallback"`
		Reason     string  `json:"reason"`
	} `json:"strategies"`
	PrimaryZone string   `json:"primary_zone"`
	SkipZones   []string `json:"skip_zones"`
}

// run carries per-call state through the phases
type run struct {
	log *zap.Logger
	cut error // first cancellation or timeout seen
}

// note keeps err if it means the call was cut short rather than answered
func (r *run) note(err error) {
	if r.cut == nil && interrupted(err) {
		r.cut = err
	}
}

func interrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Understand runs every phase. It never fails: each phase degrades to an
// empty or heuristic result and the reason is logged.
func (p *Pipeline) Understand(ctx context.Context, page browser.Page, goal types.Goal) *types.PageUnderstanding {
	u, _ := p.Attempt(ctx, page, goal)
	return u
}

// Attempt is Understand for callers that cache the result. The
// understanding is always non-nil; the error wraps ErrInterrupted when a
// completion call was cancelled or timed out, so the value is degraded
// by a transient condition rather than by the page itself.
func (p *Pipeline) Attempt(ctx context.Context, page browser.Page, goal types.Goal) (*types.PageUnderstanding, error) {
	r := &run{}
	u := p.understand(ctx, r, page, goal)
	if r.cut != nil {
		r.log.Warn("understanding interrupted", zap.Error(r.cut))
		return u, fmt.Errorf("%w: %w", ErrInterrupted, r.cut)
	}
	return u, nil
}

func (p *Pipeline) understand(ctx context.Context, r *run, page browser.Page, goal types.Goal) *types.PageUnderstanding {
	runID := id.NewRunID()
	log := p.log.With(zap.String("run", runID.String()), zap.String("url", page.URL()))
	r.log = log
	start := p.now()

	u := &types.PageUnderstanding{
		URL:       page.URL(),
		Domain:    fingerprint.Domain(page.URL()),
		CreatedAt: start,
	}

	pc, err := page.StructureSummary(ctx)
	if err != nil {
		r.note(err)
		log.Warn("structure summary failed", zap.Error(err))
		pc = &types.PageContext{URL: page.URL()}
	}

	zr := p.identifyZones(ctx, r, pc)
	u.PageType = zr.PageType
	u.Zones = p.resolveZoneBounds(ctx, page, zr.Zones)
	u.HasProducts = zr.HasProducts
	u.HasListContent = zr.HasListContent
	for _, z := range u.Zones {
		switch {
		case z.ZoneType == types.ZoneProductGrid || z.ZoneType == types.ZoneProductDetail:
			u.HasProducts = true
			u.HasListContent = u.HasListContent || z.ZoneType == types.ZoneProductGrid
		case z.ZoneType.IsCommerceOrListing():
			u.HasListContent = true
		}
	}

	p.collectNotices(ctx, log, page, u)

	if len(u.Zones) == 0 {
		u.Selectors = map[types.ZoneType]types.ZoneSelectors{}
		u.Strategies = []types.ExtractionStrategy{{
			Zone:       string(types.ZonePage),
			Method:     types.MethodProse,
			Confidence: 0.3,
			Reason:     "no zones",
		}}
		u.PrimaryZone = string(types.ZonePage)
		u.SkipZones = []types.ZoneType{}
		u.Notes = append(u.Notes, NoZonesNote)
		log.Info("understanding complete", zap.Int("zones", 0), zap.Duration("duration", p.now().Sub(start)))
		return u
	}

	u.Selectors = p.generateSelectors(ctx, r, page, u.Zones, goal)
	p.selectStrategies(ctx, r, u, goal)

	if bad := u.Validate(); len(bad) > 0 {
		// selectStrategies repairs references; anything left is a bug
		log.Error("strategies reference unknown zones", zap.Int("count", len(bad)))
	}

	log.Info("understanding complete",
		zap.String("page_type", u.PageType),
		zap.Int("zones", len(u.Zones)),
		zap.Int("selectors", len(u.Selectors)),
		zap.String("primary_zone", u.PrimaryZone),
		zap.Duration("duration", p.now().Sub(start)))
	return u
}

// complete calls the model and records interruptions on r
func (p *Pipeline) complete(ctx context.Context, r *run, prompt string, maxTokens int) (string, error) {
	if p.llm == nil {
		return "", errors.New("no completer configured")
	}
	resp, err := p.llm.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: p.temp,
		JSONMode:    true,
	})
	if err != nil {
		r.note(err)
		return "", err
	}
	return resp.Content, nil
}

// identifyZones is phase 1. Any failure yields no zones.
func (p *Pipeline) identifyZones(ctx context.Context, r *run, pc *types.PageContext) zonesResult {
	timer := monitoring.NewTimer(p.metrics, "zones")
	log := r.log

	raw, err := p.complete(ctx, r, zonesPrompt(pc), zonesMaxTokens)
	if err != nil {
		timer.Stop("error")
		log.Warn("zone identification failed", zap.Error(err))
		return zonesResult{}
	}

	var zr zonesResult
	stage, err := decodeValidated(raw, zonesSchema, &zr)
	if err != nil {
		timer.Stop("invalid")
		log.Warn("zone output rejected", zap.Stringer("stage", stage), zap.Error(err))
		return zonesResult{}
	}

	zones := make([]types.Zone, 0, len(zr.Zones))
	for _, z := range zr.Zones {
		z.ZoneType = types.ParseZoneType(string(z.ZoneType))
		z.DOMAnchors = cleanAnchors(z.DOMAnchors)
		z.Confidence = clamp01(z.Confidence)
		zones = append(zones, z)
	}
	zr.Zones = zones

	timer.Stop("ok")
	log.Debug("zones identified", zap.Int("zones", len(zones)), zap.Stringer("stage", stage))
	return zr
}

// resolveZoneBounds fills missing bounds from the first anchor that matches
func (p *Pipeline) resolveZoneBounds(ctx context.Context, page browser.Page, zones []types.Zone) []types.Zone {
	for i := range zones {
		if zones[i].Bounds != nil {
			continue
		}
		for _, a := range zones[i].DOMAnchors {
			els, err := page.QueryElements(ctx, a)
			if err != nil || len(els) == 0 {
				continue
			}
			b := els[0].Bounds
			for _, e := range els[1:] {
				b = union(b, e.Bounds)
			}
			zones[i].Bounds = &b
			break
		}
	}
	return zones
}

func union(a, b types.Bounds) types.Bounds {
	top, left := min(a.Top, b.Top), min(a.Left, b.Left)
	return types.Bounds{
		Top:    top,
		Left:   left,
		Width:  max(a.Right(), b.Right()) - left,
		Height: max(a.Bottom(), b.Bottom()) - top,
	}
}

// generateSelectors is phase 2. Zones whose anchors match nothing get no
// selectors.
func (p *Pipeline) generateSelectors(ctx context.Context, r *run, page browser.Page, zones []types.Zone, goal types.Goal) map[types.ZoneType]types.ZoneSelectors {
	timer := monitoring.NewTimer(p.metrics, "selectors")
	log := r.log
	out := make(map[types.ZoneType]types.ZoneSelectors)

	for _, z := range zones {
		if _, done := out[z.ZoneType]; done {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.note(err)
			break
		}

		sample, err := page.SampleZoneHTML(ctx, z.DOMAnchors)
		if err != nil {
			log.Debug("no sample for zone", zap.String("zone", string(z.ZoneType)), zap.Error(err))
			continue
		}

		zoneHTML := scraper.TruncateText(p.sanitizer.Sanitize(sample.HTML), browser.MaxSampleBytes)
		sample.ItemSample = scraper.TruncateText(p.sanitizer.Sanitize(sample.ItemSample), browser.MaxSampleBytes)
		if len(sample.TextSamples) > browser.MaxTextSamples {
			sample.TextSamples = sample.TextSamples[:browser.MaxTextSamples]
		}

		raw, err := p.complete(ctx, r, selectorsPrompt(z, sample, zoneHTML, goal), selectorsMaxTokens)
		if err != nil {
			log.Warn("selector generation failed", zap.String("zone", string(z.ZoneType)), zap.Error(err))
			continue
		}

		var zs types.ZoneSelectors
		if _, err := decodeValidated(raw, selectorsSchema, &zs); err != nil {
			log.Warn("selector output rejected", zap.String("zone", string(z.ZoneType)), zap.Error(err))
			continue
		}
		zs.ItemSelector = strings.TrimSpace(zs.ItemSelector)
		if zs.ItemSelector == "" || len(zs.Fields) == 0 {
			continue
		}
		if els, err := page.QueryElements(ctx, zs.ItemSelector); err != nil || len(els) == 0 {
			log.Warn("item selector matches nothing",
				zap.String("zone", string(z.ZoneType)),
				zap.String("selector", zs.ItemSelector))
			continue
		}
		zs.Confidence = clamp01(zs.Confidence)
		out[z.ZoneType] = zs
	}

	timer.Stop("ok")
	return out
}

// selectStrategies is phase 3 with the heuristic as fallback
func (p *Pipeline) selectStrategies(ctx context.Context, r *run, u *types.PageUnderstanding, goal types.Goal) {
	timer := monitoring.NewTimer(p.metrics, "strategies")
	log := r.log

	skip := make([]types.ZoneType, 0)
	for _, z := range u.Zones {
		if z.ZoneType.IsSkipEligible() && !containsZone(skip, z.ZoneType) {
			skip = append(skip, z.ZoneType)
		}
	}

	raw, err := p.complete(ctx, r, strategiesPrompt(u.Zones, u.Selectors, goal), strategiesMaxTokens)
	var sr strategiesResult
	if err == nil {
		_, err = decodeValidated(raw, strategiesSchema, &sr)
	}
	if err != nil {
		timer.Stop("heuristic")
		log.Warn("strategy selection failed, using heuristic", zap.Error(err))
		u.SkipZones = skip
		p.applyHeuristic(u)
		return
	}

	for _, s := range sr.SkipZones {
		z := types.ParseZoneType(s)
		if _, ok := u.ZoneByType(z); ok && !containsZone(skip, z) {
			skip = append(skip, z)
		}
	}
	u.SkipZones = skip

	primary := types.ZoneType(sr.PrimaryZone)
	if _, ok := u.ZoneByType(primary); !ok || u.IsSkipped(primary) {
		primary = HeuristicPrimary(u.Zones, skip)
	}
	u.PrimaryZone = string(primary)

	seen := make(map[string]bool)
	for _, s := range sr.Strategies {
		st := types.ExtractionStrategy{
			Zone:       s.Zone,
			Method:     types.Method(s.Method),
			Confidence: clamp01(s.Confidence),
			Reason:     s.Reason,
		}
		if s.Fallback != nil {
			if fb := types.Method(*s.Fallback); fb.Valid() && fb != st.Method {
				st.Fallback = types.MethodPtr(fb)
			}
		}

		zt := types.ZoneType(st.Zone)
		_, known := u.ZoneByType(zt)
		if !known && zt != types.ZonePage {
			log.Warn("strategy references unknown zone, using heuristic for primary",
				zap.String("zone", st.Zone))
			st = p.heuristicFor(u, primary)
		} else if !st.Method.Valid() {
			log.Warn("strategy has unknown method, using heuristic",
				zap.String("zone", st.Zone), zap.String("method", s.Method))
			st = p.heuristicFor(u, zt)
		}

		if seen[st.Zone] {
			continue
		}
		seen[st.Zone] = true
		u.Strategies = append(u.Strategies, st)
	}

	if !seen[u.PrimaryZone] {
		u.Strategies = append(u.Strategies, p.heuristicFor(u, primary))
	}
	timer.Stop("ok")
}

// applyHeuristic fills strategies for every non-skip zone
func (p *Pipeline) applyHeuristic(u *types.PageUnderstanding) {
	primary := HeuristicPrimary(u.Zones, u.SkipZones)
	u.PrimaryZone = string(primary)
	u.Strategies = nil

	seen := make(map[types.ZoneType]bool)
	for _, z := range u.Zones {
		if seen[z.ZoneType] || u.IsSkipped(z.ZoneType) {
			continue
		}
		seen[z.ZoneType] = true
		u.Strategies = append(u.Strategies, p.heuristicFor(u, z.ZoneType))
	}
	if !seen[primary] {
		u.Strategies = append(u.Strategies, p.heuristicFor(u, primary))
	}
}

func (p *Pipeline) heuristicFor(u *types.PageUnderstanding, zone types.ZoneType) types.ExtractionStrategy {
	if sel, ok := u.Selectors[zone]; ok {
		return HeuristicStrategy(zone, &sel)
	}
	return HeuristicStrategy(zone, nil)
}

func (p *Pipeline) collectNotices(ctx context.Context, log *zap.Logger, page browser.Page, u *types.PageUnderstanding) {
	notices, err := browser.Notices(ctx, page)
	if err != nil {
		log.Debug("notice collection failed", zap.Error(err))
		return
	}
	u.PageNotices = notices
	u.AvailabilityStatus, u.PurchaseConstraints = ClassifyNotices(notices)
}

func cleanAnchors(anchors []string) []string {
	out := make([]string, 0, len(anchors))
	for _, a := range anchors {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return scraper.Deduplicate(out)
}

func clamp01(f float64) float64 {
	return max(0, min(1, f))
}
