package extraction

import (
	"context"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/domain/crossval"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/browser"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// Report is the result of ExtractAndValidate
type Report struct {
	Items   []types.Item        `json:"items"`
	Matches []types.MatchedItem `json:"matches,omitempty"`
	Summary crossval.Summary    `json:"summary"`
}

// ExtractAndValidate runs Extract and, when OCR blocks are supplied, checks
// every item's fields against OCR and DOM text. An item's confidence becomes
// the mean confidence of its validated fields; items with no validated
// field keep their confidence.
func (e *Engine) ExtractAndValidate(ctx context.Context, page browser.Page, u *types.PageUnderstanding, zoneType string, opts Options, ocrBlocks []types.OCRTextBlock) (*Report, error) {
	items, err := e.Extract(ctx, page, u, zoneType, opts)
	if err != nil {
		return nil, err
	}
	report := &Report{Items: items}
	if len(ocrBlocks) == 0 {
		return report, nil
	}

	zone, _ := Resolve(u, zoneType)
	var zoneInfo *types.Zone
	if z, ok := u.ZoneByType(zone); ok {
		zoneInfo = z
	}

	dom, err := page.TextElements(ctx)
	if err != nil {
		e.log.Warn("dom text unavailable for validation", zap.Error(err))
	}
	dom = domInZone(dom, zoneInfo)
	ocr := inZone(ocrBlocks, zoneInfo)

	v := e.validator(extent(ocr, dom))
	report.Matches = v.FindMatches(ocr, dom)
	report.Summary = crossval.Summarize(report.Matches)

	price := priceField(u.Selectors[zone])
	for _, it := range items {
		var sum float64
		n := 0
		for key, val := range it {
			if strings.HasPrefix(key, "_") || key == types.KeyExtractedLinks {
				continue
			}
			s, ok := fieldText(val)
			if !ok {
				continue
			}
			valueType := ""
			if key == price {
				valueType = "price"
			}
			if r := v.ValidateExtraction(s, ocr, dom, valueType); r.Valid {
				sum += r.Confidence
				n++
			}
		}
		if n > 0 {
			it[types.KeyConfidence] = sum / float64(n)
		}
	}
	return report, nil
}

// validator copies the configured thresholds for one page size
func (e *Engine) validator(w, h float64) *crossval.Validator {
	v := crossval.New(w, h)
	if e.cfg.Validator != nil {
		c := *e.cfg.Validator
		c.PageWidth, c.PageHeight = w, h
		v = &c
	}
	if v.Metrics == nil {
		v.Metrics = e.metrics
	}
	return v
}

func fieldText(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, strings.TrimSpace(val) != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	}
	return "", false
}

func domInZone(dom []types.DOMElement, zone *types.Zone) []types.DOMElement {
	if zone == nil || zone.Bounds == nil {
		return dom
	}
	out := make([]types.DOMElement, 0, len(dom))
	for _, d := range dom {
		if zone.Bounds.Contains(d.Bounds) {
			out = append(out, d)
		}
	}
	return out
}

// extent is the bottom-right corner covering every block and element
func extent(ocr []types.OCRTextBlock, dom []types.DOMElement) (float64, float64) {
	var w, h float64
	for _, o := range ocr {
		w, h = math.Max(w, o.Bounds.Right()), math.Max(h, o.Bounds.Bottom())
	}
	for _, d := range dom {
		w, h = math.Max(w, d.Bounds.Right()), math.Max(h, d.Bounds.Bottom())
	}
	return w, h
}
