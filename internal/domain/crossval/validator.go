// Package crossval checks DOM text against OCR text.
//
// Each OCR block is paired greedily with its best unconsumed DOM element by
// 0.7*text similarity + 0.3*position proximity. Pairs above the overlap
// threshold agree ("both") and earn a confidence boost; leftovers on either
// side are capped at a floor.
package crossval

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// Defaults for a Validator
const (
	DefaultOverlapThreshold     = 0.3
	DefaultAgreementBoost       = 0.15
	DefaultOCROnlyFloor         = 0.60
	DefaultDOMOnlyFloor         = 0.70
	DefaultPositionTolerancePx  = 50
	DefaultPositionTolerancePct = 0.05

	textWeight      = 0.7
	positionWeight  = 0.3
	valueSimilarity = 0.8
)

// Validation sources
const (
	SourceBoth = "both"
	SourceDOM  = "dom"
	SourceOCR  = "ocr"
	SourceNone = "none"
)

// Validator scores agreement between OCR blocks and DOM elements
type Validator struct {
	OverlapThreshold     float64
	AgreementBoost       float64
	OCROnlyFloor         float64
	DOMOnlyFloor         float64
	PositionTolerancePx  float64
	PositionTolerancePct float64
	PageWidth            float64
	PageHeight           float64

	Metrics *monitoring.Metrics
}

// New returns a Validator with default thresholds for a page size
func New(pageWidth, pageHeight float64) *Validator {
	return &Validator{
		OverlapThreshold:     DefaultOverlapThreshold,
		AgreementBoost:       DefaultAgreementBoost,
		OCROnlyFloor:         DefaultOCROnlyFloor,
		DOMOnlyFloor:         DefaultDOMOnlyFloor,
		PositionTolerancePx:  DefaultPositionTolerancePx,
		PositionTolerancePct: DefaultPositionTolerancePct,
		PageWidth:            pageWidth,
		PageHeight:           pageHeight,
	}
}

// Validation is the verdict for one extracted value
type Validation struct {
	Valid      bool    `json:"valid"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// tolerance is max(px, pct of the page diagonal)
func (v *Validator) tolerance() float64 {
	diag := math.Hypot(v.PageWidth, v.PageHeight)
	return math.Max(v.PositionTolerancePx, v.PositionTolerancePct*diag)
}

// proximity is 1 at the same center, 0 at tolerance; ok is false beyond it
func (v *Validator) proximity(a, b types.Bounds) (float64, bool) {
	ax, ay := a.Center()
	bx, by := b.Center()
	dist := floats.Distance([]float64{ax, ay}, []float64{bx, by}, 2)
	tol := v.tolerance()
	if dist > tol || tol <= 0 {
		return 0, false
	}
	return 1 - dist/tol, true
}

// FindMatches pairs OCR blocks with DOM elements. Every input appears in
// exactly one result.
func (v *Validator) FindMatches(ocr []types.OCRTextBlock, dom []types.DOMElement) []types.MatchedItem {
	consumed := make([]bool, len(dom))
	out := make([]types.MatchedItem, 0, len(ocr)+len(dom))

	for i := range ocr {
		block := &ocr[i]
		best, bestScore, bestText, bestPos := -1, -1.0, 0.0, 0.0
		for j := range dom {
			if consumed[j] {
				continue
			}
			pos, ok := v.proximity(block.Bounds, dom[j].Bounds)
			if !ok {
				continue
			}
			text := TextSimilarity(block.Text, dom[j].Text)
			if score := textWeight*text + positionWeight*pos; score > bestScore {
				best, bestScore, bestText, bestPos = j, score, text, pos
			}
		}

		if best >= 0 && bestScore >= v.OverlapThreshold {
			consumed[best] = true
			out = append(out, types.MatchedItem{
				OCR:                block,
				DOM:                &dom[best],
				TextSimilarity:     bestText,
				PositionProximity:  bestPos,
				CombinedConfidence: math.Min(1, block.Confidence+v.AgreementBoost),
				AgreementType:      types.AgreementBoth,
			})
			continue
		}
		out = append(out, types.MatchedItem{
			OCR:                block,
			CombinedConfidence: math.Min(block.Confidence, v.OCROnlyFloor),
			AgreementType:      types.AgreementOCROnly,
		})
	}

	for j := range dom {
		if !consumed[j] {
			out = append(out, types.MatchedItem{
				DOM:                &dom[j],
				CombinedConfidence: v.DOMOnlyFloor,
				AgreementType:      types.AgreementDOMOnly,
			})
		}
	}

	for _, m := range out {
		v.Metrics.RecordAgreement(string(m.AgreementType))
	}
	return out
}

// ValidateExtraction checks one extracted value against both sources.
// valueType "price" compares numbers only.
func (v *Validator) ValidateExtraction(value string, ocr []types.OCRTextBlock, dom []types.DOMElement, valueType string) Validation {
	match := func(text string) bool { return valueMatches(value, text) }
	if valueType == "price" {
		want, ok := firstNumber(value)
		if !ok {
			return Validation{Source: SourceNone}
		}
		match = func(text string) bool { return containsNumber(text, want) }
	}

	inDOM := false
	for _, d := range dom {
		if match(d.Text) {
			inDOM = true
			break
		}
	}
	ocrConf, inOCR := 0.0, false
	for _, o := range ocr {
		if match(o.Text) {
			inOCR = true
			ocrConf = math.Max(ocrConf, o.Confidence)
		}
	}

	switch {
	case inDOM && inOCR:
		return Validation{Valid: true, Confidence: math.Min(1, math.Max(ocrConf, v.DOMOnlyFloor)+v.AgreementBoost), Source: SourceBoth}
	case inDOM:
		return Validation{Valid: true, Confidence: v.DOMOnlyFloor, Source: SourceDOM}
	case inOCR:
		return Validation{Valid: true, Confidence: math.Min(ocrConf, v.OCROnlyFloor), Source: SourceOCR}
	}
	return Validation{Source: SourceNone}
}

// Summary aggregates a match set
type Summary struct {
	MeanConfidence float64 `json:"mean_confidence"`
	Both           int     `json:"both"`
	OCROnly        int     `json:"ocr_only"`
	DOMOnly        int     `json:"dom_only"`
}

// Summarize returns the mean confidence and agreement counts
func Summarize(matches []types.MatchedItem) Summary {
	var s Summary
	if len(matches) == 0 {
		return s
	}
	confs := make([]float64, len(matches))
	for i, m := range matches {
		confs[i] = m.CombinedConfidence
		switch m.AgreementType {
		case types.AgreementBoth:
			s.Both++
		case types.AgreementOCROnly:
			s.OCROnly++
		case types.AgreementDOMOnly:
			s.DOMOnly++
		}
	}
	s.MeanConfidence = stat.Mean(confs, nil)
	return s
}

// TextSimilarity is 1 when one normalized text contains the other, else the
// Jaccard index of their word sets
func TextSimilarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 1
	}

	wa := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		wa[w] = true
	}
	wb := make(map[string]bool)
	for _, w := range strings.Fields(b) {
		wb[w] = true
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func valueMatches(value, text string) bool {
	v, t := normalize(value), normalize(text)
	if v == "" || t == "" {
		return false
	}
	return strings.Contains(t, v) || strings.Contains(v, t) || TextSimilarity(v, t) >= valueSimilarity
}

var number = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return f, err == nil
}

func firstNumber(s string) (float64, bool) {
	m := number.FindString(s)
	if m == "" {
		return 0, false
	}
	return parseNumber(m)
}

func containsNumber(text string, want float64) bool {
	for _, m := range number.FindAllString(text, -1) {
		if f, ok := parseNumber(m); ok && math.Abs(f-want) < 0.005 {
			return true
		}
	}
	return false
}
