package extraction

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/providers/scraper"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// Price cross-check thresholds
const (
	PriceRelTolerance = 0.05
	PriceAbsTolerance = 1.0
	NoisePriceCeiling = 10.0 // selector prices below this may be fees
	NoiseOCRFloor     = 20.0 // OCR prices above this may be the real price
)

// extractHybrid runs selectors and checks their prices against OCR.
// With no selector items it defers to vision entirely, which then counts
// as having run for fallback purposes.
func (e *Engine) extractHybrid(ctx context.Context, t Target) ([]types.Item, error) {
	items, err := e.extractSelector(ctx, t)
	if err != nil {
		t.Log.Warn("hybrid selector pass failed", zap.Error(err))
	}
	if len(items) == 0 {
		t.mark(types.MethodVision)
		return e.extractVision(ctx, t)
	}

	prices := ocrPrices(inZone(e.ocrBlocks(ctx, t), t.ZoneInfo))
	field := priceField(t.Understanding.Selectors[t.Zone])
	VerifyPrices(items, field, prices)

	for _, it := range items {
		it[types.KeyMethod] = string(types.MethodHybrid)
	}
	return items, nil
}

// ocrPrices collects every dollar amount in reading order
func ocrPrices(blocks []types.OCRTextBlock) []float64 {
	var out []float64
	for _, b := range blocks {
		for _, s := range scraper.FindPrices(b.Text) {
			if p, ok := scraper.ParsePrice(s); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

// VerifyPrices marks each item's price as verified, corrected or
// unverified against OCR prices. Each OCR price is consumed at most once.
// Items without a numeric price are left untouched.
func VerifyPrices(items []types.Item, field string, ocr []float64) {
	used := make([]bool, len(ocr))

	for _, it := range items {
		p, ok := it[field].(float64)
		if !ok {
			continue
		}

		if i := closestPrice(p, ocr, used); i >= 0 {
			used[i] = true
			it[types.KeyVerification] = types.Verified
			continue
		}

		if i := minUnused(ocr, used); i >= 0 && p < NoisePriceCeiling && ocr[i] > NoiseOCRFloor {
			used[i] = true
			it[field] = ocr[i]
			it[types.KeyVerification] = types.CorrectedFromOCR
			continue
		}

		it[types.KeyVerification] = types.Unverified
	}
}

// closestPrice returns the nearest unused OCR price within tolerance, or -1
func closestPrice(p float64, ocr []float64, used []bool) int {
	best, bestDiff := -1, math.Inf(1)
	for i, o := range ocr {
		if used[i] {
			continue
		}
		diff := math.Abs(p - o)
		if diff > PriceAbsTolerance && diff > PriceRelTolerance*o {
			continue
		}
		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}

func minUnused(ocr []float64, used []bool) int {
	best := -1
	for i, o := range ocr {
		if !used[i] && (best < 0 || o < ocr[best]) {
			best = i
		}
	}
	return best
}
