package extraction

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/providers/ocr"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/llmjson"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// MaxVisionBlocks bounds how many text blocks go into one vision prompt
const MaxVisionBlocks = 400

// extractVision reads zone text blocks in reading order through the model
func (e *Engine) extractVision(ctx context.Context, t Target) ([]types.Item, error) {
	blocks := e.ocrBlocks(ctx, t)
	if len(blocks) == 0 {
		blocks = domBlocks(ctx, t)
	}
	blocks = inZone(blocks, t.ZoneInfo)
	if len(blocks) == 0 {
		return nil, nil
	}
	if len(blocks) > MaxVisionBlocks {
		blocks = blocks[:MaxVisionBlocks]
	}

	content, err := e.complete(ctx, visionPrompt(t.Goal, t.Zone, blocks))
	if err != nil {
		return nil, err
	}
	return toItems(llmjson.Items(content), types.MethodVision), nil
}

// ocrBlocks runs OCR on a page screenshot. Any failure yields nil.
func (e *Engine) ocrBlocks(ctx context.Context, t Target) []types.OCRTextBlock {
	if e.ocr == nil {
		return nil
	}
	path, err := t.Page.Screenshot(ctx)
	if err != nil {
		t.Log.Debug("screenshot unavailable", zap.Error(err))
		return nil
	}
	if _, err := ocr.CheckImage(path); err != nil {
		t.Log.Warn("screenshot rejected", zap.String("path", path), zap.Error(err))
		return nil
	}
	blocks, err := e.ocr.DetectText(ctx, path)
	if err != nil {
		t.Log.Warn("ocr failed", zap.Error(err))
		return nil
	}
	return blocks
}

// domBlocks turns text-bearing DOM elements into pseudo OCR blocks
func domBlocks(ctx context.Context, t Target) []types.OCRTextBlock {
	els, err := t.Page.TextElements(ctx)
	if err != nil {
		t.Log.Debug("text elements unavailable", zap.Error(err))
		return nil
	}
	out := make([]types.OCRTextBlock, 0, len(els))
	for _, el := range els {
		if el.Text == "" {
			continue
		}
		out = append(out, types.OCRTextBlock{Text: el.Text, Bounds: el.Bounds, Confidence: 1})
	}
	return out
}

// inZone keeps blocks centered inside the zone and sorts them top to
// bottom, then left to right. A zone without bounds keeps everything.
func inZone(blocks []types.OCRTextBlock, zone *types.Zone) []types.OCRTextBlock {
	out := make([]types.OCRTextBlock, 0, len(blocks))
	for _, b := range blocks {
		if zone != nil && zone.Bounds != nil && !zone.Bounds.Contains(b.Bounds) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Bounds.Top != out[j].Bounds.Top {
			return out[i].Bounds.Top < out[j].Bounds.Top
		}
		return out[i].Bounds.Left < out[j].Bounds.Left
	})
	return out
}

// toItems converts parsed objects, dropping empty ones and model-supplied
// reserved keys
func toItems(objs []map[string]any, m types.Method) []types.Item {
	items := make([]types.Item, 0, len(objs))
	for _, obj := range objs {
		delete(obj, types.KeyConfidence)
		delete(obj, types.KeyVerification)
		if len(obj) == 0 {
			continue
		}
		it := types.Item(obj)
		it[types.KeyMethod] = string(m)
		items = append(items, it)
	}
	return items
}
