package extraction

import (
	"context"
	"slices"
	"strings"

	"github.com/GriffinCanCode/PageSense/backend/internal/providers/scraper"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// extractSelector applies the zone's generated selectors. A zone without
// selectors yields no items.
func (e *Engine) extractSelector(ctx context.Context, t Target) ([]types.Item, error) {
	sel, ok := t.Understanding.Selectors[t.Zone]
	if !ok || sel.ItemSelector == "" || len(sel.Fields) == 0 {
		return nil, nil
	}

	records, err := t.Page.ItemFields(ctx, sel.ItemSelector, sel.Fields)
	if err != nil {
		return nil, err
	}

	items := make([]types.Item, 0, len(records))
	for _, rec := range records {
		item := types.Item{}
		for name, raw := range rec {
			if v, ok := transform(raw, sel.Fields[name].Transform); ok {
				item[name] = v
			}
		}
		if len(item) == 0 {
			continue
		}
		item[types.KeyMethod] = string(types.MethodSelector)
		item[types.KeyConfidence] = sel.Confidence
		items = append(items, item)
	}
	return items, nil
}

// transform applies a field transform. Values that fail to convert are
// dropped rather than kept as raw text.
func transform(raw, kind string) (any, bool) {
	switch kind {
	case types.TransformPrice:
		return scraper.ParsePrice(raw)
	case types.TransformRating:
		return scraper.ParseLeadingFloat(raw)
	case types.TransformTrim:
		s := scraper.NormalizeWhitespace(raw)
		return s, s != ""
	default:
		s := strings.TrimSpace(raw)
		return s, s != ""
	}
}

// priceField names the field holding the price: "price" when it has the
// price transform or no field does, else the first such field by name
func priceField(sel types.ZoneSelectors) string {
	var names []string
	for name, f := range sel.Fields {
		if f.Transform == types.TransformPrice {
			names = append(names, name)
		}
	}
	if len(names) == 0 || slices.Contains(names, "price") {
		return "price"
	}
	slices.Sort(names)
	return names[0]
}
