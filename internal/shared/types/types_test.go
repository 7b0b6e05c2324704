package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundsOverlap(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Bounds
		overlaps bool
		ratio    float64
	}{
		{
			name:     "identical",
			a:        Bounds{Top: 0, Left: 0, Width: 10, Height: 10},
			b:        Bounds{Top: 0, Left: 0, Width: 10, Height: 10},
			overlaps: true,
			ratio:    1,
		},
		{
			name:     "small inside large",
			a:        Bounds{Top: 0, Left: 0, Width: 100, Height: 100},
			b:        Bounds{Top: 10, Left: 10, Width: 10, Height: 10},
			overlaps: true,
			ratio:    1,
		},
		{
			name:     "half overlap",
			a:        Bounds{Top: 0, Left: 0, Width: 10, Height: 10},
			b:        Bounds{Top: 0, Left: 5, Width: 10, Height: 10},
			overlaps: true,
			ratio:    0.5,
		},
		{
			name: "touching edges",
			a:    Bounds{Top: 0, Left: 0, Width: 10, Height: 10},
			b:    Bounds{Top: 0, Left: 10, Width: 10, Height: 10},
		},
		{
			name: "empty rectangle",
			a:    Bounds{Top: 0, Left: 0, Width: 10, Height: 10},
			b:    Bounds{Top: 1, Left: 1, Width: 0, Height: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlaps, tt.a.Overlaps(tt.b))
			assert.InDelta(t, tt.ratio, tt.a.OverlapRatio(tt.b), 1e-9)
		})
	}
}

func TestBoundsEdges(t *testing.T) {
	b := Bounds{Top: 10, Left: 20, Width: 30, Height: 40}
	assert.Equal(t, 50.0, b.Bottom())
	assert.Equal(t, 50.0, b.Right())

	x, y := b.Center()
	assert.Equal(t, 35.0, x)
	assert.Equal(t, 30.0, y)
	assert.True(t, b.Contains(Bounds{Top: 20, Left: 30, Width: 2, Height: 2}))
}

func TestUnderstandingValidate(t *testing.T) {
	u := &PageUnderstanding{
		Zones: []Zone{{ZoneType: ZoneProductGrid}},
		Strategies: []ExtractionStrategy{
			{Zone: "product_grid", Method: MethodSelector},
			{Zone: "header", Method: MethodProse},
			{Zone: "reviews", Method: MethodProse},
			{Zone: "page", Method: MethodProse},
		},
		SkipZones: []ZoneType{ZoneHeader},
	}

	bad := u.Validate()
	require.Len(t, bad, 1)
	assert.Equal(t, "reviews", bad[0].Zone)
}

func TestUnderstandingCloneIsDeep(t *testing.T) {
	orig := &PageUnderstanding{
		Zones: []Zone{{ZoneType: ZoneProductGrid, DOMAnchors: []string{".grid"}, Bounds: &Bounds{Width: 1}}},
		Selectors: map[ZoneType]ZoneSelectors{
			ZoneProductGrid: {ItemSelector: ".item", Fields: map[string]FieldSelector{"title": {Selector: "h2"}}},
		},
		Strategies: []ExtractionStrategy{{Zone: "product_grid", Method: MethodSelector, Fallback: MethodPtr(MethodVision)}},
		SkipZones:  []ZoneType{ZoneFooter},
	}

	c := orig.Clone()
	c.Zones[0].DOMAnchors[0] = ".changed"
	c.Zones[0].Bounds.Width = 99
	c.Selectors[ZoneProductGrid].Fields["title"] = FieldSelector{Selector: "h3"}
	*c.Strategies[0].Fallback = MethodProse
	c.SkipZones[0] = ZoneAds

	assert.Equal(t, ".grid", orig.Zones[0].DOMAnchors[0])
	assert.Equal(t, 1.0, orig.Zones[0].Bounds.Width)
	assert.Equal(t, "h2", orig.Selectors[ZoneProductGrid].Fields["title"].Selector)
	assert.Equal(t, MethodVision, *orig.Strategies[0].Fallback)
	assert.Equal(t, ZoneFooter, orig.SkipZones[0])
}

func TestZoneClassification(t *testing.T) {
	assert.True(t, ZoneFooter.IsSkipEligible())
	assert.False(t, ZoneProductGrid.IsSkipEligible())
	assert.True(t, ZoneThreadList.IsCommerceOrListing())
	assert.False(t, ZoneArticleContent.IsCommerceOrListing())
	assert.Equal(t, ZoneUnknown, ParseZoneType("mega_menu"))
	assert.Equal(t, ZoneReviews, ParseZoneType("reviews"))
}
