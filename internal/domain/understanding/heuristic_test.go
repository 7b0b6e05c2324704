package understanding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

func TestHeuristicStrategy(t *testing.T) {
	tests := []struct {
		name       string
		zone       types.ZoneType
		sel        *types.ZoneSelectors
		method     types.Method
		fallback   *types.Method
		confidence float64
	}{
		{"strong selectors", types.ZoneProductGrid, &types.ZoneSelectors{Confidence: 0.9}, types.MethodSelector, types.MethodPtr(types.MethodHybrid), 0.9},
		{"upper band edge", types.ZoneProductGrid, &types.ZoneSelectors{Confidence: 0.7}, types.MethodHybrid, types.MethodPtr(types.MethodVision), 0.7},
		{"lower band edge", types.ZoneArticleContent, &types.ZoneSelectors{Confidence: 0.4}, types.MethodHybrid, types.MethodPtr(types.MethodVision), 0.4},
		{"weak selectors on listing", types.ZoneListingGrid, &types.ZoneSelectors{Confidence: 0.39}, types.MethodVision, types.MethodPtr(types.MethodProse), 0.5},
		{"no selectors on listing", types.ZoneThreadList, nil, types.MethodVision, types.MethodPtr(types.MethodProse), 0.5},
		{"unstructured", types.ZoneArticleContent, nil, types.MethodProse, nil, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := HeuristicStrategy(tt.zone, tt.sel)
			assert.Equal(t, string(tt.zone), s.Zone)
			assert.Equal(t, tt.method, s.Method)
			assert.Equal(t, tt.fallback, s.Fallback)
			assert.Equal(t, tt.confidence, s.Confidence)
		})
	}
}

func TestHeuristicPrimary(t *testing.T) {
	zones := []types.Zone{
		{ZoneType: types.ZoneHeader, Confidence: 0.99},
		{ZoneType: types.ZoneArticleContent, Confidence: 0.95},
		{ZoneType: types.ZoneProductGrid, Confidence: 0.6},
		{ZoneType: types.ZoneReviews, Confidence: 0.8},
	}
	assert.Equal(t, types.ZoneReviews, HeuristicPrimary(zones, nil))
	assert.Equal(t, types.ZoneProductGrid, HeuristicPrimary(zones, []types.ZoneType{types.ZoneReviews}))
	assert.Equal(t, types.ZoneArticleContent, HeuristicPrimary(zones[:2], nil))
	assert.Equal(t, types.ZonePage, HeuristicPrimary(zones[:1], nil))
	assert.Equal(t, types.ZonePage, HeuristicPrimary(nil, nil))
}

func TestClassifyNotices(t *testing.T) {
	tests := []struct {
		notices     []string
		status      string
		constraints []string
	}{
		{nil, "", nil},
		{[]string{"Currently unavailable."}, AvailabilityOutOfStock, nil},
		{[]string{"Only 3 left in stock", "Limit 2 per customer"}, AvailabilityLimited, []string{"Limit 2 per customer"}},
		{[]string{"Pre-order now", "Sold out online"}, AvailabilityOutOfStock, nil},
		{[]string{"Free shipping on orders over $35"}, "", nil},
	}

	for _, tt := range tests {
		status, constraints := ClassifyNotices(tt.notices)
		assert.Equal(t, tt.status, status, tt.notices)
		assert.Equal(t, tt.constraints, constraints, tt.notices)
	}
}
