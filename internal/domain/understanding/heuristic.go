package understanding

import (
	"regexp"
	"strings"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// Selector confidence bands for the deterministic strategy
const (
	selectorHigh = 0.7
	selectorLow  = 0.4
)

// HeuristicStrategy picks a method from selector quality and zone type
func HeuristicStrategy(zone types.ZoneType, sel *types.ZoneSelectors) types.ExtractionStrategy {
	c := 0.0
	if sel != nil {
		c = sel.Confidence
	}

	s := types.ExtractionStrategy{Zone: string(zone)}
	switch {
	case c > selectorHigh:
		s.Method, s.Fallback, s.Confidence = types.MethodSelector, types.MethodPtr(types.MethodHybrid), c
		s.Reason = "high-confidence selectors"
	case c >= selectorLow:
		s.Method, s.Fallback, s.Confidence = types.MethodHybrid, types.MethodPtr(types.MethodVision), c
		s.Reason = "moderate selectors, cross-checked with OCR"
	case zone.IsCommerceOrListing():
		s.Method, s.Fallback, s.Confidence = types.MethodVision, types.MethodPtr(types.MethodProse), 0.5
		s.Reason = "repeated items without usable selectors"
	default:
		s.Method, s.Confidence = types.MethodProse, 0.4
		s.Reason = "unstructured zone"
	}
	return s
}

// HeuristicPrimary returns the highest-confidence non-skip zone, preferring
// commerce and listing zones, or the whole page when none qualifies
func HeuristicPrimary(zones []types.Zone, skip []types.ZoneType) types.ZoneType {
	var best, bestListing *types.Zone
	for i := range zones {
		z := &zones[i]
		if z.ZoneType.IsSkipEligible() || containsZone(skip, z.ZoneType) {
			continue
		}
		if best == nil || z.Confidence > best.Confidence {
			best = z
		}
		if z.ZoneType.IsCommerceOrListing() && (bestListing == nil || z.Confidence > bestListing.Confidence) {
			bestListing = z
		}
	}
	switch {
	case bestListing != nil:
		return bestListing.ZoneType
	case best != nil:
		return best.ZoneType
	}
	return types.ZonePage
}

func containsZone(zs []types.ZoneType, z types.ZoneType) bool {
	for _, x := range zs {
		if x == z {
			return true
		}
	}
	return false
}

// Availability labels derived from page notices
const (
	AvailabilityOutOfStock = "out_of_stock"
	AvailabilityLimited    = "limited"
	AvailabilityPreorder   = "preorder"
)

var (
	outOfStock  = regexp.MustCompile(`(?i)\b(out of stock|sold out|unavailable|no longer available|currently unavailable)\b`)
	lowStock    = regexp.MustCompile(`(?i)\b(only \d+ left|low stock|limited stock|few left)\b`)
	preorder    = regexp.MustCompile(`(?i)\bpre-?order\b`)
	constraints = regexp.MustCompile(`(?i)\b(limit \d+|per customer|per order|maximum|minimum order|members only|ships only|not available in|age verification)\b`)
)

// ClassifyNotices derives an availability status and purchase constraints
func ClassifyNotices(notices []string) (status string, purchase []string) {
	for _, n := range notices {
		switch {
		case outOfStock.MatchString(n):
			status = AvailabilityOutOfStock
		case status == "" && preorder.MatchString(n):
			status = AvailabilityPreorder
		case status == "" && lowStock.MatchString(n):
			status = AvailabilityLimited
		}
		if constraints.MatchString(n) {
			purchase = append(purchase, strings.TrimSpace(n))
		}
	}
	return status, purchase
}
