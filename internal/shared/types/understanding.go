package types

import (
	"slices"
	"time"
)

// PageUnderstanding is the cached result of one pipeline run.
// Treated as immutable once constructed; refresh replaces the whole value.
type PageUnderstanding struct {
	URL                 string                     `json:"url"`
	Domain              string                     `json:"domain"`
	PageType            string                     `json:"page_type"`
	Zones               []Zone                     `json:"zones"`
	Selectors           map[ZoneType]ZoneSelectors `json:"selectors"`
	Strategies          []ExtractionStrategy       `json:"strategies"`
	PrimaryZone         string                     `json:"primary_zone"`
	SkipZones           []ZoneType                 `json:"skip_zones"`
	HasProducts         bool                       `json:"has_products"`
	HasListContent      bool                       `json:"has_list_content"`
	AvailabilityStatus  string                     `json:"availability_status,omitempty"`
	PageNotices         []string                   `json:"page_notices,omitempty"`
	PurchaseConstraints []string                   `json:"purchase_constraints,omitempty"`
	Notes               []string                   `json:"notes,omitempty"`
	CreatedAt           time.Time                  `json:"created_at"`
	CacheFingerprint    string                     `json:"cache_fingerprint"`
}

// ZoneByType returns the first zone of the given type
func (p *PageUnderstanding) ZoneByType(z ZoneType) (*Zone, bool) {
	for i := range p.Zones {
		if p.Zones[i].ZoneType == z {
			return &p.Zones[i], true
		}
	}
	return nil, false
}

// StrategyFor returns the strategy registered for a zone
func (p *PageUnderstanding) StrategyFor(zone string) (*ExtractionStrategy, bool) {
	for i := range p.Strategies {
		if p.Strategies[i].Zone == zone {
			return &p.Strategies[i], true
		}
	}
	return nil, false
}

// IsSkipped reports whether the zone is in SkipZones
func (p *PageUnderstanding) IsSkipped(z ZoneType) bool {
	return slices.Contains(p.SkipZones, z)
}

// Validate returns strategies that reference a zone missing from Zones.
// The whole-page pseudo-zone and skipped zones are exempt.
func (p *PageUnderstanding) Validate() []ExtractionStrategy {
	var bad []ExtractionStrategy
	for _, s := range p.Strategies {
		zt := ZoneType(s.Zone)
		if zt == ZonePage || p.IsSkipped(zt) {
			continue
		}
		if _, ok := p.ZoneByType(zt); !ok {
			bad = append(bad, s)
		}
	}
	return bad
}

// Clone returns a deep copy so cached values are never shared mutably
func (p *PageUnderstanding) Clone() *PageUnderstanding {
	if p == nil {
		return nil
	}
	c := *p

	c.Zones = make([]Zone, len(p.Zones))
	for i, z := range p.Zones {
		z.DOMAnchors = slices.Clone(z.DOMAnchors)
		if z.Bounds != nil {
			b := *z.Bounds
			z.Bounds = &b
		}
		c.Zones[i] = z
	}

	if p.Selectors != nil {
		c.Selectors = make(map[ZoneType]ZoneSelectors, len(p.Selectors))
		for k, v := range p.Selectors {
			fields := make(map[string]FieldSelector, len(v.Fields))
			for name, f := range v.Fields {
				fields[name] = f
			}
			v.Fields = fields
			c.Selectors[k] = v
		}
	}

	c.Strategies = make([]ExtractionStrategy, len(p.Strategies))
	for i, s := range p.Strategies {
		if s.Fallback != nil {
			s.Fallback = MethodPtr(*s.Fallback)
		}
		c.Strategies[i] = s
	}

	c.SkipZones = slices.Clone(p.SkipZones)
	c.PageNotices = slices.Clone(p.PageNotices)
	c.PurchaseConstraints = slices.Clone(p.PurchaseConstraints)
	c.Notes = slices.Clone(p.Notes)
	return &c
}
