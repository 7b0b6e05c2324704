package types

// ZoneType labels a semantic page region
type ZoneType string

const (
	ZoneHeader         ZoneType = "header"
	ZoneNavigation     ZoneType = "navigation"
	ZoneSearchBar      ZoneType = "search_bar"
	ZoneProductGrid    ZoneType = "product_grid"
	ZoneProductDetail  ZoneType = "product_detail"
	ZoneThreadList     ZoneType = "thread_list"
	ZoneArticleContent ZoneType = "article_content"
	ZoneArticleList    ZoneType = "article_list"
	ZoneListingGrid    ZoneType = "listing_grid"
	ZoneComments       ZoneType = "comments"
	ZoneSidebar        ZoneType = "sidebar"
	ZoneFooter         ZoneType = "footer"
	ZoneAds            ZoneType = "ads"
	ZonePagination     ZoneType = "pagination"
	ZoneFilters        ZoneType = "filters"
	ZoneBreadcrumb     ZoneType = "breadcrumb"
	ZoneHero           ZoneType = "hero"
	ZoneForm           ZoneType = "form"
	ZoneMediaGallery   ZoneType = "media_gallery"
	ZoneReviews        ZoneType = "reviews"
	ZoneUnknown        ZoneType = "unknown"

	// ZonePage is the pseudo-zone that stands for the whole page
	ZonePage ZoneType = "page"
)

var knownZones = map[ZoneType]bool{
	ZoneHeader: true, ZoneNavigation: true, ZoneSearchBar: true,
	ZoneProductGrid: true, ZoneProductDetail: true, ZoneThreadList: true,
	ZoneArticleContent: true, ZoneArticleList: true, ZoneListingGrid: true,
	ZoneComments: true, ZoneSidebar: true, ZoneFooter: true, ZoneAds: true,
	ZonePagination: true, ZoneFilters: true, ZoneBreadcrumb: true,
	ZoneHero: true, ZoneForm: true, ZoneMediaGallery: true, ZoneReviews: true,
	ZoneUnknown: true,
}

// ParseZoneType maps free text from a model onto the enum
func ParseZoneType(s string) ZoneType {
	z := ZoneType(s)
	if knownZones[z] || z == ZonePage {
		return z
	}
	return ZoneUnknown
}

// IsSkipEligible reports chrome-like zones that never carry target items
func (z ZoneType) IsSkipEligible() bool {
	switch z {
	case ZoneHeader, ZoneNavigation, ZoneFooter, ZoneAds, ZoneSidebar, ZoneBreadcrumb:
		return true
	}
	return false
}

// IsCommerceOrListing reports zones made of repeated items
func (z ZoneType) IsCommerceOrListing() bool {
	switch z {
	case ZoneProductGrid, ZoneProductDetail, ZoneListingGrid,
		ZoneThreadList, ZoneArticleList, ZoneReviews:
		return true
	}
	return false
}

// Zone is a semantically labeled page region
type Zone struct {
	ZoneType          ZoneType `json:"zone_type"`
	Confidence        float64  `json:"confidence"`
	DOMAnchors        []string `json:"dom_anchors"` // tried in order
	Bounds            *Bounds  `json:"bounds,omitempty"`
	ItemCountEstimate int      `json:"item_count_estimate"`
	Notes             string   `json:"notes,omitempty"`
}

// Field transforms
const (
	TransformNone   = ""
	TransformPrice  = "price"
	TransformRating = "rating"
	TransformTrim   = "trim"
)

// AttrText is the default FieldSelector attribute
const AttrText = "textContent"

// FieldSelector describes how to pull one field out of an item element
type FieldSelector struct {
	Selector  string `json:"selector"`
	Attribute string `json:"attribute,omitempty"`
	Transform string `json:"transform,omitempty"`
}

// ZoneSelectors describes how to enumerate items in a zone
type ZoneSelectors struct {
	ItemSelector string                   `json:"item_selector"`
	Fields       map[string]FieldSelector `json:"fields"`
	Confidence   float64                  `json:"confidence"`
}

// Method is an extraction strategy method
type Method string

const (
	MethodSelector Method = "selector"
	MethodVision   Method = "vision"
	MethodHybrid   Method = "hybrid"
	MethodProse    Method = "prose"
)

// Valid reports whether m is one of the four methods
func (m Method) Valid() bool {
	switch m {
	case MethodSelector, MethodVision, MethodHybrid, MethodProse:
		return true
	}
	return false
}

// MethodPtr returns a pointer for use as a fallback
func MethodPtr(m Method) *Method {
	return &m
}

// ExtractionStrategy is the chosen method plus optional fallback for one zone
type ExtractionStrategy struct {
	Zone       string  `json:"zone"`
	Method     Method  `json:"method"`
	Confidence float64 `json:"confidence"`
	Fallback   *Method `json:"fallback,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}
