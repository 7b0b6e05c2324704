package types

// ClassCount is one entry of a repeated-class histogram
type ClassCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// ContainerCount counts semantic containers by tag
type ContainerCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// StructureSummary is the DOM digest folded into a fingerprint
type StructureSummary struct {
	TopClasses []ClassCount     `json:"top_classes,omitempty"`
	Containers []ContainerCount `json:"containers,omitempty"`
	Flags      map[string]bool  `json:"flags,omitempty"`
}

// PageContext is the page summary handed to zone identification
type PageContext struct {
	URL            string            `json:"url"`
	Title          string            `json:"title"`
	QueryParams    map[string]string `json:"query_params,omitempty"`
	DOMTree        string            `json:"dom_tree"`
	ClassHistogram []ClassCount      `json:"class_histogram,omitempty"`
	PriceSamples   []string          `json:"price_samples,omitempty"`
	SelectorHints  []string          `json:"selector_hints,omitempty"`
	Structure      StructureSummary  `json:"structure"`
	PageWidth      float64           `json:"page_width"`
	PageHeight     float64           `json:"page_height"`
}

// ZoneSample is real markup taken from a zone, used to build selectors
type ZoneSample struct {
	Anchor        string   `json:"anchor"` // the anchor that matched
	HTML          string   `json:"html"`
	ItemSample    string   `json:"item_sample"`
	ItemCount     int      `json:"item_count"`
	TextSamples   []string `json:"text_samples,omitempty"`
	TopChildClass string   `json:"top_child_class,omitempty"`
}
