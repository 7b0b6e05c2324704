package types

// OCRTextBlock is one OCR detection
type OCRTextBlock struct {
	Text       string  `json:"text"`
	Bounds     Bounds  `json:"bounds"`
	Confidence float64 `json:"confidence"`
}

// DOMElement is a snapshot of one DOM node
type DOMElement struct {
	Selector   string            `json:"selector"`
	Tag        string            `json:"tag"`
	Text       string            `json:"text"`
	Bounds     Bounds            `json:"bounds"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Agreement describes which sources observed a value
type Agreement string

const (
	AgreementBoth    Agreement = "both"
	AgreementOCROnly Agreement = "ocr_only"
	AgreementDOMOnly Agreement = "dom_only"
)

// MatchedItem pairs an OCR block with a DOM element (either may be nil)
type MatchedItem struct {
	OCR                *OCRTextBlock `json:"ocr,omitempty"`
	DOM                *DOMElement   `json:"dom,omitempty"`
	TextSimilarity     float64       `json:"text_similarity"`
	PositionProximity  float64       `json:"position_proximity"`
	CombinedConfidence float64       `json:"combined_confidence"`
	AgreementType      Agreement     `json:"agreement_type"`
}

// Text returns the text of whichever side is present, preferring DOM
func (m MatchedItem) Text() string {
	if m.DOM != nil {
		return m.DOM.Text
	}
	if m.OCR != nil {
		return m.OCR.Text
	}
	return ""
}

// Item is one extracted record
type Item map[string]any

// Reserved item keys
const (
	KeyConfidence     = "_confidence"
	KeyMethod         = "_method"
	KeyVerification   = "_verification"
	KeyExtractedLinks = "extracted_links"
)

// Price verification outcomes for hybrid extraction
const (
	Verified         = "verified"
	Unverified       = "unverified"
	CorrectedFromOCR = "corrected_from_ocr"
)

// Link is an anchor collected during prose extraction
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}
