// Package types provides the data model shared by the cache, the
// understanding pipeline and the extraction engine.
//
// Page model:
//   - Bounds: page-space rectangle with overlap helpers
//   - Zone, ZoneType: labeled page regions
//   - ZoneSelectors, FieldSelector: CSS selectors for items in a zone
//   - ExtractionStrategy, Method: how a zone is extracted
//   - PageUnderstanding: everything learned about one page, cached by fingerprint
//   - StructureSummary: the DOM digest used for zone identification and keying
//
// Capture model:
//   - OCRTextBlock, DOMElement: text seen by OCR and by the DOM
//   - MatchedItem, Agreement: cross-validation output
//   - Item: one extracted record with _confidence, _method and
//     _verification annotations
//
// Example Usage:
//
//	u := &types.PageUnderstanding{
//	    URL:         "https://shop.example.com/c/shoes",
//	    PrimaryZone: string(types.ZoneProductGrid),
//	}
//	if bad := u.Validate(); len(bad) > 0 {
//	    // strategies that reference unknown zones
//	}
package types
