package browser

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

var (
	// ErrNoMatch is returned when none of the anchors select anything
	ErrNoMatch = errors.New("browser: no anchor matched")
	// ErrNoScreenshot is returned by pages that cannot render pixels
	ErrNoScreenshot = errors.New("browser: screenshot unavailable")
)

// Page is the DOM capability the pipeline and extractors work against.
//
// Anchors are CSS selectors, or XPath expressions when they start with "/".
// Multi-anchor methods use the first anchor that matches anything.
type Page interface {
	URL() string

	// StructureSummary digests the page for zone identification and fingerprinting
	StructureSummary(ctx context.Context) (*types.PageContext, error)

	// SampleZoneHTML returns real markup from a zone. ErrNoMatch when no anchor hits.
	SampleZoneHTML(ctx context.Context, anchors []string) (*types.ZoneSample, error)

	// QueryElements snapshots every element matching a selector
	QueryElements(ctx context.Context, selector string) ([]types.DOMElement, error)

	// ItemFields enumerates itemSelector and reads each field's raw value per item
	ItemFields(ctx context.Context, itemSelector string, fields map[string]types.FieldSelector) ([]map[string]string, error)

	// TextElements returns visible leaf text nodes with their bounds
	TextElements(ctx context.Context) ([]types.DOMElement, error)

	// Links returns anchors inside the zone, or the whole page when anchors is empty
	Links(ctx context.Context, anchors []string) ([]types.Link, error)

	// Evaluate runs a function body that may read args and document and returns a value
	Evaluate(ctx context.Context, script string, args map[string]any) (any, error)

	// HTML returns the zone's outer HTML, or the body when anchors is empty
	HTML(ctx context.Context, anchors []string) (string, error)

	// Screenshot writes a PNG and returns its path
	Screenshot(ctx context.Context) (string, error)
}

// Limits shared by implementations
const (
	MaxSampleBytes   = 3000
	MaxTextSamples   = 10
	MaxClassEntries  = 30
	MaxPriceSamples  = 10
	MaxSelectorHints = 20
	MaxTreeDepth     = 6
	MaxTreeLines     = 200
)

// noticeScript collects banner text a shopper would see before buying.
// It runs through Evaluate so live and static pages share it.
const noticeScript = `
var out = [];
var seen = {};
for (var i = 0; i < args.selectors.length; i++) {
  var nodes = document.querySelectorAll(args.selectors[i]);
  for (var j = 0; j < nodes.length; j++) {
    var t = (nodes[j].textContent || "").replace(/\s+/g, " ").trim();
    if (t && t.length <= 300 && !seen[t]) {
      seen[t] = true;
      out.push(t);
    }
  }
}
return out;
`

// NoticeSelectors finds alert and availability banners
var NoticeSelectors = []string{
	"[role=alert]", "[role=status]", ".notice", ".banner", ".alert",
	".out-of-stock", ".availability", ".stock-status", ".purchase-limit",
}

// Notices runs the notice script on any Page
func Notices(ctx context.Context, p Page) ([]string, error) {
	sels := make([]any, len(NoticeSelectors))
	for i, s := range NoticeSelectors {
		sels[i] = s
	}
	v, err := p.Evaluate(ctx, noticeScript, map[string]any{"selectors": sels})
	if err != nil {
		return nil, err
	}
	return toStrings(v), nil
}

func toStrings(v any) []string {
	switch arr := v.(type) {
	case []string:
		return arr
	case []any:
		out := make([]string, 0, len(arr))
		for _, x := range arr {
			if s, ok := x.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
