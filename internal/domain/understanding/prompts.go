package understanding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

const systemPrompt = "You analyze web page structure for a data extraction system. Answer with a single JSON object and nothing else."

var goalHints = map[types.Goal]string{
	types.GoalProducts:    "product listings with name, price, rating and link",
	types.GoalArticle:     "the main article: title, author, date and body",
	types.GoalContactInfo: "contact details: emails, phone numbers, addresses",
	types.GoalTopics:      "discussion topics or threads with title and link",
	types.GoalListItems:   "the repeated list entries on the page",
	types.GoalNews:        "news headlines with summary, date and link",
}

// GoalHint describes what a goal wants extracted
func GoalHint(g types.Goal) string {
	if h, ok := goalHints[g]; ok {
		return h
	}
	return goalHints[types.GoalProducts]
}

func zonesPrompt(pc *types.PageContext) string {
	var b strings.Builder
	b.WriteString("Identify the semantic zones of this page.\n\n")
	fmt.Fprintf(&b, "URL: %s\nTitle: %s\n", pc.URL, pc.Title)
	if len(pc.QueryParams) > 0 {
		keys := make([]string, 0, len(pc.QueryParams))
		for k := range pc.QueryParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Query params:")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, pc.QueryParams[k])
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nDOM outline:\n%s\n", pc.DOMTree)

	if len(pc.ClassHistogram) > 0 {
		b.WriteString("\nRepeated classes:\n")
		for _, c := range pc.ClassHistogram {
			fmt.Fprintf(&b, "  .%s x%d\n", c.Class, c.Count)
		}
	}
	if len(pc.PriceSamples) > 0 {
		fmt.Fprintf(&b, "\nPrices seen: %s\n", strings.Join(pc.PriceSamples, ", "))
	}
	if len(pc.SelectorHints) > 0 {
		fmt.Fprintf(&b, "\nUseful selectors: %s\n", strings.Join(pc.SelectorHints, " "))
	}

	b.WriteString(`
Zone types: header, navigation, search_bar, product_grid, product_detail,
thread_list, article_content, article_list, listing_grid, comments, sidebar,
footer, ads, pagination, filters, breadcrumb, hero, form, media_gallery,
reviews, unknown.

Respond with:
{"page_type": "...", "has_products": bool, "has_list_content": bool,
 "zones": [{"zone_type": "...", "confidence": 0.0-1.0,
            "dom_anchors": ["css or /xpath selectors, best first"],
            "item_count_estimate": 0, "notes": "..."}]}`)
	return b.String()
}

func selectorsPrompt(zone types.Zone, sample *types.ZoneSample, zoneHTML string, goal types.Goal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write CSS selectors that extract %s from this %s zone.\n\n", GoalHint(goal), zone.ZoneType)
	fmt.Fprintf(&b, "Zone anchor: %s\nItems in zone: %d\n", sample.Anchor, sample.ItemCount)
	if sample.TopChildClass != "" {
		fmt.Fprintf(&b, "Most frequent child class: .%s\n", sample.TopChildClass)
	}
	if len(sample.TextSamples) > 0 {
		fmt.Fprintf(&b, "Text samples: %s\n", strings.Join(sample.TextSamples, " | "))
	}
	fmt.Fprintf(&b, "\nZone markup (truncated):\n%s\n", zoneHTML)
	if sample.ItemSample != "" {
		fmt.Fprintf(&b, "\nOne item:\n%s\n", sample.ItemSample)
	}
	b.WriteString(`
item_selector must select every item on the page. Field selectors are
relative to one item; an empty selector means the item itself. attribute is
textContent (default), href, src, or another attribute name. transform is
"", "price", "rating" or "trim". Only use classes and tags present in the
markup.

Respond with:
{"item_selector": "...", "confidence": 0.0-1.0,
 "fields": {"name": {"selector": "...", "attribute": "...", "transform": "..."}}}`)
	return b.String()
}

func strategiesPrompt(zones []types.Zone, selectors map[types.ZoneType]types.ZoneSelectors, goal types.Goal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Choose an extraction method per zone. Goal: %s.\n\nZones:\n", GoalHint(goal))
	for _, z := range zones {
		fmt.Fprintf(&b, "  - %s (confidence %.2f, ~%d items)", z.ZoneType, z.Confidence, z.ItemCountEstimate)
		if s, ok := selectors[z.ZoneType]; ok {
			fmt.Fprintf(&b, " selectors: confidence %.2f, %d fields", s.Confidence, len(s.Fields))
		} else {
			b.WriteString(" selectors: none")
		}
		b.WriteByte('\n')
	}
	b.WriteString(`
Methods: selector (reliable selectors), hybrid (selectors checked against
OCR), vision (screenshot text), prose (rendered text, for articles and
unstructured zones). Use only the zones listed above, or "page".

Respond with:
{"strategies": [{"zone": "...", "method": "...", "confidence": 0.0-1.0,
                 "fallback": "method or null", "reason": "..."}],
 "primary_zone": "...", "skip_zones": ["..."]}`)
	return b.String()
}
