package browser

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/PageSense/backend/internal/domain/fingerprint"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/scraper"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

var containerTags = []string{
	"main", "article", "section", "nav", "header", "footer", "aside",
	"form", "table", "ul", "ol",
}

// summarize builds the page context shared by static and live pages
func summarize(rawURL string, doc *goquery.Document, width, height float64) *types.PageContext {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	histogram := classHistogram(body)
	pc := &types.PageContext{
		URL:            rawURL,
		Title:          scraper.NormalizeWhitespace(doc.Find("title").First().Text()),
		QueryParams:    queryParams(rawURL),
		DOMTree:        domTree(body),
		ClassHistogram: histogram,
		PriceSamples:   priceSamples(body),
		SelectorHints:  selectorHints(body),
		PageWidth:      width,
		PageHeight:     height,
	}

	top := histogram
	if len(top) > fingerprint.MaxSummaryClasses {
		top = top[:fingerprint.MaxSummaryClasses]
	}
	pc.Structure = types.StructureSummary{
		TopClasses: append([]types.ClassCount(nil), top...),
		Containers: containers(body),
		Flags:      flags(body, len(pc.PriceSamples) > 0, histogram),
	}
	return pc
}

func queryParams(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return nil
	}
	out := make(map[string]string)
	for k, v := range u.Query() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// classHistogram counts classes used at least twice
func classHistogram(root *goquery.Selection) []types.ClassCount {
	counts := make(map[string]int)
	root.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		cls, _ := s.Attr("class")
		for _, c := range strings.Fields(cls) {
			counts[c]++
		}
	})

	out := make([]types.ClassCount, 0, len(counts))
	for c, n := range counts {
		if n >= 2 {
			out = append(out, types.ClassCount{Class: c, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Class < out[j].Class
	})
	if len(out) > MaxClassEntries {
		out = out[:MaxClassEntries]
	}
	return out
}

func priceSamples(root *goquery.Selection) []string {
	prices := scraper.Deduplicate(scraper.FindPrices(visibleText(root)))
	if len(prices) > MaxPriceSamples {
		prices = prices[:MaxPriceSamples]
	}
	return prices
}

// visibleText joins text nodes outside scripts and styles with spaces
func visibleText(root *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && invisible[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range root.Nodes {
		walk(n)
	}
	return scraper.NormalizeWhitespace(b.String())
}

func selectorHints(root *goquery.Selection) []string {
	var hints []string
	root.Find("[id], [data-testid], [itemprop], [role]").Each(func(_ int, s *goquery.Selection) {
		switch {
		case attrOf(s, "data-testid") != "":
			hints = append(hints, fmt.Sprintf("[data-testid=%q]", attrOf(s, "data-testid")))
		case attrOf(s, "itemprop") != "":
			hints = append(hints, fmt.Sprintf("[itemprop=%q]", attrOf(s, "itemprop")))
		case attrOf(s, "id") != "":
			hints = append(hints, "#"+attrOf(s, "id"))
		case attrOf(s, "role") != "":
			hints = append(hints, fmt.Sprintf("[role=%q]", attrOf(s, "role")))
		}
	})
	hints = scraper.Deduplicate(hints)
	if len(hints) > MaxSelectorHints {
		hints = hints[:MaxSelectorHints]
	}
	return hints
}

func containers(root *goquery.Selection) []types.ContainerCount {
	var out []types.ContainerCount
	for _, tag := range containerTags {
		if n := root.Find(tag).Length(); n > 0 {
			out = append(out, types.ContainerCount{Tag: tag, Count: n})
		}
	}
	return out
}

func flags(root *goquery.Selection, hasPrices bool, histogram []types.ClassCount) map[string]bool {
	grid := false
	for _, c := range histogram {
		if c.Count >= 4 {
			grid = true
			break
		}
	}
	return map[string]bool{
		"has_prices":     hasPrices,
		"has_search":     root.Find(`input[type=search], form[role=search], input[name=q], input[name=k]`).Length() > 0,
		"has_pagination": root.Find(`.pagination, [rel=next], nav[aria-label*=agination]`).Length() > 0,
		"has_article":    root.Find("article").Length() > 0,
		"has_table":      root.Find("table").Length() > 0,
		"has_repeats":    grid,
	}
}

// domTree renders an indented tag outline, folding runs of identical siblings
func domTree(root *goquery.Selection) string {
	var lines []string
	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if depth > MaxTreeDepth {
			return
		}
		prev, run, at := "", 0, -1
		flush := func() {
			if run > 1 {
				lines[at] += fmt.Sprintf(" x%d", run)
			}
		}
		for c := n.FirstChild; c != nil && len(lines) < MaxTreeLines; c = c.NextSibling {
			if c.Type != html.ElementNode || invisible[c.Data] {
				continue
			}
			sig := signature(c)
			if sig == prev {
				run++
				continue
			}
			flush()
			prev, run, at = sig, 1, len(lines)
			lines = append(lines, strings.Repeat("  ", depth)+sig)
			walk(c, depth+1)
		}
		flush()
	}
	for _, n := range root.Nodes {
		walk(n, 0)
	}
	return strings.Join(lines, "\n")
}

func signature(n *html.Node) string {
	sig := n.Data
	if id, ok := attr(n, "id"); ok && id != "" {
		sig += "#" + id
	}
	if cls, ok := attr(n, "class"); ok {
		fields := strings.Fields(cls)
		if len(fields) > 2 {
			fields = fields[:2]
		}
		for _, c := range fields {
			sig += "." + c
		}
	}
	return sig
}

func attrOf(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}
