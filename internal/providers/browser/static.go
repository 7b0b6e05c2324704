package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/PageSense/backend/internal/providers/browser/sandbox"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/scraper"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// StaticPage serves the Page capability from parsed HTML.
// It never re-renders; bounds come from the synthetic layout.
type StaticPage struct {
	url        string
	doc        *goquery.Document
	layout     *layout
	screenshot string

	poolOnce sync.Once
	pool     *sandbox.Pool
	poolErr  error
}

// StaticOption configures a StaticPage
type StaticOption func(*staticConfig)

type staticConfig struct {
	screenshot string
	width      float64
}

// WithScreenshot attaches a pre-rendered screenshot, e.g. for OCR
func WithScreenshot(path string) StaticOption {
	return func(c *staticConfig) { c.screenshot = path }
}

// WithViewportWidth sets the synthetic layout width
func WithViewportWidth(w float64) StaticOption {
	return func(c *staticConfig) {
		if w > 0 {
			c.width = w
		}
	}
}

// NewStaticPage wraps an already parsed document
func NewStaticPage(rawURL string, doc *goquery.Document, opts ...StaticOption) *StaticPage {
	cfg := staticConfig{width: DefaultViewportWidth}
	for _, opt := range opts {
		opt(&cfg)
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return &StaticPage{
		url:        rawURL,
		doc:        doc,
		layout:     computeLayout(root.Nodes[0], cfg.width),
		screenshot: cfg.screenshot,
	}
}

// ParseStaticPage decodes raw HTML (any charset) into a StaticPage
func ParseStaticPage(rawURL string, data []byte, contentType string, opts ...StaticOption) (*StaticPage, error) {
	doc, err := scraper.LoadDocument(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rawURL, err)
	}
	return NewStaticPage(rawURL, doc, opts...), nil
}

// URL returns the page address
func (p *StaticPage) URL() string {
	return p.url
}

// StructureSummary digests the document
func (p *StaticPage) StructureSummary(ctx context.Context) (*types.PageContext, error) {
	return summarize(p.url, p.doc, p.layout.width, p.layout.height), nil
}

// find resolves an anchor as XPath when it starts with "/", CSS otherwise
func (p *StaticPage) find(anchor string) *goquery.Selection {
	anchor = strings.TrimSpace(anchor)
	if anchor == "" {
		return p.doc.FindNodes()
	}
	if strings.HasPrefix(anchor, "/") {
		nodes, err := htmlquery.QueryAll(p.doc.Nodes[0], anchor)
		if err != nil {
			return p.doc.FindNodes()
		}
		return p.doc.FindNodes(nodes...)
	}
	return p.doc.Find(anchor)
}

func (p *StaticPage) firstMatch(anchors []string) (*goquery.Selection, string, bool) {
	for _, a := range anchors {
		if sel := p.find(a); sel.Length() > 0 {
			return sel, a, true
		}
	}
	return nil, "", false
}

// SampleZoneHTML returns the zone's markup and one representative item
func (p *StaticPage) SampleZoneHTML(ctx context.Context, anchors []string) (*types.ZoneSample, error) {
	sel, anchor, ok := p.firstMatch(anchors)
	if !ok {
		return nil, ErrNoMatch
	}
	zone := sel.First()

	// Descend through single-child wrappers to reach the repeating level
	container := zone
	for {
		kids := container.Children()
		if kids.Length() != 1 {
			break
		}
		container = kids
	}

	kids := container.Children()
	topClass, count := topChildClass(kids)
	item := kids.First()
	if topClass != "" {
		item = kids.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return hasClass(s, topClass)
		})
		if count = item.Length(); count == 0 {
			item = kids.First()
		}
		item = item.First()
	} else {
		count = kids.Length()
	}

	zoneHTML, err := goquery.OuterHtml(zone)
	if err != nil {
		return nil, fmt.Errorf("render zone: %w", err)
	}
	itemHTML := ""
	if item.Length() > 0 {
		itemHTML, _ = goquery.OuterHtml(item)
	}

	return &types.ZoneSample{
		Anchor:        anchor,
		HTML:          zoneHTML,
		ItemSample:    itemHTML,
		ItemCount:     count,
		TextSamples:   textSamples(zone, MaxTextSamples),
		TopChildClass: topClass,
	}, nil
}

func topChildClass(kids *goquery.Selection) (string, int) {
	counts := make(map[string]int)
	kids.Each(func(_ int, s *goquery.Selection) {
		for _, c := range strings.Fields(attrOf(s, "class")) {
			counts[c]++
		}
	})
	best, n := "", 0
	for c, k := range counts {
		if k > n || (k == n && c < best) {
			best, n = c, k
		}
	}
	return best, n
}

func hasClass(s *goquery.Selection, class string) bool {
	for _, c := range strings.Fields(attrOf(s, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textSamples(sel *goquery.Selection, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(out) >= limit {
			return
		}
		if n.Type == html.ElementNode && invisible[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := scraper.NormalizeWhitespace(n.Data); t != "" && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return out
}

func (p *StaticPage) element(s *goquery.Selection, selector string) types.DOMElement {
	n := s.Nodes[0]
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		if a.Key != "data-bounds" {
			attrs[a.Key] = a.Val
		}
	}
	return types.DOMElement{
		Selector:   selector,
		Tag:        n.Data,
		Text:       scraper.NormalizeWhitespace(s.Text()),
		Bounds:     p.layout.of(n),
		Attributes: attrs,
	}
}

// QueryElements snapshots every match of selector
func (p *StaticPage) QueryElements(ctx context.Context, selector string) ([]types.DOMElement, error) {
	var out []types.DOMElement
	p.find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, p.element(s, selector))
	})
	return out, nil
}

// ItemFields reads raw field values for each item
func (p *StaticPage) ItemFields(ctx context.Context, itemSelector string, fields map[string]types.FieldSelector) ([]map[string]string, error) {
	items := p.find(itemSelector)
	if items.Length() == 0 {
		return nil, nil
	}

	out := make([]map[string]string, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		rec := make(map[string]string, len(fields))
		for name, f := range fields {
			target := item
			if f.Selector != "" {
				target = item.Find(f.Selector).First()
			}
			if target.Length() == 0 {
				continue
			}
			if v, ok := p.fieldValue(target, f.Attribute); ok {
				rec[name] = v
			}
		}
		out = append(out, rec)
	})
	return out, nil
}

func (p *StaticPage) fieldValue(s *goquery.Selection, attribute string) (string, bool) {
	switch attribute {
	case "", types.AttrText, "innerText", "text":
		return scraper.NormalizeWhitespace(s.Text()), true
	case "href", "src":
		v, ok := s.Attr(attribute)
		if !ok {
			return "", false
		}
		return scraper.ResolveURL(p.url, v), true
	default:
		return s.Attr(attribute)
	}
}

// TextElements returns elements that own text directly, in document order
func (p *StaticPage) TextElements(ctx context.Context) ([]types.DOMElement, error) {
	var out []types.DOMElement
	body := p.doc.Find("body")
	if body.Length() == 0 {
		body = p.doc.Selection
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && invisible[n.Data] {
			return
		}
		if n.Type == html.ElementNode {
			if t := ownText(n); t != "" {
				out = append(out, types.DOMElement{
					Selector: signature(n),
					Tag:      n.Data,
					Text:     t,
					Bounds:   p.layout.of(n),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range body.Nodes {
		walk(n)
	}
	return out, nil
}

func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	}
	return scraper.NormalizeWhitespace(b.String())
}

// Links returns anchors in the zone with absolute URLs
func (p *StaticPage) Links(ctx context.Context, anchors []string) ([]types.Link, error) {
	scope := p.doc.Selection
	if len(anchors) > 0 {
		sel, _, ok := p.firstMatch(anchors)
		if !ok {
			return nil, ErrNoMatch
		}
		scope = sel
	}

	var out []types.Link
	scope.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := attrOf(s, "href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		out = append(out, types.Link{
			URL:  scraper.ResolveURL(p.url, href),
			Text: scraper.NormalizeWhitespace(s.Text()),
		})
	})
	return out, nil
}

// HTML returns outer HTML of every element the first matching anchor selects
func (p *StaticPage) HTML(ctx context.Context, anchors []string) (string, error) {
	if len(anchors) == 0 {
		body := p.doc.Find("body")
		if body.Length() == 0 {
			return p.doc.Html()
		}
		return goquery.OuterHtml(body)
	}

	sel, _, ok := p.firstMatch(anchors)
	if !ok {
		return "", ErrNoMatch
	}
	var b strings.Builder
	var err error
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var h string
		if h, err = goquery.OuterHtml(s); err != nil {
			return false
		}
		b.WriteString(h)
		b.WriteByte('\n')
		return true
	})
	if err != nil {
		return "", fmt.Errorf("render zone: %w", err)
	}
	return b.String(), nil
}

// Screenshot returns the attached screenshot path
func (p *StaticPage) Screenshot(ctx context.Context) (string, error) {
	if p.screenshot == "" {
		return "", ErrNoScreenshot
	}
	return p.screenshot, nil
}

// Evaluate runs script in a goja sandbox with a read-only document
func (p *StaticPage) Evaluate(ctx context.Context, script string, args map[string]any) (any, error) {
	p.poolOnce.Do(func() {
		p.pool, p.poolErr = sandbox.NewPool(sandbox.DefaultConfig(), 1)
	})
	if p.poolErr != nil {
		return nil, fmt.Errorf("sandbox: %w", p.poolErr)
	}

	res, err := p.pool.Execute(ctx, "(function(args){\n"+script+"\n})(args)", staticDocument{p}, args)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return res.Value, nil
}

// Close releases the sandbox pool
func (p *StaticPage) Close() error {
	if p.pool != nil {
		return p.pool.Close()
	}
	return nil
}

// staticDocument adapts the page to the sandbox document view
type staticDocument struct{ p *StaticPage }

func (d staticDocument) QuerySelectorAll(selector string) []sandbox.Element {
	var out []sandbox.Element
	d.p.find(selector).Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		attrs := make(map[string]string, len(n.Attr))
		for _, a := range n.Attr {
			attrs[a.Key] = a.Val
		}
		out = append(out, sandbox.Element{
			TagName:     strings.ToUpper(n.Data),
			ID:          attrs["id"],
			ClassName:   attrs["class"],
			TextContent: s.Text(),
			Attributes:  attrs,
			Bounds:      d.p.layout.of(n),
		})
	})
	return out
}
