package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

const shopHTML = `<html><head><title>Shop - TVs</title><script>var x = "$9.99";</script></head><body>
<header class="site-header"><nav><a href="/">Home</a></nav></header>
<main>
  <div id="results" class="grid">
    <div class="card" data-bounds="100,0,300,200"><a class="title" href="/p/1">TV One</a><span class="price">$499.99</span><span class="rating">4.5 out of 5</span></div>
    <div class="card" data-bounds="100,310,300,200"><a class="title" href="/p/2">TV Two</a><span class="price">$1,299.00</span></div>
    <div class="card" data-bounds="320,0,300,200"><a class="title" href="/p/3">TV Three</a><span class="price">$5</span></div>
  </div>
  <div role="alert" class="notice">Limit 2 per customer</div>
</main>
<footer class="footer"><a href="#top">Top</a><a href="javascript:void(0)">x</a></footer>
</body></html>`

func shopPage(t *testing.T, opts ...StaticOption) *StaticPage {
	t.Helper()
	p, err := ParseStaticPage("https://shop.example.com/s?q=tv&utm_source=x", []byte(shopHTML), "text/html", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestStructureSummary(t *testing.T) {
	p := shopPage(t)

	pc, err := p.StructureSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Shop - TVs", pc.Title)
	assert.Equal(t, "tv", pc.QueryParams["q"])
	assert.Contains(t, pc.ClassHistogram, types.ClassCount{Class: "card", Count: 3})
	assert.Contains(t, pc.PriceSamples, "$499.99")
	assert.NotContains(t, pc.PriceSamples, "$9.99", "script text is not visible")
	assert.Contains(t, pc.DOMTree, "div.card x3")
	assert.True(t, pc.Structure.Flags["has_prices"])
	assert.False(t, pc.Structure.Flags["has_table"])
	assert.Contains(t, pc.SelectorHints, "#results")
	assert.Equal(t, float64(DefaultViewportWidth), pc.PageWidth)
}

func TestSampleZoneHTML(t *testing.T) {
	p := shopPage(t)
	ctx := context.Background()

	sample, err := p.SampleZoneHTML(ctx, []string{"#missing", "#results"})
	require.NoError(t, err)
	assert.Equal(t, "#results", sample.Anchor)
	assert.Equal(t, "card", sample.TopChildClass)
	assert.Equal(t, 3, sample.ItemCount)
	assert.Contains(t, sample.ItemSample, "TV One")
	assert.NotContains(t, sample.ItemSample, "TV Two")
	require.NotEmpty(t, sample.TextSamples)
	assert.Equal(t, "TV One", sample.TextSamples[0])

	_, err = p.SampleZoneHTML(ctx, []string{"#none", ".nothing"})
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestXPathAnchor(t *testing.T) {
	p := shopPage(t)

	sample, err := p.SampleZoneHTML(context.Background(), []string{"//div[@id='results']"})
	require.NoError(t, err)
	assert.Equal(t, 3, sample.ItemCount)

	_, err = p.SampleZoneHTML(context.Background(), []string{"//div[@id='results'"})
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestItemFields(t *testing.T) {
	p := shopPage(t)

	items, err := p.ItemFields(context.Background(), ".card", map[string]types.FieldSelector{
		"title":  {Selector: ".title"},
		"url":    {Selector: ".title", Attribute: "href"},
		"price":  {Selector: ".price", Attribute: types.AttrText},
		"rating": {Selector: ".rating"},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "TV One", items[0]["title"])
	assert.Equal(t, "https://shop.example.com/p/1", items[0]["url"])
	assert.Equal(t, "$1,299.00", items[1]["price"])
	assert.Equal(t, "4.5 out of 5", items[0]["rating"])
	_, ok := items[2]["rating"]
	assert.False(t, ok)

	none, err := p.ItemFields(context.Background(), ".nope", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueryElementsUsesDataBounds(t *testing.T) {
	p := shopPage(t)

	els, err := p.QueryElements(context.Background(), ".card")
	require.NoError(t, err)
	require.Len(t, els, 3)
	assert.Equal(t, types.Bounds{Top: 100, Left: 310, Width: 300, Height: 200}, els[1].Bounds)
	assert.Equal(t, "div", els[1].Tag)
	assert.NotContains(t, els[1].Attributes, "data-bounds")
	assert.Equal(t, "card", els[1].Attributes["class"])
}

func TestSyntheticLayout(t *testing.T) {
	p, err := ParseStaticPage("https://a.test/", []byte(`<body><div id="a"><p>one</p><p id="b">two</p></div></body>`), "")
	require.NoError(t, err)

	div, err := p.QueryElements(context.Background(), "#a")
	require.NoError(t, err)
	require.Len(t, div, 1)
	assert.Equal(t, types.Bounds{Top: 24, Left: 8, Width: 1264, Height: 72}, div[0].Bounds)

	para, err := p.QueryElements(context.Background(), "#b")
	require.NoError(t, err)
	assert.Equal(t, types.Bounds{Top: 72, Left: 16, Width: 1248, Height: 24}, para[0].Bounds)
}

func TestTextElements(t *testing.T) {
	p := shopPage(t)

	els, err := p.TextElements(context.Background())
	require.NoError(t, err)

	var texts []string
	for _, e := range els {
		texts = append(texts, e.Text)
	}
	assert.Contains(t, texts, "TV One")
	assert.Contains(t, texts, "$499.99")
	assert.NotContains(t, texts, `var x = "$9.99";`)
}

func TestLinks(t *testing.T) {
	p := shopPage(t)
	ctx := context.Background()

	zone, err := p.Links(ctx, []string{"#results"})
	require.NoError(t, err)
	require.Len(t, zone, 3)
	assert.Equal(t, types.Link{URL: "https://shop.example.com/p/2", Text: "TV Two"}, zone[1])

	all, err := p.Links(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4, "fragment and javascript links are skipped")

	_, err = p.Links(ctx, []string{".absent"})
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestHTML(t *testing.T) {
	p := shopPage(t)
	ctx := context.Background()

	zone, err := p.HTML(ctx, []string{".card"})
	require.NoError(t, err)
	assert.Contains(t, zone, "TV One")
	assert.Contains(t, zone, "TV Three")
	assert.NotContains(t, zone, "Limit 2")

	body, err := p.HTML(ctx, nil)
	require.NoError(t, err)
	assert.Contains(t, body, "Limit 2 per customer")
}

func TestEvaluate(t *testing.T) {
	p := shopPage(t)

	v, err := p.Evaluate(context.Background(), `return document.querySelectorAll(".card").length + args.n;`, map[string]any{"n": 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, v)

	_, err = p.Evaluate(context.Background(), `throw new Error("boom");`, nil)
	assert.Error(t, err)
}

func TestNotices(t *testing.T) {
	p := shopPage(t)

	notices, err := Notices(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Limit 2 per customer"}, notices)
}

func TestScreenshot(t *testing.T) {
	_, err := shopPage(t).Screenshot(context.Background())
	assert.ErrorIs(t, err, ErrNoScreenshot)

	path, err := shopPage(t, WithScreenshot("/tmp/shot.png")).Screenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/shot.png", path)
}

func TestParseStaticPageLatin1(t *testing.T) {
	data := []byte("<html><body><p class=\"n\">Caf\xe9 cr\xe8me</p></body></html>")
	p, err := ParseStaticPage("https://a.test/", data, "text/html; charset=iso-8859-1")
	require.NoError(t, err)

	els, err := p.QueryElements(context.Background(), ".n")
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "Café crème", els[0].Text)
}
