package extraction

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/browser"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/llm"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/ocr"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

const gridHTML = `<html><head><title>Shop</title></head><body>
<main>
  <div id="results">
    <div class="card"><a class="title" href="/p/1">TV One</a><span class="price">$499.99</span><span class="stars">4.5 out of 5</span></div>
    <div class="card"><a class="title" href="/p/2">TV Two</a><span class="price">$1,299.00</span><span class="stars">3.9 out of 5</span></div>
  </div>
</main>
</body></html>`

const forumHTML = `<html><body>
<div id="threads">
  <h2>Latest topics</h2>
  <ul>
    <li><a href="/t/1">Thread A</a> 12 replies</li>
    <li><a href="/t/2">Thread B</a> 3 replies</li>
    <li><a href="/t/1">Thread A</a> again</li>
    <li><a href="#">top</a></li>
  </ul>
</div>
</body></html>`

var gridSelectors = types.ZoneSelectors{
	ItemSelector: ".card",
	Confidence:   0.85,
	Fields: map[string]types.FieldSelector{
		"title":  {Selector: ".title"},
		"url":    {Selector: ".title", Attribute: "href"},
		"price":  {Selector: ".price", Transform: types.TransformPrice},
		"rating": {Selector: ".stars", Transform: types.TransformRating},
	},
}

func staticPage(t *testing.T, rawURL, doc string, opts ...browser.StaticOption) *browser.StaticPage {
	t.Helper()
	p, err := browser.ParseStaticPage(rawURL, []byte(doc), "text/html", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func gridUnderstanding(method types.Method, fallback *types.Method) *types.PageUnderstanding {
	return &types.PageUnderstanding{
		URL: "https://shop.example.com/s",
		Zones: []types.Zone{
			{ZoneType: types.ZoneProductGrid, Confidence: 0.9, DOMAnchors: []string{"#results"}},
		},
		Selectors:   map[types.ZoneType]types.ZoneSelectors{types.ZoneProductGrid: gridSelectors},
		Strategies:  []types.ExtractionStrategy{{Zone: string(types.ZoneProductGrid), Method: method, Fallback: fallback, Confidence: 0.8}},
		PrimaryZone: string(types.ZoneProductGrid),
	}
}

// writePNG creates a small valid image for the OCR path
func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return path
}

type counter struct {
	calls map[types.Method]int
}

func (c *counter) stub(m types.Method, items ...types.Item) Extractor {
	return func(ctx context.Context, t Target) ([]types.Item, error) {
		c.calls[m]++
		return items, nil
	}
}

func TestExtract_FallbackOrdering(t *testing.T) {
	page := staticPage(t, "https://shop.example.com/s", gridHTML)
	e := New(Config{Metrics: monitoring.NewMetrics()})
	c := &counter{calls: map[types.Method]int{}}
	e.Register(types.MethodSelector, c.stub(types.MethodSelector))
	e.Register(types.MethodVision, c.stub(types.MethodVision, types.Item{"name": "TV One"}))
	e.Register(types.MethodHybrid, c.stub(types.MethodHybrid))
	e.Register(types.MethodProse, c.stub(types.MethodProse))

	u := gridUnderstanding(types.MethodSelector, types.MethodPtr(types.MethodVision))
	items, err := e.Extract(context.Background(), page, u, "", Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, c.calls[types.MethodSelector])
	assert.Equal(t, 1, c.calls[types.MethodVision])
	assert.Zero(t, c.calls[types.MethodHybrid])
	assert.Zero(t, c.calls[types.MethodProse])

	require.Len(t, items, 1)
	assert.Equal(t, "TV One", items[0]["name"])
	assert.Equal(t, "vision", items[0][types.KeyMethod])
	assert.InDelta(t, 0.8*DefaultFallbackScale, items[0][types.KeyConfidence], 1e-9)
}

func TestExtract_SingleFallbackHop(t *testing.T) {
	page := staticPage(t, "https://shop.example.com/s", gridHTML)
	e := New(Config{})
	c := &counter{calls: map[types.Method]int{}}
	e.Register(types.MethodHybrid, c.stub(types.MethodHybrid))
	e.Register(types.MethodVision, c.stub(types.MethodVision))
	e.Register(types.MethodProse, c.stub(types.MethodProse))
	e.Register(types.MethodSelector, c.stub(types.MethodSelector))

	u := gridUnderstanding(types.MethodHybrid, types.MethodPtr(types.MethodVision))
	items, err := e.Extract(context.Background(), page, u, "", Options{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 1, c.calls[types.MethodHybrid])
	assert.Equal(t, 1, c.calls[types.MethodVision])
	assert.Zero(t, c.calls[types.MethodProse])
	assert.Zero(t, c.calls[types.MethodSelector])
}

func TestExtract_NoFallbackWhenPrimaryFindsItems(t *testing.T) {
	page := staticPage(t, "https://shop.example.com/s", gridHTML)
	e := New(Config{})
	c := &counter{calls: map[types.Method]int{}}
	e.Register(types.MethodVision, c.stub(types.MethodVision, types.Item{"name": "x"}))

	u := gridUnderstanding(types.MethodSelector, types.MethodPtr(types.MethodVision))
	items, err := e.Extract(context.Background(), page, u, string(types.ZoneProductGrid), Options{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Zero(t, c.calls[types.MethodVision])
	assert.Equal(t, "selector", items[0][types.KeyMethod])
	assert.Equal(t, 0.85, items[0][types.KeyConfidence])
}

func TestExtract_DefaultStrategy(t *testing.T) {
	page := staticPage(t, "https://shop.example.com/s", gridHTML)
	e := New(Config{})
	c := &counter{calls: map[types.Method]int{}}
	e.Register(types.MethodSelector, c.stub(types.MethodSelector))
	e.Register(types.MethodVision, c.stub(types.MethodVision, types.Item{"name": "x"}))

	u := &types.PageUnderstanding{URL: page.URL()}
	items, err := e.Extract(context.Background(), page, u, "", Options{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, c.calls[types.MethodSelector])
	assert.Equal(t, 1, c.calls[types.MethodVision])
	assert.InDelta(t, 0.5*DefaultFallbackScale, items[0][types.KeyConfidence], 1e-9)
}

func TestExtract_Errors(t *testing.T) {
	page := staticPage(t, "https://shop.example.com/s", gridHTML)
	e := New(Config{})

	_, err := e.Extract(context.Background(), page, nil, "", Options{})
	assert.ErrorIs(t, err, ErrNoUnderstanding)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Register(types.MethodSelector, func(ctx context.Context, t Target) ([]types.Item, error) {
		return nil, ctx.Err()
	})
	e.Register(types.MethodVision, func(ctx context.Context, t Target) ([]types.Item, error) {
		return nil, ctx.Err()
	})
	_, err = e.Extract(ctx, page, gridUnderstanding(types.MethodSelector, types.MethodPtr(types.MethodVision)), "", Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelector_Transforms(t *testing.T) {
	page := staticPage(t, "https://shop.example.com/s", gridHTML)
	e := New(Config{})

	u := gridUnderstanding(types.MethodSelector, nil)
	items, err := e.Extract(context.Background(), page, u, "", Options{})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "TV One", items[0]["title"])
	assert.Equal(t, "https://shop.example.com/p/1", items[0]["url"])
	assert.Equal(t, 499.99, items[0]["price"])
	assert.Equal(t, 4.5, items[0]["rating"])
	assert.Equal(t, 1299.0, items[1]["price"])
}

func TestPriceField(t *testing.T) {
	price := types.FieldSelector{Selector: ".p", Transform: types.TransformPrice}
	plain := types.FieldSelector{Selector: ".t"}

	tests := []struct {
		name   string
		fields map[string]types.FieldSelector
		want   string
	}{
		{"no fields", nil, "price"},
		{"no price transform", map[string]types.FieldSelector{"title": plain}, "price"},
		{"price wins", map[string]types.FieldSelector{"was": price, "price": price, "now": price}, "price"},
		{"lowest name", map[string]types.FieldSelector{"was": price, "now": price, "amount": price, "title": plain}, "amount"},
		{"plain price ignored", map[string]types.FieldSelector{"price": plain, "sale": price}, "sale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				assert.Equal(t, tt.want, priceField(types.ZoneSelectors{Fields: tt.fields}))
			}
		})
	}
}

func TestTransform(t *testing.T) {
	tests := []struct {
		raw, kind string
		want      any
		ok        bool
	}{
		{"$1,299.00", types.TransformPrice, 1299.0, true},
		{"Call for price", types.TransformPrice, nil, false},
		{"4.7 stars", types.TransformRating, 4.7, true},
		{"  a \n  b ", types.TransformTrim, "a b", true},
		{"   ", types.TransformNone, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := transform(tt.raw, tt.kind)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHybrid_CorrectsShippingNoise(t *testing.T) {
	doc := `<html><body><div id="results">
<div class="card"><span class="title">Blender</span><span class="price">$5.00</span></div>
</div></body></html>`
	page := staticPage(t, "https://shop.example.com/s", doc, browser.WithScreenshot(writePNG(t)))

	detector := &ocr.Static{Blocks: []types.OCRTextBlock{
		{Text: "Blender", Confidence: 0.9, Bounds: types.Bounds{Top: 10, Left: 10, Width: 100, Height: 20}},
		{Text: "$49.99", Confidence: 0.9, Bounds: types.Bounds{Top: 40, Left: 10, Width: 60, Height: 20}},
	}}
	e := New(Config{Detector: detector})

	u := gridUnderstanding(types.MethodHybrid, types.MethodPtr(types.MethodVision))
	u.Selectors[types.ZoneProductGrid] = types.ZoneSelectors{
		ItemSelector: ".card",
		Confidence:   0.6,
		Fields: map[string]types.FieldSelector{
			"title": {Selector: ".title"},
			"price": {Selector: ".price", Transform: types.TransformPrice},
		},
	}

	items, err := e.Extract(context.Background(), page, u, "", Options{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 49.99, items[0]["price"])
	assert.Equal(t, types.CorrectedFromOCR, items[0][types.KeyVerification])
	assert.Equal(t, "hybrid", items[0][types.KeyMethod])
}

func TestHybrid_WithoutSelectorItemsUsesVision(t *testing.T) {
	page := staticPage(t, "https://shop.example.com/s", gridHTML)
	m := llm.NewMock().On("visible text", llm.Reply{Content: `{"items":[{"name":"TV One","price":499.99}]}`})
	e := New(Config{Completer: m})

	u := gridUnderstanding(types.MethodHybrid, nil)
	u.Selectors = nil
	items, err := e.Extract(context.Background(), page, u, "", Options{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "vision", items[0][types.KeyMethod])
	assert.Equal(t, 1, m.CallCount("visible text"))
}

func TestHybrid_DeferredVisionIsNotRepeatedAsFallback(t *testing.T) {
	tests := []struct {
		name     string
		fallback types.Method
		vision   int
		prose    int
	}{
		{"vision fallback", types.MethodVision, 1, 0},
		{"prose fallback", types.MethodProse, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := staticPage(t, "https://shop.example.com/s", gridHTML)
			m := llm.NewMock().
				On("visible text", llm.Reply{Content: `{"items":[]}`}).
				On("markdown rendering", llm.Reply{Content: `{"items":[]}`})
			e := New(Config{Completer: m})

			u := gridUnderstanding(types.MethodHybrid, types.MethodPtr(tt.fallback))
			u.Selectors[types.ZoneProductGrid] = types.ZoneSelectors{ItemSelector: ".nope", Fields: gridSelectors.Fields}
			items, err := e.Extract(context.Background(), page, u, "", Options{})
			require.NoError(t, err)
			assert.Empty(t, items)
			assert.Equal(t, tt.vision, m.CallCount("visible text"))
			assert.Equal(t, tt.prose, m.CallCount("markdown rendering"))
		})
	}
}

func TestVerifyPrices(t *testing.T) {
	tests := []struct {
		name      string
		prices    []float64
		ocr       []float64
		wantPrice []float64
		wantMark  []string
	}{
		{"within 5 percent", []float64{100}, []float64{104}, []float64{100}, []string{types.Verified}},
		{"within one dollar", []float64{12}, []float64{12.9}, []float64{12}, []string{types.Verified}},
		{"too far", []float64{100}, []float64{120}, []float64{100}, []string{types.Unverified}},
		{"noise corrected", []float64{5}, []float64{49.99}, []float64{49.99}, []string{types.CorrectedFromOCR}},
		{"no ocr", []float64{5}, nil, []float64{5}, []string{types.Unverified}},
		{"consumed once", []float64{20, 20}, []float64{20}, []float64{20, 20}, []string{types.Verified, types.Unverified}},
		{"closest wins", []float64{100, 103}, []float64{103, 100}, []float64{100, 103}, []string{types.Verified, types.Verified}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]types.Item, len(tt.prices))
			for i, p := range tt.prices {
				items[i] = types.Item{"price": p}
			}
			VerifyPrices(items, "price", tt.ocr)
			for i := range items {
				assert.Equal(t, tt.wantPrice[i], items[i]["price"])
				assert.Equal(t, tt.wantMark[i], items[i][types.KeyVerification])
			}
		})
	}
}

func TestVision_ReadingOrderFromDOM(t *testing.T) {
	page := staticPage(t, "https://shop.example.com/s", gridHTML)
	m := llm.NewMock().On("visible text", llm.Reply{Content: "```json\n[{\"name\":\"TV One\"},{\"name\":\"TV Two\"}]\n```"})
	e := New(Config{Completer: m})

	u := gridUnderstanding(types.MethodVision, nil)
	items, err := e.Extract(context.Background(), page, u, "", Options{Goal: types.GoalProducts})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 0.8, items[1][types.KeyConfidence])

	calls := m.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Prompt
	assert.Less(t, strings.Index(prompt, "TV One"), strings.Index(prompt, "TV Two"))
	assert.Contains(t, prompt, "product_grid")
}

func TestVision_ZoneBoundsFilter(t *testing.T) {
	blocks := []types.OCRTextBlock{
		{Text: "b", Bounds: types.Bounds{Top: 50, Left: 200, Width: 10, Height: 10}},
		{Text: "out", Bounds: types.Bounds{Top: 900, Left: 10, Width: 10, Height: 10}},
		{Text: "a", Bounds: types.Bounds{Top: 50, Left: 20, Width: 10, Height: 10}},
		{Text: "c", Bounds: types.Bounds{Top: 10, Left: 300, Width: 10, Height: 10}},
	}
	zone := &types.Zone{Bounds: &types.Bounds{Top: 0, Left: 0, Width: 500, Height: 200}}

	got := inZone(blocks, zone)
	texts := make([]string, len(got))
	for i, b := range got {
		texts[i] = b.Text
	}
	assert.Equal(t, []string{"c", "a", "b"}, texts)
}

func TestProse_WholePageWithLinks(t *testing.T) {
	page := staticPage(t, "https://forum.example.com/latest", forumHTML)
	m := llm.NewMock().On("markdown rendering", llm.Reply{Content: `{"topics":[{"title":"Thread A","replies":12},{"title":"Thread B","replies":3}]}`})
	e := New(Config{Completer: m})

	u := &types.PageUnderstanding{
		URL:         page.URL(),
		Zones:       []types.Zone{},
		Strategies:  []types.ExtractionStrategy{{Zone: "page", Method: types.MethodProse, Confidence: 0.3}},
		PrimaryZone: "page",
	}
	items, err := e.Extract(context.Background(), page, u, "", Options{Goal: types.GoalTopics})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "prose", items[0][types.KeyMethod])
	assert.Equal(t, 0.3, items[0][types.KeyConfidence])

	links, ok := items[0][types.KeyExtractedLinks].([]types.Link)
	require.True(t, ok)
	assert.Equal(t, []types.Link{
		{URL: "https://forum.example.com/t/1", Text: "Thread A"},
		{URL: "https://forum.example.com/t/2", Text: "Thread B"},
	}, links)
	assert.NotContains(t, items[1], types.KeyExtractedLinks)

	require.Len(t, m.Calls(), 1)
	assert.Contains(t, m.Calls()[0].Prompt, "Thread A")
	assert.NotContains(t, m.Calls()[0].Prompt, "<li>")
}

func TestProse_LinksWithoutItems(t *testing.T) {
	page := staticPage(t, "https://forum.example.com/latest", forumHTML)
	m := llm.NewMock().Fallback(llm.Reply{Content: "not json at all"})
	e := New(Config{Completer: m, LinkCap: 1})

	u := &types.PageUnderstanding{
		Strategies: []types.ExtractionStrategy{{Zone: "page", Method: types.MethodProse, Confidence: 0.3}},
	}
	items, err := e.Extract(context.Background(), page, u, "page", Options{Goal: types.GoalNews})
	require.NoError(t, err)
	require.Len(t, items, 1)
	links := items[0][types.KeyExtractedLinks].([]types.Link)
	assert.Len(t, links, 1)
}

func TestProse_ArticleGoalSkipsLinks(t *testing.T) {
	page := staticPage(t, "https://forum.example.com/latest", forumHTML)
	m := llm.NewMock().Fallback(llm.Reply{Content: `{"title":"Latest topics"}`})
	e := New(Config{Completer: m})

	u := &types.PageUnderstanding{
		Strategies: []types.ExtractionStrategy{{Zone: "page", Method: types.MethodProse, Confidence: 0.3}},
	}
	items, err := e.Extract(context.Background(), page, u, "", Options{Goal: types.GoalArticle})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Latest topics", items[0]["title"])
	assert.NotContains(t, items[0], types.KeyExtractedLinks)
}

func TestTruncateBlocks(t *testing.T) {
	assert.Equal(t, "short", truncateBlocks("short", 10))

	para := strings.Repeat("a", 30) + "\n\n" + strings.Repeat("b", 30)
	assert.Equal(t, strings.Repeat("a", 30), truncateBlocks(para, 40))

	assert.Equal(t, "ééé", truncateBlocks("éééééé", 3))
}

func TestExtractAndValidate(t *testing.T) {
	page := staticPage(t, "https://shop.example.com/s", gridHTML)
	e := New(Config{Metrics: monitoring.NewMetrics()})
	u := gridUnderstanding(types.MethodSelector, nil)

	blocks := []types.OCRTextBlock{
		{Text: "TV One", Confidence: 0.9, Bounds: types.Bounds{Top: 24, Left: 24, Width: 100, Height: 24}},
		{Text: "$499.99", Confidence: 0.9, Bounds: types.Bounds{Top: 48, Left: 24, Width: 80, Height: 24}},
	}
	report, err := e.ExtractAndValidate(context.Background(), page, u, "", Options{}, blocks)
	require.NoError(t, err)
	require.Len(t, report.Items, 2)

	// title, price and rating of the first card; only title and price are on screen
	assert.InDelta(t, (1.0+1.0+0.7)/3, report.Items[0][types.KeyConfidence], 1e-9)
	assert.InDelta(t, 0.7, report.Items[1][types.KeyConfidence], 1e-9)
	assert.NotEmpty(t, report.Matches)
	assert.Positive(t, report.Summary.MeanConfidence)
}

func TestExtractAndValidate_NoOCR(t *testing.T) {
	page := staticPage(t, "https://shop.example.com/s", gridHTML)
	e := New(Config{})
	report, err := e.ExtractAndValidate(context.Background(), page, gridUnderstanding(types.MethodSelector, nil), "", Options{}, nil)
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	assert.Equal(t, 0.85, report.Items[0][types.KeyConfidence])
	assert.Empty(t, report.Matches)
}
