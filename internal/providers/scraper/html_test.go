package scraper

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$49.99", 49.99, true},
		{"$1,299.00", 1299, true},
		{" $ 5 ", 5, true},
		{"Now $12.99 (was $20)", 12.99, true},
		{"799.99", 799.99, true},
		{"free", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePrice(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFindPrices(t *testing.T) {
	assert.Equal(t, []string{"$49.99", "$1,299.00", "$5"}, FindPrices("Widget $49.99 Gadget $1,299.00 Pin $5"))
}

func TestParseLeadingFloat(t *testing.T) {
	v, ok := ParseLeadingFloat("4.5 out of 5 stars")
	require.True(t, ok)
	assert.Equal(t, 4.5, v)

	_, ok = ParseLeadingFloat("no rating")
	assert.False(t, ok)
}

func TestStructurePolicyKeepsClassesDropsScripts(t *testing.T) {
	out := StructurePolicy().Sanitize(`<div class="card" data-id="7" onclick="x()"><script>alert(1)</script><style>.a{}</style><a href="/p/1">Item</a></div>`)
	assert.Contains(t, out, `class="card"`)
	assert.Contains(t, out, `data-id="7"`)
	assert.Contains(t, out, `href="/p/1"`)
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, ".a{}")
}

func TestDecodeHTMLLatin1(t *testing.T) {
	// "café" in ISO-8859-1
	data := []byte("<html><head><meta charset=\"iso-8859-1\"></head><body><p>caf\xe9 cr\xe8me br\xfbl\xe9e</p></body></html>")
	out, err := io.ReadAll(DecodeHTML(data, "text/html; charset=iso-8859-1"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "café")
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "abc", TruncateText("abcdef", 3))
	assert.Equal(t, "h", TruncateText("hé", 2))
	assert.Equal(t, "short", TruncateText("short", 10))
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://shop.com/p/1", ResolveURL("https://shop.com/s?q=tv", "/p/1"))
	assert.Equal(t, "https://x.org/a", ResolveURL("https://shop.com/", "https://x.org/a"))
}
