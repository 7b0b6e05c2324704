package fingerprint

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

func TestFingerprintShape(t *testing.T) {
	fp := Fingerprint("https://www.shop.com/products/123", nil)
	require.True(t, strings.HasPrefix(fp, "shop.com:"))
	assert.Len(t, strings.TrimPrefix(fp, "shop.com:"), HashLength)
	assert.Equal(t, "shop.com", DomainOf(fp))
}

func TestFingerprintIgnoresTrackingAndIDs(t *testing.T) {
	a := Fingerprint("https://shop.com/products/123?q=shoes&utm_source=x", nil)
	b := Fingerprint("https://www.shop.com/products/456?q=shoes&fbclid=abc", nil)
	c := Fingerprint("https://shop.com/products/456?q=boots", nil)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFingerprintParamOrderIrrelevant(t *testing.T) {
	a := Fingerprint("https://shop.com/s?q=tv&sort=price&page=2", nil)
	b := Fingerprint("https://shop.com/s?page=2&sort=price&q=tv&sessionid=9", nil)
	assert.Equal(t, a, b)

	c := Fingerprint("https://shop.com/s?q=tv&sort=price&page=3", nil)
	assert.NotEqual(t, a, c)
}

func TestFingerprintStructureSummary(t *testing.T) {
	base := &types.StructureSummary{
		TopClasses: []types.ClassCount{{Class: "card", Count: 24}, {Class: "price", Count: 24}},
		Containers: []types.ContainerCount{{Tag: "main", Count: 1}, {Tag: "article", Count: 24}},
		Flags:      map[string]bool{"has_grid": true, "has_form": false},
	}
	reordered := &types.StructureSummary{
		TopClasses: []types.ClassCount{{Class: "price", Count: 24}, {Class: "card", Count: 24}},
		Containers: []types.ContainerCount{{Tag: "article", Count: 24}, {Tag: "main", Count: 1}},
		Flags:      map[string]bool{"has_grid": true},
	}
	other := &types.StructureSummary{
		TopClasses: []types.ClassCount{{Class: "post", Count: 12}},
	}

	u := "https://forum.example.org/t/42"
	assert.Equal(t, Fingerprint(u, base), Fingerprint(u, reordered))
	assert.NotEqual(t, Fingerprint(u, base), Fingerprint(u, other))
	assert.NotEqual(t, Fingerprint(u, base), Fingerprint(u, nil))
	assert.Equal(t, Fingerprint(u, nil), Fingerprint(u, &types.StructureSummary{}))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/products/123", "/products/{id}"},
		{"/products/123/", "/products/{id}"},
		{"/dp/B08N5WRWNW", "/dp/{asin}"},
		{"/u/550e8400-e29b-41d4-a716-446655440000/posts", "/u/{uuid}/posts"},
		{"/category/shoes", "/category/shoes"},
		{"/c/BESTSELLER", "/c/BESTSELLER"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestCanonicalParams(t *testing.T) {
	q, err := url.ParseQuery("sort=asc&utm_medium=mail&Q=tv&ref=home&color=red")
	require.NoError(t, err)
	assert.Equal(t, "q=tv&sort=asc", CanonicalParams(q))
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("https://WWW.Example.com:8080/x"))
	assert.Equal(t, "unknown", Domain("/relative/only"))
}
