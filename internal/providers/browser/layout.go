package browser

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// Synthetic layout for pages that were never rendered. Each element takes
// one line in document order, indented by depth, and spans the lines of its
// subtree. A data-bounds="top,left,width,height" attribute overrides it.
const (
	DefaultViewportWidth = 1280
	lineHeight           = 24
	indentWidth          = 8
	minWidth             = 16
)

var invisible = map[string]bool{
	"head": true, "script": true, "style": true, "noscript": true,
	"template": true, "meta": true, "link": true, "title": true,
}

type layout struct {
	bounds map[*html.Node]types.Bounds
	width  float64
	height float64
}

func computeLayout(root *html.Node, width float64) *layout {
	l := &layout{bounds: make(map[*html.Node]types.Bounds), width: width}
	line := 0

	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if n.Type != html.ElementNode {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c, depth)
			}
			return
		}
		if invisible[n.Data] {
			return
		}

		start := line
		line++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1)
		}

		b := types.Bounds{
			Top:    float64(start * lineHeight),
			Left:   float64(depth * indentWidth),
			Width:  max(width-float64(depth*2*indentWidth), minWidth),
			Height: float64((line - start) * lineHeight),
		}
		if db, ok := dataBounds(n); ok {
			b = db
		}
		l.bounds[n] = b
		l.height = max(l.height, b.Bottom())
	}
	walk(root, 0)
	return l
}

func (l *layout) of(n *html.Node) types.Bounds {
	return l.bounds[n]
}

func dataBounds(n *html.Node) (types.Bounds, bool) {
	raw, ok := attr(n, "data-bounds")
	if !ok {
		return types.Bounds{}, false
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return types.Bounds{}, false
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.Bounds{}, false
		}
		v[i] = f
	}
	return types.Bounds{Top: v[0], Left: v[1], Width: v[2], Height: v[3]}, true
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
