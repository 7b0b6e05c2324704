package types

import "math"

// Bounds is a rectangle in page coordinates
type Bounds struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the lower edge
func (b Bounds) Bottom() float64 {
	return b.Top + b.Height
}

// Right returns the right edge
func (b Bounds) Right() float64 {
	return b.Left + b.Width
}

// Area returns width * height, zero for degenerate rectangles
func (b Bounds) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Center returns the (x, y) center point
func (b Bounds) Center() (float64, float64) {
	return b.Left + b.Width/2, b.Top + b.Height/2
}

// Overlaps reports whether two rectangles share any area
func (b Bounds) Overlaps(o Bounds) bool {
	return b.Left < o.Right() && o.Left < b.Right() &&
		b.Top < o.Bottom() && o.Top < b.Bottom()
}

// OverlapRatio returns intersection area divided by the smaller area.
// Returns 0 when either rectangle is empty or they do not intersect.
func (b Bounds) OverlapRatio(o Bounds) float64 {
	if !b.Overlaps(o) {
		return 0
	}
	smaller := math.Min(b.Area(), o.Area())
	if smaller == 0 {
		return 0
	}

	w := math.Min(b.Right(), o.Right()) - math.Max(b.Left, o.Left)
	h := math.Min(b.Bottom(), o.Bottom()) - math.Max(b.Top, o.Top)
	return (w * h) / smaller
}

// Contains reports whether o's center lies inside b
func (b Bounds) Contains(o Bounds) bool {
	x, y := o.Center()
	return x >= b.Left && x <= b.Right() && y >= b.Top && y <= b.Bottom()
}
