package blit

import "fmt"

// Region is a rectangle with exclusive X2/Y2 edges.
type Region struct {
	X1 int `json:"x1" toml:"x1"`
	Y1 int `json:"y1" toml:"y1"`
	X2 int `json:"x2" toml:"x2"`
	Y2 int `json:"y2" toml:"y2"`
}

// RegionInclusion describes how much of one region lies inside another.
type RegionInclusion int

// Inclusion results.
const (
	InclusionNone RegionInclusion = iota
	InclusionPartial
	InclusionFull
)

func (i RegionInclusion) String() string {
	switch i {
	case InclusionNone:
		return "none"
	case InclusionPartial:
		return "partial"
	case InclusionFull:
		return "full"
	default:
		return fmt.Sprintf("inclusion(%d)", int(i))
	}
}

// Width returns X2-X1. Inverted regions yield a negative width.
func (r Region) Width() int { return r.X2 - r.X1 }

// Height returns Y2-Y1.
func (r Region) Height() int { return r.Y2 - r.Y1 }

// Valid reports whether the region's coordinates are not inverted.
func (r Region) Valid() bool { return r.X1 <= r.X2 && r.Y1 <= r.Y2 }

// Empty reports whether the region covers no pixels.
func (r Region) Empty() bool { return r.X1 >= r.X2 || r.Y1 >= r.Y2 }

// Covers reports whether r contains every pixel of the w x h frame at the origin.
func (r Region) Covers(w, h int) bool {
	return r.X1 <= 0 && r.Y1 <= 0 && r.X2 >= w && r.Y2 >= h
}

// Inclusion reports how much of r lies within outer.
func (r Region) Inclusion(outer Region) RegionInclusion {
	if r.Empty() || outer.Empty() {
		return InclusionNone
	}
	if r.X2 <= outer.X1 || r.Y2 <= outer.Y1 || r.X1 >= outer.X2 || r.Y1 >= outer.Y2 {
		return InclusionNone
	}
	if r.X1 >= outer.X1 && r.Y1 >= outer.Y1 && r.X2 <= outer.X2 && r.Y2 <= outer.Y2 {
		return InclusionFull
	}
	return InclusionPartial
}

// Intersect returns the overlap of r and o. The result is empty when they don't overlap.
func (r Region) Intersect(o Region) Region {
	out := Region{
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
		X2: min(r.X2, o.X2),
		Y2: min(r.Y2, o.Y2),
	}
	if out.X2 < out.X1 {
		out.X2 = out.X1
	}
	if out.Y2 < out.Y1 {
		out.Y2 = out.Y1
	}
	return out
}

// Merge returns the bounding box of r and o.
func (r Region) Merge(o Region) Region {
	return Region{
		X1: min(r.X1, o.X1),
		Y1: min(r.Y1, o.Y1),
		X2: max(r.X2, o.X2),
		Y2: max(r.Y2, o.Y2),
	}
}

// Expand grows r outward by m on each side.
func (r Region) Expand(m Margin) Region {
	return Region{X1: r.X1 - m.Left, Y1: r.Y1 - m.Top, X2: r.X2 + m.Right, Y2: r.Y2 + m.Bottom}
}

// Shrink moves each edge of r inward by m.
func (r Region) Shrink(m Margin) Region {
	return Region{X1: r.X1 + m.Left, Y1: r.Y1 + m.Top, X2: r.X2 - m.Right, Y2: r.Y2 - m.Bottom}
}

func (r Region) String() string {
	return fmt.Sprintf("[%d,%d - %d,%d]", r.X1, r.Y1, r.X2, r.Y2)
}

// Margin is a four-sided border in pixels with an 0xAARRGGBB color.
type Margin struct {
	Left   int    `json:"left" toml:"left"`
	Top    int    `json:"top" toml:"top"`
	Right  int    `json:"right" toml:"right"`
	Bottom int    `json:"bottom" toml:"bottom"`
	Color  uint32 `json:"color" toml:"color"`
}

// DefaultMarginColor is opaque black.
const DefaultMarginColor uint32 = 0xFF000000

// IsZero reports whether all four sides are zero.
func (m Margin) IsZero() bool {
	return m.Left == 0 && m.Top == 0 && m.Right == 0 && m.Bottom == 0
}

// Add sums the sides of m and o. The color of m is kept.
func (m Margin) Add(o Margin) Margin {
	return Margin{
		Left:   m.Left + o.Left,
		Top:    m.Top + o.Top,
		Right:  m.Right + o.Right,
		Bottom: m.Bottom + o.Bottom,
		Color:  m.Color,
	}
}

// Alpha returns the alpha component of the margin color.
func (m Margin) Alpha() uint8 { return uint8(m.Color >> 24) }

// Regions returns the up to four bands between inner and inner expanded by m.
func (m Margin) Regions(inner Region) []Region {
	outer := inner.Expand(m)
	bands := make([]Region, 0, 4)
	if m.Top > 0 {
		bands = append(bands, Region{X1: outer.X1, Y1: outer.Y1, X2: outer.X2, Y2: inner.Y1})
	}
	if m.Bottom > 0 {
		bands = append(bands, Region{X1: outer.X1, Y1: inner.Y2, X2: outer.X2, Y2: outer.Y2})
	}
	if m.Left > 0 {
		bands = append(bands, Region{X1: outer.X1, Y1: inner.Y1, X2: inner.X1, Y2: inner.Y2})
	}
	if m.Right > 0 {
		bands = append(bands, Region{X1: inner.X2, Y1: inner.Y1, X2: outer.X2, Y2: inner.Y2})
	}
	return bands
}
