package geom

import "math"

// Ring is a closed boundary loop stored as a flat vertex array. The last
// vertex connects back to the first; it is not repeated.
type Ring []Vec2

// Polygon is a planar region bounded by one outer ring and zero or more
// hole rings. A canonical polygon keeps the outer ring counter-clockwise
// and holes clockwise (positive-Y-up convention).
type Polygon struct {
	Outer Ring
	Holes []Ring
}

// Rect is an axis-aligned bounding rectangle.
type Rect struct {
	Min, Max Vec2
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// SignedArea returns the shoelace area of the ring: positive for
// counter-clockwise orientation, negative for clockwise.
func (r Ring) SignedArea() float64 {
	if len(r) < 3 {
		return 0
	}
	var sum float64
	for i, p := range r {
		q := r[(i+1)%len(r)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return sum / 2
}

// Area returns the absolute enclosed area.
func (r Ring) Area() float64 {
	return math.Abs(r.SignedArea())
}

// Reverse reverses the ring's winding in place.
func (r Ring) Reverse() {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
}

// BoundingBox returns the ring's axis-aligned bounds.
func (r Ring) BoundingBox() Rect {
	if len(r) == 0 {
		return Rect{}
	}
	bb := Rect{Min: r[0], Max: r[0]}
	for _, p := range r[1:] {
		if p.X < bb.Min.X {
			bb.Min.X = p.X
		}
		if p.Y < bb.Min.Y {
			bb.Min.Y = p.Y
		}
		if p.X > bb.Max.X {
			bb.Max.X = p.X
		}
		if p.Y > bb.Max.Y {
			bb.Max.Y = p.Y
		}
	}
	return bb
}

// Contains reports whether the point lies inside the ring (ray casting).
// Points exactly on the boundary may report either side.
func (r Ring) Contains(p Vec2) bool {
	inside := false
	n := len(r)
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := r[i], r[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// SelfIntersects reports whether any two non-adjacent edges of the ring
// cross. Quadratic scan; rings passed through simplification guards are
// small enough for this to be cheap.
func (r Ring) SelfIntersects() bool {
	n := len(r)
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1 := r[i]
		a2 := r[(i+1)%n]
		for j := i + 2; j < n; j++ {
			// Skip the edge adjacent to i on the wrap-around side.
			if i == 0 && j == n-1 {
				continue
			}
			b1 := r[j]
			b2 := r[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports a proper intersection between segments a1-a2 and
// b1-b2 (shared endpoints do not count).
func segmentsCross(a1, a2, b1, b2 Vec2) bool {
	d1 := orient(b1, b2, a1)
	d2 := orient(b1, b2, a2)
	d3 := orient(a1, a2, b1)
	d4 := orient(a1, a2, b2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// orient returns >0 if c lies left of the directed line a→b, <0 if right.
func orient(a, b, c Vec2) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// Area returns the polygon's enclosed area: the outer ring's area minus the
// holes'.
func (p Polygon) Area() float64 {
	a := p.Outer.Area()
	for _, h := range p.Holes {
		a -= h.Area()
	}
	return a
}

// BoundingBox returns the outer ring's bounds.
func (p Polygon) BoundingBox() Rect {
	return p.Outer.BoundingBox()
}

// Canonicalize orients the outer ring counter-clockwise and all holes
// clockwise.
func (p *Polygon) Canonicalize() {
	if p.Outer.SignedArea() < 0 {
		p.Outer.Reverse()
	}
	for _, h := range p.Holes {
		if h.SignedArea() > 0 {
			h.Reverse()
		}
	}
}

// VertexCount returns the total number of vertices across all rings.
func (p Polygon) VertexCount() int {
	n := len(p.Outer)
	for _, h := range p.Holes {
		n += len(h)
	}
	return n
}
