package geom

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateRing is returned when a boundary loop has fewer than three
// vertices and cannot bound any area.
var ErrDegenerateRing = errors.New("ring has fewer than 3 vertices")

// Triangulate converts the polygon into a set of triangles covering its
// interior. Holes are first bridged into the outer ring with zero-width
// corridors, then the merged ring is ear-clipped. The polygon must be
// canonical (outer counter-clockwise, holes clockwise). The result is
// deterministic for identical input.
func Triangulate(p Polygon) ([][3]Vec2, error) {
	if len(p.Outer) < 3 {
		return nil, fmt.Errorf("outer: %w", ErrDegenerateRing)
	}
	for i, h := range p.Holes {
		if len(h) < 3 {
			return nil, fmt.Errorf("hole %d: %w", i, ErrDegenerateRing)
		}
	}

	ring := bridgeHoles(p)
	return earClip(ring), nil
}

// bridgeHoles merges hole rings into the outer ring. Each hole is joined at
// its rightmost vertex to a visible outer-ring vertex, forming a single
// convex-walkable boundary. Holes are processed rightmost-first so earlier
// bridges cannot occlude later ones.
func bridgeHoles(p Polygon) Ring {
	outer := make(Ring, len(p.Outer))
	copy(outer, p.Outer)
	if len(p.Holes) == 0 {
		return outer
	}

	// Sort hole order by rightmost vertex, descending, without mutating
	// the input polygon.
	type holeRef struct {
		ring Ring
		mIdx int // index of rightmost vertex
	}
	holes := make([]holeRef, 0, len(p.Holes))
	for _, h := range p.Holes {
		m := 0
		for i := range h {
			if h[i].X > h[m].X {
				m = i
			}
		}
		holes = append(holes, holeRef{ring: h, mIdx: m})
	}
	for i := 0; i < len(holes); i++ {
		for j := i + 1; j < len(holes); j++ {
			if holes[j].ring[holes[j].mIdx].X > holes[i].ring[holes[i].mIdx].X {
				holes[i], holes[j] = holes[j], holes[i]
			}
		}
	}

	for _, h := range holes {
		outer = spliceHole(outer, h.ring, h.mIdx)
	}
	return outer
}

// spliceHole joins one hole into the ring at a mutually visible vertex pair
// and returns the merged ring. The join duplicates the two bridge vertices,
// creating a zero-width corridor.
func spliceHole(outer Ring, hole Ring, mIdx int) Ring {
	m := hole[mIdx]
	bIdx := visibleOuterVertex(outer, m)

	merged := make(Ring, 0, len(outer)+len(hole)+2)
	merged = append(merged, outer[:bIdx+1]...)
	// Walk the whole hole starting at its bridge vertex.
	for i := 0; i <= len(hole); i++ {
		merged = append(merged, hole[(mIdx+i)%len(hole)])
	}
	merged = append(merged, outer[bIdx])
	merged = append(merged, outer[bIdx+1:]...)
	return merged
}

// visibleOuterVertex finds an outer-ring vertex visible from point m along
// the +X direction, following the classic ray-cast-then-refine rule: cast a
// ray from m toward +X, find the nearest crossed edge, take that edge's
// rightward endpoint as candidate, then prefer any reflex vertex inside the
// triangle (m, intersection, candidate) that lies closest to the ray.
func visibleOuterVertex(outer Ring, m Vec2) int {
	n := len(outer)
	bestT := math.Inf(1)
	candIdx := -1
	var hit Vec2

	for i := 0; i < n; i++ {
		a := outer[i]
		b := outer[(i+1)%n]
		// Edge must straddle the horizontal line through m.
		if (a.Y > m.Y) == (b.Y > m.Y) {
			continue
		}
		t := a.X + (m.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		if t >= m.X && t < bestT {
			bestT = t
			hit = Vec2{t, m.Y}
			if a.X > b.X {
				candIdx = i
			} else {
				candIdx = (i + 1) % n
			}
		}
	}
	if candIdx < 0 {
		// Hole outside the outer ring; degenerate input. Fall back to the
		// nearest outer vertex so the caller still gets a closed ring.
		best := 0
		for i := 1; i < n; i++ {
			if outer[i].Distance(m) < outer[best].Distance(m) {
				best = i
			}
		}
		return best
	}

	// Refine: a reflex outer vertex inside triangle (m, hit, candidate)
	// would block the bridge; connect to the blocking vertex closest in
	// angle to the ray instead.
	c := outer[candIdx]
	bestIdx := candIdx
	bestTan := math.Inf(1)
	for i := 0; i < n; i++ {
		v := outer[i]
		if v == m || v == c || v == hit {
			continue
		}
		if !pointInTriangle(v, m, hit, c) {
			continue
		}
		dx := v.X - m.X
		if dx <= 0 {
			continue
		}
		tan := math.Abs(v.Y-m.Y) / dx
		if tan < bestTan || (tan == bestTan && v.X > outer[bestIdx].X) {
			bestTan = tan
			bestIdx = i
		}
	}
	return bestIdx
}

// earClip triangulates a simple (possibly corridor-bridged) ring. Vertices
// are consumed in deterministic index order; if no ear is found the
// remainder is fanned from its first vertex.
func earClip(ring Ring) [][3]Vec2 {
	n := len(ring)
	if n < 3 {
		return nil
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	tris := make([][3]Vec2, 0, n-2)
	for len(indices) > 3 {
		earFound := false
		for i := 0; i < len(indices); i++ {
			if !isEar(ring, indices, i) {
				continue
			}
			prev := indices[(i-1+len(indices))%len(indices)]
			curr := indices[i]
			next := indices[(i+1)%len(indices)]
			tris = append(tris, [3]Vec2{ring[prev], ring[curr], ring[next]})
			indices = append(indices[:i], indices[i+1:]...)
			earFound = true
			break
		}
		if !earFound {
			// Fan out whatever remains rather than spinning forever on a
			// degenerate remainder.
			for i := 1; i < len(indices)-1; i++ {
				tris = append(tris, [3]Vec2{
					ring[indices[0]],
					ring[indices[i]],
					ring[indices[i+1]],
				})
			}
			return tris
		}
	}
	tris = append(tris, [3]Vec2{ring[indices[0]], ring[indices[1]], ring[indices[2]]})
	return tris
}

// isEar reports whether the vertex at position i of the index list forms a
// convex corner containing no other remaining vertex.
func isEar(ring Ring, indices []int, i int) bool {
	n := len(indices)
	a := ring[indices[(i-1+n)%n]]
	b := ring[indices[i]]
	c := ring[indices[(i+1)%n]]

	// Convexity for a counter-clockwise ring.
	if orient(a, b, c) <= 0 {
		return false
	}

	for j := 0; j < n; j++ {
		jj := (i-1+n)%n == j || i == j || (i+1)%n == j
		if jj {
			continue
		}
		p := ring[indices[j]]
		// Bridge corridors duplicate vertices; a copy sitting exactly on a
		// corner does not block the ear.
		if p == a || p == b || p == c {
			continue
		}
		if pointInTriangle(p, a, b, c) {
			return false
		}
	}
	return true
}

// pointInTriangle reports whether p lies inside or on triangle (a, b, c).
func pointInTriangle(p, a, b, c Vec2) bool {
	d1 := orient(a, b, p)
	d2 := orient(b, c, p)
	d3 := orient(c, a, p)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}
