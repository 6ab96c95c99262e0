package regions

import (
	"math"

	"github.com/Faultbox/stratum/pkg/geom"
)

// simplifyRing reduces a closed ring with Douglas-Peucker under the given
// tolerance. The ring is split at its two most distant vertices so the
// closed shape survives; each half is simplified independently.
func simplifyRing(ring geom.Ring, tol float64) geom.Ring {
	if tol <= 0 || len(ring) < 5 {
		return ring
	}

	// Anchor at vertex 0 and the vertex farthest from it.
	far := 0
	farDist := -1.0
	for i := 1; i < len(ring); i++ {
		if d := ring[0].Distance(ring[i]); d > farDist {
			farDist = d
			far = i
		}
	}
	if far == 0 {
		return ring
	}

	first := douglasPeucker(ring[:far+1], tol)
	secondInput := append(geom.Ring{}, ring[far:]...)
	secondInput = append(secondInput, ring[0])
	second := douglasPeucker(secondInput, tol)

	// Join halves, dropping the duplicated anchors.
	out := append(geom.Ring{}, first...)
	out = append(out, second[1:len(second)-1]...)
	return out
}

// douglasPeucker simplifies an open polyline, always keeping both ends.
// Results are freshly allocated so recursion never aliases the input.
func douglasPeucker(line geom.Ring, tol float64) geom.Ring {
	if len(line) < 3 {
		return append(geom.Ring{}, line...)
	}

	maxDist := -1.0
	maxIdx := 0
	a := line[0]
	b := line[len(line)-1]
	for i := 1; i < len(line)-1; i++ {
		if d := perpendicularDistance(line[i], a, b); d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}
	if maxDist <= tol {
		return geom.Ring{a, b}
	}

	left := douglasPeucker(line[:maxIdx+1], tol)
	right := douglasPeucker(line[maxIdx:], tol)
	return append(left[:len(left)-1], right...)
}

// perpendicularDistance is the distance from p to the segment ab.
func perpendicularDistance(p, a, b geom.Vec2) float64 {
	ab := b.Sub(a)
	length2 := ab.Dot(ab)
	if length2 == 0 {
		return p.Distance(a)
	}
	t := p.Sub(a).Dot(ab) / length2
	t = math.Max(0, math.Min(1, t))
	proj := a.Add(ab.Scale(t))
	return p.Distance(proj)
}

// simplifyPolygon simplifies every ring of the polygon, guarding topology:
// a ring whose simplification collapses or self-intersects keeps its traced
// form, and a hole that escapes the simplified outer reverts the outer.
func simplifyPolygon(p geom.Polygon, tol float64) geom.Polygon {
	out := geom.Polygon{Outer: simplifyGuarded(p.Outer, tol)}
	for _, h := range p.Holes {
		out.Holes = append(out.Holes, simplifyGuarded(h, tol))
	}

	// The outer must still contain every hole.
	for _, h := range out.Holes {
		if !out.Outer.Contains(h[0]) {
			out.Outer = p.Outer
			break
		}
	}
	return out
}

// simplifyGuarded simplifies one ring and falls back to the original when
// the result is degenerate or crosses itself.
func simplifyGuarded(ring geom.Ring, tol float64) geom.Ring {
	s := simplifyRing(ring, tol)
	if len(s) < 3 || s.SelfIntersects() {
		return ring
	}
	// Simplification must not flip the winding.
	if (s.SignedArea() > 0) != (ring.SignedArea() > 0) {
		return ring
	}
	return s
}
