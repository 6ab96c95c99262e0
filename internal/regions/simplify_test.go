package regions

import (
	"math"
	"testing"

	"github.com/Faultbox/stratum/pkg/geom"
)

func TestSimplifyRingDropsCollinear(t *testing.T) {
	ring := geom.Ring{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 1},
		{X: 2, Y: 2}, {X: 1, Y: 2}, {X: 0, Y: 2}, {X: 0, Y: 1},
	}
	got := simplifyRing(ring, 0.1)
	if len(got) != 4 {
		t.Fatalf("simplified ring has %d vertices, want 4 corners", len(got))
	}
	if math.Abs(got.SignedArea()-ring.SignedArea()) > 1e-9 {
		t.Errorf("area changed: %v -> %v", ring.SignedArea(), got.SignedArea())
	}
}

func TestSimplifyRingShortUnchanged(t *testing.T) {
	ring := geom.Ring{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 3}, {X: 0, Y: 3}}
	got := simplifyRing(ring, 10)
	if len(got) != 4 {
		t.Fatalf("ring below the vertex floor was modified: %d vertices", len(got))
	}
}

func TestSimplifyGuardedRejectsCollapse(t *testing.T) {
	ring := geom.Ring{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 1},
		{X: 2, Y: 2}, {X: 1, Y: 2}, {X: 0, Y: 2}, {X: 0, Y: 1},
	}
	// A huge tolerance collapses the ring below three vertices; the
	// guard must hand back the original.
	got := simplifyGuarded(ring, 100)
	if len(got) != len(ring) {
		t.Fatalf("collapsed ring was not reverted: %d vertices, want %d", len(got), len(ring))
	}
}

func TestPerpendicularDistance(t *testing.T) {
	tests := []struct {
		name    string
		p, a, b geom.Vec2
		want    float64
	}{
		{"above segment", geom.Vec2{X: 1, Y: 1}, geom.Vec2{}, geom.Vec2{X: 2}, 1},
		{"beyond end clamps", geom.Vec2{X: 3, Y: 0}, geom.Vec2{}, geom.Vec2{X: 2}, 1},
		{"before start clamps", geom.Vec2{X: -2, Y: 0}, geom.Vec2{}, geom.Vec2{X: 2}, 2},
		{"degenerate segment", geom.Vec2{X: 3, Y: 4}, geom.Vec2{}, geom.Vec2{}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := perpendicularDistance(tt.p, tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("perpendicularDistance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimplifyPolygonKeepsHoleInside(t *testing.T) {
	mask := emptyMask(10, 10)
	fillRect(mask, 1, 1, 8, 8, 1)
	fillRect(mask, 4, 4, 5, 5, 0)
	polys := assemblePolygons(traceGrid(gridFromMask(mask), 0.5))
	if len(polys) != 1 || len(polys[0].Holes) != 1 {
		t.Fatalf("fixture did not trace to one polygon with one hole")
	}

	before := polys[0].VertexCount()
	got := simplifyPolygon(polys[0], 0.4)
	if got.VertexCount() > before {
		t.Errorf("simplification grew the polygon: %d -> %d vertices", before, got.VertexCount())
	}
	if got.Outer.SignedArea() <= 0 {
		t.Errorf("outer winding flipped")
	}
	if len(got.Holes) != 1 {
		t.Fatalf("hole count changed: %d", len(got.Holes))
	}
	if got.Holes[0].SignedArea() >= 0 {
		t.Errorf("hole winding flipped")
	}
	if !got.Outer.Contains(got.Holes[0][0]) {
		t.Errorf("hole escaped the simplified outer ring")
	}
	if got.Outer.SelfIntersects() {
		t.Errorf("simplified outer crosses itself")
	}
}

func TestSimplifyRoundTripThroughGuards(t *testing.T) {
	// Chamfered corners sit about 0.2 pixels off the corner diagonal; a
	// tolerance above that straightens them into a plain square.
	mask := emptyMask(7, 7)
	fillRect(mask, 1, 1, 5, 5, 1)
	polys := assemblePolygons(traceGrid(gridFromMask(mask), 0.5))
	if len(polys) != 1 {
		t.Fatalf("fixture did not trace to one polygon")
	}

	got := simplifyGuarded(polys[0].Outer, 0.5)
	if len(got) >= len(polys[0].Outer) {
		t.Errorf("tolerance 0.5 did not remove chamfer vertices: %d vertices", len(got))
	}
	if got.SelfIntersects() {
		t.Errorf("simplified ring crosses itself")
	}
	if got.SignedArea() <= 0 {
		t.Errorf("winding flipped")
	}
}
