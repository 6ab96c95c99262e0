package meshing

import (
	"math"
	"testing"

	"github.com/Faultbox/stratum/internal/regions"
	"github.com/Faultbox/stratum/pkg/geom"
	"github.com/Faultbox/stratum/pkg/stl"
)

// testOptions maps pixels 1:1 to millimeters over a 10x10 label map.
func testOptions() Options {
	return Options{
		LayerHeight:  0.5,
		TargetSizeCM: 1,
		PixelWidth:   10,
		PixelHeight:  10,
	}
}

func squareRing(x0, y0, x1, y1 float64) geom.Ring {
	return geom.Ring{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func TestExtrudeCube(t *testing.T) {
	band := regions.Band{
		Filament: 0,
		ZStart:   0,
		ZEnd:     2,
		Polygons: []geom.Polygon{{Outer: squareRing(0, 0, 4, 4)}},
	}

	tris, err := extrudeBand(band, newTransform(testOptions()))
	if err != nil {
		t.Fatalf("extrudeBand failed: %v", err)
	}
	if len(tris) != 12 {
		t.Errorf("cube extruded to %d triangles, want 12", len(tris))
	}
	if err := ValidateManifold(tris); err != nil {
		t.Errorf("cube prism not manifold: %v", err)
	}

	// 4x4 footprint, two layers of 0.5mm.
	if got, want := SignedVolume(tris), 16.0; math.Abs(got-want) > 1e-6 {
		t.Errorf("signed volume = %v, want %v", got, want)
	}

	bbmin, bbmax := bounds(tris)
	if bbmin.Z != 0 || bbmax.Z != 1 {
		t.Errorf("z extents [%v, %v], want [0, 1]", bbmin.Z, bbmax.Z)
	}
	// The image Y axis mirrors around the label-map height: pixel rows
	// 0..4 land at printer Y 5..9.
	if bbmin.Y != 5 || bbmax.Y != 9 {
		t.Errorf("y extents [%v, %v], want [5, 9] after mirroring", bbmin.Y, bbmax.Y)
	}
	if bbmin.X != 0 || bbmax.X != 4 {
		t.Errorf("x extents [%v, %v], want [0, 4]", bbmin.X, bbmax.X)
	}
}

func TestExtrudeDonut(t *testing.T) {
	band := regions.Band{
		Filament: 0,
		ZStart:   1,
		ZEnd:     3,
		Polygons: []geom.Polygon{{
			Outer: squareRing(0, 0, 6, 6),
			Holes: []geom.Ring{squareRing(2, 2, 4, 4)},
		}},
	}

	tris, err := extrudeBand(band, newTransform(testOptions()))
	if err != nil {
		t.Fatalf("extrudeBand failed: %v", err)
	}
	if err := ValidateManifold(tris); err != nil {
		t.Errorf("donut prism not manifold: %v", err)
	}

	// (36 - 4) square millimeters footprint, 1mm tall.
	if got, want := SignedVolume(tris), 32.0; math.Abs(got-want) > 1e-6 {
		t.Errorf("signed volume = %v, want %v", got, want)
	}

	bbmin, bbmax := bounds(tris)
	if math.Abs(float64(bbmin.Z)-0.5) > 1e-6 || math.Abs(float64(bbmax.Z)-1.5) > 1e-6 {
		t.Errorf("z extents [%v, %v], want [0.5, 1.5]", bbmin.Z, bbmax.Z)
	}
}

func TestExtrudeTwoIslands(t *testing.T) {
	band := regions.Band{
		Filament: 0,
		ZStart:   0,
		ZEnd:     1,
		Polygons: []geom.Polygon{
			{Outer: squareRing(0, 0, 2, 2)},
			{Outer: squareRing(5, 5, 8, 8)},
		},
	}

	tris, err := extrudeBand(band, newTransform(testOptions()))
	if err != nil {
		t.Fatalf("extrudeBand failed: %v", err)
	}
	if err := ValidateManifold(tris); err != nil {
		t.Errorf("two disjoint prisms not manifold: %v", err)
	}
	if got, want := SignedVolume(tris), (4.0+9.0)*0.5; math.Abs(got-want) > 1e-6 {
		t.Errorf("signed volume = %v, want %v", got, want)
	}
}

func TestExtrudeDegenerateRing(t *testing.T) {
	band := regions.Band{
		Filament: 0,
		ZStart:   0,
		ZEnd:     1,
		Polygons: []geom.Polygon{{Outer: geom.Ring{{X: 0, Y: 0}, {X: 1, Y: 0}}}},
	}
	if _, err := extrudeBand(band, newTransform(testOptions())); err == nil {
		t.Error("expected error for a two-vertex ring, got nil")
	}
}

// bounds returns the axis-aligned extents of a triangle soup.
func bounds(tris []stl.Triangle) (geom.Vec3, geom.Vec3) {
	m := stl.Mesh{Triangles: tris}
	return m.BoundingBox()
}
