package meshing

import (
	"strings"
	"testing"

	"github.com/Faultbox/stratum/internal/regions"
	"github.com/Faultbox/stratum/pkg/geom"
	"github.com/Faultbox/stratum/pkg/stl"
)

// cubeTriangles extrudes the reference cube used across validation tests.
func cubeTriangles(t *testing.T) []stl.Triangle {
	t.Helper()
	band := regions.Band{
		ZStart:   0,
		ZEnd:     2,
		Polygons: []geom.Polygon{{Outer: squareRing(0, 0, 4, 4)}},
	}
	tris, err := extrudeBand(band, newTransform(testOptions()))
	if err != nil {
		t.Fatalf("extrudeBand failed: %v", err)
	}
	return tris
}

func TestValidateManifoldAcceptsCube(t *testing.T) {
	if err := ValidateManifold(cubeTriangles(t)); err != nil {
		t.Errorf("cube rejected: %v", err)
	}
}

func TestValidateManifoldRejectsOpenBox(t *testing.T) {
	tris := cubeTriangles(t)
	err := ValidateManifold(tris[:len(tris)-1])
	if err == nil {
		t.Fatal("open box accepted")
	}
	if !strings.Contains(err.Error(), "open edge") {
		t.Errorf("error = %q, want an open-edge report", err)
	}
}

func TestValidateManifoldRejectsZeroArea(t *testing.T) {
	tris := cubeTriangles(t)
	a := tris[0].V1
	tris = append(tris, stl.Triangle{V1: a, V2: a, V3: tris[0].V2})
	err := ValidateManifold(tris)
	if err == nil {
		t.Fatal("zero-area triangle accepted")
	}
	if !strings.Contains(err.Error(), "zero area") {
		t.Errorf("error = %q, want a zero-area report", err)
	}
}

func TestValidateManifoldRejectsFlippedFace(t *testing.T) {
	tris := cubeTriangles(t)
	tris[0].V2, tris[0].V3 = tris[0].V3, tris[0].V2
	err := ValidateManifold(tris)
	if err == nil {
		t.Fatal("flipped face accepted")
	}
	if !strings.Contains(err.Error(), "winding") {
		t.Errorf("error = %q, want a winding report", err)
	}
}

func TestValidateManifoldRejectsEmpty(t *testing.T) {
	if err := ValidateManifold(nil); err != ErrEmptyMesh {
		t.Errorf("ValidateManifold(nil) = %v, want ErrEmptyMesh", err)
	}
}

func TestSignedVolumeFlipsWithOrientation(t *testing.T) {
	tris := cubeTriangles(t)
	v := SignedVolume(tris)
	if v <= 0 {
		t.Fatalf("outward-oriented cube has volume %v, want positive", v)
	}
	for i := range tris {
		tris[i].V2, tris[i].V3 = tris[i].V3, tris[i].V2
	}
	if got := SignedVolume(tris); got != -v {
		t.Errorf("inverted cube volume = %v, want %v", got, -v)
	}
}
