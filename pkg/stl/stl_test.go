package stl

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/Faultbox/stratum/pkg/geom"
)

// testMesh builds a single-triangle mesh in the XY plane.
func testMesh() *Mesh {
	return &Mesh{
		Name: "wedge",
		Triangles: []Triangle{
			{
				Normal: geom.Vec3{Z: 1},
				V1:     geom.Vec3{X: 0, Y: 0, Z: 0},
				V2:     geom.Vec3{X: 2, Y: 0, Z: 0},
				V3:     geom.Vec3{X: 0, Y: 3, Z: 0},
			},
			{
				Normal: geom.Vec3{Z: -1},
				V1:     geom.Vec3{X: 0, Y: 0, Z: 0},
				V2:     geom.Vec3{X: 0, Y: 3, Z: 0},
				V3:     geom.Vec3{X: 2, Y: 0, Z: 0},
			},
		},
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	m := testMesh()

	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// 80-byte header + 4-byte count + 50 bytes per triangle.
	wantSize := 84 + 50*len(m.Triangles)
	if buf.Len() != wantSize {
		t.Errorf("encoded size = %d, want %d", buf.Len(), wantSize)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Name != "wedge" {
		t.Errorf("name = %q, want %q", got.Name, "wedge")
	}
	if len(got.Triangles) != len(m.Triangles) {
		t.Fatalf("triangle count = %d, want %d", len(got.Triangles), len(m.Triangles))
	}
	for i := range m.Triangles {
		if got.Triangles[i] != m.Triangles[i] {
			t.Errorf("triangle %d = %+v, want %+v", i, got.Triangles[i], m.Triangles[i])
		}
	}
}

func TestWrite_HeaderAvoidsASCIIMarker(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testMesh()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if bytes.HasPrefix(buf.Bytes(), []byte("solid")) {
		t.Error("binary STL header must not begin with \"solid\"")
	}
}

func TestRead_Truncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", make([]byte, 40)},
		{"missing count", make([]byte, 80)},
		{"missing triangles", func() []byte {
			buf := new(bytes.Buffer)
			buf.Write(make([]byte, 80))
			binary.Write(buf, binary.LittleEndian, uint32(3))
			return buf.Bytes()
		}()},
	}
	for _, tc := range tests {
		if _, err := Read(bytes.NewReader(tc.data)); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestRead_UnreasonableCount(t *testing.T) {
	buf := new(bytes.Buffer)
	buf.Write(make([]byte, 80))
	binary.Write(buf, binary.LittleEndian, uint32(maxTriangles+1))

	_, err := Read(buf)
	if err == nil {
		t.Fatal("expected error for oversized triangle count")
	}
}

func TestMesh_BoundingBox(t *testing.T) {
	m := testMesh()
	bbmin, bbmax := m.BoundingBox()
	if bbmin != (geom.Vec3{}) {
		t.Errorf("min = %v, want origin", bbmin)
	}
	if bbmax != (geom.Vec3{X: 2, Y: 3, Z: 0}) {
		t.Errorf("max = %v, want {2 3 0}", bbmax)
	}

	empty := &Mesh{}
	bbmin, bbmax = empty.BoundingBox()
	if bbmin != (geom.Vec3{}) || bbmax != (geom.Vec3{}) {
		t.Error("empty mesh should report zero bounds")
	}
}

func TestMesh_SurfaceArea(t *testing.T) {
	m := testMesh()
	// Two triangles of area 3 each.
	if got := m.SurfaceArea(); math.Abs(got-6) > 1e-6 {
		t.Errorf("SurfaceArea() = %v, want 6", got)
	}
}

func TestWriteReadFile(t *testing.T) {
	path := t.TempDir() + "/part.stl"
	if err := WriteFile(path, testMesh()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	m, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(m.Triangles) != 2 {
		t.Errorf("triangle count = %d, want 2", len(m.Triangles))
	}
}
