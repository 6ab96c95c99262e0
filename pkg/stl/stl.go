// Package stl reads and writes binary STL geometry files.
package stl

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/stratum/pkg/geom"
)

// Binary STL format errors.
var (
	ErrTruncatedSTL    = errors.New("truncated STL data")
	ErrTooManySTLFaces = errors.New("unreasonable STL triangle count")
)

// maxTriangles bounds Read against corrupt counts; 100M triangles is far
// beyond anything this engine emits or consumes.
const maxTriangles = 100_000_000

// headerSize is the fixed binary STL comment header length.
const headerSize = 80

// Triangle is a single oriented facet.
type Triangle struct {
	Normal     geom.Vec3
	V1, V2, V3 geom.Vec3
}

// Mesh is a triangle soup with a display name. The name is stored in the
// binary header, truncated to fit.
type Mesh struct {
	Name      string
	Triangles []Triangle
}

// IsEmpty reports whether the mesh has no triangles.
func (m *Mesh) IsEmpty() bool {
	return len(m.Triangles) == 0
}

// BoundingBox returns the axis-aligned bounds over all vertices.
// A nil or empty mesh returns two zero vectors.
func (m *Mesh) BoundingBox() (bbmin, bbmax geom.Vec3) {
	if m == nil || len(m.Triangles) == 0 {
		return geom.Vec3{}, geom.Vec3{}
	}
	bbmin = m.Triangles[0].V1
	bbmax = m.Triangles[0].V1
	for _, t := range m.Triangles {
		for _, v := range [3]geom.Vec3{t.V1, t.V2, t.V3} {
			bbmin = bbmin.Min(v)
			bbmax = bbmax.Max(v)
		}
	}
	return bbmin, bbmax
}

// SurfaceArea returns the summed area of all facets.
func (m *Mesh) SurfaceArea() float64 {
	var area float64
	for _, t := range m.Triangles {
		e1 := t.V2.Sub(t.V1)
		e2 := t.V3.Sub(t.V1)
		area += float64(e1.Cross(e2).Length()) / 2
	}
	return area
}

// rawTriangle is the 50-byte on-disk facet record.
type rawTriangle struct {
	Normal [3]float32
	Verts  [3][3]float32
	Attr   uint16
}

// Write serializes the mesh as binary STL (little-endian).
func Write(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)

	var header [headerSize]byte
	// Binary files must not begin with "solid", which marks the ASCII
	// variant for many consumers.
	copy(header[:], "binary stl: "+m.Name)
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("writing STL header: %w", err)
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Triangles))); err != nil {
		return fmt.Errorf("writing STL triangle count: %w", err)
	}

	for i, t := range m.Triangles {
		raw := rawTriangle{
			Normal: [3]float32{t.Normal.X, t.Normal.Y, t.Normal.Z},
			Verts: [3][3]float32{
				{t.V1.X, t.V1.Y, t.V1.Z},
				{t.V2.X, t.V2.Y, t.V2.Z},
				{t.V3.X, t.V3.Y, t.V3.Z},
			},
		}
		if err := binary.Write(bw, binary.LittleEndian, &raw); err != nil {
			return fmt.Errorf("writing STL triangle %d: %w", i, err)
		}
	}

	return bw.Flush()
}

// WriteFile serializes the mesh as binary STL to the given path.
func WriteFile(path string, m *Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating STL file: %w", err)
	}
	if err := Write(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read parses a binary STL stream.
func Read(r io.Reader) (*Mesh, error) {
	br := bufio.NewReader(r)

	var header [headerSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedSTL)
	}

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: reading triangle count", ErrTruncatedSTL)
	}
	if count > maxTriangles {
		return nil, fmt.Errorf("%w: %d", ErrTooManySTLFaces, count)
	}

	m := &Mesh{
		Name:      headerName(header[:]),
		Triangles: make([]Triangle, count),
	}
	for i := uint32(0); i < count; i++ {
		var raw rawTriangle
		if err := binary.Read(br, binary.LittleEndian, &raw); err != nil {
			return nil, fmt.Errorf("%w: reading triangle %d", ErrTruncatedSTL, i)
		}
		m.Triangles[i] = Triangle{
			Normal: geom.Vec3{X: raw.Normal[0], Y: raw.Normal[1], Z: raw.Normal[2]},
			V1:     geom.Vec3{X: raw.Verts[0][0], Y: raw.Verts[0][1], Z: raw.Verts[0][2]},
			V2:     geom.Vec3{X: raw.Verts[1][0], Y: raw.Verts[1][1], Z: raw.Verts[1][2]},
			V3:     geom.Vec3{X: raw.Verts[2][0], Y: raw.Verts[2][1], Z: raw.Verts[2][2]},
		}
	}
	return m, nil
}

// ReadFile parses a binary STL file from disk.
func ReadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening STL file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// headerName recovers the mesh name written by Write; unrecognized headers
// yield an empty name.
func headerName(header []byte) string {
	const prefix = "binary stl: "
	if len(header) < len(prefix) || string(header[:len(prefix)]) != prefix {
		return ""
	}
	rest := header[len(prefix):]
	end := len(rest)
	for i, b := range rest {
		if b == 0 {
			end = i
			break
		}
	}
	return string(rest[:end])
}
