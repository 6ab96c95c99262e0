package meshing

import (
	"fmt"

	"github.com/Faultbox/stratum/internal/regions"
	"github.com/Faultbox/stratum/pkg/geom"
	"github.com/Faultbox/stratum/pkg/stl"
)

// transform maps label-map pixel coordinates into printer space: XY scaled
// to millimeters, Y mirrored so the image top faces +Y on the bed, Z in
// physical layer heights.
type transform struct {
	scaleXY     float64 // mm per pixel
	layerHeight float64 // mm per layer
	flipY       float64 // pixel-space height around which Y mirrors
}

func newTransform(opts Options) transform {
	longest := opts.PixelWidth
	if opts.PixelHeight > longest {
		longest = opts.PixelHeight
	}
	return transform{
		scaleXY:     opts.TargetSizeCM * 10 / float64(longest),
		layerHeight: opts.LayerHeight,
		flipY:       float64(opts.PixelHeight - 1),
	}
}

func (t transform) ring(r geom.Ring) geom.Ring {
	out := make(geom.Ring, len(r))
	for i, v := range r {
		out[i] = geom.Vec2{
			X: v.X * t.scaleXY,
			Y: (t.flipY - v.Y) * t.scaleXY,
		}
	}
	return out
}

// polygon transforms all rings into printer space. Mirroring Y reverses
// every winding, so the result is re-canonicalized.
func (t transform) polygon(p geom.Polygon) geom.Polygon {
	out := geom.Polygon{Outer: t.ring(p.Outer)}
	for _, h := range p.Holes {
		out.Holes = append(out.Holes, t.ring(h))
	}
	out.Canonicalize()
	return out
}

// z converts a global layer index to a printer-space height.
func (t transform) z(layer int) float32 {
	return float32(float64(layer) * t.layerHeight)
}

// extrudeBand builds the band's closed prism: a bottom and top cap
// triangulated over the polygon set, and side walls along every boundary
// ring between the two cap planes. Caps and walls share bit-identical
// vertices, so the edge pairing the manifold check relies on is exact.
func extrudeBand(band regions.Band, tf transform) ([]stl.Triangle, error) {
	z0 := tf.z(band.ZStart)
	z1 := tf.z(band.ZEnd)

	var tris []stl.Triangle
	for i, poly := range band.Polygons {
		p := tf.polygon(poly)

		caps, err := geom.Triangulate(p)
		if err != nil {
			return nil, fmt.Errorf("polygon %d: %w", i, err)
		}
		for _, c := range caps {
			// Counter-clockwise cap triangles face +Z at the top;
			// the bottom cap reverses to face the bed.
			top := triangle(lift(c[0], z1), lift(c[1], z1), lift(c[2], z1))
			bottom := triangle(lift(c[0], z0), lift(c[2], z0), lift(c[1], z0))
			tris = append(tris, bottom, top)
		}

		tris = appendWalls(tris, p.Outer, z0, z1)
		for _, h := range p.Holes {
			tris = appendWalls(tris, h, z0, z1)
		}
	}
	return tris, nil
}

// appendWalls emits two triangles per ring edge between the cap planes.
// Rings arrive canonical (outer counter-clockwise, holes clockwise), which
// puts the solid on the left of travel and the outward face on the right,
// for both ring kinds.
func appendWalls(tris []stl.Triangle, ring geom.Ring, z0, z1 float32) []stl.Triangle {
	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		if a == b {
			continue
		}
		aBot, bBot := lift(a, z0), lift(b, z0)
		aTop, bTop := lift(a, z1), lift(b, z1)
		tris = append(tris,
			triangle(aBot, bBot, bTop),
			triangle(aBot, bTop, aTop),
		)
	}
	return tris
}

func lift(v geom.Vec2, z float32) geom.Vec3 {
	return geom.Vec3{X: float32(v.X), Y: float32(v.Y), Z: z}
}

func triangle(v1, v2, v3 geom.Vec3) stl.Triangle {
	return stl.Triangle{
		Normal: v2.Sub(v1).Cross(v3.Sub(v1)).Normalize(),
		V1:     v1,
		V2:     v2,
		V3:     v3,
	}
}
