package meshing

import (
	"errors"
	"fmt"

	"github.com/Faultbox/stratum/pkg/geom"
	"github.com/Faultbox/stratum/pkg/stl"
)

// ErrEmptyMesh is returned when a solid has no triangles to validate.
var ErrEmptyMesh = errors.New("mesh has no triangles")

// edgeUse counts how often an undirected edge is traversed in each
// direction across all triangles.
type edgeUse struct {
	fwd, rev int
}

// ValidateManifold checks that the triangles form a closed, consistently
// oriented solid: no zero-area faces, and every undirected edge shared by
// exactly two triangles traversing it in opposite directions. Vertices are
// compared exactly; the extruder emits coincident vertices bit-identically.
func ValidateManifold(tris []stl.Triangle) error {
	if len(tris) == 0 {
		return ErrEmptyMesh
	}

	type edgeKey struct {
		a, b geom.Vec3
	}
	edges := make(map[edgeKey]*edgeUse, len(tris)*3/2)

	for i, t := range tris {
		if degenerate(t) {
			return fmt.Errorf("triangle %d has zero area", i)
		}
		for _, e := range [3][2]geom.Vec3{{t.V1, t.V2}, {t.V2, t.V3}, {t.V3, t.V1}} {
			key := edgeKey{e[0], e[1]}
			forward := true
			if vecLess(e[1], e[0]) {
				key = edgeKey{e[1], e[0]}
				forward = false
			}
			use := edges[key]
			if use == nil {
				use = &edgeUse{}
				edges[key] = use
			}
			if forward {
				use.fwd++
			} else {
				use.rev++
			}
		}
	}

	for key, use := range edges {
		if use.fwd == 1 && use.rev == 1 {
			continue
		}
		if use.fwd+use.rev == 1 {
			return fmt.Errorf("open edge %v-%v", key.a, key.b)
		}
		if use.fwd != use.rev {
			return fmt.Errorf("inconsistent winding on edge %v-%v", key.a, key.b)
		}
		return fmt.Errorf("edge %v-%v shared by %d faces", key.a, key.b, use.fwd+use.rev)
	}
	return nil
}

// SignedVolume integrates the solid's volume over its faces (divergence
// theorem). Positive for a closed solid with outward normals; a negative
// result means the orientation is inside out.
func SignedVolume(tris []stl.Triangle) float64 {
	var v float64
	for _, t := range tris {
		v += float64(t.V1.Dot(t.V2.Cross(t.V3)))
	}
	return v / 6
}

// degenerate reports a triangle with no area: coincident or collinear
// vertices.
func degenerate(t stl.Triangle) bool {
	c := t.V2.Sub(t.V1).Cross(t.V3.Sub(t.V1))
	return c.X == 0 && c.Y == 0 && c.Z == 0
}

// vecLess orders vertices lexicographically by X, Y, Z.
func vecLess(a, b geom.Vec3) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}
