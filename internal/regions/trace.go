package regions

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/stratum/pkg/geom"
)

// edgeID names a lattice edge: the unit segment from point (X, Y) to its
// right neighbor (Vert false) or its lower neighbor (Vert true). Contour
// vertices live on lattice edges, so chaining by edge identity is exact --
// no float comparisons.
type edgeID struct {
	X, Y int
	Vert bool
}

// segment is one directed contour piece inside a single cell.
type segment struct {
	from, to edgeID
}

// traceGrid runs marching squares over the padded occupancy grid and
// returns every closed contour as a ring in mask pixel coordinates.
// The grid carries one pixel of zero padding on every side, so all
// contours close. Cells are scanned row-major and segments chained in
// creation order, which makes the output deterministic.
func traceGrid(grid *mat.Dense, iso float64) []geom.Ring {
	rows, cols := grid.Dims()
	raw := grid.RawMatrix()
	data := raw.Data
	stride := raw.Stride

	at := func(x, y int) float64 { return data[y*stride+x] }

	var segs []segment
	next := make(map[edgeID]edgeID)
	points := make(map[edgeID]geom.Vec2)

	// interp places the contour vertex on the edge between two lattice
	// points. Both cells sharing the edge compute it identically.
	interp := func(e edgeID) geom.Vec2 {
		if p, ok := points[e]; ok {
			return p
		}
		x2, y2 := e.X, e.Y
		if e.Vert {
			y2++
		} else {
			x2++
		}
		v0 := at(e.X, e.Y)
		v1 := at(x2, y2)
		t := 0.5
		if v1 != v0 {
			t = (iso - v0) / (v1 - v0)
		}
		p := geom.Vec2{
			X: float64(e.X) + t*float64(x2-e.X) - 1,
			Y: float64(e.Y) + t*float64(y2-e.Y) - 1,
		}
		points[e] = p
		return p
	}

	emit := func(from, to edgeID) {
		interp(from)
		interp(to)
		segs = append(segs, segment{from, to})
		next[from] = to
	}

	for cy := 0; cy < rows-1; cy++ {
		for cx := 0; cx < cols-1; cx++ {
			code := 0
			if at(cx, cy) >= iso {
				code |= 1 // top left
			}
			if at(cx+1, cy) >= iso {
				code |= 2 // top right
			}
			if at(cx+1, cy+1) >= iso {
				code |= 4 // bottom right
			}
			if at(cx, cy+1) >= iso {
				code |= 8 // bottom left
			}
			if code == 0 || code == 15 {
				continue
			}

			top := edgeID{cx, cy, false}
			bottom := edgeID{cx, cy + 1, false}
			left := edgeID{cx, cy, true}
			right := edgeID{cx + 1, cy, true}

			// Segments are directed with the occupied side on the
			// left of travel, so every loop chains consistently.
			switch code {
			case 1:
				emit(left, top)
			case 2:
				emit(top, right)
			case 3:
				emit(left, right)
			case 4:
				emit(right, bottom)
			case 5:
				// Saddle: the cell average decides whether the two
				// occupied corners connect through the center.
				avg := (at(cx, cy) + at(cx+1, cy) + at(cx+1, cy+1) + at(cx, cy+1)) / 4
				if avg >= iso {
					emit(right, top)
					emit(left, bottom)
				} else {
					emit(left, top)
					emit(right, bottom)
				}
			case 6:
				emit(top, bottom)
			case 7:
				emit(left, bottom)
			case 8:
				emit(bottom, left)
			case 9:
				emit(bottom, top)
			case 10:
				avg := (at(cx, cy) + at(cx+1, cy) + at(cx+1, cy+1) + at(cx, cy+1)) / 4
				if avg >= iso {
					emit(top, left)
					emit(bottom, right)
				} else {
					emit(top, right)
					emit(bottom, left)
				}
			case 11:
				emit(bottom, right)
			case 12:
				emit(right, left)
			case 13:
				emit(right, top)
			case 14:
				emit(top, left)
			}
		}
	}

	// Chain directed segments into closed rings, starting each ring at
	// the earliest unused segment.
	used := make(map[edgeID]bool, len(segs))
	var rings []geom.Ring
	for _, s := range segs {
		if used[s.from] {
			continue
		}
		var ring geom.Ring
		e := s.from
		for !used[e] {
			used[e] = true
			ring = append(ring, points[e])
			n, ok := next[e]
			if !ok {
				break
			}
			e = n
		}
		if len(ring) >= 3 {
			rings = append(rings, ring)
		}
	}
	return rings
}

// assemblePolygons sorts rings into outers and their holes by containment
// depth: rings inside an even number of other rings are outers, the rest
// are holes of their tightest enclosing outer.
func assemblePolygons(rings []geom.Ring) []geom.Polygon {
	if len(rings) == 0 {
		return nil
	}

	type ringInfo struct {
		ring  geom.Ring
		area  float64 // absolute
		depth int
	}
	infos := make([]ringInfo, len(rings))
	for i, r := range rings {
		infos[i] = ringInfo{ring: r, area: math.Abs(r.SignedArea())}
	}

	for i := range infos {
		probe := infos[i].ring[0]
		for j := range infos {
			if i == j {
				continue
			}
			// A strictly smaller ring cannot contain a larger one.
			if infos[j].area <= infos[i].area {
				continue
			}
			if infos[j].ring.Contains(probe) {
				infos[i].depth++
			}
		}
	}

	polys := make([]geom.Polygon, 0, len(infos))
	outerIdx := make([]int, len(infos)) // ring index -> polygon index
	for i := range infos {
		if infos[i].depth%2 == 0 {
			outerIdx[i] = len(polys)
			polys = append(polys, geom.Polygon{Outer: infos[i].ring})
		}
	}

	for i := range infos {
		if infos[i].depth%2 == 0 {
			continue
		}
		// The hole's parent is its tightest enclosing outer.
		parent := -1
		parentArea := math.MaxFloat64
		probe := infos[i].ring[0]
		for j := range infos {
			if j == i || infos[j].depth%2 != 0 {
				continue
			}
			if infos[j].area <= infos[i].area || infos[j].area >= parentArea {
				continue
			}
			if infos[j].ring.Contains(probe) {
				parent = j
				parentArea = infos[j].area
			}
		}
		if parent >= 0 {
			p := &polys[outerIdx[parent]]
			p.Holes = append(p.Holes, infos[i].ring)
		}
	}

	for i := range polys {
		polys[i].Canonicalize()
	}
	return polys
}
