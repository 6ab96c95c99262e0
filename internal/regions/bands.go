// Package regions converts per-pixel shade assignments into per-filament
// polygon bands: contiguous runs of print layers sharing one footprint.
package regions

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/stratum/internal/palette"
	"github.com/Faultbox/stratum/internal/raster"
	"github.com/Faultbox/stratum/pkg/geom"
)

// Band is one extrusion unit: a filament's footprint over the contiguous
// global layer range [ZStart, ZEnd).
type Band struct {
	Filament int
	ZStart   int
	ZEnd     int
	Polygons []geom.Polygon
}

// Height returns the band's thickness in layers.
func (b Band) Height() int {
	return b.ZEnd - b.ZStart
}

// Degenerate records a polygon dropped during extraction.
type Degenerate struct {
	Filament int
	Z        int
	Area     float64
	Reason   string
}

// Report accumulates non-fatal extraction findings.
type Report struct {
	Degenerate []Degenerate
	// Bands counts the bands produced per filament.
	Bands []int
}

// Options control contour tracing and cleanup.
type Options struct {
	// IsoLevel is the threshold the contour follows across the 0/1
	// occupancy grid. Lower values hug occupied pixels tighter.
	IsoLevel float64
	// SimplifyTol is the Douglas-Peucker tolerance in pixels.
	SimplifyTol float64
	// MinArea prunes polygons below this many square pixels.
	MinArea float64
	// BaseLayers is the solid slab under the color stack, owned by the
	// bottom filament over the whole material silhouette.
	BaseLayers int
}

// interval is a filament's occupied global layer range at one pixel.
type interval struct {
	start, end int32
}

// Extract converts a label map into per-filament bands. For every pixel,
// filaments occupy disjoint global layer ranges stacked bottom to top in
// stack order, with the base slab below them; consecutive layers with
// identical footprints merge into a single band. The context is checked
// between filaments and between layers, so a cancelled extraction returns
// promptly without partial results.
func Extract(ctx context.Context, lm *raster.LabelMap, table *palette.ShadeTable, opts Options) ([]Band, *Report, error) {
	if len(table.Entries) == 0 {
		return nil, nil, fmt.Errorf("shade table is empty")
	}
	filaments := len(table.Entries[0].Key)
	intervals := entryIntervals(table, filaments, opts.BaseLayers)

	report := &Report{Bands: make([]int, filaments)}
	var bands []Band

	for f := 0; f < filaments; f++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		zMin, zMax := filamentZRange(lm, intervals, f)
		if zMin >= zMax {
			continue
		}

		grid := paddedGrid(lm.W, lm.H)
		mask := make([]byte, lm.W*lm.H)
		prevMask := make([]byte, lm.W*lm.H)
		havePrev := false

		var current *Band
		for z := zMin; z < zMax; z++ {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}

			fillMask(mask, lm, intervals, f, z)

			// Identical footprint: the band grows taller and the
			// layer is never retraced.
			if havePrev && bytes.Equal(mask, prevMask) {
				if current != nil {
					current.ZEnd = z + 1
				}
				continue
			}
			if current != nil {
				bands = append(bands, *current)
				report.Bands[f]++
				current = nil
			}
			mask, prevMask = prevMask, mask
			havePrev = true

			polys := tracePolygons(grid, prevMask, lm.W, lm.H, f, z, opts, report)
			if len(polys) == 0 {
				continue
			}
			current = &Band{Filament: f, ZStart: z, ZEnd: z + 1, Polygons: polys}
		}
		if current != nil {
			bands = append(bands, *current)
			report.Bands[f]++
		}
	}
	return bands, report, nil
}

// tracePolygons traces one occupancy mask into simplified, pruned polygons.
func tracePolygons(grid *mat.Dense, mask []byte, w, h, filament, z int, opts Options, report *Report) []geom.Polygon {
	raw := grid.RawMatrix()
	data := raw.Data
	stride := raw.Stride
	for y := 0; y < h; y++ {
		row := data[(y+1)*stride+1:]
		src := mask[y*w:]
		for x := 0; x < w; x++ {
			row[x] = float64(src[x])
		}
	}

	iso := opts.IsoLevel
	if iso <= 0 || iso >= 1 {
		iso = 0.5
	}
	rings := traceGrid(grid, iso)
	polys := assemblePolygons(rings)

	out := polys[:0]
	for _, p := range polys {
		p = simplifyPolygon(p, opts.SimplifyTol)

		if area := p.Outer.Area(); area < opts.MinArea || len(p.Outer) < 3 {
			report.Degenerate = append(report.Degenerate, Degenerate{
				Filament: filament, Z: z, Area: area, Reason: "outer ring below minimum area",
			})
			continue
		}
		holes := p.Holes[:0]
		for _, hole := range p.Holes {
			if area := hole.Area(); area < opts.MinArea || len(hole) < 3 {
				report.Degenerate = append(report.Degenerate, Degenerate{
					Filament: filament, Z: z, Area: area, Reason: "hole below minimum area",
				})
				continue
			}
			holes = append(holes, hole)
		}
		p.Holes = holes
		out = append(out, p)
	}
	return out
}

// entryIntervals precomputes, per table entry and filament, the occupied
// global layer range. The bottom filament also owns the base slab, so its
// range starts at layer zero.
func entryIntervals(table *palette.ShadeTable, filaments, baseLayers int) [][]interval {
	out := make([][]interval, len(table.Entries))
	for i, e := range table.Entries {
		iv := make([]interval, filaments)
		z := int32(baseLayers)
		for f := 0; f < filaments; f++ {
			n := int32(e.Key[f])
			iv[f] = interval{start: z, end: z + n}
			z += n
		}
		// Base slab belongs to the bottom filament.
		if baseLayers > 0 {
			iv[0].start = 0
		}
		out[i] = iv
	}
	return out
}

// filamentZRange scans the label map for the filament's lowest and highest
// occupied global layer.
func filamentZRange(lm *raster.LabelMap, intervals [][]interval, f int) (int, int) {
	zMin, zMax := int32(math.MaxInt32), int32(0)
	for _, label := range lm.Labels {
		if label == raster.Transparent {
			continue
		}
		iv := intervals[label][f]
		if iv.start == iv.end {
			continue
		}
		if iv.start < zMin {
			zMin = iv.start
		}
		if iv.end > zMax {
			zMax = iv.end
		}
	}
	if zMin >= zMax {
		return 0, 0
	}
	return int(zMin), int(zMax)
}

// fillMask marks pixels where filament f occupies global layer z.
func fillMask(mask []byte, lm *raster.LabelMap, intervals [][]interval, f, z int) {
	zz := int32(z)
	for i, label := range lm.Labels {
		if label == raster.Transparent {
			mask[i] = 0
			continue
		}
		iv := intervals[label][f]
		if iv.start <= zz && zz < iv.end {
			mask[i] = 1
		} else {
			mask[i] = 0
		}
	}
}

// paddedGrid allocates the tracing grid with a one-pixel zero border, so
// every contour closes inside it.
func paddedGrid(w, h int) *mat.Dense {
	return mat.NewDense(h+2, w+2, nil)
}
