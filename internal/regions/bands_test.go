package regions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Faultbox/stratum/internal/palette"
	"github.com/Faultbox/stratum/internal/raster"
	"github.com/Faultbox/stratum/pkg/geom"
)

// tableOf builds a minimal shade table carrying just the keys; extraction
// reads nothing else.
func tableOf(keys ...palette.Key) *palette.ShadeTable {
	table := &palette.ShadeTable{}
	for _, k := range keys {
		table.Entries = append(table.Entries, palette.Shade{Key: k})
	}
	return table
}

func labelMap(w, h int, labels []int32) *raster.LabelMap {
	return &raster.LabelMap{W: w, H: h, Labels: labels}
}

func uniformLabels(w, h int, label int32) []int32 {
	out := make([]int32, w*h)
	for i := range out {
		out[i] = label
	}
	return out
}

func extractOptions() Options {
	return Options{IsoLevel: 0.5, SimplifyTol: 0, MinArea: 0.25}
}

func polyContains(p geom.Polygon, pt geom.Vec2) bool {
	if !p.Outer.Contains(pt) {
		return false
	}
	for _, h := range p.Holes {
		if h.Contains(pt) {
			return false
		}
	}
	return true
}

func TestExtractCollapsesUniformColumn(t *testing.T) {
	lm := labelMap(6, 6, uniformLabels(6, 6, 0))
	table := tableOf(palette.Key{2, 3})
	opts := extractOptions()
	opts.BaseLayers = 1

	bands, report, err := Extract(context.Background(), lm, table, opts)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(bands) != 2 {
		t.Fatalf("got %d bands, want 2: %+v", len(bands), bands)
	}

	// The base slab and the bottom filament's own layers share a
	// footprint, so they collapse into one band.
	if b := bands[0]; b.Filament != 0 || b.ZStart != 0 || b.ZEnd != 3 {
		t.Errorf("band 0 = %+v, want filament 0 over [0, 3)", b)
	}
	if b := bands[1]; b.Filament != 1 || b.ZStart != 3 || b.ZEnd != 6 {
		t.Errorf("band 1 = %+v, want filament 1 over [3, 6)", b)
	}
	for _, b := range bands {
		if len(b.Polygons) != 1 || len(b.Polygons[0].Holes) != 0 {
			t.Errorf("band %+v does not hold a single solid polygon", b)
		}
	}
	if report.Bands[0] != 1 || report.Bands[1] != 1 {
		t.Errorf("report.Bands = %v, want [1 1]", report.Bands)
	}
	if len(report.Degenerate) != 0 {
		t.Errorf("unexpected degenerate reports: %+v", report.Degenerate)
	}
}

func TestExtractCoversEveryColumnExactlyOnce(t *testing.T) {
	// Left half uses one mix, right half another. Every occupied layer of
	// every pixel column must belong to exactly one band, and no band may
	// reach above the column's height.
	const w, h = 8, 4
	labels := make([]int32, w*h)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			labels[y*w+x] = 1
		}
	}
	lm := labelMap(w, h, labels)
	table := tableOf(palette.Key{1, 2}, palette.Key{3, 0})
	opts := extractOptions()
	opts.BaseLayers = 2

	bands, _, err := Extract(context.Background(), lm, table, opts)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	totals := []int{2 + 1 + 2, 2 + 3}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			height := totals[labels[y*w+x]]
			pt := geom.Vec2{X: float64(x), Y: float64(y)}
			for z := 0; z < 6; z++ {
				covered := 0
				for _, b := range bands {
					if z < b.ZStart || z >= b.ZEnd {
						continue
					}
					for _, poly := range b.Polygons {
						if polyContains(poly, pt) {
							covered++
							break
						}
					}
				}
				want := 0
				if z < height {
					want = 1
				}
				if covered != want {
					t.Fatalf("pixel (%d, %d) layer %d covered by %d bands, want %d",
						x, y, z, covered, want)
				}
			}
		}
	}
}

func TestExtractSkipsTransparent(t *testing.T) {
	lm := labelMap(5, 5, uniformLabels(5, 5, raster.Transparent))
	table := tableOf(palette.Key{1, 1})
	opts := extractOptions()
	opts.BaseLayers = 3

	bands, report, err := Extract(context.Background(), lm, table, opts)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(bands) != 0 {
		t.Errorf("fully transparent image produced %d bands", len(bands))
	}
	if report.Bands[0] != 0 || report.Bands[1] != 0 {
		t.Errorf("report.Bands = %v, want zeros", report.Bands)
	}
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lm := labelMap(4, 4, uniformLabels(4, 4, 0))
	_, _, err := Extract(ctx, lm, tableOf(palette.Key{1, 1}), extractOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract returned %v, want context.Canceled", err)
	}
}

func TestExtractPrunesTinyIslands(t *testing.T) {
	// A 3x3 block survives; a lone pixel falls below MinArea and is
	// pruned with a report entry. Identical layers are traced once, so
	// the prune is reported once.
	const w, h = 8, 6
	labels := make([]int32, w*h)
	for i := range labels {
		labels[i] = raster.Transparent
	}
	for y := 1; y <= 3; y++ {
		for x := 1; x <= 3; x++ {
			labels[y*w+x] = 0
		}
	}
	labels[4*w+6] = 0

	lm := labelMap(w, h, labels)
	opts := extractOptions()
	opts.MinArea = 3

	bands, report, err := Extract(context.Background(), lm, tableOf(palette.Key{2}), opts)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(bands) != 1 {
		t.Fatalf("got %d bands, want 1: %+v", len(bands), bands)
	}
	b := bands[0]
	if b.Filament != 0 || b.ZStart != 0 || b.ZEnd != 2 {
		t.Errorf("band = %+v, want filament 0 over [0, 2)", b)
	}
	if len(b.Polygons) != 1 {
		t.Errorf("band holds %d polygons, want the block only", len(b.Polygons))
	}

	if len(report.Degenerate) != 1 {
		t.Fatalf("got %d degenerate reports, want 1: %+v", len(report.Degenerate), report.Degenerate)
	}
	d := report.Degenerate[0]
	if d.Filament != 0 || d.Z != 0 || !strings.Contains(d.Reason, "minimum area") {
		t.Errorf("degenerate report = %+v", d)
	}
}
