package engine

import (
	"github.com/Faultbox/stratum/internal/raster"
)

// Inspection reports the layer composition under one pixel of the working
// raster.
type Inspection struct {
	X, Y int
	// Counts holds the assigned layer count per filament, bottom to top.
	Counts []int
	// TotalLayers is the full column height in layers, base slab included.
	TotalLayers int
	// HeightMM is the printed column height.
	HeightMM float64
	// Composite is the resolved surface color as #rrggbb.
	Composite string
	R, G, B   uint8
	// Material is false for transparent pixels, which carry no layers.
	Material bool
}

// Inspect resolves the layer composition at (x, y) in working-raster
// coordinates. It is a pure read of the last computed assignment paired
// with the exact table and stack it was computed from; no stage runs.
func (e *Engine) Inspect(x, y int) (*Inspection, error) {
	e.cacheMu.Lock()
	labels := e.labels
	table := e.labelTable
	stack := e.labelStack
	e.cacheMu.Unlock()

	if labels == nil || table == nil {
		return nil, ErrNoAssignment
	}
	label, err := labels.At(x, y)
	if err != nil {
		return nil, err
	}

	insp := &Inspection{X: x, Y: y, Counts: make([]int, len(stack.Filaments))}
	if label == raster.Transparent {
		return insp, nil
	}

	shade := table.Entries[label]
	insp.Material = true
	copy(insp.Counts, shade.Key)
	insp.TotalLayers = shade.Key.Total() + stack.BaseLayers
	insp.HeightMM = stack.HeightMM(insp.TotalLayers)
	insp.Composite = shade.Hex()

	c := shade.Color.Clamped()
	insp.R = uint8(c.R*255 + 0.5)
	insp.G = uint8(c.G*255 + 0.5)
	insp.B = uint8(c.B*255 + 0.5)
	return insp, nil
}
