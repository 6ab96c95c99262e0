package config

import "fmt"

// ResolutionMode selects the spatial working resolution of the pipeline.
// Coarser modes downsample harder, trace looser contours and skip shade
// counts, trading fidelity for speed.
type ResolutionMode int

// Resolution modes, coarsest first.
const (
	ResolutionDraft ResolutionMode = iota
	ResolutionLow
	ResolutionMedium
	ResolutionHigh
	ResolutionUltra
)

// String returns the mode's config-file name.
func (m ResolutionMode) String() string {
	switch m {
	case ResolutionDraft:
		return "draft"
	case ResolutionLow:
		return "low"
	case ResolutionMedium:
		return "medium"
	case ResolutionHigh:
		return "high"
	case ResolutionUltra:
		return "ultra"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// ResolutionPreset bundles the pipeline parameters one mode implies.
type ResolutionPreset struct {
	// MaxDim clamps the longest image side before assignment.
	MaxDim int
	// IsoLevel is the contour threshold over the binary occupancy grid.
	IsoLevel float64
	// SimplifyTol is the Douglas-Peucker tolerance in pixels.
	SimplifyTol float64
	// LayerStride skips intermediate per-filament layer counts when
	// enumerating shade combinations.
	LayerStride int
	// FastScale selects the cheaper resampling kernel.
	FastScale bool
}

var resolutionPresets = map[ResolutionMode]ResolutionPreset{
	ResolutionDraft:  {MaxDim: 256, IsoLevel: 0.5, SimplifyTol: 2.0, LayerStride: 2, FastScale: true},
	ResolutionLow:    {MaxDim: 512, IsoLevel: 0.5, SimplifyTol: 1.0, LayerStride: 1, FastScale: true},
	ResolutionMedium: {MaxDim: 1024, IsoLevel: 0.25, SimplifyTol: 0.5, LayerStride: 1, FastScale: false},
	ResolutionHigh:   {MaxDim: 2048, IsoLevel: 0.05, SimplifyTol: 0.01, LayerStride: 1, FastScale: false},
	ResolutionUltra:  {MaxDim: 4096, IsoLevel: 0.01, SimplifyTol: 0.001, LayerStride: 1, FastScale: false},
}

// Preset returns the parameters for the mode. Unknown modes fall back to
// medium.
func (m ResolutionMode) Preset() ResolutionPreset {
	if p, ok := resolutionPresets[m]; ok {
		return p
	}
	return resolutionPresets[ResolutionMedium]
}

// ParseResolution converts a config-file name to a ResolutionMode.
func ParseResolution(s string) (ResolutionMode, error) {
	switch s {
	case "draft":
		return ResolutionDraft, nil
	case "low":
		return ResolutionLow, nil
	case "medium":
		return ResolutionMedium, nil
	case "high":
		return ResolutionHigh, nil
	case "ultra":
		return ResolutionUltra, nil
	default:
		return ResolutionMedium, fmt.Errorf("unknown resolution mode %q", s)
	}
}

// DetailLevel selects color matching and geometric pruning strictness.
type DetailLevel int

// Detail levels, loosest first.
const (
	DetailLow DetailLevel = iota
	DetailMedium
	DetailHigh
	DetailUltra
)

// String returns the level's config-file name.
func (d DetailLevel) String() string {
	switch d {
	case DetailLow:
		return "low"
	case DetailMedium:
		return "medium"
	case DetailHigh:
		return "high"
	case DetailUltra:
		return "ultra"
	default:
		return fmt.Sprintf("Unknown(%d)", int(d))
	}
}

// DetailPreset bundles the tolerances one detail level implies.
type DetailPreset struct {
	// MinArea prunes polygons below this area, in square pixels.
	MinArea float64
	// DedupDelta collapses shade-table entries closer than this CIELAB
	// distance.
	DedupDelta float64
	// Tolerance accepts a shade match early once its CIELAB distance
	// falls below this bound.
	Tolerance float64
}

var detailPresets = map[DetailLevel]DetailPreset{
	DetailLow:    {MinArea: 3.0, DedupDelta: 2.0, Tolerance: 2.0},
	DetailMedium: {MinArea: 1.0, DedupDelta: 1.0, Tolerance: 1.0},
	DetailHigh:   {MinArea: 0.5, DedupDelta: 0.5, Tolerance: 0.5},
	DetailUltra:  {MinArea: 0.1, DedupDelta: 0.1, Tolerance: 0.1},
}

// Preset returns the tolerances for the level. Unknown levels fall back to
// medium.
func (d DetailLevel) Preset() DetailPreset {
	if p, ok := detailPresets[d]; ok {
		return p
	}
	return detailPresets[DetailMedium]
}

// ParseDetail converts a config-file name to a DetailLevel.
func ParseDetail(s string) (DetailLevel, error) {
	switch s {
	case "low":
		return DetailLow, nil
	case "medium":
		return DetailMedium, nil
	case "high":
		return DetailHigh, nil
	case "ultra":
		return DetailUltra, nil
	default:
		return DetailMedium, fmt.Errorf("unknown detail level %q", s)
	}
}
