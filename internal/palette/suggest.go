package palette

import (
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// SuggestMethod selects the palette extraction algorithm.
type SuggestMethod int

const (
	// SuggestKMeans clusters subsampled pixel colors.
	SuggestKMeans SuggestMethod = iota
	// SuggestDominant picks the most frequent distinct colors.
	SuggestDominant
)

// String returns the method's CLI name.
func (m SuggestMethod) String() string {
	switch m {
	case SuggestDominant:
		return "dominant"
	default:
		return "kmeans"
	}
}

// ParseSuggestMethod converts a CLI name to a SuggestMethod.
func ParseSuggestMethod(s string) (SuggestMethod, error) {
	switch s {
	case "kmeans":
		return SuggestKMeans, nil
	case "dominant":
		return SuggestDominant, nil
	default:
		return SuggestKMeans, fmt.Errorf("unknown suggest method %q", s)
	}
}

// suggestSamples caps how many pixels feed the clustering.
const suggestSamples = 12000

// Suggest proposes n filaments matching the image's colors, ordered darkest
// to lightest so the darkest prints first. Suggested filaments carry the
// default transmissivity and layer bound; both are starting points the user
// tunes per spool.
func Suggest(img image.Image, n int, method SuggestMethod) ([]Filament, error) {
	if n < 1 {
		return nil, &ConfigError{
			Field:  "count",
			Reason: fmt.Sprintf("must be at least 1, got %d", n),
		}
	}

	var colors []colorful.Color
	switch method {
	case SuggestDominant:
		colors = dominantPalette(img, n)
	default:
		colors = kmeansPalette(img, n)
		if len(colors) == 0 {
			colors = dominantPalette(img, n)
		}
	}
	if len(colors) == 0 {
		return nil, fmt.Errorf("image has no opaque pixels to sample")
	}

	sortDarkestFirst(colors)

	out := make([]Filament, len(colors))
	for i, c := range colors {
		c = c.Clamped()
		out[i] = Filament{
			ID:        fmt.Sprintf("suggest-%d", i),
			Name:      c.Hex(),
			Color:     c,
			Td:        DefaultTd,
			MaxLayers: DefaultMaxLayers,
		}
	}
	return out, nil
}

// kmeansPalette clusters subsampled opaque pixels into n groups and returns
// the cluster centers. Returns nil when the image has too few samples.
func kmeansPalette(img image.Image, n int) []colorful.Color {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	step := 1
	if w*h > suggestSamples {
		step = int(math.Sqrt(float64(w*h)/float64(suggestSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, suggestSamples)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bb, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(r) / 65535.0,
				float64(g) / 65535.0,
				float64(bb) / 65535.0,
			})
		}
	}
	if len(dataset) < n {
		return nil
	}

	km := kmeans.New()
	cc, err := km.Partition(dataset, n)
	if err != nil || len(cc) == 0 {
		return nil
	}

	// Largest clusters first, so a short suggestion favors dominant tones.
	slices.SortFunc(cc, func(a, b clusters.Cluster) int {
		return len(b.Observations) - len(a.Observations)
	})

	out := make([]colorful.Color, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}
		out = append(out, col.Clamped())
	}
	return out
}

// minSuggestSeparation is the CIELAB distance below which two dominant
// candidates count as the same color.
const minSuggestSeparation = 10.0

// dominantPalette picks the n most frequent colors that stay perceptually
// distinct from each other.
func dominantPalette(img image.Image, n int) []colorful.Color {
	candidates := dominantcolor.FindWeight(img, max(24, n*8))
	if len(candidates) == 0 {
		return nil
	}

	type labColor struct {
		col     colorful.Color
		l, a, b float64
	}
	picked := make([]labColor, 0, n)

	// Candidates come ordered by weight; greedily keep the heaviest that
	// are far enough from everything already picked.
	for _, cand := range candidates {
		if len(picked) == n {
			break
		}
		col, ok := colorful.MakeColor(cand.RGBA)
		if !ok {
			continue
		}
		col = col.Clamped()
		l, a, b := LabCoords(col)
		distinct := true
		for _, p := range picked {
			dl := p.l - l
			da := p.a - a
			db := p.b - b
			if math.Sqrt(dl*dl+da*da+db*db) < minSuggestSeparation {
				distinct = false
				break
			}
		}
		if distinct {
			picked = append(picked, labColor{col: col, l: l, a: a, b: b})
		}
	}

	// Not enough distinct colors: fill from the remaining heaviest.
	for _, cand := range candidates {
		if len(picked) == n {
			break
		}
		col, ok := colorful.MakeColor(cand.RGBA)
		if !ok {
			continue
		}
		col = col.Clamped()
		dup := false
		for _, p := range picked {
			if p.col == col {
				dup = true
				break
			}
		}
		if !dup {
			l, a, b := LabCoords(col)
			picked = append(picked, labColor{col: col, l: l, a: a, b: b})
		}
	}

	out := make([]colorful.Color, len(picked))
	for i, p := range picked {
		out[i] = p.col
	}
	return out
}

// sortDarkestFirst orders colors by linear-RGB luminance ascending. The
// first entry becomes the bottom (background) filament.
func sortDarkestFirst(colors []colorful.Color) {
	slices.SortFunc(colors, func(a, b colorful.Color) int {
		ri, gi, bi := a.LinearRgb()
		rj, gj, bj := b.LinearRgb()
		yi := 0.2126*ri + 0.7152*gi + 0.0722*bi
		yj := 0.2126*rj + 0.7152*gj + 0.0722*bj
		if yi < yj {
			return -1
		}
		if yi > yj {
			return 1
		}
		return 0
	})
}
