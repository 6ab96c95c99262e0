package raster

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/stratum/internal/palette"
)

// Transparent marks pixels that carry no material at all.
const Transparent int32 = -1

// LabelMap records, per pixel, which shade table entry was assigned.
// Labels index ShadeTable.Entries; Transparent means no material.
type LabelMap struct {
	W, H   int
	Labels []int32
	// Fingerprint identifies the full input set: image content, table
	// fingerprint and assignment options.
	Fingerprint string
}

// At returns the label at (x, y).
func (m *LabelMap) At(x, y int) (int32, error) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return 0, fmt.Errorf("point (%d, %d) outside %dx%d label map", x, y, m.W, m.H)
	}
	return m.Labels[y*m.W+x], nil
}

// AlphaPolicy decides how source transparency thins the printed stack.
type AlphaPolicy int

const (
	// AlphaLinear scales the pixel's layer budget with its alpha below
	// the threshold, so fades print progressively thinner.
	AlphaLinear AlphaPolicy = iota
	// AlphaStep drops pixels below the threshold entirely and keeps the
	// rest at full thickness.
	AlphaStep
)

// String returns the policy's config-file name.
func (p AlphaPolicy) String() string {
	switch p {
	case AlphaStep:
		return "step"
	default:
		return "linear"
	}
}

// ParseAlphaPolicy converts a config-file name to an AlphaPolicy.
func ParseAlphaPolicy(s string) (AlphaPolicy, error) {
	switch s {
	case "linear":
		return AlphaLinear, nil
	case "step":
		return AlphaStep, nil
	default:
		return AlphaLinear, fmt.Errorf("unknown alpha policy %q", s)
	}
}

// AssignOptions control the pixel-to-shade search.
type AssignOptions struct {
	Policy AlphaPolicy
	// AlphaThreshold is the alpha value at and above which a pixel keeps
	// its full layer budget.
	AlphaThreshold uint8
	// Tolerance accepts the first entry within this CIELAB distance
	// instead of scanning for the absolute nearest.
	Tolerance float64
}

// Assign maps every pixel to the shade table entry with the nearest
// composite color. Matching happens in CIELAB space; ties go to the lowest
// combination key. The result is deterministic: identical inputs always
// produce an identical label map.
func Assign(img *image.NRGBA, table *palette.ShadeTable, opts AssignOptions) (*LabelMap, error) {
	if len(table.Entries) == 0 {
		return nil, fmt.Errorf("shade table is empty")
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	lm := &LabelMap{
		W:           w,
		H:           h,
		Labels:      make([]int32, w*h),
		Fingerprint: AssignFingerprint(Hash(img), table.Fingerprint, opts),
	}

	idx := newSearchIndex(table)
	memo := make(map[uint64]int32)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		out := lm.Labels[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			r := row[x*4]
			g := row[x*4+1]
			b := row[x*4+2]
			a := row[x*4+3]

			budget, material := pixelBudget(a, idx.maxTotal, opts)
			if !material {
				out[x] = Transparent
				continue
			}

			key := uint64(r)<<48 | uint64(g)<<40 | uint64(b)<<32 | uint64(budget)
			if label, ok := memo[key]; ok {
				out[x] = label
				continue
			}
			label := idx.nearest(r, g, b, budget, opts.Tolerance)
			memo[key] = label
			out[x] = label
		}
	}
	return lm, nil
}

// pixelBudget applies the alpha policy: how many total layers this pixel
// may use, and whether it carries material at all.
func pixelBudget(alpha uint8, fullBudget int, opts AssignOptions) (int, bool) {
	if alpha == 0 {
		return 0, false
	}
	threshold := opts.AlphaThreshold
	if threshold == 0 || alpha >= threshold {
		return fullBudget, true
	}
	switch opts.Policy {
	case AlphaStep:
		return 0, false
	default:
		budget := int(math.Round(float64(fullBudget) * float64(alpha) / float64(threshold)))
		if budget == 0 {
			return 0, false
		}
		return budget, true
	}
}

// AssignFingerprint hashes everything that can change an assignment, so
// cached label maps can be matched without recomputing them.
func AssignFingerprint(imageHash, tableFingerprint string, opts AssignOptions) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%.9f",
		imageHash, tableFingerprint, opts.Policy, opts.AlphaThreshold, opts.Tolerance)
	return hex.EncodeToString(h.Sum(nil))
}

// searchIndex holds the table's CIELAB coordinates as a dense matrix for
// tight nearest-entry scans.
type searchIndex struct {
	labs     *mat.Dense
	totals   []int
	maxTotal int
}

func newSearchIndex(table *palette.ShadeTable) *searchIndex {
	n := len(table.Entries)
	idx := &searchIndex{
		labs:   mat.NewDense(n, 3, nil),
		totals: make([]int, n),
	}
	for i, e := range table.Entries {
		idx.labs.Set(i, 0, e.L)
		idx.labs.Set(i, 1, e.A)
		idx.labs.Set(i, 2, e.B)
		t := e.Key.Total()
		idx.totals[i] = t
		if t > idx.maxTotal {
			idx.maxTotal = t
		}
	}
	return idx
}

// nearest scans for the entry closest to the pixel color among entries
// whose total layer count fits the budget. Entries are ordered by
// ascending key, so strict improvement keeps the lowest key on ties.
func (s *searchIndex) nearest(r, g, b uint8, budget int, tolerance float64) int32 {
	pl, pa, pb := palette.LabCoords(colorful.Color{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	})

	raw := s.labs.RawMatrix()
	data := raw.Data
	stride := raw.Stride

	checkBudget := budget < s.maxTotal
	tol2 := tolerance * tolerance
	best := int32(0)
	bestDist := math.MaxFloat64

	for i := 0; i < len(s.totals); i++ {
		if checkBudget && s.totals[i] > budget {
			continue
		}
		row := data[i*stride:]
		dl := row[0] - pl
		da := row[1] - pa
		db := row[2] - pb
		d := dl*dl + da*da + db*db
		if d < bestDist {
			bestDist = d
			best = int32(i)
			if tolerance > 0 && d <= tol2 {
				break
			}
		}
	}
	return best
}
