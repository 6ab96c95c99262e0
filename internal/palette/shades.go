package palette

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// tdEpsilon replaces a transmissivity of zero before exponentiation. A
// validated stack never carries one, but clamping keeps the power law
// finite on any input.
const tdEpsilon = 1e-6

// maxRawEntries bounds the raw combination count before deduplication.
// Enumeration above it doubles the layer stride until it fits.
const maxRawEntries = 200000

// bedColor is what shows through a stack with no opaque base. White matches
// a typical build surface under backlight.
var bedColor = colorful.Color{R: 1, G: 1, B: 1}

// Key is a per-filament layer-count vector, bottom to top. Keys compare in
// lexicographic order; the enumeration emits them ascending, so "lowest key"
// is always the earliest generated.
type Key []int

// Total returns the sum of all layer counts in the key.
func (k Key) Total() int {
	sum := 0
	for _, n := range k {
		sum += n
	}
	return sum
}

// Clone returns an independent copy of the key.
func (k Key) Clone() Key {
	out := make(Key, len(k))
	copy(out, k)
	return out
}

// Equal reports whether two keys hold the same counts.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Less orders keys lexicographically, first filament most significant.
func (k Key) Less(other Key) bool {
	for i := range k {
		if i >= len(other) {
			return false
		}
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return len(k) < len(other)
}

// String renders the key as slash-separated counts, e.g. "2/0/3".
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, n := range k {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, "/")
}

// Shade is one achievable composite color and the combination producing it.
type Shade struct {
	Key   Key
	Color colorful.Color
	// L, A, B cache the CIELAB coordinates used for matching, scaled to
	// the conventional range (L 0..100) so deltas read as CIE ΔE*ab.
	L, A, B float64
}

// Hex returns the shade color as #rrggbb.
func (s Shade) Hex() string {
	return s.Color.Clamped().Hex()
}

// ShadeTable holds every achievable composite color for one stack
// configuration. It is immutable once built and cacheable by Fingerprint.
type ShadeTable struct {
	// Fingerprint identifies the full input set: colors, transmissivities,
	// layer bounds, base layers, budget, stride and dedup delta.
	Fingerprint string
	// Entries are sorted by ascending key. Deduplication keeps the
	// lowest key of each perceptual group.
	Entries []Shade
	// Stride is the effective layer stride after capacity capping.
	Stride int
	// Raw counts combinations before deduplication.
	Raw int
}

// Dropped returns how many combinations deduplication collapsed away.
func (t *ShadeTable) Dropped() int {
	return t.Raw - len(t.Entries)
}

// Options control shade table granularity.
type Options struct {
	// LayerStride skips intermediate layer counts: counts enumerate
	// {0, s, 2s, ...} plus each filament's MaxLayers. Minimum 1.
	LayerStride int
	// DedupDelta collapses entries closer than this CIELAB distance to
	// an earlier entry. Zero keeps everything.
	DedupDelta float64
}

// BuildTable enumerates the achievable composite colors of the stack. The
// stack is validated first; enumeration walks the cross product of per-
// filament layer counts bounded by each MaxLayers and the global budget,
// composites each combination bottom to top, and deduplicates perceptually
// close results keeping the lowest key.
func BuildTable(stack Stack, opts Options) (*ShadeTable, error) {
	if err := stack.Validate(); err != nil {
		return nil, err
	}

	stride := effectiveStride(stack, opts.LayerStride)
	budget := stack.Budget()

	counts := make([][]int, len(stack.Filaments))
	for i, f := range stack.Filaments {
		counts[i] = layerCounts(f.MaxLayers, stride)
	}

	base := baseColor(stack)

	table := &ShadeTable{
		Fingerprint: fingerprint(stack, stride, opts.DedupDelta),
		Stride:      stride,
	}
	dedup := newDedupIndex(opts.DedupDelta)

	key := make(Key, len(stack.Filaments))
	var walk func(depth, used int, under colorful.Color)
	walk = func(depth, used int, under colorful.Color) {
		if depth == len(stack.Filaments) {
			table.Raw++
			l, a, b := LabCoords(under)
			if !dedup.keep(l, a, b) {
				return
			}
			table.Entries = append(table.Entries, Shade{
				Key:   key.Clone(),
				Color: under,
				L:     l, A: a, B: b,
			})
			return
		}
		f := stack.Filaments[depth]
		for _, n := range counts[depth] {
			if used+n > budget {
				break
			}
			key[depth] = n
			walk(depth+1, used+n, compositeOver(f, n, under))
		}
	}
	walk(0, 0, base)

	return table, nil
}

// TableFingerprint returns the fingerprint BuildTable would assign to a
// table built from this stack and options, without enumerating it. Cache
// probes use it to decide whether a stored table is still current.
func TableFingerprint(stack Stack, opts Options) string {
	stride := effectiveStride(stack, opts.LayerStride)
	return fingerprint(stack, stride, opts.DedupDelta)
}

// effectiveStride caps the raw enumeration by widening the stride until
// the combination count fits. Deterministic: the same stack and requested
// stride always settle on the same value.
func effectiveStride(stack Stack, stride int) int {
	if stride < 1 {
		stride = 1
	}
	widest := 0
	for _, f := range stack.Filaments {
		if f.MaxLayers > widest {
			widest = f.MaxLayers
		}
	}
	for stride < widest && estimateRaw(stack, stride) > maxRawEntries {
		stride *= 2
	}
	return stride
}

// LabCoords returns the color's CIELAB coordinates in the conventional
// scale, L in 0..100. Distances between such coordinates are CIE ΔE*ab,
// the unit every tolerance in this package is stated in.
func LabCoords(c colorful.Color) (l, a, b float64) {
	l, a, b = c.Lab()
	return l * 100, a * 100, b * 100
}

// compositeOver stacks n layers of filament f above an underlying color.
// Each layer attenuates what is beneath it by Td, so n layers pass Td^n of
// the underlying color and contribute the filament's own color for the rest.
func compositeOver(f Filament, n int, under colorful.Color) colorful.Color {
	if n <= 0 {
		return under
	}
	td := f.Td
	if td < tdEpsilon {
		td = tdEpsilon
	}
	pass := math.Pow(td, float64(n))
	return colorful.Color{
		R: f.Color.R*(1-pass) + under.R*pass,
		G: f.Color.G*(1-pass) + under.G*pass,
		B: f.Color.B*(1-pass) + under.B*pass,
	}
}

// baseColor composites the opaque base slab over the bed. The slab is
// printed in the bottom filament.
func baseColor(stack Stack) colorful.Color {
	if stack.BaseLayers == 0 || len(stack.Filaments) == 0 {
		return bedColor
	}
	return compositeOver(stack.Filaments[0], stack.BaseLayers, bedColor)
}

// layerCounts returns the enumerated counts for one filament: multiples of
// the stride from zero, always ending at maxLayers.
func layerCounts(maxLayers, stride int) []int {
	var out []int
	for n := 0; n < maxLayers; n += stride {
		out = append(out, n)
	}
	return append(out, maxLayers)
}

// estimateRaw upper-bounds the raw combination count for a stride. The
// budget prune only shrinks it, so the product is a safe cap check.
func estimateRaw(stack Stack, stride int) int {
	total := 1
	for _, f := range stack.Filaments {
		total *= len(layerCounts(f.MaxLayers, stride))
		if total > maxRawEntries {
			return total
		}
	}
	return total
}

// fingerprint hashes every input that can change a table entry.
func fingerprint(stack Stack, stride int, dedupDelta float64) string {
	h := sha256.New()
	for _, f := range stack.Filaments {
		fmt.Fprintf(h, "%s|%s|%.9f|%d;", f.ID, f.Color.Clamped().Hex(), f.Td, f.MaxLayers)
	}
	fmt.Fprintf(h, "base=%d|budget=%d|stride=%d|dedup=%.9f",
		stack.BaseLayers, stack.Budget(), stride, dedupDelta)
	return hex.EncodeToString(h.Sum(nil))
}

// dedupIndex buckets kept entries on a CIELAB grid with cells the size of
// the dedup delta, so each candidate only checks its 27 neighbor cells.
type dedupIndex struct {
	delta float64
	cells map[[3]int][][3]float64
}

func newDedupIndex(delta float64) *dedupIndex {
	return &dedupIndex{delta: delta, cells: make(map[[3]int][][3]float64)}
}

// keep reports whether the color is far enough from every kept entry, and
// records it if so.
func (d *dedupIndex) keep(l, a, b float64) bool {
	if d.delta <= 0 {
		return true
	}
	cell := [3]int{
		int(math.Floor(l / d.delta)),
		int(math.Floor(a / d.delta)),
		int(math.Floor(b / d.delta)),
	}
	d2 := d.delta * d.delta
	for dl := -1; dl <= 1; dl++ {
		for da := -1; da <= 1; da++ {
			for db := -1; db <= 1; db++ {
				neighbor := [3]int{cell[0] + dl, cell[1] + da, cell[2] + db}
				for _, kept := range d.cells[neighbor] {
					dx := kept[0] - l
					dy := kept[1] - a
					dz := kept[2] - b
					if dx*dx+dy*dy+dz*dz < d2 {
						return false
					}
				}
			}
		}
	}
	d.cells[cell] = append(d.cells[cell], [3]float64{l, a, b})
	return true
}
