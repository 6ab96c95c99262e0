package raster

import (
	"testing"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Faultbox/stratum/internal/palette"
)

func TestPreviewPaintsAssignedColors(t *testing.T) {
	table := &palette.ShadeTable{
		Entries: []palette.Shade{
			{Key: palette.Key{0}, Color: colorful.Color{R: 1, G: 0.5}},
		},
	}
	lm := &LabelMap{W: 2, H: 1, Labels: []int32{0, Transparent}}

	img := Preview(lm, table)
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 1 {
		t.Fatalf("preview size = %v, want 2x1", img.Bounds())
	}

	got := img.NRGBAAt(0, 0)
	if got.R != 255 || got.G != 128 || got.B != 0 || got.A != 255 {
		t.Errorf("assigned pixel = %v, want 255/128/0/255", got)
	}
	if img.NRGBAAt(1, 0).A != 0 {
		t.Error("transparent pixel should stay alpha 0")
	}
}

func TestPreviewMatchesAssignment(t *testing.T) {
	table := whiteRedTable(t)

	img := testGradient(16, 16)
	lm, err := Assign(img, table, AssignOptions{AlphaThreshold: 128})
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	preview := Preview(lm, table)
	for y := 0; y < lm.H; y++ {
		for x := 0; x < lm.W; x++ {
			label := lm.Labels[y*lm.W+x]
			px := preview.NRGBAAt(x, y)
			if label == Transparent {
				if px.A != 0 {
					t.Fatalf("pixel (%d,%d) transparent in map but painted", x, y)
				}
				continue
			}
			want := table.Entries[label].Color.Clamped()
			if px.R != uint8(want.R*255+0.5) {
				t.Fatalf("pixel (%d,%d) R = %d, want %d", x, y, px.R, uint8(want.R*255+0.5))
			}
		}
	}
}
