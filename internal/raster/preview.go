package raster

import (
	"image"
	"image/color"

	"github.com/Faultbox/stratum/internal/palette"
)

// Preview paints each pixel's assigned composite color into a raster the
// size of the label map. Transparent pixels stay fully transparent. This is
// the cheap interactive path: no geometry is touched.
func Preview(lm *LabelMap, table *palette.ShadeTable) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, lm.W, lm.H))
	for y := 0; y < lm.H; y++ {
		for x := 0; x < lm.W; x++ {
			label := lm.Labels[y*lm.W+x]
			if label == Transparent {
				continue
			}
			c := table.Entries[label].Color.Clamped()
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(c.R*255 + 0.5),
				G: uint8(c.G*255 + 0.5),
				B: uint8(c.B*255 + 0.5),
				A: 255,
			})
		}
	}
	return img
}
