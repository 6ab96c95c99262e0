package raster

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"
)

func TestToNRGBA(t *testing.T) {
	// Non-zero origin and premultiplied source both normalize away.
	src := image.NewRGBA(image.Rect(5, 5, 13, 10))
	src.SetRGBA(5, 5, color.RGBA{R: 100, A: 255})

	dst := ToNRGBA(src)
	if dst.Bounds().Min.X != 0 || dst.Bounds().Min.Y != 0 {
		t.Errorf("origin = %v, want (0,0)", dst.Bounds().Min)
	}
	if dst.Bounds().Dx() != 8 || dst.Bounds().Dy() != 5 {
		t.Errorf("size = %dx%d, want 8x5", dst.Bounds().Dx(), dst.Bounds().Dy())
	}
	if got := dst.NRGBAAt(0, 0); got.R != 100 || got.A != 255 {
		t.Errorf("pixel (0,0) = %v, want R=100 A=255", got)
	}
}

func TestDownsample(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 50))

	got := Downsample(img, 50, false)
	if got.Bounds().Dx() != 50 || got.Bounds().Dy() != 25 {
		t.Errorf("size = %dx%d, want 50x25", got.Bounds().Dx(), got.Bounds().Dy())
	}

	// Already within bounds: returned unchanged.
	if got := Downsample(img, 200, true); got != img {
		t.Error("image within bounds should be returned as is")
	}
	if got := Downsample(img, 0, true); got != img {
		t.Error("maxDim 0 should disable downsampling")
	}
}

func TestDownsampleExtremeAspect(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 4000))
	got := Downsample(img, 256, true)
	if got.Bounds().Dx() < 1 {
		t.Errorf("width collapsed to %d", got.Bounds().Dx())
	}
	if got.Bounds().Dy() != 256 {
		t.Errorf("height = %d, want 256", got.Bounds().Dy())
	}
}

func TestHash(t *testing.T) {
	a := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	b := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	if Hash(a) != Hash(b) {
		t.Error("identical images hash differently")
	}

	b.SetNRGBA(1, 0, color.NRGBA{R: 1, A: 255})
	if Hash(a) == Hash(b) {
		t.Error("different pixel content hashes the same")
	}

	// Same byte count, different dimensions.
	c := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	if Hash(a) == Hash(c) {
		t.Error("different dimensions hash the same")
	}
}

func TestWritePNGRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	if err := WritePNG(path, img); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}

	back, format, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	got := ToNRGBA(back).NRGBAAt(1, 1)
	if got.R != 10 || got.G != 20 || got.B != 30 {
		t.Errorf("pixel (1,1) = %v, want 10/20/30", got)
	}
}
