package render

import (
	"image/color"
	"testing"

	"github.com/docuflat/docuflat/internal/geometry"
	"github.com/docuflat/docuflat/internal/raster"
)

func grayImage(width, height int) *raster.Image {
	img := raster.New(width, height)
	pix := img.NRGBA()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pix.SetNRGBA(x, y, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	return img
}

func TestOverlay_DrawsQuad(t *testing.T) {
	img := grayImage(200, 200)
	corners := geometry.Quad{
		{X: 40, Y: 40}, {X: 160, Y: 40}, {X: 160, Y: 160}, {X: 40, Y: 160},
	}

	out := Overlay(img, corners, 0.8)

	if out.Width() != 200 || out.Height() != 200 {
		t.Fatalf("dimensions changed: %dx%d", out.Width(), out.Height())
	}
	// The top edge runs along y=40; some pixel there must differ from the
	// gray background.
	changed := false
	for x := 50; x < 150; x++ {
		if r, g, b, _ := out.At(x, 40); r != 128 || g != 128 || b != 128 {
			changed = true
			break
		}
	}
	if !changed {
		t.Error("edge line not drawn")
	}
}

func TestOverlay_InputUntouched(t *testing.T) {
	img := grayImage(100, 100)
	corners := geometry.Quad{
		{X: 10, Y: 10}, {X: 90, Y: 10}, {X: 90, Y: 90}, {X: 10, Y: 90},
	}

	Overlay(img, corners, 0.5)

	if r, g, b, _ := img.At(50, 10); r != 128 || g != 128 || b != 128 {
		t.Error("input image was modified")
	}
}
