package enhance

import (
	"fmt"
	"image/color"
	"math"

	"github.com/docuflat/docuflat/internal/raster"
)

// clipLimit caps any single histogram bin at this multiple of the uniform
// bin height before equalization. Limiting the slope of the transfer curve
// keeps near-uniform backgrounds from being stretched into visible noise,
// the usual failure mode of plain histogram equalization on documents.
const clipLimit = 3.0

// autoLevels performs contrast-limited equalization of the luminance
// histogram, preserving hue by scaling all three channels by the same
// luminance gain.
func autoLevels(img *raster.Image) (*raster.Image, error) {
	width, height := img.Width(), img.Height()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty image")
	}

	plane := img.GrayPlane()

	var hist [256]float64
	for _, row := range plane {
		for _, v := range row {
			hist[int(v*255)]++
		}
	}

	// Clip bins and redistribute the excess uniformly.
	total := float64(width * height)
	limit := clipLimit * total / 256
	excess := 0.0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	share := excess / 256
	for i := range hist {
		hist[i] += share
	}

	// Cumulative distribution becomes the tone mapping curve.
	var lut [256]float64
	cum := 0.0
	for i := range hist {
		cum += hist[i]
		lut[i] = cum / total
	}

	src := img.NRGBA()
	out := img.Clone().NRGBA()
	b := src.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			lum := plane[y][x]
			if lum <= 0 {
				continue
			}
			gain := lut[int(lum*255)] / lum

			c := src.NRGBAAt(x+b.Min.X, y+b.Min.Y)
			out.SetNRGBA(x+b.Min.X, y+b.Min.Y, color.NRGBA{
				R: clamp8(float64(c.R) * gain),
				G: clamp8(float64(c.G) * gain),
				B: clamp8(float64(c.B) * gain),
				A: c.A,
			})
		}
	}

	return raster.FromImage(out), nil
}

// sharpen3x3 applies the fixed unsharp-style kernel: center 5, the four
// direct neighbors -1, corners 0.
func sharpen3x3(img *raster.Image) *raster.Image {
	src := img.NRGBA()
	out := img.Clone().NRGBA()
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()

	at := func(x, y int) color.NRGBA {
		x = clampRange(x, 0, width-1)
		y = clampRange(y, 0, height-1)
		return src.NRGBAAt(x+b.Min.X, y+b.Min.Y)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			center := at(x, y)
			up := at(x, y-1)
			down := at(x, y+1)
			left := at(x-1, y)
			right := at(x+1, y)

			apply := func(c, u, d, l, r uint8) uint8 {
				v := 5*float64(c) - float64(u) - float64(d) - float64(l) - float64(r)
				return clamp8(v)
			}
			out.SetNRGBA(x+b.Min.X, y+b.Min.Y, color.NRGBA{
				R: apply(center.R, up.R, down.R, left.R, right.R),
				G: apply(center.G, up.G, down.G, left.G, right.G),
				B: apply(center.B, up.B, down.B, left.B, right.B),
				A: center.A,
			})
		}
	}

	return raster.FromImage(out)
}

func clamp8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

func clampRange(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
