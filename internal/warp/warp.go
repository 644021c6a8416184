// Package warp flattens a perspective-distorted document into an upright
// rectangular image using a projective transform (homography).
package warp

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/docuflat/docuflat/internal/geometry"
	"github.com/docuflat/docuflat/internal/raster"
)

// MinOutputDim floors each output dimension to avoid degenerate buffers
// when corners collapse to a sliver.
const MinOutputDim = 100

// Perspective resamples the source image so the region bounded by corners
// fills an axis-aligned rectangle.
//
// corners must be a valid non-degenerate quadrilateral in canonical
// [TL, TR, BR, BL] order; behavior on zero-area input is undefined - callers
// must have validated via the detector's filters or clamped manual input to
// the image bounds. Output dimensions derive from the quadrilateral's side
// lengths:
//
//	width  = max(distance(TL,TR), distance(BL,BR))
//	height = max(distance(TL,BL), distance(TR,BR))
//
// each floored at MinOutputDim. This is a one-shot transform with bilinear
// resampling; there is no iterative refinement.
func Perspective(img *raster.Image, corners geometry.Quad) (*raster.Image, error) {
	width := int(math.Round(math.Max(
		geometry.Distance(corners.TL(), corners.TR()),
		geometry.Distance(corners.BL(), corners.BR()))))
	height := int(math.Round(math.Max(
		geometry.Distance(corners.TL(), corners.BL()),
		geometry.Distance(corners.TR(), corners.BR()))))
	if width < MinOutputDim {
		width = MinOutputDim
	}
	if height < MinOutputDim {
		height = MinOutputDim
	}

	dst := geometry.Quad{
		{X: 0, Y: 0},
		{X: float64(width), Y: 0},
		{X: float64(width), Y: float64(height)},
		{X: 0, Y: float64(height)},
	}

	// Map destination to source so each output pixel samples the input once.
	h, err := homography(dst, corners)
	if err != nil {
		return nil, fmt.Errorf("failed to compute homography: %w", err)
	}

	src := img.NRGBA()
	out := image.NewNRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sx, sy := h.apply(float64(x)+0.5, float64(y)+0.5)
			out.SetNRGBA(x, y, bilinearSample(src, sx, sy))
		}
	}

	return raster.FromImage(out), nil
}

// homographyMatrix is a 3x3 projective transform with h[2][2] fixed at 1.
type homographyMatrix [8]float64

// homography solves the 8-unknown linear system mapping the four points of
// src onto dst.
func homography(src, dst geometry.Quad) (*homographyMatrix, error) {
	// Each correspondence contributes two equations:
	//   x' = (a*x + b*y + c) / (g*x + h*y + 1)
	//   y' = (d*x + e*y + f) / (g*x + h*y + 1)
	var m [8][9]float64
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		m[2*i] = [9]float64{x, y, 1, 0, 0, 0, -u * x, -u * y, u}
		m[2*i+1] = [9]float64{0, 0, 0, x, y, 1, -v * x, -v * y, v}
	}

	// Gaussian elimination with partial pivoting.
	for col := 0; col < 8; col++ {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("degenerate point correspondence")
		}
		m[col], m[pivot] = m[pivot], m[col]

		for row := 0; row < 8; row++ {
			if row == col {
				continue
			}
			factor := m[row][col] / m[col][col]
			for k := col; k < 9; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}

	var h homographyMatrix
	for i := 0; i < 8; i++ {
		h[i] = m[i][8] / m[i][i]
	}
	return &h, nil
}

// apply maps a point through the homography.
func (h *homographyMatrix) apply(x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + 1
	if w == 0 {
		return 0, 0
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}

// bilinearSample reads a sub-pixel position with bilinear interpolation.
// Out-of-bounds samples clamp to the nearest edge pixel.
func bilinearSample(src *image.NRGBA, x, y float64) (c color.NRGBA) {
	b := src.Bounds()
	// Convert from pixel-center coordinates.
	x -= 0.5
	y -= 0.5

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	clampX := func(v int) int { return clampInt(v, 0, b.Dx()-1) }
	clampY := func(v int) int { return clampInt(v, 0, b.Dy()-1) }

	p00 := src.NRGBAAt(b.Min.X+clampX(x0), b.Min.Y+clampY(y0))
	p10 := src.NRGBAAt(b.Min.X+clampX(x0+1), b.Min.Y+clampY(y0))
	p01 := src.NRGBAAt(b.Min.X+clampX(x0), b.Min.Y+clampY(y0+1))
	p11 := src.NRGBAAt(b.Min.X+clampX(x0+1), b.Min.Y+clampY(y0+1))

	lerp := func(a, b uint8, t float64) float64 { return float64(a) + (float64(b)-float64(a))*t }
	blend := func(a00, a10, a01, a11 uint8) uint8 {
		top := lerp(a00, a10, fx)
		bottom := lerp(a01, a11, fx)
		return uint8(math.Round(top + (bottom-top)*fy))
	}

	c.R = blend(p00.R, p10.R, p01.R, p11.R)
	c.G = blend(p00.G, p10.G, p01.G, p11.G)
	c.B = blend(p00.B, p10.B, p01.B, p11.B)
	c.A = blend(p00.A, p10.A, p01.A, p11.A)
	return c
}

func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
