// Package raster provides the owned image representation passed between
// pipeline stages, plus decoding, encoding and low-level plane operations.
//
// Every pipeline stage takes an *Image and returns a newly allocated *Image;
// no stage mutates its input. This keeps stage boundaries free of shared
// buffers when new processing stages are added.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	"image/png"

	"github.com/disintegration/imaging"
)

// Image is an owned RGBA pixel grid.
//
// The zero value is not usable; construct via FromImage, Decode or New.
type Image struct {
	pix *image.NRGBA
}

// New creates a black image of the given dimensions.
func New(width, height int) *Image {
	return &Image{pix: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// FromImage copies an arbitrary image.Image into an owned Image.
//
// The source is never retained; mutations of the source after the call do
// not affect the returned Image.
func FromImage(src image.Image) *Image {
	return &Image{pix: imaging.Clone(src)}
}

// Decode parses encoded PNG, JPEG or GIF bytes into an owned Image.
func Decode(data []byte) (*Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	return FromImage(im.pix)
}

// Width returns the image width in pixels.
func (im *Image) Width() int { return im.pix.Bounds().Dx() }

// Height returns the image height in pixels.
func (im *Image) Height() int { return im.pix.Bounds().Dy() }

// ToImage exposes the pixel data as a standard image.Image.
//
// The returned value shares the underlying buffer; callers treating an Image
// as immutable (all pipeline stages do) may use it directly.
func (im *Image) ToImage() image.Image { return im.pix }

// NRGBA exposes the underlying NRGBA buffer for pixel-level operations
// within processing code.
func (im *Image) NRGBA() *image.NRGBA { return im.pix }

// At returns the 8-bit RGBA components at (x, y).
func (im *Image) At(x, y int) (r, g, b, a uint8) {
	c := im.pix.NRGBAAt(x+im.pix.Bounds().Min.X, y+im.pix.Bounds().Min.Y)
	return c.R, c.G, c.B, c.A
}

// EncodePNG serializes the image as PNG bytes.
func (im *Image) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, im.pix); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// GrayPlane converts the image to a normalized luminance grid.
//
// Luminance uses ITU-R BT.601 weights (0.299*R + 0.587*G + 0.114*B) and is
// scaled to [0, 1]. Layout is plane[y][x].
func (im *Image) GrayPlane() [][]float64 {
	b := im.pix.Bounds()
	width, height := b.Dx(), b.Dy()

	plane := make([][]float64, height)
	for y := 0; y < height; y++ {
		plane[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			c := im.pix.NRGBAAt(x+b.Min.X, y+b.Min.Y)
			rf := float64(c.R) / 255.0
			gf := float64(c.G) / 255.0
			bf := float64(c.B) / 255.0
			plane[y][x] = 0.299*rf + 0.587*gf + 0.114*bf
		}
	}
	return plane
}

// FromGrayPlane builds a grayscale Image from a normalized luminance grid.
// Values are clamped to [0, 1].
func FromGrayPlane(plane [][]float64) *Image {
	height := len(plane)
	width := 0
	if height > 0 {
		width = len(plane[0])
	}

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := plane[y][x]
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			g := uint8(v * 255)
			out.SetNRGBA(x, y, color.NRGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return &Image{pix: out}
}

// Resize scales the image to the given dimensions with Lanczos resampling.
func (im *Image) Resize(width, height int) *Image {
	return &Image{pix: imaging.Resize(im.pix, width, height, imaging.Lanczos)}
}

// Fit scales the image down to fit within maxWidth x maxHeight while
// preserving aspect ratio. Images already within bounds are copied unchanged.
func (im *Image) Fit(maxWidth, maxHeight int) *Image {
	return &Image{pix: imaging.Fit(im.pix, maxWidth, maxHeight, imaging.Lanczos)}
}

// Crop extracts the rectangular region (x1,y1)-(x2,y2) as a new Image.
func (im *Image) Crop(x1, y1, x2, y2 int) (*Image, error) {
	b := im.pix.Bounds()
	if x1 < b.Min.X || y1 < b.Min.Y || x2 > b.Max.X || y2 > b.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			x1, y1, x2, y2, b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}
	return &Image{pix: imaging.Crop(im.pix, image.Rect(x1, y1, x2, y2))}, nil
}
