// Package enhance post-processes the dewarped document image: auto-levels,
// contrast/brightness, denoise, sharpen, or black/white document mode.
//
// The advanced path can fail (or be unavailable on constrained hosts); any
// failure transparently degrades to SimpleEnhance, a linear contrast/
// brightness pass that cannot fail. Degradation is reported through the
// Outcome tag on the result, never as an error.
package enhance

import (
	"fmt"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/docuflat/docuflat/internal/raster"
)

// Outcome tags which enhancement path produced the result.
type Outcome string

const (
	// OutcomeFull means the advanced pipeline ran to completion.
	OutcomeFull Outcome = "full"

	// OutcomeDegraded means the advanced pipeline failed and the simple
	// contrast/brightness fallback was used instead.
	OutcomeDegraded Outcome = "degraded"
)

// Options selects which adjustments to apply. All toggles are independent.
type Options struct {
	// Contrast is a percentage adjustment in [-100, 100]; 0 is unchanged.
	Contrast float64 `json:"contrast"`

	// Brightness is a percentage adjustment in [-100, 100]; 0 is unchanged.
	Brightness float64 `json:"brightness"`

	// AutoLevels applies contrast-limited histogram equalization on the
	// luminance channel before the other adjustments.
	AutoLevels bool `json:"auto_levels"`

	// Denoise applies an edge-preserving median filter.
	Denoise bool `json:"denoise"`

	// Sharpen applies a fixed 3x3 unsharp-style kernel
	// (center 5, four-neighbor -1, corners 0).
	Sharpen bool `json:"sharpen"`

	// BlackWhite switches to adaptive-threshold document mode, replacing
	// the continuous-tone pipeline entirely.
	BlackWhite bool `json:"black_white"`
}

// Result is an enhanced image along with the path that produced it.
type Result struct {
	Image   *raster.Image
	Outcome Outcome

	// Warning describes why the advanced path degraded. Empty on the full
	// path.
	Warning string
}

// Enhancer applies the enhancement pipeline. Enhancers are stateless and
// safe for concurrent use.
type Enhancer struct {
	log *logrus.Logger

	// advanced is swapped out by tests to exercise the degraded path.
	advanced func(img *raster.Image, opts Options) (*raster.Image, error)
}

// NewEnhancer creates an Enhancer. A nil logger disables logging.
func NewEnhancer(log *logrus.Logger) *Enhancer {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	e := &Enhancer{log: log}
	e.advanced = e.enhanceFull
	return e
}

// Enhance runs the advanced enhancement pipeline, falling back to
// SimpleEnhance if it fails for any reason.
//
// Order of operations when multiple adjustments are enabled:
// auto-levels, then contrast/brightness, then denoise, then sharpen.
// BlackWhite mode bypasses all of these with an adaptive binarization.
func (e *Enhancer) Enhance(img *raster.Image, opts Options) *Result {
	out, err := e.runAdvanced(img, opts)
	if err == nil {
		return &Result{Image: out, Outcome: OutcomeFull}
	}

	e.log.WithError(err).Warn("advanced enhancement failed, using simple fallback")
	return &Result{
		Image:   SimpleEnhance(img, opts),
		Outcome: OutcomeDegraded,
		Warning: err.Error(),
	}
}

// runAdvanced converts panics from the advanced path into errors so a broken
// filter implementation degrades instead of crashing the pipeline.
func (e *Enhancer) runAdvanced(img *raster.Image, opts Options) (out *raster.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("enhancement panicked: %v", r)
		}
	}()
	return e.advanced(img, opts)
}

func (e *Enhancer) enhanceFull(img *raster.Image, opts Options) (*raster.Image, error) {
	if opts.BlackWhite {
		return documentMode(img), nil
	}

	current := img.ToImage()

	if opts.AutoLevels {
		leveled, err := autoLevels(raster.FromImage(current))
		if err != nil {
			return nil, fmt.Errorf("auto-levels: %w", err)
		}
		current = leveled.ToImage()
	}

	if opts.Contrast != 0 {
		current = imaging.AdjustContrast(current, opts.Contrast)
	}
	if opts.Brightness != 0 {
		current = imaging.AdjustBrightness(current, opts.Brightness)
	}

	if opts.Denoise {
		current = effect.Median(current, 3)
	}

	if opts.Sharpen {
		current = sharpen3x3(raster.FromImage(current)).ToImage()
	}

	return raster.FromImage(current), nil
}

// SimpleEnhance is the restricted fallback path: linear contrast and
// brightness scaling only. It ignores AutoLevels, Denoise, Sharpen and
// BlackWhite and cannot fail.
func SimpleEnhance(img *raster.Image, opts Options) *raster.Image {
	current := img.ToImage()
	if opts.Contrast != 0 {
		current = imaging.AdjustContrast(current, opts.Contrast)
	}
	if opts.Brightness != 0 {
		current = imaging.AdjustBrightness(current, opts.Brightness)
	}
	return raster.FromImage(current)
}

// documentMode produces a black/white scan via adaptive thresholding,
// robust to uneven lighting across the page.
func documentMode(img *raster.Image) *raster.Image {
	plane := img.GrayPlane()
	mask := raster.AdaptiveThreshold(plane, 25, 0.06, false)

	out := make([][]float64, len(mask))
	for y, row := range mask {
		out[y] = make([]float64, len(row))
		for x, white := range row {
			if white {
				out[y][x] = 1
			}
		}
	}
	return raster.FromGrayPlane(out)
}
