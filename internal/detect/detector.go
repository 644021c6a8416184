// Package detect locates a document's quadrilateral boundary within a
// photographed scene.
//
// Three independent strategies run in fixed order over a downsampled working
// image - edge-based, adaptive-threshold-based and bright-region-based - each
// producing a candidate quadrilateral with a confidence score. The first
// strategy clearing the confidence threshold wins. When nothing qualifies the
// detector returns a centered default rectangle with confidence 0; absence of
// a document is a result, never an error.
package detect

import (
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"

	"github.com/docuflat/docuflat/internal/geometry"
	"github.com/docuflat/docuflat/internal/raster"
)

// Strategy names reported in Result.Strategy.
const (
	StrategyEdge     = "edge"
	StrategyAdaptive = "adaptive-threshold"
	StrategyBright   = "bright-region"
	StrategyNone     = "none"

	// StrategyManual marks caller-supplied corners, no detection ran.
	StrategyManual = "manual"
)

// Result describes the outcome of one boundary detection call.
type Result struct {
	// Corners is the detected quadrilateral in canonical
	// [top-left, top-right, bottom-right, bottom-left] order, in the
	// coordinate space of the original (not downsampled) image.
	Corners geometry.Quad `json:"corners"`

	// Confidence is the detection confidence in [0, 1]. Confidence 0 means
	// no document was found and Corners holds the synthetic default
	// rectangle (image bounds inset by 10%).
	Confidence float64 `json:"confidence"`

	// Strategy names the strategy that produced the result.
	Strategy string `json:"strategy"`

	// Reason carries a human-readable diagnostic when no document was
	// detected. Empty on success.
	Reason string `json:"reason,omitempty"`
}

// Config holds the detector's tunable thresholds. Zero values are replaced
// with defaults by NewDetector.
type Config struct {
	// WorkingSize is the maximum dimension of the downsampled working
	// image. Detection accuracy is insensitive to resolution beyond this
	// while cost grows quadratically. Default 800.
	WorkingSize int

	// MinConfidence is the score a strategy must exceed for its candidate
	// to be accepted without trying further strategies. Default 0.3.
	MinConfidence float64

	// MinAreaFraction / MaxAreaFraction bound the candidate region's share
	// of the frame. Too small is noise; too large is a whole-frame false
	// positive. Defaults 0.10 and 0.98.
	MinAreaFraction float64
	MaxAreaFraction float64

	// MinAspect / MaxAspect bound the quadrilateral's longer/shorter side
	// ratio. Filters blobs not shaped like documents. Defaults 0.4, 2.5.
	MinAspect float64
	MaxAspect float64
}

// Detector finds document boundaries in images. Detectors are stateless and
// safe for concurrent use.
type Detector struct {
	cfg Config
	log *logrus.Logger
}

// NewDetector creates a Detector, filling unset Config fields with defaults.
// A nil logger disables detector logging.
func NewDetector(cfg Config, log *logrus.Logger) *Detector {
	if cfg.WorkingSize <= 0 {
		cfg.WorkingSize = 800
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.3
	}
	if cfg.MinAreaFraction <= 0 {
		cfg.MinAreaFraction = 0.10
	}
	if cfg.MaxAreaFraction <= 0 {
		cfg.MaxAreaFraction = 0.98
	}
	if cfg.MinAspect <= 0 {
		cfg.MinAspect = 0.4
	}
	if cfg.MaxAspect <= 0 {
		cfg.MaxAspect = 2.5
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Detector{cfg: cfg, log: log}
}

type strategyFunc struct {
	name string
	run  func(work *raster.Image) (geometry.Quad, float64, bool)
}

// Detect finds the document boundary in img.
//
// Strategies are tried in fixed order - edge, adaptive threshold, bright
// region - and the first candidate with confidence above MinConfidence is
// returned with its corners scaled back to the original image's coordinate
// space. Detect never fails for a valid image: when no strategy qualifies it
// returns the default centered rectangle with confidence 0 and a reason.
func (d *Detector) Detect(img *raster.Image) *Result {
	work := img.Fit(d.cfg.WorkingSize, d.cfg.WorkingSize)
	sx := float64(img.Width()) / float64(work.Width())
	sy := float64(img.Height()) / float64(work.Height())

	strategies := []strategyFunc{
		{StrategyEdge, d.edgeStrategy},
		{StrategyAdaptive, d.adaptiveStrategy},
		{StrategyBright, d.brightStrategy},
	}

	for _, s := range strategies {
		quad, confidence, ok := s.run(work)
		if !ok || confidence <= d.cfg.MinConfidence {
			d.log.WithFields(logrus.Fields{
				"strategy":   s.name,
				"confidence": confidence,
			}).Debug("strategy did not qualify")
			continue
		}

		scaled := scaleQuad(quad, sx, sy, img.Width(), img.Height())
		d.log.WithFields(logrus.Fields{
			"strategy":   s.name,
			"confidence": confidence,
		}).Info("document boundary detected")
		return &Result{
			Corners:    scaled,
			Confidence: confidence,
			Strategy:   s.name,
		}
	}

	return d.defaultResult(img.Width(), img.Height())
}

// edgeStrategy detects the boundary via auto-thresholded Canny edges.
//
// Median filtering stands in for a bilateral filter as the edge-preserving
// denoise step; none of the imaging dependencies provides a bilateral
// filter, and at the working size a 3px median keeps step edges intact.
// A Gaussian blur then removes remaining high-frequency texture, and
// the Otsu threshold of the smoothed
// plane derives the Canny hysteresis thresholds (low = 0.3xOtsu,
// high = 0.9xOtsu, clamped to [10, 200]). The edge map is dilated to close
// gaps in broken outlines before contour extraction.
func (d *Detector) edgeStrategy(work *raster.Image) (geometry.Quad, float64, bool) {
	denoised := effect.Median(work.ToImage(), 3)
	smoothed := blur.Gaussian(denoised, 1.5)
	plane := raster.FromImage(smoothed).GrayPlane()

	otsu := raster.OtsuThreshold(plane)
	low := clampInt(int(0.3*float64(otsu)), 10, 200)
	high := clampInt(int(0.9*float64(otsu)), 10, 200)

	edges := cannyEdges(plane, low, high)
	closed := dilateMask(edges, 2)

	return d.bestQuadrilateral(findContours(closed), work.Width(), work.Height())
}

// adaptiveStrategy detects the boundary via local-mean inverse thresholding.
//
// Picks up documents on low-contrast backgrounds where global edge contrast
// is too weak for the edge strategy. Morphological close-then-open cleans up
// binarization noise before contour extraction.
func (d *Detector) adaptiveStrategy(work *raster.Image) (geometry.Quad, float64, bool) {
	plane := work.GrayPlane()
	mask := raster.AdaptiveThreshold(plane, 25, 0.04, true)
	cleaned := openMask(closeMask(mask, 2), 1)

	return d.bestQuadrilateral(findContours(cleaned), work.Width(), work.Height())
}

// brightStrategy detects the boundary as a low-saturation high-value region,
// the HSV signature of white paper.
//
// This is the least trusted strategy - background glare shares the same
// signature - so its confidence is multiplied by 0.9. The fixed thresholds
// (S < 0.25, V > 0.6) assume white or light paper; colored document stock is
// a known limitation.
func (d *Detector) brightStrategy(work *raster.Image) (geometry.Quad, float64, bool) {
	width, height := work.Width(), work.Height()
	nrgba := work.NRGBA()

	mask := make([][]bool, height)
	for y := 0; y < height; y++ {
		mask[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			c, ok := colorful.MakeColor(nrgba.NRGBAAt(x, y))
			if !ok {
				continue
			}
			_, s, v := c.Hsv()
			mask[y][x] = s < 0.25 && v > 0.6
		}
	}

	cleaned := openMask(closeMask(mask, 2), 1)
	quad, confidence, ok := d.bestQuadrilateral(findContours(cleaned), width, height)
	return quad, confidence * 0.9, ok
}

// bestQuadrilateral evaluates candidate contours and keeps the highest
// scoring document-shaped quadrilateral.
//
// For each contour the convex hull's area share of the frame must lie within
// [MinAreaFraction, MaxAreaFraction]. The hull is approximated to a polygon
// with an epsilon of 2% of its perimeter: exactly 4 vertices are used
// directly; 5-8 vertices fall back to the minimum-area bounding rectangle
// (rounded or damaged corners, compression artifacts); anything else is
// rejected. Surviving quadrilaterals must have an aspect ratio within
// [MinAspect, MaxAspect]. The score is min(areaFraction x 2.5, 1), so larger
// valid regions win, capped at 1.
func (d *Detector) bestQuadrilateral(contours [][]geometry.Point, width, height int) (geometry.Quad, float64, bool) {
	frameArea := float64(width * height)

	var best geometry.Quad
	bestConfidence := -1.0

	for _, contour := range contours {
		hull := geometry.ConvexHull(contour)
		if len(hull) < 4 {
			continue
		}

		fraction := geometry.Area(hull) / frameArea
		if fraction < d.cfg.MinAreaFraction || fraction > d.cfg.MaxAreaFraction {
			continue
		}

		epsilon := 0.02 * geometry.Perimeter(hull)
		approx := geometry.ApproxPolygon(hull, epsilon)

		var corners [4]geometry.Point
		switch {
		case len(approx) == 4:
			copy(corners[:], approx)
		case len(approx) >= 5 && len(approx) <= 8:
			corners = geometry.MinAreaRect(hull)
		default:
			continue
		}

		quad := geometry.OrderCorners(corners)
		aspect := geometry.AspectRatio(quad)
		if aspect < d.cfg.MinAspect || aspect > d.cfg.MaxAspect {
			continue
		}

		if confidence := math.Min(fraction*2.5, 1); confidence > bestConfidence {
			bestConfidence = confidence
			best = quad
		}
	}

	if bestConfidence < 0 {
		return geometry.Quad{}, 0, false
	}
	return best, bestConfidence, true
}

// defaultResult returns the image bounds inset by a 10% margin with
// confidence 0.
func (d *Detector) defaultResult(width, height int) *Result {
	mx := float64(width) * 0.1
	my := float64(height) * 0.1
	w := float64(width)
	h := float64(height)

	return &Result{
		Corners: geometry.Quad{
			{X: mx, Y: my},
			{X: w - mx, Y: my},
			{X: w - mx, Y: h - my},
			{X: mx, Y: h - my},
		},
		Confidence: 0,
		Strategy:   StrategyNone,
		Reason:     "no document detected",
	}
}

// scaleQuad maps working-image corners back to original image coordinates,
// clamped to the image bounds.
func scaleQuad(q geometry.Quad, sx, sy float64, width, height int) geometry.Quad {
	var out geometry.Quad
	for i, p := range q {
		out[i] = geometry.Point{
			X: math.Min(math.Max(p.X*sx, 0), float64(width-1)),
			Y: math.Min(math.Max(p.Y*sy, 0), float64(height-1)),
		}
	}
	return out
}
