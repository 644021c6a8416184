// Package ocr defines the text-recognition boundary of the scan pipeline.
//
// The pipeline treats recognition as a black box: image in, text plus
// per-line and per-word confidences out. The default engine wraps Tesseract
// via gosseract and needs CGO; builds without CGO get a stub engine that
// reports ErrUnavailable, and the pipeline degrades to classification-less
// output instead of failing.
package ocr

import (
	"context"
	"errors"

	"github.com/docuflat/docuflat/internal/raster"
)

// ErrUnavailable means no recognition engine is usable in this build or
// environment.
var ErrUnavailable = errors.New("ocr engine unavailable")

// Bounds is a rectangular region in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Word is one recognized word with its location.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

// Line is one recognized text line.
type Line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

// Result holds the complete recognition output for one image.
type Result struct {
	// Text is the full recognized text with original line breaks.
	Text string `json:"text"`

	// Confidence is the mean word confidence in [0, 1], 0 when no words
	// were recognized.
	Confidence float64 `json:"confidence"`

	// Lines and Words may be empty when the engine cannot produce
	// region-level output; Text is still populated then.
	Lines []Line `json:"lines,omitempty"`
	Words []Word `json:"words,omitempty"`
}

// Engine recognizes text in an image.
//
// Implementations must be safe for concurrent use; the pipeline shares one
// engine handle across runs.
type Engine interface {
	Recognize(ctx context.Context, img *raster.Image) (*Result, error)
}

// meanConfidence averages word confidences, 0 for an empty slice.
func meanConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	sum := 0.0
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
