//go:build !cgo

package ocr

import (
	"context"
	"fmt"

	"github.com/docuflat/docuflat/internal/raster"
)

// Tesseract is a placeholder engine in CGO-less builds.
type Tesseract struct {
	language string
}

// NewTesseract creates the placeholder engine; Recognize always reports
// ErrUnavailable in this build.
func NewTesseract(language string) *Tesseract {
	return &Tesseract{language: language}
}

// Recognize always fails; recognition needs the CGO Tesseract bindings.
func (t *Tesseract) Recognize(_ context.Context, _ *raster.Image) (*Result, error) {
	return nil, fmt.Errorf("built without cgo: %w", ErrUnavailable)
}
