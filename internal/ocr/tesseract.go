//go:build cgo

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/docuflat/docuflat/internal/raster"
)

// Tesseract is an Engine backed by the system Tesseract installation.
//
// Tesseract itself is not safe for concurrent use through one client, so a
// fresh gosseract client is created per call; the struct only carries
// configuration and may be shared freely.
type Tesseract struct {
	language string
}

// NewTesseract creates a Tesseract engine for the given language code
// (e.g. "deu" for German). The matching traineddata file must be installed
// on the system.
func NewTesseract(language string) *Tesseract {
	if language == "" {
		language = "deu"
	}
	return &Tesseract{language: language}
}

// Recognize runs Tesseract over the image.
//
// The full text always comes back on success. Line and word regions are
// best-effort: when the bounding-box iterator fails, the result carries the
// text with empty region slices rather than an error.
func (t *Tesseract) Recognize(ctx context.Context, img *raster.Image) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := img.EncodePNG()
	if err != nil {
		return nil, fmt.Errorf("encode image for recognition: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return nil, fmt.Errorf("set language %q: %w", t.language, err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Text: text}

	words, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return result, nil
	}
	for _, box := range words {
		if box.Word == "" {
			continue
		}
		result.Words = append(result.Words, Word{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds:     boundsOf(box),
		})
	}
	result.Confidence = meanConfidence(result.Words)

	lines, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return result, nil
	}
	for _, box := range lines {
		if box.Word == "" {
			continue
		}
		result.Lines = append(result.Lines, Line{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds:     boundsOf(box),
		})
	}
	return result, nil
}

func boundsOf(box gosseract.BoundingBox) Bounds {
	return Bounds{
		X1: box.Box.Min.X,
		Y1: box.Box.Min.Y,
		X2: box.Box.Max.X,
		Y2: box.Box.Max.Y,
	}
}
