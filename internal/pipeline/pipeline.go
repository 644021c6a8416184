// Package pipeline coordinates one document scan from photo to classified
// result.
//
// Stages run synchronously in a fixed order: boundary detection (or a
// manual corner override), perspective correction, enhancement, text
// recognition, structured-data extraction, classification. Every stage has
// a degraded fallback and the pipeline itself never fails on "no document"
// or "no text"; hard errors only come from invalid input or a cancelled
// context.
//
// A Pipeline holds only shared read-only stage handles and is safe for
// concurrent runs; all per-run state lives in the Result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/docuflat/docuflat/internal/classify"
	"github.com/docuflat/docuflat/internal/detect"
	"github.com/docuflat/docuflat/internal/enhance"
	"github.com/docuflat/docuflat/internal/extract"
	"github.com/docuflat/docuflat/internal/geometry"
	"github.com/docuflat/docuflat/internal/ocr"
	"github.com/docuflat/docuflat/internal/raster"
	"github.com/docuflat/docuflat/internal/render"
	"github.com/docuflat/docuflat/internal/warp"
)

// Stage names, also used as timing keys and in progress callbacks.
const (
	StageDetect   = "detect"
	StageWarp     = "warp"
	StageEnhance  = "enhance"
	StageOCR      = "ocr"
	StageExtract  = "extract"
	StageClassify = "classify"
)

var stages = []string{StageDetect, StageWarp, StageEnhance, StageOCR, StageExtract, StageClassify}

// Degradation markers recorded in Result.Degradations.
const (
	DegradedDetection   = "detection-default"
	DegradedWarp        = "warp-skipped"
	DegradedEnhance     = "enhance-simple"
	DegradedOCRMissing  = "ocr-unavailable"
	DegradedOCRFailed   = "ocr-error"
)

// ProgressFunc receives stage transitions. fraction is the share of stages
// already completed when the named stage starts.
type ProgressFunc func(stage string, fraction float64)

// Options controls one pipeline run.
type Options struct {
	// Enhance selects the enhancement adjustments.
	Enhance enhance.Options `json:"enhance"`

	// ManualCorners, when set, replaces boundary detection. Points are
	// clamped to the image bounds and reordered to canonical order.
	ManualCorners *geometry.Quad `json:"manual_corners,omitempty"`

	// Overlay requests a diagnostic overlay image of the detected
	// corners on the original photo.
	Overlay bool `json:"overlay,omitempty"`
}

// Result is the complete outcome of one run.
type Result struct {
	// RunID identifies this run in logs and the scan history.
	RunID string `json:"run_id"`

	// Detection describes the boundary that was used.
	Detection *detect.Result `json:"detection"`

	// Scan is the corrected and enhanced document image.
	Scan *raster.Image `json:"-"`

	// Overlay is the diagnostic overlay, nil unless requested.
	Overlay *raster.Image `json:"-"`

	// Text is the recognized text, empty when recognition was
	// unavailable or failed.
	Text string `json:"text"`

	// OCRConfidence is the engine's mean word confidence.
	OCRConfidence float64 `json:"ocr_confidence"`

	// Data holds the extracted structured fields.
	Data *extract.StructuredData `json:"data"`

	// Classification is the category decision; Alternatives lists
	// runner-up categories for manual override.
	Classification *classify.Result      `json:"classification"`
	Alternatives   []classify.Alternative `json:"alternatives,omitempty"`

	// BestDate is the document date closest to now, nil when no
	// candidate qualified.
	BestDate *time.Time `json:"best_date,omitempty"`

	// Degradations lists every fallback taken during the run.
	Degradations []string `json:"degradations,omitempty"`

	// Timings holds the wall time spent per stage.
	Timings map[string]time.Duration `json:"-"`
}

// Pipeline wires the scan stages together.
type Pipeline struct {
	detector   *detect.Detector
	enhancer   *enhance.Enhancer
	engine     ocr.Engine
	extractor  *extract.Extractor
	classifier *classify.Classifier
	log        *logrus.Logger
}

// New creates a Pipeline from explicitly injected stages. engine may be
// nil; the pipeline then skips recognition and classifies on empty text.
func New(
	detector *detect.Detector,
	enhancer *enhance.Enhancer,
	engine ocr.Engine,
	extractor *extract.Extractor,
	classifier *classify.Classifier,
	log *logrus.Logger,
) *Pipeline {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Pipeline{
		detector:   detector,
		enhancer:   enhancer,
		engine:     engine,
		extractor:  extractor,
		classifier: classifier,
		log:        log,
	}
}

// Warmable is implemented by stage backends with expensive one-time
// initialization, such as model downloads.
type Warmable interface {
	Warmup(ctx context.Context) error
}

// Init warms up backends that support it, waiting at most timeout per
// backend. A backend that fails or exceeds the timeout is dropped and the
// pipeline runs in the matching degraded mode; Init itself never fails.
func (p *Pipeline) Init(ctx context.Context, timeout time.Duration) {
	if w, ok := p.engine.(Warmable); ok {
		if err := warmup(ctx, timeout, w); err != nil {
			p.log.WithError(err).Warn("ocr engine warmup failed, running without recognition")
			p.engine = nil
		}
	}
	if p.classifier != nil {
		if err := warmup(ctx, timeout, p.classifier); err != nil {
			p.log.WithError(err).Warn("zero-shot backend warmup failed, classification is keyword-only")
			p.classifier.DropBackend()
		}
	}
}

// warmup runs one Warmable under a deadline. The warmup goroutine may
// outlive the wait; it holds no pipeline state.
func warmup(ctx context.Context, timeout time.Duration, w Warmable) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Warmup(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("warmup: %w", ctx.Err())
	}
}

// Process runs the full pipeline over one photo. progress may be nil.
func (p *Pipeline) Process(ctx context.Context, img *raster.Image, opts Options, progress ProgressFunc) (*Result, error) {
	if img == nil {
		return nil, errors.New("nil input image")
	}

	result := &Result{
		RunID:   uuid.New().String(),
		Timings: make(map[string]time.Duration),
	}
	log := p.log.WithField("run_id", result.RunID)

	report := func(i int) {
		if progress != nil {
			progress(stages[i], float64(i)/float64(len(stages)))
		}
	}
	timed := func(stage string, start time.Time) {
		result.Timings[stage] = time.Since(start)
	}

	// Detection.
	report(0)
	start := time.Now()
	if opts.ManualCorners != nil {
		result.Detection = manualDetection(img, *opts.ManualCorners)
	} else {
		result.Detection = p.detector.Detect(img)
	}
	if result.Detection.Confidence == 0 && result.Detection.Strategy != detect.StrategyManual {
		result.Degradations = append(result.Degradations, DegradedDetection)
	}
	timed(StageDetect, start)
	log.WithFields(logrus.Fields{
		"stage":      StageDetect,
		"strategy":   result.Detection.Strategy,
		"confidence": result.Detection.Confidence,
	}).Info("boundary detection done")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.Overlay {
		result.Overlay = render.Overlay(img, result.Detection.Corners, result.Detection.Confidence)
	}

	// Perspective correction.
	report(1)
	start = time.Now()
	flat, err := warp.Perspective(img, result.Detection.Corners)
	if err != nil {
		log.WithError(err).WithField("stage", StageWarp).Warn("perspective correction failed, keeping original")
		result.Degradations = append(result.Degradations, DegradedWarp)
		flat = img.Clone()
	}
	timed(StageWarp, start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Enhancement.
	report(2)
	start = time.Now()
	enhanced := p.enhancer.Enhance(flat, opts.Enhance)
	if enhanced.Outcome == enhance.OutcomeDegraded {
		result.Degradations = append(result.Degradations, DegradedEnhance)
	}
	result.Scan = enhanced.Image
	timed(StageEnhance, start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Recognition.
	report(3)
	start = time.Now()
	result.Text, result.OCRConfidence = p.recognize(ctx, log, result)
	timed(StageOCR, start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Extraction.
	report(4)
	start = time.Now()
	result.Data = p.extractor.Extract(result.Text)
	if best, ok := extract.BestDate(result.Data.Dates, time.Now()); ok {
		result.BestDate = &best
	}
	timed(StageExtract, start)

	// Classification.
	report(5)
	start = time.Now()
	result.Classification = p.classifier.Classify(ctx, result.Text, result.Data)
	result.Alternatives = classify.Alternatives(result.Classification)
	timed(StageClassify, start)

	log.WithFields(logrus.Fields{
		"category":     result.Classification.Category,
		"confidence":   result.Classification.Confidence,
		"method":       result.Classification.Method,
		"degradations": len(result.Degradations),
	}).Info("scan complete")
	return result, nil
}

// recognize runs the OCR engine, degrading to empty text on every failure.
func (p *Pipeline) recognize(ctx context.Context, log *logrus.Entry, result *Result) (string, float64) {
	if p.engine == nil {
		result.Degradations = append(result.Degradations, DegradedOCRMissing)
		return "", 0
	}

	recognized, err := p.engine.Recognize(ctx, result.Scan)
	if err != nil {
		if errors.Is(err, ocr.ErrUnavailable) {
			result.Degradations = append(result.Degradations, DegradedOCRMissing)
		} else {
			result.Degradations = append(result.Degradations, DegradedOCRFailed)
		}
		log.WithError(err).WithField("stage", StageOCR).Warn("recognition failed, classifying without text")
		return "", 0
	}
	return recognized.Text, recognized.Confidence
}

// manualDetection wraps caller-supplied corners in a detection result.
// Points are clamped to the image bounds and put in canonical order.
func manualDetection(img *raster.Image, corners geometry.Quad) *detect.Result {
	maxX := float64(img.Width() - 1)
	maxY := float64(img.Height() - 1)
	for i := range corners {
		corners[i].X = clampFloat(corners[i].X, 0, maxX)
		corners[i].Y = clampFloat(corners[i].Y, 0, maxY)
	}
	return &detect.Result{
		Corners:    geometry.OrderCorners(corners),
		Confidence: 1,
		Strategy:   detect.StrategyManual,
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
