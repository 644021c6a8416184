package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"testing"
	"time"

	"github.com/docuflat/docuflat/internal/category"
	"github.com/docuflat/docuflat/internal/classify"
	"github.com/docuflat/docuflat/internal/detect"
	"github.com/docuflat/docuflat/internal/enhance"
	"github.com/docuflat/docuflat/internal/extract"
	"github.com/docuflat/docuflat/internal/geometry"
	"github.com/docuflat/docuflat/internal/ocr"
	"github.com/docuflat/docuflat/internal/raster"
)

// fakeEngine returns scripted recognition output.
type fakeEngine struct {
	text string
	conf float64
	err  error
}

func (f *fakeEngine) Recognize(_ context.Context, _ *raster.Image) (*ocr.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.Result{Text: f.text, Confidence: f.conf}, nil
}

// sceneImage is a dark scene with a centered white document region.
func sceneImage(width, height int) *raster.Image {
	img := raster.New(width, height)
	pix := img.NRGBA()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{R: 30, G: 30, B: 35, A: 255}
			if x > width/5 && x < width*4/5 && y > height/5 && y < height*4/5 {
				c = color.NRGBA{R: 245, G: 245, B: 240, A: 255}
			}
			pix.SetNRGBA(x, y, c)
		}
	}
	return img
}

func newPipeline(engine ocr.Engine) *Pipeline {
	registry := category.Default()
	return New(
		detect.NewDetector(detect.Config{}, nil),
		enhance.NewEnhancer(nil),
		engine,
		extract.NewExtractor(registry),
		classify.NewClassifier(classify.DefaultConfig(), registry, nil, nil),
		nil,
	)
}

func TestProcess_FullRun(t *testing.T) {
	recent := time.Now().AddDate(0, 0, -5).Format("02.01.2006")
	engine := &fakeEngine{
		text: fmt.Sprintf("Musterfirma GmbH\nRechnung vom %s über 1.234,56 €", recent),
		conf: 0.9,
	}
	p := newPipeline(engine)

	result, err := p.Process(context.Background(), sceneImage(300, 300), Options{}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.RunID == "" {
		t.Error("missing run id")
	}
	if result.Detection == nil || result.Detection.Confidence <= 0.3 {
		t.Errorf("detection: %+v", result.Detection)
	}
	if result.Scan == nil {
		t.Fatal("missing scan image")
	}
	if result.Classification.Category != "rechnung" {
		t.Errorf("category: got %q, want rechnung", result.Classification.Category)
	}
	if result.Data.Sender != "Musterfirma GmbH" {
		t.Errorf("sender: got %q", result.Data.Sender)
	}
	if result.BestDate == nil {
		t.Error("missing best date")
	}
	if len(result.Degradations) != 0 {
		t.Errorf("unexpected degradations: %v", result.Degradations)
	}
	for _, stage := range stages {
		if _, ok := result.Timings[stage]; !ok {
			t.Errorf("missing timing for stage %q", stage)
		}
	}
}

func TestProcess_ManualCorners(t *testing.T) {
	p := newPipeline(&fakeEngine{})
	corners := geometry.Quad{
		{X: -50, Y: 10}, {X: 500, Y: 10}, {X: 500, Y: 500}, {X: -50, Y: 500},
	}

	result, err := p.Process(context.Background(), sceneImage(200, 200), Options{ManualCorners: &corners}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Detection.Strategy != detect.StrategyManual {
		t.Errorf("strategy: got %q, want manual", result.Detection.Strategy)
	}
	if result.Detection.Confidence != 1 {
		t.Errorf("confidence: got %v, want 1", result.Detection.Confidence)
	}
	for i, c := range result.Detection.Corners {
		if c.X < 0 || c.X > 199 || c.Y < 0 || c.Y > 199 {
			t.Errorf("corner %d not clamped: %+v", i, c)
		}
	}
}

func TestProcess_NoEngineDegrades(t *testing.T) {
	p := newPipeline(nil)

	result, err := p.Process(context.Background(), sceneImage(200, 200), Options{}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if !contains(result.Degradations, DegradedOCRMissing) {
		t.Errorf("degradations: %v, want %q", result.Degradations, DegradedOCRMissing)
	}
	if result.Text != "" {
		t.Errorf("text: got %q, want empty", result.Text)
	}
	if result.Classification.Category != category.CatchAllID {
		t.Errorf("category: got %q, want catch-all", result.Classification.Category)
	}
}

func TestProcess_EngineErrorDegrades(t *testing.T) {
	p := newPipeline(&fakeEngine{err: errors.New("tesseract crashed")})

	result, err := p.Process(context.Background(), sceneImage(200, 200), Options{}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !contains(result.Degradations, DegradedOCRFailed) {
		t.Errorf("degradations: %v, want %q", result.Degradations, DegradedOCRFailed)
	}
}

func TestProcess_EngineUnavailableDegrades(t *testing.T) {
	p := newPipeline(&fakeEngine{err: fmt.Errorf("no cgo: %w", ocr.ErrUnavailable)})

	result, err := p.Process(context.Background(), sceneImage(200, 200), Options{}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !contains(result.Degradations, DegradedOCRMissing) {
		t.Errorf("degradations: %v, want %q", result.Degradations, DegradedOCRMissing)
	}
}

func TestProcess_ProgressOrder(t *testing.T) {
	p := newPipeline(&fakeEngine{})

	var seen []string
	_, err := p.Process(context.Background(), sceneImage(200, 200), Options{}, func(stage string, _ float64) {
		seen = append(seen, stage)
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(seen) != len(stages) {
		t.Fatalf("progress calls: got %v", seen)
	}
	for i, stage := range stages {
		if seen[i] != stage {
			t.Errorf("stage %d: got %q, want %q", i, seen[i], stage)
		}
	}
}

func TestProcess_Overlay(t *testing.T) {
	p := newPipeline(&fakeEngine{})

	result, err := p.Process(context.Background(), sceneImage(200, 200), Options{Overlay: true}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Overlay == nil {
		t.Fatal("missing overlay")
	}
	if result.Overlay.Width() != 200 || result.Overlay.Height() != 200 {
		t.Errorf("overlay dimensions: %dx%d", result.Overlay.Width(), result.Overlay.Height())
	}
}

func TestProcess_NilImage(t *testing.T) {
	p := newPipeline(nil)
	if _, err := p.Process(context.Background(), nil, Options{}, nil); err == nil {
		t.Error("nil image must be rejected")
	}
}

func TestProcess_Cancelled(t *testing.T) {
	p := newPipeline(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Process(ctx, sceneImage(200, 200), Options{}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

// warmEngine implements Warmable with scripted behavior.
type warmEngine struct {
	fakeEngine
	block bool
	err   error
}

func (w *warmEngine) Warmup(ctx context.Context) error {
	if w.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return w.err
}

func TestInit_WarmupTimeoutDropsEngine(t *testing.T) {
	engine := &warmEngine{fakeEngine: fakeEngine{text: "hallo"}, block: true}
	p := newPipeline(engine)

	p.Init(context.Background(), 20*time.Millisecond)

	result, err := p.Process(context.Background(), sceneImage(200, 200), Options{}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !contains(result.Degradations, DegradedOCRMissing) {
		t.Errorf("degradations: %v, want engine dropped", result.Degradations)
	}
}

// warmBackend is a zero-shot backend with scripted warmup behavior.
type warmBackend struct {
	warmErr error
}

func (w *warmBackend) Warmup(_ context.Context) error { return w.warmErr }

func (w *warmBackend) Classify(_ context.Context, _ string, _ []string) ([]classify.LabelScore, error) {
	return []classify.LabelScore{{Label: "ein Versicherungsdokument", Score: 0.95}}, nil
}

func backendPipeline(backend classify.ZeroShot) *Pipeline {
	registry := category.Default()
	return New(
		detect.NewDetector(detect.Config{}, nil),
		enhance.NewEnhancer(nil),
		&fakeEngine{text: "ein dokument ohne besondere merkmale"},
		extract.NewExtractor(registry),
		classify.NewClassifier(classify.DefaultConfig(), registry, backend, nil),
		nil,
	)
}

func TestInit_BackendWarmupFailureDropsZeroShot(t *testing.T) {
	p := backendPipeline(&warmBackend{warmErr: errors.New("model fetch failed")})

	p.Init(context.Background(), time.Second)

	result, err := p.Process(context.Background(), sceneImage(200, 200), Options{}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Classification.Method != classify.MethodKeyword {
		t.Errorf("method: got %q, want keyword-only after dropped backend", result.Classification.Method)
	}
}

func TestInit_BackendWarmupSuccessKeepsZeroShot(t *testing.T) {
	p := backendPipeline(&warmBackend{})

	p.Init(context.Background(), time.Second)

	result, err := p.Process(context.Background(), sceneImage(200, 200), Options{}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Classification.Method != classify.MethodML {
		t.Errorf("method: got %q, want ml after successful warmup", result.Classification.Method)
	}
}

func TestInit_WarmupSuccessKeepsEngine(t *testing.T) {
	engine := &warmEngine{fakeEngine: fakeEngine{text: "hallo", conf: 0.7}}
	p := newPipeline(engine)

	p.Init(context.Background(), time.Second)

	result, err := p.Process(context.Background(), sceneImage(200, 200), Options{}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Text != "hallo" {
		t.Errorf("text: got %q, want engine output", result.Text)
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
