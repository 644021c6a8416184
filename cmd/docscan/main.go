package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/docuflat/docuflat/internal/category"
	"github.com/docuflat/docuflat/internal/classify"
	"github.com/docuflat/docuflat/internal/config"
	"github.com/docuflat/docuflat/internal/detect"
	"github.com/docuflat/docuflat/internal/enhance"
	"github.com/docuflat/docuflat/internal/extract"
	"github.com/docuflat/docuflat/internal/logging"
	"github.com/docuflat/docuflat/internal/ocr"
	"github.com/docuflat/docuflat/internal/pipeline"
	"github.com/docuflat/docuflat/internal/raster"
	"github.com/docuflat/docuflat/internal/server"
	"github.com/docuflat/docuflat/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("docscan %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFile)

	registry := category.Default()
	if cfg.CategoryPath != "" {
		registry, err = category.Load(cfg.CategoryPath)
		if err != nil {
			log.WithError(err).Fatal("load category configuration")
		}
	}

	var backend classify.ZeroShot
	if cfg.ZeroShotURL != "" {
		backend = classify.NewHTTPBackend(cfg.ZeroShotURL, cfg.ZeroShotAPIKey, nil, log)
	}

	pipe := pipeline.New(
		detect.NewDetector(detect.Config{}, log),
		enhance.NewEnhancer(log),
		ocr.NewTesseract(cfg.TesseractLanguage),
		extract.NewExtractor(registry),
		classify.NewClassifier(classify.DefaultConfig(), registry, backend, log),
		log,
	)
	pipe.Init(context.Background(), cfg.BackendInitTimeout)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "scan":
			if err := scanFile(pipe, os.Args[2:]); err != nil {
				log.WithError(err).Fatal("scan failed")
			}
			return
		case "info":
			if err := imageInfo(os.Args[2:]); err != nil {
				log.WithError(err).Fatal("info failed")
			}
			return
		}
	}

	var history *store.Store
	if cfg.DatabaseURL != "" {
		history, err = store.Open(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("open scan history store")
		}
	} else {
		log.Info("no DATABASE_URL configured, scan history disabled")
	}

	srv := server.New(pipe, history, registry, log)
	if err := srv.Run(cfg.Port); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

// scanFile runs the pipeline once over a local image and prints the result
// as JSON. The corrected scan is written next to the input file.
func scanFile(pipe *pipeline.Pipeline, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: docscan scan <image> [overlay]")
	}
	path := args[0]
	opts := pipeline.Options{}
	if len(args) > 1 && args[1] == "overlay" {
		opts.Overlay = true
	}

	img, err := raster.NewLoader().Load(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	result, err := pipe.Process(context.Background(), img, opts, func(stage string, fraction float64) {
		fmt.Fprintf(os.Stderr, "[%3.0f%%] %s\n", fraction*100, stage)
	})
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(path, ".png")
	if err := writePNG(result.Scan, base+".scan.png"); err != nil {
		return err
	}
	if result.Overlay != nil {
		if err := writePNG(result.Overlay, base+".overlay.png"); err != nil {
			return err
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// imageInfo prints basic metadata for a local image.
func imageInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: docscan info <image>")
	}
	info, err := raster.NewLoader().LoadInfo(args[0])
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func writePNG(img *raster.Image, path string) error {
	data, err := img.EncodePNG()
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func printHelp() {
	fmt.Println("docscan - document scanning and classification service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  docscan                    Start the HTTP server")
	fmt.Println("  docscan scan <image>       Scan a local image once and print JSON")
	fmt.Println("  docscan scan <image> overlay   Also write a corner overlay image")
	fmt.Println("  docscan info <image>       Print image metadata as JSON")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  PORT                  HTTP listen port (default 8080)")
	fmt.Println("  DATABASE_URL          Postgres DSN for scan history (optional)")
	fmt.Println("  TESSERACT_LANG        OCR language code (default deu)")
	fmt.Println("  ZEROSHOT_URL          Zero-shot classification endpoint (optional)")
	fmt.Println("  ZEROSHOT_API_KEY      API key for the zero-shot endpoint")
	fmt.Println("  CATEGORY_CONFIG       Path to a JSON category configuration")
	fmt.Println("  LOG_LEVEL             debug, info, warn or error (default info)")
	fmt.Println("  LOG_FILE              Also log to this file with rotation")
	fmt.Println("  BACKEND_INIT_TIMEOUT  Warmup bound for heavy backends (default 30s)")
}
