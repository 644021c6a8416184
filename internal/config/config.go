// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings.
type Config struct {
	// Port is the HTTP listen port of the scan server.
	Port string

	// DatabaseURL is the Postgres DSN for the scan-history store. Empty
	// disables persistence.
	DatabaseURL string

	// TesseractLanguage is the language code passed to the OCR engine.
	TesseractLanguage string

	// ZeroShotURL is the zero-shot classification endpoint. Empty
	// disables ML refinement.
	ZeroShotURL string

	// ZeroShotAPIKey authenticates against the zero-shot endpoint.
	ZeroShotAPIKey string

	// CategoryPath points to a JSON category configuration. Empty uses
	// the built-in German taxonomy.
	CategoryPath string

	// LogLevel and LogFile configure the shared logger.
	LogLevel string
	LogFile  string

	// BackendInitTimeout bounds the one-time warmup of heavy backends.
	BackendInitTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in when present; a missing file is not an
// error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getenv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		TesseractLanguage:  getenv("TESSERACT_LANG", "deu"),
		ZeroShotURL:        os.Getenv("ZEROSHOT_URL"),
		ZeroShotAPIKey:     os.Getenv("ZEROSHOT_API_KEY"),
		CategoryPath:       os.Getenv("CATEGORY_CONFIG"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogFile:            os.Getenv("LOG_FILE"),
		BackendInitTimeout: 30 * time.Second,
	}

	if raw := os.Getenv("BACKEND_INIT_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid BACKEND_INIT_TIMEOUT %q: %w", raw, err)
		}
		cfg.BackendInitTimeout = d
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
