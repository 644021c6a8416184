// Package store persists scan history in Postgres.
//
// Persistence is optional: when no database is configured the rest of the
// system runs without it, and scan results are simply not recorded.
package store

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ScanRecord is one completed pipeline run.
type ScanRecord struct {
	gorm.Model

	// RunID is the pipeline run identifier.
	RunID string `gorm:"uniqueIndex;size:36" json:"run_id"`

	// Category and Confidence come from classification.
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`

	// DetectionStrategy and DetectionConfidence come from boundary
	// detection.
	DetectionStrategy   string  `json:"detection_strategy"`
	DetectionConfidence float64 `json:"detection_confidence"`

	// Sender, BestDate and Amount are extracted fields, empty when
	// absent. Amount is the first currency amount found in the text.
	Sender   string `json:"sender"`
	BestDate string `json:"best_date"`
	Amount   string `json:"amount"`

	// Degradations lists fallback stages taken, comma separated.
	Degradations string `json:"degradations"`

	// DurationMS is the total pipeline wall time in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.AutoMigrate(&ScanRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts one scan record.
func (s *Store) Save(ctx context.Context, record *ScanRecord) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("save scan record: %w", err)
	}
	return nil
}

// Recent returns the newest records, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []ScanRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list scan records: %w", err)
	}
	return records, nil
}

// Get looks up one record by run id.
func (s *Store) Get(ctx context.Context, runID string) (*ScanRecord, error) {
	var record ScanRecord
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&record).Error
	if err != nil {
		return nil, fmt.Errorf("load scan record %s: %w", runID, err)
	}
	return &record, nil
}
