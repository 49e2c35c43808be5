package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/quanla93/solar-monitoring-system/internal/resilience"
)

const stagingRetries = 3

// StagingRepo reads batch-ingested raw payloads and flips their processed
// flag. No claim protocol: concurrent pipeline runs against the same table
// are a single-runner assumption, not a guarantee.
type StagingRepo struct {
	db *gorm.DB
}

func NewStagingRepo(db *gorm.DB) (*StagingRepo, error) {
	if err := db.AutoMigrate(&StagingRecord{}); err != nil {
		return nil, err
	}
	return &StagingRepo{db: db}, nil
}

// FetchUnprocessed returns all rows with processed=false, oldest first.
func (r *StagingRepo) FetchUnprocessed(ctx context.Context) ([]StagingRecord, error) {
	var rows []StagingRecord
	err := resilience.Retry("staging-store", stagingRetries, func() error {
		rows = rows[:0]
		return r.db.WithContext(ctx).
			Where("processed = ?", false).
			Order("created_at ASC").Order("id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("staging store: fetch unprocessed: %w", err)
	}
	slog.Info("fetched unprocessed staging records", "count", len(rows))
	return rows, nil
}

// MarkProcessed flips processed to true for id. Marking an already-processed
// row again is a no-op, not an error.
func (r *StagingRepo) MarkProcessed(ctx context.Context, id uint) error {
	err := resilience.Retry("staging-store", stagingRetries, func() error {
		return r.db.WithContext(ctx).
			Model(&StagingRecord{}).
			Where("id = ?", id).
			Update("processed", true).Error
	})
	if err != nil {
		return fmt.Errorf("staging store: mark processed %d: %w", id, err)
	}
	return nil
}

// Save persists a new raw staging row. Used by the external ingestion
// surface; the pipeline itself never creates rows.
func (r *StagingRepo) Save(ctx context.Context, rec *StagingRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("staging store: save: %w", err)
	}
	return nil
}
