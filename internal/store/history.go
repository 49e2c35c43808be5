package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/quanla93/solar-monitoring-system/internal/model"
	"github.com/quanla93/solar-monitoring-system/internal/resilience"
)

const appendRetries = 3

// HistoryRepo is the durable, append-only store of metric records. It is the
// system of record; the cache is only a latency optimization in front of it.
type HistoryRepo struct {
	db *gorm.DB
}

func OpenPostgres(user, password, dbName, host, port, sslMode string) (*gorm.DB, error) {
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", host, user, password, dbName, port, sslMode)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func NewHistoryRepo(db *gorm.DB) (*HistoryRepo, error) {
	if err := db.AutoMigrate(&MetricPoint{}); err != nil {
		return nil, err
	}
	return &HistoryRepo{db: db}, nil
}

// Append persists rec and returns it with the store-assigned id populated.
// A record arriving with a zero timestamp gets one assigned here; the parser
// normally handles that, but direct callers must still end up with a valid
// timestamp.
func (r *HistoryRepo) Append(ctx context.Context, rec model.MetricRecord) (model.MetricRecord, error) {
	p, err := pointFromRecord(rec)
	if err != nil {
		return model.MetricRecord{}, fmt.Errorf("history store: map record: %w", err)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.TS.IsZero() {
		p.TS = time.Now().UTC()
	}

	// The id is assigned before the insert, so retrying a failed create
	// cannot produce two rows for one record.
	err = resilience.Retry("history-store", appendRetries, func() error {
		return r.db.WithContext(ctx).Create(&p).Error
	})
	if err != nil {
		return model.MetricRecord{}, fmt.Errorf("history store: append for %s: %w", rec.DeviceID, err)
	}
	slog.Debug("history append", "device_id", p.DeviceID, "ts", p.TS)
	return p.toRecord(), nil
}

// HistoryQuery selects records by optional device id and inclusive time
// range, with zero-indexed pagination.
type HistoryQuery struct {
	DeviceID string
	Start    time.Time
	End      time.Time
	Page     int
	Size     int
}

// Page is one slice of a history query result, newest first.
type Page struct {
	Records []model.MetricRecord `json:"records"`
	Page    int                  `json:"page"`
	Size    int                  `json:"size"`
	Total   int64                `json:"total"`
}

// Query returns records matching q ordered by timestamp descending. Callers
// rely on that ordering for "latest N" semantics.
func (r *HistoryRepo) Query(ctx context.Context, q HistoryQuery) (Page, error) {
	if q.Size <= 0 {
		q.Size = 20
	}
	if q.Page < 0 {
		q.Page = 0
	}

	tx := r.db.WithContext(ctx).Model(&MetricPoint{}).
		Where("ts >= ? AND ts <= ?", q.Start, q.End)
	if q.DeviceID != "" {
		tx = tx.Where("device_id = ?", q.DeviceID)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return Page{}, fmt.Errorf("history store: count: %w", err)
	}

	var points []MetricPoint
	err := tx.Order("ts DESC").Order("id DESC").
		Offset(q.Page * q.Size).Limit(q.Size).
		Find(&points).Error
	if err != nil {
		return Page{}, fmt.Errorf("history store: query: %w", err)
	}

	out := Page{Page: q.Page, Size: q.Size, Total: total, Records: make([]model.MetricRecord, 0, len(points))}
	for _, p := range points {
		out.Records = append(out.Records, p.toRecord())
	}
	return out, nil
}

// PurgeBefore deletes every record strictly older than cutoff and returns
// the number deleted. A record at exactly cutoff is retained.
func (r *HistoryRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("ts < ?", cutoff).Delete(&MetricPoint{})
	if res.Error != nil {
		return 0, fmt.Errorf("history store: purge: %w", res.Error)
	}
	slog.Info("history purge", "cutoff", cutoff, "deleted", res.RowsAffected)
	return res.RowsAffected, nil
}
