package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/quanla93/solar-monitoring-system/internal/model"
)

// MetricPoint is the persisted form of a canonical metric record in the
// append-only history table.
type MetricPoint struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DeviceID        string         `gorm:"index:idx_metric_device_ts,priority:1" json:"device_id"`
	TS              time.Time      `gorm:"index:idx_metric_device_ts,priority:2" json:"ts"`
	PowerGeneration float64        `json:"power_generation"`
	Voltage         *float64       `json:"voltage,omitempty"`
	Current         *float64       `json:"current,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	Status          string         `json:"status"`
	Extra           datatypes.JSON `gorm:"type:jsonb" json:"extra,omitempty"`
}

// StagingRecord is one unprocessed batch entry written by an external
// ingestion process. The pipeline only ever reads unprocessed rows and flips
// Processed; rows are never deleted here.
type StagingRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID    string    `json:"device_id"`
	Content     string    `gorm:"type:text" json:"content"`
	ContentType string    `json:"content_type"` // "JSON" or "XML"
	CreatedAt   time.Time `json:"created_at"`
	Processed   bool      `gorm:"index" json:"processed"`
}

func pointFromRecord(rec model.MetricRecord) (MetricPoint, error) {
	p := MetricPoint{
		DeviceID:        rec.DeviceID,
		TS:              rec.Timestamp,
		PowerGeneration: rec.PowerGeneration,
		Voltage:         rec.Voltage,
		Current:         rec.Current,
		Temperature:     rec.Temperature,
		Status:          rec.Status,
	}
	if rec.ID != "" {
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			return MetricPoint{}, err
		}
		p.ID = id
	}
	if len(rec.Extra) > 0 {
		b, err := json.Marshal(rec.Extra)
		if err != nil {
			return MetricPoint{}, err
		}
		p.Extra = datatypes.JSON(b)
	}
	return p, nil
}

func (p MetricPoint) toRecord() model.MetricRecord {
	rec := model.MetricRecord{
		ID:              p.ID.String(),
		DeviceID:        p.DeviceID,
		PowerGeneration: p.PowerGeneration,
		Voltage:         p.Voltage,
		Current:         p.Current,
		Temperature:     p.Temperature,
		Status:          p.Status,
		Timestamp:       p.TS,
	}
	if len(p.Extra) > 0 {
		var extra map[string]any
		if err := json.Unmarshal(p.Extra, &extra); err == nil {
			rec.Extra = extra
		}
	}
	return rec
}
