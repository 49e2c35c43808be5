package model

import "time"

// SyncRun statuses. StatusPartial is declared for the alternative reporting
// semantics where individual record failures downgrade the run; the pipeline
// currently reports StatusSuccess as long as the outer fetch succeeded.
const (
	StatusSuccess     = "SUCCESS"
	StatusPartial     = "PARTIAL_FAILURE_TOLERATED"
	StatusFailed      = "FAILED"
	StatusUnavailable = "UNAVAILABLE"
)

// SyncRun summarizes one batch pipeline execution. It is a transient
// reporting object, never persisted.
type SyncRun struct {
	SyncID         string    `json:"sync_id"`
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	ProcessedCount int       `json:"processed_count"`
	StartedAt      time.Time `json:"started_at"`
}
