package model

import "time"

// MetricRecord is the canonical, format-independent representation of one
// telemetry sample. Instances are transient: the parser produces them, the
// pipeline hands them to the cache and history stores, nothing retains them
// beyond a single dual-write.
type MetricRecord struct {
	ID              string         `json:"id,omitempty"`
	DeviceID        string         `json:"device_id"`
	PowerGeneration float64        `json:"power_generation"`
	Voltage         *float64       `json:"voltage,omitempty"`
	Current         *float64       `json:"current,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	Status          string         `json:"status"`
	Timestamp       time.Time      `json:"timestamp"`
	Extra           map[string]any `json:"extra,omitempty"`
}
