package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/clbanning/mxj/v2"

	"github.com/quanla93/solar-monitoring-system/internal/model"
)

// TimeLayout is the only timestamp format accepted from payloads. No
// timezone offset: device clocks report local wall time.
const TimeLayout = "2006-01-02T15:04:05"

// ErrParse marks a payload that could not be turned into a MetricRecord:
// neither well-formed XML nor JSON, or a required field missing/non-numeric.
var ErrParse = errors.New("unparsable payload")

// Parse normalizes a raw XML or JSON payload into a canonical MetricRecord.
// Format detection is purely structural: a payload whose first non-space
// byte is '<' is XML, everything else is treated as JSON.
func Parse(raw string) (model.MetricRecord, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return model.MetricRecord{}, fmt.Errorf("%w: empty payload", ErrParse)
	}

	var (
		fields map[string]any
		err    error
	)
	if strings.HasPrefix(trimmed, "<") {
		fields, err = xmlFields(trimmed)
	} else {
		fields, err = jsonFields(trimmed)
	}
	if err != nil {
		return model.MetricRecord{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return fromFields(fields)
}

func jsonFields(s string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func xmlFields(s string) (map[string]any, error) {
	mv, err := mxj.NewMapXml([]byte(s))
	if err != nil {
		return nil, err
	}
	m := map[string]any(mv)
	// The root element name is arbitrary; the fields are its children.
	if len(m) == 1 {
		for _, v := range m {
			if inner, ok := v.(map[string]any); ok {
				return inner, nil
			}
		}
	}
	return m, nil
}

// fromFields applies the same extraction rules to both formats. Only
// machineId and powerGeneration are required; optional numeric fields stay
// nil when absent, status defaults to UNKNOWN, and a malformed timestamp
// degrades to "now" instead of failing the record.
func fromFields(fields map[string]any) (model.MetricRecord, error) {
	deviceID, ok := asString(fields["machineId"])
	if !ok || deviceID == "" {
		return model.MetricRecord{}, fmt.Errorf("%w: missing machineId", ErrParse)
	}
	power, ok := asFloat(fields["powerGeneration"])
	if !ok {
		return model.MetricRecord{}, fmt.Errorf("%w: missing or non-numeric powerGeneration", ErrParse)
	}

	rec := model.MetricRecord{
		DeviceID:        deviceID,
		PowerGeneration: power,
		Status:          "UNKNOWN",
		Voltage:         optFloat(fields, "voltage"),
		Current:         optFloat(fields, "current"),
		Temperature:     optFloat(fields, "temperature"),
		Timestamp:       parseTimestamp(fields["timestamp"]),
	}
	if s, ok := asString(fields["status"]); ok && s != "" {
		rec.Status = s
	}

	for k, v := range fields {
		switch k {
		case "machineId", "powerGeneration", "voltage", "current", "temperature", "status", "timestamp":
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]any)
		}
		rec.Extra[k] = v
	}
	return rec, nil
}

func parseTimestamp(v any) time.Time {
	if s, ok := asString(v); ok {
		if ts, err := time.Parse(TimeLayout, s); err == nil {
			return ts
		}
	}
	slog.Warn("failed to parse timestamp, using current time", "timestamp", v)
	return time.Now()
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func optFloat(fields map[string]any, key string) *float64 {
	v, present := fields[key]
	if !present {
		return nil
	}
	f, ok := asFloat(v)
	if !ok {
		return nil
	}
	return &f
}
