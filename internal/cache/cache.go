package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quanla93/solar-monitoring-system/internal/model"
	"github.com/quanla93/solar-monitoring-system/internal/resilience"
)

const (
	// MetricsPrefix namespaces the primary latest-value view.
	MetricsPrefix = "solar:metrics:"
	// RealtimePrefix namespaces the hot realtime projection.
	RealtimePrefix = "realtime:machine:"

	DefaultTTL  = 24 * time.Hour
	RealtimeTTL = time.Hour

	putRetries = 3
)

// ErrUnavailable signals a transport-level cache failure. Read-side helpers
// swallow it; the save path propagates it so the pipeline can treat the
// record as failed.
var ErrUnavailable = errors.New("cache unavailable")

// Store is a latest-value view of metric records keyed by device id.
// Writes are last-write-wins and reset the TTL. The two projections
// (primary and realtime) are the same store shape with different key
// namespace and TTL policy.
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

// NewMetrics returns the primary projection (24h TTL).
func NewMetrics(rdb *redis.Client) *Store {
	return New(rdb, MetricsPrefix, DefaultTTL)
}

// NewRealtime returns the hot projection (1h TTL).
func NewRealtime(rdb *redis.Client) *Store {
	return New(rdb, RealtimePrefix, RealtimeTTL)
}

func (s *Store) Key(deviceID string) string { return s.prefix + deviceID }

// DeviceIDFromKey strips the namespace prefix from a full cache key.
func (s *Store) DeviceIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, s.prefix) {
		return "", false
	}
	return strings.TrimPrefix(key, s.prefix), true
}

// Put overwrites the stored record for deviceID unconditionally and resets
// the TTL. Transient transport errors are retried; the final error
// propagates so the caller decides whether the record failed.
func (s *Store) Put(ctx context.Context, deviceID string, rec model.MetricRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: encode record for %s: %w", deviceID, err)
	}
	key := s.Key(deviceID)
	err = resilience.Retry("cache-store", putRetries, func() error {
		return s.rdb.Set(ctx, key, b, s.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	slog.Debug("cache put", "key", key, "ttl", s.ttl)
	return nil
}

// Get returns the stored record or nil when the key is absent. Only
// transport failures surface, as ErrUnavailable.
func (s *Store) Get(ctx context.Context, deviceID string) (*model.MetricRecord, error) {
	b, err := s.rdb.Get(ctx, s.Key(deviceID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, s.Key(deviceID), err)
	}
	var rec model.MetricRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("cache: decode record for %s: %w", deviceID, err)
	}
	return &rec, nil
}

// Exists is advisory: any failure degrades to false instead of propagating.
func (s *Store) Exists(ctx context.Context, deviceID string) bool {
	n, err := s.rdb.Exists(ctx, s.Key(deviceID)).Result()
	if err != nil {
		slog.Error("cache exists check failed", "device_id", deviceID, "error", err)
		return false
	}
	return n > 0
}

// Delete is advisory: failures are logged and swallowed so an eviction
// problem never aborts a dual-write.
func (s *Store) Delete(ctx context.Context, deviceID string) {
	if err := s.rdb.Del(ctx, s.Key(deviceID)).Err(); err != nil {
		slog.Error("cache delete failed", "device_id", deviceID, "error", err)
	}
}
