package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quanla93/solar-monitoring-system/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Use a unique in-memory DB per test to avoid cross-test contamination.
	dsn := "file:store_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func openHistoryRepo(t *testing.T) *HistoryRepo {
	t.Helper()
	repo, err := NewHistoryRepo(openTestDB(t))
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func record(deviceID string, ts time.Time, power float64) model.MetricRecord {
	return model.MetricRecord{DeviceID: deviceID, PowerGeneration: power, Status: "UNKNOWN", Timestamp: ts}
}

func TestAppendAssignsID(t *testing.T) {
	repo := openHistoryRepo(t)
	ts := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	saved, err := repo.Append(context.Background(), record("M1", ts, 150.5))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected store-assigned id")
	}
	if !saved.Timestamp.Equal(ts) {
		t.Fatalf("timestamp must be preserved, got %v", saved.Timestamp)
	}
}

func TestAppendDefaultsZeroTimestamp(t *testing.T) {
	repo := openHistoryRepo(t)

	saved, err := repo.Append(context.Background(), model.MetricRecord{DeviceID: "M1", PowerGeneration: 1})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if saved.Timestamp.IsZero() {
		t.Fatalf("expected assigned timestamp")
	}
	if time.Since(saved.Timestamp) > 2*time.Second {
		t.Fatalf("expected timestamp near now, got %v", saved.Timestamp)
	}
}

func TestQueryPaginationNewestFirst(t *testing.T) {
	repo := openHistoryRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if _, err := repo.Append(ctx, record("M1", base.Add(time.Duration(i)*time.Minute), float64(i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	q := HistoryQuery{DeviceID: "M1", Start: base, End: base.Add(time.Hour), Size: 2}
	page0, err := repo.Query(ctx, q)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if page0.Total != 5 {
		t.Fatalf("expected total 5, got %d", page0.Total)
	}
	if len(page0.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page0.Records))
	}
	if page0.Records[0].PowerGeneration != 4 || page0.Records[1].PowerGeneration != 3 {
		t.Fatalf("expected newest first, got %v then %v", page0.Records[0].PowerGeneration, page0.Records[1].PowerGeneration)
	}

	q.Page = 2
	page2, err := repo.Query(ctx, q)
	if err != nil {
		t.Fatalf("query page 2: %v", err)
	}
	if len(page2.Records) != 1 {
		t.Fatalf("expected the oldest record alone, got %d", len(page2.Records))
	}
	if page2.Records[0].PowerGeneration != 0 {
		t.Fatalf("expected oldest record, got %v", page2.Records[0].PowerGeneration)
	}
}

func TestQueryWithoutDeviceFiltersByTimeOnly(t *testing.T) {
	repo := openHistoryRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := repo.Append(ctx, record("M1", base.Add(time.Minute), 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := repo.Append(ctx, record("M2", base.Add(2*time.Minute), 2)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := repo.Append(ctx, record("M1", base.Add(2*time.Hour), 3)); err != nil {
		t.Fatalf("append: %v", err)
	}

	page, err := repo.Query(ctx, HistoryQuery{Start: base, End: base.Add(time.Hour), Size: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Records) != 2 {
		t.Fatalf("expected 2 records in range, got %d", len(page.Records))
	}
}

func TestQueryTimeRangeIsInclusive(t *testing.T) {
	repo := openHistoryRepo(t)
	ctx := context.Background()
	ts := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, err := repo.Append(ctx, record("M1", ts, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	page, err := repo.Query(ctx, HistoryQuery{DeviceID: "M1", Start: ts, End: ts, Size: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Records) != 1 {
		t.Fatalf("boundary record must be included, got %d", len(page.Records))
	}
}

func TestPurgeBeforeIsStrict(t *testing.T) {
	repo := openHistoryRepo(t)
	ctx := context.Background()
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := repo.Append(ctx, record("M1", cutoff.Add(-time.Second), 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := repo.Append(ctx, record("M1", cutoff, 2)); err != nil {
		t.Fatalf("append: %v", err)
	}

	deleted, err := repo.PurgeBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	page, err := repo.Query(ctx, HistoryQuery{DeviceID: "M1", Start: cutoff.Add(-time.Hour), End: cutoff.Add(time.Hour), Size: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Records) != 1 || !page.Records[0].Timestamp.Equal(cutoff) {
		t.Fatalf("record at exactly cutoff must be retained, got %+v", page.Records)
	}
}

func TestAppendRoundTripsExtra(t *testing.T) {
	repo := openHistoryRepo(t)
	rec := record("M1", time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), 1)
	rec.Extra = map[string]any{"inverterId": "inv-9"}

	saved, err := repo.Append(context.Background(), rec)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if saved.Extra["inverterId"] != "inv-9" {
		t.Fatalf("expected extra to survive, got %v", saved.Extra)
	}
}
