package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quanla93/solar-monitoring-system/internal/model"
	"github.com/quanla93/solar-monitoring-system/internal/observability"
	"github.com/quanla93/solar-monitoring-system/internal/parser"
	"github.com/quanla93/solar-monitoring-system/internal/resilience"
	"github.com/quanla93/solar-monitoring-system/internal/store"
)

// StagingSource is the batch input boundary: read unprocessed rows in
// creation order, flip the processed flag after a successful dual-write.
type StagingSource interface {
	FetchUnprocessed(ctx context.Context) ([]store.StagingRecord, error)
	MarkProcessed(ctx context.Context, id uint) error
}

// CacheWriter is the latest-value destination of a dual-write.
type CacheWriter interface {
	Put(ctx context.Context, deviceID string, rec model.MetricRecord) error
}

// HistoryAppender is the durable destination of a dual-write.
type HistoryAppender interface {
	Append(ctx context.Context, rec model.MetricRecord) (model.MetricRecord, error)
}

// FailureHandler receives records that could not be fully processed.
// The default implementation only logs; a dead-letter queue or alert sink
// can be substituted without touching callers.
type FailureHandler interface {
	HandleFailure(ctx context.Context, reason, payload string)
}

// LogFailureHandler is the default dead-letter sink: structured log plus a
// failure counter.
type LogFailureHandler struct{}

func (LogFailureHandler) HandleFailure(_ context.Context, reason, payload string) {
	slog.Error("handling pipeline failure", "reason", reason, "payload", payload)
	observability.RecordFailures.Inc()
}

// Orchestrator drives both the batch sync path and the streaming path,
// holding its collaborators as capability interfaces.
type Orchestrator struct {
	staging  StagingSource
	cache    CacheWriter
	realtime CacheWriter
	history  HistoryAppender
	failures FailureHandler
	breaker  *resilience.Breaker
}

type Option func(*Orchestrator)

// WithRealtimeCache adds the hot projection written on the streaming path.
func WithRealtimeCache(w CacheWriter) Option {
	return func(o *Orchestrator) { o.realtime = w }
}

func WithFailureHandler(h FailureHandler) Option {
	return func(o *Orchestrator) { o.failures = h }
}

func WithBreaker(b *resilience.Breaker) Option {
	return func(o *Orchestrator) { o.breaker = b }
}

func New(staging StagingSource, cache CacheWriter, history HistoryAppender, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		staging:  staging,
		cache:    cache,
		history:  history,
		failures: LogFailureHandler{},
		breaker:  resilience.NewBreaker("batch-pipeline", 5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessDataPipeline runs one batch pass: fetch all unprocessed staging
// records and, for each independently, parse, dual-write and mark processed.
// One bad payload never blocks the rest of the batch. The whole run sits
// behind a circuit breaker; when the breaker is open a fallback summary is
// returned without touching the staging store. The run reports SUCCESS as
// long as the outer fetch succeeded, even if individual records failed —
// ProcessedCount is the only per-record signal.
func (o *Orchestrator) ProcessDataPipeline(ctx context.Context) model.SyncRun {
	syncID := uuid.New().String()
	started := time.Now().UTC()
	slog.Info("starting data processing pipeline", "sync_id", syncID)

	var processed int
	err := o.breaker.Execute(func() error {
		n, err := o.runBatch(ctx)
		processed = n
		return err
	})

	switch {
	case err == nil:
		observability.PipelineRuns.WithLabelValues(model.StatusSuccess).Inc()
		slog.Info("data processing pipeline completed", "sync_id", syncID, "processed", processed)
		return model.SyncRun{
			SyncID:         syncID,
			Status:         model.StatusSuccess,
			Message:        "data processing completed successfully",
			ProcessedCount: processed,
			StartedAt:      started,
		}
	case resilience.IsOpen(err):
		observability.PipelineRuns.WithLabelValues(model.StatusUnavailable).Inc()
		return model.SyncRun{
			SyncID:    "FALLBACK",
			Status:    model.StatusUnavailable,
			Message:   "service temporarily unavailable: " + err.Error(),
			StartedAt: started,
		}
	default:
		observability.PipelineRuns.WithLabelValues(model.StatusFailed).Inc()
		slog.Error("data processing pipeline failed", "sync_id", syncID, "error", err)
		return model.SyncRun{
			SyncID:    syncID,
			Status:    model.StatusFailed,
			Message:   "data processing failed: " + err.Error(),
			StartedAt: started,
		}
	}
}

func (o *Orchestrator) runBatch(ctx context.Context) (int, error) {
	rows, err := o.staging.FetchUnprocessed(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, row := range rows {
		if err := o.processRecord(ctx, row.Content, false); err != nil {
			slog.Error("failed to process staging record", "id", row.ID, "error", err)
			o.failures.HandleFailure(ctx, err.Error(), row.Content)
			continue
		}
		if err := o.staging.MarkProcessed(ctx, row.ID); err != nil {
			slog.Error("failed to mark staging record processed", "id", row.ID, "error", err)
			o.failures.HandleFailure(ctx, err.Error(), row.Content)
			continue
		}
		processed++
		observability.RecordsProcessed.Inc()
	}
	return processed, nil
}

// ProcessRealTimeData handles one streaming message. Errors never propagate
// to the bus consumer: a permanently malformed message is routed to the
// failure handler and dropped rather than redelivered forever.
func (o *Orchestrator) ProcessRealTimeData(ctx context.Context, raw string) {
	observability.RealtimeMessages.Inc()
	if err := o.processRecord(ctx, raw, true); err != nil {
		slog.Error("failed to process real-time data", "error", err)
		o.failures.HandleFailure(ctx, err.Error(), raw)
		return
	}
	slog.Debug("processed real-time data")
}

// processRecord is the shared parse → dual-write sequence. Write order is
// cache first, then history, preserved from the original system: a cache
// save failure fails the record before the authoritative store is attempted.
func (o *Orchestrator) processRecord(ctx context.Context, raw string, includeRealtime bool) error {
	rec, err := parser.Parse(raw)
	if err != nil {
		return err
	}
	if err := o.cache.Put(ctx, rec.DeviceID, rec); err != nil {
		return err
	}
	if includeRealtime && o.realtime != nil {
		if err := o.realtime.Put(ctx, rec.DeviceID, rec); err != nil {
			return err
		}
	}
	if _, err := o.history.Append(ctx, rec); err != nil {
		return err
	}
	return nil
}
