package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quanla93/solar-monitoring-system/internal/model"
)

// BatchRunner triggers one batch pipeline pass.
type BatchRunner interface {
	ProcessDataPipeline(ctx context.Context) model.SyncRun
}

// Purger removes history records older than a cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler drives the periodic batch sync and the age-based history purge.
type Scheduler struct {
	cron      *cron.Cron
	runner    BatchRunner
	purger    Purger
	retention time.Duration
}

func New(runner BatchRunner, purger Purger, retentionDays int) *Scheduler {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Scheduler{
		cron:      cron.New(),
		runner:    runner,
		purger:    purger,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Start registers the two jobs and starts the cron loop. Specs use cron
// syntax or the @every / @daily shorthands.
func (s *Scheduler) Start(syncSpec, purgeSpec string) error {
	if _, err := s.cron.AddFunc(syncSpec, s.runSync); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(purgeSpec, s.runPurge); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("scheduler started", "sync", syncSpec, "purge", purgeSpec, "retention", s.retention)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runSync() {
	run := s.runner.ProcessDataPipeline(context.Background())
	slog.Info("scheduled sync completed", "sync_id", run.SyncID, "status", run.Status, "processed", run.ProcessedCount)
}

func (s *Scheduler) runPurge() {
	cutoff := time.Now().UTC().Add(-s.retention)
	n, err := s.purger.PurgeBefore(context.Background(), cutoff)
	if err != nil {
		slog.Error("scheduled purge failed", "cutoff", cutoff, "error", err)
		return
	}
	slog.Info("scheduled purge completed", "cutoff", cutoff, "deleted", n)
}
