package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quanla93/solar-monitoring-system/internal/model"
)

type countingRunner struct{ calls atomic.Int32 }

func (r *countingRunner) ProcessDataPipeline(context.Context) model.SyncRun {
	r.calls.Add(1)
	return model.SyncRun{Status: model.StatusSuccess}
}

type countingPurger struct {
	calls   atomic.Int32
	cutoffs chan time.Time
}

func (p *countingPurger) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.calls.Add(1)
	select {
	case p.cutoffs <- cutoff:
	default:
	}
	return 0, nil
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := New(&countingRunner{}, &countingPurger{cutoffs: make(chan time.Time, 1)}, 30)
	if err := s.Start("not a spec", "@daily"); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestScheduledJobsFire(t *testing.T) {
	runner := &countingRunner{}
	purger := &countingPurger{cutoffs: make(chan time.Time, 1)}
	s := New(runner, purger, 7)
	if err := s.Start("@every 50ms", "@every 50ms"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runner.calls.Load() == 0 || purger.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("jobs did not fire: sync=%d purge=%d", runner.calls.Load(), purger.calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPurgeCutoffUsesRetention(t *testing.T) {
	purger := &countingPurger{cutoffs: make(chan time.Time, 1)}
	s := New(&countingRunner{}, purger, 7)

	s.runPurge()

	cutoff := <-purger.cutoffs
	want := time.Now().UTC().Add(-7 * 24 * time.Hour)
	if diff := cutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expected cutoff near %v, got %v", want, cutoff)
	}
}
