package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Retry("test", 3, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryBounded(t *testing.T) {
	calls := 0
	err := Retry("test", 2, func() error {
		calls++
		return errors.New("still broken")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 3 { // first call plus two retries
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPermanentStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad payload")
	err := Retry("test", 5, func() error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("test", 2, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	}

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if !IsOpen(err) {
		t.Fatalf("expected open-breaker error, got %v", err)
	}
	if called {
		t.Fatalf("operation must not run while breaker is open")
	}
}

func TestIsOpenFalseForOrdinaryErrors(t *testing.T) {
	if IsOpen(errors.New("plain")) {
		t.Fatalf("plain error must not look like an open breaker")
	}
	if IsOpen(nil) {
		t.Fatalf("nil must not look like an open breaker")
	}
}
