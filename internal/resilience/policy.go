package resilience

import (
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Retry runs op with bounded exponential backoff. attempts is the number of
// retries after the first call, so attempts=3 means at most four executions.
// Errors wrapped with Permanent stop the loop immediately.
func Retry(name string, attempts uint64, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	return backoff.Retry(func() error {
		err := op()
		if err != nil {
			slog.Debug("operation failed, may retry", "policy", name, "error", err)
		}
		return err
	}, backoff.WithMaxRetries(bo, attempts))
}

// Permanent marks err as terminal so Retry gives up without further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Breaker wraps gobreaker with the narrower error-returning shape the
// pipeline needs. Each breaker is named so policies can be tuned and logged
// independently.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewBreaker(name string, consecutiveFailures uint32, openTimeout time.Duration) *Breaker {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Breaker{cb: cb}
}

func (b *Breaker) Execute(op func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, op()
	})
	return err
}

// IsOpen reports whether err came from the breaker short-circuiting rather
// than from the wrapped operation itself.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
