package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/saaga0h/duskd/internal/period"
)

// Breaker wraps a Backend with a circuit breaker. After maxFailures
// consecutive failed writes it opens and every later write fails with
// ErrUnreachable. There is no recovery: the daemon treats it as fatal.
type Breaker struct {
	inner       Backend
	breaker     *gobreaker.CircuitBreaker[struct{}]
	maxFailures int
	logger      *slog.Logger
}

// NewBreaker wraps inner. maxFailures must be at least 1.
func NewBreaker(inner Backend, maxFailures int, logger *slog.Logger) *Breaker {
	b := &Breaker{inner: inner, maxFailures: maxFailures, logger: logger}
	b.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		// Counts are never cleared while closed; a success resets the streak
		Interval: 0,
		Timeout:  24 * time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		IsSuccessful: func(err error) bool {
			// Rejected values and cancelled writes say nothing about the backend's health
			return err == nil ||
				errors.Is(err, ErrOutOfRange) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Backend breaker state changed", "backend", name, "from", from.String(), "to", to.String())
		},
	})
	return b
}

func (b *Breaker) Apply(ctx context.Context, temperature int, gamma float64) error {
	return b.execute(func() error {
		return b.inner.Apply(ctx, temperature, gamma)
	})
}

func (b *Breaker) ApplyStartup(ctx context.Context, p period.Period, v period.Values) error {
	return b.execute(func() error {
		return b.inner.ApplyStartup(ctx, p, v)
	})
}

func (b *Breaker) Name() string { return b.inner.Name() }

func (b *Breaker) Cleanup(debug bool) { b.inner.Cleanup(debug) }

// PollHotplug bypasses the breaker: a successful poll must not reset the
// streak of failed writes. Once the breaker is open it fails like a write.
func (b *Breaker) PollHotplug(ctx context.Context) error {
	if b.Open() {
		return fmt.Errorf("%w: %s failed %d consecutive writes", ErrUnreachable, b.inner.Name(), b.maxFailures)
	}
	return b.inner.PollHotplug(ctx)
}

func (b *Breaker) SupportsSmoothing() bool { return b.inner.SupportsSmoothing() }

// Open reports whether the breaker has tripped
func (b *Breaker) Open() bool {
	return b.breaker.State() == gobreaker.StateOpen
}

func (b *Breaker) execute(fn func() error) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %s failed %d consecutive writes", ErrUnreachable, b.inner.Name(), b.maxFailures)
	case b.Open():
		// This failure tripped the breaker
		return fmt.Errorf("%w: %s failed %d consecutive writes: %w", ErrUnreachable, b.inner.Name(), b.maxFailures, err)
	}
	return err
}
