package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saaga0h/duskd/internal/animate"
	"github.com/saaga0h/duskd/internal/backend"
	"github.com/saaga0h/duskd/internal/period"
	"github.com/saaga0h/duskd/internal/state"
)

// storeTimeout bounds the Redis write after each apply
const storeTimeout = 500 * time.Millisecond

// apply is a single direct backend write
func (d *Daemon) apply(ctx context.Context, v period.Values) error {
	start := time.Now()
	err := d.backend.Apply(ctx, v.Temperature, v.Gamma)
	if d.metrics != nil {
		d.metrics.ApplyLatency(time.Since(start))
		if err != nil {
			d.metrics.ApplyFailed(d.backend.Name(), 1)
		}
	}
	return err
}

// classify turns a failed write into a fatal error, or logs it and returns nil
func (d *Daemon) classify(op string, err error) error {
	if errors.Is(err, backend.ErrUnreachable) {
		return fmt.Errorf("backend %s: %w", d.backend.Name(), err)
	}

	d.retry = true
	d.logger.Warn("Display update failed, retrying next tick",
		"op", op,
		"backend", d.backend.Name(),
		"error", err)
	return nil
}

// checkAnimation reports whether the final values reached the display, and
// a fatal error if the backend became unreachable during the animation.
func (d *Daemon) checkAnimation(label string, res animate.Result, err error) (bool, error) {
	if res.Failures > 0 && d.metrics != nil {
		d.metrics.ApplyFailed(d.backend.Name(), res.Failures)
	}
	if errors.Is(res.LastErr, backend.ErrUnreachable) {
		return false, fmt.Errorf("backend %s: %w", d.backend.Name(), res.LastErr)
	}
	if err != nil {
		return false, d.classify(label, err)
	}
	return true, nil
}

// commit records that p's values v are on the display
func (d *Daemon) commit(p period.Period, v period.Values, reason string) {
	d.current = p
	d.retry = false
	d.markApplied(p.Kind().String(), p, v, reason)
}

// markApplied tracks v as the display's values without touching the tracked period
func (d *Daemon) markApplied(label string, p period.Period, v period.Values, reason string) {
	d.applied = v
	d.hasApplied = true
	now := d.now()

	d.statusMu.Lock()
	d.status.Period = label
	d.status.Temperature = v.Temperature
	d.status.Gamma = v.Gamma
	d.statusMu.Unlock()

	var progress *float64
	if p != nil {
		if pr, ok := period.ProgressOf(p); ok {
			progress = &pr
		}
	}

	if d.metrics != nil {
		d.metrics.Applied(v.Temperature, v.Gamma)
		value := 1.0
		if progress != nil {
			value = *progress
		}
		d.metrics.Period(label, value)
	}

	if d.history != nil {
		d.history.Record(state.Record{
			At:          now,
			Period:      label,
			Progress:    progress,
			Temperature: v.Temperature,
			Gamma:       v.Gamma,
			Reason:      reason,
			Backend:     d.backend.Name(),
		})
	}

	if d.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := d.store.Save(ctx, state.Snapshot{Values: v, Period: label, At: now}); err != nil {
			d.logger.Warn("Failed to save last applied state", "error", err)
		}
	}
}

func (d *Daemon) shutdown(ctx context.Context, cause error) {
	if d.cleaned {
		return
	}
	d.cleaned = true

	switch {
	case errors.Is(cause, backend.ErrUnreachable):
		d.logger.Error("Backend unreachable, skipping neutral restore", "backend", d.backend.Name())

	case d.smooth() && !d.cfg.InstantShutdown && d.hasApplied:
		_, err := d.animator.Run(ctx, animate.Request{
			Start:    d.applied,
			Target:   animate.Fixed(period.Neutral),
			Duration: d.cfg.ShutdownDuration(),
			Silent:   true,
			Label:    "shutdown",
		})
		if err != nil {
			d.logger.Warn("Failed to restore neutral values", "error", err)
		} else {
			d.markApplied("neutral", nil, period.Neutral, "shutdown")
		}

	default:
		if err := d.apply(ctx, period.Neutral); err != nil {
			d.logger.Warn("Failed to restore neutral values", "error", err)
		} else {
			d.markApplied("neutral", nil, period.Neutral, "shutdown")
		}
	}

	d.backend.Cleanup(d.cfg.Debug())
	d.logger.Info("duskd stopped", "backend", d.backend.Name())
}
