package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saaga0h/duskd/internal/animate"
	"github.com/saaga0h/duskd/internal/backend"
	"github.com/saaga0h/duskd/internal/period"
	"github.com/saaga0h/duskd/internal/signals"
	"github.com/saaga0h/duskd/pkg/config"
)

func (d *Daemon) startup(ctx context.Context) error {
	now := d.now()
	target, p := animate.TargetFor(d.engine, now)

	if d.smooth() {
		res, err := d.animator.Run(ctx, animate.Request{
			Start:    d.baseline(ctx),
			Target:   target,
			Duration: d.cfg.StartupDuration(),
			Label:    "startup",
		})
		if _, fatal := d.checkAnimation("startup", res, err); fatal != nil {
			return fatal
		}
	}

	values := target.Final()
	if err := d.backend.ApplyStartup(ctx, p, values); err != nil {
		// Nothing is tracked yet, so the first tick retries
		return d.classify("startup", err)
	}
	d.commit(p, values, "startup")

	d.logger.Info("Initial state applied", "period", p.String(), "values", values.String())
	return nil
}

// baseline is where the startup animation begins: the last values this
// daemon applied before a restart, or the day values on a cold start.
func (d *Daemon) baseline(ctx context.Context) period.Values {
	if d.store != nil {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		snap, ok, err := d.store.Load(ctx)
		if err != nil {
			d.logger.Warn("Failed to load last applied state", "error", err)
		}
		if ok {
			d.logger.Info("Starting from last applied values",
				"values", snap.Values.String(),
				"period", snap.Period,
				"at", snap.At.Format(time.RFC3339))
			return snap.Values
		}
	}
	return d.engine.Interpolate(period.Day{})
}

func (d *Daemon) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		stop, err := d.drain(ctx)
		if stop || err != nil {
			return err
		}

		if d.skipTick {
			d.skipTick = false
		} else if err := d.tick(ctx); err != nil {
			return err
		}

		stop, err = d.wait(ctx, d.nextWait())
		if stop || err != nil {
			return err
		}
	}
}

// drain handles every queued message without blocking
func (d *Daemon) drain(ctx context.Context) (bool, error) {
	for {
		select {
		case m, ok := <-d.messages:
			if !ok {
				return true, nil
			}
			if stop, err := d.handle(ctx, m); stop || err != nil {
				return stop, err
			}
		default:
			return false, nil
		}
	}
}

func (d *Daemon) handle(ctx context.Context, m signals.Message) (bool, error) {
	d.logger.Debug("Handling message", "message", m.String())

	switch m := m.(type) {
	case signals.Shutdown:
		d.logger.Info("Shutdown requested")
		return true, nil

	case signals.Reload:
		d.reload()

	case signals.Sleep:
		if m.Resuming {
			d.logger.Info("System resumed, reloading")
			d.reload()
			d.forceRecompute = true
		} else {
			d.logger.Info("System going to sleep, skipping tick")
			d.skipTick = true
		}

	case signals.TestMode:
		next, err := d.testMode(ctx, m)
		if err != nil {
			return true, err
		}
		if next != nil {
			return d.handle(ctx, next)
		}
	}
	return false, nil
}

// reload swaps in a freshly loaded config. A bad config keeps the current one.
func (d *Daemon) reload() {
	if d.loader == nil {
		d.logger.Warn("Reload requested but no configuration loader is set")
		return
	}

	cfg, err := d.loader.Load()
	if err != nil {
		d.logger.Error("Failed to reload configuration, keeping current", "error", err)
		return
	}

	now := d.now()
	engine, day, err := d.buildEngine(cfg, now)
	if err != nil {
		d.logger.Error("Failed to reload configuration, keeping current", "error", err)
		return
	}
	d.setEngine(engine, day)

	p := engine.CurrentPeriod(now)
	v := engine.Interpolate(p)
	if !d.hasApplied || v != d.applied {
		d.reloadNeeded = true
	}

	d.logger.Info("Configuration reloaded",
		"period", p.String(),
		"values", v.String(),
		"reapply", d.reloadNeeded)
}

func (d *Daemon) tick(ctx context.Context) error {
	now := d.now()
	anomaly, delta := period.AnomalyNone, time.Duration(0)
	if !d.expected.IsZero() {
		anomaly, delta = period.DetectAnomaly(d.expected, now)
	}
	d.expected = time.Time{}

	force := d.forceRecompute || anomaly.ForcesRecompute()
	d.forceRecompute = false
	if anomaly != period.AnomalyNone {
		d.logger.Info("Time anomaly detected, recomputing",
			"anomaly", anomaly.String(),
			"delta", delta.Round(time.Second).String())
		if d.metrics != nil {
			d.metrics.Anomaly(anomaly.String())
		}
	}

	if d.cfg.Mode == config.ModeGeo && (force || localDate(now) != d.solarDay) {
		d.refreshSolar(now)
	}

	if d.reloadNeeded {
		d.reloadNeeded = false
		return d.transitionTo(ctx, now, "reload")
	}

	p := d.engine.CurrentPeriod(now)
	prev := d.current
	if force {
		// Never trust the cached period across a clock jump
		prev = nil
	}

	update := period.ShouldUpdate(prev, p)
	if !update.NeedsApply() {
		return nil
	}

	if update == period.UpdateUnexpectedJump && prev != nil {
		d.logger.Warn("Unexpected period change, snapping",
			"from", prev.String(),
			"to", p.String())
	} else {
		d.logger.Debug("Period update", "update", update.String(), "period", p.String())
	}

	v := d.engine.Interpolate(p)
	if err := d.apply(ctx, v); err != nil {
		return d.classify(update.String(), err)
	}
	d.commit(p, v, update.String())
	return nil
}

// refreshSolar recomputes the geo schedule for now's local day
func (d *Daemon) refreshSolar(now time.Time) {
	engine, day, err := d.buildEngine(d.cfg, now)
	if err != nil {
		d.logger.Warn("Failed to refresh solar schedule, keeping previous", "error", err)
		d.solarDay = localDate(now)
		return
	}
	d.setEngine(engine, day)
}

// transitionTo moves the display from the values actually applied to the
// period current at now, animated when smoothing is available.
func (d *Daemon) transitionTo(ctx context.Context, now time.Time, label string) error {
	target, p := animate.TargetFor(d.engine, now)

	if d.smooth() && d.hasApplied {
		res, err := d.animator.Run(ctx, animate.Request{
			Start:    d.applied,
			Target:   target,
			Duration: d.cfg.StartupDuration(),
			Label:    label,
		})
		ok, fatal := d.checkAnimation(label, res, err)
		if fatal != nil {
			return fatal
		}
		if !ok {
			d.reloadNeeded = true
			return nil
		}
		d.commit(p, res.Final, label)
		return nil
	}

	v := target.Final()
	if err := d.apply(ctx, v); err != nil {
		d.reloadNeeded = true
		return d.classify(label, err)
	}
	d.commit(p, v, label)
	return nil
}

func (d *Daemon) nextWait() time.Duration {
	now := d.now()
	wait := d.engine.TimeUntilNextEvent(now, d.engine.CurrentPeriod(now))

	if d.retry || d.reloadNeeded {
		wait = min(wait, d.cfg.UpdateInterval())
	}
	if d.cfg.Mode == config.ModeGeo {
		wait = min(wait, untilMidnight(now)+time.Second)
	}
	return wait
}

// wait blocks for total in chunks, polling hot-plug after each chunk.
// A message ends the wait early so the loop re-evaluates immediately. So does
// a wall clock that moved differently than the chunk timer; the next tick
// then sees the anomaly through d.expected.
func (d *Daemon) wait(ctx context.Context, total time.Duration) (bool, error) {
	d.logger.Debug("Waiting", "duration", total.String())

	for remaining := total; remaining > 0; {
		chunk := min(remaining, d.waitChunk)
		expected := d.now().Round(0).Add(chunk)

		select {
		case <-ctx.Done():
			return true, nil
		case m, ok := <-d.messages:
			if !ok {
				return true, nil
			}
			return d.handle(ctx, m)
		case <-d.after(chunk):
		}
		remaining -= chunk

		if err := d.pollHotplug(ctx); err != nil {
			return true, err
		}

		if anomaly, _ := period.DetectAnomaly(expected, d.now()); anomaly.ForcesRecompute() {
			d.expected = expected
			return false, nil
		}
	}

	d.expected = d.now()
	return false, nil
}

// pollHotplug returns only fatal errors
func (d *Daemon) pollHotplug(ctx context.Context) error {
	err := d.backend.PollHotplug(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, backend.ErrUnreachable) {
		return fmt.Errorf("backend %s: %w", d.backend.Name(), err)
	}
	d.logger.Warn("Hot-plug poll failed", "backend", d.backend.Name(), "error", err)
	return nil
}
