// Package animate drives smooth display transitions.
//
// An animation is a bounded loop of apply calls run on the caller's goroutine.
// Nothing here starts goroutines, so the caller stays the only writer to the display.
package animate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/duskd/internal/period"
)

// Applier is the display write the animator drives. backend.Backend implements it.
type Applier interface {
	Apply(ctx context.Context, temperature int, gamma float64) error
}

// Request describes one animation
type Request struct {
	Start    period.Values
	Target   TargetResolver
	Duration time.Duration
	// Silent lowers lifecycle logging to debug (used for the shutdown fade)
	Silent bool
	// Label names the animation in logs
	Label string
}

// Result summarises a finished animation
type Result struct {
	Ticks     int
	Failures  int
	Cancelled bool
	Final     period.Values
	LastErr   error
}

// Option configures an Animator
type Option func(*Animator)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Animator) {
		a.now = now
	}
}

// WithSleeper overrides the inter-tick sleep. Intended for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(a *Animator) {
		a.sleep = sleep
	}
}

// WithTickObserver registers a callback receiving each apply cost and the paced interval
func WithTickObserver(fn func(cost, interval time.Duration)) Option {
	return func(a *Animator) {
		a.observe = fn
	}
}

// Animator interpolates between display values over time
type Animator struct {
	applier Applier
	easing  period.Bezier
	floor   time.Duration
	logger  *slog.Logger

	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration)
	observe func(cost, interval time.Duration)
}

// NewAnimator creates an animator. floor is the user's minimum tick interval.
func NewAnimator(applier Applier, easing period.Bezier, floor time.Duration, logger *slog.Logger, opts ...Option) *Animator {
	a := &Animator{
		applier: applier,
		easing:  easing,
		floor:   floor,
		logger:  logger,
		now:     time.Now,
		sleep:   PrecisionSleep,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute runs the interpolation loop until the duration elapses or ctx is cancelled.
// Individual apply failures are logged and counted; the loop carries on with the next tick.
func (a *Animator) Execute(ctx context.Context, req Request) (Result, error) {
	if req.Duration <= 0 {
		return Result{}, fmt.Errorf("animation duration must be positive, got %s", req.Duration)
	}
	if req.Target == nil {
		return Result{}, errors.New("animation has no target")
	}

	res := Result{Final: req.Target.Final()}
	pacer := NewPacer(a.floor, req.Duration)
	log := a.lifecycleLog(req.Silent)

	log("Animation started",
		"label", req.Label,
		"from", req.Start.String(),
		"to", res.Final.String(),
		"duration_ms", req.Duration.Milliseconds())

	start := a.now()
	last := start
	for {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		now := a.now()
		elapsed := now.Sub(start)
		if elapsed >= req.Duration {
			break
		}

		eased := a.easing.Ease(float64(elapsed) / float64(req.Duration))
		v := period.Lerp(req.Start, req.Target.Resolve(now), eased)

		err := a.applier.Apply(ctx, v.Temperature, v.Gamma)
		applied := a.now()
		cost := applied.Sub(now)
		res.Ticks++

		if err != nil {
			if ctx.Err() != nil {
				res.Cancelled = true
				break
			}
			res.Failures++
			res.LastErr = err
			a.logger.Warn("Animation tick failed",
				"label", req.Label,
				"temperature", v.Temperature,
				"gamma", v.Gamma,
				"error", err)
		}

		interval := pacer.Update(cost, applied.Sub(last))
		last = applied
		if a.observe != nil {
			a.observe(cost, interval)
		}

		a.sleep(ctx, interval)
	}

	log("Animation finished",
		"label", req.Label,
		"ticks", res.Ticks,
		"failures", res.Failures,
		"cancelled", res.Cancelled,
		"interval_ms", float64(pacer.Interval().Microseconds())/1000)

	return res, nil
}

// Run executes the animation and then applies the originally captured target once.
// The final apply happens after cancellation too, so the display never rests on
// an intermediate value; it uses a context detached from ctx's cancellation.
func (a *Animator) Run(ctx context.Context, req Request) (Result, error) {
	res, err := a.Execute(ctx, req)
	if err != nil {
		return res, err
	}

	applyCtx := ctx
	if ctx.Err() != nil {
		applyCtx = context.WithoutCancel(ctx)
	}
	if err := a.applier.Apply(applyCtx, res.Final.Temperature, res.Final.Gamma); err != nil {
		return res, fmt.Errorf("failed to apply final animation values: %w", err)
	}
	return res, nil
}

func (a *Animator) lifecycleLog(silent bool) func(msg string, args ...any) {
	if silent {
		return a.logger.Debug
	}
	return a.logger.Info
}
