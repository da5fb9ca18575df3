// Package daemon runs the display color loop.
//
// A Daemon decides when the display needs new values, applies them directly
// or through the animator, and reacts to messages from the signal relays.
// Run is the only caller of the backend; nothing else writes to the display.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/duskd/internal/animate"
	"github.com/saaga0h/duskd/internal/backend"
	"github.com/saaga0h/duskd/internal/period"
	"github.com/saaga0h/duskd/internal/signals"
	"github.com/saaga0h/duskd/internal/solar"
	"github.com/saaga0h/duskd/internal/state"
	"github.com/saaga0h/duskd/pkg/config"
	"github.com/saaga0h/duskd/pkg/health"
)

// DefaultWaitChunk bounds each wait between hot-plug polls
const DefaultWaitChunk = 250 * time.Millisecond

// ConfigLoader re-reads configuration on reload. *config.Loader implements it.
type ConfigLoader interface {
	Load() (*config.Config, error)
}

// Store persists the last applied values. *state.RedisStore implements it.
type Store interface {
	Save(ctx context.Context, snap state.Snapshot) error
	Load(ctx context.Context) (state.Snapshot, bool, error)
}

// Recorder receives period history. *state.History implements it.
type Recorder interface {
	Record(r state.Record)
}

// Option configures a Daemon
type Option func(*Daemon)

// WithStore enables the last-applied store used as the restart baseline
func WithStore(s Store) Option {
	return func(d *Daemon) {
		d.store = s
	}
}

// WithHistory enables period history recording
func WithHistory(r Recorder) Option {
	return func(d *Daemon) {
		d.history = r
	}
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *health.Metrics) Option {
	return func(d *Daemon) {
		d.metrics = m
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) {
		d.now = now
	}
}

// WithAfter overrides the timer used between wait chunks. Intended for tests.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(d *Daemon) {
		d.after = after
	}
}

// WithWaitChunk overrides DefaultWaitChunk
func WithWaitChunk(chunk time.Duration) Option {
	return func(d *Daemon) {
		d.waitChunk = chunk
	}
}

// WithAnimatorOptions passes options to every animator the daemon creates
func WithAnimatorOptions(opts ...animate.Option) Option {
	return func(d *Daemon) {
		d.animateOpts = append(d.animateOpts, opts...)
	}
}

// Daemon is the orchestrator
type Daemon struct {
	cfg      *config.Config
	loader   ConfigLoader
	backend  backend.Backend
	solar    solar.Provider
	messages <-chan signals.Message
	logger   *slog.Logger

	store   Store
	history Recorder
	metrics *health.Metrics

	now         func() time.Time
	after       func(time.Duration) <-chan time.Time
	waitChunk   time.Duration
	animateOpts []animate.Option

	engine   *period.Engine
	animator *animate.Animator
	solarDay string // local date the geo schedule was computed for

	// current is the last period successfully applied; nil forces the next tick to apply
	current        period.Period
	applied        period.Values
	hasApplied     bool
	expected       time.Time // when the current wait should have ended; zero when unknown
	reloadNeeded   bool
	forceRecompute bool
	retry          bool
	skipTick       bool
	cleaned        bool

	statusMu sync.Mutex
	status   health.Status
}

// New builds a daemon and its initial schedule. Schedule and solar problems
// are returned as *config.ConfigError.
func New(cfg *config.Config, loader ConfigLoader, b backend.Backend, provider solar.Provider, messages <-chan signals.Message, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	d := &Daemon{
		loader:    loader,
		backend:   b,
		solar:     provider,
		messages:  messages,
		logger:    logger,
		now:       time.Now,
		after:     time.After,
		waitChunk: DefaultWaitChunk,
	}
	for _, opt := range opts {
		opt(d)
	}

	engine, day, err := d.buildEngine(cfg, d.now())
	if err != nil {
		return nil, err
	}
	d.setEngine(engine, day)
	d.status.Backend = b.Name()

	return d, nil
}

// Run applies the initial state, runs the loop until Shutdown, ctx
// cancellation or a fatal backend error, then restores neutral values and
// releases the backend. The returned error is nil on a requested shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("Starting duskd",
		"mode", d.cfg.Mode,
		"backend", d.backend.Name(),
		"smoothing", d.smooth())

	err := d.startup(ctx)
	if err == nil {
		err = d.loop(ctx)
	}

	d.shutdown(context.WithoutCancel(ctx), err)
	return err
}

// Status reports the current state for the health endpoint. Safe for concurrent use.
func (d *Daemon) Status() health.Status {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	return d.status
}

func (d *Daemon) buildEngine(cfg *config.Config, now time.Time) (*period.Engine, string, error) {
	var (
		events *period.SolarEvents
		day    string
	)

	if cfg.Mode == config.ModeGeo {
		if d.solar == nil {
			return nil, "", &config.ConfigError{Field: "mode", Message: "geo mode has no solar provider"}
		}
		times, err := d.solar.Times(cfg.Latitude, cfg.Longitude, now)
		if err != nil {
			return nil, "", &config.ConfigError{Field: "location", Message: err.Error()}
		}
		events = times.Events()
		day = localDate(now)
	}

	schedule, err := period.ComputeSchedule(cfg, events)
	if err != nil {
		return nil, "", &config.ConfigError{Field: "schedule", Message: err.Error()}
	}
	return period.NewEngine(cfg, schedule), day, nil
}

func (d *Daemon) setEngine(engine *period.Engine, day string) {
	d.engine = engine
	d.cfg = engine.Config()
	d.solarDay = day

	opts := append([]animate.Option{animate.WithTickObserver(d.observeTick)}, d.animateOpts...)
	d.animator = animate.NewAnimator(d.backend, engine.Easing(), d.cfg.AdaptiveFloor(), d.logger, opts...)

	if s := engine.Schedule(); s != nil {
		d.logger.Info("Schedule computed",
			"mode", d.cfg.Mode,
			"sunset_window", s.Sunset.String(),
			"sunrise_window", s.Sunrise.String())
	} else {
		d.logger.Info("Static mode, no schedule")
	}
}

func (d *Daemon) smooth() bool {
	return d.cfg.Smoothing && d.backend.SupportsSmoothing()
}

func (d *Daemon) observeTick(cost, interval time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.ApplyLatency(cost)
	d.metrics.Pacing(interval)
}

func (d *Daemon) setTesting(on bool) {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	d.status.TestMode = on
}

func localDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func untilMidnight(now time.Time) time.Duration {
	y, m, day := now.Date()
	return time.Date(y, m, day+1, 0, 0, 0, 0, now.Location()).Sub(now)
}
