package signals

import (
	"context"
	"log/slog"
	"time"
)

// Resume detection defaults
const (
	DefaultResumeInterval  = 5 * time.Second
	DefaultResumeThreshold = 30 * time.Second
)

// Reading pairs a wall-clock instant with monotonic time since some origin.
// The monotonic clock stops while the machine is suspended; the wall clock does not.
type Reading struct {
	Wall time.Time
	Mono time.Duration
}

// ResumeWatcher reports a resume from suspend when the wall clock advanced
// noticeably more than the monotonic clock between two polls.
type ResumeWatcher struct {
	interval  time.Duration
	threshold time.Duration
	read      func() Reading
	logger    *slog.Logger

	last *Reading
}

// ResumeOption configures a ResumeWatcher
type ResumeOption func(*ResumeWatcher)

// WithReadings overrides the clock source. Intended for tests.
func WithReadings(read func() Reading) ResumeOption {
	return func(w *ResumeWatcher) {
		w.read = read
	}
}

// WithResumeInterval overrides the poll interval
func WithResumeInterval(d time.Duration) ResumeOption {
	return func(w *ResumeWatcher) {
		w.interval = d
	}
}

// NewResumeWatcher creates a watcher with the default interval and threshold
func NewResumeWatcher(logger *slog.Logger, opts ...ResumeOption) *ResumeWatcher {
	origin := time.Now()
	w := &ResumeWatcher{
		interval:  DefaultResumeInterval,
		threshold: DefaultResumeThreshold,
		logger:    logger,
		read: func() Reading {
			now := time.Now()
			return Reading{Wall: now.Round(0), Mono: now.Sub(origin)}
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *ResumeWatcher) Name() string { return "resume" }

func (w *ResumeWatcher) Run(ctx context.Context, out chan<- Message) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Observe(w.read())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			suspended, resumed := w.Observe(w.read())
			if !resumed {
				continue
			}
			w.logger.Info("Resume from suspend detected", "suspended", suspended.Round(time.Second).String())
			if !send(ctx, out, Sleep{Resuming: true}) {
				return nil
			}
		}
	}
}

// Observe records r and reports how long the machine was suspended since the
// previous reading, and whether that crosses the threshold.
func (w *ResumeWatcher) Observe(r Reading) (time.Duration, bool) {
	prev := w.last
	w.last = &r
	if prev == nil {
		return 0, false
	}

	suspended := r.Wall.Sub(prev.Wall) - (r.Mono - prev.Mono)
	return suspended, suspended > w.threshold
}
