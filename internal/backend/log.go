package backend

import (
	"context"
	"log/slog"
	"sync"

	"github.com/saaga0h/duskd/internal/period"
)

// Log is a dry-run backend that only logs what it would apply
type Log struct {
	logger  *slog.Logger
	last    period.Values
	applies int
	once    sync.Once
}

// NewLog creates a dry-run backend
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Apply(_ context.Context, temperature int, gamma float64) error {
	if err := CheckRange(temperature, gamma); err != nil {
		return err
	}
	l.last = period.Values{Temperature: temperature, Gamma: gamma}
	l.applies++
	l.logger.Debug("Dry run apply", "temperature", temperature, "gamma", gamma)
	return nil
}

func (l *Log) ApplyStartup(ctx context.Context, p period.Period, v period.Values) error {
	l.logger.Info("Dry run entering period", "period", p.String(), "values", v.String())
	return l.Apply(ctx, v.Temperature, v.Gamma)
}

func (l *Log) Name() string { return "log" }

func (l *Log) Cleanup(debug bool) {
	l.once.Do(func() {
		if debug {
			l.logger.Info("Dry run backend cleanup", "applies", l.applies, "last", l.last.String())
		}
	})
}

func (l *Log) PollHotplug(context.Context) error { return nil }

func (l *Log) SupportsSmoothing() bool { return true }

// Last returns the most recently applied values
func (l *Log) Last() period.Values { return l.last }
