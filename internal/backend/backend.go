// Package backend writes color temperature and gamma to a display.
//
// The orchestrator goroutine is the only caller of a Backend; implementations
// need not be safe for concurrent Apply calls.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/saaga0h/duskd/internal/period"
	"github.com/saaga0h/duskd/pkg/config"
)

var (
	// ErrUnreachable marks a backend that stopped responding for good. It is fatal.
	ErrUnreachable = errors.New("display backend unreachable")

	// ErrOutOfRange rejects values outside the supported temperature or gamma range
	ErrOutOfRange = errors.New("display value out of range")
)

// Backend is a display color backend
type Backend interface {
	// Apply sets temperature (Kelvin) and gamma (percent)
	Apply(ctx context.Context, temperature int, gamma float64) error

	// ApplyStartup applies v and announces the period being entered
	ApplyStartup(ctx context.Context, p period.Period, v period.Values) error

	// Name identifies the backend in logs and errors
	Name() string

	// Cleanup releases backend resources. Safe to call more than once.
	Cleanup(debug bool)

	// PollHotplug checks for display changes and reapplies state if needed
	PollHotplug(ctx context.Context) error

	// SupportsSmoothing reports whether animated transitions make sense
	SupportsSmoothing() bool
}

// CheckRange validates values against the supported limits
func CheckRange(temperature int, gamma float64) error {
	if temperature < config.MinTemperature || temperature > config.MaxTemperature {
		return fmt.Errorf("%w: temperature %dK not in [%d, %d]",
			ErrOutOfRange, temperature, config.MinTemperature, config.MaxTemperature)
	}
	if gamma < config.MinGamma || gamma > config.MaxGamma {
		return fmt.Errorf("%w: gamma %.1f%% not in [%.0f, %.0f]",
			ErrOutOfRange, gamma, float64(config.MinGamma), float64(config.MaxGamma))
	}
	return nil
}
