package animate

import (
	"math"
	"time"
)

// Pacing constants
const (
	PacingBuffer  = 2 * time.Millisecond
	PacingCeiling = 100 * time.Millisecond
	pacingStart   = 16 * time.Millisecond
	minSmoothing  = 50 * time.Millisecond
	maxSmoothing  = 500 * time.Millisecond
	// maxRate caps how fast the interval may change, in seconds per second
	maxRate = 0.5
)

// TargetInterval is the tick interval a measured apply cost calls for
func TargetInterval(cost, floor, ceiling time.Duration) time.Duration {
	target := time.Duration(1.5*float64(cost)) + PacingBuffer
	if target < floor {
		return floor
	}
	if target > ceiling {
		return ceiling
	}
	return target
}

// Pacer adapts the animation tick interval to the backend's measured latency.
// The interval follows its target with a critically damped spring, so it
// settles without oscillating and never overshoots the target.
type Pacer struct {
	floor     time.Duration
	ceiling   time.Duration
	smoothing float64 // seconds

	current  float64 // seconds
	target   float64 // seconds
	velocity float64 // seconds per second
}

// NewPacer creates a pacer for an animation of the given total duration.
// Short animations get a short smoothing constant so they adapt within their lifetime.
func NewPacer(floor, duration time.Duration) *Pacer {
	ceiling := PacingCeiling
	if floor > ceiling {
		ceiling = floor
	}

	smoothing := duration / 10
	if smoothing < minSmoothing {
		smoothing = minSmoothing
	}
	if smoothing > maxSmoothing {
		smoothing = maxSmoothing
	}

	start := clampDuration(pacingStart, floor, ceiling)
	return &Pacer{
		floor:     floor,
		ceiling:   ceiling,
		smoothing: smoothing.Seconds(),
		current:   start.Seconds(),
		target:    start.Seconds(),
	}
}

// Update feeds one measured apply cost. dt is the time since the previous update.
// It returns the interval to wait before the next tick.
func (p *Pacer) Update(cost, dt time.Duration) time.Duration {
	p.target = TargetInterval(cost, p.floor, p.ceiling).Seconds()

	step := dt.Seconds()
	if step < 1e-4 {
		step = 1e-4
	}

	omega := 2 / p.smoothing
	x := omega * step
	decay := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	change := p.current - p.target
	maxChange := maxRate * p.smoothing
	if change > maxChange {
		change = maxChange
	} else if change < -maxChange {
		change = -maxChange
	}
	goal := p.current - change

	temp := (p.velocity + omega*change) * step
	p.velocity = (p.velocity - omega*temp) * decay
	next := goal + (change+temp)*decay

	if (p.target-p.current > 0) == (next > p.target) {
		next = p.target
		p.velocity = 0
	}

	p.current = clampSeconds(next, p.floor, p.ceiling)
	return p.Interval()
}

// Interval returns the current tick interval
func (p *Pacer) Interval() time.Duration {
	return seconds(p.current)
}

// Target returns the interval the pacer is converging to
func (p *Pacer) Target() time.Duration {
	return seconds(p.target)
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func clampSeconds(v float64, lo, hi time.Duration) float64 {
	if v < lo.Seconds() {
		return lo.Seconds()
	}
	if v > hi.Seconds() {
		return hi.Seconds()
	}
	return v
}
