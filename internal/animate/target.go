package animate

import (
	"time"

	"github.com/saaga0h/duskd/internal/period"
)

// TargetResolver supplies the animation endpoint on every tick
type TargetResolver interface {
	// Resolve returns the endpoint to interpolate toward at now
	Resolve(now time.Time) period.Values
	// Final returns the endpoint captured when the animation was set up
	Final() period.Values
}

// LiveSource re-derives the period during an animation. *period.Engine implements it.
type LiveSource interface {
	CurrentPeriod(now time.Time) period.Period
	Interpolate(p period.Period) period.Values
}

// FixedTarget animates toward constant values
type FixedTarget struct {
	Values period.Values
}

// Fixed creates a constant target
func Fixed(v period.Values) *FixedTarget {
	return &FixedTarget{Values: v}
}

func (f *FixedTarget) Resolve(time.Time) period.Values { return f.Values }
func (f *FixedTarget) Final() period.Values            { return f.Values }

type trackingState int

const (
	stateTracking trackingState = iota
	stateFrozen
)

// TrackingTarget follows a transition that is in progress while the animation runs.
// It honors the live value only while the live period is still the captured
// transition kind; once the kind changes it freezes on the first captured value
// for the rest of the animation, so it cannot overshoot into the next period.
type TrackingTarget struct {
	source   LiveSource
	captured period.Kind
	first    period.Values
	state    trackingState
}

// NewTrackingTarget captures p (which should be Sunset or Sunrise) and its values
func NewTrackingTarget(source LiveSource, p period.Period) *TrackingTarget {
	return &TrackingTarget{
		source:   source,
		captured: p.Kind(),
		first:    source.Interpolate(p),
		state:    stateTracking,
	}
}

func (t *TrackingTarget) Resolve(now time.Time) period.Values {
	if t.state == stateFrozen {
		return t.first
	}

	live := t.source.CurrentPeriod(now)
	if live.Kind() != t.captured {
		t.state = stateFrozen
		return t.first
	}
	return t.source.Interpolate(live)
}

func (t *TrackingTarget) Final() period.Values { return t.first }

// Frozen reports whether the target stopped tracking the live period
func (t *TrackingTarget) Frozen() bool { return t.state == stateFrozen }

// TargetFor picks the resolver for animating into the period current at now:
// tracking inside a transition, fixed otherwise.
func TargetFor(source LiveSource, now time.Time) (TargetResolver, period.Period) {
	p := source.CurrentPeriod(now)
	if p.Kind().Transitioning() {
		return NewTrackingTarget(source, p), p
	}
	return Fixed(source.Interpolate(p)), p
}
