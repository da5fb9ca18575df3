package animate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/saaga0h/duskd/internal/period"
)

// scriptedSource reports a sunset that ends at switchAt, then night
type scriptedSource struct {
	start    time.Time
	switchAt time.Time
}

func (s *scriptedSource) CurrentPeriod(now time.Time) period.Period {
	if now.Before(s.switchAt) {
		total := s.switchAt.Sub(s.start)
		return period.Sunset{Progress: float64(now.Sub(s.start)) / float64(total)}
	}
	return period.Night{}
}

func (s *scriptedSource) Interpolate(p period.Period) period.Values {
	day := period.Values{Temperature: 6500, Gamma: 100}
	night := period.Values{Temperature: 3300, Gamma: 90}
	if v, ok := p.(period.Sunset); ok {
		return period.Lerp(day, night, v.Progress)
	}
	return night
}

func TestTargetFor_StablePeriodIsFixed(t *testing.T) {
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	src := &scriptedSource{start: start.Add(-time.Hour), switchAt: start.Add(-time.Minute)}

	target, p := TargetFor(src, start)
	assert.Equal(t, period.Night{}, p)
	assert.IsType(t, &FixedTarget{}, target)
	assert.Equal(t, period.Values{Temperature: 3300, Gamma: 90}, target.Final())
}

func TestTrackingTarget_FollowsThenFreezes(t *testing.T) {
	start := time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC)
	src := &scriptedSource{start: start.Add(-10 * time.Minute), switchAt: start.Add(10 * time.Minute)}

	target, p := TargetFor(src, start)
	assert.IsType(t, period.Sunset{}, p)
	tracking, ok := target.(*TrackingTarget)
	assert.True(t, ok)

	first := target.Final()
	assert.Equal(t, 4900, first.Temperature)

	// Still inside sunset: live value honored
	live := target.Resolve(start.Add(5 * time.Minute))
	assert.Less(t, live.Temperature, first.Temperature)
	assert.False(t, tracking.Frozen())

	// Sunset completed: kind changed, freeze on the first captured value
	assert.Equal(t, first, target.Resolve(start.Add(11*time.Minute)))
	assert.True(t, tracking.Frozen())

	// Frozen stays frozen even if the live period looks like sunset again
	assert.Equal(t, first, target.Resolve(start.Add(time.Minute)))
	assert.Equal(t, first, target.Final())
}
