package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuncalc_Helsinki(t *testing.T) {
	eet := time.FixedZone("EET", 2*60*60)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, eet)

	times, err := NewSuncalc().Times(60.1695, 24.9354, now)
	require.NoError(t, err)

	assert.Equal(t, 10, times.Sunrise.Day())
	assert.Equal(t, 10, times.Sunset.Day())
	assert.True(t, times.Sunrise.Hour() >= 6 && times.Sunrise.Hour() <= 8, "sunrise at %s", times.Sunrise)
	assert.True(t, times.Sunset.Hour() >= 17 && times.Sunset.Hour() <= 19, "sunset at %s", times.Sunset)

	events := times.Events()
	assert.Greater(t, events.SunsetTwilight, 20*time.Minute)
	assert.Less(t, events.SunsetTwilight, 80*time.Minute)
	assert.Greater(t, events.SunriseTwilight, 20*time.Minute)
	assert.Less(t, events.SunriseTwilight, 80*time.Minute)
}

func TestSuncalc_PolarDayIsUnusable(t *testing.T) {
	now := time.Date(2026, time.June, 21, 12, 0, 0, 0, time.UTC)

	_, err := NewSuncalc().Times(78.2232, 15.6267, now) // Longyearbyen
	assert.Error(t, err)
}

func TestTimes_Events(t *testing.T) {
	base := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	times := Times{
		Dawn:    base.Add(5*time.Hour + 40*time.Minute),
		Sunrise: base.Add(6*time.Hour + 15*time.Minute),
		Sunset:  base.Add(18*time.Hour + 5*time.Minute),
		Dusk:    base.Add(18*time.Hour + 38*time.Minute),
	}

	events := times.Events()
	assert.Equal(t, 35*time.Minute, events.SunriseTwilight)
	assert.Equal(t, 33*time.Minute, events.SunsetTwilight)
	assert.Equal(t, times.Sunset, events.Sunset)
}
