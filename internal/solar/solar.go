// Package solar derives sunset/sunrise timing for geo mode.
package solar

import (
	"fmt"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/saaga0h/duskd/internal/period"
)

// Times holds the solar events of one local day
type Times struct {
	Dawn    time.Time // civil dawn, sun 6° below the horizon
	Sunrise time.Time
	Sunset  time.Time
	Dusk    time.Time // civil dusk
}

// Events converts solar times into what the period engine consumes
func (t Times) Events() *period.SolarEvents {
	return &period.SolarEvents{
		Sunset:          t.Sunset,
		Sunrise:         t.Sunrise,
		SunsetTwilight:  t.Dusk.Sub(t.Sunset),
		SunriseTwilight: t.Sunrise.Sub(t.Dawn),
	}
}

// Provider computes solar times for a location and day
type Provider interface {
	Times(lat, lon float64, now time.Time) (Times, error)
}

// Suncalc computes solar times with the suncalc algorithm
type Suncalc struct{}

// NewSuncalc creates the default solar provider
func NewSuncalc() *Suncalc {
	return &Suncalc{}
}

// Times returns the events of now's local day, expressed in now's location.
// Polar day and polar night have no usable events and return an error.
func (s *Suncalc) Times(lat, lon float64, now time.Time) (Times, error) {
	// Local noon keeps the calculation on the intended calendar day
	// regardless of the UTC offset.
	noon := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, now.Location())
	times := suncalc.GetTimes(noon, lat, lon)

	t := Times{
		Dawn:    times[suncalc.Dawn].Value.In(now.Location()),
		Sunrise: times[suncalc.Sunrise].Value.In(now.Location()),
		Sunset:  times[suncalc.Sunset].Value.In(now.Location()),
		Dusk:    times[suncalc.Dusk].Value.In(now.Location()),
	}

	if err := t.validate(noon); err != nil {
		return Times{}, fmt.Errorf("no usable solar data at %.4f,%.4f on %s: %w",
			lat, lon, noon.Format("2006-01-02"), err)
	}
	return t, nil
}

func (t Times) validate(noon time.Time) error {
	for name, v := range map[string]time.Time{
		"dawn":    t.Dawn,
		"sunrise": t.Sunrise,
		"sunset":  t.Sunset,
		"dusk":    t.Dusk,
	} {
		if v.IsZero() || v.Sub(noon).Abs() > 36*time.Hour {
			return fmt.Errorf("%s is undefined (polar day or night)", name)
		}
	}

	if !t.Dawn.Before(t.Sunrise) || !t.Sunset.Before(t.Dusk) {
		return fmt.Errorf("civil twilight is undefined")
	}
	return nil
}
