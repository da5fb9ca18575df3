package period

import (
	"fmt"
	"time"

	"github.com/saaga0h/duskd/pkg/config"
)

const day = 24 * time.Hour

// Window is a transition interval expressed as times of day (durations since
// local midnight). Start > End means the window wraps past midnight.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// Contains reports whether tod falls in [Start, End), honoring midnight wrap
func (w Window) Contains(tod time.Duration) bool {
	if w.Start < w.End {
		return tod >= w.Start && tod < w.End
	}
	return tod >= w.Start || tod < w.End
}

// Length returns the window duration
func (w Window) Length() time.Duration {
	return wrap(w.End - w.Start)
}

// Wraps reports whether the window crosses midnight
func (w Window) Wraps() bool {
	return w.Start > w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", FormatTimeOfDay(w.Start), FormatTimeOfDay(w.End))
}

// Schedule holds both transition windows. A nil *Schedule means static mode.
type Schedule struct {
	Sunset  Window
	Sunrise Window
}

// SolarEvents is what geo mode needs from the solar collaborator
type SolarEvents struct {
	Sunset          time.Time
	Sunrise         time.Time
	SunsetTwilight  time.Duration // sunset to civil dusk
	SunriseTwilight time.Duration // civil dawn to sunrise
}

// ComputeSchedule builds the transition windows for the configured mode.
// Geo mode requires solar events; static mode returns a nil schedule.
func ComputeSchedule(cfg *config.Config, solar *SolarEvents) (*Schedule, error) {
	var s Schedule

	switch cfg.Mode {
	case config.ModeStatic:
		return nil, nil

	case config.ModeGeo:
		if solar == nil {
			return nil, fmt.Errorf("geo mode requires solar data")
		}
		if solar.SunsetTwilight <= 0 || solar.SunriseTwilight <= 0 {
			return nil, fmt.Errorf("solar data has no civil twilight (sunset %s, sunrise %s)",
				solar.SunsetTwilight, solar.SunriseTwilight)
		}
		s.Sunset = centered(TimeOfDay(solar.Sunset), 2*solar.SunsetTwilight)
		s.Sunrise = centered(TimeOfDay(solar.Sunrise), 2*solar.SunriseTwilight)

	case config.ModeFinishBy, config.ModeStartAt, config.ModeCenter:
		sunset, err := config.ParseTimeOfDay(cfg.Sunset)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sunset: %w", err)
		}
		sunrise, err := config.ParseTimeOfDay(cfg.Sunrise)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sunrise: %w", err)
		}
		s.Sunset = manualWindow(cfg.Mode, sunset, cfg.TransitionDuration())
		s.Sunrise = manualWindow(cfg.Mode, sunrise, cfg.TransitionDuration())

	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func manualWindow(mode string, event, length time.Duration) Window {
	switch mode {
	case config.ModeFinishBy:
		return Window{Start: wrap(event - length), End: wrap(event)}
	case config.ModeStartAt:
		return Window{Start: wrap(event), End: wrap(event + length)}
	default:
		return centered(event, length)
	}
}

// centered places event at the midpoint of a window of the given length
func centered(event, length time.Duration) Window {
	half := length / 2
	return Window{Start: wrap(event - half), End: wrap(event + length - half)}
}

func (s *Schedule) validate() error {
	if s.Sunset.Start == s.Sunset.End {
		return fmt.Errorf("sunset window %s is empty", s.Sunset)
	}
	if s.Sunrise.Start == s.Sunrise.End {
		return fmt.Errorf("sunrise window %s is empty", s.Sunrise)
	}
	if s.Sunset.Contains(s.Sunrise.Start) || s.Sunrise.Contains(s.Sunset.Start) {
		return fmt.Errorf("sunset window %s overlaps sunrise window %s", s.Sunset, s.Sunrise)
	}
	return nil
}

// Progress returns the eased fraction of w elapsed at tod, clamped to [0,1].
// It is exactly 0 at w.Start and exactly 1 at w.End for any easing curve.
func Progress(tod time.Duration, w Window, easing Bezier) float64 {
	elapsed := wrap(tod - w.Start)
	length := w.Length()
	if elapsed >= length {
		return 1
	}
	return easing.Ease(float64(elapsed) / float64(length))
}

// TimeOfDay returns the time elapsed since midnight in t's location
func TimeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// FormatTimeOfDay renders a time of day as HH:MM:SS
func FormatTimeOfDay(tod time.Duration) string {
	tod = wrap(tod)
	h := tod / time.Hour
	m := (tod % time.Hour) / time.Minute
	sec := (tod % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// wrap reduces d into [0, 24h)
// untilTimeOfDay returns the wall time until the next local occurrence of tod.
// Measured between absolute instants, so a DST shift in between is accounted for.
func untilTimeOfDay(now time.Time, tod time.Duration) time.Duration {
	y, m, d := now.Date()
	at := func(day int) time.Time {
		return time.Date(y, m, day,
			int(tod/time.Hour), int(tod%time.Hour/time.Minute), int(tod%time.Minute/time.Second),
			int(tod%time.Second), now.Location())
	}
	next := at(d)
	if next.Before(now) {
		next = at(d + 1)
	}
	return next.Sub(now)
}

func wrap(d time.Duration) time.Duration {
	d %= day
	if d < 0 {
		d += day
	}
	return d
}
