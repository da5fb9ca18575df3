package period

import (
	"math"
	"time"

	"github.com/saaga0h/duskd/pkg/config"
)

// Forever is returned as the wait in static mode; only external messages wake the daemon.
const Forever = time.Duration(math.MaxInt64)

// CurrentPeriod classifies now against the schedule. A nil schedule is static mode.
func CurrentPeriod(now time.Time, s *Schedule, easing Bezier) Period {
	if s == nil {
		return Static{}
	}

	tod := TimeOfDay(now)
	if s.Sunset.Contains(tod) {
		return Sunset{Progress: Progress(tod, s.Sunset, easing)}
	}
	if s.Sunrise.Contains(tod) {
		return Sunrise{Progress: Progress(tod, s.Sunrise, easing)}
	}

	// Night runs from the end of sunset to the start of sunrise
	nightStart, nightEnd := s.Sunset.End, s.Sunrise.Start
	if nightStart <= nightEnd {
		// Night does not cross midnight (e.g. sunset window ending at 01:00)
		if tod >= nightStart && tod < nightEnd {
			return Night{}
		}
		return Day{}
	}

	// Night crosses midnight
	if tod >= nightStart || tod < nightEnd {
		return Night{}
	}
	return Day{}
}

// Interpolate returns the display values for a period
func Interpolate(p Period, cfg *config.Config) Values {
	dayV := Values{Temperature: cfg.DayTemp, Gamma: cfg.DayGamma}
	nightV := Values{Temperature: cfg.NightTemp, Gamma: cfg.NightGamma}

	switch v := p.(type) {
	case Day:
		return dayV
	case Night:
		return nightV
	case Static:
		return Values{Temperature: cfg.StaticTemp, Gamma: cfg.StaticGamma}
	case Sunset:
		return Lerp(dayV, nightV, v.Progress)
	case Sunrise:
		return Lerp(nightV, dayV, v.Progress)
	default:
		return dayV
	}
}

// Lerp blends from a to b. t=0 returns a exactly and t=1 returns b exactly.
func Lerp(a, b Values, t float64) Values {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return Values{
		Temperature: int(math.Round(float64(a.Temperature) + float64(b.Temperature-a.Temperature)*t)),
		Gamma:       a.Gamma + (b.Gamma-a.Gamma)*t,
	}
}

// Engine binds a config snapshot to its computed schedule
type Engine struct {
	cfg      *config.Config
	schedule *Schedule
	easing   Bezier
}

// NewEngine creates an engine. schedule is nil in static mode.
func NewEngine(cfg *config.Config, schedule *Schedule) *Engine {
	return &Engine{
		cfg:      cfg,
		schedule: schedule,
		easing:   BezierFromConfig(cfg),
	}
}

// Config returns the snapshot the engine was built from
func (e *Engine) Config() *config.Config { return e.cfg }

// Schedule returns the transition windows, nil in static mode
func (e *Engine) Schedule() *Schedule { return e.schedule }

// Easing returns the configured easing curve
func (e *Engine) Easing() Bezier { return e.easing }

// CurrentPeriod classifies now
func (e *Engine) CurrentPeriod(now time.Time) Period {
	return CurrentPeriod(now, e.schedule, e.easing)
}

// Interpolate returns the values for p under this engine's config
func (e *Engine) Interpolate(p Period) Values {
	return Interpolate(p, e.cfg)
}

// TimeUntilTransitionEnd returns the time left in the current window, zero when stable
func (e *Engine) TimeUntilTransitionEnd(now time.Time, p Period) time.Duration {
	if e.schedule == nil {
		return 0
	}
	switch p.Kind() {
	case KindSunset:
		return untilTimeOfDay(now, e.schedule.Sunset.End)
	case KindSunrise:
		return untilTimeOfDay(now, e.schedule.Sunrise.End)
	default:
		return 0
	}
}

// TimeUntilNextEvent returns how long the daemon may sleep before p needs re-evaluation.
// Stable periods wait for the window of the next period in the cycle
// Day → Sunset → Night → Sunrise → Day, never simply the nearest window.
func (e *Engine) TimeUntilNextEvent(now time.Time, p Period) time.Duration {
	if e.schedule == nil || p.Kind() == KindStatic {
		return Forever
	}

	var wait time.Duration
	switch p.Kind() {
	case KindSunset, KindSunrise:
		wait = min(e.cfg.UpdateInterval(), e.TimeUntilTransitionEnd(now, p))
	case KindDay:
		wait = untilTimeOfDay(now, e.schedule.Sunset.Start)
	case KindNight:
		wait = untilTimeOfDay(now, e.schedule.Sunrise.Start)
	}

	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}
