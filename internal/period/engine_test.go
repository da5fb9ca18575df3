package period

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/duskd/pkg/config"
)

func newTestEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	s, err := ComputeSchedule(cfg, nil)
	require.NoError(t, err)
	return NewEngine(cfg, s)
}

func TestCurrentPeriod_ScenarioA_FinishBy(t *testing.T) {
	cfg := manualConfig(config.ModeFinishBy, 30)
	e := newTestEngine(t, cfg)

	assert.Equal(t, Window{Start: tod(18, 30, 0), End: tod(19, 0, 0)}, e.Schedule().Sunset)

	p := e.CurrentPeriod(at(18, 45, 0))
	require.IsType(t, Sunset{}, p)
	assert.InDelta(t, e.Easing().Ease(0.5), p.(Sunset).Progress, 1e-12)
}

func TestCurrentPeriod_ScenarioB_CenterStartsAtZero(t *testing.T) {
	cfg := manualConfig(config.ModeCenter, 10)
	e := newTestEngine(t, cfg)

	assert.Equal(t, Window{Start: tod(18, 55, 0), End: tod(19, 5, 0)}, e.Schedule().Sunset)
	assert.Equal(t, Sunset{Progress: 0.0}, e.CurrentPeriod(at(18, 55, 0)))
}

func TestCurrentPeriod_ScenarioC_NightAcrossMidnight(t *testing.T) {
	s := &Schedule{
		Sunset:  Window{Start: tod(18, 30, 0), End: tod(19, 0, 0)},
		Sunrise: Window{Start: tod(6, 0, 0), End: tod(6, 30, 0)},
	}

	tests := []struct {
		at   time.Time
		want Period
	}{
		{at(23, 0, 0), Night{}},
		{at(0, 0, 0), Night{}},
		{at(5, 59, 59), Night{}},
		{at(19, 0, 0), Night{}},
		{at(6, 30, 0), Day{}},
		{at(12, 0, 0), Day{}},
		{at(18, 29, 59), Day{}},
	}

	for _, tt := range tests {
		t.Run(tt.at.Format("15:04:05"), func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentPeriod(tt.at, s, Linear))
		})
	}
}

func TestCurrentPeriod_NightWithinOneDay(t *testing.T) {
	// Shift-worker schedule: sunset ends at 01:00, sunrise starts at 09:00
	s := &Schedule{
		Sunset:  Window{Start: tod(0, 30, 0), End: tod(1, 0, 0)},
		Sunrise: Window{Start: tod(9, 0, 0), End: tod(9, 30, 0)},
	}

	assert.Equal(t, Night{}, CurrentPeriod(at(1, 0, 0), s, Linear))
	assert.Equal(t, Night{}, CurrentPeriod(at(8, 59, 0), s, Linear))
	assert.Equal(t, Day{}, CurrentPeriod(at(23, 0, 0), s, Linear))
	assert.Equal(t, Day{}, CurrentPeriod(at(0, 10, 0), s, Linear))
	assert.IsType(t, Sunset{}, CurrentPeriod(at(0, 45, 0), s, Linear))
}

func TestCurrentPeriod_Static(t *testing.T) {
	assert.Equal(t, Static{}, CurrentPeriod(at(3, 0, 0), nil, Linear))
}

func TestCurrentPeriod_WrappingWindowProgress(t *testing.T) {
	s := &Schedule{
		Sunset:  Window{Start: tod(23, 30, 0), End: tod(0, 30, 0)},
		Sunrise: Window{Start: tod(7, 0, 0), End: tod(7, 30, 0)},
	}

	before := CurrentPeriod(at(23, 45, 0), s, Linear).(Sunset).Progress
	after := CurrentPeriod(at(0, 15, 0), s, Linear).(Sunset).Progress
	assert.InDelta(t, 0.25, before, 1e-9)
	assert.InDelta(t, 0.75, after, 1e-9)
}

func TestInterpolate(t *testing.T) {
	cfg := config.NewConfig()
	cfg.DayTemp, cfg.DayGamma = 6500, 100
	cfg.NightTemp, cfg.NightGamma = 3300, 90
	cfg.StaticTemp, cfg.StaticGamma = 5000, 95

	tests := []struct {
		name string
		p    Period
		want Values
	}{
		{"day", Day{}, Values{6500, 100}},
		{"night", Night{}, Values{3300, 90}},
		{"static", Static{}, Values{5000, 95}},
		{"sunset start", Sunset{Progress: 0}, Values{6500, 100}},
		{"sunset half", Sunset{Progress: 0.5}, Values{4900, 95}},
		{"sunset end", Sunset{Progress: 1}, Values{3300, 90}},
		{"sunrise start", Sunrise{Progress: 0}, Values{3300, 90}},
		{"sunrise quarter", Sunrise{Progress: 0.25}, Values{4100, 92.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Interpolate(tt.p, cfg)
			assert.Equal(t, tt.want.Temperature, got.Temperature)
			assert.InDelta(t, tt.want.Gamma, got.Gamma, 1e-9)
		})
	}
}

func TestTimeUntilNextEvent(t *testing.T) {
	cfg := manualConfig(config.ModeFinishBy, 30)
	cfg.UpdateIntervalSec = 60
	e := newTestEngine(t, cfg)

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"day waits for sunset window", at(12, 0, 0), 6*time.Hour + 30*time.Minute},
		{"day after sunrise skips sunrise window", at(6, 0, 0), 12*time.Hour + 30*time.Minute},
		{"night before midnight", at(23, 0, 0), 6*time.Hour + 30*time.Minute},
		{"night after midnight", at(5, 0, 0), 30 * time.Minute},
		{"transition uses update interval", at(18, 45, 0), time.Minute},
		{"transition near end uses remaining", at(18, 59, 30), 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := e.CurrentPeriod(tt.now)
			assert.Equal(t, tt.want, e.TimeUntilNextEvent(tt.now, p))
		})
	}
}

func TestTimeUntilNextEvent_Static(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Mode = config.ModeStatic
	e := newTestEngine(t, cfg)

	assert.Equal(t, Forever, e.TimeUntilNextEvent(at(12, 0, 0), Static{}))
	assert.Zero(t, e.TimeUntilTransitionEnd(at(12, 0, 0), Static{}))
}

func TestTimeUntilTransitionEnd(t *testing.T) {
	cfg := manualConfig(config.ModeStartAt, 30)
	e := newTestEngine(t, cfg)

	now := at(6, 10, 0)
	p := e.CurrentPeriod(now)
	require.IsType(t, Sunrise{}, p)
	assert.Equal(t, 20*time.Minute, e.TimeUntilTransitionEnd(now, p))
	assert.Zero(t, e.TimeUntilTransitionEnd(at(12, 0, 0), Day{}))
}

func TestTimeUntilNextEvent_DSTShift(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	cfg := manualConfig(config.ModeFinishBy, 30)
	cfg.Sunrise = "06:30"
	e := newTestEngine(t, cfg)

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"spring forward", time.Date(2026, time.March, 7, 23, 0, 0, 0, loc), 6 * time.Hour},
		{"fall back", time.Date(2026, time.October, 31, 23, 0, 0, 0, loc), 8 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := e.CurrentPeriod(tt.now)
			require.Equal(t, Night{}, p)

			wait := e.TimeUntilNextEvent(tt.now, p)
			assert.Equal(t, tt.want, wait)

			// waking after the wait lands at the start of the sunrise window
			wake := tt.now.Add(wait)
			assert.Equal(t, 6, wake.Hour())
			assert.Equal(t, 0, wake.Minute())
			assert.Equal(t, Sunrise{Progress: 0}, e.CurrentPeriod(wake))
		})
	}
}

func TestTimeUntilTransitionEnd_DSTShift(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 01:00-03:00 local on the spring-forward night is one hour of wall time
	cfg := manualConfig(config.ModeStartAt, 120)
	cfg.Sunrise = "01:00"
	e := newTestEngine(t, cfg)

	now := time.Date(2026, time.March, 8, 1, 30, 0, 0, loc)
	p := e.CurrentPeriod(now)
	require.IsType(t, Sunrise{}, p)
	assert.Equal(t, 30*time.Minute, e.TimeUntilTransitionEnd(now, p))
}

func TestShouldUpdate(t *testing.T) {
	tests := []struct {
		name string
		prev Period
		next Period
		want Update
	}{
		{"day steady", Day{}, Day{}, UpdateNone},
		{"static steady", Static{}, Static{}, UpdateNone},
		{"sunset same progress", Sunset{0.4}, Sunset{0.4}, UpdateNone},
		{"sunset begins", Day{}, Sunset{0.01}, UpdateTransitionStarted},
		{"sunrise begins", Night{}, Sunrise{0}, UpdateTransitionStarted},
		{"sunset advances", Sunset{0.4}, Sunset{0.5}, UpdateTransitionProgress},
		{"sunset completes", Sunset{0.99}, Night{}, UpdateTransitionCompleted},
		{"sunrise completes", Sunrise{0.99}, Day{}, UpdateTransitionCompleted},
		{"day to night", Day{}, Night{}, UpdateUnexpectedJump},
		{"day to sunrise", Day{}, Sunrise{0.5}, UpdateUnexpectedJump},
		{"sunset to day", Sunset{0.5}, Day{}, UpdateUnexpectedJump},
		{"sunset to sunrise", Sunset{0.5}, Sunrise{0.5}, UpdateUnexpectedJump},
		{"static to day", Static{}, Day{}, UpdateUnexpectedJump},
		{"unknown previous", nil, Day{}, UpdateUnexpectedJump},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldUpdate(tt.prev, tt.next)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != UpdateNone, got.NeedsApply())
		})
	}
}
