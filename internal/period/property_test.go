package period

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func propertyParams() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	return parameters
}

// TestProgress_MonotonicProperty checks that progress strictly increases
// across a window for any easing curve, including windows that wrap midnight.
func TestProgress_MonotonicProperty(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("progress is strictly increasing inside the window", prop.ForAll(
		func(startSec, lengthSec, a, b int64, x1, y1, x2, y2 float64) bool {
			w := Window{
				Start: time.Duration(startSec) * time.Second,
				End:   wrap(time.Duration(startSec+lengthSec) * time.Second),
			}
			if a == b {
				return true
			}
			if a > b {
				a, b = b, a
			}
			// Scale offsets into [0, length]
			t1 := w.Start + time.Duration(a*lengthSec/10000)*time.Second
			t2 := w.Start + time.Duration(b*lengthSec/10000)*time.Second
			if t1 == t2 {
				return true
			}

			easing := NewBezier(x1, y1, x2, y2)
			return Progress(wrap(t1), w, easing) < Progress(wrap(t2), w, easing)
		},
		gen.Int64Range(0, 86399),
		gen.Int64Range(300, 7200),
		gen.Int64Range(0, 10000),
		gen.Int64Range(0, 10000),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

// TestCurrentPeriod_InvariantsProperty checks variant closure, progress range,
// determinism and that a window hit never also reports a stable period.
func TestCurrentPeriod_InvariantsProperty(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("current period is well formed and deterministic", prop.ForAll(
		func(sunsetSec, sunriseSec, lengthSec, nowSec int64) bool {
			length := time.Duration(lengthSec) * time.Second
			s := &Schedule{
				Sunset:  centered(time.Duration(sunsetSec)*time.Second, length),
				Sunrise: centered(time.Duration(sunriseSec)*time.Second, length),
			}
			if s.validate() != nil {
				return true
			}

			now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(nowSec) * time.Second)
			easing := NewBezier(0.33, 0.07, 0.33, 1.0)
			p := CurrentPeriod(now, s, easing)
			if p != CurrentPeriod(now, s, easing) {
				return false
			}

			inWindow := s.Sunset.Contains(TimeOfDay(now)) || s.Sunrise.Contains(TimeOfDay(now))
			switch v := p.(type) {
			case Sunset:
				return inWindow && v.Progress >= 0 && v.Progress <= 1
			case Sunrise:
				return inWindow && v.Progress >= 0 && v.Progress <= 1
			case Day, Night:
				return !inWindow
			default:
				return false
			}
		},
		gen.Int64Range(0, 86399),
		gen.Int64Range(0, 86399),
		gen.Int64Range(300, 7200),
		gen.Int64Range(0, 86399),
	))

	properties.TestingRun(t)
}

func TestEase_BoundaryProperty(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("ease pins endpoints for any control points", prop.ForAll(
		func(x1, y1, x2, y2 float64) bool {
			b := NewBezier(x1, y1, x2, y2)
			return b.Ease(0) == 0 && b.Ease(1) == 1
		},
		gen.Float64Range(-1, 2),
		gen.Float64Range(-1, 2),
		gen.Float64Range(-1, 2),
		gen.Float64Range(-1, 2),
	))

	properties.TestingRun(t)
}
