// Package period decides which display state applies at a given instant.
//
// Everything here is pure computation: no I/O, no clocks read internally.
// Callers pass the current time and the schedule; identical inputs always
// give identical outputs.
package period

import "fmt"

// Kind identifies a Period variant
type Kind int

const (
	KindDay Kind = iota
	KindNight
	KindStatic
	KindSunset
	KindSunrise
)

func (k Kind) String() string {
	switch k {
	case KindDay:
		return "day"
	case KindNight:
		return "night"
	case KindStatic:
		return "static"
	case KindSunset:
		return "sunset"
	case KindSunrise:
		return "sunrise"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Transitioning reports whether the kind carries progress
func (k Kind) Transitioning() bool {
	return k == KindSunset || k == KindSunrise
}

// Period is the display state classification. The set of variants is closed:
// Day, Night, Static, Sunset and Sunrise. Only Sunset and Sunrise carry progress.
type Period interface {
	Kind() Kind
	String() string
	sealed()
}

// Day is the stable daytime period
type Day struct{}

// Night is the stable nighttime period
type Night struct{}

// Static is the only period in static mode
type Static struct{}

// Sunset is the day→night transition. Progress is the eased value in [0,1].
type Sunset struct {
	Progress float64
}

// Sunrise is the night→day transition. Progress is the eased value in [0,1].
type Sunrise struct {
	Progress float64
}

func (Day) Kind() Kind     { return KindDay }
func (Night) Kind() Kind   { return KindNight }
func (Static) Kind() Kind  { return KindStatic }
func (Sunset) Kind() Kind  { return KindSunset }
func (Sunrise) Kind() Kind { return KindSunrise }

func (Day) String() string      { return "day" }
func (Night) String() string    { return "night" }
func (Static) String() string   { return "static" }
func (p Sunset) String() string { return fmt.Sprintf("sunset(%.1f%%)", p.Progress*100) }
func (p Sunrise) String() string {
	return fmt.Sprintf("sunrise(%.1f%%)", p.Progress*100)
}

func (Day) sealed()     {}
func (Night) sealed()   {}
func (Static) sealed()  {}
func (Sunset) sealed()  {}
func (Sunrise) sealed() {}

// ProgressOf returns the progress of a transitioning period
func ProgressOf(p Period) (float64, bool) {
	switch v := p.(type) {
	case Sunset:
		return v.Progress, true
	case Sunrise:
		return v.Progress, true
	default:
		return 0, false
	}
}

// Values is a temperature/gamma pair as sent to the display
type Values struct {
	Temperature int     // Kelvin
	Gamma       float64 // percent
}

func (v Values) String() string {
	return fmt.Sprintf("%dK/%.1f%%", v.Temperature, v.Gamma)
}

// Neutral is the display's unmodified state, restored on shutdown
var Neutral = Values{Temperature: 6500, Gamma: 100}
