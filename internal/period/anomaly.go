package period

import "time"

// Clock anomaly thresholds
const (
	ClockNoiseTolerance = 5 * time.Second
	GapThreshold        = 30 * time.Second
	ResumeThreshold     = 3 * time.Minute
)

// Anomaly classifies an unexpected wall-clock movement between two checks
type Anomaly int

const (
	AnomalyNone Anomaly = iota
	// AnomalyClockAdjusted is a backwards jump beyond sync noise (DST, manual change)
	AnomalyClockAdjusted
	// AnomalyGap is a forward jump long enough to suggest a short suspend or stall
	AnomalyGap
	// AnomalyResume is a forward jump long enough to be a resume from suspend
	AnomalyResume
)

func (a Anomaly) String() string {
	switch a {
	case AnomalyNone:
		return "none"
	case AnomalyClockAdjusted:
		return "clock_adjusted"
	case AnomalyGap:
		return "gap"
	case AnomalyResume:
		return "resume"
	default:
		return "unknown"
	}
}

// ForcesRecompute reports whether the cached period must be discarded
func (a Anomaly) ForcesRecompute() bool {
	return a != AnomalyNone
}

// DetectAnomaly compares two wall-clock readings. Monotonic readings are
// stripped: the monotonic clock stops during suspend and ignores clock changes,
// which are exactly the movements this is meant to see.
func DetectAnomaly(last, now time.Time) (Anomaly, time.Duration) {
	delta := now.Round(0).Sub(last.Round(0))

	switch {
	case delta < -ClockNoiseTolerance:
		return AnomalyClockAdjusted, delta
	case delta >= ResumeThreshold:
		return AnomalyResume, delta
	case delta >= GapThreshold:
		return AnomalyGap, delta
	default:
		return AnomalyNone, delta
	}
}
