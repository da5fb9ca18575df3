package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectAnomaly(t *testing.T) {
	base := at(10, 0, 0)

	tests := []struct {
		name      string
		last      time.Time
		now       time.Time
		want      Anomaly
		recompute bool
	}{
		{"regular tick", base, base.Add(250 * time.Millisecond), AnomalyNone, false},
		{"sync noise backwards", base.Add(3 * time.Second), base, AnomalyNone, false},
		{"exactly at noise tolerance", base.Add(5 * time.Second), base, AnomalyNone, false},
		{"manual adjustment backwards", base.Add(90 * time.Second), base, AnomalyClockAdjusted, true},
		{"dst fall back", base.Add(time.Hour), base, AnomalyClockAdjusted, true},
		{"short forward gap", base, base.Add(45 * time.Second), AnomalyGap, true},
		{"resume from suspend", base, at(10, 35, 0), AnomalyResume, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := DetectAnomaly(tt.last, tt.now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.recompute, got.ForcesRecompute())
		})
	}
}

func TestDetectAnomaly_IgnoresMonotonicReading(t *testing.T) {
	// time.Now carries a monotonic reading; adding wall time to a stripped copy
	// simulates a suspend where the monotonic clock did not advance.
	last := time.Now()
	now := last.Round(0).Add(35 * time.Minute)

	got, delta := DetectAnomaly(last, now)
	assert.Equal(t, AnomalyResume, got)
	assert.InDelta(t, float64(35*time.Minute), float64(delta), float64(time.Millisecond))
}
