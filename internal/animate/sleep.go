package animate

import (
	"context"
	"runtime"
	"time"
)

// spinWindow is the tail of each tick spent spin-waiting instead of on a timer
const spinWindow = time.Millisecond

// PrecisionSleep waits for d using a timer for all but the last millisecond,
// then spins. The spin trades a little CPU for sub-millisecond tick accuracy.
// It returns early when ctx is cancelled.
func PrecisionSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)

	if coarse := d - spinWindow; coarse > 0 {
		timer := time.NewTimer(coarse)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		runtime.Gosched()
	}
}
