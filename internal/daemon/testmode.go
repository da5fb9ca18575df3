package daemon

import (
	"context"

	"github.com/saaga0h/duskd/internal/backend"
	"github.com/saaga0h/duskd/internal/period"
	"github.com/saaga0h/duskd/internal/signals"
)

// testMode shows fixed values until told to leave. Any message other than
// another TestMode ends it; real values are restored first and the message
// is returned for the main loop to handle.
func (d *Daemon) testMode(ctx context.Context, m signals.TestMode) (signals.Message, error) {
	if m.Exit() {
		d.logger.Debug("Not in test mode, ignoring exit")
		return nil, nil
	}

	d.setTesting(true)
	defer d.setTesting(false)

	d.logger.Info("Entering test mode", "temperature", m.Temperature, "gamma", m.Gamma)
	if err := d.showTest(ctx, m); err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, d.restore(ctx)

		case msg, ok := <-d.messages:
			if !ok {
				msg = signals.Shutdown{}
			}
			if next, isTest := msg.(signals.TestMode); isTest {
				if next.Exit() {
					d.logger.Info("Leaving test mode")
					return nil, d.restore(ctx)
				}
				if err := d.showTest(ctx, next); err != nil {
					return nil, err
				}
				continue
			}

			d.logger.Info("Leaving test mode", "interrupted_by", msg.String())
			if err := d.restore(ctx); err != nil {
				return nil, err
			}
			return msg, nil

		case <-d.after(d.waitChunk):
			if err := d.pollHotplug(ctx); err != nil {
				return nil, err
			}
		}
	}
}

// showTest applies test values; only a fatal backend error is returned
func (d *Daemon) showTest(ctx context.Context, m signals.TestMode) error {
	if err := backend.CheckRange(m.Temperature, m.Gamma); err != nil {
		d.logger.Warn("Rejecting test values", "error", err)
		return nil
	}

	v := period.Values{Temperature: m.Temperature, Gamma: m.Gamma}
	if err := d.apply(ctx, v); err != nil {
		return d.classify("test_mode", err)
	}
	d.markApplied("test", nil, v, "test_mode")
	return nil
}

// restore returns the display to the values of the current period
func (d *Daemon) restore(ctx context.Context) error {
	if !d.hasApplied {
		return nil
	}
	return d.transitionTo(ctx, d.now(), "test_mode_exit")
}
