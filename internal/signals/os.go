package signals

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// OSRelay maps process signals to messages:
// SIGINT/SIGTERM to Shutdown, SIGHUP to Reload, SIGUSR2 to Sleep.
type OSRelay struct {
	logger *slog.Logger
}

// NewOSRelay creates a relay for process signals
func NewOSRelay(logger *slog.Logger) *OSRelay {
	return &OSRelay{logger: logger}
}

func (r *OSRelay) Name() string { return "os" }

func (r *OSRelay) Run(ctx context.Context, out chan<- Message) error {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigs:
			m := Translate(sig)
			if m == nil {
				continue
			}
			r.logger.Info("Received signal", "signal", sig.String(), "message", m.String())
			if !send(ctx, out, m) {
				return nil
			}
		}
	}
}

// Translate returns the message for sig, or nil when sig is not handled
func Translate(sig os.Signal) Message {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		return Shutdown{}
	case syscall.SIGHUP:
		return Reload{}
	case syscall.SIGUSR2:
		return Sleep{Resuming: false}
	}
	return nil
}
