package signals

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Relay forwards one source of events until ctx is cancelled
type Relay interface {
	Name() string
	Run(ctx context.Context, out chan<- Message) error
}

// Run starts every relay and waits for them. The first relay error cancels the rest.
func Run(ctx context.Context, out chan<- Message, relays ...Relay) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range relays {
		g.Go(func() error {
			if err := r.Run(ctx, out); err != nil {
				return fmt.Errorf("relay %s: %w", r.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
