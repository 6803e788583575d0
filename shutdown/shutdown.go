// Package shutdown turns termination signals into context cancellation.
package shutdown

import (
	"context"
	"os"
)

// Context returns a context cancelled on the first termination signal or
// when stop is called.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	Notify(ch)
	go func() {
		defer Stop(ch)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
