package session

import (
	"context"
	"time"
)

// waitFor polls cond at the given interval until it returns true or the
// timeout elapses. Returns false on timeout or context cancellation.
// Used wherever an asynchronous subsystem exposes a delayed-initialization
// handle, e.g. the driver page materializing after client construction.
func waitFor(ctx context.Context, timeout, interval time.Duration, cond func() bool) bool {
	if cond() {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
			if cond() {
				return true
			}
		}
	}
}

// runWithTimeout runs fn and gives up after the timeout, leaving fn to
// finish in the background. Used to race a graceful browser close against
// a forced-kill fallback.
func runWithTimeout(timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
