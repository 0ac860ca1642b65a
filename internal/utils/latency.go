package utils

import (
	"context"
	"time"
)

// SimulateLatency blocks for d, returning early with the context error if ctx
// is cancelled first. A non-positive d only checks the context.
func SimulateLatency(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
