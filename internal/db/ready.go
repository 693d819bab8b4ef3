package db

import (
	"context"
	"fmt"
	"time"
)

// PollReady calls ping every interval until it succeeds or timeout passes.
// The timeout error carries the last ping failure.
func PollReady(ctx context.Context, timeout, interval time.Duration, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last error
	for {
		if last = ping(ctx); last == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: not ready after %s: %w", ErrUnavailable, timeout, last)
		case <-ticker.C:
		}
	}
}
