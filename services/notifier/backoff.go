package notifier

import (
	"context"
	"time"
)

// Backoff is the delay after the given number of consecutive failures:
// initial, 2*initial, 4*initial ... capped at max. Zero failures means no delay.
func Backoff(failures int, initial, max time.Duration) time.Duration {
	if failures <= 0 || initial <= 0 {
		return 0
	}
	if max < initial {
		max = initial
	}

	delay := initial
	for i := 1; i < failures; i++ {
		if delay >= max/2 {
			return max
		}
		delay *= 2
	}
	if delay > max {
		return max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
