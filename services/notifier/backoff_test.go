package notifier

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		initial  time.Duration
		max      time.Duration
		want     time.Duration
	}{
		{"no failures", 0, 5 * time.Second, 5 * time.Minute, 0},
		{"negative", -3, 5 * time.Second, 5 * time.Minute, 0},
		{"first failure", 1, 5 * time.Second, 5 * time.Minute, 5 * time.Second},
		{"second failure", 2, 5 * time.Second, 5 * time.Minute, 10 * time.Second},
		{"sixth failure", 6, 5 * time.Second, 5 * time.Minute, 160 * time.Second},
		{"capped", 7, 5 * time.Second, 5 * time.Minute, 5 * time.Minute},
		{"cap not a power of two", 3, time.Second, 3 * time.Second, 3 * time.Second},
		{"huge failure count", math.MaxInt32, time.Second, time.Hour, time.Hour},
		{"max below initial", 4, 10 * time.Second, time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Backoff(tt.failures, tt.initial, tt.max))
		})
	}
}

func TestBackoff_NeverDecreasesAndNeverExceedsMax(t *testing.T) {
	initial, max := 3*time.Second, 7*time.Minute

	previous := time.Duration(0)
	for n := 1; n <= 200; n++ {
		delay := Backoff(n, initial, max)
		assert.GreaterOrEqual(t, delay, previous)
		assert.LessOrEqual(t, delay, max)
		previous = delay
	}
	assert.Equal(t, max, previous)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepContext(ctx, 0), context.Canceled)
}
