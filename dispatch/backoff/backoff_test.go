package backoff

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponential(t *testing.T) {
	tests := []struct {
		name    string
		base    time.Duration
		attempt int
		want    time.Duration
	}{
		{name: "first attempt", base: time.Second, attempt: 0, want: time.Second},
		{name: "second attempt doubles", base: time.Second, attempt: 1, want: 2 * time.Second},
		{name: "third attempt quadruples", base: time.Second, attempt: 2, want: 4 * time.Second},
		{name: "sub-second base", base: 50 * time.Millisecond, attempt: 3, want: 400 * time.Millisecond},
		{name: "negative attempt treated as zero", base: time.Second, attempt: -3, want: time.Second},
		{name: "zero base", base: 0, attempt: 5, want: 0},
		{name: "negative base", base: -time.Second, attempt: 2, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Exponential(tt.base, tt.attempt))
		})
	}
}

func TestExponentialOverflow(t *testing.T) {
	// Huge exponents saturate instead of wrapping around.
	assert.Equal(t, time.Duration(math.MaxInt64), Exponential(time.Hour, 1000))
	assert.Equal(t, time.Duration(math.MaxInt64), Exponential(time.Duration(math.MaxInt64), 1))
}

func TestFullJitter(t *testing.T) {
	assert.Zero(t, FullJitter(0))
	assert.Zero(t, FullJitter(-time.Second))

	for i := 0; i < 100; i++ {
		jittered := FullJitter(time.Second)
		assert.GreaterOrEqual(t, jittered, time.Duration(0))
		assert.Less(t, jittered, time.Second)
	}
}

func TestExponentialWithJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		jittered := ExponentialWithJitter(time.Second, 2)
		assert.GreaterOrEqual(t, jittered, time.Duration(0))
		assert.Less(t, jittered, 4*time.Second)
	}
}

func TestWaitContext(t *testing.T) {
	t.Run("waits the full duration", func(t *testing.T) {
		start := time.Now()

		err := WaitContext(context.Background(), 30*time.Millisecond)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("returns immediately on non-positive duration", func(t *testing.T) {
		start := time.Now()

		require.NoError(t, WaitContext(context.Background(), 0))
		require.NoError(t, WaitContext(context.Background(), -time.Second))
		assert.Less(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("aborts when already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := WaitContext(ctx, time.Hour)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("aborts mid-wait on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		start := time.Now()

		err := WaitContext(ctx, time.Hour)
		require.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), time.Second)
	})
}
