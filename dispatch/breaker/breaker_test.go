package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDownstream = errors.New("downstream unavailable")

func fail() (any, error)    { return nil, errDownstream }
func succeed() (any, error) { return "ok", nil }

func tripBreaker(t *testing.T, b *Breaker, failures int) {
	t.Helper()

	for i := 0; i < failures; i++ {
		_, err := b.Execute(fail)
		require.ErrorIs(t, err, errDownstream)
	}
}

func TestNewDefaults(t *testing.T) {
	b := New("test", 0, 0, nil)

	assert.Equal(t, uint32(DefaultThreshold), b.threshold)
	assert.Equal(t, DefaultCooldown, b.cooldown)
	assert.False(t, b.IsOpen())
}

func TestExecutePassesThroughResult(t *testing.T) {
	b := New("test", 3, time.Minute, nil)

	result, err := b.Execute(succeed)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	b := New("test", 3, time.Minute, nil)

	tripBreaker(t, b, 3)
	assert.True(t, b.IsOpen())

	// While open, calls are rejected without running fn.
	ran := false
	_, err := b.Execute(func() (any, error) {
		ran = true

		return nil, nil
	})

	require.ErrorIs(t, err, ErrOpen)
	assert.False(t, ran)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New("test", 3, time.Minute, nil)

	tripBreaker(t, b, 2)

	_, err := b.Execute(succeed)
	require.NoError(t, err)

	// Two more failures must not trip: the streak restarted at zero.
	tripBreaker(t, b, 2)
	assert.False(t, b.IsOpen())

	_, err = b.Execute(fail)
	require.ErrorIs(t, err, errDownstream)
	assert.True(t, b.IsOpen())
}

func TestRejectionsDoNotExtendCooldown(t *testing.T) {
	b := New("test", 2, 300*time.Millisecond, nil)

	tripBreaker(t, b, 2)
	require.True(t, b.IsOpen())

	// Rejected calls while open must not reset the cooldown clock.
	for i := 0; i < 5; i++ {
		_, err := b.Execute(succeed)
		require.ErrorIs(t, err, ErrOpen)
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)

	// Cooldown elapsed: the next call is the recovery probe.
	result, err := b.Execute(succeed)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.False(t, b.IsOpen())
}

func TestProbeFailureReopens(t *testing.T) {
	b := New("test", 2, 50*time.Millisecond, nil)

	tripBreaker(t, b, 2)
	time.Sleep(70 * time.Millisecond)

	// Failed probe reopens immediately, a single failure is enough.
	_, err := b.Execute(fail)
	require.ErrorIs(t, err, errDownstream)
	assert.True(t, b.IsOpen())

	_, err = b.Execute(succeed)
	require.ErrorIs(t, err, ErrOpen)
}

func TestProbeSuccessCloses(t *testing.T) {
	b := New("test", 2, 50*time.Millisecond, nil)

	tripBreaker(t, b, 2)
	time.Sleep(70 * time.Millisecond)

	_, err := b.Execute(succeed)
	require.NoError(t, err)
	assert.False(t, b.IsOpen())

	// Closed again: a single failure must not trip.
	_, err = b.Execute(fail)
	require.ErrorIs(t, err, errDownstream)
	assert.False(t, b.IsOpen())
}

func TestIsOpenFalseAfterCooldown(t *testing.T) {
	b := New("test", 2, 50*time.Millisecond, nil)

	tripBreaker(t, b, 2)
	require.True(t, b.IsOpen())

	time.Sleep(70 * time.Millisecond)

	// The cooldown elapsed, so the breaker no longer rejects outright.
	assert.False(t, b.IsOpen())
}

func TestReset(t *testing.T) {
	b := New("test", 2, time.Hour, nil)

	tripBreaker(t, b, 2)
	require.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())

	// Failure counters restarted from zero.
	_, err := b.Execute(fail)
	require.ErrorIs(t, err, errDownstream)
	assert.False(t, b.IsOpen())

	result, err := b.Execute(succeed)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestResetWhileClosedIsHarmless(t *testing.T) {
	b := New("test", 2, time.Minute, nil)

	b.Reset()
	assert.False(t, b.IsOpen())

	result, err := b.Execute(succeed)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}
