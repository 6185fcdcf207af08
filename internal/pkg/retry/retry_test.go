package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Default().WithoutSleep().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoWrapsLastError(t *testing.T) {
	sentinel := errors.New("still failing")
	calls := 0
	var delays []time.Duration

	p := Default().WithoutSleep()
	p.jitter = func() float64 { return 1 }
	p.OnRetry = func(_ int, d time.Duration, _ error) { delays = append(delays, d) }

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, DefaultAttempts, calls)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}, delays)
}

func TestDelayCapsAtMax(t *testing.T) {
	p := Policy{BaseDelay: time.Second, Factor: 2, MaxDelay: 3 * time.Second}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 3*time.Second, p.Delay(3))
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Policy{Attempts: 3, BaseDelay: time.Hour}.Do(ctx, func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
