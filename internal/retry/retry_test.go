package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordWaits(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	prev := notify
	notify = func(_ error, d time.Duration) { waits = append(waits, d) }
	t.Cleanup(func() { notify = prev })
	return &waits
}

func TestDoStopsOnFirstSuccess(t *testing.T) {
	waits := recordWaits(t)
	calls := 0
	started := time.Now()
	err := Do(context.Background(), Fixed(3, 20*time.Millisecond), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return attempt == 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{20 * time.Millisecond}, *waits)
	assert.GreaterOrEqual(t, time.Since(started), 20*time.Millisecond)
}

func TestDoExhausts(t *testing.T) {
	waits := recordWaits(t)
	calls := 0
	err := Do(context.Background(), Fixed(3, 10*time.Millisecond), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, calls)
	assert.Len(t, *waits, 2)
}

func TestDoReturnsPermanentError(t *testing.T) {
	recordWaits(t)
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), Fixed(5, time.Millisecond), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Fixed(3, time.Hour), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		cancel()
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestZeroAttemptsStillCallsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExponentialBackoff(t *testing.T) {
	p := Exponential(6, 100*time.Millisecond, 500*time.Millisecond)
	assert.Equal(t, time.Duration(0), p.Backoff(1))
	assert.Equal(t, 100*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(4))
	assert.Equal(t, 500*time.Millisecond, p.Backoff(5))
	assert.Equal(t, 500*time.Millisecond, p.Backoff(6))
}

func TestFixedBackoff(t *testing.T) {
	p := Fixed(4, 50*time.Millisecond)
	assert.Equal(t, time.Duration(0), p.Backoff(1))
	assert.Equal(t, 50*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 50*time.Millisecond, p.Backoff(4))
	assert.Equal(t, time.Duration(0), Fixed(3, 0).Backoff(3))
}

func TestDoPermanentErrorOnLastAttempt(t *testing.T) {
	boom := errors.New("boom")
	err := Do(context.Background(), Fixed(2, time.Millisecond), func(ctx context.Context, attempt int) (bool, error) {
		if attempt == 2 {
			return false, boom
		}
		return false, nil
	})
	assert.Equal(t, boom, err)
}
