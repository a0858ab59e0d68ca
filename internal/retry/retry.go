// Package retry runs an operation a bounded number of times, pacing the
// attempts with cenkalti/backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrExhausted is returned when every attempt reported not done.
var ErrExhausted = errors.New("retry_exhausted")

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int

	// Delay is the wait before the second attempt.
	Delay time.Duration

	// Multiplier scales the delay after each attempt. Values <= 1 keep it fixed.
	Multiplier float64

	// MaxDelay caps the delay. Zero means uncapped.
	MaxDelay time.Duration
}

// Fixed returns a policy with a constant delay between attempts.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: delay, Multiplier: 1}
}

// Exponential returns a policy that doubles the delay up to maxDelay.
func Exponential(attempts int, delay, maxDelay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: delay, Multiplier: 2, MaxDelay: maxDelay}
}

// Backoff returns the wait before attempt n (1-based; attempt 1 never waits).
func (p Policy) Backoff(n int) time.Duration {
	if n <= 1 || p.Delay <= 0 {
		return 0
	}
	b := p.backOff()
	b.Reset()
	var d time.Duration
	for i := 1; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (p Policy) backOff() backoff.BackOff {
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(p.Delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Delay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	return b
}

// Func is one attempt. Returning done=true stops with success; a non-nil
// error stops immediately and is returned as is.
type Func func(ctx context.Context, attempt int) (done bool, err error)

// notify observes each wait; tests set it.
var notify backoff.Notify

// Do calls fn until it is done, fails, the attempts run out or ctx ends.
func Do(ctx context.Context, p Policy, fn Func) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		done, err := fn(ctx, attempt)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !done {
			return struct{}{}, ErrExhausted
		}
		return struct{}{}, nil
	}, opts...)

	// The last attempt's error comes back still wrapped.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}
