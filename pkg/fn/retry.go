package fn

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy is an explicit exponential-backoff policy. The delay before
// retry n (1-based) is BaseDelay * Multiplier^(n-1), capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultRetry is the provider transport policy.
var DefaultRetry = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	Multiplier:  2,
	MaxDelay:    10 * time.Second,
	Jitter:      true,
}

// Backoff returns the un-jittered delay before the given retry (1-based).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < retry; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

func (p RetryPolicy) sleepFor(retry int) time.Duration {
	d := p.Backoff(retry)
	if p.Jitter && d > 0 {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
		if p.MaxDelay > 0 && d > p.MaxDelay {
			d = p.MaxDelay
		}
	}
	return d
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Retry stops immediately and
// returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Retry calls f up to MaxAttempts times, sleeping per the policy between
// attempts. The context is checked before each sleep.
func Retry[T any](ctx context.Context, p RetryPolicy, f func(context.Context) Result[T]) Result[T] {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var result Result[T]
	for attempt := 1; attempt <= attempts; attempt++ {
		result = f(ctx)
		if result.IsOk() {
			return result
		}
		if IsPermanent(result.err) {
			var pe *permanentError
			errors.As(result.err, &pe)
			return Err[T](pe.err)
		}
		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return Err[T](ctx.Err())
		}

		timer := time.NewTimer(p.sleepFor(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return Err[T](ctx.Err())
		case <-timer.C:
		}
	}
	return result
}
