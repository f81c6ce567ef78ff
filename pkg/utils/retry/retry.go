package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry is returned by a function passed to Blocking to ask for another attempt.
var ErrRetry = errors.New("retry")

// ErrGaveUp is returned by a Backoff made by Limited when its budget is used up.
var ErrGaveUp = errors.New("retry: gave up")

// Backoff is a (blocking) function returns when to retry.
//
// # Args
//
// - context: context. If context is canceled, Backoff should return ctx.Err().
//
// # Returns
//
// - error: nil if retry, non-nil if not.
type Backoff func(context.Context) error

// StaticBackoff returns a Backoff function that waits for a fixed interval.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff returns a Backoff function that waits with exponential backoff.
//
// For N-th call, it waits for `initialInterval * r^N` or context to be done.
func ExponentialBackoff(initialInterval time.Duration, r float64) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(int64(float64(interval) * r))
			return nil
		}
	}
}

// Limited wraps b so that only the first `times` waits are allowed.
//
// The first call returns immediately (it is the first attempt, not a retry),
// and the call after `times` retries returns ErrGaveUp.
func Limited(times int, b Backoff) Backoff {
	calls := 0
	return func(ctx context.Context) error {
		calls += 1
		if calls == 1 {
			return ctx.Err()
		}
		if times < calls-1 {
			return ErrGaveUp
		}
		return b(ctx)
	}
}

// Blocking calls f until it returns nil or non-retry error.
//
// # Args
//
// - ctx: context
//
// - b: backoff function. It is called before each call of f, including the first.
//
// - f: function to be called. If f returns ErrRetry, Blocking calls f again after backoff.
//
// # Returns
//
// - T: last return value of f
//
// - error: error returned by f, or by b when it stops retrying.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	last := *new(T)
	for {
		if err := b(ctx); err != nil {
			return last, err
		}

		var err error
		last, err = f()
		if err == nil {
			return last, nil
		}
		if errors.Is(err, ErrRetry) {
			continue
		}
		return last, err
	}
}
