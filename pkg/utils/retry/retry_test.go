package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/humanconnectome/hcp-pipelines/pkg/utils/retry"
)

func TestBlocking(t *testing.T) {
	type when struct {
		times    int
		succeeds int // f succeeds on this attempt (1-origin). 0 means never.
		fails    error
	}
	type then struct {
		attempts int
		value    int
		err      error
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			ctx := context.Background()
			attempts := 0
			actual, err := retry.Blocking(
				ctx,
				retry.Limited(when.times, retry.StaticBackoff(time.Millisecond)),
				func() (int, error) {
					attempts += 1
					if when.fails != nil {
						return attempts, when.fails
					}
					if attempts == when.succeeds {
						return attempts, nil
					}
					return attempts, fmt.Errorf("%w: not yet", retry.ErrRetry)
				},
			)
			if !errors.Is(err, then.err) {
				t.Errorf("error: (actual, expected) = (%v, %v)", err, then.err)
			}
			if attempts != then.attempts {
				t.Errorf("attempts: (actual, expected) = (%d, %d)", attempts, then.attempts)
			}
			if actual != then.value {
				t.Errorf("value: (actual, expected) = (%d, %d)", actual, then.value)
			}
		}
	}

	t.Run("when f succeeds at first, it should not retry", theory(
		when{times: 3, succeeds: 1},
		then{attempts: 1, value: 1},
	))
	t.Run("when f succeeds within the budget, it should return its value", theory(
		when{times: 3, succeeds: 3},
		then{attempts: 3, value: 3},
	))
	t.Run("when f never succeeds, it should give up after the budget", theory(
		when{times: 3},
		then{attempts: 4, value: 4, err: retry.ErrGaveUp},
	))
	fatal := errors.New("fatal")
	t.Run("when f returns a non-retry error, it should stop at once", theory(
		when{times: 3, fails: fatal},
		then{attempts: 1, value: 1, err: fatal},
	))

	t.Run("when context is canceled, it should stop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := retry.Blocking(ctx, retry.StaticBackoff(time.Hour), func() (int, error) {
			return 0, retry.ErrRetry
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
