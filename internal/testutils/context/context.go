package context

import (
	"context"
	"testing"
	"time"
)

// WithTest wraps ctx with a deadline 1 second before the test's deadline,
// to be able to clean-up resources.
//
// The returned context is canceled when the test ends.
func WithTest(ctx context.Context, t *testing.T) context.Context {
	var cancel func()
	if deadline, ok := t.Deadline(); ok {
		ctx, cancel = context.WithDeadline(ctx, deadline.Add(-time.Second))
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	t.Cleanup(cancel)
	return ctx
}
