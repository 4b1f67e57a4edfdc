// Package resilience bounds how long a single outbound call may block a
// stage cycle.
package resilience

import (
	"context"
	"fmt"
	"time"
)

// Call runs fn under a deadline of limit and returns its result. A
// non-positive limit runs fn directly. If the deadline passes first, Call
// returns an error wrapping context.DeadlineExceeded without waiting for fn;
// fn sees its context cancelled and is expected to return soon after.
func Call[T any](ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if limit <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-callCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: parent context cancelled: %w", op, ctx.Err())
		}
		return zero, fmt.Errorf("%s: %w (limit: %v)", op, context.DeadlineExceeded, limit)
	}
}
