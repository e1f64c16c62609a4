// Package timeout provides the racing combinator used for every call into
// the WhatsApp session that must not block a request indefinitely.
package timeout

import (
	"context"
	"time"

	"github.com/wabridge/wabridge/internal/fault"
)

// Do runs op and waits at most d for its result. On expiry it returns an
// UpstreamTimeout error carrying desc; the operation keeps running and its
// eventual result is discarded. op is not cancelled on expiry: the session
// offers no operation-level cancellation, so only the caller's wait ends.
func Do[T any](ctx context.Context, d time.Duration, desc string, op func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	// Buffered so a late-finishing op never blocks on an abandoned channel.
	ch := make(chan result, 1)
	go func() {
		v, err := op(ctx)
		ch <- result{v, err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case r := <-ch:
		return r.value, r.err
	case <-timer.C:
		return zero, fault.New(fault.UpstreamTimeout, "timeout %s", desc)
	case <-ctx.Done():
		return zero, fault.Wrap(fault.UpstreamTimeout, ctx.Err(), "timeout %s", desc)
	}
}
