// Package poll provides constant-interval polling primitives for waiting
// on remote state transitions.
//
// Bounded and Unbounded share the same poll-action shape but are kept
// separate on purpose: a ceiling can be added to an unbounded wait
// without touching the bounded one.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrNotReady is returned by a Fn to request another poll after the
// interval elapses.
var ErrNotReady = errors.New("condition not ready")

// ErrTimeout reports that a bounded poll exhausted its attempts without
// the condition becoming true.
var ErrTimeout = errors.New("condition not met before deadline")

// Fn checks remote state once. Return nil to stop successfully,
// ErrNotReady (possibly wrapped) to be polled again, or any other error
// to abort the poll immediately.
type Fn func(ctx context.Context) error

// Bounded polls fn every interval until it succeeds, fails hard, or
// attempts are exhausted. The first attempt runs immediately, so a poll
// with interval i and n attempts fails after (n-1)*i of waiting.
// Exhaustion is reported as ErrTimeout.
func Bounded(ctx context.Context, interval time.Duration, attempts uint64, fn Fn) error {
	if attempts == 0 {
		return ErrTimeout
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), attempts-1),
		ctx,
	)
	err := backoff.Retry(wrap(ctx, fn), b)
	if errors.Is(err, ErrNotReady) {
		return ErrTimeout
	}
	return err
}

// Unbounded polls fn every interval until it succeeds, fails hard, or
// the context finishes. There is deliberately no ceiling: callers that
// need one use Bounded instead.
func Unbounded(ctx context.Context, interval time.Duration, fn Fn) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	err := backoff.Retry(wrap(ctx, fn), b)
	if errors.Is(err, ErrNotReady) {
		// The context finished between polls.
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
	}
	return err
}

// Attempts converts a wait budget into a poll attempt count, with the
// first attempt landing at t=0. A budget smaller than one interval still
// yields a single attempt.
func Attempts(budget, interval time.Duration) uint64 {
	if interval <= 0 || budget < interval {
		return 1
	}
	return uint64(budget / interval)
}

func wrap(ctx context.Context, fn Fn) backoff.Operation {
	return func() error {
		err := fn(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrNotReady):
			return err
		default:
			return backoff.Permanent(err)
		}
	}
}
