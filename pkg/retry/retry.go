// Package retry runs an operation a bounded number of times, racing each
// attempt against a timeout.
//
// An attempt that loses the race is abandoned, not stopped: its context is
// cancelled and its eventual result is discarded. Operations passed here must
// therefore be safe to abandon.
package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrTimeout is returned when an attempt did not finish within Policy.Timeout.
var ErrTimeout = errors.New("timeout")

// Policy configures a single Do call. It carries no state and may be shared.
type Policy struct {
	// Retries is the total number of attempts. Values below 1 mean 1.
	Retries int
	// Delay is the fixed pause between a failed attempt and the next one.
	Delay time.Duration
	// Timeout bounds each attempt. Zero disables the per-attempt timer.
	Timeout time.Duration
}

// SendPolicy is used for every outbound reply and operator report.
var SendPolicy = Policy{Retries: 3, Delay: 3 * time.Second, Timeout: 5 * time.Second}

func (p Policy) attempts() int {
	if p.Retries < 1 {
		return 1
	}
	return p.Retries
}

type outcome[T any] struct {
	value T
	err   error
}

// Do calls op until it succeeds or the policy's attempts are used up. The
// error of the last attempt (or ErrTimeout) is returned unchanged. If ctx is
// cancelled, Do stops at once and returns ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	total := p.attempts()
	for attempt := 1; attempt <= total; attempt++ {
		v, err := race(ctx, p.Timeout, op)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		lastErr = err
		if attempt == total {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func race[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so an abandoned attempt can still deliver and exit.
	done := make(chan outcome[T], 1)
	go func() {
		v, err := op(attemptCtx)
		done <- outcome[T]{value: v, err: err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case o := <-done:
		return o.value, o.err
	case <-expired:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
