// Package retry wraps fallible operations with doubling backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultInitialDelay is the first wait after a failure.
const DefaultInitialDelay = time.Second

type Mode int

const (
	// Bounded gives up after MaxRetries retries.
	Bounded Mode = iota
	// Unbounded retries until the operation succeeds or ctx is done.
	Unbounded
)

func (m Mode) String() string {
	switch m {
	case Bounded:
		return "bounded"
	case Unbounded:
		return "unbounded"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Policy waits InitialDelay * 2^(n-1) before the nth retry, there is no jitter.
type Policy struct {
	Mode         Mode
	InitialDelay time.Duration
	// MaxRetries is the amount of retries after the first attempt, only used by Bounded.
	MaxRetries int
	// MaxDelay clamps the wait between attempts, 0 means no clamp.
	MaxDelay time.Duration

	timer backoff.Timer
}

func BoundedPolicy(maxRetries int) Policy {
	return Policy{
		Mode:         Bounded,
		InitialDelay: DefaultInitialDelay,
		MaxRetries:   maxRetries,
	}
}

func UnboundedPolicy() Policy {
	return Policy{
		Mode:         Unbounded,
		InitialDelay: DefaultInitialDelay,
	}
}

func (p Policy) initialDelay() time.Duration {
	if p.InitialDelay <= 0 {
		return DefaultInitialDelay
	}
	return p.InitialDelay
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return p.MaxDelay
}

// Delay returns the wait before the nth retry (n starts at 1).
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	delay := p.initialDelay()
	limit := p.maxDelay()
	for i := 1; i < n; i++ {
		if delay >= limit/2 {
			return limit
		}
		delay *= 2
	}
	if delay > limit {
		return limit
	}
	return delay
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.initialDelay(),
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.maxDelay(),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()

	var b backoff.BackOff = exp
	if p.Mode == Bounded {
		maxRetries := p.MaxRetries
		if maxRetries < 0 {
			maxRetries = 0
		}
		b = backoff.WithMaxRetries(b, uint64(maxRetries))
	}
	return backoff.WithContext(b, ctx)
}

// Operation is a single attempt, `attempt` is 0 for the first call.
type Operation func(ctx context.Context, attempt int) error

// Notify is called after a failed attempt, before waiting `delay`.
type Notify func(err error, retry int, delay time.Duration)

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks an error that should not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Do runs op until it succeeds, the policy gives up or ctx is done. The returned error is the
// last error of op, or ctx's error if ctx ended first.
func (p Policy) Do(ctx context.Context, op Operation, notify Notify) error {
	attempt := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op(ctx, attempt)
		attempt++

		var permanent permanentError
		if errors.As(err, &permanent) {
			return backoff.Permanent(permanent.err)
		}
		return err
	}

	var backoffNotify backoff.Notify
	if notify != nil {
		backoffNotify = func(err error, delay time.Duration) {
			notify(err, attempt, delay)
		}
	}

	return backoff.RetryNotifyWithTimer(operation, p.backOff(ctx), backoffNotify, p.timer)
}
