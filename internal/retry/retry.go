// Package retry implements an explicit retry(policy, op) combinator in
// place of retry-by-decorator, with injected-clock-driven backoff instead of
// implicit per-call retry logic, so call sites stay testable.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/allenheltondev/dirt-man/internal/clock"
)

// Policy is a backoff schedule with a fixed attempt cap.
type Policy struct {
	MaxAttempts int
	Delays      []time.Duration
}

// FixedDelays builds a Policy that waits delays[i] before attempt i+2 (the
// first attempt is always immediate). len(delays)+1 is the attempt cap.
func FixedDelays(delays ...time.Duration) Policy {
	return Policy{MaxAttempts: len(delays) + 1, Delays: delays}
}

// ErrExhausted is returned when no attempt error is otherwise available.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Do runs op up to policy.MaxAttempts times, sleeping the policy's backoff
// schedule between attempts via the injected clock. isRetryable decides
// whether a given error should be retried at all; a false result returns the
// error immediately without further attempts.
func Do(ctx context.Context, c clock.Clock, policy Policy, isRetryable func(error) bool, op func(ctx context.Context, attempt int) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error = ErrExhausted
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.Sleep(policy.Delays[attempt-1])
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
