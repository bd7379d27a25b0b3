// Package wait implements bounded condition polling (explicit waits).
//
// Every wait in the suite goes through Until: a condition is re-evaluated at a
// fixed interval until it holds or the timeout elapses. Fixed sleeps are not
// used; the timeout is the worst-case latency.
package wait

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
)

// DefaultInterval is the polling interval when none is configured.
const DefaultInterval = 200 * time.Millisecond

// Condition reports whether the awaited state holds. A non-nil error is
// treated as "not yet" and remembered as the last failure.
type Condition func() (bool, error)

var errPending = errors.New("condition not met")

// Until polls cond every interval until it returns true or timeout elapses.
// The condition is always evaluated at least once. On timeout it returns
// core.ErrTimeout wrapping the last condition error, if any.
func Until(cond Condition, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = interval
	b.Multiplier = 1
	b.RandomizationFactor = 0
	b.MaxElapsedTime = timeout
	if timeout <= 0 {
		// Single evaluation.
		b.MaxElapsedTime = time.Nanosecond
	}

	var lastErr error
	op := func() error {
		ok, err := cond()
		if err != nil {
			lastErr = err
			return err
		}
		if !ok {
			return errPending
		}
		return nil
	}

	if err := backoff.Retry(op, b); err != nil {
		te := core.ErrTimeout.WithMessagef("condition not met within %s", timeout)
		if lastErr != nil {
			return te.WithCause(lastErr)
		}
		return te
	}
	return nil
}

// Poll is Until for conditions that cannot fail.
func Poll(cond func() bool, timeout, interval time.Duration) bool {
	return Until(func() (bool, error) { return cond(), nil }, timeout, interval) == nil
}
