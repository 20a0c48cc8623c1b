// Package wait provides the waiting primitives shared by locators and page
// objects: a condition wait with a deadline, a bounded poll with a fixed
// backoff, and a plain fixed pause.
//
// The target application propagates most effects asynchronously on the server
// side, so page objects combine the three:
//
//   - AwaitCondition blocks until a predicate holds or the timeout elapses.
//   - Poll re-queries state a fixed number of times and reports the final
//     outcome instead of failing, leaving the decision to the caller.
//   - Pause sleeps for a fixed interval. It is only used where the page offers
//     no observable condition to wait on.
//
// All three take a Clock so tests can run them without real sleeps.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConditionTimeout is returned by AwaitCondition when the predicate did not
// hold before the timeout elapsed.
var ErrConditionTimeout = errors.New("condition not met before timeout")

// DefaultInterval is the poll interval used by AwaitCondition when the caller
// passes zero.
const DefaultInterval = 250 * time.Millisecond

// Policy describes a bounded polling verification attached to one call site.
type Policy struct {
	// Timeout bounds each individual probe where the probe itself waits.
	Timeout time.Duration

	// Interval is the fixed backoff between attempts. There is no exponential
	// growth.
	Interval time.Duration

	// MaxAttempts is the exact number of probes made when the predicate never
	// succeeds.
	MaxAttempts int

	// Immediate probes before the first backoff instead of after it.
	Immediate bool
}

// String renders the policy for log lines.
func (p Policy) String() string {
	return fmt.Sprintf("%d attempts every %s", p.MaxAttempts, p.Interval)
}

// Outcome reports how a Poll ended.
type Outcome struct {
	// OK is true when the probe reported success.
	OK bool

	// Attempts is the number of probes that ran.
	Attempts int

	// LastErr is the error returned by the last failed probe, if any.
	LastErr error
}

// Probe is one re-query of page state. It returns true when the success
// predicate holds. Errors count as an unsuccessful attempt.
type Probe func(ctx context.Context, attempt int) (bool, error)

// Poll runs probe at most policy.MaxAttempts times, pausing policy.Interval
// between attempts. Exhausting the attempts is not an error: the returned
// Outcome has OK=false. Only context cancellation is returned as an error.
func Poll(ctx context.Context, clock Clock, policy Policy, probe Probe) (Outcome, error) {
	if clock == nil {
		clock = RealClock{}
	}

	var out Outcome
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if !policy.Immediate || attempt > 1 {
			if err := clock.Sleep(ctx, policy.Interval); err != nil {
				return out, err
			}
		}

		out.Attempts = attempt
		ok, err := probe(ctx, attempt)
		if err != nil {
			out.LastErr = err
			continue
		}
		if ok {
			out.OK = true
			return out, nil
		}
	}

	return out, nil
}

// AwaitCondition blocks until predicate returns true or timeout elapses. The
// predicate is evaluated once before any sleep, so a condition that already
// holds returns without blocking.
func AwaitCondition(ctx context.Context, clock Clock, predicate func() (bool, error), timeout, interval time.Duration) error {
	if clock == nil {
		clock = RealClock{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	deadline := clock.Now().Add(timeout)
	var lastErr error
	for {
		ok, err := predicate()
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			if lastErr != nil {
				return fmt.Errorf("%w: %w", ErrConditionTimeout, lastErr)
			}
			return ErrConditionTimeout
		}

		if err := clock.Sleep(ctx, min(interval, remaining)); err != nil {
			return err
		}
	}
}

// Pause sleeps for d. It exists for the places where the application exposes
// no condition to wait on; prefer AwaitCondition everywhere else.
func Pause(ctx context.Context, clock Clock, d time.Duration) error {
	if clock == nil {
		clock = RealClock{}
	}
	return clock.Sleep(ctx, d)
}
