package locator

import (
	"errors"
	"fmt"
	"time"
)

// ErrLocatorTimeout matches any *TimeoutError with errors.Is.
var ErrLocatorTimeout = errors.New("locator timeout")

// TimeoutError reports that a locator did not reach a state in time.
type TimeoutError struct {
	Criteria Criteria
	State    State
	Timeout  time.Duration
	Elapsed  time.Duration

	// Err is the engine error, if the timeout was reported by the engine.
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s to be %s", e.Timeout, e.Criteria, e.State)
}

// Is reports whether target is ErrLocatorTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrLocatorTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a locator or engine timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrLocatorTimeout) || errors.Is(err, ErrDeadline)
}
