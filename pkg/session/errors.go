package session

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout marks command-level timeouts reported by the browser (page load, script).
var ErrTimeout = errors.New("command timed out")

// DriverError is a failure of the underlying remote-control command or element lookup.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// Fail wraps err as a *DriverError for op. It returns nil for a nil err and keeps
// an existing *DriverError as is.
func Fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DriverError
	if errors.As(err, &de) {
		return err
	}
	return &DriverError{Op: op, Err: err}
}

// TimeoutError is returned by explicit polling waits that gave up.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// IsDriverFailure reports whether err is a driver or wait failure, the only
// errors a conditional test may recover from.
func IsDriverFailure(err error) bool {
	var de *DriverError
	var te *TimeoutError
	return errors.As(err, &de) || errors.As(err, &te)
}
