package framework

import (
	"errors"
	"fmt"
	"time"
)

// AssumptionViolated signals that a test's precondition does not hold. It is
// reported as an assumption failure rather than a failure.
type AssumptionViolated struct {
	Message string
}

func (e *AssumptionViolated) Error() string {
	return "assumption violated: " + e.Message
}

// Assume returns an AssumptionViolated error for the given message.
func Assume(format string, args ...interface{}) error {
	return &AssumptionViolated{Message: fmt.Sprintf(format, args...)}
}

// IsAssumptionViolated checks whether err is or wraps an AssumptionViolated.
func IsAssumptionViolated(err error) bool {
	var av *AssumptionViolated
	return errors.As(err, &av)
}

// TimeoutError is returned by a timeout watchdog when a statement outlives its
// allowed execution window.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Name, e.Timeout)
}

// IsTimeout checks whether err is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// PanicError wraps a value recovered from a panicking test body.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
