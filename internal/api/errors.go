package api

import (
	"errors"
	"fmt"
)

// NotFoundError represents a failed lookup against correlation or registry state.
//
// A NotFoundError raised by the correlator always means either a framework
// shape the engine does not recognize, or an entry that was released too
// early. It is surfaced to the caller and never silently defaulted.
type NotFoundError struct {
	// ResourceType categorizes what was looked up
	// (e.g., "instance", "run context", "watcher", "retry analyzer")
	ResourceType string

	// ResourceName is the identifier used for the lookup
	ResourceName string

	// Message provides a custom error message if the default format is insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
// Returns either the custom message if provided, or a formatted default message
// using the resource type and name.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
//
// Args:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error is or wraps a NotFoundError, false otherwise
//
// Example:
//
//	method, err := store.ResolveMethodFor(inst)
//	if api.IsNotFound(err) {
//	    return fmt.Errorf("instance was never recorded: %w", err)
//	}
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
//
// Args:
//   - resourceType: The category of resource (e.g., "instance", "watcher")
//   - resourceName: The specific identifier of the resource
//
// Returns:
//   - *NotFoundError: A new NotFoundError instance
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// NewNotFoundErrorWithMessage creates a new NotFoundError with a custom message.
func NewNotFoundErrorWithMessage(resourceType, resourceName, message string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
		Message:      message,
	}
}

// IllegalStateError signals mismatched instrumentation: a depth gauge
// decremented below zero, or a lifecycle transition that cannot happen in a
// well-formed run. It is fatal to the current call and never retried.
type IllegalStateError struct {
	// Component names the part of the engine that detected the condition
	// (e.g., "DepthGauge", "Dispatcher")
	Component string

	// Message describes the violated expectation
	Message string
}

// Error implements the error interface for IllegalStateError.
func (e *IllegalStateError) Error() string {
	if e.Component == "" {
		return "illegal state: " + e.Message
	}
	return fmt.Sprintf("%s: illegal state: %s", e.Component, e.Message)
}

// NewIllegalStateError creates an IllegalStateError with a formatted message.
//
// Args:
//   - component: The component reporting the error
//   - format: Printf-style format of the message
//   - args: Format arguments
//
// Returns:
//   - *IllegalStateError: A new IllegalStateError instance
func NewIllegalStateError(component, format string, args ...interface{}) *IllegalStateError {
	return &IllegalStateError{
		Component: component,
		Message:   fmt.Sprintf(format, args...),
	}
}

// IsIllegalState checks if an error is or wraps an IllegalStateError.
func IsIllegalState(err error) bool {
	var illegal *IllegalStateError
	return errors.As(err, &illegal)
}

// Common errors for registry operations.
var (
	// ErrNilProvider indicates an attempt to register a nil watcher provider
	ErrNilProvider = errors.New("watcher provider must not be nil")

	// ErrNilAnalyzer indicates an attempt to register a nil retry analyzer
	ErrNilAnalyzer = errors.New("retry analyzer must not be nil")
)
