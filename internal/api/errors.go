package api

import (
	"errors"
	"fmt"
)

// NotFoundError represents a resource not found error with contextual information.
// Stores and drivers return it so callers can distinguish a missing record
// from an unavailable backend.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g., "share instance", "access rule", "share server")
	ResourceType string

	// ResourceName is the specific identifier of the resource that was not found
	ResourceName string

	// Message provides a custom error message if the default format is insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
//
// Example:
//
//	inst, err := store.GetShareInstance(ctx, id)
//	if api.IsNotFound(err) {
//	    return fmt.Errorf("no such share instance %q", id)
//	}
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// Specific NotFoundError constructors for each resource type.
var (
	NewShareInstanceNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("share instance", id)
	}

	NewAccessRuleNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("access rule", id)
	}

	NewShareServerNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("share server", id)
	}
)

// InvalidError reports input that failed validation, most notably an
// access-key payload returned by a driver that does not match the rules the
// driver was asked to process.
type InvalidError struct {
	Message string
}

func (e *InvalidError) Error() string {
	return "invalid: " + e.Message
}

// NewInvalidError creates an InvalidError with a formatted message.
func NewInvalidError(format string, args ...interface{}) *InvalidError {
	return &InvalidError{Message: fmt.Sprintf(format, args...)}
}

// IsInvalid checks if an error is or wraps an InvalidError.
func IsInvalid(err error) bool {
	var invalidErr *InvalidError
	return errors.As(err, &invalidErr)
}

// ConvergenceError is returned when the stored rule set keeps changing
// between reconciliation passes and the pass limit is reached.
type ConvergenceError struct {
	InstanceID string
	Passes     int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("access rules for share instance %s did not converge after %d passes", e.InstanceID, e.Passes)
}

// IsConvergenceError checks if an error is or wraps a ConvergenceError.
func IsConvergenceError(err error) bool {
	var convErr *ConvergenceError
	return errors.As(err, &convErr)
}

var (
	// ErrDriverNotRegistered indicates no driver with the configured name exists.
	ErrDriverNotRegistered = errors.New("driver not registered")

	// ErrStoreClosed is returned by stores after Close.
	ErrStoreClosed = errors.New("store closed")
)
