package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or out-of-range input. It is always
// caller-facing and never retried; invalid input is rejected rather than
// silently corrected.
type ValidationError struct {
	Field   string // optional; the offending field
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidation creates a ValidationError without a field reference.
func NewValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NewFieldValidation creates a ValidationError tied to a named field.
func NewFieldValidation(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an absent referenced entity.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// NewNotFound creates a NotFoundError.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports a duplicate route, a duplicate report inside a
// cooldown window, or a double-review of a resolved suggestion.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflict creates a ConflictError.
func NewConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError reports a contributor whose reputation is below the
// threshold required for the attempted action.
type AuthorizationError struct {
	Action   string
	Required int
	Actual   int
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s requires reputation %d, contributor has %d", e.Action, e.Required, e.Actual)
}

// NewAuthorization creates an AuthorizationError.
func NewAuthorization(action string, required, actual int) *AuthorizationError {
	return &AuthorizationError{Action: action, Required: required, Actual: actual}
}

// AuthenticationError reports an action that requires an identified
// contributor when none is present.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// NewAuthentication creates an AuthenticationError.
func NewAuthentication(format string, args ...interface{}) *AuthenticationError {
	return &AuthenticationError{Message: fmt.Sprintf(format, args...)}
}

// StorageError wraps a transient storage or transaction failure (lock
// timeout, serialization failure). Callers may retry with backoff.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorage wraps err as a StorageError for operation op.
func NewStorage(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsRetryable reports whether err is a transient failure the caller should
// retry with backoff rather than surface as bad input.
func IsRetryable(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
