// Package apperrors defines the error taxonomy shared by services and handlers.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every *Error carries exactly one of these and matches it with errors.Is.
var (
	// ErrValidation indicates a missing or malformed required field.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a contact, conversation or message was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidTransition indicates the conversation state machine rejected the move.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrMissingIntegrationData indicates the bot platform correlation ids are absent.
	ErrMissingIntegrationData = errors.New("missing integration data")
	// ErrDelivery indicates a downstream SMS call failed after local state was persisted.
	ErrDelivery = errors.New("delivery failed")
	// ErrStorage indicates a generic persistence failure.
	ErrStorage = errors.New("storage error")
	// ErrConflict indicates a concurrent write won the race (compare-and-set miss).
	ErrConflict = errors.New("resource conflict")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate resource")
	// ErrUnauthorized indicates an authentication or signature failure.
	ErrUnauthorized = errors.New("unauthorized access")
)

// Error is an application error with a kind, a human readable message and
// optional diagnostic details that handlers may echo back to operators.
type Error struct {
	Kind    error
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// WithDetail attaches a diagnostic key/value and returns the same error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func newError(kind error, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Validation creates a validation error.
func Validation(format string, args ...any) *Error {
	return newError(ErrValidation, nil, format, args...)
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *Error {
	return newError(ErrNotFound, nil, format, args...)
}

// InvalidTransition creates an invalid transition error.
func InvalidTransition(format string, args ...any) *Error {
	return newError(ErrInvalidTransition, nil, format, args...)
}

// MissingIntegrationData creates a missing integration data error.
func MissingIntegrationData(format string, args ...any) *Error {
	return newError(ErrMissingIntegrationData, nil, format, args...)
}

// Delivery wraps a transport failure.
func Delivery(err error, format string, args ...any) *Error {
	return newError(ErrDelivery, err, format, args...)
}

// Storage wraps a persistence failure.
func Storage(err error, format string, args ...any) *Error {
	return newError(ErrStorage, err, format, args...)
}

// Conflict creates a conflict error.
func Conflict(format string, args ...any) *Error {
	return newError(ErrConflict, nil, format, args...)
}

// Duplicate creates a duplicate resource error.
func Duplicate(format string, args ...any) *Error {
	return newError(ErrDuplicate, nil, format, args...)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(format string, args ...any) *Error {
	return newError(ErrUnauthorized, nil, format, args...)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsNotFoundError checks if the error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if the error is or wraps ErrValidation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidTransitionError checks if the error is or wraps ErrInvalidTransition.
func IsInvalidTransitionError(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsMissingIntegrationDataError checks if the error is or wraps ErrMissingIntegrationData.
func IsMissingIntegrationDataError(err error) bool {
	return errors.Is(err, ErrMissingIntegrationData)
}

// IsDeliveryError checks if the error is or wraps ErrDelivery.
func IsDeliveryError(err error) bool {
	return errors.Is(err, ErrDelivery)
}

// IsConflictError checks if the error is or wraps ErrConflict.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsDuplicateError checks if the error is or wraps ErrDuplicate.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
