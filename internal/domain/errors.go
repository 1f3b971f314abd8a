// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import "errors"

// Sentinel errors wrapped by the typed domain errors below.
var (
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrInstanceCancelled   = errors.New("instance is cancelled")
	ErrHorizonRegression   = errors.New("horizon regression")
	ErrHorizonMoved        = errors.New("horizon moved concurrently")
	ErrUnsupportedFreq     = errors.New("unsupported frequency")
	ErrRuleAlreadyExists   = errors.New("recurrence rule already exists for template")
	ErrNotAdministrator    = errors.New("actor is not an administrator")
	ErrAmbiguousReference  = errors.New("exactly one of event_id or recurring_event_instance_id is required")
	ErrSequenceOutOfStep   = errors.New("series sequence out of step")
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrEmptyRescheduleSpan = errors.New("new start or new end is required")
)

// ErrorType represents the semantic category of an error
type ErrorType int

const (
	ErrorTypeValidation   ErrorType = iota // Input validation errors (400 Bad Request)
	ErrorTypeNotFound                      // Resource not found errors (404 Not Found)
	ErrorTypeConflict                      // Resource conflict errors (409 Conflict)
	ErrorTypeInternal                      // Internal server errors (500 Internal Server Error)
	ErrorTypeUnavailable                   // Service unavailable errors (503 Service Unavailable)
	ErrorTypeUnauthorized                  // Actor lacks the required relationship (403 Forbidden)
)

// String returns the wire name of the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeConflict:
		return "conflict"
	case ErrorTypeUnavailable:
		return "unavailable"
	case ErrorTypeUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// DomainError represents an error with semantic type information
type DomainError struct {
	Type    ErrorType
	Message string
	// Argument names the offending argument or resource (e.g. "interval", "instance_id").
	Argument string
	// Retryable is only set for conflicts a caller may resolve by re-reading and retrying.
	Retryable bool
	Err       error // underlying error for wrapping
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithArgument records the offending argument on the error and returns it.
func (e *DomainError) WithArgument(argument string) *DomainError {
	e.Argument = argument
	return e
}

// GetErrorType returns the semantic type of an error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal // default fallback
}

// IsRetryable reports whether the error is a conflict the caller may retry.
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable
	}
	return false
}

// GetArgument returns the offending argument recorded on the error, if any.
func GetArgument(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Argument
	}
	return ""
}

// Error constructors for different types
func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

func NewConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeConflict, Message: message, Err: errors.Join(err...)}
}

// NewRetryableConflictError marks a conflict caused by a concurrent writer.
func NewRetryableConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeConflict, Message: message, Retryable: true, Err: errors.Join(err...)}
}

func NewUnauthorizedError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnauthorized, Message: message, Err: errors.Join(err...)}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}

func NewUnavailableError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnavailable, Message: message, Err: errors.Join(err...)}
}
