// Package errors provides the error taxonomy shared by every layer of the catalog service.
//
// Errors are classified by ErrorType. The classification drives two decisions:
// whether the resilience pipeline may retry the failed call, and which HTTP status
// the interface layer reports.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType defines the category of error for proper handling and response.
type ErrorType string

const (
	// Transient infrastructure errors. These are retried and count as breaker failures.
	ErrorTypeBackend     ErrorType = "BACKEND"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// Caller errors. Never retried.
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
)

// Error codes for programmatic handling by API clients.
const (
	CodeProductNotFound    = "PRODUCT_NOT_FOUND"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeForbidden          = "FORBIDDEN"
	CodeDynamoDBError      = "DYNAMODB_ERROR"
	CodeTimeout            = "TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// AppError is the single error type returned across package boundaries.
type AppError struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Operation string    `json:"operation,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another *AppError by type and code, so sentinel comparisons work.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && (t.Code == "" || e.Code == t.Code)
}

// WithOperation returns a copy of the error annotated with the failing operation.
func (e *AppError) WithOperation(op string) *AppError {
	cp := *e
	cp.Operation = op
	return &cp
}

// Backend reports a transient store failure: unreachable, throttled or internal fault.
func Backend(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeBackend, Code: CodeDynamoDBError, Message: message, Cause: cause}
}

// Timeout reports an attempt that exceeded its deadline.
func Timeout(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeTimeout, Code: CodeTimeout, Message: message, Cause: cause}
}

// Unavailable reports a call rejected by a bulkhead or an open breaker.
func Unavailable(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeUnavailable, Code: CodeServiceUnavailable, Message: message, Cause: cause}
}

// NotFound reports an absent record.
func NotFound(message string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Code: CodeProductNotFound, Message: message}
}

// Validation reports malformed input.
func Validation(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeValidation, Code: CodeValidationFailed, Message: message, Cause: cause}
}

// Unauthorized reports a missing caller identity.
func Unauthorized(message string) *AppError {
	return &AppError{Type: ErrorTypeUnauthorized, Code: CodeUnauthenticated, Message: message}
}

// Forbidden reports an identity without the required group membership.
func Forbidden(message string) *AppError {
	return &AppError{Type: ErrorTypeForbidden, Code: CodeForbidden, Message: message}
}

// Wrap annotates err with a message while keeping its classification.
// Unclassified errors are treated as backend failures.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		cp := *appErr
		cp.Message = message
		cp.Cause = err
		return &cp
	}
	return Backend(message, err)
}

// TypeOf returns the classification of err, or "" when err is not an AppError.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsRetryable reports whether a failed call may be attempted again.
// Only backend faults and timeouts qualify; unclassified errors are assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch TypeOf(err) {
	case ErrorTypeBackend, ErrorTypeTimeout, "":
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsAuthorization reports whether err is an authentication or authorization failure.
func IsAuthorization(err error) bool {
	t := TypeOf(err)
	return t == ErrorTypeUnauthorized || t == ErrorTypeForbidden
}

// HTTPStatus returns the appropriate HTTP status code for err.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeTimeout, ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
