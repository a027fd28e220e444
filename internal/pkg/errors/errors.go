package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with additional context
type AppError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"-"`
	Internal   error       `json:"-"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Common error codes
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeInvalidState = "INVALID_STATE"
	ErrCodeIntegrity    = "INTEGRITY_ERROR"
	ErrCodeStorage      = "STORAGE_ERROR"
	ErrCodeRateLimited  = "RATE_LIMITED"
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// Common error constructors

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ValidationError creates a validation error. Details should carry the full
// list of violated constraints, not just the first.
func ValidationError(message string, details interface{}) *AppError {
	return New(ErrCodeValidation, message, http.StatusBadRequest).WithDetails(details)
}

// InvalidState creates an error for a disallowed status transition
func InvalidState(message string) *AppError {
	return New(ErrCodeInvalidState, message, http.StatusConflict)
}

// Integrity creates an error for a stored record failing checksum verification
func Integrity(message string) *AppError {
	return New(ErrCodeIntegrity, message, http.StatusInternalServerError)
}

// StorageError creates an error for a failure of the persistence medium
func StorageError(message string, err error) *AppError {
	return Wrap(err, ErrCodeStorage, message, http.StatusInternalServerError)
}

// RateLimited creates a rate limited error
func RateLimited(message string) *AppError {
	return New(ErrCodeRateLimited, message, http.StatusTooManyRequests)
}

// code reports whether err is an *AppError with the given code.
func code(err error, want string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == want
	}
	return false
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return code(err, ErrCodeNotFound) }

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return code(err, ErrCodeValidation) }

// IsInvalidState reports whether err is an invalid-state error
func IsInvalidState(err error) bool { return code(err, ErrCodeInvalidState) }

// IsIntegrity reports whether err is an integrity error
func IsIntegrity(err error) bool { return code(err, ErrCodeIntegrity) }

// IsStorage reports whether err is a storage error
func IsStorage(err error) bool { return code(err, ErrCodeStorage) }
