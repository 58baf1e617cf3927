// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an application error.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation_error"
	ErrorTypePrecondition ErrorType = "precondition_error"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeError        ErrorType = "processing_error"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeTimeout      ErrorType = "timeout"
)

// AppError carries a type, a human-readable message and an optional cause.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError builds an AppError of the given type.
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     cause,
		Code:    codeFor(errType),
	}
}

// NewValidationError reports invalid input detected before any side effect.
func NewValidationError(message string, cause error) *AppError {
	return NewAppError(ErrorTypeValidation, message, cause)
}

// NewPreconditionError reports an operation invoked in the wrong state.
func NewPreconditionError(message string) *AppError {
	return NewAppError(ErrorTypePrecondition, message, nil)
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(message string, cause error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, cause)
}

// NewProcessingError reports a failure while handling a valid request.
func NewProcessingError(message string, cause error) *AppError {
	return NewAppError(ErrorTypeError, message, cause)
}

// NewConflictError reports a collision with existing state.
func NewConflictError(message string, cause error) *AppError {
	return NewAppError(ErrorTypeConflict, message, cause)
}

// IsValidationError reports whether err is a validation error.
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsPreconditionError reports whether err is a precondition error.
func IsPreconditionError(err error) bool {
	return isType(err, ErrorTypePrecondition)
}

// IsNotFoundError reports whether err is a not-found error.
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsConflictError reports whether err is a conflict error.
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

func isType(err error, t ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == t
	}
	return false
}

func codeFor(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypePrecondition:
		return "PRECONDITION_FAILED"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError adds context to an existing error, preserving an AppError's type.
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
