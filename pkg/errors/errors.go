package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies application errors for transport mapping.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeExternal     ErrorType = "EXTERNAL"
	ErrorTypeInternal     ErrorType = "INTERNAL"
)

// AppError is an application-specific error carrying its transport mapping.
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause attaches the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func newError(t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message}
}

func NewValidation(message string) *AppError   { return newError(ErrorTypeValidation, message) }
func NewNotFound(message string) *AppError     { return newError(ErrorTypeNotFound, message) }
func NewConflict(message string) *AppError     { return newError(ErrorTypeConflict, message) }
func NewUnauthorized(message string) *AppError { return newError(ErrorTypeUnauthorized, message) }
func NewForbidden(message string) *AppError    { return newError(ErrorTypeForbidden, message) }
func NewExternal(message string) *AppError     { return newError(ErrorTypeExternal, message) }
func NewInternal(message string) *AppError     { return newError(ErrorTypeInternal, message) }

// IsType reports whether err is an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// HTTPStatus maps an error to its HTTP status code.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
