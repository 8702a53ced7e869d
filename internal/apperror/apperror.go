// Package apperror defines the error kinds shared by the HTTP and realtime
// boundaries. Services return them; transports translate them.
package apperror

import "errors"

var (
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// AppError pairs an error kind with a message that is safe to show clients.
type AppError struct {
	Err     error
	Message string
	Field   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation reports a missing or malformed field.
func Validation(field, message string) *AppError {
	return &AppError{Err: ErrValidation, Message: message, Field: field}
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *AppError {
	return &AppError{Err: ErrConflict, Message: message}
}

// Unauthorized reports bad credentials or a bad token.
func Unauthorized(message string) *AppError {
	return &AppError{Err: ErrUnauthorized, Message: message}
}

// NotFound reports a missing resource.
func NotFound(message string) *AppError {
	return &AppError{Err: ErrNotFound, Message: message}
}

// Internal wraps an infrastructure failure. The cause stays in the chain for
// logging; Message is what clients see.
func Internal(message string, cause error) *AppError {
	return &AppError{Err: cause, Message: message}
}

// Kind returns the sentinel kind of err, or nil for infrastructure errors.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrConflict, ErrUnauthorized, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Message returns the client-safe message carried by err, or fallback.
func Message(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
