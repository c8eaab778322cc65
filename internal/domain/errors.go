package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound     = NewError("not found", 404)
	ErrUnauthorized = NewError("unauthorized", 401)
	ErrInvalidInput = NewError("invalid input", 400)
	ErrInternal     = NewError("internal server error", 500)

	// ErrUnknownFrame is returned when a stream frame carries an event name
	// outside the framing contract.
	ErrUnknownFrame = errors.New("unknown frame type")

	// ErrMalformedFrame is returned when a stream frame's payload cannot be
	// decoded.
	ErrMalformedFrame = errors.New("malformed frame payload")
)

// Error represents a domain error with an associated code.
type Error struct {
	Message string
	Code    int
}

// Error returns the error message.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new domain error with the given message and code.
func NewError(message string, code int) *Error {
	return &Error{
		Message: message,
		Code:    code,
	}
}

// NotificationNotFoundError indicates that a referenced notification does not
// exist in the owning user's visible set.
type NotificationNotFoundError struct {
	ID  string
	Err *Error
}

// Error returns the error message.
func (e *NotificationNotFoundError) Error() string {
	return e.Err.Error()
}

// NewNotificationNotFoundError creates a new NotificationNotFoundError.
func NewNotificationNotFoundError(id string) *NotificationNotFoundError {
	return &NotificationNotFoundError{
		ID: id,
		Err: NewError(
			fmt.Sprintf("notification with ID %s not found", id),
			404,
		),
	}
}
