package api

import "net/http"

// Error represents an error that occurred while handling a request.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// Common errors
var (
	BadRequestError     = &Error{StatusCode: http.StatusBadRequest}
	NotFoundError       = &Error{StatusCode: http.StatusNotFound}
	ConflictError       = &Error{StatusCode: http.StatusConflict}
	InternalServerError = &Error{StatusCode: http.StatusInternalServerError}
)

func NewBadRequestError(message string) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Message: message}
}

func NewNotFoundError(message string) *Error {
	return &Error{StatusCode: http.StatusNotFound, Message: message}
}

func NewConflictError(message string) *Error {
	return &Error{StatusCode: http.StatusConflict, Message: message}
}

func NewInternalServerError(message string) *Error {
	return &Error{StatusCode: http.StatusInternalServerError, Message: message}
}
