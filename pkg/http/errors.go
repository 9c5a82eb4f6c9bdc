package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that maps to an HTTP status and a {error, message} body.
type AppError struct {
	Code    string `json:"-"`
	Title   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Title, e.Err)
	}
	return e.Title
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, title, message string, status int) *AppError {
	return &AppError{Code: code, Title: title, Message: message, Status: status}
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func ConflictError(title, message string) *AppError {
	return NewAppError("ERR_CONFLICT", title, message, http.StatusConflict)
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError("ERR_RATE_LIMITED", "Too many requests", message, http.StatusTooManyRequests)
}

func InternalError(title, message string) *AppError {
	return NewAppError("ERR_INTERNAL", title, message, http.StatusInternalServerError)
}
