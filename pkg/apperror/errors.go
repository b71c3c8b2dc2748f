package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound         = errors.New("idea not found")
	ErrAlreadyLiked     = errors.New("idea already liked")
	ErrNotLiked         = errors.New("idea not liked")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrValidationFailed = errors.New("body must not be empty")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AppError carries an HTTP status code alongside the underlying failure.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Unavailable wraps a backend failure so callers can match ErrStoreUnavailable
// while keeping the original cause in the chain.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return New(http.StatusInternalServerError, op, errors.Join(ErrStoreUnavailable, err))
}

// MapErrorToStatus maps the error taxonomy to HTTP status codes
func MapErrorToStatus(err error) int {
	var appErr *AppError
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyLiked), errors.Is(err, ErrNotLiked), errors.Is(err, ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusInternalServerError
	case errors.As(err, &appErr):
		return appErr.Code
	}
	return http.StatusInternalServerError
}
