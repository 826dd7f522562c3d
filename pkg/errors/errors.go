// Package errors defines the sentinel errors shared across the service and
// their mapping to HTTP status codes. Components wrap these sentinels so that
// callers can decide, per call site, whether an unavailable dependency
// degrades to an empty result or surfaces to the client.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFeedUnavailable marks a transport or non-2xx failure from the
	// publication feed. The ingestion pipeline degrades it to an empty batch.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrStoreUnavailable marks a failed read or write against the document
	// store. Readers degrade it to an empty result.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrModelTimeout marks a model call that exceeded its per-attempt
	// deadline on every attempt.
	ErrModelTimeout = errors.New("model request timed out")
	// ErrModelTransport marks a non-timeout failure from the model endpoint.
	// It is never retried.
	ErrModelTransport = errors.New("model request failed")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
)

// AppError pairs a sentinel with a human-readable message and an explicit
// HTTP status override.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError around a sentinel.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf is New with printf-style message formatting.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the status code the API layer should
// return for it.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrModelTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrFeedUnavailable),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrModelTransport):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
