// Package errors defines the typed errors shared by the HTTP client, the
// sources and the download pipeline.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType classifies a failure
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeMissingKey  ErrorType = "missing_key"
	ErrorTypeNotImage    ErrorType = "not_image"
	ErrorTypeTooSmall    ErrorType = "too_small"
	ErrorTypeLowRes      ErrorType = "low_resolution"
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error carries a type, an optional HTTP status and the wrapped cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	// RetryAfter is the server-requested wait for rate limit responses
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around cause
func Wrap(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Err: cause}
}

// FromStatus maps a non-2xx HTTP status to a typed error
func FromStatus(code int, message string) *Error {
	e := &Error{Code: code, Message: message}
	switch {
	case code == http.StatusTooManyRequests:
		e.Type = ErrorTypeRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Type = ErrorTypeAuth
	case code == http.StatusNotFound:
		e.Type = ErrorTypeNotFound
	case code >= 500:
		e.Type = ErrorTypeServerError
	default:
		e.Type = ErrorTypeUnknown
	}
	return e
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err carries none
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err is a typed error of type t
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRejection reports whether the error type means the image was fetched
// but failed a quality check, as opposed to a transport failure
func IsRejection(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNotImage, ErrorTypeTooSmall, ErrorTypeLowRes:
		return true
	}
	return false
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500
	}
}
