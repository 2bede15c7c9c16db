package bookstack

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError means the API rejected the token pair. Polling must stop until
// the credentials change.
type AuthError struct {
	Endpoint string
}

func (e *AuthError) Error() string {
	if e == nil || e.Endpoint == "" {
		return "invalid API credentials"
	}
	return fmt.Sprintf("invalid API credentials (%s)", e.Endpoint)
}

// ConnectionError wraps transport failures: DNS, refused connections,
// timeouts and unreadable response bodies.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "connection error"
	}
	return fmt.Sprintf("connection error for %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusError is any non-2xx response that has no more specific meaning.
type StatusError struct {
	Method   string
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "unexpected status"
	}
	return fmt.Sprintf("API error %d for %s %s", e.Status, e.Method, e.Endpoint)
}

// ValidationError is a rejected input. It is raised locally before any
// request, or built from a 422 response whose body is kept in Body.
type ValidationError struct {
	Message string
	Body    string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	if e.Body == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Body)
}

// NewValidationError builds a local validation rejection.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports a 404 from the API.
func IsNotFound(err error) bool {
	var target *StatusError
	return errors.As(err, &target) && target.Status == http.StatusNotFound
}

// IsUnexpectedStatus reports a non-2xx response other than 401 and 422.
func IsUnexpectedStatus(err error) bool {
	var target *StatusError
	return errors.As(err, &target)
}
