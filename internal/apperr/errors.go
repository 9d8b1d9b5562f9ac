package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoAccessToken      = errors.New("no authentication token found")
	ErrNoRefreshToken     = errors.New("no refresh token available")
	ErrRoleMissing        = errors.New("role missing from token")
	ErrUnknownRole        = errors.New("unknown role")
	ErrUnrecognizedLogin  = errors.New("invalid response format from server")
	ErrSessionExpired     = errors.New("session expired, please log in again")
	ErrSessionChanged     = errors.New("session changed while refreshing")
	ErrCanceled           = errors.New("request canceled")
	ErrCSRFUnavailable    = errors.New("failed to initialize session, please refresh the page and try again")
	ErrResponseTooLarge   = errors.New("response body too large")
)

// NetworkError means no response was received from the backend.
type NetworkError struct {
	Method  string
	URL     string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s %s: request timed out", e.Method, e.URL)
	}
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PermissionError is a 403 that voided the session.
type PermissionError struct {
	CSRF   bool
	Detail string
}

func (e *PermissionError) Error() string {
	if e.CSRF {
		return "csrf verification failed, please log in again"
	}
	if e.Detail != "" {
		return "permission denied: " + e.Detail
	}
	return "permission denied"
}

// APIError carries a non-2xx response that the session layer does not handle.
type APIError struct {
	StatusCode int
	Detail     string
	Fields     map[string][]string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsValidation reports whether the server returned field-level errors.
func (e *APIError) IsValidation() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return len(e.Fields) > 0
	}
	return false
}

// ValidationError holds client-side field errors, e.g. from the login form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsCanceled reports whether err stems from the caller abandoning the request.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsTimeout reports whether err is a client-side timeout.
func IsTimeout(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Timeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsSessionEnding reports whether err cleared the session.
func IsSessionEnding(err error) bool {
	var permErr *PermissionError
	return errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrNoRefreshToken) ||
		errors.Is(err, ErrNoAccessToken) ||
		errors.As(err, &permErr)
}
