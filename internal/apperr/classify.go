package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindNetwork        Kind = "network"
	KindSessionExpired Kind = "session_expired"
	KindPermission     Kind = "permission"
	KindValidation     Kind = "validation"
	KindCanceled       Kind = "canceled"
	KindUnknown        Kind = "unknown"
)

// Classify maps an error returned by the client stack onto the taxonomy
// the portal uses to pick a response.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if IsCanceled(err) {
		return KindCanceled
	}

	var (
		netErr   *NetworkError
		permErr  *PermissionError
		apiErr   *APIError
		validErr *ValidationError
	)
	switch {
	case errors.As(err, &validErr):
		return KindValidation
	case errors.As(err, &permErr):
		return KindPermission
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrNoRefreshToken), errors.Is(err, ErrSessionChanged):
		return KindSessionExpired
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrNoAccessToken),
		errors.Is(err, ErrRoleMissing), errors.Is(err, ErrUnknownRole):
		return KindAuthentication
	case errors.As(err, &netErr), errors.Is(err, ErrCSRFUnavailable):
		return KindNetwork
	case errors.As(err, &apiErr):
		if apiErr.IsValidation() {
			return KindValidation
		}
		if apiErr.StatusCode == http.StatusUnauthorized {
			return KindAuthentication
		}
	}
	return KindUnknown
}

// Recoverable reports whether the user can fix the condition without
// logging in again.
func Recoverable(k Kind) bool {
	switch k {
	case KindNetwork, KindValidation, KindCanceled:
		return true
	}
	return false
}
