package auth

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/session"
)

// Shape identifies which login response layout the backend used.
type Shape int

const (
	ShapeUnknown Shape = iota
	// {tokens: {access, refresh}, user: {...}}
	ShapeNestedTokens
	// {access_token, refresh_token, userRole, user}
	ShapeAccessToken
	// {access, refresh, userRole, user}
	ShapeAccessRefresh
	// {token, refresh_token, userRole, user}
	ShapeSingleToken
)

func (s Shape) String() string {
	switch s {
	case ShapeNestedTokens:
		return "nested_tokens"
	case ShapeAccessToken:
		return "access_token"
	case ShapeAccessRefresh:
		return "access_refresh"
	case ShapeSingleToken:
		return "single_token"
	}
	return "unknown"
}

// LoginResponse is the canonical form of every accepted login body.
type LoginResponse struct {
	Shape        Shape
	AccessToken  string
	RefreshToken string
	// RoleName is the role as the body states it, not yet normalized. Empty
	// when the body carries none.
	RoleName string
	User     session.User
}

type rawTokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type rawLogin struct {
	Tokens       *rawTokens   `json:"tokens"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	Access       string       `json:"access"`
	Refresh      string       `json:"refresh"`
	Token        string       `json:"token"`
	UserRole     string       `json:"userRole"`
	Role         string       `json:"role"`
	User         session.User `json:"user"`
}

// DecodeLoginResponse normalizes a login body. Bodies matching none of the
// known shapes are rejected with apperr.ErrUnrecognizedLogin.
func DecodeLoginResponse(body []byte) (LoginResponse, error) {
	var raw rawLogin
	if err := json.Unmarshal(body, &raw); err != nil {
		return LoginResponse{}, fmt.Errorf("%w: %v", apperr.ErrUnrecognizedLogin, err)
	}

	out := LoginResponse{User: raw.User}
	switch {
	case raw.Tokens != nil && raw.Tokens.Access != "":
		out.Shape = ShapeNestedTokens
		out.AccessToken = raw.Tokens.Access
		out.RefreshToken = raw.Tokens.Refresh
		out.RoleName = firstNonEmpty(raw.User.RoleName(), raw.UserRole, raw.Role)
	case raw.AccessToken != "":
		out.Shape = ShapeAccessToken
		out.AccessToken = raw.AccessToken
		out.RefreshToken = raw.RefreshToken
		out.RoleName = firstNonEmpty(raw.UserRole, raw.Role, raw.User.RoleName())
	case raw.Access != "" && raw.Refresh != "":
		out.Shape = ShapeAccessRefresh
		out.AccessToken = raw.Access
		out.RefreshToken = raw.Refresh
		out.RoleName = firstNonEmpty(raw.UserRole, raw.Role, raw.User.RoleName())
	case raw.Token != "":
		out.Shape = ShapeSingleToken
		out.AccessToken = raw.Token
		out.RefreshToken = raw.RefreshToken
		out.RoleName = firstNonEmpty(raw.UserRole, raw.Role, raw.User.RoleName())
	default:
		return LoginResponse{}, fmt.Errorf("%w: keys %v", apperr.ErrUnrecognizedLogin, keysOf(body))
	}

	if out.User == nil {
		out.User = session.User{}
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func keysOf(body []byte) []string {
	var m map[string]json.RawMessage
	if json.Unmarshal(body, &m) != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
