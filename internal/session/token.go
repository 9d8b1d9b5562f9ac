package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the access token payload the client reads. The
// signature is never verified client side; the backend does that.
type Claims struct {
	Role     string `json:"role,omitempty"`
	UserRole string `json:"user_role,omitempty"`
	UserID   any    `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser(jwt.WithJSONNumber())

// DecodeClaims decodes a JWT payload without verifying it.
func DecodeClaims(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

// ExpiredAt reports whether the token is expired at now. Tokens without an
// exp claim never expire client side.
func (c *Claims) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.After(now)
}

// ExpiresWithin reports whether the token expires before now+d.
func (c *Claims) ExpiresWithin(now time.Time, d time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.After(now.Add(d))
}

// RoleClaim returns the role carried in the token, if any.
func (c *Claims) RoleClaim() string {
	if c.Role != "" {
		return c.Role
	}
	return c.UserRole
}

func (c *Claims) UserIDString() string {
	if c.UserID == nil {
		return c.Subject
	}
	return fmt.Sprint(c.UserID)
}
