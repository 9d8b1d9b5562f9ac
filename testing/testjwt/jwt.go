package testjwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var signingKey = []byte("test-secret-key-for-testing")

// Mint signs a token carrying role and expiring at exp. A zero exp omits the
// claim.
func Mint(t *testing.T, role string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"user_id":  1,
		"username": "admin",
	}
	if role != "" {
		claims["role"] = role
	}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	return MintClaims(t, claims)
}

func MintClaims(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	require.NoError(t, err)
	return token
}

// Valid is a token for role expiring in an hour.
func Valid(t *testing.T, role string) string {
	t.Helper()
	return Mint(t, role, time.Now().Add(time.Hour))
}

// Expired is a token for role that expired a minute ago.
func Expired(t *testing.T, role string) string {
	t.Helper()
	return Mint(t, role, time.Now().Add(-time.Minute))
}
