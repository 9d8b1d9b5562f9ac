package session

import (
	"context"
	"fmt"
	"time"
)

// Persisted keys. All four are cleared together.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	KeyUserRole     = "user_role"
)

var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyUserRole}

// Clear reasons.
const (
	ReasonLogout        = "logout"
	ReasonRefreshFailed = "refresh_failed"
	ReasonPermission    = "permission_denied"
	ReasonNoToken       = "no_token"
	ReasonInvalidToken  = "invalid_token"
	ReasonUnknownRole   = "unknown_role"
)

// User is the cached profile. It is for display only and never decides
// authorization.
type User map[string]any

func (u User) ID() string {
	if v, ok := u["id"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func (u User) Username() string {
	for _, k := range []string{"username", "email", "name"} {
		if s, ok := u[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// RoleName returns the role the profile claims, unnormalized.
func (u User) RoleName() string {
	for _, k := range []string{"role", "user_role", "userRole"} {
		if s, ok := u[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Session is the canonical login result.
type Session struct {
	AccessToken  string
	RefreshToken string
	Role         Role
	User         User
}

// Snapshot is a read-only view of the stored session.
type Snapshot struct {
	Epoch           uint64
	Authenticated   bool
	HasRefreshToken bool
	Role            Role
	User            User
	ExpiresAt       time.Time
}

type EventKind string

const (
	EventLogin     EventKind = "login"
	EventRefreshed EventKind = "refreshed"
	EventCleared   EventKind = "cleared"
)

// Event describes a session state change.
type Event struct {
	Kind   EventKind
	Reason string
	Role   Role
	UserID string
	Epoch  uint64
	At     time.Time
}

// Observer is notified after the store changed. Implementations must not
// call back into the Manager synchronously.
type Observer interface {
	SessionChanged(ctx context.Context, ev Event)
}

type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) SessionChanged(ctx context.Context, ev Event) { f(ctx, ev) }
