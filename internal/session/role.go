package session

import (
	"fmt"
	"strings"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/navigation"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

var roleAliases = map[string]Role{
	"admin":         RoleAdmin,
	"administrator": RoleAdmin,
	"superuser":     RoleAdmin,
	"faculty":       RoleFaculty,
	"teacher":       RoleFaculty,
	"instructor":    RoleFaculty,
	"student":       RoleStudent,
	"learner":       RoleStudent,
}

// ParseRole normalizes a role name from a token or response body.
func ParseRole(s string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return "", apperr.ErrRoleMissing
	}
	role, ok := roleAliases[normalized]
	if !ok {
		return "", fmt.Errorf("%w: %q", apperr.ErrUnknownRole, normalized)
	}
	return role, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return true
	}
	return false
}

// HomePath is the role's own dashboard route.
func (r Role) HomePath() string {
	switch r {
	case RoleAdmin:
		return navigation.AdminPath
	case RoleFaculty:
		return navigation.FacultyPath
	case RoleStudent:
		return navigation.StudentPath
	}
	return navigation.LoginPath
}

// DashboardPath is the API path of the role's aggregate stats.
func (r Role) DashboardPath() string {
	return "/api/dashboard/" + string(r) + "/"
}

func (r Role) String() string { return string(r) }
