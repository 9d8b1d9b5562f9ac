package session_test

import (
	"testing"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want session.Role
	}{
		{"admin", session.RoleAdmin},
		{"ADMIN", session.RoleAdmin},
		{"Administrator", session.RoleAdmin},
		{"superuser", session.RoleAdmin},
		{" faculty ", session.RoleFaculty},
		{"teacher", session.RoleFaculty},
		{"Instructor", session.RoleFaculty},
		{"student", session.RoleStudent},
		{"learner", session.RoleStudent},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := session.ParseRole(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := session.ParseRole("")
	assert.ErrorIs(t, err, apperr.ErrRoleMissing)

	_, err = session.ParseRole("janitor")
	assert.ErrorIs(t, err, apperr.ErrUnknownRole)
}

func TestRole_HomePath(t *testing.T) {
	assert.Equal(t, "/admin", session.RoleAdmin.HomePath())
	assert.Equal(t, "/faculty", session.RoleFaculty.HomePath())
	assert.Equal(t, "/student", session.RoleStudent.HomePath())
	assert.Equal(t, "/login", session.Role("").HomePath())
	assert.Equal(t, "/api/dashboard/student/", session.RoleStudent.DashboardPath())
}
