package navigation_test

import (
	"testing"

	"github.com/alagappainfotech/student-registration-app/internal/navigation"

	"github.com/stretchr/testify/assert"
)

func TestToLogin(t *testing.T) {
	nav := navigation.NewRecorder("/admin")
	navigation.ToLogin(nav)
	assert.Equal(t, "/login", nav.CurrentPath())

	// Already on the login view, nothing is recorded.
	navigation.ToLogin(nav)
	assert.Equal(t, []string{"/login"}, nav.History())

	assert.NotPanics(t, func() { navigation.ToLogin(nil) })
}

func TestIsLoginPath(t *testing.T) {
	assert.True(t, navigation.IsLoginPath("/login"))
	assert.True(t, navigation.IsLoginPath("/login?next=%2Fcourses"))
	assert.False(t, navigation.IsLoginPath("/admin"))
}
