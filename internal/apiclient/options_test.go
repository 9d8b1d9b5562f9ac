package apiclient_test

import (
	"testing"

	"github.com/alagappainfotech/student-registration-app/internal/apiclient"

	"github.com/stretchr/testify/assert"
)

func TestOptions_IsPublic(t *testing.T) {
	opts := apiclient.Options{
		PublicEndpoints: []string{"/api/login/", "/api/token/refresh/", "/api/registration-request/", "/api/csrf/"},
	}

	tests := []struct {
		target string
		want   bool
	}{
		{"/api/login/", true},
		{"/api/login", true},
		{"http://localhost:8000/api/login/?next=/admin", true},
		{"/v1/api/token/refresh/", true},
		{"/api/csrf", true},
		{"/api/registration-request/", true},
		{"/api/registration-requests/", false},
		{"/api/registration-requests/4/approve/", false},
		{"/api/login-history/", false},
		{"/api/students/", false},
		{"/", false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, opts.IsPublic(tt.target))
		})
	}
}
