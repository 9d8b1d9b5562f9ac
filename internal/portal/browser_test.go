package portal

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/config"
	"github.com/alagappainfotech/student-registration-app/internal/kv"
	"github.com/alagappainfotech/student-registration-app/internal/metrics"
	"github.com/alagappainfotech/student-registration-app/internal/session"
	"github.com/alagappainfotech/student-registration-app/testing/testbackend"
	"github.com/alagappainfotech/student-registration-app/testing/testjwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStack(t *testing.T, store kv.Store) *stack {
	t.Helper()
	backend := testbackend.New(t)
	return &stack{
		api:     config.APIConfig{BaseURL: backend.URL(), TimeoutSeconds: 5, LoginTimeoutSeconds: 5},
		store:   store,
		metrics: metrics.NewMock(),
		logger:  slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
}

func TestBrowsers_OpenRestoresPersistedSession(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	st := newTestStack(t, store)

	b, err := st.forID("b-1")
	require.NoError(t, err)
	require.NoError(t, b.sessions.Begin(ctx, session.Session{
		AccessToken:  testjwt.Valid(t, "faculty"),
		RefreshToken: "R",
		Role:         session.RoleFaculty,
		User:         session.User{"id": 3},
	}))

	bs := newBrowsers(st, st.logger)
	restored := bs.open(ctx, "b-1")
	require.NotNil(t, restored)
	role, err := restored.sessions.Role(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.RoleFaculty, role)
	assert.Same(t, restored, bs.open(ctx, "b-1"))

	assert.Nil(t, bs.open(ctx, "b-2"))
	assert.Nil(t, bs.open(ctx, ""))

	other, err := st.forID("b-2")
	require.NoError(t, err)
	assert.False(t, other.sessions.IsAuthenticated(ctx))
}

func TestBrowsers_TargetsEvictIdle(t *testing.T) {
	st := newTestStack(t, kv.NewMemory())
	bs := newBrowsers(st, st.logger)
	now := time.Now()
	bs.now = func() time.Time { return now }

	a, err := st.forID("a")
	require.NoError(t, err)
	b, err := st.forID("b")
	require.NoError(t, err)
	assert.Same(t, a, bs.add(a))
	bs.add(b)

	dup, err := st.forID("a")
	require.NoError(t, err)
	assert.Same(t, a, bs.add(dup))
	assert.Len(t, bs.targets(), 2)

	now = now.Add(browserIdle / 2)
	a.touch(now)
	now = now.Add(browserIdle/2 + time.Minute)

	targets := bs.targets()
	require.Len(t, targets, 1)
	assert.Same(t, a.sessions, targets[0].Sessions)

	bs.remove("a")
	assert.Empty(t, bs.targets())
}
