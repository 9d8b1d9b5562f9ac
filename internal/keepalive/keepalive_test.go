package keepalive_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/keepalive"
	"github.com/alagappainfotech/student-registration-app/internal/kv"
	"github.com/alagappainfotech/student-registration-app/internal/navigation"
	"github.com/alagappainfotech/student-registration-app/internal/session"
	"github.com/alagappainfotech/student-registration-app/testing/testjwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls atomic.Int32
	stale atomic.Value
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, staleToken string) (string, error) {
	f.calls.Add(1)
	f.stale.Store(staleToken)
	return "fresh", f.err
}

func setup(t *testing.T, access, refresh string) (*session.Manager, *fakeRefresher, *keepalive.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sessions := session.NewManager(kv.NewMemory(), navigation.NewRecorder("/student"), logger)
	if access != "" {
		require.NoError(t, sessions.Begin(context.Background(), session.Session{
			AccessToken:  access,
			RefreshToken: refresh,
			Role:         session.RoleStudent,
			User:         session.User{"id": 8},
		}))
	}
	r := &fakeRefresher{}
	return sessions, r, keepalive.NewService(keepalive.Single(sessions, r), "", time.Minute, logger)
}

func TestTick_RefreshesNearExpiry(t *testing.T) {
	token := testjwt.Mint(t, "student", time.Now().Add(30*time.Second))
	_, r, svc := setup(t, token, "R")

	assert.Equal(t, 1, svc.Tick(context.Background()))
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, token, r.stale.Load())
}

func TestTick_SkipsFreshToken(t *testing.T) {
	_, r, svc := setup(t, testjwt.Mint(t, "student", time.Now().Add(time.Hour)), "R")

	assert.Zero(t, svc.Tick(context.Background()))
	assert.Zero(t, r.calls.Load())
}

func TestTick_SkipsWithoutSession(t *testing.T) {
	_, r, svc := setup(t, "", "")

	assert.Zero(t, svc.Tick(context.Background()))
	assert.Zero(t, r.calls.Load())
}

func TestTick_SkipsWithoutRefreshToken(t *testing.T) {
	_, r, svc := setup(t, testjwt.Mint(t, "student", time.Now().Add(10*time.Second)), "")

	assert.Zero(t, svc.Tick(context.Background()))
	assert.Zero(t, r.calls.Load())
}

func TestTick_SkipsTokenWithoutExpiry(t *testing.T) {
	_, r, svc := setup(t, testjwt.Mint(t, "student", time.Time{}), "R")

	assert.Zero(t, svc.Tick(context.Background()))
	assert.Zero(t, r.calls.Load())
}

func TestTick_RefreshFailure(t *testing.T) {
	_, r, svc := setup(t, testjwt.Mint(t, "student", time.Now().Add(5*time.Second)), "R")
	r.err = errors.New("session expired")

	assert.Zero(t, svc.Tick(context.Background()))
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestStart_InvalidSchedule(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sessions := session.NewManager(kv.NewMemory(), nil, logger)
	svc := keepalive.NewService(keepalive.Single(sessions, &fakeRefresher{}), "every now and then", 0, logger)

	assert.Error(t, svc.Start())
}

func TestStart_Runs(t *testing.T) {
	token := testjwt.Mint(t, "student", time.Now().Add(5*time.Second))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sessions := session.NewManager(kv.NewMemory(), nil, logger)
	require.NoError(t, sessions.Begin(context.Background(), session.Session{
		AccessToken: token, RefreshToken: "R", Role: session.RoleStudent, User: session.User{"id": 1},
	}))
	r := &fakeRefresher{}
	svc := keepalive.NewService(keepalive.Single(sessions, r), "@every 1s", time.Minute, logger)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestTick_ChecksEverySession(t *testing.T) {
	ctx := context.Background()
	newSession := func(exp time.Time) *session.Manager {
		m := session.NewManager(kv.NewMemory(), nil, nil)
		require.NoError(t, m.Begin(ctx, session.Session{
			AccessToken: testjwt.Mint(t, "faculty", exp), RefreshToken: "R", Role: session.RoleFaculty, User: session.User{"id": 2},
		}))
		return m
	}
	expiring, fresh, alsoExpiring := newSession(time.Now().Add(20*time.Second)), newSession(time.Now().Add(time.Hour)), newSession(time.Now().Add(40*time.Second))

	r := &fakeRefresher{}
	source := func() []keepalive.Target {
		return []keepalive.Target{
			{Sessions: expiring, Refresher: r},
			{Sessions: fresh, Refresher: r},
			{Sessions: alsoExpiring, Refresher: r},
		}
	}
	// A nil logger falls back to the default one.
	svc := keepalive.NewService(source, "", time.Minute, nil)

	assert.Equal(t, 2, svc.Tick(ctx))
	assert.Equal(t, int32(2), r.calls.Load())

	r.err = errors.New("refresh rejected")
	assert.NotPanics(t, func() { assert.Zero(t, svc.Tick(ctx)) })
}
