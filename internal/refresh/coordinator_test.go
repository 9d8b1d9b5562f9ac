package refresh_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/kv"
	"github.com/alagappainfotech/student-registration-app/internal/metrics"
	"github.com/alagappainfotech/student-registration-app/internal/navigation"
	"github.com/alagappainfotech/student-registration-app/internal/refresh"
	"github.com/alagappainfotech/student-registration-app/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchanger struct {
	csrfCalls     atomic.Int32
	exchangeCalls atomic.Int32
	started       chan struct{}
	release       chan struct{}

	access  string
	rotated string
	err     error
	csrfErr error
}

func newFakeExchanger() *fakeExchanger {
	return &fakeExchanger{
		started: make(chan struct{}, 16),
		access:  "A2",
	}
}

func (f *fakeExchanger) FetchCSRF(ctx context.Context) (string, error) {
	f.csrfCalls.Add(1)
	return "csrf", f.csrfErr
}

func (f *fakeExchanger) Exchange(ctx context.Context, refreshToken string) (string, string, error) {
	f.exchangeCalls.Add(1)
	f.started <- struct{}{}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return "", "", f.err
	}
	return f.access, f.rotated, nil
}

func setup(t *testing.T, exchanger refresh.Exchanger) (*refresh.Coordinator, *session.Manager, *navigation.Recorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	nav := navigation.NewRecorder("/faculty")
	sessions := session.NewManager(kv.NewMemory(), nav, logger)
	require.NoError(t, sessions.Begin(context.Background(), session.Session{
		AccessToken:  "A1",
		RefreshToken: "R1",
		Role:         session.RoleFaculty,
		User:         session.User{"id": 9},
	}))
	return refresh.New(sessions, exchanger, metrics.NewMock().Session, logger), sessions, nav
}

func TestCoordinator_Refresh(t *testing.T) {
	ex := newFakeExchanger()
	ex.rotated = "R2"
	c, sessions, _ := setup(t, ex)

	ctx := context.Background()
	token, err := c.Refresh(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "A2", token)
	assert.Equal(t, "A2", sessions.RawAccessToken(ctx))
	assert.Equal(t, "R2", sessions.RefreshToken(ctx))
	assert.Equal(t, int32(1), ex.csrfCalls.Load())
	assert.Equal(t, int32(1), ex.exchangeCalls.Load())
}

func TestCoordinator_SingleFlight(t *testing.T) {
	ex := newFakeExchanger()
	ex.release = make(chan struct{})
	c, _, _ := setup(t, ex)

	const callers = 10
	var (
		wg     sync.WaitGroup
		tokens = make([]string, callers)
		errs   = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = c.Refresh(context.Background(), "A1")
		}(i)
	}

	<-ex.started
	time.Sleep(50 * time.Millisecond)
	close(ex.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		assert.NoError(t, errs[i])
		assert.Equal(t, "A2", tokens[i])
	}
	assert.Equal(t, int32(1), ex.exchangeCalls.Load())
}

func TestCoordinator_FailureReleasesEveryCaller(t *testing.T) {
	ex := newFakeExchanger()
	ex.release = make(chan struct{})
	ex.err = errors.New("token is blacklisted")
	c, sessions, nav := setup(t, ex)

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Refresh(context.Background(), "A1")
		}(i)
	}

	<-ex.started
	time.Sleep(50 * time.Millisecond)
	close(ex.release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	}
	ctx := context.Background()
	assert.Empty(t, sessions.RawAccessToken(ctx))
	assert.Empty(t, sessions.RefreshToken(ctx))
	assert.Equal(t, "/login", nav.CurrentPath())
	assert.Equal(t, int32(1), ex.exchangeCalls.Load())
}

func TestCoordinator_NoRefreshToken(t *testing.T) {
	ex := newFakeExchanger()
	c, sessions, nav := setup(t, ex)

	ctx := context.Background()
	require.NoError(t, sessions.Clear(ctx, session.ReasonLogout))
	require.NoError(t, sessions.SetTokens(ctx, "A1", ""))
	nav.Navigate("/faculty")

	_, err := c.Refresh(ctx, "A1")
	assert.ErrorIs(t, err, apperr.ErrNoRefreshToken)
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	assert.Equal(t, int32(0), ex.csrfCalls.Load())
	assert.Equal(t, int32(0), ex.exchangeCalls.Load())
	assert.Empty(t, sessions.RawAccessToken(ctx))
	assert.Equal(t, "/login", nav.CurrentPath())
}

func TestCoordinator_CSRFFailure(t *testing.T) {
	ex := newFakeExchanger()
	ex.csrfErr = apperr.ErrCSRFUnavailable
	c, sessions, _ := setup(t, ex)

	_, err := c.Refresh(context.Background(), "A1")
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	assert.ErrorIs(t, err, apperr.ErrCSRFUnavailable)
	assert.Equal(t, int32(0), ex.exchangeCalls.Load())
	assert.Empty(t, sessions.RawAccessToken(context.Background()))
}

func TestCoordinator_LogoutDuringRefresh(t *testing.T) {
	ex := newFakeExchanger()
	ex.release = make(chan struct{})
	c, sessions, _ := setup(t, ex)

	ctx := context.Background()
	errc := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx, "A1")
		errc <- err
	}()

	<-ex.started
	require.NoError(t, sessions.Clear(ctx, session.ReasonLogout))
	close(ex.release)

	assert.ErrorIs(t, <-errc, apperr.ErrSessionChanged)
	assert.Empty(t, sessions.RawAccessToken(ctx))
	assert.Empty(t, sessions.RefreshToken(ctx))
}

func TestCoordinator_FailureDoesNotClearNewerLogin(t *testing.T) {
	ex := newFakeExchanger()
	ex.release = make(chan struct{})
	ex.err = errors.New("refresh rejected")
	c, sessions, _ := setup(t, ex)

	ctx := context.Background()
	errc := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx, "A1")
		errc <- err
	}()

	<-ex.started
	require.NoError(t, sessions.Begin(ctx, session.Session{
		AccessToken:  "B1",
		RefreshToken: "S1",
		Role:         session.RoleStudent,
		User:         session.User{"id": 4},
	}))
	close(ex.release)

	assert.ErrorIs(t, <-errc, apperr.ErrSessionExpired)
	assert.Equal(t, "B1", sessions.RawAccessToken(ctx))
	assert.Equal(t, "S1", sessions.RefreshToken(ctx))
}

func TestCoordinator_CallerCancel(t *testing.T) {
	ex := newFakeExchanger()
	ex.release = make(chan struct{})
	c, sessions, _ := setup(t, ex)

	ctx, cancel := context.WithCancel(context.Background())
	canceled := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx, "A1")
		canceled <- err
	}()
	<-ex.started

	waiting := make(chan string, 1)
	go func() {
		token, _ := c.Refresh(context.Background(), "A1")
		waiting <- token
	}()

	cancel()
	err := <-canceled
	assert.True(t, apperr.IsCanceled(err), "got %v", err)

	close(ex.release)
	assert.Equal(t, "A2", <-waiting)
	assert.Equal(t, "A2", sessions.RawAccessToken(context.Background()))
	assert.Equal(t, int32(1), ex.exchangeCalls.Load())
}

func TestCoordinator_StaleTokenAlreadyReplaced(t *testing.T) {
	ex := newFakeExchanger()
	c, sessions, _ := setup(t, ex)

	ctx := context.Background()
	require.NoError(t, sessions.SetTokens(ctx, "A-new", ""))

	token, err := c.Refresh(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "A-new", token)
	assert.Equal(t, int32(0), ex.exchangeCalls.Load())
}
