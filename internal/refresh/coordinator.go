package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/metrics"
	"github.com/alagappainfotech/student-registration-app/internal/session"

	"golang.org/x/sync/singleflight"
)

const flightKey = "refresh"

// Exchanger performs the network side of a refresh.
type Exchanger interface {
	FetchCSRF(ctx context.Context) (string, error)
	Exchange(ctx context.Context, refreshToken string) (access, refresh string, err error)
}

// Coordinator makes sure at most one refresh exchange is in flight. Callers
// arriving while one runs wait for its result instead of starting another.
type Coordinator struct {
	sessions  *session.Manager
	exchanger Exchanger
	group     singleflight.Group
	metrics   *metrics.SessionMetrics
	logger    *slog.Logger
}

func New(sessions *session.Manager, exchanger Exchanger, m *metrics.SessionMetrics, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		sessions:  sessions,
		exchanger: exchanger,
		metrics:   m,
		logger:    logger,
	}
}

// Refresh returns a fresh access token. staleToken is the token the caller
// saw rejected; when the store already holds a different usable token it is
// returned without a new exchange.
//
// The exchange runs detached from ctx so one caller giving up does not fail
// the others; ctx only bounds how long this caller waits.
func (c *Coordinator) Refresh(ctx context.Context, staleToken string) (string, error) {
	if current, ok := c.replaced(ctx, staleToken); ok {
		return current, nil
	}

	ch := c.group.DoChan(flightKey, func() (any, error) {
		// A flight that finished between the check above and DoChan has
		// already stored a new token.
		if current, ok := c.replaced(ctx, staleToken); ok {
			return current, nil
		}
		return c.run(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &apperr.NetworkError{Method: http.MethodPost, URL: "token refresh", Timeout: true, Err: ctx.Err()}
		}
		return "", fmt.Errorf("%w: waiting for token refresh", apperr.ErrCanceled)
	case res := <-ch:
		c.metrics.RecordRefreshWaiter(ctx, res.Shared)
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Coordinator) run(ctx context.Context) (string, error) {
	epoch := c.sessions.Epoch()

	refreshToken := c.sessions.RefreshToken(ctx)
	if refreshToken == "" {
		return "", c.fail(ctx, epoch, apperr.ErrNoRefreshToken)
	}

	start := time.Now()
	if _, err := c.exchanger.FetchCSRF(ctx); err != nil {
		c.metrics.RecordRefresh(ctx, time.Since(start), err)
		return "", c.fail(ctx, epoch, err)
	}

	access, rotated, err := c.exchanger.Exchange(ctx, refreshToken)
	c.metrics.RecordRefresh(ctx, time.Since(start), err)
	if err != nil {
		return "", c.fail(ctx, epoch, err)
	}

	if err := c.sessions.ReplaceTokens(ctx, epoch, access, rotated); err != nil {
		if errors.Is(err, apperr.ErrSessionChanged) {
			return "", err
		}
		return "", c.fail(ctx, epoch, err)
	}

	c.logger.InfoContext(ctx, "access token refreshed",
		"rotated", rotated != "",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return access, nil
}

// fail clears the session the refresh started under and wraps cause as a
// session expiry.
func (c *Coordinator) fail(ctx context.Context, epoch uint64, cause error) error {
	c.logger.WarnContext(ctx, "token refresh failed, ending session", "error", cause)
	if _, err := c.sessions.ClearEpoch(ctx, epoch, session.ReasonRefreshFailed); err != nil {
		c.logger.ErrorContext(ctx, "failed to clear session after refresh failure", "error", err)
	}
	return fmt.Errorf("%w: %w", apperr.ErrSessionExpired, cause)
}

// replaced returns the stored access token when it differs from staleToken
// and has not expired.
func (c *Coordinator) replaced(ctx context.Context, staleToken string) (string, bool) {
	current := c.sessions.RawAccessToken(ctx)
	if staleToken == "" || current == "" || current == staleToken {
		return "", false
	}
	if claims, err := session.DecodeClaims(current); err == nil && claims.ExpiredAt(c.sessions.Now()) {
		return "", false
	}
	return current, true
}
