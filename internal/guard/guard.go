package guard

import (
	"context"
	"log/slog"
	"net/url"
	"slices"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/metrics"
	"github.com/alagappainfotech/student-registration-app/internal/navigation"
	"github.com/alagappainfotech/student-registration-app/internal/session"
)

type Outcome string

const (
	Authorized       Outcome = "authorized"
	RedirectLogin    Outcome = "redirect_login"
	RedirectRoleHome Outcome = "redirect_role_home"
)

// Decision is the terminal state of one guard evaluation.
type Decision struct {
	Outcome Outcome
	// Location is where to navigate for the redirect outcomes.
	Location string
	// From is the attempted location, kept for the post-login return.
	From string
	Role session.Role
}

func (d Decision) Authorized() bool { return d.Outcome == Authorized }

type Refresher interface {
	Refresh(ctx context.Context, staleToken string) (string, error)
}

type Guard struct {
	sessions  *session.Manager
	refresher Refresher
	metrics   *metrics.SessionMetrics
	logger    *slog.Logger
}

func New(sessions *session.Manager, refresher Refresher, m *metrics.SessionMetrics, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		sessions:  sessions,
		refresher: refresher,
		metrics:   m,
		logger:    logger,
	}
}

// Evaluate decides whether the current session may open location. With no
// roles any authenticated user is admitted. The role is re-read from the
// store on every call.
func (g *Guard) Evaluate(ctx context.Context, location string, roles ...session.Role) Decision {
	d := g.evaluate(ctx, location, roles)
	g.metrics.RecordGuardDecision(ctx, string(d.Outcome))
	return d
}

func (g *Guard) evaluate(ctx context.Context, location string, roles []session.Role) Decision {
	raw := g.sessions.RawAccessToken(ctx)
	_, hasUser := g.sessions.User(ctx)
	if raw == "" || !hasUser {
		return toLogin(location)
	}

	claims, err := session.DecodeClaims(raw)
	if err != nil {
		g.logger.WarnContext(ctx, "stored access token is not decodable", "error", err)
		g.clear(ctx, session.ReasonInvalidToken)
		return toLogin(location)
	}

	if claims.ExpiredAt(g.sessions.Now()) {
		if _, err := g.refresher.Refresh(ctx, raw); err != nil {
			if !apperr.IsCanceled(err) {
				g.clear(ctx, session.ReasonRefreshFailed)
			}
			return toLogin(location)
		}
	}

	role, err := g.sessions.Role(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "session has no usable role", "error", err)
		g.clear(ctx, session.ReasonUnknownRole)
		return toLogin(location)
	}

	if len(roles) > 0 && !slices.Contains(roles, role) {
		return Decision{
			Outcome:  RedirectRoleHome,
			Location: role.HomePath(),
			From:     location,
			Role:     role,
		}
	}
	return Decision{Outcome: Authorized, Location: location, Role: role}
}

func (g *Guard) clear(ctx context.Context, reason string) {
	if err := g.sessions.Clear(ctx, reason); err != nil {
		g.logger.ErrorContext(ctx, "failed to clear session", "reason", reason, "error", err)
	}
}

func toLogin(from string) Decision {
	return Decision{
		Outcome:  RedirectLogin,
		Location: LoginURL(from),
		From:     from,
	}
}

// LoginURL is the login route carrying from as the post-login target.
func LoginURL(from string) string {
	if from == "" || navigation.IsLoginPath(from) {
		return navigation.LoginPath
	}
	return navigation.LoginPath + "?next=" + url.QueryEscape(from)
}

// SafeNext returns next if it is a local path that is not the login view,
// otherwise "".
func SafeNext(next string) string {
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || len(u.Path) == 0 || u.Path[0] != '/' {
		return ""
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return ""
	}
	if navigation.IsLoginPath(u.Path) {
		return ""
	}
	return next
}
