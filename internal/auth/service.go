package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/apiclient"
	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/session"

	"github.com/go-playground/validator/v10"
)

const DefaultLoginTimeout = 10 * time.Second

type Credentials struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
}

// Result is a completed login.
type Result struct {
	Role  session.Role
	User  session.User
	Home  string
	Shape Shape
}

type Refresher interface {
	Refresh(ctx context.Context, staleToken string) (string, error)
}

type Service struct {
	client       *apiclient.Client
	sessions     *session.Manager
	refresher    Refresher
	validate     *validator.Validate
	loginTimeout time.Duration
	logger       *slog.Logger
}

func NewService(client *apiclient.Client, sessions *session.Manager, refresher Refresher, loginTimeout time.Duration, logger *slog.Logger) *Service {
	if loginTimeout <= 0 {
		loginTimeout = DefaultLoginTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:       client,
		sessions:     sessions,
		refresher:    refresher,
		validate:     apperr.NewValidator(),
		loginTimeout: loginTimeout,
		logger:       logger,
	}
}

// Login authenticates against the backend, stores the session and
// navigates to the role's dashboard.
func (s *Service) Login(ctx context.Context, creds Credentials) (Result, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := s.validate.Struct(creds); err != nil {
		return Result{}, apperr.FromValidator(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.loginTimeout)
	defer cancel()

	if _, err := s.client.Transport().FetchCSRF(ctx); err != nil {
		return Result{}, err
	}

	resp, err := s.client.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.LoginPath,
		Body: map[string]string{
			"email":    creds.Username,
			"password": creds.Password,
		},
	})
	if err != nil {
		var apiErr *apperr.APIError
		if errors.As(err, &apiErr) && rejectedCredentials(apiErr) {
			s.logger.InfoContext(ctx, "login rejected", "status", apiErr.StatusCode)
			return Result{}, apperr.ErrInvalidCredentials
		}
		return Result{}, err
	}

	login, err := DecodeLoginResponse(resp.Body)
	if err != nil {
		s.logger.WarnContext(ctx, "unrecognized login response", "error", err)
		return Result{}, err
	}

	role, err := resolveRole(login)
	if err != nil {
		s.logger.WarnContext(ctx, "login response carries no usable role", "shape", login.Shape.String(), "error", err)
		return Result{}, err
	}

	user := login.User
	user["role"] = string(role)
	if err := s.sessions.Begin(ctx, session.Session{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
		Role:         role,
		User:         user,
	}); err != nil {
		return Result{}, fmt.Errorf("failed to store session: %w", err)
	}

	home := role.HomePath()
	if nav := s.sessions.Navigator(ctx); nav != nil {
		nav.Navigate(home)
	}
	s.logger.InfoContext(ctx, "user logged in", "role", role, "shape", login.Shape.String())

	return Result{Role: role, User: user, Home: home, Shape: login.Shape}, nil
}

func rejectedCredentials(apiErr *apperr.APIError) bool {
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return true
	case http.StatusBadRequest:
		return !apiErr.IsValidation() || len(apiErr.Fields["non_field_errors"]) > 0
	}
	return false
}

// resolveRole takes the role from the response body, falling back to the
// access token claim. A missing or unknown role rejects the login.
func resolveRole(login LoginResponse) (session.Role, error) {
	name := login.RoleName
	if name == "" {
		if claims, err := session.DecodeClaims(login.AccessToken); err == nil {
			name = claims.RoleClaim()
		}
	}
	return session.ParseRole(name)
}

// Logout tells the backend, best effort, then clears the local session. It
// is safe to call without a session.
func (s *Service) Logout(ctx context.Context) error {
	if token := s.sessions.AccessToken(ctx); token != "" {
		transport := s.client.Transport()
		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)
		if csrf := transport.CSRFToken(); csrf != "" {
			header.Set(transport.Options().CSRFHeaderName, csrf)
		}
		body, _ := json.Marshal(map[string]string{"refresh": s.sessions.RefreshToken(ctx)})

		resp, err := transport.Send(ctx, http.MethodPost, apiclient.LogoutPath, nil, body, header)
		switch {
		case err != nil && !apperr.IsCanceled(err):
			s.logger.WarnContext(ctx, "backend logout failed", "error", err)
		case err == nil && !resp.Success():
			s.logger.InfoContext(ctx, "backend logout refused", "status", resp.StatusCode)
		}
	}
	return s.sessions.Clear(context.WithoutCancel(ctx), session.ReasonLogout)
}

// Restore validates a persisted session at startup. An expired access token
// is refreshed once; an unusable session is cleared.
func (s *Service) Restore(ctx context.Context) (session.Snapshot, error) {
	raw := s.sessions.RawAccessToken(ctx)
	if raw == "" {
		return s.sessions.Snapshot(ctx), nil
	}

	claims, err := session.DecodeClaims(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "persisted access token is not decodable", "error", err)
		return session.Snapshot{}, s.sessions.Clear(ctx, session.ReasonInvalidToken)
	}
	if claims.ExpiredAt(s.sessions.Now()) {
		if _, err := s.refresher.Refresh(ctx, raw); err != nil {
			return session.Snapshot{}, err
		}
	}
	if _, err := s.sessions.Role(ctx); err != nil {
		s.logger.WarnContext(ctx, "persisted session has no usable role", "error", err)
		return session.Snapshot{}, s.sessions.Clear(ctx, session.ReasonUnknownRole)
	}

	snap := s.sessions.Snapshot(ctx)
	s.logger.InfoContext(ctx, "session restored", "role", snap.Role, "expires_at", snap.ExpiresAt)
	return snap, nil
}
