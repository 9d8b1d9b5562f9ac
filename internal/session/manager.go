package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/kv"
	"github.com/alagappainfotech/student-registration-app/internal/navigation"
)

// Manager is the process-wide credential store. Writes are serialized by mu;
// epoch counts logins and clears so a refresh that started before either
// can be discarded.
type Manager struct {
	mu        sync.Mutex
	store     kv.Store
	nav       navigation.Navigator
	logger    *slog.Logger
	now       func() time.Time
	epoch     uint64
	observers []Observer
}

type Option func(*Manager)

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observers = append(m.observers, o) }
}

func NewManager(store kv.Store, nav navigation.Navigator, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:  store,
		nav:    nav,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddObserver registers o after construction.
func (m *Manager) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Navigator returns the navigator bound to ctx, or the manager's default.
// The result may be nil.
func (m *Manager) Navigator(ctx context.Context) navigation.Navigator {
	if n, ok := navigation.FromContext(ctx); ok {
		return n
	}
	return m.nav
}

func (m *Manager) Now() time.Time { return m.now() }

// SetTokens writes the access token and, when non-empty, the refresh token.
func (m *Manager) SetTokens(ctx context.Context, access, refresh string) error {
	m.mu.Lock()
	err := m.writeTokens(ctx, access, refresh)
	epoch := m.epoch
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.notify(ctx, Event{Kind: EventRefreshed, Epoch: epoch})
	return nil
}

// ReplaceTokens stores refreshed tokens unless a login or clear happened
// since epoch was read.
func (m *Manager) ReplaceTokens(ctx context.Context, epoch uint64, access, refresh string) error {
	m.mu.Lock()
	if current := m.epoch; epoch != current {
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "discarding refreshed tokens, session changed",
			"started_epoch", epoch, "current_epoch", current)
		return apperr.ErrSessionChanged
	}
	err := m.writeTokens(ctx, access, refresh)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	ev := Event{Kind: EventRefreshed, Epoch: epoch, Reason: "refresh"}
	if role, err := m.Role(ctx); err == nil {
		ev.Role = role
	}
	if u, ok := m.User(ctx); ok {
		ev.UserID = u.ID()
	}
	m.notify(ctx, ev)
	return nil
}

func (m *Manager) writeTokens(ctx context.Context, access, refresh string) error {
	if access != "" {
		if err := m.store.Set(ctx, KeyAccessToken, access); err != nil {
			return fmt.Errorf("failed to store access token: %w", err)
		}
	}
	if refresh != "" {
		if err := m.store.Set(ctx, KeyRefreshToken, refresh); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
	}
	return nil
}

// SetUser caches the profile and its normalized role. A nil user clears both.
func (m *Manager) SetUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeUser(ctx, u, "")
}

func (m *Manager) writeUser(ctx context.Context, u User, role Role) error {
	if u == nil {
		return m.store.Del(ctx, KeyUser, KeyUserRole)
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := m.store.Set(ctx, KeyUser, string(raw)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}

	if role == "" {
		parsed, err := ParseRole(u.RoleName())
		if err != nil {
			m.logger.WarnContext(ctx, "user profile carries no usable role", "error", err)
			return m.store.Del(ctx, KeyUserRole)
		}
		role = parsed
	}
	return m.store.Set(ctx, KeyUserRole, string(role))
}

// Begin replaces whatever is stored with a fresh login.
func (m *Manager) Begin(ctx context.Context, s Session) error {
	if s.AccessToken == "" {
		return apperr.ErrNoAccessToken
	}
	if !s.Role.Valid() {
		return fmt.Errorf("%w: %q", apperr.ErrUnknownRole, s.Role)
	}
	if s.User == nil {
		s.User = User{}
	}

	m.mu.Lock()
	if err := m.store.Del(ctx, allKeys...); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to reset session: %w", err)
	}
	m.epoch++
	epoch := m.epoch
	err := m.writeTokens(ctx, s.AccessToken, s.RefreshToken)
	if err == nil {
		err = m.writeUser(ctx, s.User, s.Role)
	}
	if err != nil {
		_ = m.store.Del(ctx, allKeys...)
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session started", "role", s.Role, "user_id", s.User.ID())
	m.notify(ctx, Event{Kind: EventLogin, Role: s.Role, UserID: s.User.ID(), Epoch: epoch})
	return nil
}

// Clear removes every session field and navigates to the login view. It is
// safe to call repeatedly.
func (m *Manager) Clear(ctx context.Context, reason string) error {
	_, err := m.clear(ctx, reason, nil)
	return err
}

// ClearEpoch clears the session only if no login or clear happened since
// epoch was read. It reports whether it cleared.
func (m *Manager) ClearEpoch(ctx context.Context, epoch uint64, reason string) (bool, error) {
	return m.clear(ctx, reason, &epoch)
}

func (m *Manager) clear(ctx context.Context, reason string, epoch *uint64) (bool, error) {
	m.mu.Lock()
	if epoch != nil && *epoch != m.epoch {
		m.mu.Unlock()
		return false, nil
	}
	hadSession := m.get(ctx, KeyAccessToken) != "" || m.get(ctx, KeyRefreshToken) != ""
	var (
		role   Role
		userID string
	)
	if hadSession {
		role, _ = m.storedRole(ctx)
		if u, ok := m.user(ctx); ok {
			userID = u.ID()
		}
	}
	err := m.store.Del(ctx, allKeys...)
	m.epoch++
	current := m.epoch
	m.mu.Unlock()

	navigation.ToLogin(m.Navigator(ctx))

	if err != nil {
		m.logger.ErrorContext(ctx, "failed to clear session", "reason", reason, "error", err)
		return true, fmt.Errorf("failed to clear session: %w", err)
	}
	if hadSession {
		m.logger.InfoContext(ctx, "session cleared", "reason", reason)
		m.notify(ctx, Event{Kind: EventCleared, Reason: reason, Role: role, UserID: userID, Epoch: current})
	}
	return true, nil
}

// AccessToken returns the stored token if it decodes and has not expired,
// otherwise "".
func (m *Manager) AccessToken(ctx context.Context) string {
	raw := m.RawAccessToken(ctx)
	if raw == "" {
		return ""
	}
	claims, err := DecodeClaims(raw)
	if err != nil {
		return ""
	}
	if claims.ExpiredAt(m.now()) {
		return ""
	}
	return raw
}

// RawAccessToken returns the stored access token without any checks.
func (m *Manager) RawAccessToken(ctx context.Context) string {
	return m.get(ctx, KeyAccessToken)
}

func (m *Manager) RefreshToken(ctx context.Context) string {
	return m.get(ctx, KeyRefreshToken)
}

func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	return m.AccessToken(ctx) != ""
}

func (m *Manager) User(ctx context.Context) (User, bool) {
	return m.user(ctx)
}

func (m *Manager) user(ctx context.Context) (User, bool) {
	raw := m.get(ctx, KeyUser)
	if raw == "" {
		return nil, false
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u == nil {
		return nil, false
	}
	return u, true
}

// Role re-reads the stored role, falling back to the access token claim.
func (m *Manager) Role(ctx context.Context) (Role, error) {
	return m.storedRole(ctx)
}

func (m *Manager) storedRole(ctx context.Context) (Role, error) {
	if stored := m.get(ctx, KeyUserRole); stored != "" {
		return ParseRole(stored)
	}
	raw := m.get(ctx, KeyAccessToken)
	if raw == "" {
		return "", apperr.ErrNoAccessToken
	}
	claims, err := DecodeClaims(raw)
	if err != nil {
		return "", apperr.ErrRoleMissing
	}
	return ParseRole(claims.RoleClaim())
}

func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

func (m *Manager) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{
		Epoch:           m.Epoch(),
		HasRefreshToken: m.RefreshToken(ctx) != "",
	}
	if raw := m.RawAccessToken(ctx); raw != "" {
		if claims, err := DecodeClaims(raw); err == nil {
			snap.Authenticated = !claims.ExpiredAt(m.now())
			if claims.ExpiresAt != nil {
				snap.ExpiresAt = claims.ExpiresAt.Time
			}
		}
	}
	snap.Role, _ = m.Role(ctx)
	snap.User, _ = m.User(ctx)
	return snap
}

func (m *Manager) get(ctx context.Context, key string) string {
	v, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			m.logger.WarnContext(ctx, "failed to read session field", "key", key, "error", err)
		}
		return ""
	}
	return v
}

func (m *Manager) notify(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = m.now()
	}
	m.mu.Lock()
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()
	for _, o := range observers {
		o.SessionChanged(ctx, ev)
	}
}
