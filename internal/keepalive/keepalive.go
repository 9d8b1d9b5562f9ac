package keepalive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/session"

	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule  = "@every 30s"
	DefaultThreshold = time.Minute
	tickTimeout      = 30 * time.Second
)

type Refresher interface {
	Refresh(ctx context.Context, staleToken string) (string, error)
}

// Target is one session kept alive together with the coordinator that
// refreshes it.
type Target struct {
	Sessions  *session.Manager
	Refresher Refresher
}

// Source lists the sessions to check on a tick.
type Source func() []Target

// Single keeps one session alive.
func Single(sessions *session.Manager, refresher Refresher) Source {
	return func() []Target {
		return []Target{{Sessions: sessions, Refresher: refresher}}
	}
}

// Service refreshes access tokens shortly before they expire so an idle
// portal does not bounce its users to the login page.
type Service struct {
	cron      *cron.Cron
	source    Source
	threshold time.Duration
	schedule  string
	logger    *slog.Logger
}

func NewService(source Source, schedule string, threshold time.Duration, logger *slog.Logger) *Service {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		source:    source,
		threshold: threshold,
		schedule:  schedule,
		logger:    logger,
	}
}

func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
		defer cancel()
		s.Tick(ctx)
	}); err != nil {
		return fmt.Errorf("invalid keepalive schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("keepalive started", "schedule", s.schedule, "threshold", s.threshold)
	return nil
}

// Stop waits for a running tick to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// Tick refreshes every session whose token expires within the threshold.
// It returns the number of successful refreshes.
func (s *Service) Tick(ctx context.Context) int {
	refreshed := 0
	for _, target := range s.source() {
		if ctx.Err() != nil {
			break
		}
		if s.keepAlive(ctx, target) {
			refreshed++
		}
	}
	return refreshed
}

func (s *Service) keepAlive(ctx context.Context, target Target) bool {
	sessions := target.Sessions
	raw := sessions.RawAccessToken(ctx)
	if raw == "" || sessions.RefreshToken(ctx) == "" {
		return false
	}
	claims, err := session.DecodeClaims(raw)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	if !claims.ExpiresWithin(sessions.Now(), s.threshold) {
		return false
	}

	s.logger.DebugContext(ctx, "access token close to expiry, refreshing", "expires_at", claims.ExpiresAt.Time)
	if _, err := target.Refresher.Refresh(ctx, raw); err != nil {
		if !apperr.IsCanceled(err) {
			s.logger.WarnContext(ctx, "keepalive refresh failed", "error", err)
		}
		return false
	}
	return true
}
