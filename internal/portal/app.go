package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/apiclient"
	"github.com/alagappainfotech/student-registration-app/internal/config"
	"github.com/alagappainfotech/student-registration-app/internal/db"
	"github.com/alagappainfotech/student-registration-app/internal/events"
	"github.com/alagappainfotech/student-registration-app/internal/guard"
	"github.com/alagappainfotech/student-registration-app/internal/health"
	"github.com/alagappainfotech/student-registration-app/internal/keepalive"
	"github.com/alagappainfotech/student-registration-app/internal/kv"
	"github.com/alagappainfotech/student-registration-app/internal/logger"
	"github.com/alagappainfotech/student-registration-app/internal/metrics"
	"github.com/alagappainfotech/student-registration-app/internal/session"
	"github.com/alagappainfotech/student-registration-app/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
)

type App struct {
	config    *config.Config
	router    chi.Router
	server    *http.Server
	logger    *slog.Logger
	telemetry *telemetry.Telemetry

	store     kv.Store
	database  *bun.DB
	browsers  *browsers
	notifier  *events.Notifier
	keepalive *keepalive.Service
}

// New loads configuration and telemetry and wires the portal.
func New(ctx context.Context) (*App, error) {
	log := logger.NewWithServiceContext(ServiceName, Version)
	slog.SetDefault(log)

	log.InfoContext(ctx, "initializing application")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log.InfoContext(ctx, "config loaded", "env", cfg.Env)

	tel, err := telemetry.Init(ctx, ServiceName, Version, cfg.Env, log)
	if err != nil {
		return nil, err
	}

	app, err := NewWithConfig(ctx, cfg, tel.Metrics, log)
	if err != nil {
		_ = tel.Shutdown(ctx, log)
		return nil, err
	}
	app.telemetry = tel
	return app, nil
}

// NewWithConfig wires the portal from an already loaded configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *slog.Logger) (*App, error) {
	if m == nil {
		m = metrics.NewMock()
	}

	store, database, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	store = kv.Instrument(store, cfg.Store.Backend, m.Store)
	if database != nil {
		if err := m.Store.RegisterDBStats(otel.Meter(ServiceName), database.DB); err != nil {
			log.WarnContext(ctx, "failed to register database pool metrics", "error", err)
		}
	}

	app := &App{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   log,
		store:    store,
		database: database,
	}

	publisher, err := events.New(cfg.Events, log)
	if err != nil {
		log.WarnContext(ctx, "failed to initialize event publisher, events disabled", "backend", cfg.Events.Backend, "error", err)
		publisher = events.Noop{}
	}
	app.notifier = events.NewNotifier(publisher, m.Messaging, log, 0)

	st := &stack{
		api:       cfg.API,
		store:     store,
		metrics:   m,
		observers: []session.Observer{m.Session, app.notifier},
		logger:    log,
	}
	app.browsers = newBrowsers(st, log)

	// public serves the unauthenticated registration form and the backend
	// health check. It never holds credentials.
	public, err := st.build("public", kv.NewMemory())
	if err != nil {
		app.closeResources()
		return nil, err
	}

	if cfg.Keepalive.Enabled {
		app.keepalive = keepalive.NewService(app.browsers.targets, cfg.Keepalive.Schedule, cfg.Keepalive.Threshold(), log)
	}

	secret := []byte(cfg.Portal.SessionSecret)
	if len(secret) == 0 {
		log.WarnContext(ctx, "portal.session_secret not set, portal sessions will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}
	cookies := guard.NewCookieStore(secret, cfg.Portal.SecureCookies)

	checks := []health.Check{
		{Name: "credential_store", Probe: func(ctx context.Context) error {
			_, err := store.Get(ctx, session.KeyUserRole)
			if errors.Is(err, kv.ErrNotFound) {
				return nil
			}
			return err
		}},
		{Name: "academy_api", Probe: func(ctx context.Context) error {
			_, err := public.transport.Send(ctx, http.MethodGet, apiclient.CSRFPath, nil, nil, nil)
			return err
		}},
	}
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name)
	}
	if err := m.Health.RegisterDependencies(otel.Meter(ServiceName), names); err != nil {
		log.WarnContext(ctx, "failed to register dependency metrics", "error", err)
	}

	app.router.Use(middleware.RealIP)
	app.router.Use(middleware.Recoverer)
	app.router.Use(track)

	health.NewHandler(m.Health, log, checks...).RegisterRoutes(app.router)
	NewHandler(app.browsers, public, cookies, log).RegisterRoutes(app.router)

	log.InfoContext(ctx, "application initialized successfully")
	return app, nil
}

func (a *App) Handler() http.Handler { return a.router }

func (a *App) Run() error {
	if a.keepalive != nil {
		if err := a.keepalive.Start(); err != nil {
			return err
		}
	}

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%s", a.config.Portal.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Portal.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfoContext(ctx, "shutting down server")

	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if a.keepalive != nil {
		a.keepalive.Stop()
	}
	errs = append(errs, a.closeResources())
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx, a.logger))
	}
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	if a.notifier != nil {
		errs = append(errs, a.notifier.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	db.Close(a.database)
	return errors.Join(errs...)
}
