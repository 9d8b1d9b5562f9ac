package portal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/academy"
	"github.com/alagappainfotech/student-registration-app/internal/apiclient"
	"github.com/alagappainfotech/student-registration-app/internal/auth"
	"github.com/alagappainfotech/student-registration-app/internal/config"
	"github.com/alagappainfotech/student-registration-app/internal/guard"
	"github.com/alagappainfotech/student-registration-app/internal/keepalive"
	"github.com/alagappainfotech/student-registration-app/internal/kv"
	"github.com/alagappainfotech/student-registration-app/internal/metrics"
	"github.com/alagappainfotech/student-registration-app/internal/refresh"
	"github.com/alagappainfotech/student-registration-app/internal/session"

	"golang.org/x/sync/singleflight"
)

// browserIdle matches the portal cookie lifetime. Browsers idle for longer
// are dropped from memory; their persisted credentials stay in the store.
const browserIdle = time.Hour

// browser is the client stack serving one portal cookie. Each browser has
// its own credential namespace, backend cookie jar and refresh coordinator.
type browser struct {
	id          string
	transport   *apiclient.Transport
	sessions    *session.Manager
	coordinator *refresh.Coordinator
	auth        *auth.Service
	academy     *academy.Client
	guard       *guard.Guard

	mu       sync.Mutex
	lastSeen time.Time
}

func (b *browser) touch(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSeen = now
}

func (b *browser) idleSince(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastSeen)
}

// stack builds browsers over the shared credential store.
type stack struct {
	api       config.APIConfig
	store     kv.Store
	metrics   *metrics.Metrics
	observers []session.Observer
	logger    *slog.Logger
}

func (s *stack) build(id string, store kv.Store) (*browser, error) {
	opts := make([]session.Option, 0, len(s.observers))
	for _, o := range s.observers {
		opts = append(opts, session.WithObserver(o))
	}
	sessions := session.NewManager(store, nil, s.logger, opts...)

	transport, err := apiclient.NewTransport(apiclient.OptionsFromConfig(s.api), s.metrics.HTTP, s.logger)
	if err != nil {
		return nil, err
	}
	coordinator := refresh.New(sessions, transport, s.metrics.Session, s.logger)
	client := apiclient.New(transport, sessions, coordinator, s.metrics.HTTP, s.logger)

	return &browser{
		id:          id,
		transport:   transport,
		sessions:    sessions,
		coordinator: coordinator,
		auth:        auth.NewService(client, sessions, coordinator, s.api.LoginTimeout(), s.logger),
		academy:     academy.NewClient(client, s.logger),
		guard:       guard.New(sessions, coordinator, s.metrics.Session, s.logger),
		lastSeen:    time.Now(),
	}, nil
}

// forID builds the browser whose credentials live under id in the shared
// store.
func (s *stack) forID(id string) (*browser, error) {
	return s.build(id, kv.WithPrefix(s.store, "browser:"+id+":"))
}

// browsers tracks the live browser stacks by portal session id.
type browsers struct {
	stack  *stack
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*browser
	opening singleflight.Group
}

func newBrowsers(s *stack, logger *slog.Logger) *browsers {
	return &browsers{
		stack:   s,
		now:     time.Now,
		logger:  logger,
		entries: make(map[string]*browser),
	}
}

// open returns the browser for id. A browser not held in memory, e.g. after
// a restart, is rebuilt from the store and kept only if its persisted
// session restores.
func (bs *browsers) open(ctx context.Context, id string) *browser {
	if id == "" {
		return nil
	}
	bs.mu.Lock()
	b, ok := bs.entries[id]
	bs.mu.Unlock()
	if ok {
		b.touch(bs.now())
		return b
	}

	v, _, _ := bs.opening.Do(id, func() (any, error) {
		return bs.restore(context.WithoutCancel(ctx), id), nil
	})
	b, _ = v.(*browser)
	return b
}

func (bs *browsers) restore(ctx context.Context, id string) *browser {
	b, err := bs.stack.forID(id)
	if err != nil {
		bs.logger.ErrorContext(ctx, "failed to build browser session", "error", err)
		return nil
	}
	snap, err := b.auth.Restore(ctx)
	if err != nil {
		bs.logger.WarnContext(ctx, "persisted session could not be restored", "error", err)
		return nil
	}
	if !snap.Authenticated {
		return nil
	}
	bs.logger.InfoContext(ctx, "persisted session restored", "role", snap.Role)
	return bs.add(b)
}

// add registers b unless another request got there first, in which case
// the existing entry wins.
func (bs *browsers) add(b *browser) *browser {
	now := bs.now()
	b.touch(now)

	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.evictLocked(now)
	if existing, ok := bs.entries[b.id]; ok {
		return existing
	}
	bs.entries[b.id] = b
	return b
}

func (bs *browsers) remove(id string) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	delete(bs.entries, id)
}

func (bs *browsers) evictLocked(now time.Time) {
	for id, b := range bs.entries {
		if b.idleSince(now) > browserIdle {
			delete(bs.entries, id)
		}
	}
}

// targets lists the browsers the keepalive should refresh. Idle browsers
// are evicted first so an abandoned session is not kept alive forever.
func (bs *browsers) targets() []keepalive.Target {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.evictLocked(bs.now())
	out := make([]keepalive.Target, 0, len(bs.entries))
	for _, b := range bs.entries {
		out = append(out, keepalive.Target{Sessions: b.sessions, Refresher: b.coordinator})
	}
	return out
}
