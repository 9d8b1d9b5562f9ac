package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
)

type Metrics struct {
	HTTP      *HTTPMetrics
	Session   *SessionMetrics
	Messaging *MessagingMetrics
	Store     *StoreMetrics
	Health    *HealthMetrics
	logger    *slog.Logger
}

func New(ctx context.Context, serviceName string, logger *slog.Logger) (*Metrics, error) {
	meter := otel.Meter(serviceName)

	httpMetrics, err := NewHTTPMetrics(meter)
	if err != nil {
		return nil, err
	}

	sessionMetrics, err := NewSessionMetrics(meter)
	if err != nil {
		return nil, err
	}

	messaging, err := NewMessagingMetrics(meter)
	if err != nil {
		return nil, err
	}

	store, err := NewStoreMetrics(meter)
	if err != nil {
		return nil, err
	}

	health, err := NewHealthMetrics(meter)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "metrics collectors initialized successfully")

	return &Metrics{
		HTTP:      httpMetrics,
		Session:   sessionMetrics,
		Messaging: messaging,
		Store:     store,
		Health:    health,
		logger:    logger,
	}, nil
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{
		HTTP:      &HTTPMetrics{},
		Session:   &SessionMetrics{},
		Messaging: &MessagingMetrics{},
		Store:     &StoreMetrics{},
		Health:    &HealthMetrics{dependencies: make(map[string]*DependencyStatus)},
	}
}
