package metrics

import (
	"context"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type SessionMetrics struct {
	refreshes       metric.Int64Counter
	refreshDuration metric.Float64Histogram
	refreshWaiters  metric.Int64Counter
	transitions     metric.Int64Counter
	guardDecisions  metric.Int64Counter
}

var _ session.Observer = (*SessionMetrics)(nil)

func NewSessionMetrics(meter metric.Meter) (*SessionMetrics, error) {
	sm := &SessionMetrics{}

	var err error

	sm.refreshes, err = meter.Int64Counter(
		"academy_client.refresh.exchanges",
		metric.WithDescription("Refresh token exchanges sent to the backend"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, err
	}

	sm.refreshDuration, err = meter.Float64Histogram(
		"academy_client.refresh.duration",
		metric.WithDescription("Time spent exchanging a refresh token"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
		),
	)
	if err != nil {
		return nil, err
	}

	sm.refreshWaiters, err = meter.Int64Counter(
		"academy_client.refresh.waiters",
		metric.WithDescription("Callers that joined an in-flight refresh"),
		metric.WithUnit("{caller}"),
	)
	if err != nil {
		return nil, err
	}

	sm.transitions, err = meter.Int64Counter(
		"academy_client.session.transitions",
		metric.WithDescription("Session logins, refreshes and clears"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	sm.guardDecisions, err = meter.Int64Counter(
		"academy_client.guard.decisions",
		metric.WithDescription("Route guard outcomes"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

func (sm *SessionMetrics) RecordRefresh(ctx context.Context, duration time.Duration, err error) {
	if sm == nil || sm.refreshes == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	sm.refreshes.Add(ctx, 1, attrs)
	sm.refreshDuration.Record(ctx, duration.Seconds(), attrs)
}

func (sm *SessionMetrics) RecordRefreshWaiter(ctx context.Context, shared bool) {
	if sm == nil || sm.refreshWaiters == nil {
		return
	}
	sm.refreshWaiters.Add(ctx, 1, metric.WithAttributes(attribute.Bool("shared", shared)))
}

func (sm *SessionMetrics) RecordGuardDecision(ctx context.Context, outcome string) {
	if sm == nil || sm.guardDecisions == nil {
		return
	}
	sm.guardDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (sm *SessionMetrics) SessionChanged(ctx context.Context, ev session.Event) {
	if sm == nil || sm.transitions == nil {
		return
	}
	sm.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(ev.Kind)),
		attribute.String("reason", ev.Reason),
		attribute.String("role", string(ev.Role)),
	))
}
