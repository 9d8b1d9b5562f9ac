package metrics

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StoreMetrics covers the credential store backend and, for the sql
// backend, its connection pool.
type StoreMetrics struct {
	opDuration       metric.Float64Histogram
	opErrors         metric.Int64Counter
	connectionsOpen  metric.Int64ObservableGauge
	connectionsInUse metric.Int64ObservableGauge
	connectionsIdle  metric.Int64ObservableGauge
}

func NewStoreMetrics(meter metric.Meter) (*StoreMetrics, error) {
	sm := &StoreMetrics{}

	var err error
	// Buckets: 100µs to 1s; local backends answer in microseconds, remote
	// ones in milliseconds.
	sm.opDuration, err = meter.Float64Histogram(
		"academy_client.store.operation_duration",
		metric.WithDescription("Credential store operation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 1.0),
	)
	if err != nil {
		return nil, err
	}

	sm.opErrors, err = meter.Int64Counter(
		"academy_client.store.errors",
		metric.WithDescription("Credential store operation failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	sm.connectionsOpen, err = meter.Int64ObservableGauge(
		"db.connections.open",
		metric.WithDescription("Current number of open database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	sm.connectionsInUse, err = meter.Int64ObservableGauge(
		"db.connections.in_use",
		metric.WithDescription("Current number of in-use database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	sm.connectionsIdle, err = meter.Int64ObservableGauge(
		"db.connections.idle",
		metric.WithDescription("Current number of idle database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordStoreOp records one Get, Set or Del against backend.
func (sm *StoreMetrics) RecordStoreOp(ctx context.Context, backend, op string, duration time.Duration, err error) {
	if sm == nil || sm.opDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("operation", op),
	)
	sm.opDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		sm.opErrors.Add(ctx, 1, attrs)
	}
}

// RegisterDBStats observes the pool of db on every collection.
func (sm *StoreMetrics) RegisterDBStats(meter metric.Meter, db *sql.DB) error {
	if sm == nil || sm.connectionsOpen == nil || db == nil {
		return nil
	}
	_, err := meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			stats := db.Stats()
			observer.ObserveInt64(sm.connectionsOpen, int64(stats.OpenConnections))
			observer.ObserveInt64(sm.connectionsInUse, int64(stats.InUse))
			observer.ObserveInt64(sm.connectionsIdle, int64(stats.Idle))
			return nil
		},
		sm.connectionsOpen,
		sm.connectionsInUse,
		sm.connectionsIdle,
	)
	return err
}
