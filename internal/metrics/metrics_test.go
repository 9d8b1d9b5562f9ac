package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/kv"
	"github.com/alagappainfotech/student-registration-app/internal/metrics"
	"github.com/alagappainfotech/student-registration-app/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sum(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	hm, err := metrics.NewHTTPMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	hm.RecordRequest(ctx, "GET", "/api/students/", 200, 20*time.Millisecond, nil)
	hm.RecordRequest(ctx, "GET", "/api/students/", 0, time.Second, errors.New("connection refused"))
	hm.RecordRetry(ctx, "/api/students/")
	hm.RecordCSRFFetch(ctx, nil)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sum(t, got["academy_client.http.requests"]))
	assert.Equal(t, int64(1), sum(t, got["academy_client.http.errors"]))
	assert.Equal(t, int64(1), sum(t, got["academy_client.http.retries"]))
	assert.Equal(t, int64(1), sum(t, got["academy_client.csrf.fetches"]))
}

func TestSessionMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	sm, err := metrics.NewSessionMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	sm.RecordRefresh(ctx, 50*time.Millisecond, nil)
	sm.RecordGuardDecision(ctx, "authorized")
	sm.SessionChanged(ctx, session.Event{Kind: session.EventCleared, Reason: session.ReasonLogout})

	got := collect(t, reader)
	assert.Equal(t, int64(1), sum(t, got["academy_client.refresh.exchanges"]))
	assert.Equal(t, int64(1), sum(t, got["academy_client.guard.decisions"]))
	assert.Equal(t, int64(1), sum(t, got["academy_client.session.transitions"]))
}

func TestStoreMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	sm, err := metrics.NewStoreMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	store := kv.Instrument(kv.NewMemory(), "memory", sm)
	require.NoError(t, store.Set(ctx, "access_token", "A"))
	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, kv.ErrNotFound)
	sm.RecordStoreOp(ctx, "redis", "get", time.Millisecond, errors.New("connection refused"))

	got := collect(t, reader)
	hist, ok := got["academy_client.store.operation_duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
	assert.Equal(t, int64(1), sum(t, got["academy_client.store.errors"]))
}

func TestMock_IgnoresRecords(t *testing.T) {
	m := metrics.NewMock()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.HTTP.RecordRequest(ctx, "GET", "/", 200, time.Millisecond, nil)
		m.Session.RecordRefresh(ctx, time.Millisecond, errors.New("boom"))
		m.Session.SessionChanged(ctx, session.Event{Kind: session.EventLogin})
		m.Messaging.RecordPublish(ctx, "session.login", time.Millisecond, nil)
		m.Health.RecordDependencyCheck(ctx, "academy_api", time.Millisecond, nil)
		m.Store.RecordStoreOp(ctx, "memory", "set", time.Millisecond, nil)
	})
	assert.NoError(t, m.Store.RegisterDBStats(nil, nil))

	var nilHTTP *metrics.HTTPMetrics
	assert.NotPanics(t, func() { nilHTTP.RecordRetry(ctx, "/") })
}
