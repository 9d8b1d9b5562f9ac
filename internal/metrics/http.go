package metrics

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics covers requests the client sends to the academy backend.
type HTTPMetrics struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	csrfFetches     metric.Int64Counter
	retries         metric.Int64Counter
}

func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	hm := &HTTPMetrics{}

	var err error

	hm.requests, err = meter.Int64Counter(
		"academy_client.http.requests",
		metric.WithDescription("Total number of backend requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s, 30s
	hm.requestDuration, err = meter.Float64Histogram(
		"academy_client.http.request_duration",
		metric.WithDescription("Backend request round trip time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0,
		),
	)
	if err != nil {
		return nil, err
	}

	hm.requestErrors, err = meter.Int64Counter(
		"academy_client.http.errors",
		metric.WithDescription("Backend requests that received no response"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	hm.csrfFetches, err = meter.Int64Counter(
		"academy_client.csrf.fetches",
		metric.WithDescription("CSRF token fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	hm.retries, err = meter.Int64Counter(
		"academy_client.http.retries",
		metric.WithDescription("Requests resubmitted after a token refresh"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return hm, nil
}

func (hm *HTTPMetrics) RecordRequest(ctx context.Context, method, endpoint string, status int, duration time.Duration, err error) {
	if hm == nil || hm.requests == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.String("status", strconv.Itoa(status)),
	}

	hm.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	hm.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil {
		hm.requestErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("endpoint", endpoint),
		))
	}
}

func (hm *HTTPMetrics) RecordCSRFFetch(ctx context.Context, err error) {
	if hm == nil || hm.csrfFetches == nil {
		return
	}
	hm.csrfFetches.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", err == nil)))
}

func (hm *HTTPMetrics) RecordRetry(ctx context.Context, endpoint string) {
	if hm == nil || hm.retries == nil {
		return
	}
	hm.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}
