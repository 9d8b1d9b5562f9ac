package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const exportInterval = 10 * time.Second

// InitMeterProvider exports metrics over OTLP/gRPC. It returns nil when
// OTEL_EXPORTER_OTLP_ENDPOINT is unset; instruments then stay no-ops.
func InitMeterProvider(ctx context.Context, res *resource.Resource, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		logger.InfoContext(ctx, "OTEL_EXPORTER_OTLP_ENDPOINT not set, metrics export disabled")
		return nil, nil
	}

	logger.InfoContext(ctx, "initializing OTel metrics", "endpoint", endpoint)

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

type Telemetry struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	Metrics        *metrics.Metrics
}

// Init sets up the global providers and the client's metric instruments.
// The tracer provider has no exporter: it exists so request spans carry
// trace ids into the logs.
func Init(ctx context.Context, serviceName, serviceVersion, env string, logger *slog.Logger) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			semconv.DeploymentEnvironment(env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	mp, err := InitMeterProvider(ctx, res, logger)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	m, err := metrics.New(ctx, serviceName, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	meter := otel.Meter(serviceName)
	if err := m.Health.RegisterServiceInfo(meter, serviceName, serviceVersion, env); err != nil {
		logger.WarnContext(ctx, "failed to register service info", "error", err)
	}

	return &Telemetry{
		MeterProvider:  mp,
		TracerProvider: tp,
		Metrics:        m,
	}, nil
}

func (t *Telemetry) Shutdown(ctx context.Context, logger *slog.Logger) error {
	logger.InfoContext(ctx, "shutting down OTel providers")
	var errs []error
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
