// Package telemetry registers the global OpenTelemetry providers used by the
// reader spans and metrics.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ReadDurationBuckets are the histogram boundaries, in milliseconds, for
// scmreader.read.duration. Commit lookups and raw reads land in the low
// buckets; archive downloads of large repositories in the high ones.
var ReadDurationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Config selects what New registers.
type Config struct {
	Service        string
	Enabled        bool
	MetricInterval time.Duration
}

// ConfigFromEnv reads OTEL_ENABLED and OTEL_METRIC_INTERVAL (a Go duration,
// default 10s). OTEL_SERVICE_NAME overrides service.
func ConfigFromEnv(service string) (Config, error) {
	cfg := Config{
		Service:        serviceName(service),
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
		MetricInterval: 10 * time.Second,
	}
	if v := os.Getenv("OTEL_METRIC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid OTEL_METRIC_INTERVAL %q", v)
		}
		cfg.MetricInterval = d
	}
	return cfg, nil
}

// Telemetry flushes and closes the providers registered by New. Instrumented
// code uses otel.Tracer and otel.Meter directly.
type Telemetry struct {
	Shutdown func(ctx context.Context) error
}

// New initialises the SDK providers and registers them globally. When
// cfg.Enabled is false the global providers stay noops.
// OTEL_EXPORTER_OTLP_ENDPOINT sets the collector (default localhost:4317).
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{Shutdown: func(context.Context) error { return nil }}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.Service),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	traceExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
			sdkmetric.WithInterval(cfg.MetricInterval),
		)),
		sdkmetric.WithResource(res),
		sdkmetric.WithView(ReadDurationView()),
	)
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
		if len(errs) > 0 {
			return fmt.Errorf("telemetry shutdown errors: %v", errs)
		}
		return nil
	}

	return &Telemetry{Shutdown: shutdown}, nil
}

// ReadDurationView applies ReadDurationBuckets to the reader duration
// histogram.
func ReadDurationView() sdkmetric.View {
	return sdkmetric.NewView(
		sdkmetric.Instrument{Name: "scmreader.read.duration"},
		sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
			Boundaries: ReadDurationBuckets,
		}},
	)
}

func serviceName(fallback string) string {
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		return v
	}
	return fallback
}
