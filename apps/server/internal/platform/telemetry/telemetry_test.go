package telemetry_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/tilsley/scmreader/apps/server/internal/platform/telemetry"
)

func TestNew_DisabledIsNoop(t *testing.T) {
	tel, err := telemetry.New(context.Background(), telemetry.Config{Service: "scmreader-test"})
	require.NoError(t, err)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_METRIC_INTERVAL", "")

	cfg, err := telemetry.ConfigFromEnv("scmreader-server")
	require.NoError(t, err)
	assert.Equal(t, telemetry.Config{Service: "scmreader-server", MetricInterval: 10 * time.Second}, cfg)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", "reader-eu")
	t.Setenv("OTEL_METRIC_INTERVAL", "30s")

	cfg, err := telemetry.ConfigFromEnv("scmreader-server")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "reader-eu", cfg.Service)
	assert.Equal(t, 30*time.Second, cfg.MetricInterval)
}

func TestConfigFromEnv_BadInterval(t *testing.T) {
	t.Setenv("OTEL_METRIC_INTERVAL", "soon")
	_, err := telemetry.ConfigFromEnv("scmreader-server")
	require.Error(t, err)
}

func TestReadDurationBuckets_Sorted(t *testing.T) {
	assert.True(t, sort.Float64sAreSorted(telemetry.ReadDurationBuckets))
}

func TestReadDurationView_AppliesBuckets(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithView(telemetry.ReadDurationView()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	h, err := mp.Meter("test").Float64Histogram("scmreader.read.duration", metric.WithUnit("ms"))
	require.NoError(t, err)
	h.Record(context.Background(), 42)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	hist, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, telemetry.ReadDurationBuckets, hist.DataPoints[0].Bounds)
}
