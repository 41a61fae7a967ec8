package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/assetpipe"
)

// Metrics holds the OpenTelemetry instruments recorded by asset builds
type Metrics struct {
	BuildsTotal            metric.Int64Counter
	BuildDuration          metric.Float64Histogram
	OutputBytesTotal       metric.Int64Counter
	StyleLintWarningsTotal metric.Int64Counter
	LiveReloadClients      metric.Int64UpDownCounter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates instruments from the global meter provider. Without
// InitTelemetry the global provider is a no-op and recording is free.
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"assetpipe.builds.total",
		metric.WithDescription("Total number of builds and rebuilds"),
		metric.WithUnit("{build}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"assetpipe.builds.duration",
		metric.WithDescription("Duration of builds"),
		metric.WithUnit("ms"),
	)

	m.OutputBytesTotal, _ = meter.Int64Counter(
		"assetpipe.builds.output_bytes.total",
		metric.WithDescription("Bytes written to bundles by successful builds"),
		metric.WithUnit("By"),
	)

	m.StyleLintWarningsTotal, _ = meter.Int64Counter(
		"assetpipe.style_lint.warnings.total",
		metric.WithDescription("Total number of stylesheet lint findings"),
		metric.WithUnit("{warning}"),
	)

	m.LiveReloadClients, _ = meter.Int64UpDownCounter(
		"assetpipe.livereload.clients",
		metric.WithDescription("Number of connected live reload clients"),
		metric.WithUnit("{client}"),
	)

	return m
}
