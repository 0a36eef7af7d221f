// Package telemetry wires harvest metrics through the OpenTelemetry SDK to a
// Prometheus registry exposed by the serve command.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the harvester's instruments. A nil *Metrics is valid and
// records nothing, so the pipeline never has to branch on telemetry being
// configured.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	pagesFetched     metric.Int64Counter
	pagesFailed      metric.Int64Counter
	recordsPersisted metric.Int64Counter
	recordsDropped   metric.Int64Counter
	fetchDuration    metric.Float64Histogram
}

// New creates the metric pipeline: otel meter provider -> prometheus
// exporter -> local registry.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("github.com/universe-mcp/harvester")

	m := &Metrics{registry: registry, provider: provider}

	if m.pagesFetched, err = meter.Int64Counter("harvester_pages_fetched_total",
		metric.WithDescription("Source pages fetched successfully")); err != nil {
		return nil, err
	}
	if m.pagesFailed, err = meter.Int64Counter("harvester_pages_failed_total",
		metric.WithDescription("Source pages that terminally failed")); err != nil {
		return nil, err
	}
	if m.recordsPersisted, err = meter.Int64Counter("harvester_records_persisted_total",
		metric.WithDescription("Records upserted into the store")); err != nil {
		return nil, err
	}
	if m.recordsDropped, err = meter.Int64Counter("harvester_records_dropped_total",
		metric.WithDescription("Records dropped for missing required fields")); err != nil {
		return nil, err
	}
	if m.fetchDuration, err = meter.Float64Histogram("harvester_fetch_duration_seconds",
		metric.WithDescription("Duration of page fetches including retries")); err != nil {
		return nil, err
	}

	return m, nil
}

func categoryAttr(category string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("category", category))
}

func (m *Metrics) PageFetched(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.pagesFetched.Add(ctx, 1, categoryAttr(category))
}

func (m *Metrics) PageFailed(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.pagesFailed.Add(ctx, 1, categoryAttr(category))
}

func (m *Metrics) RecordsPersisted(ctx context.Context, category string, n int64) {
	if m == nil {
		return
	}
	m.recordsPersisted.Add(ctx, n, categoryAttr(category))
}

func (m *Metrics) RecordDropped(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.recordsDropped.Add(ctx, 1, categoryAttr(category))
}

func (m *Metrics) ObserveFetchDuration(ctx context.Context, category string, seconds float64) {
	if m == nil {
		return
	}
	m.fetchDuration.Record(ctx, seconds, categoryAttr(category))
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
