package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OData-specific metric instruments.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requestCount    metric.Int64Counter
	resultCount     metric.Int64Histogram
	batchSize       metric.Int64Histogram
	errorCount      metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with the given MeterProvider.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	// Note: errors from meter instrument creation are unlikely in practice
	// and would only occur with invalid parameters. We use explicit checks
	// to satisfy the linter while continuing with partial metrics on error.
	var err error

	m.requestDuration, err = meter.Float64Histogram(
		"odata.client.request.duration",
		metric.WithDescription("Duration of OData requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.requestDuration, _ = meter.Float64Histogram("odata.client.request.duration")
	}

	m.requestCount, err = meter.Int64Counter(
		"odata.client.request.count",
		metric.WithDescription("Total number of OData requests sent"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.requestCount, _ = meter.Int64Counter("odata.client.request.count")
	}

	m.resultCount, err = meter.Int64Histogram(
		"odata.client.result.count",
		metric.WithDescription("Number of entries received per page"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		m.resultCount, _ = meter.Int64Histogram("odata.client.result.count")
	}

	m.batchSize, err = meter.Int64Histogram(
		"odata.client.batch.size",
		metric.WithDescription("Number of requests in a batch operation"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.batchSize, _ = meter.Int64Histogram("odata.client.batch.size")
	}

	m.errorCount, err = meter.Int64Counter(
		"odata.client.error.count",
		metric.WithDescription("Total number of failed OData requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.errorCount, _ = meter.Int64Counter("odata.client.error.count")
	}

	return m
}

// RecordRequest records metrics for a completed request.
func (m *Metrics) RecordRequest(ctx context.Context, entitySet, operation string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		EntitySetAttr(entitySet),
		OperationAttr(operation),
		attribute.Int("http.status_code", statusCode),
	)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.requestCount.Add(ctx, 1, attrs)
}

// RecordResultCount records the number of entries received in one page.
func (m *Metrics) RecordResultCount(ctx context.Context, entitySet string, count int64) {
	attrs := metric.WithAttributes(EntitySetAttr(entitySet))
	m.resultCount.Record(ctx, count, attrs)
}

// RecordBatchSize records the size of a batch request.
func (m *Metrics) RecordBatchSize(ctx context.Context, size int) {
	m.batchSize.Record(ctx, int64(size))
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError(ctx context.Context, entitySet, operation, errorType string) {
	attrs := metric.WithAttributes(
		EntitySetAttr(entitySet),
		OperationAttr(operation),
		attribute.String("error.type", errorType),
	)
	m.errorCount.Add(ctx, 1, attrs)
}
