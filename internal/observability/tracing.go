package observability

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer with OData-specific span creation methods.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// NewTracer creates a new Tracer using the given TracerProvider.
func NewTracer(tp trace.TracerProvider, serviceName string) *Tracer {
	return &Tracer{
		tracer:      tp.Tracer(TracerName),
		serviceName: serviceName,
	}
}

// StartSpan starts a new span with the given name and attributes.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}

// StartRequest starts a client span for one OData request.
func (t *Tracer) StartRequest(ctx context.Context, operation, entitySet, method, url, requestID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		OperationAttr(operation),
		RequestIDAttr(requestID),
		attribute.String("http.method", method),
		attribute.String("http.url", url),
	}
	if entitySet != "" {
		attrs = append(attrs, EntitySetAttr(entitySet))
	}
	if t.serviceName != "" {
		attrs = append(attrs, attribute.String("peer.service", t.serviceName))
	}
	return t.tracer.Start(ctx, "odata."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// StartBatch starts a span for a batch operation.
func (t *Tracer) StartBatch(ctx context.Context, requestCount int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "odata.batch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			OperationAttr(OpBatch),
			BatchSizeAttr(requestCount),
		))
}

// StartChangeset starts a span covering the continuations of a changeset.
func (t *Tracer) StartChangeset(ctx context.Context, changesetID string, requestCount int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "odata.changeset", trace.WithAttributes(
		OperationAttr(OpChangeset),
		attribute.String(AttrBatchBoundary, changesetID),
		ChangesetSizeAttr(requestCount),
	))
}

// SetHTTPStatus sets the HTTP status code on the current span.
func (t *Tracer) SetHTTPStatus(ctx context.Context, statusCode int) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("http.status_code", statusCode))
	if statusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(statusCode))
	}
}

// RecordError records an error on the span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddQueryOptions adds query option attributes to a span (if enabled).
func (t *Tracer) AddQueryOptions(span trace.Span, filter, expand, selectOpt, orderby string, top, skip int) {
	var attrs []attribute.KeyValue
	if filter != "" {
		attrs = append(attrs, QueryFilterAttr(filter))
	}
	if expand != "" {
		attrs = append(attrs, QueryExpandAttr(expand))
	}
	if selectOpt != "" {
		attrs = append(attrs, QuerySelectAttr(selectOpt))
	}
	if orderby != "" {
		attrs = append(attrs, QueryOrderByAttr(orderby))
	}
	if top > 0 {
		attrs = append(attrs, attribute.Int(AttrQueryTop, top))
	}
	if skip > 0 {
		attrs = append(attrs, attribute.Int(AttrQuerySkip, skip))
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

// LoggerWithTrace returns a logger enriched with trace context.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return logger
	}
	return logger.With(
		slog.String(LogFieldTraceID, span.SpanContext().TraceID().String()),
		slog.String(LogFieldSpanID, span.SpanContext().SpanID().String()),
	)
}
