// Package observability provides OpenTelemetry-based instrumentation for the OData client.
//
// It supports distributed tracing, metrics collection, and enhanced structured logging.
//
// All observability features are opt-in. When not configured, no-op implementations
// are used with zero performance overhead.
package observability

import "go.opentelemetry.io/otel/attribute"

// Instrumentation identity constants
const (
	// TracerName is the instrumentation name for tracing.
	TracerName = "github.com/nlstn/go-odata-client"
	// MeterName is the instrumentation name for metrics.
	MeterName = "github.com/nlstn/go-odata-client"
)

// OData semantic attribute keys following OpenTelemetry conventions.
const (
	// Resource attributes
	AttrEntitySet = "odata.entity_set"
	AttrOperation = "odata.operation"
	AttrRequestID = "odata.request_id"
	AttrVersion   = "odata.version"

	// Query option attributes
	AttrQueryFilter  = "odata.query.filter"
	AttrQueryExpand  = "odata.query.expand"
	AttrQuerySelect  = "odata.query.select"
	AttrQueryOrderBy = "odata.query.orderby"
	AttrQueryTop     = "odata.query.top"
	AttrQuerySkip    = "odata.query.skip"

	// Result attributes
	AttrResultCount = "odata.result.count"
	AttrHasNextLink = "odata.has_next_link"

	// Batch attributes
	AttrBatchSize        = "odata.batch.size"
	AttrChangesetSize    = "odata.changeset.size"
	AttrBatchBoundary    = "odata.batch.boundary"
	AttrChangesetSuccess = "odata.changeset.success"

	// Error attributes
	AttrErrorCode    = "odata.error.code"
	AttrErrorMessage = "odata.error.message"

	// Action/Function attributes
	AttrActionName   = "odata.action.name"
	AttrFunctionName = "odata.function.name"

	// Server-Timing attribute prefix; the metric name is appended.
	AttrServerTimingPrefix = "odata.server_timing."
)

// Operation types for the odata.operation attribute.
const (
	OpFindEntries = "find_entries"
	OpFindEntry   = "find_entry"
	OpFindScalar  = "find_scalar"
	OpNextPage    = "next_page"
	OpInsert      = "insert"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpLookup      = "lookup"
	OpExecute     = "execute"
	OpAction      = "action"
	OpFunction    = "function"
	OpBatch       = "batch"
	OpChangeset   = "changeset"
	OpMetadata    = "metadata"
)

// Log field keys for structured logging with trace context.
const (
	LogFieldEntitySet    = "odata.entity_set"
	LogFieldOperation    = "odata.operation"
	LogFieldTraceID      = "trace_id"
	LogFieldSpanID       = "span_id"
	LogFieldRequestID    = "request_id"
	LogFieldMethod       = "method"
	LogFieldURL          = "url"
	LogFieldStatus       = "status"
	LogFieldDuration     = "duration_ms"
	LogFieldResultCount  = "result_count"
	LogFieldServerTiming = "server_timing"
	LogFieldError        = "error"
)

// EntitySetAttr creates an attribute for the entity set name.
func EntitySetAttr(name string) attribute.KeyValue {
	return attribute.String(AttrEntitySet, name)
}

// OperationAttr creates an attribute for the operation type.
func OperationAttr(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// RequestIDAttr creates an attribute for the request fingerprint.
func RequestIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

// ResultCountAttr creates an attribute for the result count.
func ResultCountAttr(count int64) attribute.KeyValue {
	return attribute.Int64(AttrResultCount, count)
}

// QueryFilterAttr creates an attribute for the $filter expression.
func QueryFilterAttr(filter string) attribute.KeyValue {
	return attribute.String(AttrQueryFilter, filter)
}

// QueryExpandAttr creates an attribute for the $expand expression.
func QueryExpandAttr(expand string) attribute.KeyValue {
	return attribute.String(AttrQueryExpand, expand)
}

// QuerySelectAttr creates an attribute for the $select expression.
func QuerySelectAttr(selectExpr string) attribute.KeyValue {
	return attribute.String(AttrQuerySelect, selectExpr)
}

// QueryOrderByAttr creates an attribute for the $orderby expression.
func QueryOrderByAttr(orderby string) attribute.KeyValue {
	return attribute.String(AttrQueryOrderBy, orderby)
}

// BatchSizeAttr creates an attribute for the batch size.
func BatchSizeAttr(size int) attribute.KeyValue {
	return attribute.Int(AttrBatchSize, size)
}

// ChangesetSizeAttr creates an attribute for the changeset size.
func ChangesetSizeAttr(size int) attribute.KeyValue {
	return attribute.Int(AttrChangesetSize, size)
}

// ErrorCodeAttr creates an attribute for the error code.
func ErrorCodeAttr(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}
