package observability

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(
		WithServiceName("trippin"),
		WithQueryOptionTracing(),
		WithServerTiming(),
	)

	if cfg.ServiceName != "trippin" {
		t.Errorf("expected service name 'trippin', got '%s'", cfg.ServiceName)
	}
	if !cfg.EnableQueryOptionTracing {
		t.Error("expected query option tracing to be enabled")
	}
	if !cfg.ServerTimingEnabled() {
		t.Error("expected server timing to be enabled")
	}
}

func TestConfigInitialize(t *testing.T) {
	cfg := NewConfig(
		WithTracerProvider(tracenoop.NewTracerProvider()),
		WithMeterProvider(noop.NewMeterProvider()),
	)

	if err := cfg.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tracer() == nil {
		t.Error("expected tracer to be initialized")
	}
	if cfg.Metrics() == nil {
		t.Error("expected metrics to be initialized")
	}
	if !cfg.IsEnabled() {
		t.Error("expected config with providers to be enabled")
	}
}

func TestConfigDefaults(t *testing.T) {
	var nilCfg *Config
	if nilCfg.Tracer() == nil || nilCfg.Metrics() == nil {
		t.Error("nil config should return noop implementations")
	}
	if nilCfg.IsEnabled() || nilCfg.ServerTimingEnabled() {
		t.Error("nil config should report everything disabled")
	}

	cfg := NewConfig()
	if cfg.ServiceName != "odata-service" {
		t.Errorf("default ServiceName = %q", cfg.ServiceName)
	}
	if cfg.Tracer() == nil || cfg.Metrics() == nil {
		t.Error("uninitialized config should return noop implementations")
	}
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoopMetrics()
	ctx := context.Background()

	// Should not panic
	m.RecordRequest(ctx, "People", OpFindEntries, http.StatusOK, 15*time.Millisecond)
	m.RecordResultCount(ctx, "People", 8)
	m.RecordBatchSize(ctx, 3)
	m.RecordError(ctx, "People", OpUpdate, "concurrency_conflict")
}

func TestMetricsWithProvider(t *testing.T) {
	m := NewMetrics(noop.NewMeterProvider())
	if m == nil {
		t.Fatal("NewMetrics() should return non-nil metrics")
	}
	m.RecordRequest(context.Background(), "People", OpInsert, http.StatusCreated, time.Millisecond)
}

func TestTracerRecordError(t *testing.T) {
	tracer := NewNoopTracer()
	_, span := tracer.StartSpan(context.Background(), "test")
	defer span.End()

	// Should not panic
	tracer.RecordError(span, errors.New("boom"))
	tracer.RecordError(span, nil)
}

func TestAttributes(t *testing.T) {
	if attr := EntitySetAttr("People"); string(attr.Key) != AttrEntitySet || attr.Value.AsString() != "People" {
		t.Errorf("EntitySetAttr() = %v", attr)
	}
	if attr := RequestIDAttr("00ff"); string(attr.Key) != AttrRequestID {
		t.Errorf("RequestIDAttr() key = %s", attr.Key)
	}
	if attr := BatchSizeAttr(3); attr.Value.AsInt64() != 3 {
		t.Errorf("BatchSizeAttr() = %v", attr)
	}
	if attr := ResultCountAttr(20); attr.Value.AsInt64() != 20 {
		t.Errorf("ResultCountAttr() = %v", attr)
	}
}
