package observability

import (
	"log/slog"
	"net/http"
	"strconv"

	servertiming "github.com/mitchellh/go-server-timing"
	"go.opentelemetry.io/otel/attribute"
)

// ServerTiming holds the metrics a service reported in its Server-Timing headers.
type ServerTiming struct {
	Metrics []*servertiming.Metric
}

// ParseServerTiming parses every Server-Timing header of h. Malformed
// headers are skipped. Returns nil if no metric was reported.
func ParseServerTiming(h http.Header) *ServerTiming {
	var metrics []*servertiming.Metric
	for _, value := range h.Values(servertiming.HeaderKey) {
		parsed, err := servertiming.ParseHeader(value)
		if err != nil {
			continue
		}
		metrics = append(metrics, parsed.Metrics...)
	}
	if len(metrics) == 0 {
		return nil
	}
	return &ServerTiming{Metrics: metrics}
}

// Attributes returns one span attribute per metric, holding its duration in
// milliseconds.
func (s *ServerTiming) Attributes() []attribute.KeyValue {
	if s == nil {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(s.Metrics))
	for _, m := range s.Metrics {
		attrs = append(attrs, attribute.Float64(AttrServerTimingPrefix+m.Name, durationMillis(m)))
	}
	return attrs
}

// LogValue implements slog.LogValuer, rendering the metrics as a group.
func (s *ServerTiming) LogValue() slog.Value {
	if s == nil {
		return slog.GroupValue()
	}
	attrs := make([]slog.Attr, 0, len(s.Metrics))
	for _, m := range s.Metrics {
		value := strconv.FormatFloat(durationMillis(m), 'f', -1, 64) + "ms"
		if m.Desc != "" {
			value += " (" + m.Desc + ")"
		}
		attrs = append(attrs, slog.String(m.Name, value))
	}
	return slog.GroupValue(attrs...)
}

func durationMillis(m *servertiming.Metric) float64 {
	return float64(m.Duration.Microseconds()) / 1000
}
