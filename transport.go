package odata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel/trace"

	"github.com/nlstn/go-odata-client/internal/observability"
	"github.com/nlstn/go-odata-client/internal/query"
	"github.com/nlstn/go-odata-client/internal/request"
)

// response is a received response with its body fully read and decoded.
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the request URL; relative links in the body resolve against it.
	URL *url.URL
}

// call is one exchange a terminal operation asks for.
type call struct {
	op        string
	entitySet string
	req       *request.Request
}

// exchanger performs one request/response exchange. The live transport talks
// to the service; batches substitute recording and replaying exchangers.
type exchanger interface {
	exchange(ctx context.Context, c *Client, cl *call) (*response, error)
}

type liveTransport struct{}

func (liveTransport) exchange(ctx context.Context, c *Client, cl *call) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := cl.req
	requestID := req.ID()
	target := req.URL(c.baseURL.String())

	tracer := c.observability.Tracer()
	metrics := c.observability.Metrics()
	ctx, span := tracer.StartRequest(ctx, cl.op, cl.entitySet, req.Method, target, requestID)
	defer span.End()
	if c.observability != nil && c.observability.EnableQueryOptionTracing {
		addQueryOptions(tracer, span, req.Query)
	}

	logger := observability.LoggerWithTrace(ctx, c.logger).With(
		slog.String(observability.LogFieldRequestID, requestID),
		slog.String(observability.LogFieldOperation, cl.op),
	)

	httpReq, err := req.HTTPRequest(ctx, c.baseURL.String())
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("odata: failed to build request: %w", err)
	}
	mergeHeaders(httpReq.Header, c.defaultHeaders())
	if err := c.hooks.before(ctx, httpReq); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.doer.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		tracer.RecordError(span, err)
		metrics.RecordError(ctx, cl.entitySet, cl.op, "transport")
		logger.Warn("OData request failed",
			slog.String(observability.LogFieldMethod, req.Method),
			slog.String(observability.LogFieldURL, target),
			slog.String(observability.LogFieldError, err.Error()))
		return nil, err
	}
	defer func() {
		_ = httpResp.Body.Close() //nolint:errcheck
	}()

	if err := c.hooks.after(ctx, httpResp); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	body, err := readBody(httpResp)
	if err != nil {
		tracer.RecordError(span, err)
		metrics.RecordError(ctx, cl.entitySet, cl.op, "body")
		return nil, fmt.Errorf("odata: failed to read response body: %w", err)
	}

	tracer.SetHTTPStatus(ctx, httpResp.StatusCode)
	metrics.RecordRequest(ctx, cl.entitySet, cl.op, httpResp.StatusCode, duration)

	attrs := []any{
		slog.String(observability.LogFieldMethod, req.Method),
		slog.String(observability.LogFieldURL, target),
		slog.Int(observability.LogFieldStatus, httpResp.StatusCode),
		slog.Int64(observability.LogFieldDuration, duration.Milliseconds()),
	}
	if c.observability.ServerTimingEnabled() {
		if timing := observability.ParseServerTiming(httpResp.Header); timing != nil {
			span.SetAttributes(timing.Attributes()...)
			attrs = append(attrs, slog.Any(observability.LogFieldServerTiming, timing))
		}
	}
	logger.Debug("OData request", attrs...)

	return &response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		URL:        httpReq.URL,
	}, nil
}

// mergeHeaders adds defaults the request does not set itself. Prefer values
// are combined.
func mergeHeaders(dst, defaults http.Header) {
	for key, values := range defaults {
		existing := dst.Values(key)
		switch {
		case len(existing) == 0:
			dst[key] = append([]string(nil), values...)
		case key == "Prefer":
			dst.Set(key, strings.Join(append(existing, values...), ","))
		}
	}
}

// readBody reads the body, undoing gzip or zstd content encoding.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = gz.Close() //nolint:errcheck
		}()
		r = gz
	case "zstd":
		dec, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
	return io.ReadAll(r)
}

// addQueryOptions records the system query options of params on span.
func addQueryOptions(tracer *observability.Tracer, span trace.Span, params []query.Param) {
	var filter, expand, selectOpt, orderby string
	var top, skip int
	for _, p := range params {
		switch p.Name {
		case "$filter":
			filter = p.Value
		case "$expand":
			expand = p.Value
		case "$select":
			selectOpt = p.Value
		case "$orderby":
			orderby = p.Value
		case "$top":
			top, _ = strconv.Atoi(p.Value) //nolint:errcheck
		case "$skip":
			skip, _ = strconv.Atoi(p.Value) //nolint:errcheck
		}
	}
	tracer.AddQueryOptions(span, filter, expand, selectOpt, orderby, top, skip)
}
