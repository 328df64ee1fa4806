// Package odata is a client for OData v4 services (and v3 services speaking
// JSON light). Requests are composed as immutable command chains, typed
// filter and selector expressions are translated to query options, and
// several commands can be sent in one $batch round trip.
//
// Example:
//
//	client, err := odata.NewClient("https://services.odata.org/V4/TripPinServiceRW")
//	if err != nil {
//	    return err
//	}
//	people, err := client.For("People").
//	    Filter(odata.P("Trips").Any("t", func(t *odata.Member) odata.Expr {
//	        return t.Field("Budget").Gt(10000)
//	    })).
//	    Expand("Trips").
//	    FindEntries(ctx, nil)
package odata

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/nlstn/go-odata-client/internal/observability"
	"github.com/nlstn/go-odata-client/internal/preference"
	"github.com/nlstn/go-odata-client/internal/version"
)

// Doer sends HTTP requests. *http.Client implements it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client issues OData commands against one service root.
// A Client is safe for concurrent use once configured.
type Client struct {
	baseURL *url.URL
	doer    Doer
	schema  Schema
	version version.Version
	codec   Codec
	header  http.Header
	hooks   RequestHooks

	limiter     *rate.Limiter
	timeout     time.Duration
	compression bool
	maxPageSize int

	logger        *slog.Logger
	observability *observability.Config

	// transport performs exchanges; batches swap it for recording and replay.
	transport exchanger
	inBatch   bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Defaults to http.DefaultClient.
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithSchema sets the schema used to validate and resolve commands. Without a
// schema, chains are resolved untyped: keys are formatted by their Go type and
// navigation is not checked.
func WithSchema(schema Schema) Option {
	return func(c *Client) {
		c.schema = schema
	}
}

// WithVersion selects the protocol version. Defaults to 4.0.
func WithVersion(v Version) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithCodec sets the payload codec. Defaults to JSONCodec.
func WithCodec(codec Codec) Option {
	return func(c *Client) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Add(key, value)
	}
}

// WithHooks installs request hooks.
func WithHooks(hooks RequestHooks) Option {
	return func(c *Client) {
		c.hooks = hooks
	}
}

// WithRateLimit limits the client to rps requests per second with the given
// burst. Waiting for a token honours the request context.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout bounds every single exchange.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithCompression asks the service for gzip or zstd encoded responses.
func WithCompression() Option {
	return func(c *Client) {
		c.compression = true
	}
}

// WithMaxPageSize asks the service for server-driven paging with at most n
// entries per page (Prefer: odata.maxpagesize).
func WithMaxPageSize(n int) Option {
	return func(c *Client) {
		c.maxPageSize = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.SetLogger(logger)
	}
}

// NewClient creates a client for the service rooted at serviceURL.
func NewClient(serviceURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("odata: invalid service URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("odata: service URL must be http or https, got %q", serviceURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		baseURL:   u,
		doer:      http.DefaultClient,
		version:   version.V4,
		codec:     JSONCodec{},
		header:    make(http.Header),
		logger:    slog.Default(),
		transport: liveTransport{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.version.Major != 3 && c.version.Major != 4 {
		return nil, fmt.Errorf("odata: unsupported protocol version %s", c.version)
	}
	return c, nil
}

// SetLogger sets a custom logger for the client.
// If not called, slog.Default() is used.
func (c *Client) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.logger = logger
}

// ObservabilityConfig configures OpenTelemetry tracing and metrics.
type ObservabilityConfig struct {
	// TracerProvider creates the client spans. Nil disables tracing.
	TracerProvider trace.TracerProvider

	// MeterProvider creates the client instruments. Nil disables metrics.
	MeterProvider metric.MeterProvider

	// ServiceName identifies the called service on spans.
	ServiceName string

	// EnableQueryOptionTracing adds $filter, $expand, $select and $orderby to spans.
	EnableQueryOptionTracing bool

	// EnableServerTiming parses Server-Timing response headers into span
	// attributes and debug log fields.
	EnableServerTiming bool
}

// SetObservability enables tracing and metrics for the client.
func (c *Client) SetObservability(cfg ObservabilityConfig) error {
	var opts []observability.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, observability.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, observability.WithMeterProvider(cfg.MeterProvider))
	}
	if cfg.ServiceName != "" {
		opts = append(opts, observability.WithServiceName(cfg.ServiceName))
	}
	if cfg.EnableQueryOptionTracing {
		opts = append(opts, observability.WithQueryOptionTracing())
	}
	if cfg.EnableServerTiming {
		opts = append(opts, observability.WithServerTiming())
	}
	obs := observability.NewConfig(opts...)
	if err := obs.Initialize(); err != nil {
		return fmt.Errorf("odata: failed to initialize observability: %w", err)
	}
	c.observability = obs
	return nil
}

// Observability returns the observability configuration, nil when not configured.
func (c *Client) Observability() *observability.Config {
	return c.observability
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Version returns the protocol version the client speaks.
func (c *Client) Version() Version {
	return c.version
}

// Schema returns the schema commands are resolved against, nil for untyped clients.
func (c *Client) Schema() Schema {
	return c.schema
}

// defaultHeaders returns the headers every exchange carries. Headers from
// WithHeader replace the protocol defaults of the same name.
func (c *Client) defaultHeaders() http.Header {
	h := c.header.Clone()
	setDefault := func(key, value string) {
		if h.Get(key) == "" {
			h.Set(key, value)
		}
	}
	setDefault(c.version.HeaderName(), c.version.String())
	setDefault(c.version.MaxHeaderName(), c.version.String())
	setDefault("Accept", c.acceptType())
	if c.compression {
		setDefault("Accept-Encoding", "gzip, zstd")
	}
	if c.maxPageSize > 0 {
		h.Add("Prefer", preference.MaxPageSize(c.maxPageSize))
	}
	return h
}

// acceptType is the JSON media type with minimal metadata in the dialect of
// the protocol version.
func (c *Client) acceptType() string {
	if c.version.Major >= 4 {
		return "application/json;odata.metadata=minimal"
	}
	return "application/json;odata=minimalmetadata"
}

// scoped returns a copy of c that exchanges through t. Batches hand such
// copies to their operations.
func (c *Client) scoped(t exchanger) *Client {
	cp := *c
	cp.transport = t
	cp.inBatch = true
	return &cp
}
