package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	odata "github.com/nlstn/go-odata-client"
	"github.com/nlstn/go-odata-client/internal/config"
)

// clientOptions are the persistent flags that describe the service.
// Flags given explicitly override the values of the selected profile.
type clientOptions struct {
	configPath string
	profile    string
	baseURL    string
	version    string
	headers    []string
	timeout    time.Duration
	rateLimit  float64
	burst      int
	pageSize   int
	compress   bool
	verbose    bool
}

func (o *clientOptions) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "profile file (.yaml, .yml or .toml)")
	f.StringVar(&o.profile, "profile", "", "profile name, defaults to the file's default profile")
	f.StringVar(&o.baseURL, "url", "", "service root URL")
	f.StringVar(&o.version, "odata-version", "", "protocol version, 3.0 or 4.0")
	f.StringArrayVar(&o.headers, "header", nil, "request header as Name: value (repeatable)")
	f.DurationVar(&o.timeout, "timeout", 0, "timeout per request")
	f.Float64Var(&o.rateLimit, "rate-limit", 0, "requests per second, 0 for unlimited")
	f.IntVar(&o.burst, "burst", 0, "rate limit burst")
	f.IntVar(&o.pageSize, "page-size", 0, "preferred server page size")
	f.BoolVar(&o.compress, "compress", false, "accept gzip and zstd encoded responses")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "log requests to stderr")
}

// resolveProfile merges the profile file with the flags.
func (o *clientOptions) resolveProfile(cmd *cobra.Command) (*config.Profile, error) {
	p := &config.Profile{}
	if o.configPath != "" {
		file, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		selected, err := file.Profile(o.profile)
		if err != nil {
			return nil, err
		}
		cp := *selected
		p = &cp
	} else if o.profile != "" {
		return nil, fmt.Errorf("--profile needs --config")
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		p.BaseURL = o.baseURL
	}
	if flags.Changed("odata-version") {
		p.Version = o.version
	}
	if flags.Changed("timeout") {
		p.Timeout = o.timeout
	}
	if flags.Changed("rate-limit") {
		p.RateLimit = o.rateLimit
	}
	if flags.Changed("burst") {
		p.Burst = o.burst
	}
	if flags.Changed("page-size") {
		p.PageSize = o.pageSize
	}
	if flags.Changed("compress") {
		p.Compression = o.compress
	}
	if len(o.headers) > 0 {
		headers := make(map[string]string, len(p.Headers)+len(o.headers))
		for k, v := range p.Headers {
			headers[k] = v
		}
		for _, h := range o.headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("invalid --header %q, want Name: value", h)
			}
			headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
		p.Headers = headers
	}

	if p.BaseURL == "" {
		return nil, fmt.Errorf("no service URL: pass --url or --config")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (o *clientOptions) client(cmd *cobra.Command) (*odata.Client, error) {
	p, err := o.resolveProfile(cmd)
	if err != nil {
		return nil, err
	}
	v, err := p.ProtocolVersion()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	opts := []odata.Option{
		odata.WithVersion(v),
		odata.WithLogger(logger),
		odata.WithTimeout(p.Timeout),
		odata.WithRateLimit(p.RateLimit, p.Burst),
		odata.WithMaxPageSize(p.PageSize),
	}
	if p.Compression {
		opts = append(opts, odata.WithCompression())
	}
	for name, value := range p.Headers {
		opts = append(opts, odata.WithHeader(name, value))
	}
	return odata.NewClient(p.BaseURL, opts...)
}
