// Package request describes a single OData HTTP exchange before it is sent:
// method, resource path, ordered query options, body and headers.
package request

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/nlstn/go-odata-client/internal/query"
)

// Request is the fully resolved description of one OData request.
type Request struct {
	// Method is the HTTP method.
	Method string

	// Path is the escaped resource path relative to the service root.
	Path string

	// Query holds the query parameters in rendering order.
	Query []query.Param

	// RawURL is an absolute or service-relative URL used as is, bypassing
	// Path and Query. Next page links are dispatched this way.
	RawURL string

	// Body is the encoded payload, nil for bodiless requests.
	Body []byte

	// ContentType is the media type of Body.
	ContentType string

	// IfMatch is the If-Match precondition, empty for none.
	IfMatch string

	// Prefer lists Prefer header preferences.
	Prefer []string

	// Header holds additional request headers.
	Header http.Header

	// Operation names the client operation that produced the request, for logs.
	Operation string
}

// IsWrite reports whether the request changes server state. Writes travel
// inside the changeset of a batch.
func (r *Request) IsWrite() bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, "":
		return false
	default:
		return true
	}
}

// RelativeURL returns the path and query relative to the service root.
func (r *Request) RelativeURL() string {
	if r.RawURL != "" {
		return r.RawURL
	}
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + query.Render(r.Query)
}

// URL returns the absolute request URL against the service root base.
func (r *Request) URL(base string) string {
	rel := r.RelativeURL()
	if strings.Contains(rel, "://") {
		return rel
	}
	if base == "" {
		return rel
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rel, "/")
}

// Fingerprint returns a stable 64-bit digest of method, relative URL and body.
func (r *Request) Fingerprint() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(r.Method)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(r.RelativeURL())
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(r.IfMatch)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(r.Body)
	return d.Sum64()
}

// ID renders the fingerprint as a fixed-width hex string for logs and spans.
func (r *Request) ID() string {
	s := strconv.FormatUint(r.Fingerprint(), 16)
	return strings.Repeat("0", 16-len(s)) + s
}

// HeaderValues returns every header the request carries, including
// If-Match, Prefer and Content-Type.
func (r *Request) HeaderValues() http.Header {
	h := make(http.Header, len(r.Header)+3)
	for k, v := range r.Header {
		h[k] = append([]string(nil), v...)
	}
	if r.IfMatch != "" {
		h.Set("If-Match", r.IfMatch)
	}
	if len(r.Prefer) > 0 {
		h.Set("Prefer", strings.Join(r.Prefer, ","))
	}
	if r.Body != nil && r.ContentType != "" {
		h.Set("Content-Type", r.ContentType)
	}
	return h
}

// HTTPRequest builds the *http.Request against base.
func (r *Request) HTTPRequest(ctx context.Context, base string) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL(base), body)
	if err != nil {
		return nil, err
	}
	for k, v := range r.HeaderValues() {
		req.Header[k] = v
	}
	return req, nil
}
