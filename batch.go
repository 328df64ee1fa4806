package odata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/nlstn/go-odata-client/internal/batch"
	"github.com/nlstn/go-odata-client/internal/feed"
	"github.com/nlstn/go-odata-client/internal/observability"
	"github.com/nlstn/go-odata-client/internal/odataerr"
	"github.com/nlstn/go-odata-client/internal/request"
)

// errDeferred is returned to an operation while its request is being
// recorded; the operation is run again with the real response later.
var errDeferred = errors.New("odata: operation deferred to batch execution")

// IsDeferred reports whether err only signals that a batch recorded the
// request and the operation completes when the batch executes.
func IsDeferred(err error) bool {
	return errors.Is(err, errDeferred)
}

// Batch collects operations and sends them in one $batch request. Reads
// travel as individual parts; all writes travel, in order, in one changeset
// that the service applies atomically.
//
// Each operation is a function that issues exactly one request through the
// client it receives and handles the result as it would without a batch.
//
// Execute calls every operation twice. The first call records the request:
// the request returns an error for which IsDeferred is true and no result.
// The second call happens after the batch response arrived, and the same
// request then returns its part of it. Side effects in an operation other
// than its request therefore happen twice; check IsDeferred before acting
// on a result.
//
// A Batch is not safe for concurrent use.
//
// Example:
//
//	b := odata.NewBatch(client)
//	b.Add(func(ctx context.Context, c *odata.Client) error {
//	    _, err := c.For("Airlines").Set(Airline{Code: "AA", Name: "American"}).InsertEntry(ctx)
//	    return err
//	})
//	b.Add(func(ctx context.Context, c *odata.Client) error {
//	    airlines, err := c.For("Airlines").FindEntries(ctx, nil)
//	    count = len(airlines)
//	    return err
//	})
//	err := b.Execute(ctx)
type Batch struct {
	client *Client
	ops    []func(ctx context.Context, c *Client) error
}

// NewBatch creates an empty batch for client.
func NewBatch(client *Client) *Batch {
	return &Batch{client: client}
}

// Add appends an operation. Operations execute in the order they are added.
func (b *Batch) Add(fn func(ctx context.Context, c *Client) error) *Batch {
	b.ops = append(b.ops, fn)
	return b
}

// Len returns the number of operations added.
func (b *Batch) Len() int {
	return len(b.ops)
}

// recorder captures the first request of an operation and defers it.
type recorder struct {
	req *request.Request
}

func (r *recorder) exchange(_ context.Context, _ *Client, cl *call) (*response, error) {
	if r.req == nil {
		r.req = cl.req
	}
	return nil, errDeferred
}

// replayer answers the recorded request of an operation from its batch part.
type replayer struct {
	req    *request.Request
	result *batch.Result
	base   string
	used   bool
}

func (r *replayer) exchange(_ context.Context, _ *Client, cl *call) (*response, error) {
	if r.req == nil || r.used {
		return nil, fmt.Errorf("%w: request %s %s was not recorded", odataerr.ErrBatchReplay, cl.req.Method, cl.req.RelativeURL())
	}
	r.used = true
	if cl.req.Fingerprint() != r.req.Fingerprint() {
		return nil, fmt.Errorf("%w: recorded %s %s, replayed %s %s", odataerr.ErrBatchReplay,
			r.req.Method, r.req.RelativeURL(), cl.req.Method, cl.req.RelativeURL())
	}
	if r.result.ChangesetFailed {
		csErr := &ChangesetError{}
		if r.result.Cause != nil && r.result.Cause.StatusCode != 0 {
			csErr.Cause = feed.ParseError(r.result.Cause.StatusCode, r.result.Cause.Body)
		}
		return nil, csErr
	}
	part := r.result.Response
	if part == nil {
		return nil, fmt.Errorf("%w: no response for %s %s", batch.ErrMalformedResponse, cl.req.Method, cl.req.RelativeURL())
	}
	u, err := url.Parse(cl.req.URL(r.base))
	if err != nil {
		return nil, err
	}
	return &response{StatusCode: part.StatusCode, Header: part.Header, Body: part.Body, URL: u}, nil
}

// Execute records the requests of all operations, sends them in one round
// trip and then runs every operation with its response, in order. An error
// while recording aborts the batch before anything is sent. When the round
// trip fails or ctx is done, no operation runs. Errors returned by the
// operations are joined.
func (b *Batch) Execute(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	c := b.client

	recorders := make([]*recorder, len(b.ops))
	var recordErrs []error
	for i, fn := range b.ops {
		rec := &recorder{}
		recorders[i] = rec
		if err := fn(ctx, c.scoped(rec)); err != nil && !errors.Is(err, errDeferred) {
			recordErrs = append(recordErrs, fmt.Errorf("batch operation %d: %w", i, err))
		}
	}
	if len(recordErrs) > 0 {
		return errors.Join(recordErrs...)
	}

	var reqs []*request.Request
	slots := make([]int, len(b.ops))
	for i, rec := range recorders {
		slots[i] = -1
		if rec.req != nil {
			slots[i] = len(reqs)
			reqs = append(reqs, rec.req)
		}
	}

	tracer := c.observability.Tracer()
	ctx, span := tracer.StartBatch(ctx, len(reqs))
	defer span.End()
	c.observability.Metrics().RecordBatchSize(ctx, len(reqs))

	var results []batch.Result
	var enc *batch.Encoded
	if len(reqs) > 0 {
		var err error
		enc, results, err = b.send(ctx, reqs)
		if err != nil {
			tracer.RecordError(span, err)
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if enc != nil && enc.ChangesetBoundary != "" {
		writes := 0
		for _, r := range reqs {
			if r.IsWrite() {
				writes++
			}
		}
		_, csSpan := tracer.StartChangeset(ctx, enc.ChangesetBoundary, writes)
		defer csSpan.End()
	}

	var errs []error
	for i, fn := range b.ops {
		rep := &replayer{base: c.baseURL.String()}
		if slot := slots[i]; slot >= 0 {
			rep.req = reqs[slot]
			rep.result = &results[slot]
		}
		if err := fn(ctx, c.scoped(rep)); err != nil {
			errs = append(errs, fmt.Errorf("batch operation %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// send posts the encoded batch and routes the response parts.
func (b *Batch) send(ctx context.Context, reqs []*request.Request) (*batch.Encoded, []batch.Result, error) {
	c := b.client
	encoder := &batch.Encoder{Header: http.Header{"Accept": {c.acceptType()}}}
	if c.version.Major < 4 {
		encoder.BaseURL = c.baseURL.String()
	}
	enc, err := encoder.Encode(reqs)
	if err != nil {
		return nil, nil, fmt.Errorf("odata: failed to encode batch: %w", err)
	}

	req := &request.Request{
		Method:      http.MethodPost,
		Path:        "$batch",
		Body:        enc.Body,
		ContentType: enc.ContentType,
		Header:      http.Header{"Accept": {"multipart/mixed"}},
		Operation:   observability.OpBatch,
	}
	resp, err := c.transport.exchange(ctx, c, &call{op: observability.OpBatch, req: req})
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, feed.ParseError(resp.StatusCode, resp.Body)
	}

	items, err := batch.Decode(resp.Header.Get("Content-Type"), bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, err
	}
	results, err := enc.Demux(items)
	if err != nil {
		return nil, nil, err
	}
	c.logger.Debug("OData batch",
		slog.Int("requests", len(reqs)),
		slog.Bool("changeset", enc.ChangesetBoundary != ""),
		slog.Int("parts", len(items)))
	return enc, results, nil
}
