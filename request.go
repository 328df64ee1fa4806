package odata

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/nlstn/go-odata-client/internal/expr"
	"github.com/nlstn/go-odata-client/internal/odataerr"
	"github.com/nlstn/go-odata-client/internal/observability"
	"github.com/nlstn/go-odata-client/internal/preference"
	"github.com/nlstn/go-odata-client/internal/query"
	"github.com/nlstn/go-odata-client/internal/request"
	"github.com/nlstn/go-odata-client/internal/resolve"
)

// Request describes one OData request before it is sent. URL renders it
// against a service root; Fingerprint identifies it in logs and batches.
type Request = request.Request

// Op selects the request a chain describes.
type Op int

// Operations
const (
	OpRead Op = iota
	OpInsert
	OpUpdate
	OpDelete
	OpExecute
)

func (op Op) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpExecute:
		return "execute"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Request builds the request the chain describes for op without sending it.
// Updates and deletes whose filter is not an equality over the key need a
// lookup and cannot be described without I/O.
//
// Example:
//
//	req, err := client.For("People").Filter(odata.P("FirstName").Eq("Scott")).Request(odata.OpRead)
//	fmt.Println(req.URL(client.BaseURL()))
//	// .../People?$filter=FirstName%20eq%20'Scott'
func (cmd *Command) Request(op Op) (*Request, error) {
	p, err := cmd.compile()
	if err != nil {
		return nil, err
	}
	switch op {
	case OpRead:
		t, err := cmd.resolve(p.segments)
		if err != nil {
			return nil, err
		}
		return cmd.readRequest(p, t)
	case OpInsert:
		return cmd.insertRequest(p)
	case OpUpdate, OpDelete:
		t, addressed, err := cmd.address(p)
		if err != nil {
			return nil, err
		}
		if !addressed {
			return nil, &odataerr.ResolutionError{Segment: t.EntitySet, Message: "resource is not addressable without a lookup", Err: odataerr.ErrKeyMismatch}
		}
		if op == OpUpdate {
			return cmd.updateRequest(p, t)
		}
		return cmd.deleteRequest(p, t), nil
	case OpExecute:
		return cmd.operationRequest(p)
	default:
		return nil, fmt.Errorf("odata: unknown operation %s", op)
	}
}

func (cmd *Command) resolver() *resolve.Resolver {
	return &resolve.Resolver{Schema: cmd.client.schema, Version: cmd.client.version}
}

func (cmd *Command) resolve(segments []resolve.Segment) (*resolve.Target, error) {
	return cmd.resolver().Resolve(segments)
}

// checkMembers validates the query option and filter member paths against
// the type the target resolved to. Operation results are not checked.
func (cmd *Command) checkMembers(p *plan, t *resolve.Target, opts *query.QueryOptions) error {
	if t.Operation != nil || t.EntityType == nil {
		return nil
	}
	r := cmd.resolver()
	if err := r.CheckOptions(t.EntityType, opts); err != nil {
		return err
	}
	for _, f := range p.scoped {
		for _, path := range expr.MemberPaths(f.node) {
			if err := r.CheckMember(t.EntityType, f.expand, path); err != nil {
				return err
			}
		}
	}
	return nil
}

// entitySet names the root of the chain for metrics and spans.
func (cmd *Command) entitySet() string {
	root := cmd
	for root.prev != nil {
		root = root.prev
	}
	if root.kind == kindFor {
		return root.name
	}
	return ""
}

func (cmd *Command) encodeQuery(opts *query.QueryOptions, t *resolve.Target) ([]query.Param, error) {
	params, err := opts.Encode(cmd.client.version)
	if err != nil {
		return nil, err
	}
	return append(params, t.Params...), nil
}

func (cmd *Command) readRequest(p *plan, t *resolve.Target) (*Request, error) {
	if err := cmd.checkMembers(p, t, &p.opts); err != nil {
		return nil, err
	}
	params, err := cmd.encodeQuery(&p.opts, t)
	if err != nil {
		return nil, err
	}
	req := &Request{
		Method:    http.MethodGet,
		Path:      t.Path,
		Query:     params,
		Operation: observability.OpFindEntries,
	}
	if p.trackChanges {
		req.Prefer = append(req.Prefer, preference.TrackChanges)
	}
	return req, nil
}

// countRequest addresses the /$count resource of the target. Only $filter,
// $search and custom parameters apply to it.
func (cmd *Command) countRequest(p *plan, t *resolve.Target) (*Request, error) {
	opts := &query.QueryOptions{Filter: p.opts.Filter, Search: p.opts.Search, Params: p.opts.Params}
	if err := cmd.checkMembers(p, t, opts); err != nil {
		return nil, err
	}
	params, err := cmd.encodeQuery(opts, t)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:    http.MethodGet,
		Path:      t.Path + "/$count",
		Query:     params,
		Operation: observability.OpFindScalar,
		Header:    http.Header{"Accept": {"text/plain"}},
	}, nil
}

// lookupRequest finds the entities a write filter matches. Two results are
// enough to tell a unique match from an ambiguous one.
func (cmd *Command) lookupRequest(p *plan, t *resolve.Target) (*Request, error) {
	top := 2
	opts := &query.QueryOptions{Filter: p.opts.Filter, Top: &top}
	if err := cmd.checkMembers(p, t, opts); err != nil {
		return nil, err
	}
	params, err := cmd.encodeQuery(opts, t)
	if err != nil {
		return nil, err
	}
	return &Request{Method: http.MethodGet, Path: t.Path, Query: params, Operation: observability.OpLookup}, nil
}

func (cmd *Command) body(values interface{}) ([]byte, error) {
	bag, err := expr.ValueBag(values)
	if err != nil {
		return nil, err
	}
	return cmd.client.codec.Marshal(bag)
}

func (cmd *Command) insertRequest(p *plan) (*Request, error) {
	if !p.hasEntity {
		return nil, fmt.Errorf("odata: InsertEntry needs the entity values, call Set first")
	}
	t, err := cmd.resolve(p.segments)
	if err != nil {
		return nil, err
	}
	if t.Single || t.Operation != nil {
		return nil, &odataerr.ResolutionError{Segment: t.EntitySet, Message: "entities are inserted into a collection", Err: odataerr.ErrKeyMismatch}
	}
	body, err := cmd.body(p.entity)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:      http.MethodPost,
		Path:        t.Path,
		Body:        body,
		ContentType: cmd.client.codec.ContentType(),
		Operation:   observability.OpInsert,
	}, nil
}

func (cmd *Command) updateRequest(p *plan, t *resolve.Target) (*Request, error) {
	if !p.hasEntity {
		return nil, fmt.Errorf("odata: UpdateEntry needs the changed values, call Set first")
	}
	body, err := cmd.body(p.entity)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:      http.MethodPatch,
		Path:        t.Path,
		Body:        body,
		ContentType: cmd.client.codec.ContentType(),
		IfMatch:     p.ifMatch,
		Prefer:      []string{preference.ReturnRepresentation},
		Operation:   observability.OpUpdate,
	}, nil
}

func (cmd *Command) deleteRequest(p *plan, t *resolve.Target) *Request {
	return &Request{
		Method:    http.MethodDelete,
		Path:      t.Path,
		IfMatch:   p.ifMatch,
		Operation: observability.OpDelete,
	}
}

func (cmd *Command) operationRequest(p *plan) (*Request, error) {
	if !p.hasOp {
		return nil, fmt.Errorf("odata: Execute needs a Function or Action at the end of the chain")
	}
	t, err := cmd.resolve(p.segments)
	if err != nil {
		return nil, err
	}
	if p.operation == kindFunction {
		params, err := cmd.encodeQuery(&p.opts, t)
		if err != nil {
			return nil, err
		}
		return &Request{Method: http.MethodGet, Path: t.Path, Query: params, Operation: observability.OpFunction}, nil
	}

	req := &Request{Method: http.MethodPost, Path: t.Path, IfMatch: p.ifMatch, Operation: observability.OpAction}
	if p.actionParams != nil {
		body, err := cmd.body(p.actionParams)
		if err != nil {
			return nil, err
		}
		req.Body = body
		req.ContentType = cmd.client.codec.ContentType()
	}
	return req, nil
}

// address resolves the single entity a write applies to. A filter that is
// an equality over the key, or over an alternate key, becomes the key. It
// reports false when only a lookup can find the entity.
func (cmd *Command) address(p *plan) (*resolve.Target, bool, error) {
	t, err := cmd.resolve(p.segments)
	if err != nil {
		return nil, false, err
	}
	if !p.hasFilters() {
		if !t.Single {
			return nil, false, &odataerr.ResolutionError{Segment: t.EntitySet, Message: "writes need a key, a singleton or a filter", Err: odataerr.ErrKeyMismatch}
		}
		return t, true, nil
	}
	if len(p.rawFilters) == 0 {
		if terms, ok := expr.EqualityTerms(expr.And(p.filters...)); ok && coversKey(t, terms) {
			keyed, err := cmd.resolve(appendKey(p.segments, termKeys(terms)))
			if err != nil {
				return nil, false, err
			}
			return keyed, true, nil
		}
	}
	return t, false, nil
}

func coversKey(t *resolve.Target, terms []expr.Term) bool {
	if t.Single {
		return false
	}
	if t.EntityType == nil {
		return false
	}
	names := make([]string, len(terms))
	for i, term := range terms {
		names[i] = term.Property
	}
	sort.Strings(names)
	if t.EntityType.IsKey(names) {
		return true
	}
	_, ok := t.EntityType.MatchAlternateKey(names)
	return ok
}

func appendKey(segments []resolve.Segment, keys []resolve.KeyValue) []resolve.Segment {
	out := make([]resolve.Segment, len(segments), len(segments)+1)
	copy(out, segments)
	return append(out, resolve.Segment{Kind: resolve.SegmentKey, Keys: keys})
}
