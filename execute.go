package odata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nlstn/go-odata-client/internal/feed"
	"github.com/nlstn/go-odata-client/internal/odataerr"
	"github.com/nlstn/go-odata-client/internal/observability"
	"github.com/nlstn/go-odata-client/internal/preference"
	"github.com/nlstn/go-odata-client/internal/resolve"
)

// send performs one exchange and maps error statuses to *ODataError.
func (cmd *Command) send(ctx context.Context, req *Request) (*response, error) {
	c := cmd.client
	resp, err := c.transport.exchange(ctx, c, &call{op: req.Operation, entitySet: cmd.entitySet(), req: req})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp, feed.ParseError(resp.StatusCode, resp.Body)
	}
	return resp, nil
}

// page sends a read and records the feed annotations in ann.
func (cmd *Command) page(ctx context.Context, req *Request, ann *Annotations) ([]json.RawMessage, error) {
	resp, err := cmd.send(ctx, req)
	if err != nil {
		return nil, err
	}
	page, err := feed.Parse(resp.Body, cmd.client.version, resp.URL)
	if err != nil {
		return nil, err
	}
	ann.update(page)
	cmd.client.observability.Metrics().RecordResultCount(ctx, cmd.entitySet(), int64(len(page.Entries)))
	return page.Entries, nil
}

func (cmd *Command) findEntriesRaw(ctx context.Context, ann *Annotations) ([]json.RawMessage, error) {
	p, err := cmd.compile()
	if err != nil {
		return nil, err
	}
	if ann != nil {
		p.opts.Count = true
	}
	t, err := cmd.resolve(p.segments)
	if err != nil {
		return nil, err
	}
	req, err := cmd.readRequest(p, t)
	if err != nil {
		return nil, err
	}
	return cmd.page(ctx, req, ann)
}

func (cmd *Command) findEntriesByLinkRaw(ctx context.Context, link *url.URL, ann *Annotations) ([]json.RawMessage, error) {
	if link == nil {
		return nil, fmt.Errorf("odata: no page link")
	}
	req := &Request{Method: http.MethodGet, RawURL: link.String(), Operation: observability.OpNextPage}
	return cmd.page(ctx, req, ann)
}

func (cmd *Command) findAllEntriesRaw(ctx context.Context) ([]json.RawMessage, error) {
	var ann Annotations
	all, err := cmd.findEntriesRaw(ctx, &ann)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for ann.NextPageLink != nil {
		link := ann.NextPageLink.String()
		if seen[link] {
			return nil, fmt.Errorf("odata: next page link %s repeats", link)
		}
		seen[link] = true
		entries, err := cmd.findEntriesByLinkRaw(ctx, ann.NextPageLink, &ann)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

func (cmd *Command) findEntryRaw(ctx context.Context) (json.RawMessage, error) {
	p, err := cmd.compile()
	if err != nil {
		return nil, err
	}
	t, err := cmd.resolve(p.segments)
	if err != nil {
		return nil, err
	}
	req, err := cmd.readRequest(p, t)
	if err != nil {
		return nil, err
	}
	req.Operation = observability.OpFindEntry
	entries, err := cmd.page(ctx, req, nil)
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

func (cmd *Command) insertEntryRaw(ctx context.Context) (json.RawMessage, error) {
	p, err := cmd.compile()
	if err != nil {
		return nil, err
	}
	req, err := cmd.insertRequest(p)
	if err != nil {
		return nil, err
	}
	resp, err := cmd.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if !preference.ParseApplied(resp.Header).ReturnsContent(true, resp.StatusCode) || len(resp.Body) == 0 {
		return nil, nil
	}
	return cmd.single(resp)
}

func (cmd *Command) updateEntryRaw(ctx context.Context) (json.RawMessage, error) {
	p, err := cmd.compile()
	if err != nil {
		return nil, err
	}
	t, err := cmd.addressOrLookup(ctx, p)
	if err != nil {
		return nil, err
	}
	req, err := cmd.updateRequest(p, t)
	if err != nil {
		return nil, err
	}
	resp, err := cmd.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if preference.ParseApplied(resp.Header).ReturnsContent(false, resp.StatusCode) && len(resp.Body) > 0 {
		return cmd.single(resp)
	}
	if cmd.client.inBatch {
		return nil, nil
	}

	follow := &Request{Method: http.MethodGet, Path: t.Path, Operation: observability.OpFindEntry}
	resp, err = cmd.send(ctx, follow)
	if err != nil {
		return nil, err
	}
	return cmd.single(resp)
}

func (cmd *Command) deleteEntry(ctx context.Context) error {
	p, err := cmd.compile()
	if err != nil {
		return err
	}
	t, err := cmd.addressOrLookup(ctx, p)
	if err != nil {
		return err
	}
	_, err = cmd.send(ctx, cmd.deleteRequest(p, t))
	return err
}

// addressOrLookup resolves the entity a write applies to, querying the
// service when the filter does not name the key.
func (cmd *Command) addressOrLookup(ctx context.Context, p *plan) (*resolve.Target, error) {
	t, addressed, err := cmd.address(p)
	if err != nil || addressed {
		return t, err
	}
	if cmd.client.inBatch {
		return nil, &odataerr.ResolutionError{Segment: t.EntitySet, Message: "a batch cannot look up the entity a filter matches", Err: odataerr.ErrKeyMismatch}
	}
	if t.EntityType == nil {
		return nil, &odataerr.ResolutionError{Segment: t.EntitySet, Message: "the key of a filtered entity is unknown without a schema", Err: odataerr.ErrKeyMismatch}
	}

	req, err := cmd.lookupRequest(p, t)
	if err != nil {
		return nil, err
	}
	entries, err := cmd.page(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	switch len(entries) {
	case 0:
		return nil, &odataerr.ResolutionError{Segment: t.EntitySet, Message: "no entity matches the filter", Err: odataerr.ErrEntityNotFound}
	case 1:
	default:
		return nil, &odataerr.ResolutionError{Segment: t.EntitySet, Message: "more than one entity matches the filter", Err: odataerr.ErrAmbiguousResource}
	}

	var entity Entry
	if err := cmd.client.codec.Unmarshal(entries[0], &entity); err != nil {
		return nil, fmt.Errorf("odata: failed to decode lookup result: %w", err)
	}
	keys := make([]resolve.KeyValue, 0, len(t.EntityType.Keys))
	for _, name := range t.EntityType.Keys {
		value, ok := entity[name]
		if !ok {
			return nil, &odataerr.ResolutionError{Segment: t.EntityType.FullName() + "." + name, Message: "lookup result lacks the key property", Err: odataerr.ErrKeyMismatch}
		}
		keys = append(keys, resolve.KeyValue{Name: name, Value: value})
	}
	return cmd.resolve(appendKey(p.segments, keys))
}

// execute invokes the function or action of the chain.
func (cmd *Command) execute(ctx context.Context) (*response, error) {
	p, err := cmd.compile()
	if err != nil {
		return nil, err
	}
	req, err := cmd.operationRequest(p)
	if err != nil {
		return nil, err
	}
	return cmd.send(ctx, req)
}

func (cmd *Command) executePage(ctx context.Context) (*feed.Page, error) {
	resp, err := cmd.execute(ctx)
	if err != nil {
		return nil, err
	}
	return feed.Parse(resp.Body, cmd.client.version, resp.URL)
}

func (cmd *Command) executeSingleRaw(ctx context.Context) (json.RawMessage, error) {
	page, err := cmd.executePage(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case len(page.Entries) > 0:
		return page.Entries[0], nil
	case page.Value != nil:
		return page.Value, nil
	default:
		return nil, nil
	}
}

// single decodes the entity a response carries.
func (cmd *Command) single(resp *response) (json.RawMessage, error) {
	page, err := feed.Parse(resp.Body, cmd.client.version, resp.URL)
	if err != nil {
		return nil, err
	}
	if len(page.Entries) == 0 {
		return nil, nil
	}
	return page.Entries[0], nil
}

func (cmd *Command) decodeEntry(raw json.RawMessage) (Entry, error) {
	if raw == nil {
		return nil, nil
	}
	var entry Entry
	if err := cmd.client.codec.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("odata: failed to decode entity: %w", err)
	}
	return entry, nil
}

func (cmd *Command) decodeEntries(raws []json.RawMessage) ([]Entry, error) {
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		entry, err := cmd.decodeEntry(raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// FindEntries reads the entries the chain addresses. When ann is not nil,
// the total count is requested and ann receives the count, next page link
// and delta link of the page.
func (cmd *Command) FindEntries(ctx context.Context, ann *Annotations) ([]Entry, error) {
	raws, err := cmd.findEntriesRaw(ctx, ann)
	if err != nil {
		return nil, err
	}
	return cmd.decodeEntries(raws)
}

// FindEntriesByLink reads the page behind link, typically ann.NextPageLink
// of a previous page. The link is requested as is.
func (cmd *Command) FindEntriesByLink(ctx context.Context, link *url.URL, ann *Annotations) ([]Entry, error) {
	raws, err := cmd.findEntriesByLinkRaw(ctx, link, ann)
	if err != nil {
		return nil, err
	}
	return cmd.decodeEntries(raws)
}

// FindAllEntries reads every page, following next links until the last one.
func (cmd *Command) FindAllEntries(ctx context.Context) ([]Entry, error) {
	raws, err := cmd.findAllEntriesRaw(ctx)
	if err != nil {
		return nil, err
	}
	return cmd.decodeEntries(raws)
}

// FindEntry reads one entity. It returns nil without error when the service
// answers 404; for a collection it returns the first entry, nil when empty.
func (cmd *Command) FindEntry(ctx context.Context) (Entry, error) {
	raw, err := cmd.findEntryRaw(ctx)
	if err != nil {
		return nil, err
	}
	return cmd.decodeEntry(raw)
}

// FindScalar reads a single value. After Count it returns the /$count of
// the addressed collection as int64; after Function the function result.
func (cmd *Command) FindScalar(ctx context.Context) (interface{}, error) {
	p, err := cmd.compile()
	if err != nil {
		return nil, err
	}
	if p.hasOp {
		return cmd.ExecuteAsScalar(ctx)
	}
	if !p.opts.Count {
		return nil, fmt.Errorf("odata: FindScalar needs Count or a Function")
	}
	t, err := cmd.resolve(p.segments)
	if err != nil {
		return nil, err
	}
	req, err := cmd.countRequest(p, t)
	if err != nil {
		return nil, err
	}
	resp, err := cmd.send(ctx, req)
	if err != nil {
		return nil, err
	}
	text := strings.TrimPrefix(strings.TrimSpace(string(resp.Body)), "\ufeff")
	count, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("odata: invalid count %q: %w", text, err)
	}
	return count, nil
}

// InsertEntry creates the entity given by Set in the addressed collection and
// returns it as the service created it, nil when the service returns no content.
func (cmd *Command) InsertEntry(ctx context.Context) (Entry, error) {
	raw, err := cmd.insertEntryRaw(ctx)
	if err != nil {
		return nil, err
	}
	return cmd.decodeEntry(raw)
}

// UpdateEntry applies the values given by Set to the addressed entity with
// PATCH and returns the updated entity. The entity is addressed by key, as a
// singleton, or by a filter; a filter that is not an equality over the key
// is resolved with a lookup first. Stale ETags fail with ErrConcurrencyConflict.
func (cmd *Command) UpdateEntry(ctx context.Context) (Entry, error) {
	raw, err := cmd.updateEntryRaw(ctx)
	if err != nil {
		return nil, err
	}
	return cmd.decodeEntry(raw)
}

// DeleteEntry deletes the addressed entity, found like in UpdateEntry.
func (cmd *Command) DeleteEntry(ctx context.Context) error {
	return cmd.deleteEntry(ctx)
}

// Execute invokes the function or action and discards its result.
func (cmd *Command) Execute(ctx context.Context) error {
	_, err := cmd.execute(ctx)
	return err
}

// ExecuteAsSingle invokes the function or action and returns the entity or
// complex value it yields, nil for none.
func (cmd *Command) ExecuteAsSingle(ctx context.Context) (Entry, error) {
	raw, err := cmd.executeSingleRaw(ctx)
	if err != nil {
		return nil, err
	}
	return cmd.decodeEntry(raw)
}

// ExecuteAsEnumerable invokes the function or action and returns the
// collection it yields.
func (cmd *Command) ExecuteAsEnumerable(ctx context.Context) ([]Entry, error) {
	page, err := cmd.executePage(ctx)
	if err != nil {
		return nil, err
	}
	return cmd.decodeEntries(page.Entries)
}

// ExecuteAsScalar invokes the function or action and returns the primitive
// value it yields. Numbers decode as json.Number.
func (cmd *Command) ExecuteAsScalar(ctx context.Context) (interface{}, error) {
	page, err := cmd.executePage(ctx)
	if err != nil {
		return nil, err
	}
	raw := page.Value
	if raw == nil && len(page.Entries) > 0 {
		raw = page.Entries[0]
	}
	if raw == nil {
		return nil, nil
	}
	var value interface{}
	if err := cmd.client.codec.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("odata: failed to decode result: %w", err)
	}
	return value, nil
}
