// Package feed reads OData JSON response envelopes: collection pages with
// their count, next link and delta link annotations, single entities,
// wrapped primitive results and error bodies.
package feed

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/nlstn/go-odata-client/internal/version"
)

// ErrInvalidPayload indicates a response body that is not JSON.
var ErrInvalidPayload = errors.New("odata: invalid JSON payload")

// Page is a decoded response envelope.
type Page struct {
	// IsFeed reports whether the payload was a collection.
	IsFeed bool

	// Entries holds the raw collection members, or the entity itself for a
	// single-entity payload.
	Entries []json.RawMessage

	// Value holds a wrapped primitive or complex result ({"value": 5}).
	Value json.RawMessage

	// Count is the total count, present only when requested.
	Count *int64

	// NextLink is the absolute URL of the next page.
	NextLink *url.URL

	// DeltaLink is the absolute URL for change tracking.
	DeltaLink *url.URL
}

// annotation spellings by purpose: v4, v3 JSON light, v3 verbose (inside "d").
var (
	countNames     = []string{"@odata.count", "odata.count", "__count"}
	nextLinkNames  = []string{"@odata.nextLink", "odata.nextLink", "__next"}
	deltaLinkNames = []string{"@odata.deltaLink", "odata.deltaLink", "__delta"}
)

// Parse decodes body. Relative links resolve against requestURL, which may be nil.
func Parse(body []byte, v version.Version, requestURL *url.URL) (*Page, error) {
	page := &Page{}
	if len(strings.TrimSpace(string(body))) == 0 {
		return page, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidPayload
	}

	root := gjson.ParseBytes(body)
	if root.IsArray() {
		page.IsFeed = true
		page.Entries = rawArray(root)
		return page, nil
	}
	if !root.IsObject() {
		page.Value = json.RawMessage(root.Raw)
		return page, nil
	}

	fields := objectFields(root)
	if d, ok := fields["d"]; ok && len(fields) == 1 {
		// v3 verbose JSON wraps everything in "d"
		if d.IsArray() {
			page.IsFeed = true
			page.Entries = rawArray(d)
			return page, nil
		}
		fields = objectFields(d)
		if results, ok := fields["results"]; ok && results.IsArray() {
			page.IsFeed = true
			page.Entries = rawArray(results)
			return page, page.annotate(fields, v, requestURL)
		}
		root = d
	}

	value, hasValue := fields["value"]
	if hasValue && onlyControlInformation(fields) {
		if value.IsArray() {
			page.IsFeed = true
			page.Entries = rawArray(value)
		} else {
			page.Value = json.RawMessage(value.Raw)
		}
		return page, page.annotate(fields, v, requestURL)
	}

	page.Entries = []json.RawMessage{json.RawMessage(root.Raw)}
	return page, nil
}

func (p *Page) annotate(fields map[string]gjson.Result, v version.Version, requestURL *url.URL) error {
	if count, ok := lookup(fields, countNames, v); ok {
		n := count.Int()
		p.Count = &n
	}
	var err error
	if link, ok := lookup(fields, nextLinkNames, v); ok && link.String() != "" {
		if p.NextLink, err = resolveLink(link.String(), requestURL); err != nil {
			return err
		}
	}
	if link, ok := lookup(fields, deltaLinkNames, v); ok && link.String() != "" {
		if p.DeltaLink, err = resolveLink(link.String(), requestURL); err != nil {
			return err
		}
	}
	return nil
}

// lookup returns the first annotation present, preferring the spelling of v.
func lookup(fields map[string]gjson.Result, names []string, v version.Version) (gjson.Result, bool) {
	prefix := v.AnnotationPrefix()
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			if r, ok := fields[name]; ok {
				return r, true
			}
		}
	}
	for _, name := range names {
		if r, ok := fields[name]; ok {
			return r, true
		}
	}
	return gjson.Result{}, false
}

func resolveLink(link string, requestURL *url.URL) (*url.URL, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("odata: invalid link %q: %w", link, err)
	}
	if requestURL != nil && !u.IsAbs() {
		u = requestURL.ResolveReference(u)
	}
	return u, nil
}

// objectFields indexes the top-level members of an object. gjson paths
// cannot address names such as "@odata.count" without escaping.
func objectFields(obj gjson.Result) map[string]gjson.Result {
	fields := make(map[string]gjson.Result)
	obj.ForEach(func(key, value gjson.Result) bool {
		fields[key.String()] = value
		return true
	})
	return fields
}

// onlyControlInformation reports whether every member besides "value" is an
// annotation, distinguishing a collection envelope from an entity.
func onlyControlInformation(fields map[string]gjson.Result) bool {
	for name := range fields {
		if name == "value" || isAnnotation(name) {
			continue
		}
		return false
	}
	return true
}

func isAnnotation(name string) bool {
	return strings.HasPrefix(name, "@") || strings.HasPrefix(name, "odata.") || strings.HasPrefix(name, "__")
}

func rawArray(arr gjson.Result) []json.RawMessage {
	items := arr.Array()
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		out[i] = json.RawMessage(item.Raw)
	}
	return out
}
