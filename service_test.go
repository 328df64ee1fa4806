package odata

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/nlstn/go-odata-client/internal/batch"
	"github.com/nlstn/go-odata-client/internal/batch/batchtest"
	"github.com/nlstn/go-odata-client/internal/etag"
	"github.com/nlstn/go-odata-client/internal/metadata"
)

type Person struct {
	UserName  string `json:"UserName" odata:"key"`
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
	Email     string `json:"Email,omitempty"`
}

type Airline struct {
	AirlineCode string `json:"AirlineCode" odata:"key"`
	Name        string `json:"Name"`
}

func tripPinSchema() *StaticSchema {
	s := metadata.NewStatic("Trippin")
	s.AddEntityType(metadata.EntityType{
		Name: "Person",
		Keys: []string{"UserName"},
		Properties: []metadata.Property{
			{Name: "UserName", Type: "Edm.String"},
			{Name: "FirstName", Type: "Edm.String"},
			{Name: "LastName", Type: "Edm.String"},
			{Name: "Email", Type: "Edm.String"},
		},
		AlternateKeys: [][]string{{"Email"}},
		Navigations: []metadata.Navigation{
			{Name: "Trips", Target: "Trip", Collection: true},
			{Name: "Friends", Target: "Person", Collection: true},
		},
	})
	s.AddEntityType(metadata.EntityType{
		Name:        "Trip",
		Keys:        []string{"TripId"},
		Properties:  []metadata.Property{{Name: "TripId", Type: "Edm.Int32"}, {Name: "Name", Type: "Edm.String"}, {Name: "Budget", Type: "Edm.Single"}},
		Navigations: []metadata.Navigation{{Name: "PlanItems", Target: "PlanItem", Collection: true}},
	})
	s.AddEntityType(metadata.EntityType{
		Name:       "PlanItem",
		Keys:       []string{"PlanItemId"},
		Properties: []metadata.Property{{Name: "PlanItemId", Type: "Edm.Int32"}},
	})
	s.AddEntityType(metadata.EntityType{Name: "Flight", BaseType: "PlanItem"})
	s.AddEntityType(metadata.EntityType{
		Name:       "Airline",
		Keys:       []string{"AirlineCode"},
		Properties: []metadata.Property{{Name: "AirlineCode", Type: "Edm.String"}, {Name: "Name", Type: "Edm.String"}},
	})
	s.AddEntityType(metadata.EntityType{
		Name: "Ticket",
		Keys: []string{"OrderId", "Seat"},
		Properties: []metadata.Property{
			{Name: "OrderId", Type: "Edm.Int64"},
			{Name: "Seat", Type: "Edm.String"},
		},
	})
	s.AddEntitySet("People", "Person")
	s.AddEntitySet("Airlines", "Airline")
	s.AddEntitySet("Tickets", "Ticket")
	s.AddSingleton("Me", "Person")
	s.AddOperation(metadata.Operation{
		Name:       "GetNearestAirport",
		Parameters: []metadata.Parameter{{Name: "lat", Type: "Edm.Double"}, {Name: "lon", Type: "Edm.Double"}},
		ReturnType: "Trippin.Airport",
	})
	s.AddOperation(metadata.Operation{Name: "ResetDataSource", IsAction: true})
	s.AddOperation(metadata.Operation{
		Name: "ShareTrip", IsBound: true, IsAction: true,
		Parameters: []metadata.Parameter{{Name: "person", Type: "Trippin.Person"}, {Name: "userName", Type: "Edm.String"}, {Name: "tripId", Type: "Edm.Int32"}},
	})
	return s
}

// fakeSet is one entity set of the fake service.
type fakeSet struct {
	key      string
	order    []string
	entries  map[string]Entry
	versions map[string]int
	// requireETag makes PATCH and DELETE demand a matching If-Match.
	requireETag bool
}

func (s *fakeSet) clone() *fakeSet {
	out := &fakeSet{
		key:         s.key,
		order:       append([]string(nil), s.order...),
		entries:     make(map[string]Entry, len(s.entries)),
		versions:    make(map[string]int, len(s.versions)),
		requireETag: s.requireETag,
	}
	for k, e := range s.entries {
		cp := make(Entry, len(e))
		for n, v := range e {
			cp[n] = v
		}
		out.entries[k] = cp
	}
	for k, v := range s.versions {
		out.versions[k] = v
	}
	return out
}

func (s *fakeSet) etag(key string) string {
	return fmt.Sprintf(`W/"%d"`, s.versions[key])
}

func (s *fakeSet) put(key string, e Entry) {
	if _, ok := s.entries[key]; !ok {
		s.order = append(s.order, key)
	}
	s.entries[key] = e
	s.versions[key]++
}

func (s *fakeSet) remove(key string) {
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// fakeService is an in-memory OData v4 service. It understands keyed and
// collection reads, "Prop eq value" filters, server-driven paging, /$count,
// inserts, ETag-checked updates and deletes, and $batch with a rollback on a
// failed changeset.
type fakeService struct {
	mu       sync.Mutex
	sets     map[string]*fakeSet
	pageSize int
	// ignorePrefer makes PATCH answer 204 even when a representation is preferred.
	ignorePrefer bool
	requests     []*http.Request
	batches      int
	server       *httptest.Server
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	s := &fakeService{sets: map[string]*fakeSet{}}
	s.server = httptest.NewServer(s)
	t.Cleanup(s.server.Close)
	return s
}

func (s *fakeService) addSet(name, key string, requireETag bool, entries ...Entry) {
	set := &fakeSet{key: key, entries: map[string]Entry{}, versions: map[string]int{}, requireETag: requireETag}
	for _, e := range entries {
		set.put(fmt.Sprint(e[key]), e)
	}
	s.sets[name] = set
}

func (s *fakeService) client(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(s.server.URL, append([]Option{WithSchema(tripPinSchema())}, opts...)...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

// received returns "METHOD /path?query" of every request, batch parts included.
func (s *fakeService) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.Method + " " + r.URL.RequestURI()
	}
	return out
}

func (s *fakeService) last() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func (s *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/$batch" {
		s.serveBatch(w, r)
		return
	}
	s.serve(w, r)
}

func (s *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body) //nolint:errcheck
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)

	path := strings.TrimPrefix(r.URL.Path, "/")
	head, rest, _ := strings.Cut(path, "/")
	name, key := head, ""
	if i := strings.Index(head, "("); i >= 0 && strings.HasSuffix(head, ")") {
		name = head[:i]
		key = strings.Trim(head[i+1:len(head)-1], "'")
	}
	set, ok := s.sets[name]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "no resource "+name)
		return
	}

	switch {
	case key == "" && rest == "$count" && r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, len(s.matching(set, r.URL.Query().Get("$filter"))))
	case key == "" && r.Method == http.MethodGet:
		s.serveCollection(w, r, set)
	case key == "" && r.Method == http.MethodPost:
		var e Entry
		if err := json.Unmarshal(body, &e); err != nil {
			writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
			return
		}
		k := fmt.Sprint(e[set.key])
		if _, exists := set.entries[k]; exists {
			writeError(w, http.StatusConflict, "Conflict", "duplicate key "+k)
			return
		}
		set.put(k, e)
		writeEntity(w, http.StatusCreated, set, k)
	case key != "":
		s.serveEntity(w, r, set, key, body)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (s *fakeService) matching(set *fakeSet, filter string) []string {
	var keys []string
	for _, k := range set.order {
		if matchFilter(set.entries[k], filter) {
			keys = append(keys, k)
		}
	}
	return keys
}

// matchFilter evaluates "Prop eq 'value'" and "Prop eq number"; anything
// else matches every entry.
func matchFilter(e Entry, filter string) bool {
	prop, value, ok := strings.Cut(filter, " eq ")
	if !ok || strings.ContainsAny(prop, " ()/") {
		return true
	}
	value = strings.Trim(value, "'")
	return fmt.Sprint(e[prop]) == value
}

func (s *fakeService) serveCollection(w http.ResponseWriter, r *http.Request, set *fakeSet) {
	q := r.URL.Query()
	keys := s.matching(set, q.Get("$filter"))
	total := len(keys)

	start := 0
	if skip, err := strconv.Atoi(q.Get("$skiptoken")); err == nil {
		start = skip
	} else if skip, err := strconv.Atoi(q.Get("$skip")); err == nil {
		start = skip
	}
	if start > len(keys) {
		start = len(keys)
	}
	end := len(keys)
	if top, err := strconv.Atoi(q.Get("$top")); err == nil && start+top < end {
		end = start + top
	}
	next := -1
	if s.pageSize > 0 && start+s.pageSize < end {
		end = start + s.pageSize
		next = end
	}

	values := make([]Entry, 0, end-start)
	for _, k := range keys[start:end] {
		values = append(values, withETag(set, k))
	}
	out := map[string]interface{}{"@odata.context": "$metadata#People", "value": values}
	if q.Get("$count") == "true" {
		out["@odata.count"] = total
	}
	if next >= 0 {
		q.Set("$skiptoken", strconv.Itoa(next))
		out["@odata.nextLink"] = strings.TrimPrefix(r.URL.Path, "/") + "?" + q.Encode()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *fakeService) serveEntity(w http.ResponseWriter, r *http.Request, set *fakeSet, key string, body []byte) {
	if _, ok := set.entries[key]; !ok {
		writeError(w, http.StatusNotFound, "NotFound", "no entity "+key)
		return
	}
	if r.Method == http.MethodPatch || r.Method == http.MethodDelete {
		if set.requireETag {
			ifMatch := r.Header.Get("If-Match")
			if ifMatch == "" {
				writeError(w, http.StatusPreconditionRequired, "PreconditionRequired", "If-Match is required")
				return
			}
			if !etag.Match(ifMatch, set.etag(key)) {
				writeError(w, http.StatusPreconditionFailed, "PreconditionFailed", "entity was modified")
				return
			}
		}
	}

	switch r.Method {
	case http.MethodGet:
		writeEntity(w, http.StatusOK, set, key)
	case http.MethodPatch:
		var changes Entry
		if err := json.Unmarshal(body, &changes); err != nil {
			writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
			return
		}
		e := set.entries[key]
		for k, v := range changes {
			e[k] = v
		}
		set.put(key, e)
		if !s.ignorePrefer && strings.Contains(r.Header.Get("Prefer"), "return=representation") {
			w.Header().Set("Preference-Applied", "return=representation")
			writeEntity(w, http.StatusOK, set, key)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		set.remove(key)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (s *fakeService) serveBatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.batches++
	s.mu.Unlock()

	items, err := batchtest.ReadRequests(r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	var out []batch.Item
	for _, item := range items {
		if item.Request != nil {
			out = append(out, batch.Item{Response: s.inner(item.Request)})
			continue
		}
		snapshot := s.snapshot()
		var responses []*batch.Response
		for _, req := range item.Changeset {
			resp := s.inner(req)
			resp.ContentID = req.ContentID
			responses = append(responses, resp)
			if resp.Failed() {
				s.restore(snapshot)
				responses = responses[len(responses)-1:]
				break
			}
		}
		out = append(out, batch.Item{Changeset: responses})
	}
	_ = batchtest.WriteResponses(w, out) //nolint:errcheck
}

func (s *fakeService) inner(req *batchtest.InnerRequest) *batch.Response {
	target := req.URL
	if !strings.Contains(target, "://") && !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	hr := httptest.NewRequest(req.Method, target, bytes.NewReader(req.Body))
	for k, v := range req.Header {
		hr.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.serve(rec, hr)
	return &batch.Response{StatusCode: rec.Code, Header: rec.Header(), Body: rec.Body.Bytes()}
}

func (s *fakeService) snapshot() map[string]*fakeSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*fakeSet, len(s.sets))
	for name, set := range s.sets {
		out[name] = set.clone()
	}
	return out
}

func (s *fakeService) restore(sets map[string]*fakeSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = sets
}

func withETag(set *fakeSet, key string) Entry {
	e := make(Entry, len(set.entries[key])+1)
	for k, v := range set.entries[key] {
		e[k] = v
	}
	e["@odata.etag"] = set.etag(key)
	return e
}

func writeEntity(w http.ResponseWriter, status int, set *fakeSet, key string) {
	w.Header().Set("ETag", set.etag(key))
	writeJSON(w, status, withETag(set, key))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, _ := json.Marshal(v) //nolint:errcheck
	w.Header().Set("Content-Type", "application/json;odata.metadata=minimal")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": message},
	})
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
