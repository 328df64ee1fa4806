package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestURLCommand(t *testing.T) {
	const svc = "http://example.com/svc"
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "filter and top",
			args: []string{"--set", "People", "--filter", "FirstName eq 'Scott'", "--top", "2"},
			want: svc + "/People?$filter=FirstName%20eq%20'Scott'&$top=2",
		},
		{
			name: "string key",
			args: []string{"--set", "People", "--key", "'russellwhyte'"},
			want: svc + "/People('russellwhyte')",
		},
		{
			name: "bare key is a string",
			args: []string{"--set", "People", "--key", "russellwhyte"},
			want: svc + "/People('russellwhyte')",
		},
		{
			name: "named composite key",
			args: []string{"--set", "Tickets", "--key", "Seat='12A',OrderId=7"},
			want: svc + "/Tickets(OrderId=7,Seat='12A')",
		},
		{
			name: "navigation with key",
			args: []string{"--set", "People", "--key", "russellwhyte", "--nav", "Trips:1", "--select", "Name"},
			want: svc + "/People('russellwhyte')/Trips(1)?$select=Name",
		},
		{
			name: "order and zero skip",
			args: []string{"--set", "People", "--orderby", "LastName desc", "--skip", "0", "--count"},
			want: svc + "/People?$orderby=LastName%20desc&$skip=0&$count=true",
		},
		{
			name: "version 3 count",
			args: []string{"--set", "People", "--count", "--odata-version", "3.0"},
			want: svc + "/People?$inlinecount=allpages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"url", "--url", svc}, tt.args...)
			got, err := run(t, args...)
			if err != nil {
				t.Fatalf("url error = %v", err)
			}
			if strings.TrimSpace(got) != tt.want {
				t.Errorf("url = %q, want %q", strings.TrimSpace(got), tt.want)
			}
		})
	}
}

func TestURLCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no service", []string{"url", "--set", "People"}},
		{"no set", []string{"url", "--url", "http://example.com"}},
		{"profile without file", []string{"url", "--profile", "x", "--set", "People"}},
		{"mixed key", []string{"url", "--url", "http://example.com", "--set", "T", "--key", "7,Seat='A'"}},
		{"positional composite without schema", []string{"url", "--url", "http://example.com", "--set", "T", "--key", "7,'A'"}},
		{"bad order", []string{"url", "--url", "http://example.com", "--set", "T", "--orderby", "A sideways"}},
		{"bad header", []string{"url", "--url", "http://example.com", "--set", "T", "--header", "nocolon"}},
		{"bad version", []string{"url", "--url", "http://example.com", "--set", "T", "--odata-version", "2.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParseKeyValue(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"42", int64(42)},
		{"'it''s'", "it's"},
		{"abc", "abc"},
		{"'1'", "1"},
	}
	for _, tt := range tests {
		got, err := parseKeyValue(tt.in)
		if err != nil {
			t.Fatalf("parseKeyValue(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseKeyValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
	if _, err := parseKeyValue("'open"); err == nil {
		t.Error("unterminated string accepted")
	}
}

func TestSplitKey(t *testing.T) {
	got := splitKey("A='x,y', B=2")
	if len(got) != 2 || got[0] != "A='x,y'" || got[1] != "B=2" {
		t.Errorf("splitKey = %q", got)
	}
}

type recorder struct {
	mu      sync.Mutex
	headers []http.Header
}

func (r *recorder) all() []http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]http.Header(nil), r.headers...)
}

func newPeopleServer(t *testing.T, rec *recorder) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.headers = append(rec.headers, r.Header.Clone())
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json;odata.metadata=minimal")
		w.Header().Set("OData-Version", "4.0")
		switch {
		case r.URL.Path == "/People('russellwhyte')":
			_, _ = w.Write([]byte(`{"UserName":"russellwhyte","FirstName":"Russell"}`))
		case r.URL.Path == "/People" && r.URL.Query().Get("$skiptoken") == "":
			_, _ = w.Write([]byte(`{"@odata.count":3,"@odata.nextLink":"` + srv.URL + `/People?$skiptoken=2","value":[{"UserName":"russellwhyte"},{"UserName":"scottketchum"}]}`))
		case r.URL.Path == "/People":
			_, _ = w.Write([]byte(`{"value":[{"UserName":"ronaldmundy"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NotFound","message":"no such resource"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func userNames(t *testing.T, entries []map[string]interface{}) []string {
	t.Helper()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e["UserName"].(string))
	}
	return names
}

func TestGetCommand(t *testing.T) {
	srv := newPeopleServer(t, &recorder{})

	t.Run("single entity", func(t *testing.T) {
		out, err := run(t, "get", "--url", srv.URL, "--set", "People", "--key", "russellwhyte")
		if err != nil {
			t.Fatalf("get error = %v", err)
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(out), &entry); err != nil {
			t.Fatalf("output %q is not JSON: %v", out, err)
		}
		if entry["FirstName"] != "Russell" {
			t.Errorf("FirstName = %v, want Russell", entry["FirstName"])
		}
	})

	t.Run("first page with count", func(t *testing.T) {
		out, err := run(t, "get", "--url", srv.URL, "--set", "People", "--count")
		if err != nil {
			t.Fatalf("get error = %v", err)
		}
		var result struct {
			Count    int64                    `json:"count"`
			NextLink string                   `json:"nextLink"`
			Value    []map[string]interface{} `json:"value"`
		}
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("output %q is not JSON: %v", out, err)
		}
		if result.Count != 3 || len(result.Value) != 2 {
			t.Errorf("count = %d, entries = %d; want 3 and 2", result.Count, len(result.Value))
		}
		if !strings.HasSuffix(result.NextLink, "$skiptoken=2") {
			t.Errorf("nextLink = %q", result.NextLink)
		}
	})

	t.Run("all pages", func(t *testing.T) {
		out, err := run(t, "get", "--url", srv.URL, "--set", "People", "--all")
		if err != nil {
			t.Fatalf("get error = %v", err)
		}
		var entries []map[string]interface{}
		if err := json.Unmarshal([]byte(out), &entries); err != nil {
			t.Fatalf("output %q is not JSON: %v", out, err)
		}
		got := strings.Join(userNames(t, entries), ",")
		if got != "russellwhyte,scottketchum,ronaldmundy" {
			t.Errorf("entries = %s", got)
		}
	})

	t.Run("service error", func(t *testing.T) {
		_, err := run(t, "get", "--url", srv.URL, "--set", "Pets")
		if err == nil || !strings.Contains(err.Error(), "no such resource") {
			t.Errorf("get error = %v, want the service message", err)
		}
	})
}

func TestGetCommandUsesProfile(t *testing.T) {
	rec := &recorder{}
	srv := newPeopleServer(t, rec)

	doc := "default: trippin\n" +
		"profiles:\n" +
		"  trippin:\n" +
		"    base_url: " + srv.URL + "\n" +
		"    page_size: 50\n" +
		"    headers:\n" +
		"      X-Api-Key: secret\n" +
		"  other:\n" +
		"    base_url: http://unused.example.com\n"
	path := filepath.Join(t.TempDir(), "services.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, "get", "--config", path, "--page-size", "2", "--header", "X-Trace: 1", "--set", "People", "--key", "russellwhyte")
	if err != nil {
		t.Fatalf("get error = %v", err)
	}
	headers := rec.all()
	if len(headers) != 1 {
		t.Fatalf("requests = %d, want 1", len(headers))
	}
	h := headers[0]
	if got := h.Get("X-Api-Key"); got != "secret" {
		t.Errorf("X-Api-Key = %q, want the profile header", got)
	}
	if got := h.Get("X-Trace"); got != "1" {
		t.Errorf("X-Trace = %q, want the flag header", got)
	}
	if got := h.Get("Prefer"); !strings.Contains(got, "odata.maxpagesize=2") {
		t.Errorf("Prefer = %q, want the flag page size", got)
	}

	if _, err := run(t, "get", "--config", path, "--profile", "missing", "--set", "People"); err == nil {
		t.Error("unknown profile accepted")
	}
}
