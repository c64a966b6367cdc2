package tavily

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"

	"github.com/spachava753/toolloop"
	"github.com/spachava753/toolloop/internal/httputil"
)

type recorded struct {
	mu               sync.Mutex
	path, auth, body string
}

func (r *recorded) get() (path, auth, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path, r.auth, r.body
}

func newServer(t *testing.T, status int, response string, got *recorded) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got.mu.Lock()
		got.path, got.auth, got.body = r.URL.Path, r.Header.Get("Authorization"), string(b)
		got.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	c, err := New("tvly-test", WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func execute(t *testing.T, c *Client, name string, args map[string]any) toolloop.CapabilityResult {
	t.Helper()
	reg, err := toolloop.NewRegistry(c.Capabilities()...)
	if err != nil {
		t.Fatal(err)
	}
	res, err := reg.Execute(context.Background(), toolloop.CapabilityInvocation{ID: "call_1", Name: name, Arguments: args})
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New(""); !errors.Is(err, MissingAPIKeyErr) {
		t.Errorf("New(\"\") error = %v, want MissingAPIKeyErr", err)
	}
}

func TestSearch(t *testing.T) {
	var got recorded
	c := newServer(t, http.StatusOK, `{
		"query": "weather in Adelaide",
		"answer": "Mild and sunny.",
		"results": [{"title": "BOM", "url": "https://bom.gov.au", "content": "Sunny, 24C", "score": 0.91}],
		"response_time": 1.2
	}`, &got)

	resp, err := c.Search(context.Background(), SearchRequest{Query: "weather in Adelaide", MaxResults: 3, IncludeAnswer: true})
	if err != nil {
		t.Fatal(err)
	}
	want := SearchResponse{
		Query:        "weather in Adelaide",
		Answer:       "Mild and sunny.",
		Results:      []SearchResult{{Title: "BOM", URL: "https://bom.gov.au", Content: "Sunny, 24C", Score: 0.91}},
		ResponseTime: 1.2,
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}
	path, auth, body := got.get()
	if path != "/search" {
		t.Errorf("path = %q", path)
	}
	if auth != "Bearer tvly-test" {
		t.Errorf("Authorization = %q", auth)
	}
	if q := gjson.Get(body, "query").String(); q != "weather in Adelaide" {
		t.Errorf("query = %q", q)
	}
	if n := gjson.Get(body, "max_results").Int(); n != 3 {
		t.Errorf("max_results = %d", n)
	}
	if gjson.Get(body, "search_depth").Exists() {
		t.Errorf("search_depth should be omitted: %s", body)
	}
}

func TestExtract(t *testing.T) {
	var got recorded
	c := newServer(t, http.StatusOK, `{
		"results": [{"url": "https://example.com", "raw_content": "Example Domain"}],
		"failed_results": [],
		"response_time": 0.4
	}`, &got)

	resp, err := c.Extract(context.Background(), ExtractRequest{URLs: []string{"https://example.com"}, ExtractDepth: Advanced})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].RawContent != "Example Domain" {
		t.Errorf("Extract() = %+v", resp)
	}
	path, _, body := got.get()
	if path != "/extract" {
		t.Errorf("path = %q", path)
	}
	if d := gjson.Get(body, "extract_depth").String(); d != "advanced" {
		t.Errorf("extract_depth = %q", d)
	}
	if !gjson.Get(body, "include_images").Exists() {
		t.Errorf("include_images should always be sent: %s", body)
	}
}

func TestSearch_StatusError(t *testing.T) {
	var got recorded
	c := newServer(t, http.StatusUnauthorized, `{"detail": {"error": "Unauthorized: missing or invalid API key."}}`, &got)

	_, err := c.Search(context.Background(), SearchRequest{Query: "q"})
	var callErr *httputil.CallErr
	if !errors.As(err, &callErr) {
		t.Fatalf("error = %v, want *httputil.CallErr", err)
	}
	if callErr.StatusCode != http.StatusUnauthorized || callErr.Temporary() {
		t.Errorf("CallErr = %+v", callErr)
	}
}

func TestCapabilities(t *testing.T) {
	t.Run("web_search defaults to five results", func(t *testing.T) {
		var got recorded
		c := newServer(t, http.StatusOK, `{"query": "go", "results": []}`, &got)
		res := execute(t, c, "web_search", map[string]any{"query": "go"})
		if res.Failed() {
			t.Fatalf("web_search failed: %s", res.FailureReason)
		}
		_, _, body := got.get()
		if n := gjson.Get(body, "max_results").Int(); n != 5 {
			t.Errorf("max_results = %d, want 5", n)
		}
		if !gjson.Get(body, "include_answer").Bool() {
			t.Errorf("include_answer not set: %s", body)
		}
		if gjson.Get(res.Value, "query").String() != "go" {
			t.Errorf("Value = %s", res.Value)
		}
	})

	t.Run("web_search rejects empty query", func(t *testing.T) {
		var got recorded
		c := newServer(t, http.StatusOK, `{}`, &got)
		res := execute(t, c, "web_search", map[string]any{"query": " "})
		if path, _, _ := got.get(); !res.Failed() || path != "" {
			t.Errorf("result = %+v, request path %q", res, path)
		}
	})

	t.Run("extract_url returns raw content", func(t *testing.T) {
		var got recorded
		c := newServer(t, http.StatusOK, `{"results": [{"url": "https://example.com", "raw_content": "hello"}]}`, &got)
		res := execute(t, c, "extract_url", map[string]any{"url": "https://example.com"})
		if res.Value != "hello" {
			t.Errorf("result = %+v", res)
		}
		_, _, body := got.get()
		if d := gjson.Get(body, "extract_depth").String(); d != "basic" {
			t.Errorf("extract_depth = %q, want basic", d)
		}
	})

	t.Run("extract_url reports failed results", func(t *testing.T) {
		var got recorded
		c := newServer(t, http.StatusOK, `{"results": [], "failed_results": [{"url": "https://example.com", "error": "blocked"}]}`, &got)
		res := execute(t, c, "extract_url", map[string]any{"url": "https://example.com"})
		if !strings.Contains(res.FailureReason, "blocked") {
			t.Errorf("FailureReason = %q", res.FailureReason)
		}
	})

	t.Run("extract_url rejects relative url", func(t *testing.T) {
		var got recorded
		c := newServer(t, http.StatusOK, `{}`, &got)
		res := execute(t, c, "extract_url", map[string]any{"url": "example.com"})
		if !res.Failed() {
			t.Errorf("result = %+v", res)
		}
	})
}
