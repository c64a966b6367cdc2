package linkup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"

	"github.com/spachava753/toolloop"
	"github.com/spachava753/toolloop/internal/httputil"
)

type received struct {
	path, auth, body string
}

func newTestClient(t *testing.T, status int, response string) (*Client, <-chan received) {
	t.Helper()
	reqs := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		reqs <- received{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: string(b)}
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	c, err := New("lk-test", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return c, reqs
}

func TestSearch(t *testing.T) {
	testCases := []struct {
		name     string
		req      SearchRequest
		response string
		want     SearchResponse
		wantBody map[string]string
	}{
		{
			name:     "sourced answer by default",
			req:      SearchRequest{Query: "Who won the 2024 Tour de France?"},
			response: `{"answer": "Tadej Pogacar.", "sources": [{"name": "Wikipedia", "url": "https://en.wikipedia.org", "snippet": "Pogacar won"}]}`,
			want: SearchResponse{
				Answer:  "Tadej Pogacar.",
				Sources: []Source{{Name: "Wikipedia", URL: "https://en.wikipedia.org", Snippet: "Pogacar won"}},
			},
			wantBody: map[string]string{"q": "Who won the 2024 Tour de France?", "depth": "standard", "outputType": "sourcedAnswer"},
		},
		{
			name:     "deep search results",
			req:      SearchRequest{Query: "weather Sydney", Depth: Deep, OutputType: SearchResults},
			response: `{"results": [{"name": "BOM", "url": "https://bom.gov.au", "content": "Showers"}]}`,
			want: SearchResponse{
				Results: []Result{{Name: "BOM", URL: "https://bom.gov.au", Content: "Showers"}},
			},
			wantBody: map[string]string{"depth": "deep", "outputType": "searchResults"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, reqs := newTestClient(t, http.StatusOK, tc.response)
			got, err := c.Search(context.Background(), tc.req)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Search() mismatch (-want +got):\n%s", diff)
			}
			r := <-reqs
			if r.path != "/search" {
				t.Errorf("path = %q", r.path)
			}
			if r.auth != "Bearer lk-test" {
				t.Errorf("Authorization = %q", r.auth)
			}
			for path, want := range tc.wantBody {
				if v := gjson.Get(r.body, path).String(); v != want {
					t.Errorf("%s = %q, want %q", path, v, want)
				}
			}
		})
	}
}

func TestSearch_ServerError(t *testing.T) {
	c, _ := newTestClient(t, http.StatusBadRequest, `{"error": {"message": "bad q"}}`)
	_, err := c.Search(context.Background(), SearchRequest{Query: "x"})
	var callErr *httputil.CallErr
	if !errors.As(err, &callErr) || callErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("error = %v, want 400 CallErr", err)
	}
}

func TestCapability(t *testing.T) {
	c, reqs := newTestClient(t, http.StatusOK, `{"answer": "42", "sources": []}`)
	reg, err := toolloop.NewRegistry(c.Capability())
	if err != nil {
		t.Fatal(err)
	}

	res, err := reg.Execute(context.Background(), toolloop.CapabilityInvocation{
		ID:        "call_1",
		Name:      "linkup_search",
		Arguments: map[string]any{"query": "meaning of life", "depth": "deep"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed() || gjson.Get(res.Value, "answer").String() != "42" {
		t.Errorf("result = %+v", res)
	}
	if d := gjson.Get((<-reqs).body, "depth").String(); d != "deep" {
		t.Errorf("depth = %q", d)
	}

	res, err = reg.Execute(context.Background(), toolloop.CapabilityInvocation{
		ID:        "call_2",
		Name:      "linkup_search",
		Arguments: map[string]any{"query": "x", "outputType": "markdown"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Failed() {
		t.Errorf("unsupported outputType should fail, got %+v", res)
	}
}
