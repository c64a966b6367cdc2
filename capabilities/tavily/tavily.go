// Package tavily is a client for the Tavily search and extract APIs, exposed as
// the web_search and extract_url capabilities.
package tavily

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spachava753/toolloop"
	"github.com/spachava753/toolloop/internal/httputil"
)

const DefaultBaseURL = "https://api.tavily.com"

// MissingAPIKeyErr is returned by New when no api key is given.
var MissingAPIKeyErr = errors.New("tavily: api key is required")

// Depth selects how thoroughly Tavily searches or extracts.
type Depth string

const (
	Basic    Depth = "basic"
	Advanced Depth = "advanced"
)

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, MissingAPIKeyErr
	}
	c := &Client{apiKey: apiKey, baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httputil.NewClient(0)
	}
	return c, nil
}

type SearchRequest struct {
	Query         string `json:"query"`
	SearchDepth   Depth  `json:"search_depth,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
	IncludeAnswer bool   `json:"include_answer,omitempty"`
}

type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type SearchResponse struct {
	Query        string         `json:"query"`
	Answer       string         `json:"answer,omitempty"`
	Results      []SearchResult `json:"results"`
	ResponseTime float64        `json:"response_time"`
}

func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var resp SearchResponse
	if err := c.post(ctx, "/search", req, &resp); err != nil {
		return SearchResponse{}, fmt.Errorf("tavily search failed: %w", err)
	}
	return resp, nil
}

type ExtractRequest struct {
	URLs          []string `json:"urls"`
	IncludeImages bool     `json:"include_images"`
	ExtractDepth  Depth    `json:"extract_depth,omitempty"`
}

type ExtractResult struct {
	URL        string   `json:"url"`
	RawContent string   `json:"raw_content"`
	Images     []string `json:"images,omitempty"`
}

type FailedResult struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

type ExtractResponse struct {
	Results       []ExtractResult `json:"results"`
	FailedResults []FailedResult  `json:"failed_results"`
	ResponseTime  float64         `json:"response_time"`
}

func (c *Client) Extract(ctx context.Context, req ExtractRequest) (ExtractResponse, error) {
	var resp ExtractResponse
	if err := c.post(ctx, "/extract", req, &resp); err != nil {
		return ExtractResponse{}, fmt.Errorf("tavily extract failed: %w", err)
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return httputil.DoJSON(ctx, c.http, httputil.Request{
		URL:    c.baseURL + path,
		Header: http.Header{"Authorization": {"Bearer " + c.apiKey}},
		Body:   body,
	}, out)
}

type SearchArgs struct {
	Query      string `json:"query" jsonschema:"the search query"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"maximum number of results, 5 when omitted"`
}

func (a *SearchArgs) Validate() error {
	if strings.TrimSpace(a.Query) == "" {
		return errors.New("query must not be empty")
	}
	if a.MaxResults < 0 || a.MaxResults > 20 {
		return fmt.Errorf("maxResults must be between 1 and 20, got %d", a.MaxResults)
	}
	return nil
}

type ExtractArgs struct {
	URL   string `json:"url" jsonschema:"the page to extract"`
	Depth Depth  `json:"depth,omitempty" jsonschema:"basic or advanced, basic when omitted"`
}

func (a *ExtractArgs) Validate() error {
	if !strings.HasPrefix(a.URL, "http://") && !strings.HasPrefix(a.URL, "https://") {
		return fmt.Errorf("url must be absolute http(s), got %q", a.URL)
	}
	switch a.Depth {
	case "", Basic, Advanced:
		return nil
	}
	return fmt.Errorf("depth must be basic or advanced, got %q", a.Depth)
}

// Capabilities returns web_search and extract_url.
func (c *Client) Capabilities() []toolloop.Capability {
	search := toolloop.MustCapability("web_search",
		"Search the web and return the most relevant pages with a short answer",
		func(ctx context.Context, args SearchArgs) (string, error) {
			n := args.MaxResults
			if n == 0 {
				n = 5
			}
			resp, err := c.Search(ctx, SearchRequest{Query: args.Query, MaxResults: n, IncludeAnswer: true})
			if err != nil {
				return "", err
			}
			return marshal(resp)
		})
	extract := toolloop.MustCapability("extract_url",
		"Extract the readable content of a web page",
		func(ctx context.Context, args ExtractArgs) (string, error) {
			depth := args.Depth
			if depth == "" {
				depth = Basic
			}
			resp, err := c.Extract(ctx, ExtractRequest{URLs: []string{args.URL}, ExtractDepth: depth})
			if err != nil {
				return "", err
			}
			if len(resp.Results) == 0 {
				if len(resp.FailedResults) > 0 {
					return "", fmt.Errorf("extraction of %s failed: %s", resp.FailedResults[0].URL, resp.FailedResults[0].Error)
				}
				return "", fmt.Errorf("no content extracted from %s", args.URL)
			}
			return resp.Results[0].RawContent, nil
		})
	return []toolloop.Capability{search, extract}
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
