// Package linkup is a client for the Linkup search API and the linkup_search
// capability built on it.
package linkup

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

const DefaultBaseURL = "https://api.linkup.so/v1"

var MissingAPIKeyErr = errors.New("linkup: api key is required")

type Depth string

const (
	Standard Depth = "standard"
	Deep     Depth = "deep"
)

// OutputType selects the shape of a search response.
type OutputType string

const (
	// SourcedAnswer asks Linkup to write an answer and cite its sources.
	SourcedAnswer OutputType = "sourcedAnswer"
	// SearchResults returns the raw result pages.
	SearchResults OutputType = "searchResults"
)

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

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
	Query         string     `json:"q"`
	Depth         Depth      `json:"depth"`
	OutputType    OutputType `json:"outputType"`
	IncludeImages bool       `json:"includeImages"`
}

type Source struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

type Result struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchResponse holds either Answer and Sources or Results, depending on the
// requested OutputType.
type SearchResponse struct {
	Answer  string   `json:"answer,omitempty"`
	Sources []Source `json:"sources,omitempty"`
	Results []Result `json:"results,omitempty"`
}

// Search runs req. Depth defaults to Standard and OutputType to SourcedAnswer.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if req.Depth == "" {
		req.Depth = Standard
	}
	if req.OutputType == "" {
		req.OutputType = SourcedAnswer
	}
	var resp SearchResponse
	err := httputil.DoJSON(ctx, c.http, httputil.Request{
		URL:    c.baseURL + "/search",
		Header: http.Header{"Authorization": {"Bearer " + c.apiKey}},
		Body:   req,
	}, &resp)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("linkup search failed: %w", err)
	}
	return resp, nil
}

type SearchArgs struct {
	Query      string     `json:"query" jsonschema:"the search query"`
	Depth      Depth      `json:"depth,omitempty" jsonschema:"standard for quick lookups, deep for thorough research"`
	OutputType OutputType `json:"outputType,omitempty" jsonschema:"sourcedAnswer for an answer with citations, searchResults for raw pages"`
}

func (a *SearchArgs) Validate() error {
	if strings.TrimSpace(a.Query) == "" {
		return errors.New("query must not be empty")
	}
	switch a.Depth {
	case "", Standard, Deep:
	default:
		return fmt.Errorf("depth must be standard or deep, got %q", a.Depth)
	}
	switch a.OutputType {
	case "", SourcedAnswer, SearchResults:
	default:
		return fmt.Errorf("outputType must be sourcedAnswer or searchResults, got %q", a.OutputType)
	}
	return nil
}

// Capability returns linkup_search backed by c.
func (c *Client) Capability() toolloop.Capability {
	return toolloop.MustCapability("linkup_search",
		"Search the web with Linkup for up to date information",
		func(ctx context.Context, args SearchArgs) (string, error) {
			resp, err := c.Search(ctx, SearchRequest{Query: args.Query, Depth: args.Depth, OutputType: args.OutputType})
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(resp)
			if err != nil {
				return "", err
			}
			return string(b), nil
		})
}
