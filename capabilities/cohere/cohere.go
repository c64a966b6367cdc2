// Package cohere is a client for the Cohere v2 rerank API and the
// rerank_documents capability built on it.
package cohere

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

const (
	DefaultBaseURL = "https://api.cohere.com/v2"
	DefaultModel   = "rerank-v3.5"
)

var MissingAPIKeyErr = errors.New("cohere: api key is required")

type Client struct {
	apiKey  string
	baseURL string
	model   string
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

// WithModel overrides DefaultModel.
func WithModel(m string) Option {
	return func(c *Client) {
		c.model = m
	}
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, MissingAPIKeyErr
	}
	c := &Client{apiKey: apiKey, baseURL: DefaultBaseURL, model: DefaultModel}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httputil.NewClient(0)
	}
	return c, nil
}

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n,omitempty"`
	MaxTokensPerDoc int      `json:"max_tokens_per_doc,omitempty"`
}

// Ranking is the relevance of the document at Index in the reranked input.
type Ranking struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	ID      string    `json:"id"`
	Results []Ranking `json:"results"`
}

// Rerank orders documents by relevance to query, most relevant first. topN
// limits the number of rankings returned; zero returns all of them.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Ranking, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	var resp rerankResponse
	err := httputil.DoJSON(ctx, c.http, httputil.Request{
		URL:    c.baseURL + "/rerank",
		Header: http.Header{"Authorization": {"Bearer " + c.apiKey}},
		Body: rerankRequest{
			Model:     c.model,
			Query:     query,
			Documents: documents,
			TopN:      topN,
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("cohere rerank failed: %w", err)
	}
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("cohere rerank returned index %d for %d documents", r.Index, len(documents))
		}
	}
	return resp.Results, nil
}

type RerankArgs struct {
	Query     string   `json:"query" jsonschema:"what the documents should be relevant to"`
	Documents []string `json:"documents" jsonschema:"the documents to rank"`
	TopN      int      `json:"topN,omitempty" jsonschema:"how many of the best documents to return, all when omitted"`
	// MinScore drops documents scoring below it.
	MinScore float64 `json:"minScore,omitempty" jsonschema:"minimum relevance score between 0 and 1"`
}

func (a *RerankArgs) Validate() error {
	if strings.TrimSpace(a.Query) == "" {
		return errors.New("query must not be empty")
	}
	if len(a.Documents) == 0 {
		return errors.New("documents must not be empty")
	}
	if a.TopN < 0 {
		return fmt.Errorf("topN must not be negative, got %d", a.TopN)
	}
	if a.MinScore < 0 || a.MinScore > 1 {
		return fmt.Errorf("minScore must be between 0 and 1, got %v", a.MinScore)
	}
	return nil
}

type rankedDocument struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevanceScore"`
	Document       string  `json:"document"`
}

// Capability returns rerank_documents backed by c.
func (c *Client) Capability() toolloop.Capability {
	return toolloop.MustCapability("rerank_documents",
		"Rank documents by relevance to a query and return the best ones with their scores",
		func(ctx context.Context, args RerankArgs) (string, error) {
			rankings, err := c.Rerank(ctx, args.Query, args.Documents, args.TopN)
			if err != nil {
				return "", err
			}
			out := make([]rankedDocument, 0, len(rankings))
			for _, r := range rankings {
				if r.RelevanceScore < args.MinScore {
					continue
				}
				out = append(out, rankedDocument{Index: r.Index, RelevanceScore: r.RelevanceScore, Document: args.Documents[r.Index]})
			}
			b, err := json.Marshal(out)
			if err != nil {
				return "", err
			}
			return string(b), nil
		})
}
