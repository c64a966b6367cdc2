// Package documents provides an in-memory document repository and the two
// capabilities a retrieval loop needs: searching documents and reading one.
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/spachava753/toolloop"
)

// Document is a searchable document.
type Document struct {
	ID      string `json:"documentId"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Content string `json:"content"`
}

// Summary is what search returns for each matching document.
type Summary struct {
	ID      string `json:"documentId"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// NotFoundErr is returned when no document has the requested id.
type NotFoundErr string

func (n NotFoundErr) Error() string {
	return fmt.Sprintf("document %q not found", string(n))
}

// Repository holds documents in insertion order. It is safe for concurrent use.
type Repository struct {
	mu    sync.RWMutex
	docs  map[string]Document
	order []string
}

// NewRepository returns a repository holding docs. A later document replaces an
// earlier one with the same id.
func NewRepository(docs ...Document) *Repository {
	r := &Repository{docs: make(map[string]Document, len(docs))}
	for _, d := range docs {
		r.Put(d)
	}
	return r
}

func (r *Repository) Put(d Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.docs == nil {
		r.docs = make(map[string]Document)
	}
	if _, ok := r.docs[d.ID]; !ok {
		r.order = append(r.order, d.ID)
	}
	r.docs[d.ID] = d
}

// Get returns the document with id, or NotFoundErr.
func (r *Repository) Get(id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	if !ok {
		return Document{}, NotFoundErr(id)
	}
	return d, nil
}

// Search returns the documents whose title, summary or content contains query,
// ignoring case. When nothing matches, every document is returned so the model
// can pick one itself.
func (r *Repository) Search(query string) []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)
	var matches, all []Summary
	for _, id := range r.order {
		d := r.docs[id]
		s := Summary{ID: d.ID, Title: d.Title, Summary: d.Summary}
		all = append(all, s)
		if slices.ContainsFunc([]string{d.Title, d.Summary, d.Content}, func(field string) bool {
			return strings.Contains(strings.ToLower(field), q)
		}) {
			matches = append(matches, s)
		}
	}
	if len(matches) == 0 {
		return all
	}
	return matches
}

type SearchArgs struct {
	Query string `json:"query" jsonschema:"keywords to look for in document titles, summaries and contents"`
}

type GetArgs struct {
	DocumentID string `json:"documentId" jsonschema:"the id of the document to read, as returned by search_documents"`
}

// Capabilities returns search_documents and get_document_content backed by r.
func (r *Repository) Capabilities() []toolloop.Capability {
	search := toolloop.MustCapability("search_documents",
		"Search the document repository and return the id, title and summary of relevant documents",
		func(ctx context.Context, args SearchArgs) (string, error) {
			return marshal(r.Search(args.Query))
		})
	get := toolloop.MustCapability("get_document_content",
		"Get the full content of a document by its id",
		func(ctx context.Context, args GetArgs) (string, error) {
			d, err := r.Get(args.DocumentID)
			if err != nil {
				return "", err
			}
			return marshal(struct {
				ID      string `json:"documentId"`
				Title   string `json:"title"`
				Content string `json:"content"`
			}{d.ID, d.Title, d.Content})
		})
	return []toolloop.Capability{search, get}
}

func marshal(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
