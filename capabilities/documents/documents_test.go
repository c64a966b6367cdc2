package documents

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spachava753/toolloop"
)

func ids(summaries []Summary) []string {
	var out []string
	for _, s := range summaries {
		out = append(out, s.ID)
	}
	return out
}

func TestRepository_Search(t *testing.T) {
	repo := NewRepository(Contoso()...)

	testCases := []struct {
		query string
		want  []string
	}{
		{query: "northwind", want: []string{"DOC001"}},
		{query: "EMPLOYEE HANDBOOK", want: []string{"DOC002"}},
		{query: "Chief Technology Officer", want: []string{"DOC003"}},
		{query: "contoso", want: []string{"DOC001", "DOC002", "DOC003"}},
		{query: "quantum entanglement", want: []string{"DOC001", "DOC002", "DOC003"}},
	}
	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, ids(repo.Search(tc.query))); diff != "" {
				t.Errorf("Search(%q) mismatch (-want +got):\n%s", tc.query, diff)
			}
		})
	}
}

func TestRepository_Get(t *testing.T) {
	repo := NewRepository(Contoso()...)

	d, err := repo.Get("DOC002")
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "Contoso Electronics Employee Handbook" {
		t.Errorf("Title = %q", d.Title)
	}

	_, err = repo.Get("DOC999")
	var nf NotFoundErr
	if !errors.As(err, &nf) || string(nf) != "DOC999" {
		t.Errorf("Get(DOC999) error = %v, want NotFoundErr", err)
	}
}

func TestRepository_PutReplaces(t *testing.T) {
	repo := NewRepository(Document{ID: "a", Title: "first"}, Document{ID: "b", Title: "second"})
	repo.Put(Document{ID: "a", Title: "updated"})

	got := repo.Search("zzz")
	want := []Summary{{ID: "a", Title: "updated"}, {ID: "b", Title: "second"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}

	var zero Repository
	zero.Put(Document{ID: "z"})
	if _, err := zero.Get("z"); err != nil {
		t.Errorf("zero Repository should accept documents: %v", err)
	}
}

func TestCapabilities(t *testing.T) {
	repo := NewRepository(Contoso()...)
	reg, err := toolloop.NewRegistry(repo.Capabilities()...)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	res, err := reg.Execute(ctx, toolloop.CapabilityInvocation{ID: "1", Name: "search_documents", Arguments: map[string]any{"query": "health plan"}})
	if err != nil || res.Failed() {
		t.Fatalf("search_documents = %+v, %v", res, err)
	}
	var found []Summary
	if err := json.Unmarshal([]byte(res.Value), &found); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"DOC001"}, ids(found)); diff != "" {
		t.Errorf("search ids mismatch (-want +got):\n%s", diff)
	}

	res, err = reg.Execute(ctx, toolloop.CapabilityInvocation{ID: "2", Name: "get_document_content", Arguments: map[string]any{"documentId": "DOC001"}})
	if err != nil || res.Failed() {
		t.Fatalf("get_document_content = %+v, %v", res, err)
	}
	if !strings.Contains(res.Value, "Northwind Health Plus") {
		t.Errorf("document content missing plan name: %s", res.Value)
	}

	res, err = reg.Execute(ctx, toolloop.CapabilityInvocation{ID: "3", Name: "get_document_content", Arguments: map[string]any{"documentId": "DOC404"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.FailureReason != `document "DOC404" not found` {
		t.Errorf("FailureReason = %q", res.FailureReason)
	}
}
