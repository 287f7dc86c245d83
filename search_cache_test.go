package fhirfs

import (
	"context"
	"errors"
	"testing"

	"github.com/fhirfs/fhirfs/internal/fhir"
)

func TestSearchCache_MaterializeThenGet(t *testing.T) {
	c := NewSearchCache(func(ctx context.Context, typ, query string) (*fhir.SearchResult, error) {
		return &fhir.SearchResult{ByType: map[string][]fhir.ResourceHit{
			"Patient": {{ID: "1"}, {ID: "2"}},
		}}, nil
	})

	entry, err := c.Materialize(context.Background(), "Patient", "name=Smith")
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if len(entry.ByType["Patient"]) != 2 {
		t.Errorf("len(entry.ByType[Patient]) = %d, want 2", len(entry.ByType["Patient"]))
	}

	got, ok := c.Get("Patient", "name=Smith")
	if !ok {
		t.Fatal("Get() missed after Materialize()")
	}
	if len(got.ByType["Patient"]) != 2 {
		t.Errorf("Get() returned wrong entry")
	}
}

func TestSearchCache_GetMissBeforeMaterialize(t *testing.T) {
	c := NewSearchCache(nil)

	if _, ok := c.Get("Patient", "name=Smith"); ok {
		t.Error("Get() should miss before Materialize()")
	}
}

func TestSearchCache_FailedMaterializeLeavesNoEntry(t *testing.T) {
	c := NewSearchCache(func(ctx context.Context, typ, query string) (*fhir.SearchResult, error) {
		return nil, errors.New("server unreachable")
	})

	if _, err := c.Materialize(context.Background(), "Patient", "name=Smith"); err == nil {
		t.Fatal("Materialize() should propagate the fetch error")
	}

	if _, ok := c.Get("Patient", "name=Smith"); ok {
		t.Error("a failed Materialize() must not leave a cache entry")
	}
}

func TestSearchCache_Invalidate(t *testing.T) {
	c := NewSearchCache(func(ctx context.Context, typ, query string) (*fhir.SearchResult, error) {
		return &fhir.SearchResult{ByType: map[string][]fhir.ResourceHit{}}, nil
	})

	c.Materialize(context.Background(), "Patient", "name=Smith")
	c.Invalidate("Patient", "name=Smith")

	if _, ok := c.Get("Patient", "name=Smith"); ok {
		t.Error("Get() should miss after Invalidate()")
	}
}

func TestSearchCache_DistinctQueriesDistinctEntries(t *testing.T) {
	c := NewSearchCache(func(ctx context.Context, typ, query string) (*fhir.SearchResult, error) {
		return &fhir.SearchResult{ByType: map[string][]fhir.ResourceHit{query: {{ID: query}}}}, nil
	})

	ctx := context.Background()
	c.Materialize(ctx, "Patient", "a=1")
	c.Materialize(ctx, "Patient", "a=2")

	e1, _ := c.Get("Patient", "a=1")
	e2, _ := c.Get("Patient", "a=2")
	if _, ok := e1.ByType["a=1"]; !ok {
		t.Error("query a=1 entry missing its own results")
	}
	if _, ok := e2.ByType["a=2"]; !ok {
		t.Error("query a=2 entry missing its own results")
	}
}
