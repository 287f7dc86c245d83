package fhir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBundle_NextLinkFindsRelation(t *testing.T) {
	b := &Bundle{Link: []BundleLink{
		{Relation: "self", URL: "http://example.org/Patient?page=1"},
		{Relation: "next", URL: "http://example.org/Patient?page=2"},
	}}
	if got := b.NextLink(); got != "http://example.org/Patient?page=2" {
		t.Errorf("NextLink() = %q, want the next-relation URL", got)
	}
}

func TestBundle_NextLinkMissingIsEmpty(t *testing.T) {
	b := &Bundle{Link: []BundleLink{{Relation: "self", URL: "http://example.org/Patient"}}}
	if got := b.NextLink(); got != "" {
		t.Errorf("NextLink() = %q, want empty when there is no next page", got)
	}
}

func TestStubOf_ExtractsTypeIDAndMeta(t *testing.T) {
	raw := []byte(`{"resourceType":"Patient","id":"1","meta":{"versionId":"3","lastUpdated":"2026-01-01T00:00:00Z"}}`)
	stub, err := stubOf(raw)
	if err != nil {
		t.Fatalf("stubOf() error = %v", err)
	}

	want := ResourceStub{
		ResourceType: "Patient",
		ID:           "1",
		Meta:         &Meta{VersionID: "3", LastUpdated: "2026-01-01T00:00:00Z"},
	}
	if diff := cmp.Diff(want, stub); diff != "" {
		t.Errorf("stubOf() mismatch (-want +got):\n%s", diff)
	}
}

func TestStubOf_RejectsInvalidJSON(t *testing.T) {
	if _, err := stubOf([]byte(`not json`)); err == nil {
		t.Error("stubOf() should error on invalid JSON")
	}
}

func TestMetaOf_NilWhenNoMetaBlock(t *testing.T) {
	meta, err := MetaOf([]byte(`{"resourceType":"Patient","id":"1"}`))
	if err != nil {
		t.Fatalf("MetaOf() error = %v", err)
	}
	if meta != nil {
		t.Errorf("MetaOf() = %+v, want nil when the body carries no meta block", meta)
	}
}

func TestMetaOf_ExtractsVersionAndLastUpdated(t *testing.T) {
	meta, err := MetaOf([]byte(`{"resourceType":"Patient","id":"1","meta":{"versionId":"5","lastUpdated":"2026-02-02T00:00:00Z"}}`))
	if err != nil {
		t.Fatalf("MetaOf() error = %v", err)
	}
	want := &Meta{VersionID: "5", LastUpdated: "2026-02-02T00:00:00Z"}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Errorf("MetaOf() mismatch (-want +got):\n%s", diff)
	}
}

func TestMetaOf_ErrorsOnInvalidJSON(t *testing.T) {
	if _, err := MetaOf([]byte(`{`)); err == nil {
		t.Error("MetaOf() should error on invalid JSON")
	}
}
