package fhirfs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestResourceCache_GetFetchesOnMiss(t *testing.T) {
	var calls atomic.Int32
	c := NewResourceCache(10, time.Minute, func(ctx context.Context, typ, id string) (ResourceEntry, error) {
		calls.Add(1)
		return ResourceEntry{Type: typ, ID: id, Body: []byte(`{"resourceType":"Patient","id":"123"}`)}, nil
	})

	entry, err := c.Get(context.Background(), "Patient", "123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.ID != "123" {
		t.Errorf("entry.ID = %q, want 123", entry.ID)
	}
	if calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1", calls.Load())
	}
}

func TestResourceCache_GetHitsCacheOnSecondCall(t *testing.T) {
	var calls atomic.Int32
	c := NewResourceCache(10, time.Minute, func(ctx context.Context, typ, id string) (ResourceEntry, error) {
		calls.Add(1)
		return ResourceEntry{Type: typ, ID: id}, nil
	})

	ctx := context.Background()
	c.Get(ctx, "Patient", "123")
	c.Get(ctx, "Patient", "123")

	if calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1 (second Get should hit cache)", calls.Load())
	}
}

func TestResourceCache_PeekMiss(t *testing.T) {
	c := NewResourceCache(10, time.Minute, func(ctx context.Context, typ, id string) (ResourceEntry, error) {
		return ResourceEntry{}, nil
	})

	if _, ok := c.Peek("Patient", "999"); ok {
		t.Error("Peek() should miss for an id never fetched or Put")
	}
}

func TestResourceCache_PutThenPeek(t *testing.T) {
	c := NewResourceCache(10, time.Minute, nil)

	c.Put(ResourceEntry{Type: "Patient", ID: "123", VersionID: "1"})

	entry, ok := c.Peek("Patient", "123")
	if !ok {
		t.Fatal("Peek() missed after Put()")
	}
	if entry.VersionID != "1" {
		t.Errorf("entry.VersionID = %q, want 1", entry.VersionID)
	}
}

func TestResourceCache_Invalidate(t *testing.T) {
	c := NewResourceCache(10, time.Minute, nil)
	c.Put(ResourceEntry{Type: "Patient", ID: "123"})

	c.Invalidate("Patient", "123")

	if _, ok := c.Peek("Patient", "123"); ok {
		t.Error("Peek() should miss after Invalidate()")
	}
}

func TestResourceCache_CoalescesConcurrentMisses(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	c := NewResourceCache(10, time.Minute, func(ctx context.Context, typ, id string) (ResourceEntry, error) {
		calls.Add(1)
		close(started)
		<-release
		return ResourceEntry{Type: typ, ID: id}, nil
	})

	ctx := context.Background()
	done := make(chan struct{}, 2)
	go func() { c.Get(ctx, "Patient", "concurrent"); done <- struct{}{} }()
	<-started
	go func() { c.Get(ctx, "Patient", "concurrent"); done <- struct{}{} }()

	close(release)
	<-done
	<-done

	if calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1 (concurrent misses should coalesce)", calls.Load())
	}
}
