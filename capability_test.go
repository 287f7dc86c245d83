package fhirfs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fhirfs/fhirfs/internal/fhir"
)

func TestCapabilityView_OfflineNeverFetches(t *testing.T) {
	v := NewOfflineCapabilityView([]string{"Patient", "Observation"})

	if !v.Offline() {
		t.Error("Offline() = false, want true")
	}

	if err := v.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh() on an offline view returned an error: %v", err)
	}

	caps := v.Get()
	if !caps.HasType("Patient") || !caps.HasType("Observation") {
		t.Error("offline view should report the statically configured types")
	}
	if !caps.IsSearchable("Patient") {
		t.Error("offline view treats every seeded type as searchable")
	}
}

func TestCapabilityView_OfflineEmptyTypes(t *testing.T) {
	v := NewOfflineCapabilityView(nil)

	caps := v.Get()
	if caps.HasType("Patient") {
		t.Error("an offline view with no seed types should have no known types")
	}
}

func TestCapabilityView_RefreshPopulatesCaps(t *testing.T) {
	v := NewCapabilityView(func(ctx context.Context) (*fhir.Capabilities, error) {
		return &fhir.Capabilities{Types: []string{"Patient"}, Searchable: map[string]bool{"Patient": true}}, nil
	}, time.Hour)

	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	caps := v.Get()
	if !caps.HasType("Patient") {
		t.Error("Get() after Refresh() should report the fetched type")
	}
}

func TestCapabilityView_RefreshErrorPropagates(t *testing.T) {
	v := NewCapabilityView(func(ctx context.Context) (*fhir.Capabilities, error) {
		return nil, errors.New("unreachable")
	}, time.Hour)

	if err := v.Refresh(context.Background()); err == nil {
		t.Error("Refresh() should propagate the fetch error")
	}
}

func TestCapabilityView_GetTriggersBackgroundRefreshWhenStale(t *testing.T) {
	var calls atomic.Int32
	refreshed := make(chan struct{}, 1)

	v := NewCapabilityView(func(ctx context.Context) (*fhir.Capabilities, error) {
		calls.Add(1)
		caps := &fhir.Capabilities{Types: []string{"Patient"}, Searchable: map[string]bool{}}
		select {
		case refreshed <- struct{}{}:
		default:
		}
		return caps, nil
	}, time.Millisecond)

	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("initial Refresh() error = %v", err)
	}

	time.Sleep(5 * time.Millisecond) // let the TTL expire

	_ = v.Get() // should return the stale snapshot immediately and kick a background refresh

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Error("Get() on a stale view never triggered a background refresh")
	}
}
