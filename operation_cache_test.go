package fhirfs

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"
)

func TestOperationCache_MaterializeInvokesOnce(t *testing.T) {
	var calls atomic.Int32
	c := NewOperationCache(func(ctx context.Context, typ, op, args, format string) ([]byte, error) {
		calls.Add(1)
		return []byte(`{"resourceType":"Bundle"}`), nil
	})

	ctx := context.Background()
	body1, err := c.Materialize(ctx, "Patient", "everything", "id=123", "json")
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	body2, err := c.Materialize(ctx, "Patient", "everything", "id=123", "json")
	if err != nil {
		t.Fatalf("second Materialize() error = %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("invoke called %d times, want 1 (re-touch must not re-invoke)", calls.Load())
	}
	if string(body1) != string(body2) {
		t.Error("Materialize() returned different bodies on repeated calls")
	}
}

func TestOperationCache_GetBeforeMaterialize(t *testing.T) {
	c := NewOperationCache(nil)

	if _, ok := c.Get("Patient", "everything", "id=123", "json"); ok {
		t.Error("Get() should miss before Materialize()")
	}
}

func TestOperationCache_List(t *testing.T) {
	c := NewOperationCache(func(ctx context.Context, typ, op, args, format string) ([]byte, error) {
		return []byte("x"), nil
	})

	ctx := context.Background()
	c.Materialize(ctx, "Patient", "everything", "id=1", "json")
	c.Materialize(ctx, "Patient", "everything", "id=2", "csv")
	c.Materialize(ctx, "Patient", "validate", "id=1", "json")

	names := c.List("Patient", "everything")
	sort.Strings(names)

	want := []string{"id=1.json", "id=2.csv"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestOperationCache_Invalidate(t *testing.T) {
	c := NewOperationCache(func(ctx context.Context, typ, op, args, format string) ([]byte, error) {
		return []byte("x"), nil
	})

	c.Materialize(context.Background(), "Patient", "everything", "id=1", "json")
	c.Invalidate("Patient", "everything", "id=1", "json")

	if _, ok := c.Get("Patient", "everything", "id=1", "json"); ok {
		t.Error("Get() should miss after Invalidate()")
	}
}
