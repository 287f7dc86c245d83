package fhirfs

import "testing"

func TestHandleTracker_AddIno(t *testing.T) {
	ht := NewHandleTracker()

	fh := ht.Add(42, false)
	if fh == 0 {
		t.Error("Add returned 0, expected non-zero handle")
	}

	ino, ok := ht.Ino(fh)
	if !ok {
		t.Fatal("Ino() returned ok=false for a just-added handle")
	}
	if ino != 42 {
		t.Errorf("Ino() = %d, want 42", ino)
	}
}

func TestHandleTracker_InoUnknown(t *testing.T) {
	ht := NewHandleTracker()

	if _, ok := ht.Ino(999); ok {
		t.Error("Ino() returned ok=true for a handle that was never added")
	}
}

func TestHandleTracker_MultipleHandles(t *testing.T) {
	ht := NewHandleTracker()

	fh1 := ht.Add(1, false)
	fh2 := ht.Add(2, true)

	if fh1 == fh2 {
		t.Error("Add returned the same handle for two different opens")
	}

	if ino, _ := ht.Ino(fh1); ino != 1 {
		t.Errorf("Ino(fh1) = %d, want 1", ino)
	}
	if ino, _ := ht.Ino(fh2); ino != 2 {
		t.Errorf("Ino(fh2) = %d, want 2", ino)
	}
}

func TestHandleTracker_Release(t *testing.T) {
	ht := NewHandleTracker()

	fh := ht.Add(7, false)

	lastRef, ino := ht.Release(fh)
	if !lastRef {
		t.Error("Release() of a single-reference handle should report lastRef=true")
	}
	if ino != 7 {
		t.Errorf("Release() returned ino=%d, want 7", ino)
	}

	if _, ok := ht.Ino(fh); ok {
		t.Error("Ino() still finds a handle after its last Release()")
	}

	lastRef, _ = ht.Release(fh)
	if lastRef {
		t.Error("Release() of an already-released handle should report lastRef=false")
	}
}

func TestHandleTracker_Count(t *testing.T) {
	ht := NewHandleTracker()

	if ht.Count() != 0 {
		t.Errorf("initial Count() = %d, want 0", ht.Count())
	}

	fh1 := ht.Add(1, false)
	if ht.Count() != 1 {
		t.Errorf("Count() = %d, want 1", ht.Count())
	}

	ht.Add(2, false)
	if ht.Count() != 2 {
		t.Errorf("Count() = %d, want 2", ht.Count())
	}

	ht.Release(fh1)
	if ht.Count() != 1 {
		t.Errorf("Count() = %d, want 1 after release", ht.Count())
	}
}

func TestHandleTracker_CloseAll(t *testing.T) {
	ht := NewHandleTracker()

	ht.Add(1, false)
	ht.Add(2, false)
	ht.Add(3, true)

	if ht.Count() != 3 {
		t.Errorf("Count() = %d, want 3", ht.Count())
	}

	ht.CloseAll()

	if ht.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after CloseAll", ht.Count())
	}
}
