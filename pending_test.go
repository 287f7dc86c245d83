package fhirfs

import (
	"bytes"
	"testing"
)

func TestPendingWrites_InitThenGet(t *testing.T) {
	p := newPendingWrites()
	p.Init(1)

	buf, ok := p.Get(1)
	if !ok {
		t.Fatal("Get() missed after Init()")
	}
	if len(buf) != 0 {
		t.Errorf("len(buf) = %d, want 0", len(buf))
	}
}

func TestPendingWrites_WriteAtAppend(t *testing.T) {
	p := newPendingWrites()
	p.Init(1)

	n := p.WriteAt(1, 0, []byte("hello"))
	if n != 5 {
		t.Errorf("WriteAt() = %d, want 5", n)
	}

	buf, _ := p.Get(1)
	if !bytes.Equal(buf, []byte("hello")) {
		t.Errorf("buf = %q, want hello", buf)
	}
}

func TestPendingWrites_WriteAtGapZeroFills(t *testing.T) {
	p := newPendingWrites()
	p.Init(1)

	p.WriteAt(1, 3, []byte("XY"))

	buf, _ := p.Get(1)
	want := []byte{0, 0, 0, 'X', 'Y'}
	if !bytes.Equal(buf, want) {
		t.Errorf("buf = %v, want %v", buf, want)
	}
}

func TestPendingWrites_WriteAtOverwrite(t *testing.T) {
	p := newPendingWrites()
	p.Init(1)

	p.WriteAt(1, 0, []byte("hello"))
	p.WriteAt(1, 1, []byte("EL"))

	buf, _ := p.Get(1)
	if !bytes.Equal(buf, []byte("hELlo")) {
		t.Errorf("buf = %q, want hELlo", buf)
	}
}

func TestPendingWrites_TruncateShrink(t *testing.T) {
	p := newPendingWrites()
	p.Init(1)
	p.WriteAt(1, 0, []byte("hello world"))

	p.Truncate(1, 5)

	buf, _ := p.Get(1)
	if !bytes.Equal(buf, []byte("hello")) {
		t.Errorf("buf = %q, want hello", buf)
	}
}

func TestPendingWrites_TruncateGrow(t *testing.T) {
	p := newPendingWrites()
	p.Init(1)
	p.WriteAt(1, 0, []byte("hi"))

	p.Truncate(1, 5)

	buf, _ := p.Get(1)
	want := []byte{'h', 'i', 0, 0, 0}
	if !bytes.Equal(buf, want) {
		t.Errorf("buf = %v, want %v", buf, want)
	}
}

func TestPendingWrites_Clear(t *testing.T) {
	p := newPendingWrites()
	p.Init(1)
	p.WriteAt(1, 0, []byte("hello"))

	p.Clear(1)

	if _, ok := p.Get(1); ok {
		t.Error("Get() should miss after Clear()")
	}
}

func TestPendingWrites_GetMissWithoutInit(t *testing.T) {
	p := newPendingWrites()

	if _, ok := p.Get(42); ok {
		t.Error("Get() should miss for an inode that was never Init()'d")
	}
}
