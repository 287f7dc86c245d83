package fhirfs

import (
	"sync"
	"sync/atomic"
)

// HandleTracker allocates and ref-counts open file handle ids. Unlike the
// teacher's HandleTracker, a handle here doesn't own an OS file: reads and
// writes are served straight out of the caches and the pending-write
// buffer keyed by inode, so a handle only needs to remember which inode it
// belongs to and how many opens are sharing it.
//
// Grounded on _examples/absfs-fusefs/handles.go's allocation/ref-counting
// shape, adapted to drop the wrapped absfs.File this filesystem has no
// use for.
type HandleTracker struct {
	mu         sync.RWMutex
	handles    map[uint64]*handleEntry
	nextHandle atomic.Uint64
}

type handleEntry struct {
	ino      uint64
	refCount int32
	writable bool
}

func NewHandleTracker() *HandleTracker {
	return &HandleTracker{handles: make(map[uint64]*handleEntry)}
}

// Add allocates a new handle bound to ino.
func (ht *HandleTracker) Add(ino uint64, writable bool) uint64 {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	fh := ht.nextHandle.Add(1)
	ht.handles[fh] = &handleEntry{ino: ino, refCount: 1, writable: writable}
	return fh
}

// Ino returns the inode a handle is bound to, or (0, false) if unknown.
func (ht *HandleTracker) Ino(fh uint64) (uint64, bool) {
	ht.mu.RLock()
	defer ht.mu.RUnlock()
	e, ok := ht.handles[fh]
	if !ok {
		return 0, false
	}
	return e.ino, true
}

// Release decrements the handle's reference count, removing it once it
// reaches zero. Returns (lastRef, ino): lastRef is true when this call
// dropped the final reference, meaning the caller should run
// release-time commit logic for ino.
func (ht *HandleTracker) Release(fh uint64) (lastRef bool, ino uint64) {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	e, ok := ht.handles[fh]
	if !ok {
		return false, 0
	}

	e.refCount--
	if e.refCount <= 0 {
		delete(ht.handles, fh)
		return true, e.ino
	}
	return false, e.ino
}

// CloseAll drops every open handle, called on unmount.
func (ht *HandleTracker) CloseAll() {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	ht.handles = make(map[uint64]*handleEntry)
}

// Count returns the number of open handles.
func (ht *HandleTracker) Count() int {
	ht.mu.RLock()
	defer ht.mu.RUnlock()
	return len(ht.handles)
}
