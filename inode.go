package fhirfs

import "sync"

// InodeTable is the bidirectional mapping between kernel inode numbers and
// LogicalPath values, plus the monotonic allocator that hands out new
// inode numbers. Root is always inode 1.
//
// Grounded on _examples/absfs-fusefs/inode.go's InodeManager (path<->inode
// maps under a single lock), generalized from a raw path string key to a
// LogicalPath value per spec §3's inode invariants: every live inode maps
// to exactly one LP and vice versa, and an inode is never reused for a
// semantically different LP during the mount's lifetime.
type InodeTable struct {
	mu          sync.RWMutex
	pathToInode map[LogicalPath]uint64
	inodeToPath map[uint64]LogicalPath
	next        uint64
}

const RootIno uint64 = 1

// NewInodeTable creates a table with the root path pre-bound to inode 1.
func NewInodeTable() *InodeTable {
	t := &InodeTable{
		pathToInode: make(map[LogicalPath]uint64),
		inodeToPath: make(map[uint64]LogicalPath),
		next:        RootIno,
	}
	t.pathToInode[rootPath()] = RootIno
	t.inodeToPath[RootIno] = rootPath()
	return t
}

// Ino returns the inode bound to lp, allocating a fresh one from the
// monotonic counter if lp has never been observed before.
func (t *InodeTable) Ino(lp LogicalPath) uint64 {
	t.mu.RLock()
	if ino, ok := t.pathToInode[lp]; ok {
		t.mu.RUnlock()
		return ino
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if ino, ok := t.pathToInode[lp]; ok {
		return ino
	}

	t.next++
	ino := t.next
	t.pathToInode[lp] = ino
	t.inodeToPath[ino] = lp
	return ino
}

// Lookup returns the LogicalPath bound to ino, if any.
func (t *InodeTable) Lookup(ino uint64) (LogicalPath, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	lp, ok := t.inodeToPath[ino]
	return lp, ok
}

// Forget removes lp's binding entirely. Used when a SearchDir is removed
// (rmdir) or an OperationResultFile is unlinked: the LP genuinely stops
// existing, so a later re-creation should not resurrect the pending body
// or stale attributes of the old inode.
func (t *InodeTable) Forget(lp LogicalPath) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ino, ok := t.pathToInode[lp]; ok {
		delete(t.pathToInode, lp)
		delete(t.inodeToPath, ino)
	}
}

// Count returns the number of live inode bindings, for Stats.
func (t *InodeTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.inodeToPath)
}
