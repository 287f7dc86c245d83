package fhirfs

import "sync"

// pendingWrites holds the per-inode buffered write body for ResourceFile
// inodes that are open for writing. Writes accumulate here and are only
// sent to the server on flush/release, preserving editor atomicity (spec
// §4.2 write/flush contract: "never on each write").
//
// Grounded on the same one-lock-per-map discipline as
// _examples/absfs-fusefs/inode.go's InodeManager; the buffer itself is a
// plain byte slice grown on demand, since resource bodies are small JSON
// documents, not streamed media.
type pendingWrites struct {
	mu      sync.Mutex
	buffers map[uint64][]byte
}

func newPendingWrites() *pendingWrites {
	return &pendingWrites{buffers: make(map[uint64][]byte)}
}

// Init creates an empty pending buffer for ino, used by create() and by
// the first write() against a freshly opened resource file.
func (p *pendingWrites) Init(ino uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.buffers[ino]; !ok {
		p.buffers[ino] = []byte{}
	}
}

// WriteAt fills any gap between the buffer's current length and offset
// with zero bytes, then copies data in at offset, growing the buffer as
// needed. Returns the number of bytes copied.
func (p *pendingWrites) WriteAt(ino uint64, offset int64, data []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := p.buffers[ino]
	end := offset + int64(len(data))
	if int64(len(buf)) < end {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:end], data)
	p.buffers[ino] = buf
	return len(data)
}

// Truncate resizes the pending buffer for ino to size, zero-filling any
// newly exposed bytes when growing.
func (p *pendingWrites) Truncate(ino uint64, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := p.buffers[ino]
	if int64(len(buf)) == size {
		return
	}
	if int64(len(buf)) > size {
		p.buffers[ino] = buf[:size]
		return
	}
	grown := make([]byte, size)
	copy(grown, buf)
	p.buffers[ino] = grown
}

// Get returns the current pending body for ino, and whether one exists.
func (p *pendingWrites) Get(ino uint64) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf, ok := p.buffers[ino]
	return buf, ok
}

// Clear drops the pending buffer for ino, called after a successful flush
// or when the inode is released without ever having been written to a
// committed state that needs retrying.
func (p *pendingWrites) Clear(ino uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.buffers, ino)
}
