package fhirfs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Statfs reports synthetic, effectively unbounded capacity: this is a
// virtual projection of a remote server with no local block storage of
// its own to report on.
//
// Grounded on _examples/absfs-fusefs/statfs.go's Statfs, minus the
// StatFSer indirection that repo used to delegate to a real backing
// filesystem — there's nothing analogous to delegate to here.
func (n *fuseNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	n.fsys.stats.recordOperation()
	n.fsys.log.WithField("path", n.lp.String()).Debug("statfs")

	out.Blocks = 1 << 30
	out.Bfree = 1 << 30
	out.Bavail = 1 << 30
	out.Files = 1 << 20
	out.Ffree = 1 << 20
	out.Bsize = 4096
	out.NameLen = 255
	out.Frsize = 4096
	return 0
}

var _ fs.NodeStatfser = (*fuseNode)(nil)
