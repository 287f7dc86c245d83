package fhirfs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
)

// wOK is the write bit of the access() mask; this filesystem only ever
// needs to distinguish "wants to write" from "doesn't", since every
// logical path kind's readability is uniform (everything visible is
// readable) and execute bits are meaningless for FHIR resources.
const wOK = 2

// Access defers to the kernel when DefaultPermissions is set, which is
// the mount's default (spec doesn't model multi-user access control
// beyond what the server enforces). When disabled, it rejects a write
// check against any logical path kind that isn't writable.
//
// Grounded on _examples/absfs-fusefs/access.go's Access, stripped of the
// owner/group uid/gid comparison that repo needed for a real POSIX
// filesystem: every inode here is synthesized with the mount's single
// configured uid/gid, so ownership never varies per file.
func (n *fuseNode) Access(ctx context.Context, mask uint32) syscall.Errno {
	n.fsys.stats.recordOperation()
	n.fsys.log.WithField("path", n.lp.String()).Debug("access")

	if n.fsys.opts.DefaultPermissions {
		return 0
	}

	if mask&wOK != 0 && !isWritableKind(n.lp.Kind) {
		return syscall.EACCES
	}
	return 0
}

func isWritableKind(k kind) bool {
	return k == kindResourceFile || k == kindSearchDir || k == kindOperationResultFile
}

var _ fs.NodeAccesser = (*fuseNode)(nil)
