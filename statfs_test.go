package fhirfs

import (
	"context"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
)

func TestStatfs_ReportsSyntheticCapacity(t *testing.T) {
	fsys := newTestFhirFS(t, nil)
	n := fsys.child(rootPath())

	var out fuse.StatfsOut
	if errno := n.Statfs(context.Background(), &out); errno != 0 {
		t.Fatalf("Statfs() errno = %v", errno)
	}
	if out.Blocks == 0 || out.Bfree == 0 || out.Files == 0 {
		t.Error("Statfs() should report non-zero synthetic capacity")
	}
	if out.Bsize != 4096 {
		t.Errorf("Bsize = %d, want 4096", out.Bsize)
	}
}
