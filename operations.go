package fhirfs

import (
	"context"
	"encoding/json"
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/sirupsen/logrus"

	"github.com/fhirfs/fhirfs/internal/fhir"
)

// Lookup resolves a child name under n.lp per the path router's grammar
// (path.go route), then confirms the child actually exists before handing
// the kernel an inode — a syntactically valid name is not the same as a
// live resource (spec §4.1: "A .<id> name is only valid when a matching
// ResourceFile{T,id} is known").
func (n *fuseNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.fsys.stats.recordOperation()
	n.fsys.log.WithFields(logrus.Fields{"path": n.lp.String(), "name": name}).Debug("lookup")
	if n.fsys.checkUnmounting() {
		return nil, syscall.ENOTCONN
	}

	child, errno := route(n.lp, name)
	if errno != 0 {
		return nil, errno
	}

	if errno := n.fsys.confirmExists(ctx, child); errno != 0 {
		n.fsys.stats.recordError()
		return nil, errno
	}

	ino := n.fsys.inodes.Ino(child)
	n.fsys.fillAttr(&out.Attr, child, ino)
	out.SetEntryTimeout(n.fsys.opts.EntryTimeout)
	out.SetAttrTimeout(n.fsys.opts.AttrTimeout)

	mode := uint32(syscall.S_IFREG)
	if child.IsDir() {
		mode = syscall.S_IFDIR
	}
	return n.NewInode(ctx, n.fsys.child(child), fs.StableAttr{Mode: mode, Ino: ino}), 0
}

// confirmExists checks (without necessarily hitting the network for
// kinds whose existence can be established from a parent's cached state)
// that lp denotes something the caller can actually see right now.
func (fsys *FhirFS) confirmExists(ctx context.Context, lp LogicalPath) syscall.Errno {
	switch lp.Kind {
	case kindTypeDir:
		caps := fsys.caps.Get()
		if caps != nil && !caps.HasType(lp.Type) {
			return syscall.ENOENT
		}
		return 0

	case kindResourceFile:
		if _, err := fsys.resources.Get(ctx, lp.Type, lp.ID); err != nil {
			return mapError(err)
		}
		return 0

	case kindHistoryDir:
		if _, err := fsys.resources.Get(ctx, lp.Type, lp.ID); err != nil {
			return mapError(err)
		}
		return 0

	case kindHistoryFile:
		versions, err := fsys.histories.Get(ctx, lp.Type, lp.ID)
		if err != nil {
			return mapError(err)
		}
		for _, v := range versions {
			if v.Version == lp.Version {
				return 0
			}
		}
		return syscall.ENOENT

	case kindSearchRoot, kindOperationDir:
		return 0

	case kindSearchDir:
		if _, ok := fsys.searches.Get(lp.Type, lp.Query); !ok {
			return syscall.ENOENT
		}
		return 0

	case kindSearchIncludeTypeDir:
		entry, ok := fsys.searches.Get(lp.Type, lp.Query)
		if !ok {
			return syscall.ENOENT
		}
		if _, ok := entry.ByType[lp.IncludedType]; !ok {
			return syscall.ENOENT
		}
		return 0

	case kindSearchResultFile:
		entry, ok := fsys.searches.Get(lp.Type, lp.Query)
		if !ok {
			return syscall.ENOENT
		}
		for _, hit := range entry.ByType[lp.IncludedType] {
			if hit.ID == lp.ID {
				return 0
			}
		}
		return syscall.ENOENT

	case kindOperationResultFile:
		return 0

	default:
		return 0
	}
}

// Getattr fills POSIX attributes from the logical path's kind, per spec
// §4.2: mode bits from kind, size from cached body length, mtime from
// meta.lastUpdated when known.
func (n *fuseNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.fsys.stats.recordOperation()
	n.fsys.log.WithField("path", n.lp.String()).Debug("getattr")
	if n.fsys.checkUnmounting() {
		return syscall.ENOTCONN
	}

	ino := n.fsys.inodes.Ino(n.lp)
	n.fsys.fillAttr(&out.Attr, n.lp, ino)
	out.SetTimeout(n.fsys.opts.AttrTimeout)
	return 0
}

// Readdir lists children by logical path kind. Only TypeDir and
// HistoryDir trigger a server call; the rest are served from already
// materialized cache state (spec §4.2).
func (n *fuseNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	n.fsys.stats.recordOperation()
	n.fsys.log.WithField("path", n.lp.String()).Debug("readdir")
	if n.fsys.checkUnmounting() {
		return nil, syscall.ENOTCONN
	}

	entries, errno := n.fsys.listChildren(ctx, n.lp)
	if errno != 0 {
		n.fsys.stats.recordError()
		return nil, errno
	}
	return fs.NewListDirStream(entries), 0
}

func (fsys *FhirFS) listChildren(ctx context.Context, lp LogicalPath) ([]fuse.DirEntry, syscall.Errno) {
	var out []fuse.DirEntry
	add := func(name string, child LogicalPath) {
		mode := uint32(syscall.S_IFREG)
		if child.IsDir() {
			mode = syscall.S_IFDIR
		}
		out = append(out, fuse.DirEntry{Name: name, Ino: fsys.inodes.Ino(child), Mode: mode})
	}

	switch lp.Kind {
	case kindRoot:
		caps := fsys.caps.Get()
		if caps == nil {
			return out, 0
		}
		for _, t := range caps.Types {
			add(t, typeDirPath(t))
		}
		return out, 0

	case kindTypeDir:
		result, err := fsys.client.Search(ctx, lp.Type, "_count=100")
		if err != nil {
			return nil, mapError(err)
		}
		for _, hit := range result.ByType[lp.Type] {
			fsys.resources.Put(entryFromHit(lp.Type, hit, metaOrNil(hit.Body)))
			add(resourceFileName(hit.ID), resourceFilePath(lp.Type, hit.ID))
			add(historyDirName(hit.ID), historyDirPath(lp.Type, hit.ID))
		}
		add("_search", searchRootPath(lp.Type))
		for _, spec := range fhir.OperationsFor(lp.Type, fsys.caps.Get()) {
			add("$"+spec.Code, operationDirPath(lp.Type, spec.Code))
		}
		return out, 0

	case kindHistoryDir:
		versions, err := fsys.histories.Get(ctx, lp.Type, lp.ID)
		if err != nil {
			return nil, mapError(err)
		}
		for _, v := range versions {
			add(historyFileName(lp.ID, v.Version), historyFilePath(lp.Type, lp.ID, v.Version))
		}
		return out, 0

	case kindSearchDir:
		entry, ok := fsys.searches.Get(lp.Type, lp.Query)
		if !ok {
			return nil, syscall.ENOENT
		}
		for includedType := range entry.ByType {
			add(includedType, searchIncludeTypeDirPath(lp.Type, lp.Query, includedType))
		}
		return out, 0

	case kindSearchIncludeTypeDir:
		entry, ok := fsys.searches.Get(lp.Type, lp.Query)
		if !ok {
			return nil, syscall.ENOENT
		}
		for _, hit := range entry.ByType[lp.IncludedType] {
			add(resourceFileName(hit.ID), searchResultFilePath(lp.Type, lp.Query, lp.IncludedType, hit.ID))
		}
		return out, 0

	case kindOperationDir:
		for _, name := range fsys.operations.List(lp.Type, lp.Op) {
			args, format, ok := parseOperationResultFileName(name)
			if !ok {
				continue
			}
			add(name, operationResultFilePath(lp.Type, lp.Op, args, format))
		}
		return out, 0

	default:
		return out, 0
	}
}

func metaOrNil(body []byte) *fhir.Meta {
	m, _ := fhir.MetaOf(body)
	return m
}

// Open validates the requested access mode against the logical path's
// writability and allocates a handle. No server call happens here: reads
// and writes are served from caches/pending buffers, not a streamed file
// descriptor.
func (n *fuseNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	n.fsys.stats.recordOperation()
	n.fsys.log.WithField("path", n.lp.String()).Debug("open")
	if n.fsys.checkUnmounting() {
		return nil, 0, syscall.ENOTCONN
	}

	wantsWrite := flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0
	if wantsWrite {
		if n.lp.Kind != kindResourceFile {
			return nil, 0, syscall.EACCES
		}
		if n.fsys.opts.ReadOnly {
			return nil, 0, syscall.EROFS
		}
	}

	fh := n.fsys.handles.Add(n.fsys.inodes.Ino(n.lp), wantsWrite)
	return &fuseFileHandle{node: n, handle: fh}, 0, 0
}

type fuseFileHandle struct {
	node   *fuseNode
	handle uint64
}

var _ fs.FileHandle = (*fuseFileHandle)(nil)
var _ fs.FileReader = (*fuseFileHandle)(nil)
var _ fs.FileWriter = (*fuseFileHandle)(nil)
var _ fs.FileReleaser = (*fuseFileHandle)(nil)
var _ fs.FileFlusher = (*fuseFileHandle)(nil)

// Read loads the appropriate body for the handle's logical path kind and
// copies the requested slice into dest, borrowing scratch space from the
// shared buffer pool for the copy (spec §4.2 read contract, including the
// "if absent, synthesize" rule for OperationResultFile).
func (fh *fuseFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	fh.node.fsys.stats.recordOperation()
	fh.node.fsys.log.WithFields(logrus.Fields{"path": fh.node.lp.String(), "off": off, "len": len(dest)}).Debug("read")

	body, errno := fh.node.fsys.bodyFor(ctx, fh.node.lp, fh.handle)
	if errno != 0 {
		fh.node.fsys.stats.recordError()
		return nil, errno
	}

	if off >= int64(len(body)) {
		return fuse.ReadResultData(nil), 0
	}

	end := off + int64(len(dest))
	if end > int64(len(body)) {
		end = int64(len(body))
	}
	n := int(end - off)

	scratch := GetBuffer(n)
	copy(scratch, body[off:end])
	copy(dest[:n], scratch[:n])
	PutBuffer(scratch)

	fh.node.fsys.stats.recordRead(n)
	return fuse.ReadResultData(dest[:n]), 0
}

// bodyFor resolves the byte content backing a read for lp, consulting the
// pending write buffer first for a ResourceFile with an active write
// handle so a reader observes its own unflushed edits.
func (fsys *FhirFS) bodyFor(ctx context.Context, lp LogicalPath, handle uint64) ([]byte, syscall.Errno) {
	switch lp.Kind {
	case kindResourceFile:
		ino, _ := fsys.handles.Ino(handle)
		if buf, ok := fsys.pending.Get(ino); ok {
			return buf, 0
		}
		entry, err := fsys.resources.Get(ctx, lp.Type, lp.ID)
		if err != nil {
			return nil, mapError(err)
		}
		return entry.Body, 0

	case kindHistoryFile:
		versions, err := fsys.histories.Get(ctx, lp.Type, lp.ID)
		if err != nil {
			return nil, mapError(err)
		}
		for _, v := range versions {
			if v.Version == lp.Version {
				return v.Body, 0
			}
		}
		return nil, syscall.ENOENT

	case kindSearchResultFile:
		entry, ok := fsys.searches.Get(lp.Type, lp.Query)
		if !ok {
			return nil, syscall.ENOENT
		}
		for _, hit := range entry.ByType[lp.IncludedType] {
			if hit.ID == lp.ID {
				return hit.Body, 0
			}
		}
		return nil, syscall.ENOENT

	case kindOperationResultFile:
		body, err := fsys.operations.Materialize(ctx, lp.Type, lp.Op, lp.Args, lp.Format)
		if err != nil {
			return nil, mapError(err)
		}
		return body, 0

	default:
		return nil, syscall.EISDIR
	}
}

// Write buffers the incoming bytes into the inode's pending write body;
// it never talks to the server (spec §4.2: committed only on flush/release).
func (fh *fuseFileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	fh.node.fsys.stats.recordOperation()
	fh.node.fsys.log.WithFields(logrus.Fields{"path": fh.node.lp.String(), "off": off, "len": len(data)}).Debug("write")

	if fh.node.lp.Kind != kindResourceFile {
		return 0, syscall.EACCES
	}
	ino, _ := fh.node.fsys.handles.Ino(fh.handle)
	fh.node.fsys.pending.Init(ino)
	n := fh.node.fsys.pending.WriteAt(ino, off, data)
	fh.node.fsys.stats.recordWrite(n)
	return uint32(n), 0
}

// Flush commits a pending write, if any. Called potentially more than
// once per open (once per close(2) on a duplicated descriptor); committing
// is idempotent because a successful commit clears the pending buffer.
func (fh *fuseFileHandle) Flush(ctx context.Context) syscall.Errno {
	fh.node.fsys.stats.recordOperation()
	fh.node.fsys.log.WithField("path", fh.node.lp.String()).Debug("flush")
	ino, _ := fh.node.fsys.handles.Ino(fh.handle)
	return fh.node.fsys.commitPending(ctx, fh.node.lp, ino)
}

// Release drops the handle, committing any still-pending write on the
// final reference (mirrors Flush's commit for callers that skip flush).
func (fh *fuseFileHandle) Release(ctx context.Context) syscall.Errno {
	fh.node.fsys.stats.recordOperation()
	fh.node.fsys.log.WithField("path", fh.node.lp.String()).Debug("release")

	lastRef, ino := fh.node.fsys.handles.Release(fh.handle)
	if !lastRef {
		return 0
	}
	return fh.node.fsys.commitPending(ctx, fh.node.lp, ino)
}

// commitPending implements the flush/release write-through contract from
// spec §4.2 step 1-5: parse, validate, decide create-vs-update, install
// the server's response, and on failure leave the pending body untouched
// so the caller can retry.
func (fsys *FhirFS) commitPending(ctx context.Context, lp LogicalPath, ino uint64) syscall.Errno {
	if lp.Kind != kindResourceFile {
		return 0
	}
	pending, ok := fsys.pending.Get(ino)
	if !ok {
		return 0
	}

	var stub fhir.ResourceStub
	if err := json.Unmarshal(pending, &stub); err != nil {
		return syscall.EINVAL
	}
	if stub.ResourceType != lp.Type {
		return syscall.EINVAL
	}
	if stub.ID != "" && stub.ID != lp.ID {
		return syscall.EINVAL
	}

	_, existed := fsys.resources.Peek(lp.Type, lp.ID)

	var (
		respBody []byte
		err      error
	)
	if !existed && stub.ID == "" {
		respBody, err = fsys.client.Create(ctx, lp.Type, pending)
	} else {
		respBody, err = fsys.client.Update(ctx, lp.Type, lp.ID, pending)
	}
	if err != nil {
		fsys.stats.recordError()
		return mapError(err)
	}

	meta, _ := fhir.MetaOf(respBody)
	entry := ResourceEntry{Type: lp.Type, ID: lp.ID, Body: respBody}
	if meta != nil {
		entry.VersionID = meta.VersionID
		entry.LastUpdated = meta.LastUpdated
	}
	fsys.resources.Put(entry)
	fsys.histories.Invalidate(lp.Type, lp.ID)
	fsys.pending.Clear(ino)
	return 0
}

// Create materializes a new ResourceFile (empty pending body, no server
// call yet) or an OperationResultFile (materialized immediately).
func (n *fuseNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	n.fsys.stats.recordOperation()
	n.fsys.log.WithFields(logrus.Fields{"path": n.lp.String(), "name": name}).Debug("create")
	if n.fsys.checkUnmounting() {
		return nil, nil, 0, syscall.ENOTCONN
	}
	if n.fsys.opts.ReadOnly {
		return nil, nil, 0, syscall.EROFS
	}

	child, errno := route(n.lp, name)
	if errno != 0 {
		return nil, nil, 0, errno
	}

	var writable bool
	switch child.Kind {
	case kindResourceFile:
		ino := n.fsys.inodes.Ino(child)
		n.fsys.pending.Init(ino)
		writable = true

	case kindOperationResultFile:
		if _, err := n.fsys.operations.Materialize(ctx, child.Type, child.Op, child.Args, child.Format); err != nil {
			n.fsys.stats.recordError()
			return nil, nil, 0, mapError(err)
		}

	default:
		return nil, nil, 0, syscall.EACCES
	}

	ino := n.fsys.inodes.Ino(child)
	n.fsys.fillAttr(&out.Attr, child, ino)
	out.SetEntryTimeout(n.fsys.opts.EntryTimeout)
	out.SetAttrTimeout(n.fsys.opts.AttrTimeout)

	childNode := n.fsys.child(child)
	childInode := n.NewInode(ctx, childNode, fs.StableAttr{Mode: syscall.S_IFREG, Ino: ino})

	fh := n.fsys.handles.Add(ino, writable)
	return childInode, &fuseFileHandle{node: childNode, handle: fh}, 0, 0
}

// Mkdir executes the search and materializes a SearchDir; it is the only
// creatable directory kind (spec §4.2).
func (n *fuseNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.fsys.stats.recordOperation()
	n.fsys.log.WithFields(logrus.Fields{"path": n.lp.String(), "name": name}).Debug("mkdir")
	if n.fsys.checkUnmounting() {
		return nil, syscall.ENOTCONN
	}
	if n.fsys.opts.ReadOnly {
		return nil, syscall.EROFS
	}

	child, errno := route(n.lp, name)
	if errno != 0 {
		return nil, errno
	}
	if child.Kind != kindSearchDir {
		return nil, syscall.EACCES
	}

	if caps := n.fsys.caps.Get(); caps != nil && !caps.IsSearchable(child.Type) {
		return nil, syscall.EINVAL
	}

	if _, err := n.fsys.searches.Materialize(ctx, child.Type, child.Query); err != nil {
		n.fsys.stats.recordError()
		return nil, mapError(err)
	}

	ino := n.fsys.inodes.Ino(child)
	n.fsys.fillAttr(&out.Attr, child, ino)
	out.SetEntryTimeout(n.fsys.opts.EntryTimeout)
	out.SetAttrTimeout(n.fsys.opts.AttrTimeout)

	return n.NewInode(ctx, n.fsys.child(child), fs.StableAttr{Mode: syscall.S_IFDIR, Ino: ino}), 0
}

// Unlink deletes a ResourceFile through the server or drops a materialized
// OperationResultFile; every other kind is immutable (spec §4.2).
func (n *fuseNode) Unlink(ctx context.Context, name string) syscall.Errno {
	n.fsys.stats.recordOperation()
	n.fsys.log.WithFields(logrus.Fields{"path": n.lp.String(), "name": name}).Debug("unlink")
	if n.fsys.checkUnmounting() {
		return syscall.ENOTCONN
	}
	if n.fsys.opts.ReadOnly {
		return syscall.EROFS
	}

	child, errno := route(n.lp, name)
	if errno != 0 {
		return errno
	}

	switch child.Kind {
	case kindResourceFile:
		if err := n.fsys.client.Delete(ctx, child.Type, child.ID); err != nil {
			n.fsys.stats.recordError()
			return mapError(err)
		}
		n.fsys.resources.Invalidate(child.Type, child.ID)
		n.fsys.histories.Invalidate(child.Type, child.ID)
		return 0

	case kindOperationResultFile:
		n.fsys.operations.Invalidate(child.Type, child.Op, child.Args, child.Format)
		n.fsys.inodes.Forget(child)
		return 0

	default:
		return syscall.EACCES
	}
}

// Rmdir removes a SearchDir, the only removable directory kind.
func (n *fuseNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	n.fsys.stats.recordOperation()
	n.fsys.log.WithFields(logrus.Fields{"path": n.lp.String(), "name": name}).Debug("rmdir")
	if n.fsys.checkUnmounting() {
		return syscall.ENOTCONN
	}
	if n.fsys.opts.ReadOnly {
		return syscall.EROFS
	}

	child, errno := route(n.lp, name)
	if errno != 0 {
		return errno
	}
	if child.Kind != kindSearchDir {
		return syscall.EACCES
	}

	n.fsys.searches.Invalidate(child.Type, child.Query)
	n.fsys.inodes.Forget(child)
	return 0
}

// Setattr only meaningfully handles size changes against a pending write
// buffer (ftruncate from an editor); mode/time changes are accepted and
// ignored since the server, not the local mount, owns those attributes.
func (n *fuseNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	n.fsys.stats.recordOperation()
	n.fsys.log.WithField("path", n.lp.String()).Debug("setattr")
	if n.fsys.checkUnmounting() {
		return syscall.ENOTCONN
	}

	if sz, ok := in.GetSize(); ok && n.lp.Kind == kindResourceFile {
		ino := n.fsys.inodes.Ino(n.lp)
		n.fsys.pending.Init(ino)
		n.fsys.pending.Truncate(ino, int64(sz))
	}

	return n.Getattr(ctx, f, out)
}

// fillAttr sets mode, size, ownership, and mtime for lp's kind.
//
// Grounded on _examples/absfs-fusefs/operations.go's fillAttr, replacing
// os.FileInfo-derived fields with the logical path's own attribute rules
// (spec §6 POSIX attrs table: dirs 0755, resource files 0644, history and
// search-result files 0444).
func (fsys *FhirFS) fillAttr(attr *fuse.Attr, lp LogicalPath, ino uint64) {
	attr.Ino = ino
	attr.Uid = fsys.opts.UID
	attr.Gid = fsys.opts.GID
	if attr.Uid == 0 {
		attr.Uid = uint32(os.Getuid())
	}
	if attr.Gid == 0 {
		attr.Gid = uint32(os.Getgid())
	}

	if lp.IsDir() {
		attr.Mode = syscall.S_IFDIR | fsys.opts.DirMode
		attr.Nlink = 2
		attr.Size = 0
		return
	}

	attr.Nlink = 1
	mode := uint32(syscall.S_IFREG)

	switch lp.Kind {
	case kindResourceFile:
		mode |= fsys.opts.FileMode
		if entry, ok := fsys.resources.Peek(lp.Type, lp.ID); ok {
			attr.Size = uint64(len(entry.Body))
			setMtime(attr, entry.LastUpdated)
		}

	case kindHistoryFile, kindSearchResultFile:
		mode |= 0o444
		attr.Size = uint64(len(sizeOnlyBody(fsys, lp)))

	case kindOperationResultFile:
		mode |= 0o444
		if body, ok := fsys.operations.Get(lp.Type, lp.Op, lp.Args, lp.Format); ok {
			attr.Size = uint64(len(body))
		}

	default:
		mode |= fsys.opts.FileMode
	}

	attr.Mode = mode
}

func sizeOnlyBody(fsys *FhirFS, lp LogicalPath) []byte {
	switch lp.Kind {
	case kindHistoryFile:
		versions, ok := peekHistory(fsys, lp.Type, lp.ID)
		if !ok {
			return nil
		}
		for _, v := range versions {
			if v.Version == lp.Version {
				return v.Body
			}
		}
	case kindSearchResultFile:
		entry, ok := fsys.searches.Get(lp.Type, lp.Query)
		if !ok {
			return nil
		}
		for _, hit := range entry.ByType[lp.IncludedType] {
			if hit.ID == lp.ID {
				return hit.Body
			}
		}
	}
	return nil
}

// peekHistory returns cached history without fetching, used only for
// getattr's best-effort size hint.
func peekHistory(fsys *FhirFS, t, id string) ([]HistoryVersion, bool) {
	v, ok := fsys.histories.cache.Get(resourceKey(t, id))
	if !ok {
		return nil, false
	}
	return v.([]HistoryVersion), true
}

func setMtime(attr *fuse.Attr, lastUpdated string) {
	if lastUpdated == "" {
		return
	}
	t, err := time.Parse(time.RFC3339, lastUpdated)
	if err != nil {
		return
	}
	attr.Mtime = uint64(t.Unix())
	attr.Mtimensec = uint32(t.Nanosecond())
}
