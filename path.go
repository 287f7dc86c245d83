package fhirfs

import (
	"strconv"
	"strings"
	"syscall"
)

// route classifies a child name under a known parent LogicalPath, per the
// grammar table in the filesystem's path router design (component C8).
// Names that don't match the parent's grammar are rejected with ENOENT;
// names that match the grammar but reference something the caller hasn't
// established yet (e.g. a `.<id>` history dir for an unknown id) are the
// caller's responsibility to reject once it consults the resource cache.
func route(parent LogicalPath, name string) (LogicalPath, syscall.Errno) {
	switch parent.Kind {
	case kindRoot:
		return typeDirPath(name), 0

	case kindTypeDir:
		if name == "_search" {
			return searchRootPath(parent.Type), 0
		}
		if strings.HasPrefix(name, "$") && len(name) > 1 {
			return operationDirPath(parent.Type, name[1:]), 0
		}
		if strings.HasPrefix(name, ".") && len(name) > 1 {
			return historyDirPath(parent.Type, name[1:]), 0
		}
		if id, ok := parseResourceFileName(name); ok {
			return resourceFilePath(parent.Type, id), 0
		}
		return LogicalPath{}, syscall.ENOENT

	case kindSearchRoot:
		if name == "" {
			return LogicalPath{}, syscall.EINVAL
		}
		return searchDirPath(parent.Type, name), 0

	case kindSearchDir:
		return searchIncludeTypeDirPath(parent.Type, parent.Query, name), 0

	case kindSearchIncludeTypeDir:
		if id, ok := parseResourceFileName(name); ok {
			return searchResultFilePath(parent.Type, parent.Query, parent.IncludedType, id), 0
		}
		return LogicalPath{}, syscall.ENOENT

	case kindHistoryDir:
		id, version, ok := parseHistoryFileName(name)
		if !ok || id != parent.ID {
			return LogicalPath{}, syscall.ENOENT
		}
		return historyFilePath(parent.Type, parent.ID, version), 0

	case kindOperationDir:
		args, format, ok := parseOperationResultFileName(name)
		if !ok {
			return LogicalPath{}, syscall.EINVAL
		}
		return operationResultFilePath(parent.Type, parent.Op, args, format), 0

	default:
		return LogicalPath{}, syscall.ENOENT
	}
}

// parseResourceFileName splits "<id>.json" into id, rejecting names that
// don't end in exactly that suffix or have an empty stem.
func parseResourceFileName(name string) (string, bool) {
	const suffix = ".json"
	if !strings.HasSuffix(name, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(name, suffix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// parseHistoryFileName splits "<id>.v<N>.json" into (id, N).
func parseHistoryFileName(name string) (id, version string, ok bool) {
	stem, ok := parseResourceFileName(name)
	if !ok {
		return "", "", false
	}
	idx := strings.LastIndex(stem, ".v")
	if idx < 0 {
		return "", "", false
	}
	id = stem[:idx]
	version = stem[idx+2:]
	if id == "" || version == "" {
		return "", "", false
	}
	if _, err := strconv.Atoi(version); err != nil {
		return "", "", false
	}
	return id, version, true
}

// parseOperationResultFileName splits "<args>.<json|csv>" on the last dot,
// mirroring original_source/src/vfs/operation.rs's
// OperationExecution::parse_filename: the extension must be exactly "json"
// or "csv" and the stem must be non-empty.
func parseOperationResultFileName(name string) (args, format string, ok bool) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	stem := name[:idx]
	ext := name[idx+1:]
	if ext != "json" && ext != "csv" {
		return "", "", false
	}
	return stem, ext, true
}
