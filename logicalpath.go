package fhirfs

import "fmt"

// kind identifies which variant of LogicalPath a value holds. LogicalPath
// is a tagged sum type: exactly one kind is meaningful per value, and every
// filesystem operation dispatches on it.
//
// Grounded on the path/inode split in _examples/absfs-fusefs/inode.go,
// generalized from a bare path string to a typed variant per
// original_source/src/vfs/index.rs's VFSEntry enum.
type kind int

const (
	kindRoot kind = iota
	kindTypeDir
	kindResourceFile
	kindHistoryDir
	kindHistoryFile
	kindSearchRoot
	kindSearchDir
	kindSearchIncludeTypeDir
	kindSearchResultFile
	kindOperationDir
	kindOperationResultFile
)

// LogicalPath classifies one node of the virtual filesystem tree. Fields
// not relevant to Kind are left zero.
type LogicalPath struct {
	Kind kind

	Type         string // TypeDir, ResourceFile, HistoryDir/File, SearchDir family, OperationDir family
	ID           string // ResourceFile, HistoryDir/File
	Version      string // HistoryFile
	Query        string // SearchDir family, verbatim query string
	IncludedType string // SearchIncludeTypeDir, SearchResultFile
	Op           string // OperationDir family
	Args         string // OperationResultFile, verbatim k=v&k=v arg string
	Format       string // OperationResultFile, "json" or "csv"
}

func rootPath() LogicalPath { return LogicalPath{Kind: kindRoot} }

func typeDirPath(t string) LogicalPath { return LogicalPath{Kind: kindTypeDir, Type: t} }

func resourceFilePath(t, id string) LogicalPath {
	return LogicalPath{Kind: kindResourceFile, Type: t, ID: id}
}

func historyDirPath(t, id string) LogicalPath {
	return LogicalPath{Kind: kindHistoryDir, Type: t, ID: id}
}

func historyFilePath(t, id, version string) LogicalPath {
	return LogicalPath{Kind: kindHistoryFile, Type: t, ID: id, Version: version}
}

func searchRootPath(t string) LogicalPath { return LogicalPath{Kind: kindSearchRoot, Type: t} }

func searchDirPath(t, query string) LogicalPath {
	return LogicalPath{Kind: kindSearchDir, Type: t, Query: query}
}

func searchIncludeTypeDirPath(t, query, includedType string) LogicalPath {
	return LogicalPath{Kind: kindSearchIncludeTypeDir, Type: t, Query: query, IncludedType: includedType}
}

func searchResultFilePath(t, query, includedType, id string) LogicalPath {
	return LogicalPath{Kind: kindSearchResultFile, Type: t, Query: query, IncludedType: includedType, ID: id}
}

func operationDirPath(t, op string) LogicalPath {
	return LogicalPath{Kind: kindOperationDir, Type: t, Op: op}
}

func operationResultFilePath(t, op, args, format string) LogicalPath {
	return LogicalPath{Kind: kindOperationResultFile, Type: t, Op: op, Args: args, Format: format}
}

// IsDir reports whether this logical path denotes a directory.
func (lp LogicalPath) IsDir() bool {
	switch lp.Kind {
	case kindRoot, kindTypeDir, kindHistoryDir, kindSearchRoot, kindSearchDir,
		kindSearchIncludeTypeDir, kindOperationDir:
		return true
	default:
		return false
	}
}

// resourceKey returns the (type, id) key this path's resource cache
// coherency depends on. Only meaningful for kinds that name a specific
// resource (ResourceFile, HistoryDir, HistoryFile).
func (lp LogicalPath) resourceKey() (string, string) {
	return lp.Type, lp.ID
}

// String renders a debug form, never surfaced over FUSE (readdir/lookup
// names come from LogicalPath's dedicated name-formatting helpers below).
func (lp LogicalPath) String() string {
	switch lp.Kind {
	case kindRoot:
		return "/"
	case kindTypeDir:
		return fmt.Sprintf("/%s", lp.Type)
	case kindResourceFile:
		return fmt.Sprintf("/%s/%s", lp.Type, resourceFileName(lp.ID))
	case kindHistoryDir:
		return fmt.Sprintf("/%s/%s", lp.Type, historyDirName(lp.ID))
	case kindHistoryFile:
		return fmt.Sprintf("/%s/%s/%s", lp.Type, historyDirName(lp.ID), historyFileName(lp.ID, lp.Version))
	case kindSearchRoot:
		return fmt.Sprintf("/%s/_search", lp.Type)
	case kindSearchDir:
		return fmt.Sprintf("/%s/_search/%s", lp.Type, lp.Query)
	case kindSearchIncludeTypeDir:
		return fmt.Sprintf("/%s/_search/%s/%s", lp.Type, lp.Query, lp.IncludedType)
	case kindSearchResultFile:
		return fmt.Sprintf("/%s/_search/%s/%s/%s", lp.Type, lp.Query, lp.IncludedType, resourceFileName(lp.ID))
	case kindOperationDir:
		return fmt.Sprintf("/%s/$%s", lp.Type, lp.Op)
	case kindOperationResultFile:
		return fmt.Sprintf("/%s/$%s/%s", lp.Type, lp.Op, operationResultFileName(lp.Args, lp.Format))
	default:
		return "/?"
	}
}

func resourceFileName(id string) string { return id + ".json" }

func historyDirName(id string) string { return "." + id }

func historyFileName(id, version string) string {
	return fmt.Sprintf("%s.v%s.json", id, version)
}

func operationResultFileName(args, format string) string {
	return args + "." + format
}
