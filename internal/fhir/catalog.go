package fhir

import "sort"

// OperationSpec describes one well-known FHIR operation: whether it can be
// invoked without a specific resource instance, whether it is safe to send
// as a GET, and the output format it produces by default.
//
// Grounded on original_source/src/vfs/operation.rs OperationManager's
// seeded resource_operations table and other_examples'
// Nirmitee-tech-headless-ehr-fhir operation_registry.go
// DefaultOperationRegistry, which lists the same standard operation set
// with parameter metadata. This catalog keeps only what the filesystem
// projection needs to decide routing and format, not full parameter
// definitions.
type OperationSpec struct {
	Code       string
	InstanceOK bool
	TypeOK     bool
	GetSafe    bool
	Format     OperationFormat
}

// builtinCatalog seeds $-operations per resource type the way
// OperationManager.resource_operations does, plus a handful of
// type-independent operations (validate, meta, meta-add, meta-delete)
// advertised for every type.
var builtinCatalog = map[string][]OperationSpec{
	"*": {
		{Code: "validate", InstanceOK: true, TypeOK: true, GetSafe: false, Format: FormatJSON},
		{Code: "meta", InstanceOK: true, TypeOK: false, GetSafe: true, Format: FormatJSON},
		{Code: "meta-add", InstanceOK: true, TypeOK: false, GetSafe: false, Format: FormatJSON},
		{Code: "meta-delete", InstanceOK: true, TypeOK: false, GetSafe: false, Format: FormatJSON},
	},
	"Patient": {
		{Code: "everything", InstanceOK: true, TypeOK: false, GetSafe: true, Format: FormatJSON},
		{Code: "match", InstanceOK: false, TypeOK: true, GetSafe: false, Format: FormatJSON},
	},
	"Encounter": {
		{Code: "everything", InstanceOK: true, TypeOK: false, GetSafe: true, Format: FormatJSON},
	},
	"ValueSet": {
		{Code: "expand", InstanceOK: true, TypeOK: true, GetSafe: true, Format: FormatJSON},
		{Code: "validate-code", InstanceOK: true, TypeOK: true, GetSafe: true, Format: FormatJSON},
	},
	"CodeSystem": {
		{Code: "lookup", InstanceOK: false, TypeOK: true, GetSafe: true, Format: FormatJSON},
		{Code: "validate-code", InstanceOK: true, TypeOK: true, GetSafe: true, Format: FormatJSON},
		{Code: "subsumes", InstanceOK: true, TypeOK: true, GetSafe: true, Format: FormatJSON},
	},
	"ConceptMap": {
		{Code: "translate", InstanceOK: true, TypeOK: true, GetSafe: true, Format: FormatJSON},
		{Code: "closure", InstanceOK: false, TypeOK: true, GetSafe: false, Format: FormatJSON},
	},
	"StructureMap": {
		{Code: "transform", InstanceOK: true, TypeOK: true, GetSafe: false, Format: FormatJSON},
	},
	"ViewDefinition": {
		{Code: "run", InstanceOK: true, TypeOK: false, GetSafe: false, Format: FormatCSV},
	},
	"Observation": {
		{Code: "lastn", InstanceOK: false, TypeOK: true, GetSafe: true, Format: FormatJSON},
		{Code: "stats", InstanceOK: false, TypeOK: true, GetSafe: true, Format: FormatJSON},
	},
	"Questionnaire": {
		{Code: "populate", InstanceOK: true, TypeOK: true, GetSafe: false, Format: FormatJSON},
	},
	"MeasureReport": {
		{Code: "evaluate-measure", InstanceOK: true, TypeOK: false, GetSafe: true, Format: FormatJSON},
	},
	"Bundle": {
		{Code: "diff", InstanceOK: true, TypeOK: false, GetSafe: false, Format: FormatJSON},
		{Code: "graph", InstanceOK: true, TypeOK: false, GetSafe: false, Format: FormatJSON},
		{Code: "document", InstanceOK: true, TypeOK: false, GetSafe: true, Format: FormatJSON},
	},
	"List": {
		{Code: "apply", InstanceOK: true, TypeOK: false, GetSafe: false, Format: FormatJSON},
	},
}

// OperationsFor returns the built-in operation codes available for
// resourceType: the type-specific seed plus the wildcard entries, merged
// with anything the server's capability statement additionally advertised
// for that type. The result is sorted and de-duplicated.
func OperationsFor(resourceType string, caps *Capabilities) []OperationSpec {
	seen := make(map[string]OperationSpec)

	add := func(specs []OperationSpec) {
		for _, s := range specs {
			seen[s.Code] = s
		}
	}

	add(builtinCatalog["*"])
	add(builtinCatalog[resourceType])

	if caps != nil {
		for op := range caps.Operations[resourceType] {
			if _, ok := seen[op]; !ok {
				seen[op] = OperationSpec{Code: op, InstanceOK: true, TypeOK: true, GetSafe: false, Format: FormatJSON}
			}
		}
	}

	out := make([]OperationSpec, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// LookupOperation finds the spec for a specific operation code on a
// resource type, checking the type-specific and wildcard seeds plus
// anything the capability statement advertised.
func LookupOperation(resourceType, code string, caps *Capabilities) (OperationSpec, bool) {
	for _, s := range OperationsFor(resourceType, caps) {
		if s.Code == code {
			return s, true
		}
	}
	return OperationSpec{}, false
}
