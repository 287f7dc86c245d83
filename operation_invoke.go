package fhirfs

import (
	"context"
	"strings"

	"github.com/fhirfs/fhirfs/internal/fhir"
)

// parseOperationArgs splits an "args" filename component of the form
// "k=v&k=v" into a flat map, per spec §4.6 ("args is parsed from the
// filename as a k=v(&k=v)* sequence"). A bare stem with no "=" is treated
// as a single positional argument named "id", the common case for
// instance-scoped operations invoked as "$run/<id>.csv".
func parseOperationArgs(args string) map[string]string {
	out := make(map[string]string)
	if args == "" {
		return out
	}
	for _, pair := range strings.Split(args, "&") {
		if pair == "" {
			continue
		}
		if k, v, ok := strings.Cut(pair, "="); ok {
			out[k] = v
		} else {
			out["id"] = pair
		}
	}
	return out
}

// invokeOperation resolves the operation's routing (instance vs type
// level is decided by whether "id" was present in the parsed args,
// GET-safety and output format come from the built-in catalog merged with
// the server's capability statement) and calls it.
func invokeOperation(ctx context.Context, client *fhir.Client, capView *CapabilityView, resourceType, op, args, format string) ([]byte, error) {
	parsed := parseOperationArgs(args)
	id := parsed["id"]

	var caps *fhir.Capabilities
	if capView != nil {
		caps = capView.Get()
	}

	spec, known := fhir.LookupOperation(resourceType, op, caps)
	getSafe := known && spec.GetSafe

	// The filename's fmt component is authoritative (spec §4.6: "Accept:
	// application/fhir+json when fmt=json or text/csv when fmt=csv"). The
	// catalog's Format only fills the gap when the filename didn't carry
	// a recognized fmt at all.
	var outFormat fhir.OperationFormat
	switch format {
	case "csv":
		outFormat = fhir.FormatCSV
	case "json":
		outFormat = fhir.FormatJSON
	default:
		outFormat = fhir.FormatJSON
		if known {
			outFormat = spec.Format
		}
	}

	if id != "" && known && !spec.InstanceOK {
		id = ""
	}
	if id == "" && known && !spec.TypeOK && len(parsed) > 0 {
		// Some operations are instance-only; keep whatever positional id
		// the caller supplied even if it wasn't named "id".
		for k, v := range parsed {
			if k != "id" {
				id = v
				break
			}
		}
	}

	return client.Operation(ctx, resourceType, id, op, parsed, outFormat, getSafe)
}
