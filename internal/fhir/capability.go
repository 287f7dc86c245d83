package fhir

import "sort"

// capabilityStatement mirrors the subset of the FHIR CapabilityStatement
// resource this filesystem reads: which resource types the server serves,
// which of them are searchable, and which operations they expose.
//
// Grounded on original_source/src/fhir/capability.rs CapabilityStatement /
// RestResource / ResourceDefinition / Interaction.
type capabilityStatement struct {
	ResourceType string             `json:"resourceType"`
	Rest         []restCapability   `json:"rest"`
}

type restCapability struct {
	Mode     string               `json:"mode"`
	Resource []resourceCapability `json:"resource"`
}

type resourceCapability struct {
	Type        string                 `json:"type"`
	Interaction []interactionCapability `json:"interaction"`
	Operation   []operationCapability  `json:"operation"`
}

type interactionCapability struct {
	Code string `json:"code"`
}

type operationCapability struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// Capabilities is the parsed, queryable result of a capability fetch.
type Capabilities struct {
	// Types lists every resource type the server's "server" mode rest
	// entry advertises, sorted alphabetically.
	Types []string
	// Searchable is the subset of Types that advertise the "search-type"
	// interaction.
	Searchable map[string]bool
	// Operations maps resource type -> set of operation codes advertised
	// for that type (taken from each operation's name field).
	Operations map[string]map[string]bool
}

func newCapabilities() *Capabilities {
	return &Capabilities{
		Searchable: make(map[string]bool),
		Operations: make(map[string]map[string]bool),
	}
}

func capabilitiesFromStatement(stmt capabilityStatement) (*Capabilities, error) {
	caps := newCapabilities()

	for _, rest := range stmt.Rest {
		if rest.Mode != "server" {
			continue
		}
		for _, res := range rest.Resource {
			caps.Types = append(caps.Types, res.Type)

			for _, in := range res.Interaction {
				if in.Code == "search-type" {
					caps.Searchable[res.Type] = true
				}
			}

			for _, op := range res.Operation {
				if op.Name == "" {
					continue
				}
				if caps.Operations[res.Type] == nil {
					caps.Operations[res.Type] = make(map[string]bool)
				}
				caps.Operations[res.Type][op.Name] = true
			}
		}
	}

	sort.Strings(caps.Types)
	return caps, nil
}

// HasType reports whether the server's capability statement advertises
// the given resource type.
func (c *Capabilities) HasType(t string) bool {
	for _, got := range c.Types {
		if got == t {
			return true
		}
	}
	return false
}

// IsSearchable reports whether the given resource type advertises the
// search-type interaction.
func (c *Capabilities) IsSearchable(t string) bool {
	return c.Searchable[t]
}

// SupportsOperation reports whether the server advertised the operation
// for the given type, independent of the built-in seed catalog.
func (c *Capabilities) SupportsOperation(t, op string) bool {
	ops := c.Operations[t]
	return ops != nil && ops[op]
}
