package fhir

import "encoding/json"

// Bundle is the FHIR container returned by searches and _history requests.
// Only the fields the filesystem projection needs are modeled.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleLink is one entry of Bundle.link, e.g. {relation: "next", url: "..."}.
type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// BundleEntry is one entry of Bundle.entry. Resource is kept raw because
// the filesystem only needs resourceType/id out of it plus the pretty
// bytes for the body; it never decodes clinical fields.
type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *EntrySearch    `json:"search,omitempty"`
	Request  *EntryRequest   `json:"request,omitempty"`
}

// EntrySearch carries Bundle.entry.search.mode, which distinguishes a
// search hit ("match") from a resource pulled in via _include ("include").
type EntrySearch struct {
	Mode string `json:"mode,omitempty"`
}

// EntryRequest carries Bundle.entry.request, present on history bundles.
type EntryRequest struct {
	Method string `json:"method,omitempty"`
	URL    string `json:"url,omitempty"`
}

// NextLink returns the "next" pagination link, or "" if the bundle is the
// last page.
func (b *Bundle) NextLink() string {
	for _, l := range b.Link {
		if l.Relation == "next" {
			return l.URL
		}
	}
	return ""
}

// ResourceStub extracts just resourceType and id from a raw bundle entry
// resource, enough to classify it into the filesystem's type/id grouping
// without decoding the whole clinical payload.
type ResourceStub struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	Meta         *Meta  `json:"meta,omitempty"`
}

// Meta carries the FHIR Resource.meta block this filesystem cares about:
// versionId and lastUpdated, both server-assigned.
type Meta struct {
	VersionID   string `json:"versionId,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

func stubOf(raw json.RawMessage) (ResourceStub, error) {
	var stub ResourceStub
	if err := json.Unmarshal(raw, &stub); err != nil {
		return ResourceStub{}, err
	}
	return stub, nil
}

// MetaOf extracts resource.meta from a resource's pretty-printed JSON
// body, returning nil if the body doesn't parse or carries no meta block.
// Used by getattr and by the resource cache to derive mtime/versionId
// without a caller needing to decode the whole resource itself.
func MetaOf(body []byte) (*Meta, error) {
	var stub ResourceStub
	if err := json.Unmarshal(body, &stub); err != nil {
		return nil, err
	}
	return stub.Meta, nil
}
