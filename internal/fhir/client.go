// Package fhir implements a minimal blocking REST client for a FHIR R4
// server: the set of calls the filesystem projection needs (capability,
// read, vread, history, search, create, update, delete, operation
// invocation) and nothing else. It mirrors the shape of
// original_source/src/fhir/client.go (itself ported from the Rust
// reference's reqwest-based client.rs) but speaks net/http and Go's
// standard crypto/tls stack rather than reqwest/rustls.
package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout is the per-request timeout applied when the caller
// doesn't override it (spec §5: "HTTP calls use a default 30s timeout").
const DefaultTimeout = 30 * time.Second

// Client is a blocking FHIR REST client bound to one base URL. It never
// retries automatically (spec §4.8/§5); callers that want retries (there
// are none in this codebase — see DESIGN.md) must wrap calls themselves.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry

	// maxPages bounds fetchBundlePages; zero means unbounded. Set via
	// SetMaxPages, normally from config.HTTP.MaxSearchPageSize (spec.md
	// §9's pagination-cap open question — see DESIGN.md).
	maxPages int
}

// New creates a Client for baseURL (e.g. "https://hapi.example.org/fhir").
// A nil logger falls back to a disabled entry (no output).
func New(baseURL string, timeout time.Duration, log *logrus.Entry) *Client {
	return NewWithTransport(baseURL, timeout, nil, log)
}

// NewWithTransport is New with an explicit http.RoundTripper, so callers
// can plug in a custom crypto/tls.Config (e.g. InsecureSkipVerify for
// self-signed test servers). A nil transport falls back to
// http.DefaultTransport.
func NewWithTransport(baseURL string, timeout time.Duration, transport http.RoundTripper, log *logrus.Entry) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		log = logger.WithField("component", "fhir")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		log:        log,
	}
}

// SetMaxPages bounds how many pages fetchBundlePages follows before
// stopping early with whatever entries it already collected. Zero (the
// default) means unbounded pagination.
func (c *Client) SetMaxPages(n int) { c.maxPages = n }

func (c *Client) url(parts ...string) string {
	return c.baseURL + "/" + strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, accept, contentType string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, 0, newNetworkError(method, rawURL, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"method": method, "url": rawURL, "err": err}).Warn("fhir request failed")
		return nil, 0, newNetworkError(method, rawURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, newNetworkError(method, rawURL, err)
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Info("fhir request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, resp.StatusCode, newStatusError(method, rawURL, resp.StatusCode, excerpt(respBody))
	}

	return respBody, resp.StatusCode, nil
}

func excerpt(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Capability fetches and parses the server's capability statement
// (GET /metadata).
func (c *Client) Capability(ctx context.Context) (*Capabilities, error) {
	body, _, err := c.do(ctx, http.MethodGet, c.url("metadata"), nil, "application/fhir+json", "")
	if err != nil {
		return nil, err
	}

	var stmt capabilityStatement
	if err := json.Unmarshal(body, &stmt); err != nil {
		return nil, newProtocolError(http.MethodGet, c.url("metadata"), excerpt(body), err)
	}
	if stmt.ResourceType != "CapabilityStatement" {
		return nil, newProtocolError(http.MethodGet, c.url("metadata"), excerpt(body),
			fmt.Errorf("expected CapabilityStatement, got %q", stmt.ResourceType))
	}

	return capabilitiesFromStatement(stmt)
}

// Read fetches one resource: GET /<type>/<id>?_pretty=true.
//
// The _pretty=true hint asks the server to pretty-print; Read also
// re-indents locally so ResourceFile.body is always pretty
// JSON even against a server that ignores the hint (supplemented behavior,
// see SPEC_FULL.md §12).
func (c *Client) Read(ctx context.Context, resourceType, id string) ([]byte, error) {
	u := c.url(resourceType, id) + "?_pretty=true"
	body, _, err := c.do(ctx, http.MethodGet, u, nil, "application/fhir+json", "")
	if err != nil {
		return nil, err
	}
	return prettyPrint(body)
}

// VRead fetches a specific version: GET /<type>/<id>/_history/<version>.
func (c *Client) VRead(ctx context.Context, resourceType, id, version string) ([]byte, error) {
	u := c.url(resourceType, id, "_history", version)
	body, _, err := c.do(ctx, http.MethodGet, u, nil, "application/fhir+json", "")
	if err != nil {
		return nil, err
	}
	return prettyPrint(body)
}

// HistoryEntry is one version of a resource as returned by History.
type HistoryEntry struct {
	VersionID string
	Body      []byte
}

// History fetches the full version history of a resource, following
// Bundle.link.next, and returns entries ordered as the server did
// (newest first is typical FHIR server behavior; the caller re-sorts by
// version number ascending per spec §4.2 readdir ordering).
func (c *Client) History(ctx context.Context, resourceType, id string) ([]HistoryEntry, error) {
	entries, err := c.fetchBundlePages(ctx, c.url(resourceType, id, "_history"))
	if err != nil {
		return nil, err
	}

	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if len(e.Resource) == 0 {
			continue
		}
		stub, err := stubOf(e.Resource)
		if err != nil {
			continue
		}
		versionID := ""
		if stub.Meta != nil {
			versionID = stub.Meta.VersionID
		}
		pretty, err := prettyPrintRaw(e.Resource)
		if err != nil {
			pretty = []byte(e.Resource)
		}
		out = append(out, HistoryEntry{VersionID: versionID, Body: pretty})
	}
	return out, nil
}

// SearchResult groups resources returned by a search by their resourceType,
// matching spec §4.5 ("groups returned resources by their resourceType").
type SearchResult struct {
	ByType map[string][]ResourceHit
}

// ResourceHit is one resource returned by a search or operation, tagged
// with its id for filename construction.
type ResourceHit struct {
	ID   string
	Body []byte
}

// Search executes GET /<type>?<query>, following Bundle.link.next, and
// groups the results (including anything pulled in via _include) by
// resourceType.
func (c *Client) Search(ctx context.Context, resourceType, query string) (*SearchResult, error) {
	u := c.url(resourceType) + "?" + query
	entries, err := c.fetchBundlePages(ctx, u)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{ByType: make(map[string][]ResourceHit)}
	for _, e := range entries {
		if len(e.Resource) == 0 {
			continue
		}
		stub, err := stubOf(e.Resource)
		if err != nil {
			continue
		}
		pretty, err := prettyPrintRaw(e.Resource)
		if err != nil {
			pretty = []byte(e.Resource)
		}
		result.ByType[stub.ResourceType] = append(result.ByType[stub.ResourceType], ResourceHit{
			ID:   stub.ID,
			Body: pretty,
		})
	}
	return result, nil
}

// fetchBundlePages issues firstURL and follows Bundle.link.next until
// exhausted, per spec §4.3/§4.5 pagination. Any mid-pagination error
// aborts and returns that error with no partial result, matching the
// "partially-failed searches leave no cache entry" invariant.
func (c *Client) fetchBundlePages(ctx context.Context, firstURL string) ([]BundleEntry, error) {
	var entries []BundleEntry
	next := firstURL
	pages := 0

	for next != "" {
		if c.maxPages > 0 && pages >= c.maxPages {
			c.log.WithFields(logrus.Fields{"pages": pages, "max_pages": c.maxPages}).
				Debug("fhir: pagination cap reached, stopping short of link.next")
			break
		}

		body, _, err := c.do(ctx, http.MethodGet, next, nil, "application/fhir+json", "")
		if err != nil {
			return nil, err
		}

		var bundle Bundle
		if err := json.Unmarshal(body, &bundle); err != nil {
			return nil, newProtocolError(http.MethodGet, next, excerpt(body), err)
		}

		entries = append(entries, bundle.Entry...)
		next = bundle.NextLink()
		pages++
	}

	return entries, nil
}

// Create issues POST /<type> with body, used when the write has no known
// id (spec §4.2 step 3).
func (c *Client) Create(ctx context.Context, resourceType string, body []byte) ([]byte, error) {
	respBody, _, err := c.do(ctx, http.MethodPost, c.url(resourceType), body,
		"application/fhir+json", "application/fhir+json")
	if err != nil {
		return nil, err
	}
	return prettyPrint(respBody)
}

// Update issues PUT /<type>/<id> with body (create-or-update by id).
func (c *Client) Update(ctx context.Context, resourceType, id string, body []byte) ([]byte, error) {
	respBody, _, err := c.do(ctx, http.MethodPut, c.url(resourceType, id), body,
		"application/fhir+json", "application/fhir+json")
	if err != nil {
		return nil, err
	}
	return prettyPrint(respBody)
}

// Delete issues DELETE /<type>/<id>. A 404 is treated as success: the
// resource is already gone (supplemented behavior, SPEC_FULL.md §12,
// grounded on original_source/src/fhir/client.rs delete_from_fhir_server).
func (c *Client) Delete(ctx context.Context, resourceType, id string) error {
	u := c.url(resourceType, id)
	_, status, err := c.do(ctx, http.MethodDelete, u, nil, "application/fhir+json", "")
	if err == nil {
		return nil
	}
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

// OperationFormat selects the Accept header / response shape for an
// operation invocation.
type OperationFormat int

const (
	FormatJSON OperationFormat = iota
	FormatCSV
)

func (f OperationFormat) accept() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/fhir+json"
}

// Operation invokes a FHIR operation: POST /<type>/<id>/$<op> when id is
// non-empty (instance-level), POST /<type>/$<op> otherwise (type-level),
// with args sent as a Parameters resource. getSafe switches to a GET with
// args appended as query parameters, per spec §4.6 ("GET if the operation
// is GET-safe and has only primitive params").
func (c *Client) Operation(ctx context.Context, resourceType, id, op string, args map[string]string, format OperationFormat, getSafe bool) ([]byte, error) {
	var u string
	if id != "" {
		u = c.url(resourceType, id, "$"+op)
	} else {
		u = c.url(resourceType, "$"+op)
	}

	if getSafe {
		if len(args) > 0 {
			q := url.Values{}
			for k, v := range args {
				q.Set(k, v)
			}
			u += "?" + q.Encode()
		}
		body, _, err := c.do(ctx, http.MethodGet, u, nil, format.accept(), "")
		if err != nil {
			return nil, err
		}
		return body, nil
	}

	params := parametersResource(args)
	reqBody, err := json.Marshal(params)
	if err != nil {
		return nil, newProtocolError(http.MethodPost, u, "", err)
	}

	body, _, err := c.do(ctx, http.MethodPost, u, reqBody, format.accept(), "application/fhir+json")
	if err != nil {
		return nil, err
	}
	return body, nil
}

// parametersResource builds a minimal FHIR Parameters resource from a flat
// k=v argument map, the shape the spec's §4.6 "sent as the operation's
// parameter set" calls for.
func parametersResource(args map[string]string) map[string]any {
	type param struct {
		Name        string `json:"name"`
		ValueString string `json:"valueString"`
	}
	params := make([]param, 0, len(args))
	for k, v := range args {
		params = append(params, param{Name: k, ValueString: v})
	}
	return map[string]any{
		"resourceType": "Parameters",
		"parameter":    params,
	}
}

func prettyPrint(body []byte) ([]byte, error) {
	return prettyPrintRaw(json.RawMessage(body))
}

func prettyPrintRaw(raw json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
