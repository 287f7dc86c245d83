package fhir

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, time.Second, nil)
}

func TestClient_Read(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/Patient/123", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"resourceType":"Patient","id":"123"}`))
	})

	body, err := c.Read(context.Background(), "Patient", "123")
	require.NoError(t, err)

	var stub ResourceStub
	require.NoError(t, json.Unmarshal(body, &stub))
	require.Equal(t, "123", stub.ID)
}

func TestClient_ReadNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"resourceType":"OperationOutcome"}`))
	})

	_, err := c.Read(context.Background(), "Patient", "999")
	require.Error(t, err)

	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	require.Equal(t, KindNotFound, ferr.Kind)
}

func TestClient_Create(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"resourceType":"Patient","id":"new-1","meta":{"versionId":"1"}}`))
	})

	body, err := c.Create(context.Background(), "Patient", []byte(`{"resourceType":"Patient"}`))
	require.NoError(t, err)

	meta, err := MetaOf(body)
	require.NoError(t, err)
	require.Equal(t, "1", meta.VersionID)
}

func TestClient_DeleteToleratesNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	})

	require.NoError(t, c.Delete(context.Background(), "Patient", "already-gone"))
}

func TestClient_DeleteSurfacesOtherErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	require.Error(t, c.Delete(context.Background(), "Patient", "1"))
}

func TestClient_SearchGroupsByResourceType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"resourceType": "Bundle",
			"entry": [
				{"resource": {"resourceType": "Patient", "id": "1"}},
				{"resource": {"resourceType": "Observation", "id": "2"}}
			]
		}`))
	})

	result, err := c.Search(context.Background(), "Patient", "name=Smith")
	require.NoError(t, err)
	require.Len(t, result.ByType["Patient"], 1)
	require.Len(t, result.ByType["Observation"], 1)
}

func TestClient_SearchFollowsNextLink(t *testing.T) {
	var pages int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		pages++
		if pages == 1 {
			w.Write([]byte(`{
				"resourceType": "Bundle",
				"entry": [{"resource": {"resourceType": "Patient", "id": "1"}}],
				"link": [{"relation": "next", "url": "http://` + r.Host + `/Patient?page=2" }]
			}`))
			return
		}
		w.Write([]byte(`{
			"resourceType": "Bundle",
			"entry": [{"resource": {"resourceType": "Patient", "id": "2"}}]
		}`))
	})

	result, err := c.Search(context.Background(), "Patient", "_count=1")
	require.NoError(t, err)
	require.Equal(t, 2, pages, "Search should follow link.next")
	require.Len(t, result.ByType["Patient"], 2)
}

func TestClient_Capability(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/metadata", r.URL.Path)
		w.Write([]byte(`{
			"resourceType": "CapabilityStatement",
			"rest": [{
				"mode": "server",
				"resource": [{
					"type": "Patient",
					"interaction": [{"code": "search-type"}],
					"operation": [{"name": "everything", "definition": "http://example.org/OperationDefinition/everything"}]
				}]
			}]
		}`))
	})

	caps, err := c.Capability(context.Background())
	require.NoError(t, err)
	require.True(t, caps.HasType("Patient"))
	require.True(t, caps.IsSearchable("Patient"))
	require.True(t, caps.SupportsOperation("Patient", "everything"))
}

func TestClient_OperationGetSafe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/Patient/123/$everything", r.URL.Path)
		w.Write([]byte(`{"resourceType":"Bundle"}`))
	})

	_, err := c.Operation(context.Background(), "Patient", "123", "everything", nil, FormatJSON, true)
	require.NoError(t, err)
}

func TestClient_OperationPost(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var params map[string]any
		json.NewDecoder(r.Body).Decode(&params)
		require.Equal(t, "Parameters", params["resourceType"])
		w.Write([]byte(`{"resourceType":"Parameters"}`))
	})

	_, err := c.Operation(context.Background(), "Patient", "", "validate", map[string]string{"mode": "create"}, FormatJSON, false)
	require.NoError(t, err)
}
