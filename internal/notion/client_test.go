package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
	"github.com/Lllllllleong/signingbridge/internal/config"
)

const samplePage = `{
  "object": "page",
  "id": "p1",
  "properties": {
    "Nome do Cliente": {"id": "title", "type": "title", "title": [{"plain_text": "Ana "}, {"plain_text": "Silva"}]},
    "Email": {"id": "a", "type": "email", "email": "ana@example.com"},
    "WhatsApp": {"id": "b", "type": "phone_number", "phone_number": "(11) 98765-4321"},
    "Doc Token": {"id": "c", "type": "rich_text", "rich_text": []},
    "Status Assinatura": {"id": "d", "type": "select", "select": {"name": "Enviado"}},
    "Proposta PDF": {"id": "e", "type": "files", "files": [
      {"name": "a.pdf", "type": "file", "file": {"url": "https://files/a.pdf", "expiry_time": "2030-01-01T00:00:00.000Z"}}
    ]}
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.NotionConfig{
		Token:      "secret_abc",
		BaseURL:    srv.URL + "/v1",
		APIVersion: "2022-06-28",
		Timeout:    5 * time.Second,
	}, nil)
}

func TestGetPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/pages/p1", r.URL.Path)
		assert.Equal(t, "Bearer secret_abc", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		_, _ = io.WriteString(w, samplePage)
	})

	page, err := client.GetPage(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", page.ID)

	name, err := page.Properties["Nome do Cliente"].Text("title")
	require.NoError(t, err)
	assert.Equal(t, "Ana Silva", name)

	files, err := page.Properties["Proposta PDF"].Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NotNil(t, files[0].Hosted)
	assert.Equal(t, "https://files/a.pdf", files[0].Hosted.URL)
	assert.Equal(t, 2030, files[0].Hosted.ExpiryTime.Year())
}

func TestGetPageUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"object":"error","code":"object_not_found"}`)
	})

	_, err := client.GetPage(context.Background(), "missing")
	var fetchErr *apperr.UpstreamFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.Status)
	assert.Contains(t, fetchErr.Body, "object_not_found")
	assert.Equal(t, "get page", fetchErr.Step)
}

func TestUpdatePage(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/pages/p1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"object":"page","id":"p1"}`)
	})

	err := client.UpdatePage(context.Background(), "p1", map[string]any{
		"Status Assinatura": SelectValue("Enviado"),
		"Doc Token":         RichTextValue("tok123"),
	})
	require.NoError(t, err)

	props := got["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"select": map[string]any{"name": "Enviado"}}, props["Status Assinatura"])
	token := props["Doc Token"].(map[string]any)["rich_text"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"content": "tok123"}, token["text"])
}

func TestUpdatePageFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"Status Assinatura is not a property that exists."}`)
	})

	err := client.UpdatePage(context.Background(), "p1", map[string]any{"x": SelectValue("y")})
	var upErr *apperr.UpstreamUpdateError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadRequest, upErr.Status)
}

func TestQueryDatabase(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/databases/db-1/query", r.URL.Path)
		var q Query
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		if assert.NotNil(t, q.Filter) && assert.NotNil(t, q.Filter.RichText) {
			assert.Equal(t, "Doc Token", q.Filter.Property)
			assert.Equal(t, "tok123", q.Filter.RichText.Contains)
		}
		assert.Equal(t, queryPageSize, q.PageSize)
		_, _ = io.WriteString(w, `{"object":"list","results":[`+samplePage+`],"has_more":false,"next_cursor":null}`)
	})

	pages, err := client.QueryDatabase(context.Background(), "db-1", Query{
		Filter: &Filter{Property: "Doc Token", RichText: &TextCondition{Contains: "tok123"}},
	})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "p1", pages[0].ID)
}

func TestTransportFailureHasNoStatus(t *testing.T) {
	client := NewClient(config.NotionConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)

	_, err := client.GetPage(context.Background(), "p1")
	var fetchErr *apperr.UpstreamFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.Status)
	assert.Error(t, fetchErr.Err)
}
