package correlation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/notion"
)

type update struct {
	pageID string
	props  map[string]any
}

type fakeStore struct {
	pages     []notion.Page
	queries   []notion.Query
	updates   []update
	updateErr error
	queryErr  error
}

func (f *fakeStore) UpdatePage(ctx context.Context, pageID string, properties map[string]any) error {
	f.updates = append(f.updates, update{pageID: pageID, props: properties})
	return f.updateErr
}

func (f *fakeStore) QueryDatabase(ctx context.Context, databaseID string, q notion.Query) ([]notion.Page, error) {
	f.queries = append(f.queries, q)
	return f.pages, f.queryErr
}

func page(t *testing.T, id, token, status string) notion.Page {
	t.Helper()
	raw := `{"object": "page", "id": "` + id + `", "properties": {
	  "Doc Token": {"type": "rich_text", "rich_text": [{"plain_text": "` + token + `"}]},
	  "Status Assinatura": {"type": "select", "select": {"name": "` + status + `"}}
	}}`
	var p notion.Page
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func newUpdater(store Store, match string) *Updater {
	return NewUpdater(store, "db-1", config.DefaultFieldMapping(), match)
}

func TestRecordSent(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, newUpdater(store, "").RecordSent(context.Background(), "p1", "tok123"))

	require.Len(t, store.updates, 1)
	assert.Equal(t, "p1", store.updates[0].pageID)
	assert.Equal(t, map[string]any{
		"Status Assinatura": notion.SelectValue("Enviado"),
		"Doc Token":         notion.RichTextValue("tok123"),
	}, store.updates[0].props)
}

func TestRecordSentStatusKind(t *testing.T) {
	mapping := config.DefaultFieldMapping()
	mapping.Status.Kind = config.KindStatus
	store := &fakeStore{}

	require.NoError(t, NewUpdater(store, "db-1", mapping, "").RecordSent(context.Background(), "p1", "tok123"))
	assert.Equal(t, notion.StatusValue("Enviado"), store.updates[0].props["Status Assinatura"])
}

func TestRecordSentFailure(t *testing.T) {
	store := &fakeStore{updateErr: &apperr.UpstreamUpdateError{Upstream: apperr.Upstream{Service: "notion", Status: 400}}}

	err := newUpdater(store, "").RecordSent(context.Background(), "p1", "tok123")
	var updateErr *apperr.UpstreamUpdateError
	require.ErrorAs(t, err, &updateErr)
}

func TestResolveAndMarkSigned(t *testing.T) {
	store := &fakeStore{pages: []notion.Page{page(t, "p1", "tok123", "Enviado")}}

	recordID, err := newUpdater(store, "").ResolveAndMarkSigned(context.Background(), "tok123", "")
	require.NoError(t, err)
	assert.Equal(t, "p1", recordID)

	require.Len(t, store.queries, 1)
	assert.Equal(t, "Doc Token", store.queries[0].Filter.Property)
	assert.Equal(t, "tok123", store.queries[0].Filter.RichText.Contains)

	require.Len(t, store.updates, 1)
	assert.Equal(t, map[string]any{"Status Assinatura": notion.SelectValue("Assinado")}, store.updates[0].props)
}

func TestResolveAndMarkSignedNotFound(t *testing.T) {
	store := &fakeStore{}

	_, err := newUpdater(store, "").ResolveAndMarkSigned(context.Background(), "tok404", "")
	var notFound *apperr.CorrelationNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "tok404", notFound.Token)
	assert.Empty(t, store.updates)
}

func TestResolveAndMarkSignedAlreadySigned(t *testing.T) {
	store := &fakeStore{pages: []notion.Page{page(t, "p1", "tok123", "Assinado")}}

	recordID, err := newUpdater(store, "").ResolveAndMarkSigned(context.Background(), "tok123", "")
	require.NoError(t, err)
	assert.Equal(t, "p1", recordID)
	assert.Empty(t, store.updates)
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestResolveAndMarkSignedWarnsWhenNotSent(t *testing.T) {
	logs := captureLogs(t)
	store := &fakeStore{pages: []notion.Page{page(t, "p1", "tok123", "Rascunho")}}

	recordID, err := newUpdater(store, "").ResolveAndMarkSigned(context.Background(), "tok123", "")
	require.NoError(t, err)
	assert.Equal(t, "p1", recordID)
	require.Len(t, store.updates, 1)
	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.Contains(t, logs.String(), `"status":"Draft"`)
}

func TestResolveAndMarkSignedFromSentDoesNotWarn(t *testing.T) {
	logs := captureLogs(t)
	store := &fakeStore{pages: []notion.Page{page(t, "p1", "tok123", "Enviado")}}

	_, err := newUpdater(store, "").ResolveAndMarkSigned(context.Background(), "tok123", "")
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), `"level":"WARN"`)
}

func TestResolvePrefersHint(t *testing.T) {
	store := &fakeStore{pages: []notion.Page{
		page(t, "aaaa-1111", "tok123", "Enviado"),
		page(t, "bbbb-2222", "tok123", "Enviado"),
	}}

	recordID, err := newUpdater(store, "").ResolveAndMarkSigned(context.Background(), "tok123", "bbbb2222")
	require.NoError(t, err)
	assert.Equal(t, "bbbb-2222", recordID)

	recordID, err = newUpdater(store, "").ResolveAndMarkSigned(context.Background(), "tok123", "unknown")
	require.NoError(t, err)
	assert.Equal(t, "aaaa-1111", recordID)
}

func TestResolveExactMatch(t *testing.T) {
	// The contains filter also returns a record holding a longer token.
	pages := []notion.Page{
		page(t, "p1", "tok1234", "Enviado"),
		page(t, "p2", "old-token, tok123", "Enviado"),
	}

	contains, err := newUpdater(&fakeStore{pages: pages}, config.MatchContains).ResolveAndMarkSigned(context.Background(), "tok123", "")
	require.NoError(t, err)
	assert.Equal(t, "p1", contains)

	exact, err := newUpdater(&fakeStore{pages: pages}, config.MatchExact).ResolveAndMarkSigned(context.Background(), "tok123", "")
	require.NoError(t, err)
	assert.Equal(t, "p2", exact)

	_, err = newUpdater(&fakeStore{pages: pages[:1]}, config.MatchExact).ResolveAndMarkSigned(context.Background(), "tok123", "")
	var notFound *apperr.CorrelationNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestResolveAndMarkSignedUpdateFailure(t *testing.T) {
	store := &fakeStore{
		pages:     []notion.Page{page(t, "p1", "tok123", "Enviado")},
		updateErr: &apperr.UpstreamUpdateError{Upstream: apperr.Upstream{Service: "notion", Status: 502}},
	}

	_, err := newUpdater(store, "").ResolveAndMarkSigned(context.Background(), "tok123", "")
	var updateErr *apperr.UpstreamUpdateError
	require.ErrorAs(t, err, &updateErr)
}

func TestResolveQueryFailure(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("boom")}

	_, err := newUpdater(store, "").ResolveAndMarkSigned(context.Background(), "tok123", "")
	require.Error(t, err)
	assert.Empty(t, store.updates)
}

func TestHasToken(t *testing.T) {
	assert.True(t, HasToken("tok123", "tok123"))
	assert.True(t, HasToken("a, tok123 ,b", "tok123"))
	assert.True(t, HasToken("old\ntok123", "tok123"))
	assert.False(t, HasToken("tok1234", "tok123"))
	assert.False(t, HasToken("xtok123", "tok123"))
	assert.False(t, HasToken("", "tok123"))
}
