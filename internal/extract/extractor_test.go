package extract

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/models"
	"github.com/Lllllllleong/signingbridge/internal/notion"
	"github.com/Lllllllleong/signingbridge/internal/phone"
)

const pagePayload = `{
  "object": "page",
  "id": "page-1",
  "properties": {
    "Nome do Cliente": {"id": "title", "type": "title", "title": [{"plain_text": "Ana "}, {"plain_text": "Silva"}]},
    "Email": {"id": "e", "type": "email", "email": "ana@example.com"},
    "WhatsApp": {"id": "w", "type": "phone_number", "phone_number": "(11) 98765-4321"},
    "Proposta PDF": {"id": "p", "type": "files", "files": [
      {"name": "proposta.pdf", "type": "file", "file": {"url": "https://s3.example/proposta.pdf?sig=1", "expiry_time": "2030-01-01T00:00:00.000Z"}}
    ]},
    "Status Assinatura": {"id": "s", "type": "select", "select": {"name": "Enviado"}},
    "Doc Token": {"id": "t", "type": "rich_text", "rich_text": []}
  }
}`

func newExtractor() *Extractor {
	return NewExtractor(config.DefaultFieldMapping(), false)
}

func TestExtractPage(t *testing.T) {
	env, err := DecodeEnvelope([]byte(pagePayload))
	require.NoError(t, err)
	require.Equal(t, KindPage, env.Kind)

	req, err := newExtractor().Extract(env)
	require.NoError(t, err)

	assert.Equal(t, "page-1", req.RecordID)
	assert.Equal(t, "Ana Silva", req.ClientName)
	assert.Equal(t, "ana@example.com", req.Email)
	assert.Equal(t, phone.Number("5511987654321"), req.Phone)
	require.NotNil(t, req.PDF.Hosted)
	assert.Equal(t, "https://s3.example/proposta.pdf?sig=1", req.PDF.Hosted.URL)
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), req.PDF.Hosted.ExpiryTime.UTC())
	assert.Equal(t, models.StatusSent, req.CurrentStatus)
}

func TestExtractChangeEventWrapper(t *testing.T) {
	raw := `{"source": {"type": "automation"}, "data": ` + pagePayload + `}`
	env, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, KindPage, env.Kind)
	assert.Equal(t, "page-1", env.RecordID)

	req, err := newExtractor().Extract(env)
	require.NoError(t, err)
	assert.Equal(t, "Ana Silva", req.ClientName)
}

func TestExtractFlatAliases(t *testing.T) {
	raw := `{"id": "p1", "name": "Ana Silva", "email": "ana@example.com", "phone": "11987654321",
	         "pdf": {"external": {"url": "https://files/a.pdf"}}, "extra": [1, 2, 3]}`
	env, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, KindFlat, env.Kind)

	req, err := newExtractor().Extract(env)
	require.NoError(t, err)
	assert.Equal(t, "p1", req.RecordID)
	assert.Equal(t, "Ana Silva", req.ClientName)
	assert.Equal(t, phone.Number("5511987654321"), req.Phone)
	require.NotNil(t, req.PDF.External)
	assert.Equal(t, "https://files/a.pdf", req.PDF.External.URL)
	assert.Empty(t, req.CurrentStatus)
}

func TestExtractFlatColumnNames(t *testing.T) {
	raw := `{
	  "page_id": "p2",
	  "Nome do Cliente": {"type": "title", "title": [{"plain_text": "Bruno"}]},
	  "Email": "bruno@example.com",
	  "WhatsApp": 21912345678,
	  "Proposta PDF": "https://files/b.pdf",
	  "Status Assinatura": "Assinado"
	}`
	env, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)

	req, err := newExtractor().Extract(env)
	require.NoError(t, err)
	assert.Equal(t, "p2", req.RecordID)
	assert.Equal(t, "Bruno", req.ClientName)
	assert.Equal(t, phone.Number("5521912345678"), req.Phone)
	assert.Equal(t, "https://files/b.pdf", req.PDF.External.URL)
	assert.Equal(t, models.StatusSigned, req.CurrentStatus)
}

func TestExtractFlatFilesArray(t *testing.T) {
	raw := `{"id": "p3", "name": "Carla", "email": "carla@example.com", "whatsapp": "+55 11 3333-4444",
	         "file": [{"name": "a.pdf", "type": "external", "external": {"url": "https://files/c.pdf"}}]}`
	env, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)

	req, err := newExtractor().Extract(env)
	require.NoError(t, err)
	assert.Equal(t, phone.Number("551133334444"), req.Phone)
	assert.Equal(t, "https://files/c.pdf", req.PDF.External.URL)
	assert.Equal(t, "a.pdf", req.PDF.Name)
}

func TestExtractMissingFieldNamesIt(t *testing.T) {
	full := map[string]any{
		"id":    "p1",
		"name":  "Ana Silva",
		"email": "ana@example.com",
		"phone": "11987654321",
		"pdf":   "https://files/a.pdf",
	}
	tests := map[string]string{
		"name":  fieldClientName,
		"email": fieldEmail,
		"phone": fieldPhone,
		"pdf":   fieldPDF,
	}
	for drop, field := range tests {
		t.Run(drop, func(t *testing.T) {
			payload := map[string]any{}
			for k, v := range full {
				if k != drop {
					payload[k] = v
				}
			}
			raw, err := json.Marshal(payload)
			require.NoError(t, err)

			env, err := DecodeEnvelope(raw)
			require.NoError(t, err)
			_, err = newExtractor().Extract(env)

			var malformed *apperr.MalformedPayloadError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, field, malformed.Field)
		})
	}
}

func TestExtractPageMissingProperty(t *testing.T) {
	var page notion.Page
	require.NoError(t, json.Unmarshal([]byte(pagePayload), &page))
	delete(page.Properties, "WhatsApp")

	_, err := NewExtractor(config.DefaultFieldMapping(), true).Extract(PageEnvelope(&page))
	var malformed *apperr.MalformedPayloadError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, fieldPhone, malformed.Field)
	assert.Equal(t, "WhatsApp", malformed.Property)
}

func TestExtractPageWrongWrapper(t *testing.T) {
	var page notion.Page
	require.NoError(t, json.Unmarshal([]byte(pagePayload), &page))
	var wrong notion.PropertyValue
	require.NoError(t, json.Unmarshal([]byte(`{"type": "rich_text", "rich_text": [{"plain_text": "ana@example.com"}]}`), &wrong))
	page.Properties["Email"] = wrong

	_, err := newExtractor().Extract(PageEnvelope(&page))
	var malformed *apperr.MalformedPayloadError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, fieldEmail, malformed.Field)
	assert.Contains(t, malformed.Reason, "rich_text")
}

func TestExtractEmptyValue(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"id": "p1", "name": "  ", "email": "a@b.co", "phone": "11987654321", "pdf": "https://x/a.pdf"}`))
	require.NoError(t, err)

	_, err = newExtractor().Extract(env)
	var malformed *apperr.MalformedPayloadError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, fieldClientName, malformed.Field)
}

func TestExtractInvalidEmailAndPhone(t *testing.T) {
	base := `{"id": "p1", "name": "Ana", "pdf": "https://x/a.pdf", `

	env, err := DecodeEnvelope([]byte(base + `"email": "Ana <ana@example.com>", "phone": "11987654321"}`))
	require.NoError(t, err)
	_, err = newExtractor().Extract(env)
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)

	env, err = DecodeEnvelope([]byte(base + `"email": "ana@example.com", "phone": "12345"}`))
	require.NoError(t, err)
	_, err = newExtractor().Extract(env)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "phone", verr.Field)
}

func TestExtractFileWithoutLink(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"id": "p1", "name": "Ana", "email": "ana@example.com", "phone": "11987654321",
	  "pdf": [{"name": "a.pdf", "type": "file_upload"}]}`))
	require.NoError(t, err)

	_, err = newExtractor().Extract(env)
	var unsupported *apperr.UnsupportedAttachmentError
	require.ErrorAs(t, err, &unsupported)
}

func TestExtractRejectsReference(t *testing.T) {
	_, err := newExtractor().Extract(Envelope{Kind: KindReference, RecordID: "p1"})
	require.Error(t, err)
}

func TestPDFReference(t *testing.T) {
	var page notion.Page
	require.NoError(t, json.Unmarshal([]byte(pagePayload), &page))

	ref, err := newExtractor().PDFReference(&page)
	require.NoError(t, err)
	assert.Equal(t, "proposta.pdf", ref.Name)
	assert.NotNil(t, ref.Hosted)
}

func TestValidateEmail(t *testing.T) {
	for _, ok := range []string{"ana@example.com", " ana.silva+tag@example.com.br "} {
		_, err := ValidateEmail(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "ana", "ana@", "Ana <ana@example.com>", "a@b.com, c@d.com"} {
		_, err := ValidateEmail(bad)
		assert.Error(t, err, bad)
	}
}
