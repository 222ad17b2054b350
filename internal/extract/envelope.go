package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/notion"
)

// Kind tags the shape an inbound create payload arrived in.
type Kind int

const (
	// KindFlat is a flat object keyed by column names or logical aliases.
	KindFlat Kind = iota + 1
	// KindPage is a full page object, bare or wrapped under "data" by a
	// change event.
	KindPage
	// KindReference carries only the id of a record that still has to be read.
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindPage:
		return "page"
	case KindReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Envelope is a classified create payload. Properties is set for KindPage,
// Fields for KindFlat, and RecordID whenever the payload names one.
type Envelope struct {
	Kind       Kind
	RecordID   string
	Properties map[string]notion.PropertyValue
	Fields     map[string]json.RawMessage
}

// Logical field aliases accepted as keys of a flat payload.
var aliases = map[string][]string{
	fieldRecordID:   {"record_id", "page_id", "id"},
	fieldClientName: {"client_name", "name"},
	fieldEmail:      {"email"},
	fieldPhone:      {"phone", "whatsapp"},
	fieldPDF:        {"pdf", "pdf_reference", "file"},
}

// DecodeEnvelope classifies raw into one of the known payload shapes using the
// default column names. Keys it does not recognize are ignored.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	return decodeEnvelope(raw, config.DefaultFieldMapping())
}

// Decode classifies raw like DecodeEnvelope, recognizing flat keys by the
// extractor's column names.
func (e *Extractor) Decode(raw []byte) (Envelope, error) {
	return decodeEnvelope(raw, e.mapping)
}

func decodeEnvelope(raw []byte, mapping config.FieldMapping) (Envelope, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return Envelope{}, &apperr.MalformedPayloadError{Field: "body", Reason: "payload must be a JSON object"}
	}

	if env, ok, err := decodePage(top); ok || err != nil {
		return env, err
	}
	if data, ok := object(top["data"]); ok {
		if env, ok, err := decodePage(data); ok || err != nil {
			return env, err
		}
	}
	if id, ok := entityPage(top); ok {
		return Envelope{Kind: KindReference, RecordID: id}, nil
	}

	env := Envelope{Kind: KindFlat, Fields: top}
	for _, key := range aliases[fieldRecordID] {
		if id := plainString(top[key]); id != "" {
			env.RecordID = id
			break
		}
	}
	if env.RecordID != "" && !carriesRecordData(top, mapping) {
		env.Kind = KindReference
		env.Fields = nil
	}
	return env, nil
}

// PageEnvelope wraps a page read from the record store.
func PageEnvelope(page *notion.Page) Envelope {
	return Envelope{Kind: KindPage, RecordID: page.ID, Properties: page.Properties}
}

func decodePage(obj map[string]json.RawMessage) (Envelope, bool, error) {
	rawProps, ok := obj["properties"]
	if !ok {
		return Envelope{}, false, nil
	}
	var props map[string]notion.PropertyValue
	if err := json.Unmarshal(rawProps, &props); err != nil || props == nil {
		return Envelope{}, false, &apperr.MalformedPayloadError{Field: "properties", Reason: "properties must be an object of typed property values"}
	}
	return Envelope{Kind: KindPage, RecordID: plainString(obj["id"]), Properties: props}, true, nil
}

// entityPage recognizes the record-store webhook event shape
// {"entity": {"id": "...", "type": "page"}}.
func entityPage(top map[string]json.RawMessage) (string, bool) {
	var entity struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	raw, ok := top["entity"]
	if !ok || json.Unmarshal(raw, &entity) != nil {
		return "", false
	}
	if entity.Type != "page" || strings.TrimSpace(entity.ID) == "" {
		return "", false
	}
	return strings.TrimSpace(entity.ID), true
}

// carriesRecordData reports whether a flat object has a key that holds a
// signing field, either a logical alias or a mapped column name. The record id
// and unknown keys do not count.
func carriesRecordData(top map[string]json.RawMessage, mapping config.FieldMapping) bool {
	columns := []string{mapping.ClientName.Name, mapping.Email.Name, mapping.Phone.Name, mapping.PDF.Name}
	for _, field := range []string{fieldClientName, fieldEmail, fieldPhone, fieldPDF} {
		columns = append(columns, aliases[field]...)
	}
	for _, key := range columns {
		if _, ok := top[key]; ok {
			return true
		}
	}
	return false
}

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func plainString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
