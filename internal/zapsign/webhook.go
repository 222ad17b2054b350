package zapsign

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
)

// Event names that mean every signer has signed.
const (
	EventDocumentSigned = "document_signed"
	EventDocSigned      = "doc_signed"
)

// WebhookEvent is a parsed completion callback.
type WebhookEvent struct {
	Event         string
	DocumentToken string
	RecordID      string
	SignedFileURL string
}

// IsSigned reports whether the event closes the signing loop.
func (e WebhookEvent) IsSigned() bool {
	return e.Event == EventDocumentSigned || e.Event == EventDocSigned
}

type webhookBody struct {
	Event      string          `json:"event"`
	EventType  string          `json:"event_type"`
	DocToken   string          `json:"doc_token"`
	Token      string          `json:"token"`
	ExternalID string          `json:"external_id"`
	SignedFile string          `json:"signed_file"`
	Metadata   json.RawMessage `json:"metadata"`
}

// ParseWebhook reads a callback body. A signed event without a document token
// is malformed; other events are returned without further checks.
func ParseWebhook(raw []byte) (WebhookEvent, error) {
	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return WebhookEvent{}, &apperr.MalformedPayloadError{Field: "body", Reason: "webhook payload must be a JSON object"}
	}
	meta := metadata(body.Metadata)

	ev := WebhookEvent{
		Event:         strings.TrimSpace(firstNonEmpty(body.Event, body.EventType)),
		DocumentToken: strings.TrimSpace(firstNonEmpty(body.DocToken, body.Token, meta["doc_token"], meta["token"])),
		RecordID:      strings.TrimSpace(firstNonEmpty(body.ExternalID, meta[MetaRecordID])),
		SignedFileURL: strings.TrimSpace(body.SignedFile),
	}
	if ev.IsSigned() && ev.DocumentToken == "" {
		return ev, &apperr.MalformedPayloadError{Field: "doc_token", Reason: "signed event carries no document token"}
	}
	return ev, nil
}

// metadata accepts both a [{key, value}] array and a plain object. Entries
// whose value is not a string are skipped.
func metadata(raw json.RawMessage) map[string]string {
	out := map[string]string{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return out
	}
	if raw[0] == '[' {
		var entries []json.RawMessage
		if json.Unmarshal(raw, &entries) != nil {
			return out
		}
		for _, entry := range entries {
			var pair struct {
				Key   string          `json:"key"`
				Value json.RawMessage `json:"value"`
			}
			if json.Unmarshal(entry, &pair) != nil || pair.Key == "" {
				continue
			}
			var value string
			if json.Unmarshal(pair.Value, &value) != nil {
				continue
			}
			if _, seen := out[pair.Key]; !seen {
				out[pair.Key] = value
			}
		}
		return out
	}
	var obj map[string]any
	if json.Unmarshal(raw, &obj) == nil {
		for k, v := range obj {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
