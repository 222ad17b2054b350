package notion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Page is a database row as returned by the pages and query endpoints.
type Page struct {
	Object     string                   `json:"object"`
	ID         string                   `json:"id"`
	URL        string                   `json:"url,omitempty"`
	Properties map[string]PropertyValue `json:"properties"`
}

// RichText is one run of a title or rich_text property.
type RichText struct {
	PlainText string `json:"plain_text"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text,omitempty"`
}

// Formula is the computed value of a formula property.
type Formula struct {
	Type    string   `json:"type"`
	String  *string  `json:"string,omitempty"`
	Number  *float64 `json:"number,omitempty"`
	Boolean *bool    `json:"boolean,omitempty"`
}

// SelectOption is the value of a select or status property.
type SelectOption struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// File is one entry of a files property. Exactly one of Hosted or External is
// set for well-formed entries.
type File struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Hosted   *HostedFile   `json:"file,omitempty"`
	External *ExternalFile `json:"external,omitempty"`
}

// HostedFile is a Notion-hosted upload behind a short-lived signed URL.
type HostedFile struct {
	URL        string    `json:"url"`
	ExpiryTime time.Time `json:"expiry_time"`
}

// ExternalFile is a link to a file hosted elsewhere.
type ExternalFile struct {
	URL string `json:"url"`
}

// PropertyValue is a type-tagged property value. The payload under the tag is
// kept raw and decoded on demand for the kind the caller expects, so a value of
// an unexpected shape is reported instead of silently read as empty.
type PropertyValue struct {
	Type   string
	fields map[string]json.RawMessage
}

func (p *PropertyValue) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	p.fields = fields
	p.Type = ""
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &p.Type); err != nil {
			return fmt.Errorf("property type tag: %w", err)
		}
	}
	return nil
}

func (p PropertyValue) MarshalJSON() ([]byte, error) {
	if p.fields == nil {
		return []byte("null"), nil
	}
	return json.Marshal(p.fields)
}

// Has reports whether the value carries a payload under kind.
func (p PropertyValue) Has(kind string) bool {
	raw, ok := p.fields[kind]
	return ok && len(raw) > 0
}

// Raw returns the whole value as JSON, for diagnostics.
func (p PropertyValue) Raw() string {
	b, err := p.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// ShapeError reports a property whose wrapper does not match the expected kind.
type ShapeError struct {
	Expected string
	Actual   string
}

func (e *ShapeError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("expected a %s property, found no %s payload", e.Expected, e.Expected)
	}
	return fmt.Sprintf("expected a %s property, found %s", e.Expected, e.Actual)
}

func (p PropertyValue) checkShape(kind string) error {
	if p.Type != "" && p.Type != kind {
		return &ShapeError{Expected: kind, Actual: p.Type}
	}
	if !p.Has(kind) {
		return &ShapeError{Expected: kind}
	}
	return nil
}

// Text decodes the value as kind and returns its string form, trimmed. It
// supports every text-like kind: title, rich_text, email, phone_number, url,
// formula (string results), select and status.
func (p PropertyValue) Text(kind string) (string, error) {
	if err := p.checkShape(kind); err != nil {
		return "", err
	}
	raw := p.fields[kind]
	switch kind {
	case "title", "rich_text":
		var runs []RichText
		if err := json.Unmarshal(raw, &runs); err != nil {
			return "", &ShapeError{Expected: kind, Actual: "malformed " + kind}
		}
		return strings.TrimSpace(JoinRichText(runs)), nil
	case "email", "phone_number", "url":
		var s *string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", &ShapeError{Expected: kind, Actual: "non-string " + kind}
		}
		if s == nil {
			return "", nil
		}
		return strings.TrimSpace(*s), nil
	case "formula":
		var f Formula
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", &ShapeError{Expected: kind, Actual: "malformed formula"}
		}
		if f.Type != "" && f.Type != "string" {
			return "", &ShapeError{Expected: "string formula", Actual: f.Type + " formula"}
		}
		if f.String == nil {
			return "", nil
		}
		return strings.TrimSpace(*f.String), nil
	case "select", "status":
		var opt *SelectOption
		if err := json.Unmarshal(raw, &opt); err != nil {
			return "", &ShapeError{Expected: kind, Actual: "malformed " + kind}
		}
		if opt == nil {
			return "", nil
		}
		return strings.TrimSpace(opt.Name), nil
	default:
		return "", fmt.Errorf("unsupported text kind %q", kind)
	}
}

// Files decodes a files property.
func (p PropertyValue) Files() ([]File, error) {
	if err := p.checkShape("files"); err != nil {
		return nil, err
	}
	var files []File
	if err := json.Unmarshal(p.fields["files"], &files); err != nil {
		return nil, &ShapeError{Expected: "files", Actual: "malformed files"}
	}
	return files, nil
}

// JoinRichText concatenates the plain text of every run.
func JoinRichText(runs []RichText) string {
	var b strings.Builder
	for _, r := range runs {
		switch {
		case r.PlainText != "":
			b.WriteString(r.PlainText)
		case r.Text != nil:
			b.WriteString(r.Text.Content)
		}
	}
	return b.String()
}

// Query is the body of a database query.
type Query struct {
	Filter   *Filter `json:"filter,omitempty"`
	PageSize int     `json:"page_size,omitempty"`
}

// Filter is a single-property filter.
type Filter struct {
	Property string         `json:"property"`
	RichText *TextCondition `json:"rich_text,omitempty"`
}

// TextCondition matches rich_text values.
type TextCondition struct {
	Contains string `json:"contains,omitempty"`
	Equals   string `json:"equals,omitempty"`
}

// queryResponse is one page of database query results.
type queryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// SelectValue builds the update payload for a select property.
func SelectValue(name string) map[string]any {
	return map[string]any{"select": map[string]string{"name": name}}
}

// StatusValue builds the update payload for a status property.
func StatusValue(name string) map[string]any {
	return map[string]any{"status": map[string]string{"name": name}}
}

// RichTextValue builds the update payload for a rich_text property holding a
// single plain run.
func RichTextValue(content string) map[string]any {
	return map[string]any{
		"rich_text": []map[string]any{
			{"text": map[string]string{"content": content}},
		},
	}
}
