// Package extract turns a loosely structured create payload into a validated
// SigningRequest.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/models"
	"github.com/Lllllllleong/signingbridge/internal/notion"
	"github.com/Lllllllleong/signingbridge/internal/pdf"
	"github.com/Lllllllleong/signingbridge/internal/phone"
)

// Logical field names, as they appear in errors.
const (
	fieldRecordID   = "record_id"
	fieldClientName = "client_name"
	fieldEmail      = "email"
	fieldPhone      = "phone"
	fieldPDF        = "pdf"
)

// SigningRequest is everything needed to create one signing document. Every
// field except CurrentStatus is non-empty.
type SigningRequest struct {
	RecordID      string
	ClientName    string
	Email         string
	Phone         phone.Number
	PDF           pdf.Reference
	CurrentStatus models.Status
}

// Extractor reads SigningRequests out of envelopes using a field mapping.
type Extractor struct {
	mapping config.FieldMapping
	debug   bool
}

// NewExtractor builds an extractor. With debug set, the raw value of every
// offending field is logged before the error is returned.
func NewExtractor(mapping config.FieldMapping, debug bool) *Extractor {
	return &Extractor{mapping: mapping, debug: debug}
}

// Extract validates env and builds the request. KindReference envelopes must be
// resolved to a page first.
func (e *Extractor) Extract(env Envelope) (SigningRequest, error) {
	var src source
	switch env.Kind {
	case KindPage:
		src = pageSource{props: env.Properties}
	case KindFlat:
		src = flatSource{fields: env.Fields}
	default:
		return SigningRequest{}, fmt.Errorf("cannot extract from a %s envelope", env.Kind)
	}

	recordID := env.RecordID
	if recordID == "" {
		var err error
		if recordID, err = e.text(src, fieldRecordID, e.mapping.RecordID); err != nil {
			return SigningRequest{}, err
		}
	}
	logCtx := slog.With("recordId", recordID, "envelope", env.Kind.String())

	name, err := e.text(src, fieldClientName, e.mapping.ClientName)
	if err != nil {
		return SigningRequest{}, err
	}
	rawEmail, err := e.text(src, fieldEmail, e.mapping.Email)
	if err != nil {
		return SigningRequest{}, err
	}
	rawPhone, err := e.text(src, fieldPhone, e.mapping.Phone)
	if err != nil {
		return SigningRequest{}, err
	}
	ref, err := e.reference(src)
	if err != nil {
		return SigningRequest{}, err
	}

	email, err := ValidateEmail(rawEmail)
	if err != nil {
		return SigningRequest{}, err
	}
	number, err := phone.Normalize(rawPhone)
	if err != nil {
		return SigningRequest{}, err
	}

	req := SigningRequest{
		RecordID:      recordID,
		ClientName:    name,
		Email:         email,
		Phone:         number,
		PDF:           ref,
		CurrentStatus: e.status(src),
	}
	logCtx.Debug("Signing request extracted.", "currentStatus", req.CurrentStatus)
	return req, nil
}

// PDFReference reads only the PDF field of a page.
func (e *Extractor) PDFReference(page *notion.Page) (pdf.Reference, error) {
	return e.reference(pageSource{props: page.Properties})
}

// ValidateEmail checks that raw is a single bare address.
func ValidateEmail(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", &apperr.ValidationError{Field: fieldEmail, Reason: fmt.Sprintf("%q is not a valid email address", addr)}
	}
	return addr, nil
}

func (e *Extractor) text(src source, field string, prop config.Property) (string, error) {
	value, raw, err := src.text(field, prop)
	if err == nil && value == "" {
		err = errors.New("value is empty")
	}
	if err != nil {
		return "", e.malformed(field, prop, raw, err)
	}
	return value, nil
}

func (e *Extractor) reference(src source) (pdf.Reference, error) {
	ref, raw, err := src.reference(e.mapping.PDF)
	if err != nil {
		var unsupported *apperr.UnsupportedAttachmentError
		if errors.As(err, &unsupported) {
			return pdf.Reference{}, err
		}
		return pdf.Reference{}, e.malformed(fieldPDF, e.mapping.PDF, raw, err)
	}
	return ref, nil
}

func (e *Extractor) status(src source) models.Status {
	label, _, err := src.text("status", e.mapping.Status)
	if err != nil {
		return ""
	}
	return e.mapping.Labels.Status(label)
}

func (e *Extractor) malformed(field string, prop config.Property, raw string, err error) error {
	if e.debug {
		slog.Warn("Payload field could not be read.",
			"field", field,
			"property", prop.Name,
			"expectedKind", prop.Kind,
			"raw", raw,
			"error", err,
		)
	}
	return &apperr.MalformedPayloadError{Field: field, Property: prop.Name, Reason: err.Error()}
}

// source reads logical fields out of one envelope shape. The returned raw
// string is the offending JSON, for debug logging.
type source interface {
	text(field string, prop config.Property) (string, string, error)
	reference(prop config.Property) (pdf.Reference, string, error)
}

type pageSource struct {
	props map[string]notion.PropertyValue
}

func (s pageSource) text(_ string, prop config.Property) (string, string, error) {
	pv, ok := s.props[prop.Name]
	if !ok {
		return "", "", fmt.Errorf("property %q is missing", prop.Name)
	}
	value, err := pv.Text(prop.Kind)
	return value, pv.Raw(), err
}

func (s pageSource) reference(prop config.Property) (pdf.Reference, string, error) {
	pv, ok := s.props[prop.Name]
	if !ok {
		return pdf.Reference{}, "", fmt.Errorf("property %q is missing", prop.Name)
	}
	ref, err := propertyReference(pv, prop.Kind)
	return ref, pv.Raw(), err
}

type flatSource struct {
	fields map[string]json.RawMessage
}

// lookup finds the value for field, preferring the configured column name
// over the logical aliases. strict reports whether the column name matched.
func (s flatSource) lookup(field string, prop config.Property) (json.RawMessage, bool, bool) {
	if raw, ok := s.fields[prop.Name]; ok {
		return raw, true, true
	}
	for _, key := range aliases[field] {
		if raw, ok := s.fields[key]; ok {
			return raw, false, true
		}
	}
	return nil, false, false
}

func (s flatSource) text(field string, prop config.Property) (string, string, error) {
	raw, strict, ok := s.lookup(field, prop)
	if !ok {
		return "", "", fmt.Errorf("no %q or %s key in payload", prop.Name, strings.Join(aliases[field], "/"))
	}
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return "", string(raw), nil
	case raw[0] == '"':
		return plainString(raw), string(raw), nil
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		return string(raw), string(raw), nil
	case raw[0] == '{':
		var pv notion.PropertyValue
		if err := json.Unmarshal(raw, &pv); err != nil {
			return "", string(raw), fmt.Errorf("malformed property value: %w", err)
		}
		kind := pv.Type
		if strict {
			kind = prop.Kind
		}
		if kind == "" {
			return "", string(raw), errors.New("property value has no type tag")
		}
		value, err := pv.Text(kind)
		return value, string(raw), err
	default:
		return "", string(raw), errors.New("expected a string or a typed property value")
	}
}

func (s flatSource) reference(prop config.Property) (pdf.Reference, string, error) {
	raw, _, ok := s.lookup(fieldPDF, prop)
	if !ok {
		return pdf.Reference{}, "", fmt.Errorf("no %q or %s key in payload", prop.Name, strings.Join(aliases[fieldPDF], "/"))
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return pdf.Reference{}, string(raw), errors.New("value is empty")
	}

	switch raw[0] {
	case '"':
		u := plainString(raw)
		if u == "" {
			return pdf.Reference{}, string(raw), errors.New("value is empty")
		}
		return pdf.Reference{External: &pdf.Link{URL: u}}, string(raw), nil
	case '[':
		var files []notion.File
		if err := json.Unmarshal(raw, &files); err != nil {
			return pdf.Reference{}, string(raw), errors.New("expected an array of file objects")
		}
		ref, err := filesReference(files)
		return ref, string(raw), err
	case '{':
		var pv notion.PropertyValue
		if err := json.Unmarshal(raw, &pv); err != nil {
			return pdf.Reference{}, string(raw), fmt.Errorf("malformed file reference: %w", err)
		}
		if pv.Type != "" && pv.Type != "file" && pv.Type != "external" {
			ref, err := propertyReference(pv, pv.Type)
			return ref, string(raw), err
		}
		var f struct {
			notion.File
			URL string `json:"url"`
		}
		if err := json.Unmarshal(raw, &f); err != nil {
			return pdf.Reference{}, string(raw), fmt.Errorf("malformed file reference: %w", err)
		}
		if f.Hosted == nil && f.External == nil && f.URL != "" {
			return pdf.Reference{Name: f.Name, External: &pdf.Link{URL: strings.TrimSpace(f.URL)}}, string(raw), nil
		}
		return fileReference(f.File), string(raw), nil
	default:
		return pdf.Reference{}, string(raw), errors.New("expected a URL, a file object or an array of files")
	}
}

// propertyReference reads a PDF reference out of a typed property value.
func propertyReference(pv notion.PropertyValue, kind string) (pdf.Reference, error) {
	switch kind {
	case config.KindFiles:
		files, err := pv.Files()
		if err != nil {
			return pdf.Reference{}, err
		}
		return filesReference(files)
	case config.KindURL, config.KindFormula:
		u, err := pv.Text(kind)
		if err != nil {
			return pdf.Reference{}, err
		}
		if u == "" {
			return pdf.Reference{}, errors.New("value is empty")
		}
		return pdf.Reference{External: &pdf.Link{URL: u}}, nil
	default:
		return pdf.Reference{}, fmt.Errorf("a %s property cannot hold a file reference", kind)
	}
}

func filesReference(files []notion.File) (pdf.Reference, error) {
	if len(files) == 0 {
		return pdf.Reference{}, errors.New("no file attached")
	}
	for _, f := range files {
		if ref := fileReference(f); !ref.IsZero() {
			return ref, nil
		}
	}
	return pdf.Reference{}, &apperr.UnsupportedAttachmentError{Reason: fmt.Sprintf("file %q has neither an external nor a hosted link", files[0].Name)}
}

func fileReference(f notion.File) pdf.Reference {
	ref := pdf.Reference{Name: f.Name}
	if f.External != nil && strings.TrimSpace(f.External.URL) != "" {
		ref.External = &pdf.Link{URL: strings.TrimSpace(f.External.URL)}
	}
	if f.Hosted != nil {
		ref.Hosted = &pdf.HostedLink{URL: strings.TrimSpace(f.Hosted.URL), ExpiryTime: f.Hosted.ExpiryTime}
	}
	return ref
}
