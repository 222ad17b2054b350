// Package apperr defines the error taxonomy shared by the signing bridge.
// Every error type knows the HTTP status it surfaces as, so handlers can map
// failures without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// maxBodyExcerpt bounds how much of an upstream body is kept for diagnosis.
const maxBodyExcerpt = 512

// StatusCoder is implemented by every error in this package.
type StatusCoder interface {
	HTTPStatus() int
}

// MalformedPayloadError reports a required field that is absent, has the
// wrong wrapper shape or is empty.
type MalformedPayloadError struct {
	Field    string
	Property string
	Reason   string
}

func (e *MalformedPayloadError) Error() string {
	if e.Property != "" && e.Property != e.Field {
		return fmt.Sprintf("malformed payload: field %q (property %q): %s", e.Field, e.Property, e.Reason)
	}
	return fmt.Sprintf("malformed payload: field %q: %s", e.Field, e.Reason)
}

func (e *MalformedPayloadError) HTTPStatus() int { return http.StatusUnprocessableEntity }

// ValidationError reports a field that is present but fails format checks.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) HTTPStatus() int { return http.StatusUnprocessableEntity }

// UnsupportedAttachmentError means the PDF reference exposes no usable link.
type UnsupportedAttachmentError struct {
	Reason string
}

func (e *UnsupportedAttachmentError) Error() string {
	return "unsupported attachment: " + e.Reason
}

func (e *UnsupportedAttachmentError) HTTPStatus() int { return http.StatusUnprocessableEntity }

// InvalidDocumentError means the fetched bytes are not a usable PDF.
type InvalidDocumentError struct {
	Reason string
}

func (e *InvalidDocumentError) Error() string {
	return "invalid document: " + e.Reason
}

func (e *InvalidDocumentError) HTTPStatus() int { return http.StatusUnprocessableEntity }

// Upstream carries the diagnosis shared by all upstream failures. Status is 0
// when the call never produced a response (timeout, DNS, refused connection).
type Upstream struct {
	Service string
	Step    string
	Status  int
	Body    string
	Err     error
}

func (u Upstream) describe(kind string) string {
	msg := fmt.Sprintf("%s: %s %s", kind, u.Service, u.Step)
	if u.Status != 0 {
		msg += fmt.Sprintf(" returned status %d", u.Status)
	}
	if u.Err != nil {
		msg += ": " + u.Err.Error()
	}
	return msg
}

// UpstreamFetchError is a failed read from the record store or the PDF host.
type UpstreamFetchError struct{ Upstream }

func (e *UpstreamFetchError) Error() string   { return e.describe("upstream fetch failed") }
func (e *UpstreamFetchError) Unwrap() error   { return e.Err }
func (e *UpstreamFetchError) HTTPStatus() int { return http.StatusBadGateway }

// UpstreamSubmitError is a failed document creation at the signing service.
type UpstreamSubmitError struct{ Upstream }

func (e *UpstreamSubmitError) Error() string   { return e.describe("upstream submit failed") }
func (e *UpstreamSubmitError) Unwrap() error   { return e.Err }
func (e *UpstreamSubmitError) HTTPStatus() int { return http.StatusBadGateway }

// UpstreamUpdateError is a failed write to the record store.
type UpstreamUpdateError struct{ Upstream }

func (e *UpstreamUpdateError) Error() string   { return e.describe("upstream update failed") }
func (e *UpstreamUpdateError) Unwrap() error   { return e.Err }
func (e *UpstreamUpdateError) HTTPStatus() int { return http.StatusBadGateway }

// CorrelationNotFoundError means no record holds the callback token.
type CorrelationNotFoundError struct {
	Token string
}

func (e *CorrelationNotFoundError) Error() string {
	return fmt.Sprintf("no record found for document token %q", e.Token)
}

func (e *CorrelationNotFoundError) HTTPStatus() int { return http.StatusNotFound }

// InvalidTransitionError rejects a status change the lifecycle does not allow.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) HTTPStatus() int { return http.StatusConflict }

// UnauthorizedError rejects an inbound call without the expected credential.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string   { return "unauthorized: " + e.Reason }
func (e *UnauthorizedError) HTTPStatus() int { return http.StatusUnauthorized }

// Excerpt trims an upstream body to a loggable size.
func Excerpt(body []byte) string {
	if len(body) > maxBodyExcerpt {
		return string(body[:maxBodyExcerpt]) + "..."
	}
	return string(body)
}

// HTTPStatus returns the status an error should surface as, defaulting to 500
// for anything outside the taxonomy.
func HTTPStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsClientFault reports whether the failure lies in the caller's data rather
// than in an upstream or in this service.
func IsClientFault(err error) bool {
	status := HTTPStatus(err)
	return status >= 400 && status < 500
}
