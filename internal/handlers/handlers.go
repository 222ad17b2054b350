// Package handlers exposes the bridge flows over HTTP.
package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/models"
)

// maxRequestBytes bounds inbound request bodies.
const maxRequestBytes = 1 << 20

// CreateProcessor runs the create flow.
type CreateProcessor interface {
	Process(ctx context.Context, raw []byte) (*models.CreateDocumentResponse, error)
	ProcessRecord(ctx context.Context, recordID string) (*models.CreateDocumentResponse, error)
}

// WebhookProcessor runs the completion flow.
type WebhookProcessor interface {
	Process(ctx context.Context, raw []byte) (*models.WebhookResponse, error)
}

// PageReader returns a record exactly as the record store serves it.
type PageReader interface {
	GetPageRaw(ctx context.Context, pageID string) (json.RawMessage, error)
}

// CreateDocument handles POST requests carrying a record payload, or a
// page_id query parameter naming the record to read.
func CreateDocument(p CreateProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, r)
			return
		}
		var (
			res *models.CreateDocumentResponse
			err error
		)
		if pageID := strings.TrimSpace(r.URL.Query().Get("page_id")); pageID != "" {
			res, err = p.ProcessRecord(r.Context(), pageID)
		} else {
			var body []byte
			if body, err = readBody(w, r); err == nil {
				res, err = p.Process(r.Context(), body)
			}
		}
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// SigningWebhook handles completion callbacks. When a secret is configured,
// callbacks must present it in the configured header.
func SigningWebhook(p WebhookProcessor, cfg config.WebhookConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, r)
			return
		}
		if err := checkSecret(r, cfg); err != nil {
			WriteError(w, r, err)
			return
		}
		body, err := readBody(w, r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		res, err := p.Process(r.Context(), body)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// DebugPage returns the raw record for GET /debug/page/{id}, to help discover
// column names.
func DebugPage(pages PageReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.PathValue("id"))
		if id == "" {
			WriteError(w, r, &apperr.MalformedPayloadError{Field: "id", Reason: "page id is required"})
			return
		}
		raw, err := pages.GetPageRaw(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
	}
}

func checkSecret(r *http.Request, cfg config.WebhookConfig) error {
	if cfg.Secret == "" {
		return nil
	}
	header := cfg.SecretHeader
	if header == "" {
		header = "X-Webhook-Secret"
	}
	got := r.Header.Get(header)
	if got == "" {
		return &apperr.UnauthorizedError{Reason: "missing webhook secret"}
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.Secret.Reveal())) != 1 {
		return &apperr.UnauthorizedError{Reason: "webhook secret mismatch"}
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &apperr.MalformedPayloadError{Field: "body", Reason: "request body is too large"}
		}
		return nil, &apperr.MalformedPayloadError{Field: "body", Reason: "could not read request body"}
	}
	return body, nil
}

// WriteError maps err to its status and writes the error body. Failures
// outside the error taxonomy are logged and answered with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	logCtx := slog.With("requestId", RequestID(r.Context()), "status", status)
	if status == http.StatusInternalServerError {
		logCtx.Error("Unhandled error.", "error", err)
		writeJSON(w, status, internalError(r))
		return
	}
	logCtx.Warn("Request failed.", "error", err)
	writeJSON(w, status, errorBody(r, err))
}

func errorBody(r *http.Request, err error) models.ErrorResponse {
	res := models.ErrorResponse{Status: "error", Error: err.Error(), RequestID: RequestID(r.Context())}

	var (
		malformed  *apperr.MalformedPayloadError
		validation *apperr.ValidationError
		fetchErr   *apperr.UpstreamFetchError
		submitErr  *apperr.UpstreamSubmitError
		updateErr  *apperr.UpstreamUpdateError
	)
	switch {
	case errors.As(err, &malformed):
		res.Field = malformed.Field
	case errors.As(err, &validation):
		res.Field = validation.Field
	case errors.As(err, &fetchErr):
		res.UpstreamStatus, res.UpstreamBody = fetchErr.Status, fetchErr.Body
	case errors.As(err, &submitErr):
		res.UpstreamStatus, res.UpstreamBody = submitErr.Status, submitErr.Body
	case errors.As(err, &updateErr):
		res.UpstreamStatus, res.UpstreamBody = updateErr.Status, updateErr.Body
	}
	return res
}

func internalError(r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{Status: "error", Error: "internal server error", RequestID: RequestID(r.Context())}
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{
		Status:    "error",
		Error:     "method not allowed",
		RequestID: RequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}
