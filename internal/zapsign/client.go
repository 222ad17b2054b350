package zapsign

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
	"github.com/Lllllllleong/signingbridge/internal/config"
)

const maxResponseBytes = 1 << 20

// Document is the part of a created document the bridge keeps.
type Document struct {
	Token   string   `json:"token"`
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	Signers []Signer `json:"signers"`
}

// SignURLFor returns the sign URL of the signer with the given email, falling
// back to the first signer.
func (d *Document) SignURLFor(email string) string {
	for _, s := range d.Signers {
		if strings.EqualFold(s.Email, email) && s.SignURL != "" {
			return s.SignURL
		}
	}
	if len(d.Signers) > 0 {
		return d.Signers[0].SignURL
	}
	return ""
}

// Client submits documents to ZapSign.
type Client struct {
	baseURL    string
	token      config.Secret
	httpClient *http.Client
}

// NewClient builds a client. A nil httpClient gets one with the configured
// timeout.
func NewClient(cfg config.ZapSignConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{baseURL: cfg.BaseURL, token: cfg.Token, httpClient: httpClient}
}

// CreateDocument submits req and returns the created document.
func (c *Client) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*Document, error) {
	logCtx := slog.With("recordId", req.ExternalID, "documentName", req.Name)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create document request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/docs/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build create document request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token.Reveal())
	httpReq.Header.Set("Content-Type", "application/json")

	logCtx.Info("Submitting document to signing service.", "pdfBase64Bytes", len(req.Base64PDF))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, submitError(0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, submitError(resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return nil, submitError(resp.StatusCode, body, nil)
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, submitError(resp.StatusCode, body, fmt.Errorf("failed to decode response: %w", err))
	}
	if doc.Token == "" {
		return nil, submitError(resp.StatusCode, body, errors.New("response carries no document token"))
	}
	logCtx.Info("Document created.", "documentToken", doc.Token, "signers", len(doc.Signers))
	return &doc, nil
}

func submitError(status int, body []byte, err error) error {
	return &apperr.UpstreamSubmitError{Upstream: apperr.Upstream{
		Service: "zapsign",
		Step:    "create document",
		Status:  status,
		Body:    apperr.Excerpt(body),
		Err:     err,
	}}
}
