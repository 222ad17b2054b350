// Package pdf resolves a record's PDF reference to bytes and checks that the
// bytes are a PDF.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
	"github.com/Lllllllleong/signingbridge/internal/config"
)

// signatureWindow is how far into the body the PDF signature may start.
const signatureWindow = 8

var signature = []byte("%PDF")

// Asset is a fetched PDF. It lives only for the duration of one request.
type Asset struct {
	Bytes     []byte
	SourceURL string
	PageCount int
}

// Refresher re-reads a record's PDF reference when the one at hand has expired.
type Refresher interface {
	RefreshPDF(ctx context.Context, recordID string) (Reference, error)
}

// Retriever downloads and validates PDFs.
type Retriever struct {
	httpClient *http.Client
	config     config.PDFConfig
	refresher  Refresher
	now        func() time.Time
}

// NewRetriever builds a retriever. A nil httpClient gets one with the
// configured timeout; refresher may be nil.
func NewRetriever(cfg config.PDFConfig, httpClient *http.Client, refresher Refresher) *Retriever {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Retriever{
		httpClient: httpClient,
		config:     cfg,
		refresher:  refresher,
		now:        time.Now,
	}
}

// Fetch resolves ref and downloads it.
func (r *Retriever) Fetch(ctx context.Context, recordID string, ref Reference) (*Asset, error) {
	logCtx := slog.With("recordId", recordID)

	if ref.NeedsRefresh(r.now()) {
		if r.refresher == nil {
			return nil, &apperr.UnsupportedAttachmentError{Reason: "hosted file link has expired and cannot be refreshed"}
		}
		logCtx.Info("Hosted file link expired, re-reading record.")
		fresh, err := r.refresher.RefreshPDF(ctx, recordID)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh file reference: %w", err)
		}
		if fresh.NeedsRefresh(r.now()) {
			return nil, &apperr.UnsupportedAttachmentError{Reason: "record store returned an already expired file link"}
		}
		ref = fresh
	}

	fileURL, err := ref.URL()
	if err != nil {
		return nil, err
	}
	return r.Download(ctx, fileURL)
}

// Download fetches url and validates the body as a PDF.
func (r *Retriever) Download(ctx context.Context, fileURL string) (*Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, &apperr.UnsupportedAttachmentError{Reason: fmt.Sprintf("invalid file URL: %v", err)}
	}
	// Signed storage URLs reject requests that carry a foreign Authorization
	// header, so none is sent.
	req.Header.Set("User-Agent", r.config.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &apperr.UpstreamFetchError{Upstream: apperr.Upstream{Service: "pdf", Step: "download", Err: err}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.config.MaxBytes+1))
	if err != nil {
		return nil, &apperr.UpstreamFetchError{Upstream: apperr.Upstream{
			Service: "pdf", Step: "download", Status: resp.StatusCode, Err: err,
		}}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &apperr.UpstreamFetchError{Upstream: apperr.Upstream{
			Service: "pdf", Step: "download", Status: resp.StatusCode, Body: apperr.Excerpt(body),
		}}
	}
	if int64(len(body)) > r.config.MaxBytes {
		return nil, &apperr.InvalidDocumentError{Reason: fmt.Sprintf("document exceeds %d bytes", r.config.MaxBytes)}
	}

	if err := CheckSignature(body); err != nil {
		return nil, err
	}

	asset := &Asset{Bytes: body, SourceURL: fileURL}
	if r.config.StrictValidation {
		pages, err := Validate(body)
		if err != nil {
			return nil, err
		}
		asset.PageCount = pages
	}
	return asset, nil
}

// CheckSignature verifies that body is non-empty and carries the PDF magic
// bytes within its first few bytes.
func CheckSignature(body []byte) error {
	if len(body) == 0 {
		return &apperr.InvalidDocumentError{Reason: "document is empty"}
	}
	head := body
	if len(head) > signatureWindow {
		head = head[:signatureWindow]
	}
	if !bytes.Contains(head, signature) {
		return &apperr.InvalidDocumentError{Reason: "document does not start with a PDF signature"}
	}
	return nil
}

// Validate parses body with pdfcpu in relaxed mode and returns its page count.
func Validate(body []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.Validate(bytes.NewReader(body), conf); err != nil {
		return 0, &apperr.InvalidDocumentError{Reason: fmt.Sprintf("document failed PDF validation: %v", err)}
	}
	pages, err := api.PageCount(bytes.NewReader(body), conf)
	if err != nil {
		return 0, &apperr.InvalidDocumentError{Reason: fmt.Sprintf("failed to count pages: %v", err)}
	}
	if pages == 0 {
		return 0, &apperr.InvalidDocumentError{Reason: "document has no pages"}
	}
	return pages, nil
}
