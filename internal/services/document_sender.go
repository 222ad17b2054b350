package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/extract"
	"github.com/Lllllllleong/signingbridge/internal/models"
	"github.com/Lllllllleong/signingbridge/internal/zapsign"
)

// defaultUpdateTimeout bounds a deferred status write-back.
const defaultUpdateTimeout = 10 * time.Second

type DocumentSenderConfig struct {
	Options       zapsign.Options
	UpdateTimeout time.Duration
}

// DocumentSenderFunction runs the create flow: extract the signing request,
// fetch the PDF, create the signing document and record the token.
type DocumentSenderFunction struct {
	deps   *Dependencies
	config DocumentSenderConfig
}

// NewDocumentSender builds the create flow from the environment configuration.
func NewDocumentSender(cfg config.Config, deps *Dependencies) *DocumentSenderFunction {
	f := NewDocumentSenderWithDeps(deps, DocumentSenderConfig{
		Options:       zapsign.OptionsFromConfig(cfg.ZapSign),
		UpdateTimeout: cfg.Notion.Timeout,
	})
	slog.Info("Document sender initialized.", "deferStatusUpdate", cfg.DeferStatusUpdate)
	return f
}

// NewDocumentSenderWithDeps builds the create flow over explicit collaborators.
func NewDocumentSenderWithDeps(deps *Dependencies, cfg DocumentSenderConfig) *DocumentSenderFunction {
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = defaultUpdateTimeout
	}
	return &DocumentSenderFunction{deps: deps, config: cfg}
}

// Process runs the create flow for a raw request body.
func (f *DocumentSenderFunction) Process(ctx context.Context, raw []byte) (*models.CreateDocumentResponse, error) {
	env, err := f.deps.Extractor.Decode(raw)
	if err != nil {
		slog.Warn("Rejected create payload.", "error", err)
		return nil, err
	}
	return f.ProcessEnvelope(ctx, env)
}

// ProcessRecord runs the create flow for a record known only by id.
func (f *DocumentSenderFunction) ProcessRecord(ctx context.Context, recordID string) (*models.CreateDocumentResponse, error) {
	if recordID == "" {
		return nil, &apperr.MalformedPayloadError{Field: "page_id", Reason: "record id is empty"}
	}
	return f.ProcessEnvelope(ctx, extract.Envelope{Kind: extract.KindReference, RecordID: recordID})
}

// ProcessChange runs the create flow for a change event. Only Draft records
// are sent; a record that is already Sent or Signed is skipped and ProcessChange
// returns a nil response with a nil error.
func (f *DocumentSenderFunction) ProcessChange(ctx context.Context, raw []byte) (*models.CreateDocumentResponse, error) {
	env, err := f.deps.Extractor.Decode(raw)
	if err != nil {
		slog.Warn("Rejected change payload.", "error", err)
		return nil, err
	}
	return f.send(ctx, env, true)
}

// ProcessEnvelope runs the create flow for an already classified payload.
func (f *DocumentSenderFunction) ProcessEnvelope(ctx context.Context, env extract.Envelope) (*models.CreateDocumentResponse, error) {
	return f.send(ctx, env, false)
}

func (f *DocumentSenderFunction) send(ctx context.Context, env extract.Envelope, draftOnly bool) (*models.CreateDocumentResponse, error) {
	logCtx := slog.With("recordId", env.RecordID, "envelope", env.Kind.String())
	logCtx.Info("Create request received.")

	if env.Kind == extract.KindReference {
		page, err := f.deps.Records.GetPage(ctx, env.RecordID)
		if err != nil {
			logCtx.Error("Failed to read referenced record.", "error", err)
			return nil, err
		}
		env = extract.PageEnvelope(page)
	}

	req, err := f.deps.Extractor.Extract(env)
	if err != nil {
		logCtx.Warn("Failed to extract signing request.", "error", err)
		return nil, err
	}
	logCtx = slog.With("recordId", req.RecordID)
	if draftOnly && req.CurrentStatus != "" && req.CurrentStatus != models.StatusDraft {
		logCtx.Info("Skipping record that is no longer a draft.", "status", string(req.CurrentStatus))
		return nil, nil
	}
	if !req.CurrentStatus.CanTransition(models.StatusSent) {
		err := &apperr.InvalidTransitionError{From: string(req.CurrentStatus), To: string(models.StatusSent)}
		logCtx.Warn("Refusing to send record.", "error", err)
		return nil, err
	}
	logCtx.Info("Signing request extracted.")

	asset, err := f.deps.PDFs.Fetch(ctx, req.RecordID, req.PDF)
	if err != nil {
		logCtx.Error("Failed to fetch PDF.", "error", err)
		return nil, err
	}
	logCtx.Info("PDF fetched.", "bytes", len(asset.Bytes), "pageCount", asset.PageCount)

	docReq := zapsign.NewCreateDocumentRequest(zapsign.DocumentInput{
		RecordID:   req.RecordID,
		ClientName: req.ClientName,
		Email:      req.Email,
		Phone:      req.Phone,
		PDF:        asset.Bytes,
	}, f.config.Options)
	doc, err := f.deps.Signer.CreateDocument(ctx, docReq)
	if err != nil {
		logCtx.Error("Failed to create signing document.", "error", err)
		return nil, err
	}
	signURL := doc.SignURLFor(req.Email)
	logCtx = logCtx.With("documentToken", doc.Token)
	logCtx.Info("Signing document created.")

	recordHandoff(ctx, logCtx, f.deps.journal(), models.Handoff{
		DocumentToken: doc.Token,
		RecordID:      req.RecordID,
		Stage:         models.StageDocumentCreated,
		SignURL:       signURL,
	})

	// The document exists from here on; a failed write-back is logged and
	// journaled but does not fail the request.
	f.deps.runner().Do(func() {
		f.persistCorrelation(ctx, logCtx, req.RecordID, doc.Token)
	})

	return &models.CreateDocumentResponse{
		Status:     "success",
		DocumentID: doc.Token,
		SignURL:    signURL,
	}, nil
}

func (f *DocumentSenderFunction) persistCorrelation(parent context.Context, logCtx *slog.Logger, recordID, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), f.config.UpdateTimeout)
	defer cancel()

	h := models.Handoff{DocumentToken: token, RecordID: recordID, Stage: models.StageCorrelationPersisted}
	if err := f.deps.Updater.RecordSent(ctx, recordID, token); err != nil {
		logCtx.Error("Correlation not persisted; document must be reconciled by hand.", "error", err)
		h.Stage = models.StageCorrelationFailed
		h.ErrorDetails = fmt.Sprintf("failed to persist correlation: %v", err)
	}
	recordHandoff(ctx, logCtx, f.deps.journal(), h)
}
