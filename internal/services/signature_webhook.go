package services

import (
	"context"
	"log/slog"

	"github.com/Lllllllleong/signingbridge/internal/models"
	"github.com/Lllllllleong/signingbridge/internal/zapsign"
)

// SignatureWebhookFunction runs the completion flow: resolve the callback
// token to its record and mark the record Signed.
type SignatureWebhookFunction struct {
	deps *Dependencies
}

// NewSignatureWebhook builds the completion flow.
func NewSignatureWebhook(deps *Dependencies) *SignatureWebhookFunction {
	return &SignatureWebhookFunction{deps: deps}
}

// Process handles one callback body. Events other than a completed signature
// are acknowledged without side effects.
func (f *SignatureWebhookFunction) Process(ctx context.Context, raw []byte) (*models.WebhookResponse, error) {
	ev, err := zapsign.ParseWebhook(raw)
	if err != nil {
		slog.Warn("Rejected webhook payload.", "event", ev.Event, "error", err)
		return nil, err
	}
	logCtx := slog.With("event", ev.Event, "documentToken", ev.DocumentToken)
	if !ev.IsSigned() {
		logCtx.Info("Ignoring webhook event.")
		return &models.WebhookResponse{Ignored: true}, nil
	}
	logCtx.Info("Signing callback received.", "recordIdHint", ev.RecordID)

	recordID, err := f.deps.Updater.ResolveAndMarkSigned(ctx, ev.DocumentToken, ev.RecordID)
	if err != nil {
		logCtx.Error("Failed to resolve signing callback.", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("recordId", recordID)

	recordHandoff(ctx, logCtx, f.deps.journal(), models.Handoff{
		DocumentToken: ev.DocumentToken,
		RecordID:      recordID,
		Stage:         models.StageSigned,
		ArchiveURI:    f.archiveSigned(ctx, logCtx, ev),
	})

	return &models.WebhookResponse{Status: "success", RecordID: recordID}, nil
}

// archiveSigned saves the signed copy when an archive is configured and the
// callback links one. Failures are logged only.
func (f *SignatureWebhookFunction) archiveSigned(ctx context.Context, logCtx *slog.Logger, ev zapsign.WebhookEvent) string {
	if f.deps.Archive == nil || ev.SignedFileURL == "" {
		return ""
	}
	asset, err := f.deps.PDFs.Download(ctx, ev.SignedFileURL)
	if err != nil {
		logCtx.Warn("Failed to download signed copy.", "error", err)
		return ""
	}
	uri, err := f.deps.Archive.Save(ctx, ev.DocumentToken, asset.Bytes)
	if err != nil {
		logCtx.Warn("Failed to archive signed copy.", "error", err)
		return ""
	}
	logCtx.Info("Signed copy archived.", "archiveUri", uri)
	return uri
}
