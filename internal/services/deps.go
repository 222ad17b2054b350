package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/signingbridge/internal/bg"
	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/correlation"
	"github.com/Lllllllleong/signingbridge/internal/extract"
	"github.com/Lllllllleong/signingbridge/internal/gcp"
	"github.com/Lllllllleong/signingbridge/internal/models"
	"github.com/Lllllllleong/signingbridge/internal/notion"
	"github.com/Lllllllleong/signingbridge/internal/pdf"
	"github.com/Lllllllleong/signingbridge/internal/zapsign"
)

// RecordStore is the record-store client used by the flows.
type RecordStore interface {
	GetPage(ctx context.Context, pageID string) (*notion.Page, error)
	GetPageRaw(ctx context.Context, pageID string) (json.RawMessage, error)
	correlation.Store
}

// PDFSource fetches documents, either from a record's file reference or from
// a plain URL.
type PDFSource interface {
	Fetch(ctx context.Context, recordID string, ref pdf.Reference) (*pdf.Asset, error)
	Download(ctx context.Context, fileURL string) (*pdf.Asset, error)
}

// SigningService creates signing documents.
type SigningService interface {
	CreateDocument(ctx context.Context, req zapsign.CreateDocumentRequest) (*zapsign.Document, error)
}

// Journal records handoff progress for out-of-band reconciliation.
type Journal interface {
	RecordHandoff(ctx context.Context, h models.Handoff) error
}

// Archive keeps signed copies of completed documents.
type Archive interface {
	Save(ctx context.Context, token string, content []byte) (string, error)
}

type noopJournal struct{}

func (noopJournal) RecordHandoff(context.Context, models.Handoff) error { return nil }

// Dependencies are the collaborators shared by every flow. Journal and Archive
// are optional.
type Dependencies struct {
	Records   RecordStore
	PDFs      PDFSource
	Signer    SigningService
	Extractor *extract.Extractor
	Updater   *correlation.Updater
	Journal   Journal
	Archive   Archive
	Runner    bg.Runner

	closers []func() error
}

// Close releases the GCP clients opened by NewDependencies.
func (d *Dependencies) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewDependencies builds the production collaborators from cfg. The GCP
// clients are only created when their collection or bucket is configured.
func NewDependencies(ctx context.Context, cfg config.Config, runner bg.Runner) (*Dependencies, error) {
	records := notion.NewClient(cfg.Notion, nil)
	extractor := extract.NewExtractor(cfg.Mapping, cfg.Debug)
	refresher := &pageRefresher{records: records, extractor: extractor}

	deps := &Dependencies{
		Records:   records,
		PDFs:      pdf.NewRetriever(cfg.PDF, nil, refresher),
		Signer:    zapsign.NewClient(cfg.ZapSign, nil),
		Extractor: extractor,
		Updater:   correlation.NewUpdater(records, cfg.Notion.DatabaseID, cfg.Mapping, cfg.CorrelationMatch),
		Journal:   noopJournal{},
		Runner:    runner,
	}

	if cfg.GCP.HandoffCollection != "" {
		firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.GCP.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		deps.closers = append(deps.closers, firestoreClient.Close)
		deps.Journal = gcp.NewHandoffJournal(firestoreClient, cfg.GCP.HandoffCollection)
	}
	if cfg.GCP.ArchiveBucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
		deps.closers = append(deps.closers, storageClient.Close)
		deps.Archive = gcp.NewSignedArchive(storageClient, cfg.GCP.ArchiveBucket)
	}

	slog.Info("Bridge dependencies initialized.",
		"handoffJournal", cfg.GCP.HandoffCollection != "",
		"signedArchive", cfg.GCP.ArchiveBucket != "",
	)
	return deps, nil
}

func (d *Dependencies) journal() Journal {
	if d.Journal == nil {
		return noopJournal{}
	}
	return d.Journal
}

func (d *Dependencies) runner() bg.Runner {
	if d.Runner == nil {
		return bg.Sync{}
	}
	return d.Runner
}

// recordHandoff writes a journal entry. Journal failures never fail a flow.
func recordHandoff(ctx context.Context, logCtx *slog.Logger, j Journal, h models.Handoff) {
	if err := j.RecordHandoff(ctx, h); err != nil {
		logCtx.Warn("Failed to record handoff.", "stage", h.Stage, "error", err)
	}
}

// pageRefresher re-reads a record to obtain a fresh hosted file link.
type pageRefresher struct {
	records   RecordStore
	extractor *extract.Extractor
}

func (r *pageRefresher) RefreshPDF(ctx context.Context, recordID string) (pdf.Reference, error) {
	page, err := r.records.GetPage(ctx, recordID)
	if err != nil {
		return pdf.Reference{}, err
	}
	return r.extractor.PDFReference(page)
}

// Compile-time checks.
var (
	_ RecordStore    = (*notion.Client)(nil)
	_ PDFSource      = (*pdf.Retriever)(nil)
	_ SigningService = (*zapsign.Client)(nil)
	_ Journal        = (*gcp.HandoffJournal)(nil)
	_ Archive        = (*gcp.SignedArchive)(nil)
	_ pdf.Refresher  = (*pageRefresher)(nil)
)

// NewRunner picks how the post-submit status write-back runs.
func NewRunner(cfg config.Config) bg.Runner {
	if cfg.DeferStatusUpdate {
		return &bg.Async{}
	}
	return bg.Sync{}
}
