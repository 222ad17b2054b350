package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/signingbridge/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// HandoffJournal records each signing document's progress in a Firestore
// collection, one document per token. Entries are merged so later stages keep
// the fields written by earlier ones.
type HandoffJournal struct {
	client     *firestore.Client
	collection string
}

// NewHandoffJournal returns a journal writing to collection.
func NewHandoffJournal(client *firestore.Client, collection string) *HandoffJournal {
	return &HandoffJournal{client: client, collection: collection}
}

// RecordHandoff merges h into the journal entry for h.DocumentToken.
func (j *HandoffJournal) RecordHandoff(ctx context.Context, h models.Handoff) error {
	if h.DocumentToken == "" {
		return errors.New("handoff entry needs a document token")
	}
	logCtx := slog.With("documentToken", h.DocumentToken, "stage", h.Stage)

	docRef := j.client.Collection(j.collection).Doc(h.DocumentToken)
	if _, err := docRef.Set(ctx, HandoffFields(h), firestore.MergeAll); err != nil {
		logCtx.Error("Failed to write handoff journal entry.", "error", err)
		return fmt.Errorf("failed to write handoff %s: %w", h.DocumentToken, err)
	}
	logCtx.Debug("Handoff journal entry written.")
	return nil
}

// HandoffFields returns the non-empty fields of h keyed by their Firestore
// names. The creation stage also stamps createdAt.
func HandoffFields(h models.Handoff) map[string]interface{} {
	fields := map[string]interface{}{
		"documentToken": h.DocumentToken,
		"updatedAt":     firestore.ServerTimestamp,
	}
	set := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	set("recordId", h.RecordID)
	set("stage", h.Stage)
	set("signUrl", h.SignURL)
	set("archiveUri", h.ArchiveURI)
	set("errorDetails", h.ErrorDetails)
	if h.Stage == models.StageDocumentCreated {
		fields["createdAt"] = firestore.ServerTimestamp
	}
	return fields
}
