package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// An existing object is not a failure.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName string, content []byte, contentType string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "object", objectName)
			return nil
		}
		slog.Error("Failed to copy content to GCS object.", "object", objectName, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "object", objectName)
			return nil
		}
		slog.Error("Failed to close GCS writer.", "object", objectName, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// SignedArchive keeps a copy of every signed document in a bucket.
type SignedArchive struct {
	bucket     *storage.BucketHandle
	bucketName string
}

// NewSignedArchive returns an archive writing to bucketName.
func NewSignedArchive(client *storage.Client, bucketName string) *SignedArchive {
	return &SignedArchive{bucket: client.Bucket(bucketName), bucketName: bucketName}
}

// Save stores the signed PDF for token and returns its gs:// URI. Saving the
// same token twice keeps the first copy.
func (a *SignedArchive) Save(ctx context.Context, token string, content []byte) (string, error) {
	if token == "" {
		return "", errors.New("signed archive needs a document token")
	}
	name := SignedObjectName(token)
	if err := SaveToGCSAtomically(ctx, a.bucket, name, content, "application/pdf"); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", a.bucketName, name), nil
}

// SignedObjectName is the object path of a signed document.
func SignedObjectName(token string) string {
	return "signed/" + token + ".pdf"
}
