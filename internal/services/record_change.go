package services

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
)

// pubSubPush is the envelope Pub/Sub wraps around a pushed message.
type pubSubPush struct {
	Message *struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

// RecordChangeFunction feeds record-store change events into the create flow.
type RecordChangeFunction struct {
	sender *DocumentSenderFunction
}

// NewRecordChange builds the change-event flow on top of sender.
func NewRecordChange(sender *DocumentSenderFunction) *RecordChangeFunction {
	return &RecordChangeFunction{sender: sender}
}

// Process handles one event. Only Draft records are sent, so the flow's own
// status write-back does not send a record again. Events the create flow
// rejects as bad input are acknowledged so they are not redelivered; upstream
// failures are returned.
func (f *RecordChangeFunction) Process(ctx context.Context, e cloudevents.Event) error {
	logCtx := slog.With("eventId", e.ID(), "eventType", e.Type(), "eventSource", e.Source())
	logCtx.Info("Record change event received.")

	res, err := f.sender.ProcessChange(ctx, EventPayload(e.Data()))
	if err != nil {
		if apperr.IsClientFault(err) {
			logCtx.Warn("Dropping record change event.", "error", err)
			return nil
		}
		logCtx.Error("Failed to process record change event.", "error", err)
		return err
	}
	if res == nil {
		logCtx.Info("Record change event skipped.")
		return nil
	}
	logCtx.Info("Record change event processed.", "documentToken", res.DocumentID)
	return nil
}

// EventPayload unwraps a Pub/Sub push envelope, or returns data unchanged.
func EventPayload(data []byte) []byte {
	var push pubSubPush
	if err := json.Unmarshal(data, &push); err == nil && push.Message != nil && len(bytes.TrimSpace(push.Message.Data)) > 0 {
		return push.Message.Data
	}
	return data
}
