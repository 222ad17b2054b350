package models

// Status is the signing lifecycle of a source record.
type Status string

const (
	StatusDraft  Status = "Draft"
	StatusSent   Status = "Sent"
	StatusSigned Status = "Signed"
)

// CanTransition reports whether a record in status s may move to next.
// An empty s means the current status is unknown and is treated as Draft.
// Re-sending overwrites the correlation, and re-signing is a no-op; nothing
// ever leaves Signed.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case "", StatusDraft:
		return next == StatusSent
	case StatusSent:
		return next == StatusSent || next == StatusSigned
	case StatusSigned:
		return next == StatusSigned
	default:
		return false
	}
}

// Handoff stages recorded in the journal.
const (
	StageDocumentCreated      = "DOCUMENT_CREATED"
	StageCorrelationPersisted = "CORRELATION_PERSISTED"
	StageCorrelationFailed    = "CORRELATION_FAILED"
	StageSigned               = "SIGNED"
)

// Handoff is the journal entry for one signing document, keyed by its token.
// It exists so that documents whose correlation could not be persisted can be
// reconciled by hand; nothing reads it back automatically. Timestamps are
// assigned by the journal store on write.
type Handoff struct {
	DocumentToken string
	RecordID      string
	Stage         string
	SignURL       string
	ArchiveURI    string
	ErrorDetails  string
}
