package models

// These structs define the JSON bodies returned by the HTTP functions.

// CreateDocumentResponse is the output of the create-document function.
type CreateDocumentResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
	SignURL    string `json:"sign_url"`
}

// WebhookResponse is the output of the signing-webhook function.
type WebhookResponse struct {
	Status   string `json:"status,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	Ignored  bool   `json:"ignored,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status         string `json:"status"`
	Error          string `json:"error"`
	Field          string `json:"field,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamBody   string `json:"upstream_body,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}
