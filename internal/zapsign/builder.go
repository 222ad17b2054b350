// Package zapsign assembles document-creation requests for the ZapSign API,
// submits them, and parses the completion webhooks it sends back.
package zapsign

import (
	"encoding/base64"
	"strings"

	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/phone"
)

// AuthModeSignOnScreen asks the signer to draw a signature on screen.
const AuthModeSignOnScreen = "assinaturaTela"

// Metadata keys attached to every document so callbacks can be correlated
// without a lookup table.
const (
	MetaRecordID = "record_id"
	MetaEmail    = "email"
)

const defaultNameTemplate = "Contrato {client_name}"

// CreateDocumentRequest is the body of POST /docs/.
type CreateDocumentRequest struct {
	Name       string     `json:"name"`
	Base64PDF  string     `json:"base64_pdf"`
	Lang       string     `json:"lang"`
	ExternalID string     `json:"external_id,omitempty"`
	Signers    []Signer   `json:"signers"`
	Metadata   []Metadata `json:"metadata,omitempty"`
}

// Signer is one signer of a document, in both requests and responses.
type Signer struct {
	Token                 string `json:"token,omitempty"`
	Name                  string `json:"name"`
	Email                 string `json:"email"`
	PhoneCountry          string `json:"phone_country,omitempty"`
	PhoneNumber           string `json:"phone_number,omitempty"`
	AuthMode              string `json:"auth_mode,omitempty"`
	SendAutomaticEmail    bool   `json:"send_automatic_email"`
	SendAutomaticWhatsApp bool   `json:"send_automatic_whatsapp"`
	SignURL               string `json:"sign_url,omitempty"`
}

// Metadata is a key/value pair echoed back in webhooks.
type Metadata struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DocumentInput is the per-request data a document is built from.
type DocumentInput struct {
	RecordID   string
	ClientName string
	Email      string
	Phone      phone.Number
	PDF        []byte
}

// Options are the per-deployment settings of document creation.
type Options struct {
	NameTemplate          string
	Lang                  string
	SendAutomaticEmail    bool
	SendAutomaticWhatsApp bool
}

// OptionsFromConfig reads Options out of the ZapSign configuration.
func OptionsFromConfig(cfg config.ZapSignConfig) Options {
	return Options{
		NameTemplate:          cfg.DocumentNameTemplate,
		Lang:                  cfg.Lang,
		SendAutomaticEmail:    cfg.SendAutomaticEmail,
		SendAutomaticWhatsApp: cfg.SendAutomaticWhatsApp,
	}
}

// NewCreateDocumentRequest assembles the creation request. It performs no I/O.
func NewCreateDocumentRequest(in DocumentInput, opts Options) CreateDocumentRequest {
	lang := opts.Lang
	if lang == "" {
		lang = "pt-br"
	}
	return CreateDocumentRequest{
		Name:       DocumentName(opts.NameTemplate, in.ClientName),
		Base64PDF:  base64.StdEncoding.EncodeToString(in.PDF),
		Lang:       lang,
		ExternalID: in.RecordID,
		Signers: []Signer{{
			Name:                  in.ClientName,
			Email:                 in.Email,
			PhoneCountry:          in.Phone.CountryCode(),
			PhoneNumber:           in.Phone.National(),
			AuthMode:              AuthModeSignOnScreen,
			SendAutomaticEmail:    opts.SendAutomaticEmail,
			SendAutomaticWhatsApp: opts.SendAutomaticWhatsApp,
		}},
		Metadata: []Metadata{
			{Key: MetaRecordID, Value: in.RecordID},
			{Key: MetaEmail, Value: in.Email},
		},
	}
}

// DocumentName renders template with the client name substituted for
// {client_name}.
func DocumentName(template, clientName string) string {
	if template == "" {
		template = defaultNameTemplate
	}
	return strings.ReplaceAll(template, "{client_name}", clientName)
}
