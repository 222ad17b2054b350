package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/signingbridge/internal/models"
)

// Property kinds understood by the extractor and the status writer. They match
// the "type" tag Notion puts on every property value.
const (
	KindTitle       = "title"
	KindRichText    = "rich_text"
	KindEmail       = "email"
	KindPhoneNumber = "phone_number"
	KindFormula     = "formula"
	KindURL         = "url"
	KindSelect      = "select"
	KindStatus      = "status"
	KindFiles       = "files"
)

// Property names one column of the source database and the wrapper shape its
// values come in.
type Property struct {
	Name string `yaml:"property"`
	Kind string `yaml:"kind"`
}

// StatusLabels are the option names written to the status column.
type StatusLabels struct {
	Draft  string `yaml:"draft"`
	Sent   string `yaml:"sent"`
	Signed string `yaml:"signed"`
}

// Status maps a status column label to the lifecycle status. An empty label
// is unknown; any label other than Sent or Signed counts as Draft.
func (l StatusLabels) Status(label string) models.Status {
	switch label {
	case "":
		return ""
	case l.Signed:
		return models.StatusSigned
	case l.Sent:
		return models.StatusSent
	default:
		return models.StatusDraft
	}
}

// FieldMapping binds each logical field to a column of the source database so
// the same code works against differently labeled databases.
type FieldMapping struct {
	RecordID   Property     `yaml:"record_id"`
	ClientName Property     `yaml:"client_name"`
	Email      Property     `yaml:"email"`
	Phone      Property     `yaml:"phone"`
	PDF        Property     `yaml:"pdf"`
	Status     Property     `yaml:"status"`
	Token      Property     `yaml:"token"`
	Labels     StatusLabels `yaml:"status_labels"`
}

// DefaultFieldMapping matches the column names of the production client database.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		RecordID:   Property{Name: "Page ID", Kind: KindRichText},
		ClientName: Property{Name: "Nome do Cliente", Kind: KindTitle},
		Email:      Property{Name: "Email", Kind: KindEmail},
		Phone:      Property{Name: "WhatsApp", Kind: KindPhoneNumber},
		PDF:        Property{Name: "Proposta PDF", Kind: KindFiles},
		Status:     Property{Name: "Status Assinatura", Kind: KindSelect},
		Token:      Property{Name: "Doc Token", Kind: KindRichText},
		Labels: StatusLabels{
			Draft:  "Rascunho",
			Sent:   "Enviado",
			Signed: "Assinado",
		},
	}
}

// LoadFieldMapping reads a YAML mapping file. Keys left out of the file keep
// their defaults.
func LoadFieldMapping(path string) (FieldMapping, error) {
	mapping := DefaultFieldMapping()
	data, err := os.ReadFile(path)
	if err != nil {
		return FieldMapping{}, fmt.Errorf("failed to read field mapping file: %w", err)
	}
	var override FieldMapping
	if err := yaml.Unmarshal(data, &override); err != nil {
		return FieldMapping{}, fmt.Errorf("failed to parse field mapping file %s: %w", path, err)
	}
	mapping.merge(override)
	if err := mapping.Validate(); err != nil {
		return FieldMapping{}, err
	}
	return mapping, nil
}

func (m *FieldMapping) merge(o FieldMapping) {
	mergeProperty(&m.RecordID, o.RecordID)
	mergeProperty(&m.ClientName, o.ClientName)
	mergeProperty(&m.Email, o.Email)
	mergeProperty(&m.Phone, o.Phone)
	mergeProperty(&m.PDF, o.PDF)
	mergeProperty(&m.Status, o.Status)
	mergeProperty(&m.Token, o.Token)
	if o.Labels.Draft != "" {
		m.Labels.Draft = o.Labels.Draft
	}
	if o.Labels.Sent != "" {
		m.Labels.Sent = o.Labels.Sent
	}
	if o.Labels.Signed != "" {
		m.Labels.Signed = o.Labels.Signed
	}
}

func mergeProperty(dst *Property, src Property) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Kind != "" {
		dst.Kind = src.Kind
	}
}

// allowedKinds lists the wrapper shapes each logical field may be read from.
var allowedKinds = map[string][]string{
	"record_id":   {KindRichText, KindTitle, KindFormula, KindURL},
	"client_name": {KindTitle, KindRichText, KindFormula},
	"email":       {KindEmail, KindRichText, KindFormula},
	"phone":       {KindPhoneNumber, KindRichText, KindFormula},
	"pdf":         {KindFiles, KindURL, KindFormula},
	"status":      {KindSelect, KindStatus},
	"token":       {KindRichText},
}

// Validate checks that every column is named and read with a supported kind.
func (m FieldMapping) Validate() error {
	fields := map[string]Property{
		"record_id":   m.RecordID,
		"client_name": m.ClientName,
		"email":       m.Email,
		"phone":       m.Phone,
		"pdf":         m.PDF,
		"status":      m.Status,
		"token":       m.Token,
	}
	for field, prop := range fields {
		if prop.Name == "" {
			return fmt.Errorf("field mapping: %s has no property name", field)
		}
		if !contains(allowedKinds[field], prop.Kind) {
			return fmt.Errorf("field mapping: %s cannot be read from a %q property", field, prop.Kind)
		}
	}
	if m.Labels.Sent == "" || m.Labels.Signed == "" {
		return fmt.Errorf("field mapping: sent and signed status labels must be set")
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
