// Package config loads the bridge configuration from the environment once, at
// construction time, into an immutable value that is passed to every component.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret holds a credential. It never renders its value in logs or fmt output.
type Secret string

func (s Secret) String() string { return "[REDACTED]" }

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// Reveal returns the raw credential for use in an outbound header.
func (s Secret) Reveal() string { return string(s) }

// Correlation match modes.
const (
	MatchContains = "contains"
	MatchExact    = "exact"
)

type NotionConfig struct {
	Token      Secret
	BaseURL    string
	APIVersion string
	DatabaseID string
	Timeout    time.Duration
}

type ZapSignConfig struct {
	Token                 Secret
	BaseURL               string
	Timeout               time.Duration
	Lang                  string
	DocumentNameTemplate  string
	SendAutomaticEmail    bool
	SendAutomaticWhatsApp bool
}

type PDFConfig struct {
	Timeout          time.Duration
	MaxBytes         int64
	StrictValidation bool
	UserAgent        string
}

type WebhookConfig struct {
	Secret       Secret
	SecretHeader string
}

type GCPConfig struct {
	ProjectID         string
	HandoffCollection string
	ArchiveBucket     string
}

// Config is the full bridge configuration.
type Config struct {
	Notion            NotionConfig
	ZapSign           ZapSignConfig
	PDF               PDFConfig
	Webhook           WebhookConfig
	GCP               GCPConfig
	Mapping           FieldMapping
	CorrelationMatch  string
	DeferStatusUpdate bool
	Debug             bool
	LogLevel          string
	Port              string
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Load reads and validates the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Notion: NotionConfig{
			Token:      Secret(GetEnv("NOTION_TOKEN", "")),
			BaseURL:    strings.TrimRight(GetEnv("NOTION_BASE_URL", "https://api.notion.com/v1"), "/"),
			APIVersion: GetEnv("NOTION_API_VERSION", "2022-06-28"),
			DatabaseID: GetEnv("NOTION_DATABASE_ID", ""),
		},
		ZapSign: ZapSignConfig{
			Token:                Secret(GetEnv("ZAPSIGN_TOKEN", "")),
			BaseURL:              strings.TrimRight(GetEnv("ZAPSIGN_BASE_URL", "https://api.zapsign.com.br/api/v1"), "/"),
			Lang:                 GetEnv("ZAPSIGN_LANG", "pt-br"),
			DocumentNameTemplate: GetEnv("DOCUMENT_NAME_TEMPLATE", "Contrato {client_name}"),
		},
		PDF: PDFConfig{
			UserAgent: GetEnv("PDF_USER_AGENT", "signingbridge/1.0"),
		},
		Webhook: WebhookConfig{
			Secret:       Secret(GetEnv("WEBHOOK_SECRET", "")),
			SecretHeader: GetEnv("WEBHOOK_SECRET_HEADER", "X-Webhook-Secret"),
		},
		GCP: GCPConfig{
			ProjectID:         GetEnv("PROJECT_ID", ""),
			HandoffCollection: GetEnv("HANDOFF_COLLECTION", ""),
			ArchiveBucket:     GetEnv("ARCHIVE_BUCKET", ""),
		},
		CorrelationMatch: strings.ToLower(GetEnv("CORRELATION_MATCH", MatchContains)),
		LogLevel:         strings.ToLower(GetEnv("LOG_LEVEL", "info")),
		Port:             GetEnv("PORT", "8080"),
	}

	var err error
	if cfg.Notion.Timeout, err = seconds("NOTION_TIMEOUT_SECONDS", 10); err != nil {
		return Config{}, err
	}
	httpTimeout, err := seconds("HTTP_TIMEOUT_SECONDS", 30)
	if err != nil {
		return Config{}, err
	}
	cfg.ZapSign.Timeout = httpTimeout
	cfg.PDF.Timeout = httpTimeout

	if cfg.PDF.MaxBytes, err = int64Env("PDF_MAX_BYTES", 20<<20); err != nil {
		return Config{}, err
	}
	if cfg.PDF.StrictValidation, err = boolEnv("PDF_STRICT_VALIDATION", false); err != nil {
		return Config{}, err
	}
	if cfg.ZapSign.SendAutomaticEmail, err = boolEnv("ZAPSIGN_SEND_EMAIL", true); err != nil {
		return Config{}, err
	}
	if cfg.ZapSign.SendAutomaticWhatsApp, err = boolEnv("ZAPSIGN_SEND_WHATSAPP", true); err != nil {
		return Config{}, err
	}
	if cfg.DeferStatusUpdate, err = boolEnv("DEFER_STATUS_UPDATE", false); err != nil {
		return Config{}, err
	}
	if cfg.Debug, err = boolEnv("DEBUG", false); err != nil {
		return Config{}, err
	}

	cfg.Mapping = DefaultFieldMapping()
	if path := GetEnv("FIELD_MAPPING_FILE", ""); path != "" {
		if cfg.Mapping, err = LoadFieldMapping(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required settings and enumerations.
func (c Config) Validate() error {
	if c.Notion.Token == "" {
		return fmt.Errorf("NOTION_TOKEN environment variable must be set")
	}
	if c.Notion.DatabaseID == "" {
		return fmt.Errorf("NOTION_DATABASE_ID environment variable must be set")
	}
	if c.ZapSign.Token == "" {
		return fmt.Errorf("ZAPSIGN_TOKEN environment variable must be set")
	}
	if c.CorrelationMatch != MatchContains && c.CorrelationMatch != MatchExact {
		return fmt.Errorf("CORRELATION_MATCH must be %q or %q, got %q", MatchContains, MatchExact, c.CorrelationMatch)
	}
	if c.PDF.MaxBytes <= 0 {
		return fmt.Errorf("PDF_MAX_BYTES must be positive")
	}
	if c.GCP.HandoffCollection != "" && c.GCP.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID must be set when HANDOFF_COLLECTION is set")
	}
	return c.Mapping.Validate()
}

// LogConfig logs the effective configuration with credentials redacted.
func LogConfig(logger *slog.Logger, c Config) {
	logger.Info("Bridge configuration loaded.",
		"notionBaseUrl", c.Notion.BaseURL,
		"notionApiVersion", c.Notion.APIVersion,
		"notionDatabaseId", c.Notion.DatabaseID,
		"notionToken", c.Notion.Token,
		"zapsignBaseUrl", c.ZapSign.BaseURL,
		"zapsignToken", c.ZapSign.Token,
		"httpTimeout", c.ZapSign.Timeout.String(),
		"pdfStrictValidation", c.PDF.StrictValidation,
		"correlationMatch", c.CorrelationMatch,
		"deferStatusUpdate", c.DeferStatusUpdate,
		"handoffCollection", c.GCP.HandoffCollection,
		"archiveBucket", c.GCP.ArchiveBucket,
		"debug", c.Debug,
	)
}

func seconds(key string, fallback int) (time.Duration, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return time.Duration(fallback) * time.Second, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive number of seconds", key, raw)
	}
	return time.Duration(n) * time.Second, nil
}

func int64Env(key string, fallback int64) (int64, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b, nil
}
