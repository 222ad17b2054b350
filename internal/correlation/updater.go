// Package correlation persists the signing-document token on the source record
// and resolves completion callbacks back to that record.
package correlation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
	"github.com/Lllllllleong/signingbridge/internal/config"
	"github.com/Lllllllleong/signingbridge/internal/models"
	"github.com/Lllllllleong/signingbridge/internal/notion"
)

// Store is the subset of the record-store client the updater needs.
type Store interface {
	UpdatePage(ctx context.Context, pageID string, properties map[string]any) error
	QueryDatabase(ctx context.Context, databaseID string, q notion.Query) ([]notion.Page, error)
}

// Updater writes status changes to the record store.
type Updater struct {
	store      Store
	databaseID string
	mapping    config.FieldMapping
	match      string
}

// NewUpdater builds an updater over the given database. match is one of
// config.MatchContains or config.MatchExact.
func NewUpdater(store Store, databaseID string, mapping config.FieldMapping, match string) *Updater {
	if match == "" {
		match = config.MatchContains
	}
	return &Updater{store: store, databaseID: databaseID, mapping: mapping, match: match}
}

// RecordSent marks the record Sent and stores token in the token column,
// replacing any previous token.
func (u *Updater) RecordSent(ctx context.Context, recordID, token string) error {
	logCtx := slog.With("recordId", recordID, "documentToken", token)

	props := map[string]any{
		u.mapping.Status.Name: u.statusValue(u.mapping.Labels.Sent),
		u.mapping.Token.Name:  notion.RichTextValue(token),
	}
	if err := u.store.UpdatePage(ctx, recordID, props); err != nil {
		logCtx.Error("Failed to persist document token.", "error", err)
		return err
	}
	logCtx.Info("Record marked as sent.")
	return nil
}

// ResolveAndMarkSigned finds the record holding token and marks it Signed.
// hint, when non-empty, is the record id the callback claims and wins over
// other matches. A record that is already Signed is left untouched.
func (u *Updater) ResolveAndMarkSigned(ctx context.Context, token, hint string) (string, error) {
	logCtx := slog.With("documentToken", token)

	page, err := u.Resolve(ctx, token, hint)
	if err != nil {
		return "", err
	}
	logCtx = logCtx.With("recordId", page.ID)

	current := u.currentStatus(page)
	if current == models.StatusSigned {
		logCtx.Info("Record already signed, skipping update.")
		return page.ID, nil
	}
	if current != models.StatusSent {
		logCtx.Warn("Marking record signed from a status other than sent.", "status", string(current))
	}

	props := map[string]any{u.mapping.Status.Name: u.statusValue(u.mapping.Labels.Signed)}
	if err := u.store.UpdatePage(ctx, page.ID, props); err != nil {
		logCtx.Error("Failed to mark record as signed.", "error", err)
		return "", err
	}
	logCtx.Info("Record marked as signed.")
	return page.ID, nil
}

// Resolve looks up the record whose token column holds token.
func (u *Updater) Resolve(ctx context.Context, token, hint string) (*notion.Page, error) {
	q := notion.Query{Filter: &notion.Filter{
		Property: u.mapping.Token.Name,
		RichText: &notion.TextCondition{Contains: token},
	}}
	pages, err := u.store.QueryDatabase(ctx, u.databaseID, q)
	if err != nil {
		return nil, err
	}

	if u.match == config.MatchExact {
		pages = u.exactMatches(pages, token)
	}
	if len(pages) == 0 {
		return nil, &apperr.CorrelationNotFoundError{Token: token}
	}
	if len(pages) > 1 {
		slog.Warn("Document token matches more than one record.", "documentToken", token, "matches", len(pages), "recordIdHint", hint)
	}
	if hint != "" {
		for i := range pages {
			if sameID(pages[i].ID, hint) {
				return &pages[i], nil
			}
		}
	}
	return &pages[0], nil
}

func (u *Updater) exactMatches(pages []notion.Page, token string) []notion.Page {
	var out []notion.Page
	for _, p := range pages {
		value, err := p.Properties[u.mapping.Token.Name].Text(u.mapping.Token.Kind)
		if err != nil {
			continue
		}
		if HasToken(value, token) {
			out = append(out, p)
		}
	}
	return out
}

// HasToken reports whether value holds token as a whole word, with words
// separated by whitespace or commas.
func HasToken(value, token string) bool {
	words := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	for _, w := range words {
		if w == token {
			return true
		}
	}
	return false
}

func (u *Updater) statusValue(label string) map[string]any {
	if u.mapping.Status.Kind == config.KindStatus {
		return notion.StatusValue(label)
	}
	return notion.SelectValue(label)
}

func (u *Updater) currentStatus(page *notion.Page) models.Status {
	pv, ok := page.Properties[u.mapping.Status.Name]
	if !ok {
		return ""
	}
	label, err := pv.Text(u.mapping.Status.Kind)
	if err != nil {
		return ""
	}
	return u.mapping.Labels.Status(label)
}

// sameID compares record ids ignoring the dashes the record store may or may
// not include.
func sameID(a, b string) bool {
	return strings.EqualFold(strings.ReplaceAll(a, "-", ""), strings.ReplaceAll(b, "-", ""))
}
