package pdf

import (
	"time"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
)

// Link is a plain URL to a file hosted outside the record store.
type Link struct {
	URL string
}

// HostedLink is a record-store-hosted upload behind a signed URL that stops
// working at ExpiryTime. A zero ExpiryTime means the expiry is unknown.
type HostedLink struct {
	URL        string
	ExpiryTime time.Time
}

// Reference points at the proposal PDF of a record.
type Reference struct {
	Name     string
	External *Link
	Hosted   *HostedLink
}

// IsZero reports whether the reference carries no link at all.
func (r Reference) IsZero() bool {
	return r.External == nil && r.Hosted == nil
}

// URL resolves the reference to a fetchable URL, trying the external link
// first and the hosted link second.
func (r Reference) URL() (string, error) {
	if r.External != nil && r.External.URL != "" {
		return r.External.URL, nil
	}
	if r.Hosted != nil && r.Hosted.URL != "" {
		return r.Hosted.URL, nil
	}
	return "", &apperr.UnsupportedAttachmentError{Reason: "file reference has neither an external nor a hosted link"}
}

// NeedsRefresh reports whether the hosted link must be re-read from the record
// store before it can be fetched.
func (r Reference) NeedsRefresh(now time.Time) bool {
	if r.External != nil && r.External.URL != "" {
		return false
	}
	if r.Hosted == nil {
		return false
	}
	if r.Hosted.URL == "" {
		return true
	}
	return !r.Hosted.ExpiryTime.IsZero() && !now.Before(r.Hosted.ExpiryTime)
}
