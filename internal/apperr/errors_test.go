package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"malformed", &MalformedPayloadError{Field: "email", Reason: "missing"}, http.StatusUnprocessableEntity},
		{"validation", &ValidationError{Field: "phone", Reason: "too short"}, http.StatusUnprocessableEntity},
		{"attachment", &UnsupportedAttachmentError{Reason: "no link"}, http.StatusUnprocessableEntity},
		{"document", &InvalidDocumentError{Reason: "empty"}, http.StatusUnprocessableEntity},
		{"fetch", &UpstreamFetchError{Upstream{Service: "notion", Step: "get page", Status: 500}}, http.StatusBadGateway},
		{"submit", &UpstreamSubmitError{Upstream{Service: "zapsign", Step: "create document", Status: 400}}, http.StatusBadGateway},
		{"not found", &CorrelationNotFoundError{Token: "tok"}, http.StatusNotFound},
		{"transition", &InvalidTransitionError{From: "Signed", To: "Sent"}, http.StatusConflict},
		{"unauthorized", &UnauthorizedError{Reason: "bad secret"}, http.StatusUnauthorized},
		{"wrapped", fmt.Errorf("step: %w", &CorrelationNotFoundError{Token: "tok"}), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestIsClientFault(t *testing.T) {
	assert.True(t, IsClientFault(&MalformedPayloadError{Field: "name"}))
	assert.False(t, IsClientFault(&UpstreamSubmitError{Upstream{Service: "zapsign"}}))
	assert.False(t, IsClientFault(errors.New("boom")))
}

func TestUpstreamErrorMessage(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := &UpstreamFetchError{Upstream{Service: "pdf", Step: "download", Err: cause}}

	assert.Equal(t, "upstream fetch failed: pdf download: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, cause)

	withStatus := &UpstreamUpdateError{Upstream{Service: "notion", Step: "update page", Status: 409}}
	assert.Contains(t, withStatus.Error(), "returned status 409")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt([]byte("short")))

	long := Excerpt([]byte(strings.Repeat("x", 2000)))
	assert.Len(t, long, maxBodyExcerpt+3)
	assert.True(t, strings.HasSuffix(long, "..."))
}
