// Package notion is a minimal client for the Notion REST API: the three calls
// the bridge needs to treat a database as a remote property store.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
	"github.com/Lllllllleong/signingbridge/internal/config"
)

const (
	serviceName   = "notion"
	maxBodyBytes  = 4 << 20
	queryPageSize = 100
)

// Client talks to the Notion API with a fixed token and API version.
type Client struct {
	baseURL    string
	apiVersion string
	token      config.Secret
	httpClient *http.Client
}

// NewClient builds a client from cfg. A nil httpClient gets one with the
// configured timeout.
func NewClient(cfg config.NotionConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		token:      cfg.Token,
		httpClient: httpClient,
	}
}

// GetPage fetches a page and its typed property values.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	raw, err := c.GetPageRaw(ctx, pageID)
	if err != nil {
		return nil, err
	}
	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &apperr.UpstreamFetchError{Upstream: apperr.Upstream{
			Service: serviceName, Step: "decode page", Body: apperr.Excerpt(raw), Err: err,
		}}
	}
	return &page, nil
}

// GetPageRaw fetches a page and returns the response body untouched.
func (c *Client) GetPageRaw(ctx context.Context, pageID string) (json.RawMessage, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(pageID), nil)
	if err != nil || status/100 != 2 {
		return nil, &apperr.UpstreamFetchError{Upstream: upstream("get page", status, body, err)}
	}
	return body, nil
}

// UpdatePage patches the named properties of a page. Properties not listed
// are left untouched.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]any) error {
	payload := map[string]any{"properties": properties}
	status, body, err := c.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(pageID), payload)
	if err != nil || status/100 != 2 {
		return &apperr.UpstreamUpdateError{Upstream: upstream("update page", status, body, err)}
	}
	return nil
}

// QueryDatabase returns the first page of rows matching q, in the order
// Notion returns them.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, q Query) ([]Page, error) {
	if q.PageSize == 0 {
		q.PageSize = queryPageSize
	}
	status, body, err := c.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", q)
	if err != nil || status/100 != 2 {
		return nil, &apperr.UpstreamFetchError{Upstream: upstream("query database", status, body, err)}
	}
	var res queryResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &apperr.UpstreamFetchError{Upstream: apperr.Upstream{
			Service: serviceName, Step: "decode query", Status: status, Body: apperr.Excerpt(body), Err: err,
		}}
	}
	return res.Results, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token.Reveal())
	req.Header.Set("Notion-Version", c.apiVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func upstream(step string, status int, body []byte, err error) apperr.Upstream {
	return apperr.Upstream{
		Service: serviceName,
		Step:    step,
		Status:  status,
		Body:    apperr.Excerpt(body),
		Err:     err,
	}
}
