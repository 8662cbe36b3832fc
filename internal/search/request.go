// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/pdiddy/medref/internal/httputil"
	"github.com/pdiddy/medref/pkg/types"
)

// maxResponseBytes caps how much of an API response is read.
const maxResponseBytes = 16 << 20

// endpoint holds what every HTTP provider needs to send a request.
type endpoint struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	throttle   *httputil.Throttle
}

func newEndpoint(cfg types.SearchConfig) endpoint {
	return endpoint{
		client:     &http.Client{Timeout: cfg.Timeout},
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
	}
}

// postJSON sends payload as a bearer-authenticated JSON POST and returns
// the validated response body.
func (e endpoint) postJSON(ctx context.Context, p types.ProviderName, rawURL, apiKey string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Provider: p, Kind: KindConfig, Message: "encoding request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Provider: p, Kind: KindConfig, Message: "creating request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return e.do(ctx, p, req)
}

// getJSON sends a GET with params and returns the validated response body.
func (e endpoint) getJSON(ctx context.Context, p types.ProviderName, rawURL string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Provider: p, Kind: KindConfig, Message: "creating request", Err: err}
	}
	return e.do(ctx, p, req)
}

func (e endpoint) do(ctx context.Context, p types.ProviderName, req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	client := e.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, e.maxRetries, e.throttle)
	if err != nil {
		return nil, transportError(p, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(p, "reading response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(p, resp.StatusCode, p.DisplayName()+" API error")
	}
	if !gjson.ValidBytes(body) {
		return nil, upstreamError(p, 0, "malformed JSON response")
	}
	return body, nil
}
