// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"

	"github.com/pdiddy/medref/pkg/types"
)

// exaAPIBase is the Exa search endpoint. Declared as a var so tests can
// substitute an httptest server.
var exaAPIBase = "https://api.exa.ai/search"

const (
	exaQueryPrefix   = "medical education "
	exaMaxCharacters = 2000
	exaHighlights    = 3
)

// ExaProvider runs neural (semantic) search restricted to the medical
// allowlist.
type ExaProvider struct {
	endpoint
	APIKey  string
	Domains []string
}

// NewExa returns an Exa provider from cfg.
func NewExa(cfg types.SearchConfig) *ExaProvider {
	return &ExaProvider{endpoint: newEndpoint(cfg), APIKey: cfg.ExaAPIKey, Domains: cfg.MedicalDomains}
}

// Name returns the provider identifier.
func (p *ExaProvider) Name() types.ProviderName { return types.ProviderExa }

// Ready reports whether an API key is configured.
func (p *ExaProvider) Ready() bool { return p.APIKey != "" }

// Search sends one POST /search.
func (p *ExaProvider) Search(ctx context.Context, query string, maxResults int, opts Options) (types.NormalizedResult, error) {
	if p.APIKey == "" {
		return types.NormalizedResult{}, configError(p.Name(), "EXA_API_KEY not configured")
	}

	req := exaRequest{
		Query:          exaQueryPrefix + query,
		NumResults:     maxResults,
		UseAutoprompt:  true,
		Type:           "neural",
		IncludeDomains: domainsFor(opts, p.Domains),
	}
	req.Contents.Text.MaxCharacters = exaMaxCharacters
	req.Contents.Highlights.NumSentences = exaHighlights

	body, err := p.postJSON(ctx, p.Name(), exaAPIBase, p.APIKey, req)
	if err != nil {
		return types.NormalizedResult{}, err
	}
	content, citations := normalizeExa(body)
	return newResult(p.Name(), query, content, citations), nil
}

type exaRequest struct {
	Query          string   `json:"query"`
	NumResults     int      `json:"numResults"`
	UseAutoprompt  bool     `json:"useAutoprompt"`
	Type           string   `json:"type"`
	IncludeDomains []string `json:"includeDomains,omitempty"`
	Contents       struct {
		Text struct {
			MaxCharacters int `json:"maxCharacters"`
		} `json:"text"`
		Highlights struct {
			NumSentences int `json:"numSentences"`
		} `json:"highlights"`
	} `json:"contents"`
}

// domainsFor returns the request allowlist: the per-call override when
// set, otherwise the provider's configured list.
func domainsFor(opts Options, configured []string) []string {
	if opts.Domains != nil {
		return opts.Domains
	}
	return configured
}
