// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"

	"github.com/pdiddy/medref/pkg/types"
)

// tavilyAPIBase is the Tavily search endpoint. Declared as a var so tests
// can substitute an httptest server.
var tavilyAPIBase = "https://api.tavily.com/search"

const tavilyQuerySuffix = " medical guidelines evidence-based"

// TavilyProvider runs advanced-depth keyword search with a synthesized
// answer.
type TavilyProvider struct {
	endpoint
	APIKey  string
	Domains []string
}

// NewTavily returns a Tavily provider from cfg.
func NewTavily(cfg types.SearchConfig) *TavilyProvider {
	return &TavilyProvider{endpoint: newEndpoint(cfg), APIKey: cfg.TavilyAPIKey, Domains: cfg.MedicalDomains}
}

// Name returns the provider identifier.
func (p *TavilyProvider) Name() types.ProviderName { return types.ProviderTavily }

// Ready reports whether an API key is configured.
func (p *TavilyProvider) Ready() bool { return p.APIKey != "" }

// Search sends one POST /search.
func (p *TavilyProvider) Search(ctx context.Context, query string, maxResults int, opts Options) (types.NormalizedResult, error) {
	if p.APIKey == "" {
		return types.NormalizedResult{}, configError(p.Name(), "TAVILY_API_KEY not configured")
	}

	req := tavilyRequest{
		Query:          query + tavilyQuerySuffix,
		SearchDepth:    "advanced",
		IncludeDomains: domainsFor(opts, p.Domains),
		MaxResults:     maxResults,
		IncludeAnswer:  true,
	}
	body, err := p.postJSON(ctx, p.Name(), tavilyAPIBase, p.APIKey, req)
	if err != nil {
		return types.NormalizedResult{}, err
	}
	content, citations := normalizeTavily(body)
	return newResult(p.Name(), query, content, citations), nil
}

type tavilyRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	MaxResults     int      `json:"max_results"`
	IncludeAnswer  bool     `json:"include_answer"`
}
