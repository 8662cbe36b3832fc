// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"

	"github.com/pdiddy/medref/pkg/types"
)

// perplexityAPIBase is the chat completions endpoint. Declared as a var so
// tests can substitute an httptest server.
var perplexityAPIBase = "https://api.perplexity.ai/chat/completions"

// PerplexityModel names a grounded-answer tier.
type PerplexityModel string

const (
	// ModelSonarPro is the fast, balanced tier and the fallback.
	ModelSonarPro PerplexityModel = "sonar-pro"
	// ModelSonarReasoningPro walks through the topic step by step.
	ModelSonarReasoningPro PerplexityModel = "sonar-reasoning-pro"
	// ModelSonarDeepResearch runs an exhaustive literature synthesis.
	ModelSonarDeepResearch PerplexityModel = "sonar-deep-research"
)

type modelTier struct {
	medicalPrompt string
	generalPrompt string
	temperature   float64
}

var perplexityTiers = map[PerplexityModel]modelTier{
	ModelSonarPro: {
		medicalPrompt: "You are a medical education researcher. Provide comprehensive, evidence-based information " +
			"with specific citations. Focus on current guidelines, landmark studies, and clinical pearls. " +
			"Always cite sources with author, year, and journal/guideline name.",
		generalPrompt: "You are a helpful research assistant.",
		temperature:   0.2,
	},
	ModelSonarReasoningPro: {
		medicalPrompt: "You are an expert clinical educator. Think through this medical topic step-by-step, " +
			"explaining your clinical reasoning. Consider differential diagnoses, pathophysiology, " +
			"and evidence-based management. Cite guidelines and landmark trials. Show your reasoning process.",
		generalPrompt: "You are an analytical researcher. Think step-by-step and show your reasoning.",
		temperature:   0.1,
	},
	ModelSonarDeepResearch: {
		medicalPrompt: "You are a medical literature researcher conducting an exhaustive review. Synthesize " +
			"information from multiple high-quality sources including guidelines, systematic reviews, " +
			"and landmark trials. Provide a comprehensive analysis with extensive citations.",
		generalPrompt: "Conduct exhaustive research and provide comprehensive synthesis.",
		temperature:   0.2,
	},
}

// Valid reports whether m names a known tier.
func (m PerplexityModel) Valid() bool {
	_, ok := perplexityTiers[m]
	return ok
}

// resolveModel maps m to a known tier. Unknown or empty names fall back to
// sonar-pro for the model, prompt and temperature together.
func resolveModel(m PerplexityModel) (PerplexityModel, modelTier) {
	if tier, ok := perplexityTiers[m]; ok {
		return m, tier
	}
	return ModelSonarPro, perplexityTiers[ModelSonarPro]
}

// PerplexityProvider asks a Sonar model for a cited answer.
type PerplexityProvider struct {
	endpoint
	APIKey       string
	DefaultModel PerplexityModel
	Domains      []string
}

// NewPerplexity returns a Perplexity provider from cfg.
func NewPerplexity(cfg types.SearchConfig) *PerplexityProvider {
	return &PerplexityProvider{
		endpoint:     newEndpoint(cfg),
		APIKey:       cfg.PerplexityAPIKey,
		DefaultModel: PerplexityModel(cfg.PerplexityModel),
		Domains:      cfg.MedicalDomains,
	}
}

// Name returns the provider identifier.
func (p *PerplexityProvider) Name() types.ProviderName { return types.ProviderPerplexity }

// Ready reports whether an API key is configured.
func (p *PerplexityProvider) Ready() bool { return p.APIKey != "" }

// Search sends one chat completion. maxResults does not apply: the model
// decides how many sources to cite.
func (p *PerplexityProvider) Search(ctx context.Context, query string, _ int, opts Options) (types.NormalizedResult, error) {
	if p.APIKey == "" {
		return types.NormalizedResult{}, configError(p.Name(), "PERPLEXITY_API_KEY not configured")
	}

	requested := opts.Model
	if requested == "" {
		requested = p.DefaultModel
	}
	model, tier := resolveModel(requested)

	req := perplexityRequest{
		Model:           string(model),
		Temperature:     tier.temperature,
		ReturnCitations: true,
	}
	prompt := tier.medicalPrompt
	if opts.General {
		prompt = tier.generalPrompt
	} else {
		req.SearchDomainFilter = domainsFor(opts, p.Domains)
	}
	req.Messages = []chatMessage{
		{Role: "system", Content: prompt},
		{Role: "user", Content: query},
	}

	body, err := p.postJSON(ctx, p.Name(), perplexityAPIBase, p.APIKey, req)
	if err != nil {
		return types.NormalizedResult{}, err
	}
	content, citations := normalizePerplexity(body)
	return newResult(p.Name(), query, content, citations), nil
}

type perplexityRequest struct {
	Model              string        `json:"model"`
	Messages           []chatMessage `json:"messages"`
	Temperature        float64       `json:"temperature"`
	ReturnCitations    bool          `json:"return_citations"`
	SearchDomainFilter []string      `json:"search_domain_filter,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
