// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for medref: the normalized
// citation model every provider reduces to, and the aggregate response
// handed to lecture generation.
package types

// ProviderName identifies one external search source.
type ProviderName string

const (
	ProviderPubMed     ProviderName = "pubmed"
	ProviderPerplexity ProviderName = "perplexity"
	ProviderExa        ProviderName = "exa"
	ProviderTavily     ProviderName = "tavily"
	ProviderUpToDate   ProviderName = "uptodate"
	ProviderMKSAP      ProviderName = "mksap"
)

// AllProviders lists every provider in aggregation attempt order.
var AllProviders = []ProviderName{
	ProviderPubMed,
	ProviderPerplexity,
	ProviderExa,
	ProviderTavily,
	ProviderUpToDate,
	ProviderMKSAP,
}

var displayNames = map[ProviderName]string{
	ProviderPubMed:     "PubMed",
	ProviderPerplexity: "Perplexity",
	ProviderExa:        "Exa",
	ProviderTavily:     "Tavily",
	ProviderUpToDate:   "UpToDate",
	ProviderMKSAP:      "MKSAP 19",
}

// DisplayName returns the human-readable provider name used in headings
// and as the fallback citation source.
func (p ProviderName) DisplayName() string {
	if n, ok := displayNames[p]; ok {
		return n
	}
	return string(p)
}

// Valid reports whether p names a known provider.
func (p ProviderName) Valid() bool {
	_, ok := displayNames[p]
	return ok
}

// Citation is one referenced work as reported by a provider.
type Citation struct {
	// ID is "<provider-tag>-<ordinal-or-native-id>", unique within a response.
	ID string `json:"id" yaml:"id"`

	Title string `json:"title" yaml:"title"`

	// Authors lists the work's authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Source is the journal, site host, or provider display name.
	Source string `json:"source" yaml:"source"`

	Year *int `json:"year,omitempty" yaml:"year,omitempty"`

	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Identifier is a native database id such as a PubMed PMID.
	Identifier string `json:"identifier,omitempty" yaml:"identifier,omitempty"`

	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// NormalizedResult is the uniform output of one provider call.
type NormalizedResult struct {
	Provider  ProviderName `json:"provider" yaml:"provider"`
	Query     string       `json:"query" yaml:"query"`
	Content   string       `json:"content" yaml:"content"`
	Citations []Citation   `json:"citations" yaml:"citations"`

	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp" yaml:"timestamp"`
}

// AggregateResponse merges the outcomes of one fan-out. Sources and Errors
// partition Providers: every attempted provider appears in exactly one.
type AggregateResponse struct {
	Query string `json:"query" yaml:"query"`

	// Providers lists the attempted providers in attempt order.
	Providers []ProviderName `json:"providers" yaml:"providers"`

	Sources         map[ProviderName]NormalizedResult `json:"sources" yaml:"sources"`
	Errors          map[ProviderName]string           `json:"errors" yaml:"errors"`
	CombinedContent string                            `json:"combined_content" yaml:"combined_content"`
	AllCitations    []Citation                        `json:"all_citations" yaml:"all_citations"`
	Timestamp       int64                             `json:"timestamp" yaml:"timestamp"`
}
