// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/medref/pkg/types"
)

// ResponseFile is the on-disk representation of a search request and its
// response. A saved response can be reloaded, exported or filed into the
// library without re-querying the providers.
type ResponseFile struct {
	Request  RequestParams           `yaml:"request"`
	Response types.AggregateResponse `yaml:"response"`
	Summary  ResponseSummary         `yaml:"summary"`
}

// RequestParams stores the request that produced the response.
type RequestParams struct {
	Query string `yaml:"query"`

	// Provider is set for single-provider searches.
	Provider   types.ProviderName `yaml:"provider,omitempty"`
	MaxResults int                `yaml:"max_results"`
	Model      PerplexityModel    `yaml:"perplexity_model,omitempty"`
	General    bool               `yaml:"general,omitempty"`
}

// ResponseSummary stores result counts and the save time.
type ResponseSummary struct {
	Sources   int       `yaml:"sources"`
	Errors    int       `yaml:"errors"`
	Citations int       `yaml:"citations"`
	Timestamp time.Time `yaml:"timestamp"`
}

// SingleResponse wraps one provider's result as an aggregate response so
// single-provider searches save, export and file the same way.
func SingleResponse(res types.NormalizedResult) types.AggregateResponse {
	resp := types.AggregateResponse{
		Query:        res.Query,
		Providers:    []types.ProviderName{res.Provider},
		Sources:      map[types.ProviderName]types.NormalizedResult{res.Provider: res},
		Errors:       map[types.ProviderName]string{},
		AllCitations: res.Citations,
		Timestamp:    res.Timestamp,
	}
	if res.Content != "" {
		resp.CombinedContent = fmt.Sprintf("## From %s\n\n%s", res.Provider.DisplayName(), res.Content)
	}
	return resp
}

// WriteResponseFile saves a request and its response to a YAML file.
func WriteResponseFile(path string, req RequestParams, resp types.AggregateResponse) error {
	rf := ResponseFile{
		Request:  req,
		Response: resp,
		Summary: ResponseSummary{
			Sources:   len(resp.Sources),
			Errors:    len(resp.Errors),
			Citations: len(resp.AllCitations),
			Timestamp: time.Now(),
		},
	}

	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshaling response file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadResponseFile loads a previously saved response file from disk.
func ReadResponseFile(path string) (*ResponseFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading response file: %w", err)
	}
	var rf ResponseFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing response file: %w", err)
	}
	return &rf, nil
}
