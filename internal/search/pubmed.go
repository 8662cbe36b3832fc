// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/medref/internal/httputil"
	"github.com/pdiddy/medref/pkg/types"
)

// pubmedAPIBase is the NCBI E-utilities root. Declared as a var so tests
// can substitute an httptest server.
var pubmedAPIBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// NCBI allows 3 requests per second without a key and 10 with one.
const (
	pubmedRate      = 3
	pubmedKeyedRate = 10
	pubmedTool      = "medref"
)

// PubMedProvider searches PubMed through E-utilities: esearch resolves the
// query to PMIDs, then a single esummary call fetches their metadata.
type PubMedProvider struct {
	endpoint
	APIKey string
	Email  string
}

// NewPubMed returns a PubMed provider paced to the NCBI rate limit.
func NewPubMed(cfg types.SearchConfig) *PubMedProvider {
	rps := float64(pubmedRate)
	if cfg.NCBIAPIKey != "" {
		rps = pubmedKeyedRate
	}
	e := newEndpoint(cfg)
	e.throttle = httputil.NewThrottle(rps, 1)
	return &PubMedProvider{endpoint: e, APIKey: cfg.NCBIAPIKey, Email: cfg.NCBIEmail}
}

// Name returns the provider identifier.
func (p *PubMedProvider) Name() types.ProviderName { return types.ProviderPubMed }

// Ready is always true: PubMed needs no credential.
func (p *PubMedProvider) Ready() bool { return true }

// Search runs esearch then esummary. An empty id list is a successful
// result with NoResults content.
func (p *PubMedProvider) Search(ctx context.Context, query string, maxResults int, _ Options) (types.NormalizedResult, error) {
	params := p.params()
	params.Set("term", query)
	params.Set("retmax", strconv.Itoa(maxResults))

	body, err := p.getJSON(ctx, p.Name(), pubmedAPIBase+"/esearch.fcgi", params)
	if err != nil {
		return types.NormalizedResult{}, err
	}
	ids := pubmedIDs(body)
	if len(ids) == 0 {
		return newResult(p.Name(), query, NoResults, nil), nil
	}

	params = p.params()
	params.Set("id", strings.Join(ids, ","))
	summary, err := p.getJSON(ctx, p.Name(), pubmedAPIBase+"/esummary.fcgi", params)
	if err != nil {
		return types.NormalizedResult{}, err
	}

	content, citations := normalizePubMed(ids, summary)
	return newResult(p.Name(), query, content, citations), nil
}

func (p *PubMedProvider) params() url.Values {
	v := url.Values{
		"db":      {"pubmed"},
		"retmode": {"json"},
		"tool":    {pubmedTool},
	}
	if p.APIKey != "" {
		v.Set("api_key", p.APIKey)
	}
	if p.Email != "" {
		v.Set("email", p.Email)
	}
	return v
}
