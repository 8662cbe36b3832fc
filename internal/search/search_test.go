// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/medref/pkg/types"
)

// --- mock provider ---

type mockProvider struct {
	name    types.ProviderName
	ready   bool
	content string
	cits    []types.Citation
	err     error
	delay   time.Duration
	panics  bool

	calls      int32
	gotMax     int
	gotOptions Options
}

func (m *mockProvider) Name() types.ProviderName { return m.name }
func (m *mockProvider) Ready() bool              { return m.ready }

func (m *mockProvider) Search(ctx context.Context, query string, maxResults int, opts Options) (types.NormalizedResult, error) {
	atomic.AddInt32(&m.calls, 1)
	m.gotMax = maxResults
	m.gotOptions = opts
	if m.panics {
		panic("selector table exploded")
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return types.NormalizedResult{}, transportError(m.name, "request failed", ctx.Err())
		}
	}
	if m.err != nil {
		return types.NormalizedResult{}, m.err
	}
	return newResult(m.name, query, m.content, m.cits), nil
}

func okProvider(name types.ProviderName, content string, n int) *mockProvider {
	cits := make([]types.Citation, n)
	for i := range cits {
		cits[i] = types.Citation{ID: fmt.Sprintf("%s-%d", name, i), Title: "t", Source: name.DisplayName()}
	}
	return &mockProvider{name: name, ready: true, content: content, cits: cits}
}

func testAggregator(providers ...Provider) *Aggregator {
	return NewAggregator(testCfg(), nil, providers...)
}

// --- Partition ---

func TestAggregatePartition(t *testing.T) {
	failing := &mockProvider{name: types.ProviderTavily, ready: true, err: upstreamError(types.ProviderTavily, 503, "Tavily API error")}
	agg := testAggregator(
		okProvider(types.ProviderPubMed, "pm", 2),
		okProvider(types.ProviderExa, "exa", 1),
		failing,
	)

	resp := agg.Aggregate(context.Background(), "sepsis", 5, Options{})

	if len(resp.Providers) != 3 {
		t.Fatalf("Providers = %v", resp.Providers)
	}
	for _, p := range resp.Providers {
		_, inSources := resp.Sources[p]
		_, inErrors := resp.Errors[p]
		if inSources == inErrors {
			t.Errorf("%s: in sources = %v, in errors = %v; want exactly one", p, inSources, inErrors)
		}
	}
	if len(resp.Sources)+len(resp.Errors) != len(resp.Providers) {
		t.Errorf("sources %d + errors %d != attempted %d", len(resp.Sources), len(resp.Errors), len(resp.Providers))
	}
	if !strings.Contains(resp.Errors[types.ProviderTavily], "HTTP 503") {
		t.Errorf("error message = %q", resp.Errors[types.ProviderTavily])
	}
	if resp.Query != "sepsis" || resp.Timestamp == 0 {
		t.Errorf("header = %q %d", resp.Query, resp.Timestamp)
	}
}

func TestAggregatePubMedAlwaysAttempted(t *testing.T) {
	pm := &mockProvider{name: types.ProviderPubMed, ready: false, err: transportError(types.ProviderPubMed, "request failed", errors.New("dial tcp: refused"))}
	exa := &mockProvider{name: types.ProviderExa}
	mk := &mockProvider{name: types.ProviderMKSAP}

	resp := testAggregator(pm, exa, mk).Aggregate(context.Background(), "q", 5, Options{})

	if pm.calls != 1 {
		t.Errorf("pubmed calls = %d, want 1", pm.calls)
	}
	if exa.calls != 0 || mk.calls != 0 {
		t.Errorf("unready providers were called: exa %d, mksap %d", exa.calls, mk.calls)
	}
	if len(resp.Sources) != 0 || len(resp.Errors) != 1 {
		t.Errorf("sources %v errors %v, want exactly one pubmed error", resp.Sources, resp.Errors)
	}
	if _, ok := resp.Errors[types.ProviderPubMed]; !ok {
		t.Error("pubmed missing from errors")
	}
}

// --- Citation ids ---

func TestAggregateCitationIDsUnique(t *testing.T) {
	resp := testAggregator(
		okProvider(types.ProviderPubMed, "a", 3),
		okProvider(types.ProviderPerplexity, "b", 3),
		okProvider(types.ProviderExa, "c", 3),
		okProvider(types.ProviderTavily, "d", 3),
	).Aggregate(context.Background(), "q", 3, Options{})

	if len(resp.AllCitations) != 12 {
		t.Fatalf("len(AllCitations) = %d, want 12", len(resp.AllCitations))
	}
	seen := map[string]bool{}
	for _, c := range resp.AllCitations {
		if seen[c.ID] {
			t.Errorf("duplicate citation id %q", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestAggregateNoCrossProviderDedup(t *testing.T) {
	same := types.Citation{Title: "Surviving Sepsis Campaign", URL: "https://x/ssc"}
	a := &mockProvider{name: types.ProviderExa, ready: true, content: "a", cits: []types.Citation{withID(same, "exa-0")}}
	b := &mockProvider{name: types.ProviderTavily, ready: true, content: "b", cits: []types.Citation{withID(same, "tavily-0")}}
	resp := testAggregator(okProvider(types.ProviderPubMed, "", 0), a, b).Aggregate(context.Background(), "q", 5, Options{})
	if len(resp.AllCitations) != 2 {
		t.Errorf("len(AllCitations) = %d, want 2 (one per provider)", len(resp.AllCitations))
	}
}

func withID(c types.Citation, id string) types.Citation {
	c.ID = id
	return c
}

// --- Ordering ---

func TestAggregateOrderIgnoresCompletionTime(t *testing.T) {
	exa := okProvider(types.ProviderExa, "semantic", 1)
	exa.delay = 150 * time.Millisecond
	tavily := okProvider(types.ProviderTavily, "keyword", 1)

	// Registration order is deliberately scrambled.
	resp := testAggregator(tavily, exa, okProvider(types.ProviderPubMed, "literature", 1)).
		Aggregate(context.Background(), "q", 5, Options{})

	want := "## From PubMed\n\nliterature" + Divider +
		"## From Exa\n\nsemantic" + Divider +
		"## From Tavily\n\nkeyword"
	if resp.CombinedContent != want {
		t.Errorf("CombinedContent =\n%q\nwant\n%q", resp.CombinedContent, want)
	}

	var order []string
	for _, c := range resp.AllCitations {
		order = append(order, c.ID)
	}
	if strings.Join(order, ",") != "pubmed-0,exa-0,tavily-0" {
		t.Errorf("citation order = %v", order)
	}
	if fmt.Sprint(resp.Providers) != "[pubmed exa tavily]" {
		t.Errorf("Providers = %v", resp.Providers)
	}
}

func TestAggregateRunsConcurrently(t *testing.T) {
	var ps []Provider
	for _, name := range types.AllProviders {
		p := okProvider(name, string(name), 1)
		p.delay = 100 * time.Millisecond
		ps = append(ps, p)
	}
	start := time.Now()
	resp := testAggregator(ps...).Aggregate(context.Background(), "q", 5, Options{})
	if took := time.Since(start); took > 400*time.Millisecond {
		t.Errorf("aggregate took %v, providers did not run concurrently", took)
	}
	if len(resp.Sources) != len(types.AllProviders) {
		t.Errorf("sources = %d", len(resp.Sources))
	}
}

func TestAggregateSkipsEmptyContent(t *testing.T) {
	resp := testAggregator(
		okProvider(types.ProviderPubMed, "lit", 1),
		okProvider(types.ProviderExa, "", 0),
	).Aggregate(context.Background(), "q", 5, Options{})
	if resp.CombinedContent != "## From PubMed\n\nlit" {
		t.Errorf("CombinedContent = %q", resp.CombinedContent)
	}
	if _, ok := resp.Sources[types.ProviderExa]; !ok {
		t.Error("empty-content success still belongs in sources")
	}
}

// --- Isolation ---

func TestAggregateIsolatesPanicsAndTimeouts(t *testing.T) {
	panicky := &mockProvider{name: types.ProviderExa, ready: true, panics: true}
	slow := okProvider(types.ProviderTavily, "late", 1)
	slow.delay = 5 * time.Second

	agg := testAggregator(okProvider(types.ProviderPubMed, "lit", 1), panicky, slow)
	agg.Timeout = 50 * time.Millisecond

	resp := agg.Aggregate(context.Background(), "q", 5, Options{})

	if _, ok := resp.Sources[types.ProviderPubMed]; !ok {
		t.Error("pubmed result lost")
	}
	if !strings.Contains(resp.Errors[types.ProviderExa], "panicked") {
		t.Errorf("exa error = %q", resp.Errors[types.ProviderExa])
	}
	if !strings.Contains(resp.Errors[types.ProviderTavily], "deadline exceeded") {
		t.Errorf("tavily error = %q", resp.Errors[types.ProviderTavily])
	}
}

func TestAggregateDefaultsMaxResults(t *testing.T) {
	pm := okProvider(types.ProviderPubMed, "x", 0)
	agg := testAggregator(pm)
	agg.MaxResults = 0
	agg.Aggregate(context.Background(), "q", 0, Options{})
	if pm.gotMax != DefaultMaxResults {
		t.Errorf("maxResults = %d, want %d", pm.gotMax, DefaultMaxResults)
	}

	agg.MaxResults = 8
	agg.Aggregate(context.Background(), "q", -1, Options{})
	if pm.gotMax != 8 {
		t.Errorf("maxResults = %d, want configured 8", pm.gotMax)
	}
}

func TestAggregatePassesOptions(t *testing.T) {
	pp := okProvider(types.ProviderPerplexity, "x", 0)
	testAggregator(okProvider(types.ProviderPubMed, "", 0), pp).
		Aggregate(context.Background(), "q", 5, Options{Model: ModelSonarDeepResearch, General: true})
	if pp.gotOptions.Model != ModelSonarDeepResearch || !pp.gotOptions.General {
		t.Errorf("options = %+v", pp.gotOptions)
	}
}

// --- Partial failure over real providers ---

func TestAggregatePartialFailure(t *testing.T) {
	pm := pubmedServer(t, esearchJSON, esummaryJSON, nil)
	defer pm.Close()
	swap(t, &pubmedAPIBase, pm.URL)

	var exaCalls int32
	exa := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&exaCalls, 1)
	}))
	defer exa.Close()
	swap(t, &exaAPIBase, exa.URL)

	pplx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer pplx.Close()
	swap(t, &perplexityAPIBase, pplx.URL)

	cfg := testCfg()
	cfg.PerplexityAPIKey = "pplx-key"
	cfg.ExaAPIKey = ""

	pubmed := newTestPubMed(cfg)
	agg := NewAggregator(cfg, nil, pubmed, NewExa(cfg), NewPerplexity(cfg))
	resp := agg.Aggregate(context.Background(), "pneumonia", 5, Options{})

	if len(resp.Sources) != 1 {
		t.Errorf("sources = %v, want only pubmed", keys(resp.Sources))
	}
	if _, ok := resp.Sources[types.ProviderPubMed]; !ok {
		t.Error("pubmed missing from sources")
	}
	if len(resp.Errors) != 1 {
		t.Errorf("errors = %v, want only perplexity", resp.Errors)
	}
	if msg := resp.Errors[types.ProviderPerplexity]; !strings.Contains(msg, "500") {
		t.Errorf("perplexity error %q lacks upstream status", msg)
	}
	if _, ok := resp.Sources[types.ProviderExa]; ok {
		t.Error("keyless exa in sources")
	}
	if _, ok := resp.Errors[types.ProviderExa]; ok {
		t.Error("keyless exa in errors; it must not be attempted")
	}
	if exaCalls != 0 {
		t.Errorf("exa contacted %d times", exaCalls)
	}
}

func keys(m map[types.ProviderName]types.NormalizedResult) []types.ProviderName {
	var out []types.ProviderName
	for k := range m {
		out = append(out, k)
	}
	return out
}

// --- SearchOne ---

func TestSearchOneReturnsClassifiedError(t *testing.T) {
	agg := testAggregator(okProvider(types.ProviderPubMed, "x", 1), NewExa(testCfg()))

	_, err := agg.SearchOne(context.Background(), types.ProviderExa, "q", 5, Options{})
	if KindOf(err) != KindConfig {
		t.Errorf("kind = %v, want config", KindOf(err))
	}

	res, err := agg.SearchOne(context.Background(), types.ProviderPubMed, "q", 0, Options{})
	if err != nil || res.Content != "x" {
		t.Errorf("SearchOne(pubmed) = %+v, %v", res, err)
	}

	_, err = agg.SearchOne(context.Background(), "medscape", "q", 5, Options{})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}
}

func TestNewProvidersAttemptOrder(t *testing.T) {
	ps := NewProviders(testCfg(), nil, nil)
	if len(ps) != len(types.AllProviders) {
		t.Fatalf("len = %d", len(ps))
	}
	for i, p := range ps {
		if p.Name() != types.AllProviders[i] {
			t.Errorf("provider %d = %s, want %s", i, p.Name(), types.AllProviders[i])
		}
	}
}

// --- Errors ---

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{configError(types.ProviderExa, "EXA_API_KEY not configured"), "exa: EXA_API_KEY not configured"},
		{upstreamError(types.ProviderTavily, 429, "Tavily API error"), "tavily: Tavily API error (HTTP 429)"},
		{transportError(types.ProviderPubMed, "request failed", errors.New("EOF")), "pubmed: request failed: EOF"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", upstreamError(types.ProviderExa, 429, ""), true},
		{"server error", upstreamError(types.ProviderExa, 503, ""), true},
		{"bad request", upstreamError(types.ProviderExa, 400, ""), false},
		{"malformed body", upstreamError(types.ProviderExa, 0, ""), false},
		{"auth", authError(types.ProviderMKSAP, nil), false},
		{"wrapped transport", fmt.Errorf("outer: %w", transportError(types.ProviderExa, "x", nil)), true},
		{"plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
