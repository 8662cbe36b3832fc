// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fans one medical query out to the configured providers and
// reduces their heterogeneous responses into the normalized citation model.
//
// Each provider (PubMed, Exa, Tavily, Perplexity, and the signed-in content
// sites) implements Provider. The Aggregator runs every usable provider
// concurrently and partitions the outcomes into sources and errors; one
// provider's failure never affects another's result.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/medref/internal/logging"
	"github.com/pdiddy/medref/internal/session"
	"github.com/pdiddy/medref/pkg/types"
)

// DefaultMaxResults bounds each provider when the caller passes no limit.
const DefaultMaxResults = 5

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

// ErrUnknownProvider is returned by SearchOne for names not in the aggregator.
var ErrUnknownProvider = errors.New("unknown provider")

// Provider searches one external source. Implementations return a
// *Error for every failure.
type Provider interface {
	Name() types.ProviderName

	// Ready reports whether the provider can be attempted: its credential
	// is configured or its session is signed in.
	Ready() bool

	Search(ctx context.Context, query string, maxResults int, opts Options) (types.NormalizedResult, error)
}

// Options carries per-request settings.
type Options struct {
	// Model selects the Perplexity tier. Empty uses the provider default.
	Model PerplexityModel

	// General drops the medical focus: Perplexity uses its general prompt
	// and no domain filter.
	General bool

	// Domains overrides the configured medical allowlist when non-nil.
	Domains []string
}

// now is replaced in tests.
var now = time.Now

func newResult(p types.ProviderName, query, content string, citations []types.Citation) types.NormalizedResult {
	if citations == nil {
		citations = []types.Citation{}
	}
	return types.NormalizedResult{
		Provider:  p,
		Query:     query,
		Content:   content,
		Citations: citations,
		Timestamp: now().UnixMilli(),
	}
}

// NewProviders builds every provider from cfg in attempt order. Content
// providers share pool for their sessions.
func NewProviders(cfg types.SearchConfig, pool *session.Pool, logger *zap.Logger) []Provider {
	providers := []Provider{
		NewPubMed(cfg),
		NewPerplexity(cfg),
		NewExa(cfg),
		NewTavily(cfg),
	}
	for _, site := range []ContentSite{UpToDateSite(), MKSAPSite()} {
		c := NewContent(site, pool)
		c.Logger = logger
		providers = append(providers, c)
	}
	return providers
}

// Aggregator fans a query out to its providers.
type Aggregator struct {
	Providers []Provider

	// MaxResults replaces a non-positive per-call limit.
	MaxResults int

	// Timeout bounds each provider call. There is no aggregate deadline.
	Timeout time.Duration

	Logger *zap.Logger
}

// NewAggregator returns an aggregator over providers using cfg's limits.
func NewAggregator(cfg types.SearchConfig, logger *zap.Logger, providers ...Provider) *Aggregator {
	return &Aggregator{
		Providers:  providers,
		MaxResults: cfg.MaxResults,
		Timeout:    cfg.ProviderTimeout,
		Logger:     logging.OrNop(logger),
	}
}

// candidates returns the providers to attempt, in attempt order. PubMed is
// always attempted; the rest only when Ready.
func (a *Aggregator) candidates() []Provider {
	var out []Provider
	for _, p := range a.Providers {
		if p.Name() == types.ProviderPubMed || p.Ready() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return attemptRank(out[i].Name()) < attemptRank(out[j].Name())
	})
	return out
}

func attemptRank(p types.ProviderName) int {
	for i, name := range types.AllProviders {
		if name == p {
			return i
		}
	}
	return len(types.AllProviders)
}

// Aggregate runs every candidate provider concurrently and merges the
// outcomes. It waits for all of them and never fails: provider failures are
// reported in the Errors map.
func (a *Aggregator) Aggregate(ctx context.Context, query string, maxResults int, opts Options) types.AggregateResponse {
	maxResults = a.limit(maxResults)
	cands := a.candidates()

	type outcome struct {
		result types.NormalizedResult
		err    error
	}
	outcomes := make([]outcome, len(cands))

	var wg sync.WaitGroup
	for i, p := range cands {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			res, err := a.run(ctx, p, query, maxResults, opts)
			outcomes[i] = outcome{result: res, err: err}
		}(i, p)
	}
	wg.Wait()

	resp := types.AggregateResponse{
		Query:        query,
		Providers:    make([]types.ProviderName, 0, len(cands)),
		Sources:      make(map[types.ProviderName]types.NormalizedResult),
		Errors:       make(map[types.ProviderName]string),
		AllCitations: []types.Citation{},
	}
	var sections []string
	for i, p := range cands {
		name := p.Name()
		resp.Providers = append(resp.Providers, name)
		o := outcomes[i]
		if o.err != nil {
			resp.Errors[name] = o.err.Error()
			continue
		}
		resp.Sources[name] = o.result
		if o.result.Content != "" {
			sections = append(sections, fmt.Sprintf("## From %s\n\n%s", name.DisplayName(), o.result.Content))
		}
		resp.AllCitations = append(resp.AllCitations, o.result.Citations...)
	}
	resp.CombinedContent = strings.Join(sections, Divider)
	resp.Timestamp = now().UnixMilli()

	logging.OrNop(a.Logger).Info("aggregate complete",
		zap.String("query", query),
		zap.Int("attempted", len(cands)),
		zap.Int("sources", len(resp.Sources)),
		zap.Int("errors", len(resp.Errors)),
		zap.Int("citations", len(resp.AllCitations)),
	)
	return resp
}

// SearchOne runs a single provider outside aggregation and returns its
// classified error to the caller.
func (a *Aggregator) SearchOne(ctx context.Context, name types.ProviderName, query string, maxResults int, opts Options) (types.NormalizedResult, error) {
	for _, p := range a.Providers {
		if p.Name() == name {
			return a.run(ctx, p, query, a.limit(maxResults), opts)
		}
	}
	return types.NormalizedResult{}, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// Provider returns the named provider, or nil.
func (a *Aggregator) Provider(name types.ProviderName) Provider {
	for _, p := range a.Providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

func (a *Aggregator) limit(n int) int {
	if n > 0 {
		return n
	}
	if a.MaxResults > 0 {
		return a.MaxResults
	}
	return DefaultMaxResults
}

// run calls p under its own timeout, recovering panics into errors.
func (a *Aggregator) run(ctx context.Context, p Provider, query string, maxResults int, opts Options) (res types.NormalizedResult, err error) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := logging.OrNop(a.Logger)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: provider panicked: %v", p.Name(), r)
		}
		if err != nil {
			logger.Warn("provider failed",
				zap.String("provider", string(p.Name())),
				zap.Duration("took", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		logger.Debug("provider ok",
			zap.String("provider", string(p.Name())),
			zap.Duration("took", time.Since(start)),
			zap.Int("citations", len(res.Citations)),
		)
	}()

	return p.Search(ctx, query, maxResults, opts)
}
