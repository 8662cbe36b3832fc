// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/pdiddy/medref/internal/browse"
	"github.com/pdiddy/medref/internal/logging"
	"github.com/pdiddy/medref/internal/session"
	"github.com/pdiddy/medref/pkg/types"
)

// Site roots. Declared as vars so tests can substitute an httptest server.
var (
	uptodateBase = "https://www.uptodate.com"
	mksapBase    = "https://mksap19.acponline.org"
)

// maxArticleRunes caps full-article content.
const maxArticleRunes = 8000

// ContentSite describes how to search one signed-in content platform.
// The selector tables are best-effort defaults.
type ContentSite struct {
	Provider types.ProviderName
	Target   session.Target

	// SearchURL builds the site's internal search page for a query.
	SearchURL func(query string) string

	Hits browse.HitRule

	// ArticleSelectors locate the body of a hit's full article.
	ArticleSelectors []string
}

// UpToDateSite returns the UpToDate search strategy.
func UpToDateSite() ContentSite {
	return ContentSite{
		Provider: types.ProviderUpToDate,
		Target:   session.TargetUpToDate,
		SearchURL: func(q string) string {
			return uptodateBase + "/contents/search?search=" + url.QueryEscape(q) + "&source=SEARCH_RESULT"
		},
		Hits: browse.HitRule{
			Containers: []string{
				"div[class*='search-result']",
				"div[class*='result-item']",
				"a[class*='search-result']",
				"li[class*='search-result']",
			},
			LinkContains: []string{"/contents/"},
		},
		ArticleSelectors: []string{"div[class*='topic-content']", "article", "main"},
	}
}

// MKSAPSite returns the MKSAP 19 search strategy.
func MKSAPSite() ContentSite {
	return ContentSite{
		Provider: types.ProviderMKSAP,
		Target:   session.TargetMKSAP,
		SearchURL: func(q string) string {
			return mksapBase + "/search?q=" + url.QueryEscape(q)
		},
		Hits: browse.HitRule{
			LinkContains: []string{"section", "chapter", "question"},
		},
		ArticleSelectors: []string{"div[class*='content-body']", "article", "main"},
	}
}

// ContentProvider searches a signed-in content platform through the
// session pool. It never touches the network without a live session.
type ContentProvider struct {
	Site   ContentSite
	Pool   *session.Pool
	Logger *zap.Logger
}

// NewContent returns a provider for site backed by pool.
func NewContent(site ContentSite, pool *session.Pool) *ContentProvider {
	return &ContentProvider{Site: site, Pool: pool}
}

// Name returns the provider identifier.
func (p *ContentProvider) Name() types.ProviderName { return p.Site.Provider }

// Ready reports whether the site has a live session.
func (p *ContentProvider) Ready() bool {
	return p.Pool != nil && p.Pool.Authenticated(p.Site.Target)
}

// Search lists up to maxResults hits from the site's search page. When the
// first hit links to an article, its text replaces the snippet list as
// content; a failed article fetch keeps the snippet list.
func (p *ContentProvider) Search(ctx context.Context, query string, maxResults int, _ Options) (types.NormalizedResult, error) {
	if !p.Ready() {
		return types.NormalizedResult{}, authError(p.Name(), session.ErrNotAuthenticated)
	}

	var (
		content   string
		citations []types.Citation
	)
	err := p.Pool.With(ctx, p.Site.Target, func(b browse.Browser) error {
		page, err := b.Navigate(ctx, p.Site.SearchURL(query))
		if err != nil {
			return err
		}
		hits := browse.ExtractHits(page.HTML, page.URL, p.Site.Hits, maxResults, func(i int) string {
			return fmt.Sprintf("%s Result %d", p.Name().DisplayName(), i+1)
		})
		content, citations = normalizeContentHits(p.Name(), hits)

		if len(hits) > 0 && hits[0].URL != "" {
			if article := p.article(ctx, b, hits[0].URL); article != "" {
				content = article
			}
		}
		return nil
	})
	if err != nil {
		return types.NormalizedResult{}, p.classify(err)
	}
	return newResult(p.Name(), query, content, citations), nil
}

// article fetches one article and returns its truncated text, or "" on
// any failure.
func (p *ContentProvider) article(ctx context.Context, b browse.Browser, rawURL string) string {
	page, err := b.Navigate(ctx, rawURL)
	if err != nil {
		logging.OrNop(p.Logger).Debug("article fetch failed, keeping snippets",
			zap.String("provider", string(p.Name())),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return ""
	}
	return browse.Truncate(browse.ExtractText(page.HTML, p.Site.ArticleSelectors...), maxArticleRunes)
}

func (p *ContentProvider) classify(err error) error {
	var se *browse.StatusError
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		return authError(p.Name(), err)
	case errors.As(err, &se):
		return upstreamError(p.Name(), se.Status, "search page error")
	default:
		return transportError(p.Name(), "search failed", err)
	}
}
