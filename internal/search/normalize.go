// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pdiddy/medref/internal/browse"
	"github.com/pdiddy/medref/pkg/types"
)

// Divider separates per-result blocks and per-provider sections.
const Divider = "\n\n---\n\n"

// NoResults is the content of a literature search that matched nothing.
const NoResults = "No results found."

const (
	untitled       = "Untitled"
	snippetLen     = 300
	pubmedAuthors  = 3
	pubmedPageBase = "https://pubmed.ncbi.nlm.nih.gov/"
)

// The normalizers below are pure: the same bytes always yield the same
// content and citations. Missing fields are replaced with defaults, never
// reported as errors.

// pubmedIDs reads the ordered PMID list from an esearch response.
func pubmedIDs(body []byte) []string {
	var ids []string
	gjson.GetBytes(body, "esearchresult.idlist").ForEach(func(_, v gjson.Result) bool {
		if id := strings.TrimSpace(v.String()); id != "" {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// normalizePubMed maps an esummary response onto citations in the order of
// ids. PMIDs missing from the summary are skipped.
func normalizePubMed(ids []string, summary []byte) (string, []types.Citation) {
	if len(ids) == 0 {
		return NoResults, []types.Citation{}
	}

	result := gjson.GetBytes(summary, "result")
	citations := make([]types.Citation, 0, len(ids))
	var blocks []string
	for _, pmid := range ids {
		article := result.Get(gjson.Escape(pmid))
		if !article.IsObject() {
			continue
		}

		title := stringOr(article.Get("title"), untitled)
		var authors []string
		article.Get("authors").ForEach(func(_, a gjson.Result) bool {
			if name := a.Get("name").String(); name != "" {
				authors = append(authors, name)
			}
			return len(authors) < pubmedAuthors
		})
		source := article.Get("source").String()
		pubdate := article.Get("pubdate").String()

		citations = append(citations, types.Citation{
			ID:         "pubmed-" + pmid,
			Title:      title,
			Authors:    authors,
			Source:     source,
			Year:       leadingYear(pubdate),
			URL:        pubmedPageBase + pmid + "/",
			Identifier: pmid,
		})

		byline := ""
		if len(authors) > 0 {
			byline = strings.Join(authors, ", ") + " et al."
		}
		blocks = append(blocks, fmt.Sprintf("**%s**\n%s - %s (%s)", title, byline, source, pubdate))
	}
	if len(citations) == 0 {
		return NoResults, citations
	}
	return strings.Join(blocks, Divider), citations
}

// normalizeExa maps an Exa /search response.
func normalizeExa(body []byte) (string, []types.Citation) {
	citations := []types.Citation{}
	var blocks []string
	gjson.GetBytes(body, "results").ForEach(func(_, r gjson.Result) bool {
		i := len(citations)
		title := stringOr(r.Get("title"), untitled)
		link := r.Get("url").String()
		text := r.Get("text").String()
		highlight := r.Get("highlights.0").String()

		snippet := highlight
		if snippet == "" {
			snippet = browse.Truncate(text, snippetLen)
		}
		citations = append(citations, types.Citation{
			ID:      fmt.Sprintf("exa-%d", i),
			Title:   title,
			Source:  hostOr(link, types.ProviderExa.DisplayName()),
			URL:     link,
			Snippet: snippet,
		})

		passage := text
		if passage == "" {
			passage = highlight
		}
		blocks = append(blocks, fmt.Sprintf("## %s\n%s", title, passage))
		return true
	})
	return strings.Join(blocks, Divider), citations
}

// normalizeTavily maps a Tavily /search response. The synthesized answer is
// the content; without one the per-result blocks are used.
func normalizeTavily(body []byte) (string, []types.Citation) {
	citations := []types.Citation{}
	var blocks []string
	gjson.GetBytes(body, "results").ForEach(func(_, r gjson.Result) bool {
		i := len(citations)
		title := stringOr(r.Get("title"), untitled)
		link := r.Get("url").String()
		text := r.Get("content").String()
		citations = append(citations, types.Citation{
			ID:      fmt.Sprintf("tavily-%d", i),
			Title:   title,
			Source:  hostOr(link, types.ProviderTavily.DisplayName()),
			URL:     link,
			Snippet: browse.Truncate(text, snippetLen),
		})
		blocks = append(blocks, fmt.Sprintf("## %s\n%s", title, text))
		return true
	})

	if answer := gjson.GetBytes(body, "answer").String(); answer != "" {
		return answer, citations
	}
	return strings.Join(blocks, Divider), citations
}

// normalizePerplexity maps a chat completion. The answer is taken verbatim.
// Citations may be bare URLs or objects; bare URLs take their title from
// search_results when the API supplies one. Responses that carry only
// search_results are cited from those.
func normalizePerplexity(body []byte) (string, []types.Citation) {
	content := gjson.GetBytes(body, "choices.0.message.content").String()

	titles := map[string]string{}
	searchResults := gjson.GetBytes(body, "search_results")
	searchResults.ForEach(func(_, r gjson.Result) bool {
		if u, t := r.Get("url").String(), r.Get("title").String(); u != "" && t != "" {
			titles[u] = t
		}
		return true
	})

	raw := gjson.GetBytes(body, "citations")
	if !raw.IsArray() || len(raw.Array()) == 0 {
		raw = searchResults
	}

	source := types.ProviderPerplexity.DisplayName()
	citations := []types.Citation{}
	raw.ForEach(func(_, c gjson.Result) bool {
		i := len(citations)
		cit := types.Citation{ID: fmt.Sprintf("pplx-%d", i), Source: source}
		if c.Type == gjson.String {
			cit.URL = c.String()
			cit.Title = cit.URL
			if t, ok := titles[cit.URL]; ok {
				cit.Title = t
			}
		} else {
			cit.URL = c.Get("url").String()
			cit.Title = stringOr(c.Get("title"), fmt.Sprintf("Source %d", i+1))
			cit.Snippet = browse.Truncate(c.Get("snippet").String(), snippetLen)
		}
		citations = append(citations, cit)
		return true
	})
	return content, citations
}

// normalizeContentHits maps hits from an authenticated content site.
func normalizeContentHits(p types.ProviderName, hits []browse.Hit) (string, []types.Citation) {
	citations := make([]types.Citation, 0, len(hits))
	blocks := make([]string, 0, len(hits))
	for i, h := range hits {
		citations = append(citations, types.Citation{
			ID:      fmt.Sprintf("%s-%d", p, i),
			Title:   h.Title,
			Source:  p.DisplayName(),
			URL:     h.URL,
			Snippet: h.Snippet,
		})
		blocks = append(blocks, fmt.Sprintf("**%s**\n%s", h.Title, h.Snippet))
	}
	return strings.Join(blocks, Divider), citations
}

func stringOr(r gjson.Result, def string) string {
	if s := strings.TrimSpace(r.String()); s != "" {
		return s
	}
	return def
}

// hostOr returns the host of rawURL, or def when it has none.
func hostOr(rawURL, def string) string {
	if rawURL == "" {
		return def
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return def
	}
	return u.Host
}

// leadingYear parses the first token of a PubMed pubdate ("2023 Jan 5").
func leadingYear(pubdate string) *int {
	fields := strings.Fields(pubdate)
	if len(fields) == 0 {
		return nil
	}
	y, err := strconv.Atoi(fields[0])
	if err != nil || y <= 0 {
		return nil
	}
	return &y
}
