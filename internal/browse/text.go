// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browse

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelector lists elements stripped before text extraction.
const noiseSelector = "script, style, noscript, nav, footer, header, aside"

// ExtractText returns the readable text of the first element matching one
// of selectors, falling back to <body>. Headings become markdown headings,
// list items become bullets and blocks are separated by blank lines.
func ExtractText(html string, selectors ...string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find(noiseSelector).Remove()

	root := doc.Find("body")
	for _, sel := range selectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			root = s
			break
		}
	}

	var blocks []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td").Each(func(_ int, s *goquery.Selection) {
		// Nested matches are emitted by their innermost block.
		if s.Find("p, li, pre, blockquote").Length() > 0 {
			return
		}
		text := collapseSpace(s.Text())
		if text == "" {
			return
		}
		switch tag := goquery.NodeName(s); tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			blocks = append(blocks, strings.Repeat("#", int(tag[1]-'0'))+" "+text)
		case "li":
			blocks = append(blocks, "- "+text)
		case "blockquote":
			blocks = append(blocks, "> "+text)
		default:
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		return collapseSpace(root.Text())
	}
	return strings.Join(blocks, "\n\n")
}

// Hit is one search result scraped from a content site's result page.
type Hit struct {
	Title   string
	URL     string
	Snippet string
}

// HitRule locates search hits on a result page.
type HitRule struct {
	// Containers are tried in order; the first selector with matches wins.
	Containers []string

	// TitleSelector picks the title inside a container.
	TitleSelector string

	// LinkContains is the fallback: anchors whose href contains any of
	// these fragments are treated as hits.
	LinkContains []string
}

// Hit length limits.
const (
	maxTitleLen   = 200
	maxSnippetLen = 300
)

// ExtractHits returns up to max hits from a result page. Relative links
// are resolved against pageURL. Hits with an empty title are given
// fallback(i) as their title.
func ExtractHits(html, pageURL string, rule HitRule, max int, fallback func(i int) string) []Hit {
	if max <= 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	doc.Find("script, style, noscript").Remove()
	base, _ := url.Parse(pageURL)

	var hits []Hit
	add := func(title, href, snippet string) bool {
		title = Truncate(collapseSpace(title), maxTitleLen)
		if title == "" {
			title = fallback(len(hits))
		}
		snippet = Truncate(collapseSpace(snippet), maxSnippetLen)
		if snippet == "" {
			snippet = title
		}
		hits = append(hits, Hit{Title: title, URL: resolve(base, href), Snippet: snippet})
		return len(hits) < max
	}

	for _, sel := range rule.Containers {
		found := doc.Find(sel)
		if found.Length() == 0 {
			continue
		}
		titleSel := rule.TitleSelector
		if titleSel == "" {
			titleSel = "h2, h3, a, span"
		}
		found.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			title := s.Find(titleSel).First().Text()
			href := s.AttrOr("href", "")
			if goquery.NodeName(s) != "a" {
				href = s.Find("a[href]").First().AttrOr("href", "")
			}
			return add(title, href, s.Text())
		})
		return hits
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if !containsAny(strings.ToLower(href), rule.LinkContains) {
			return true
		}
		snippet := a.Closest("div, li, article").Text()
		return add(a.Text(), href, snippet)
	})
	return hits
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func containsAny(s string, frags []string) bool {
	for _, f := range frags {
		if f != "" && strings.Contains(s, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
