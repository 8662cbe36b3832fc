// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"io"
	"strings"
	"unicode"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/medref/pkg/types"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	PMID           string    `yaml:"PMID,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes citations as a CSL-YAML list to w.
func FormatCSL(citations []types.Citation, w io.Writer) error {
	items := make([]CSLItem, len(citations))
	for i, c := range citations {
		items[i] = toCSLItem(c)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// toCSLItem converts a Citation to a CSLItem. Citations carrying a PMID
// are journal articles; everything else is a web page.
func toCSLItem(c types.Citation) CSLItem {
	item := CSLItem{
		ID:             c.ID,
		Type:           "webpage",
		Title:          c.Title,
		ContainerTitle: c.Source,
		Abstract:       c.Snippet,
		URL:            c.URL,
	}
	if strings.HasPrefix(c.ID, string(types.ProviderPubMed)+"-") && c.Identifier != "" {
		item.Type = "article-journal"
		item.PMID = c.Identifier
	}

	for _, a := range c.Authors {
		if n := parseAuthorName(a); n != (CSLName{}) {
			item.Author = append(item.Author, n)
		}
	}

	if c.Year != nil {
		item.Issued = &CSLDate{DateParts: [][]int{{*c.Year}}}
	}
	return item
}

// parseAuthorName splits a name string into CSL family/given parts.
// MEDLINE-style names ("Smith JA") put the family name first and the
// initials last; other names split on the last space with the last token
// as the family name. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	head, tail := name[:idx], name[idx+1:]
	if isInitials(tail) {
		return CSLName{Family: head, Given: tail}
	}
	return CSLName{Given: head, Family: tail}
}

// isInitials reports whether s is a short run of capitals like "JA".
func isInitials(s string) bool {
	if s == "" || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
