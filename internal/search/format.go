// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdiddy/medref/pkg/types"
)

// FormatTable writes the citations of resp as a human-readable table,
// followed by per-provider failures.
func FormatTable(resp types.AggregateResponse, w io.Writer) {
	if len(resp.AllCitations) == 0 {
		fmt.Fprintln(w, "No citations found.")
	} else {
		fmt.Fprintf(w, "%-4s  %-14s  %-56s  %-20s  %-4s  %s\n",
			"#", "ID", "Title", "Source", "Year", "URL")
		fmt.Fprintln(w, strings.Repeat("-", 120))
		for i, c := range resp.AllCitations {
			year := ""
			if c.Year != nil {
				year = fmt.Sprintf("%d", *c.Year)
			}
			fmt.Fprintf(w, "%-4d  %-14s  %-56s  %-20s  %-4s  %s\n",
				i+1, truncate(c.ID, 14), truncate(c.Title, 56), truncate(c.Source, 20), year, c.URL)
		}
	}

	fmt.Fprintf(w, "\n%d citations from %d of %d providers\n",
		len(resp.AllCitations), len(resp.Sources), len(resp.Providers))

	if len(resp.Errors) > 0 {
		names := make([]string, 0, len(resp.Errors))
		for p := range resp.Errors {
			names = append(names, string(p))
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(w, "warning: %s\n", resp.Errors[types.ProviderName(n)])
		}
	}
}

// FormatJSON writes v as indented JSON to w.
func FormatJSON(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
