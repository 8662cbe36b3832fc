// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/medref/internal/search"
	"github.com/pdiddy/medref/pkg/types"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatCSL  = "csl"
)

const exportLimit = 100000

// Export writes the citations matching opts to w. It supports the same
// filters as Find. The csl format emits CSL YAML for reference managers.
func (s *Store) Export(ctx context.Context, opts QueryOptions, format string, w io.Writer) error {
	opts.MaxResults = exportLimit
	entries, err := s.Find(ctx, opts)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}

	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatCSL:
		return search.FormatCSL(uniqueCitations(entries), w)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// uniqueCitations drops repeated ids, which occur when the same work was
// saved from more than one search.
func uniqueCitations(entries []Entry) []types.Citation {
	seen := make(map[string]bool, len(entries))
	out := make([]types.Citation, 0, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e.Citation)
	}
	return out
}
