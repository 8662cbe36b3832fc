// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/medref/pkg/types"
)

// QueryOptions holds parameters for citation queries.
type QueryOptions struct {
	// Query is an FTS5 expression matched against title, snippet and source.
	Query string

	// Provider filters by the provider that reported the citation.
	Provider types.ProviderName

	// SearchID restricts results to one saved search.
	SearchID string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Entry is a saved citation with the search it came from.
type Entry struct {
	types.Citation `yaml:",inline"`

	Provider    types.ProviderName `json:"provider" yaml:"provider"`
	SearchID    string             `json:"search_id" yaml:"search_id"`
	SearchQuery string             `json:"search_query" yaml:"search_query"`
	SavedAt     time.Time          `json:"saved_at" yaml:"saved_at"`
}

// SearchSummary describes one saved search.
type SearchSummary struct {
	ID        string                        `json:"id" yaml:"id"`
	Query     string                        `json:"query" yaml:"query"`
	Providers []types.ProviderName          `json:"providers" yaml:"providers"`
	Errors    map[types.ProviderName]string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Citations int                           `json:"citations" yaml:"citations"`
	SavedAt   time.Time                     `json:"saved_at" yaml:"saved_at"`
}

// Find returns saved citations. A full-text query ranks by relevance;
// otherwise citations come newest search first, in response order.
func (s *Store) Find(ctx context.Context, opts QueryOptions) ([]Entry, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT c.cid, c.title, c.authors, c.source, c.year, c.url, c.identifier, c.snippet,
				c.provider, s.id, s.query, s.saved_at
			FROM citations_fts
			JOIN citations c ON c.rowid = citations_fts.rowid
			JOIN searches s ON s.id = c.search_id
			WHERE citations_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT c.cid, c.title, c.authors, c.source, c.year, c.url, c.identifier, c.snippet,
				c.provider, s.id, s.query, s.saved_at
			FROM citations c
			JOIN searches s ON s.id = c.search_id
			WHERE 1=1`)
	}

	if opts.Provider != "" {
		qb.WriteString(` AND c.provider = ?`)
		args = append(args, string(opts.Provider))
	}
	if opts.SearchID != "" {
		qb.WriteString(` AND c.search_id = ?`)
		args = append(args, opts.SearchID)
	}

	if useFTS {
		qb.WriteString(` ORDER BY citations_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY s.saved_at DESC, c.search_id, c.position`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying library: %w", err)
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var (
			e           Entry
			authorsJSON sql.NullString
			year        sql.NullInt64
			provider    string
			savedAt     int64
		)
		if err := rows.Scan(
			&e.ID, &e.Title, &authorsJSON, &e.Source, &year, &e.URL, &e.Identifier, &e.Snippet,
			&provider, &e.SearchID, &e.SearchQuery, &savedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if authorsJSON.Valid {
			json.Unmarshal([]byte(authorsJSON.String), &e.Authors)
		}
		if year.Valid {
			y := int(year.Int64)
			e.Year = &y
		}
		e.Provider = types.ProviderName(provider)
		e.SavedAt = time.UnixMilli(savedAt)
		results = append(results, e)
	}
	return results, rows.Err()
}

// Recent lists saved searches, newest first.
func (s *Store) Recent(ctx context.Context, max int) ([]SearchSummary, error) {
	if max <= 0 {
		max = s.maxResults
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.query, s.providers, s.errors, s.saved_at,
			(SELECT count(*) FROM citations c WHERE c.search_id = s.id)
		FROM searches s
		ORDER BY s.saved_at DESC, s.rowid DESC
		LIMIT ?`, max)
	if err != nil {
		return nil, fmt.Errorf("listing searches: %w", err)
	}
	defer rows.Close()

	var out []SearchSummary
	for rows.Next() {
		var (
			sum           SearchSummary
			providersJSON sql.NullString
			errorsJSON    sql.NullString
			savedAt       int64
		)
		if err := rows.Scan(&sum.ID, &sum.Query, &providersJSON, &errorsJSON, &savedAt, &sum.Citations); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if providersJSON.Valid {
			json.Unmarshal([]byte(providersJSON.String), &sum.Providers)
		}
		if errorsJSON.Valid {
			json.Unmarshal([]byte(errorsJSON.String), &sum.Errors)
		}
		sum.SavedAt = time.UnixMilli(savedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// CombinedContent returns the merged markdown stored with a saved search.
func (s *Store) CombinedContent(ctx context.Context, id string) (string, error) {
	var content sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT combined_content FROM searches WHERE id = ?`, id,
	).Scan(&content)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("search %s not found", id)
	}
	if err != nil {
		return "", fmt.Errorf("reading search: %w", err)
	}
	return content.String, nil
}

// Stats returns the number of saved searches and citations.
func (s *Store) Stats(ctx context.Context) (searches, citations int, err error) {
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM searches`).Scan(&searches); err != nil {
		return 0, 0, fmt.Errorf("counting searches: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM citations`).Scan(&citations); err != nil {
		return 0, 0, fmt.Errorf("counting citations: %w", err)
	}
	return searches, citations, nil
}
