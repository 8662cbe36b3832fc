// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library keeps saved search responses and their citations in a
// SQLite database with a full-text index, so earlier results can be found
// and exported without re-querying the providers.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/medref/pkg/types"
)

const defaultMaxResults = 20

// Store manages the library database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// Open opens or creates the library database at cfg.Path and creates the
// schema if it does not exist.
func Open(cfg types.LibraryConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating library directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS searches (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			providers TEXT,
			errors TEXT,
			combined_content TEXT,
			saved_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS citations (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			search_id TEXT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			provider TEXT NOT NULL,
			cid TEXT NOT NULL,
			title TEXT NOT NULL,
			authors TEXT,
			source TEXT,
			year INTEGER,
			url TEXT,
			identifier TEXT,
			snippet TEXT,
			UNIQUE(search_id, cid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_search ON citations(search_id)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_provider ON citations(provider)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='citations_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE citations_fts USING fts5(title, snippet, source, content=citations, content_rowid=rowid)`,
		`CREATE TRIGGER citations_ai AFTER INSERT ON citations BEGIN
			INSERT INTO citations_fts(rowid, title, snippet, source) VALUES (new.rowid, new.title, new.snippet, new.source);
		END`,
		`CREATE TRIGGER citations_ad AFTER DELETE ON citations BEGIN
			INSERT INTO citations_fts(citations_fts, rowid, title, snippet, source) VALUES('delete', old.rowid, old.title, old.snippet, old.source);
		END`,
		`CREATE TRIGGER citations_au AFTER UPDATE ON citations BEGIN
			INSERT INTO citations_fts(citations_fts, rowid, title, snippet, source) VALUES('delete', old.rowid, old.title, old.snippet, old.source);
			INSERT INTO citations_fts(rowid, title, snippet, source) VALUES (new.rowid, new.title, new.snippet, new.source);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// Save files resp and its citations under a new id, which it returns.
// Citations keep their response order.
func (s *Store) Save(ctx context.Context, resp types.AggregateResponse) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	providersJSON, _ := json.Marshal(resp.Providers)
	errorsJSON, _ := json.Marshal(resp.Errors)
	savedAt := resp.Timestamp
	if savedAt == 0 {
		savedAt = time.Now().UnixMilli()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO searches (id, query, providers, errors, combined_content, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, resp.Query, string(providersJSON), string(errorsJSON), resp.CombinedContent, savedAt,
	); err != nil {
		return "", fmt.Errorf("inserting search: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO citations (search_id, position, provider, cid, title, authors, source, year, url, identifier, snippet)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range resp.AllCitations {
		authorsJSON, _ := json.Marshal(c.Authors)
		var year sql.NullInt64
		if c.Year != nil {
			year = sql.NullInt64{Int64: int64(*c.Year), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			id, i, string(providerOf(resp, c.ID)), c.ID, c.Title, string(authorsJSON),
			c.Source, year, c.URL, c.Identifier, c.Snippet,
		); err != nil {
			return "", fmt.Errorf("inserting citation %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return id, nil
}

// Delete removes a saved search and its citations.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM searches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting search: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("search %s not found", id)
	}
	return nil
}

// providerOf returns the provider whose source result holds citation id.
func providerOf(resp types.AggregateResponse, id string) types.ProviderName {
	for _, name := range resp.Providers {
		for _, c := range resp.Sources[name].Citations {
			if c.ID == id {
				return name
			}
		}
	}
	return ""
}
