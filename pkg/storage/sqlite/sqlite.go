// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/thesaasbook/pdf-tools/pkg/workspace"

	_ "modernc.org/sqlite"
)

func init() {
	workspace.Providers.Register("sqlite", func(_ context.Context, params map[string]string) (workspace.Store, error) {
		dsn := params["dsn"]
		if dsn == "" {
			dsn = "pdftools.db"
		}
		return New(dsn)
	})
}

// compile-time check
var _ workspace.Store = (*Store)(nil)

// Store is a SQLite-backed workspace store. Timestamps are stored as Unix
// nanoseconds so expiry comparisons stay in SQL.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dsn. Use ":memory:" for a
// throwaway database.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			entries TEXT NOT NULL DEFAULT '[]',
			merging INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workspaces_expires ON workspaces(expires_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite create tables: %w", err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entries, merging, error, created_at, updated_at, expires_at
		 FROM workspaces WHERE id = ?`, id)

	var (
		ws                          workspace.Workspace
		entries                     string
		merging                     int
		created, updated, expiresAt int64
	)
	err := row.Scan(&ws.ID, &entries, &merging, &ws.Error, &created, &updated, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workspace %s: %w", id, workspace.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}

	ws.Entries = []workspace.Entry{}
	if err := json.Unmarshal([]byte(entries), &ws.Entries); err != nil {
		return nil, fmt.Errorf("unmarshal entries: %w", err)
	}
	ws.Merging = merging != 0
	ws.CreatedAt = time.Unix(0, created).UTC()
	ws.UpdatedAt = time.Unix(0, updated).UTC()
	ws.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return &ws, nil
}

func (s *Store) Save(ctx context.Context, ws *workspace.Workspace) error {
	entries := ws.Entries
	if entries == nil {
		entries = []workspace.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}
	merging := 0
	if ws.Merging {
		merging = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, entries, merging, error, created_at, updated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			entries = excluded.entries,
			merging = excluded.merging,
			error = excluded.error,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		ws.ID, string(data), merging, ws.Error,
		ws.CreatedAt.UnixNano(), ws.UpdatedAt.UnixNano(), ws.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}

func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM workspaces WHERE expires_at < ? ORDER BY id`, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan workspace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
