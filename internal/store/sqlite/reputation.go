// Package sqlite implements the reputation store on a local SQLite file
// (standalone mode, no external database required).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/phishclaw/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS reputation (
	id TEXT PRIMARY KEY,
	classification TEXT NOT NULL CHECK (classification IN ('safe', 'malicious')),
	date TIMESTAMP NOT NULL
);
`

// ReputationStore persists triage verdicts in a single-file SQLite database.
// Same single-table layout as the Postgres backend.
type ReputationStore struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path. The parent
// directory is created automatically.
func Open(path string) (*ReputationStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Serialized access: the driver is safe for concurrent use but writes
	// take a database-level lock, which is plenty for a single bot process.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &ReputationStore{db: db}, nil
}

func (s *ReputationStore) Lookup(ctx context.Context, id string) (store.Classification, error) {
	var classification string
	err := s.db.QueryRowContext(ctx,
		`SELECT classification FROM reputation WHERE id = ?`, id,
	).Scan(&classification)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Unknown, nil
	}
	if err != nil {
		return store.Unknown, fmt.Errorf("lookup reputation: %w", err)
	}
	return store.ParseClassification(classification), nil
}

func (s *ReputationStore) MarkSafe(ctx context.Context, id string) error {
	return s.mark(ctx, id, store.Safe)
}

func (s *ReputationStore) MarkMalicious(ctx context.Context, id string) error {
	return s.mark(ctx, id, store.Malicious)
}

func (s *ReputationStore) mark(ctx context.Context, id string, c store.Classification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reputation (id, classification, date) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET classification = excluded.classification, date = excluded.date`,
		id, c.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark %s: %w", c, err)
	}
	return nil
}

func (s *ReputationStore) Reset(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reputation WHERE id = ?`, id); err != nil {
		return fmt.Errorf("reset reputation: %w", err)
	}
	return nil
}

func (s *ReputationStore) Close() error { return s.db.Close() }
