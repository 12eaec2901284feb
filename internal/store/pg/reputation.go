// Package pg implements the reputation store on Postgres (managed mode).
// Schema lives in migrations/ and is applied with the migrate command.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/phishclaw/internal/store"
)

// ReputationStore persists triage verdicts in a single reputation table.
// The tri-state is one row with a classification column; the exclusivity
// invariant holds structurally because id is the primary key and marks are
// single upsert statements.
type ReputationStore struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*ReputationStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &ReputationStore{db: db}, nil
}

// NewReputationStore wraps an existing connection (used by tests).
func NewReputationStore(db *sql.DB) *ReputationStore {
	return &ReputationStore{db: db}
}

func (s *ReputationStore) Lookup(ctx context.Context, id string) (store.Classification, error) {
	var classification string
	err := s.db.QueryRowContext(ctx,
		`SELECT classification FROM reputation WHERE id = $1`, id,
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
		`INSERT INTO reputation (id, classification, date)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET classification = EXCLUDED.classification, date = EXCLUDED.date`,
		id, c.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark %s: %w", c, err)
	}
	return nil
}

func (s *ReputationStore) Reset(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reputation WHERE id = $1`, id); err != nil {
		return fmt.Errorf("reset reputation: %w", err)
	}
	return nil
}

func (s *ReputationStore) Close() error { return s.db.Close() }
