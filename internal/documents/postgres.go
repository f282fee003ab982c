package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore persists Documents to Postgres, grounded on
// internal/persistence/databases/postgres_doc.go's bootstrap/upsert
// pattern.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgres bootstraps the documents table and returns a Store backed
// by pool.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ingested_documents (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  source TEXT NOT NULL,
  origin TEXT NOT NULL,
  text TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	if err != nil {
		return nil, fmt.Errorf("documents: bootstrap table: %w", err)
	}
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS ingested_documents_user_idx ON ingested_documents (username)`)
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Create(ctx context.Context, d Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO ingested_documents (id, username, source, origin, text, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET text=EXCLUDED.text
`, d.ID, d.Username, d.Source, d.Origin, d.Text, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("documents: create: %w", err)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id string) (Document, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, username, source, origin, text, created_at FROM ingested_documents WHERE id=$1`, id)
	var d Document
	if err := row.Scan(&d.ID, &d.Username, &d.Source, &d.Origin, &d.Text, &d.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return Document{}, false, nil
		}
		return Document{}, false, fmt.Errorf("documents: get: %w", err)
	}
	return d, true, nil
}

func (s *pgStore) ListByUser(ctx context.Context, username string) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, source, origin, text, created_at FROM ingested_documents WHERE username=$1 ORDER BY created_at DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("documents: list by user: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Username, &d.Source, &d.Origin, &d.Text, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("documents: scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
