package indexstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore persists Records to Postgres, grounded on
// internal/persistence/databases/postgres_search.go's best-effort
// bootstrap + ON CONFLICT upsert idiom.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgres bootstraps the index_records table (best-effort; ignored if
// the caller lacks DDL rights and the table already exists) and returns a
// Store backed by pool.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS index_records (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  document_id TEXT NOT NULL,
  method TEXT NOT NULL,
  location TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	if err != nil {
		return nil, fmt.Errorf("indexstore: bootstrap table: %w", err)
	}
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS index_records_lookup_idx ON index_records (username, document_id, method, status)`)
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Create(ctx context.Context, r Record) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
INSERT INTO index_records (id, username, document_id, method, location, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
ON CONFLICT (id) DO UPDATE SET location=EXCLUDED.location, status=EXCLUDED.status, updated_at=EXCLUDED.updated_at
`, r.ID, r.Username, r.DocumentID, r.Method, r.Location, r.Status, now)
	if err != nil {
		return fmt.Errorf("indexstore: create record: %w", err)
	}
	return nil
}

func (s *pgStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE index_records SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("indexstore: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("indexstore: record %s not found", id)
	}
	return nil
}

// GetReady returns the most recently updated ready record for the given
// (username, documentID, method), implementing "last-wins" lookup: older
// ready builds are superseded by newer ones even if never deleted.
func (s *pgStore) GetReady(ctx context.Context, username, documentID, method string) (Record, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, username, document_id, method, location, status, created_at, updated_at
FROM index_records
WHERE username=$1 AND document_id=$2 AND method=$3 AND status=$4
ORDER BY updated_at DESC
LIMIT 1
`, username, documentID, method, StatusReady)

	var r Record
	if err := row.Scan(&r.ID, &r.Username, &r.DocumentID, &r.Method, &r.Location, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("indexstore: get ready record: %w", err)
	}
	return r, true, nil
}

func (s *pgStore) ListByUser(ctx context.Context, username string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, username, document_id, method, location, status, created_at, updated_at
FROM index_records WHERE username=$1 ORDER BY updated_at DESC
`, username)
	if err != nil {
		return nil, fmt.Errorf("indexstore: list by user: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Username, &r.DocumentID, &r.Method, &r.Location, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("indexstore: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
