package job

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore persists Jobs to Postgres, grounded on
// internal/persistence/databases/postgres_search.go's bootstrap/upsert
// idiom.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgres bootstraps the jobs table and returns a Store backed by
// pool.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  progress INT NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  error TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	if err != nil {
		return nil, fmt.Errorf("job store: bootstrap table: %w", err)
	}
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Create(ctx context.Context, j Job) error {
	if j.Status == "" {
		j.Status = StatusQueued
	}
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
INSERT INTO jobs (id, username, progress, status, error, created_at, updated_at)
VALUES ($1,$2,0,$3,'',$4,$4)
ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, updated_at=EXCLUDED.updated_at
`, j.ID, j.Username, j.Status, now)
	if err != nil {
		return fmt.Errorf("job store: create %s: %w", j.ID, err)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id string) (Job, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, username, progress, status, error, created_at, updated_at FROM jobs WHERE id=$1`, id)
	var j Job
	if err := row.Scan(&j.ID, &j.Username, &j.Progress, &j.Status, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return Job{}, false, nil
		}
		return Job{}, false, fmt.Errorf("job store: get %s: %w", id, err)
	}
	return j, true, nil
}

func (s *pgStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE jobs SET progress=$1, status='running', updated_at=$2
WHERE id=$3 AND progress <= $1
`, progress, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("job store: update progress %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job store: progress update for %s rejected (not found or non-monotonic)", id)
	}
	return nil
}

func (s *pgStore) Finish(ctx context.Context, id string, status Status, errMsg string) error {
	progress := 0
	if status == StatusSucceeded {
		progress = 100
	}
	_, err := s.pool.Exec(ctx, `
UPDATE jobs SET status=$1, error=$2, updated_at=$3, progress = GREATEST(progress, $4)
WHERE id=$5
`, status, errMsg, time.Now().UTC(), progress, id)
	if err != nil {
		return fmt.Errorf("job store: finish %s: %w", id, err)
	}
	return nil
}
