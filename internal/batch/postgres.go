package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore persists AnalysisBatches and their AnalysisResults to
// Postgres, grounded on the same bootstrap/upsert idiom as
// internal/indexstore/postgres.go.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgres bootstraps the analysis_batches and analysis_results
// tables and returns a Store backed by pool.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS analysis_batches (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  document_id TEXT NOT NULL,
  query TEXT NOT NULL,
  total_variants INT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	if err != nil {
		return nil, fmt.Errorf("batch: bootstrap analysis_batches table: %w", err)
	}
	_, err = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS analysis_results (
  batch_id TEXT NOT NULL,
  method TEXT NOT NULL,
  model TEXT NOT NULL,
  answer TEXT NOT NULL DEFAULT '',
  sources JSONB NOT NULL DEFAULT '[]',
  error TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (batch_id, method, model)
);
`)
	if err != nil {
		return nil, fmt.Errorf("batch: bootstrap analysis_results table: %w", err)
	}
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS analysis_results_batch_idx ON analysis_results (batch_id)`)
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) CreateBatch(ctx context.Context, b AnalysisBatch) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO analysis_batches (id, username, document_id, query, total_variants, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING
`, b.ID, b.Username, b.DocumentID, b.Query, b.TotalVariants, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("batch: create batch: %w", err)
	}
	return nil
}

func (s *pgStore) AppendResult(ctx context.Context, r AnalysisResult) error {
	sources, err := json.Marshal(r.Sources)
	if err != nil {
		return fmt.Errorf("batch: marshal sources: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO analysis_results (batch_id, method, model, answer, sources, error, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (batch_id, method, model) DO UPDATE SET
  answer=EXCLUDED.answer, sources=EXCLUDED.sources, error=EXCLUDED.error
`, r.BatchID, r.Method, r.Model, r.Answer, sources, r.Err, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("batch: append result: %w", err)
	}
	return nil
}

func (s *pgStore) GetBatch(ctx context.Context, id string) (AnalysisBatch, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, username, document_id, query, total_variants, created_at
FROM analysis_batches WHERE id=$1
`, id)

	var b AnalysisBatch
	if err := row.Scan(&b.ID, &b.Username, &b.DocumentID, &b.Query, &b.TotalVariants, &b.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return AnalysisBatch{}, false, nil
		}
		return AnalysisBatch{}, false, fmt.Errorf("batch: get batch: %w", err)
	}
	return b, true, nil
}

func (s *pgStore) ListResults(ctx context.Context, batchID string) ([]AnalysisResult, error) {
	rows, err := s.pool.Query(ctx, `
SELECT batch_id, method, model, answer, sources, error
FROM analysis_results WHERE batch_id=$1 ORDER BY created_at ASC
`, batchID)
	if err != nil {
		return nil, fmt.Errorf("batch: list results: %w", err)
	}
	defer rows.Close()

	var out []AnalysisResult
	for rows.Next() {
		var r AnalysisResult
		var sources []byte
		if err := rows.Scan(&r.BatchID, &r.Method, &r.Model, &r.Answer, &sources, &r.Err); err != nil {
			return nil, fmt.Errorf("batch: scan result: %w", err)
		}
		if len(sources) > 0 {
			_ = json.Unmarshal(sources, &r.Sources)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
