package indexstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store double for tests and for running
// without Postgres configured, grounded on the teacher's pattern of
// pairing every real backend with a deterministic in-memory twin (see
// internal/rag/embedder.deterministicEmbedder).
type memStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemory returns an empty in-memory Store.
func NewMemory() Store {
	return &memStore{records: make(map[string]Record)}
}

func (m *memStore) Create(ctx context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	m.records[r.ID] = r
	return nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("indexstore: record %s not found", id)
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	m.records[id] = r
	return nil
}

func (m *memStore) GetReady(ctx context.Context, username, documentID, method string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []Record
	for _, r := range m.records {
		if r.Username == username && r.DocumentID == documentID && r.Method == method && r.Status == StatusReady {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return Record{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt) })
	return candidates[0], true, nil
}

func (m *memStore) ListByUser(ctx context.Context, username string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, r := range m.records {
		if r.Username == username {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
