package batch

import (
	"context"
	"sync"
	"time"
)

type memStore struct {
	mu      sync.Mutex
	batches map[string]AnalysisBatch
	results map[string][]AnalysisResult
}

// NewMemoryStore returns an in-memory Store double for tests.
func NewMemoryStore() Store {
	return &memStore{batches: make(map[string]AnalysisBatch), results: make(map[string][]AnalysisResult)}
}

func (m *memStore) CreateBatch(ctx context.Context, b AnalysisBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[b.ID] = b
	return nil
}

func (m *memStore) AppendResult(ctx context.Context, r AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.BatchID] = append(m.results[r.BatchID], r)
	return nil
}

func (m *memStore) GetBatch(ctx context.Context, id string) (AnalysisBatch, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	return b, ok, nil
}

func (m *memStore) ListResults(ctx context.Context, batchID string) ([]AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AnalysisResult, len(m.results[batchID]))
	copy(out, m.results[batchID])
	return out, nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value   string
	expires time.Time
}

// NewMemoryCache returns an in-memory Cache double for tests.
func NewMemoryCache() Cache {
	return &memCache{entries: make(map[string]cacheEntry)}
}

func (c *memCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *memCache) Set(ctx context.Context, key, batchID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: batchID, expires: time.Now().Add(ttl)}
	return nil
}
