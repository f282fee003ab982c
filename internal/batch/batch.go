// Package batch implements the BatchOrchestrator: concurrent fan-out of
// one query across every registered (method, model) variant, streaming
// results as they complete, with a short-lived cache so repeated
// identical queries reuse a prior batch instead of rerunning every
// variant. Grounded on internal/agent/warpp.go's errgroup.WithContext
// fan-out and internal/skills/redis_cache.go's TTL-keyed cache idiom.
package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/thirza258/ragreader/internal/chunker"
	"github.com/thirza258/ragreader/internal/documents"
	"github.com/thirza258/ragreader/internal/engine"
	"github.com/thirza258/ragreader/internal/pipeline"
	"github.com/thirza258/ragreader/internal/registry"
)

// AnalysisBatch groups the variant results for a single query.
type AnalysisBatch struct {
	ID             string
	Username       string
	DocumentID     string
	Query          string
	TotalVariants  int
	CreatedAt      time.Time
}

// AnalysisResult is one variant's outcome within a batch. Status is
// "INITIALIZING" for the transient progress event emitted while a
// variant's index is being built (§4.10 step 3b) and "" for a terminal
// result, which is the only kind persisted to Store.
type AnalysisResult struct {
	BatchID string
	Method  engine.Method
	Model   string
	Status  string
	Answer  string
	Sources []engine.Result
	Err     string
}

// Store persists batches and their accumulated results.
type Store interface {
	CreateBatch(ctx context.Context, b AnalysisBatch) error
	AppendResult(ctx context.Context, r AnalysisResult) error
	GetBatch(ctx context.Context, id string) (AnalysisBatch, bool, error)
	ListResults(ctx context.Context, batchID string) ([]AnalysisResult, error)
}

// Cache maps a (username, documentID, query) key to the batch ID that last
// answered it, with a TTL, so a repeated query within the window short-circuits
// to the existing batch rather than rerunning every variant.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, batchID string, ttl time.Duration) error
}

// Orchestrator fans a query out across every registered variant.
type Orchestrator struct {
	registry  *registry.Registry
	store     Store
	cache     Cache
	cacheTTL  time.Duration
	documents documents.Store
	chunker   chunker.Chunker
}

// New builds an Orchestrator over reg's registered variants. docs and
// chunk are used to lazily build a variant's index (§4.10 step 3b) when a
// query arrives for a (user, document) pair that isn't initialized yet.
func New(reg *registry.Registry, store Store, cache Cache, cacheTTL time.Duration, docs documents.Store, chunk chunker.Chunker) *Orchestrator {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Orchestrator{registry: reg, store: store, cache: cache, cacheTTL: cacheTTL, documents: docs, chunker: chunk}
}

func cacheKey(username, documentID, query string) string {
	h := sha256.Sum256([]byte(username + "\x00" + documentID + "\x00" + query))
	return "batch:" + hex.EncodeToString(h[:])
}

// Run starts (or reuses) a batch for (username, documentID, query) and
// returns its ID plus a channel of per-variant results. The channel is
// closed once every variant has reported or ctx is canceled; a canceled
// ctx stops launching further variants at their next suspension point,
// but results already in flight still complete and are persisted.
func (o *Orchestrator) Run(ctx context.Context, username, documentID, query string) (string, <-chan AnalysisResult, error) {
	key := cacheKey(username, documentID, query)
	if cached, ok, err := o.cache.Get(ctx, key); err == nil && ok {
		if existing, err := o.store.ListResults(ctx, cached); err == nil && len(existing) > 0 {
			out := make(chan AnalysisResult, len(existing))
			for _, r := range existing {
				out <- r
			}
			close(out)
			return cached, out, nil
		}
	}

	variants := o.registry.Variants()

	batchID := uuid.NewString()
	if err := o.store.CreateBatch(ctx, AnalysisBatch{
		ID: batchID, Username: username, DocumentID: documentID, Query: query,
		TotalVariants: len(variants), CreatedAt: time.Now().UTC(),
	}); err != nil {
		return "", nil, fmt.Errorf("batch orchestrator: create batch: %w", err)
	}
	_ = o.cache.Set(ctx, key, batchID, o.cacheTTL)

	// Buffered for two sends per variant (an optional INITIALIZING event
	// plus the terminal result) so a slow consumer can't deadlock the
	// fan-out goroutines.
	out := make(chan AnalysisResult, len(variants)*2)

	g, gctx := errgroup.WithContext(ctx)
	persistCtx := context.WithoutCancel(ctx)
	var mu sync.Mutex // guards channel sends against concurrent writers ordering

	for _, v := range variants {
		v := v
		g.Go(func() error {
			p, ok := o.registry.Get(v.Method, v.Model)
			if !ok {
				return nil
			}

			ready, err := p.IsInitialized(gctx, username, documentID)
			if err != nil {
				return fmt.Errorf("batch orchestrator: check initialized for %s/%s: %w", v.Method, v.Model, err)
			}
			if !ready {
				mu.Lock()
				out <- AnalysisResult{BatchID: batchID, Method: v.Method, Model: v.Model, Status: "INITIALIZING"}
				mu.Unlock()

				doc, found, err := o.documents.Get(gctx, documentID)
				if err != nil {
					return fmt.Errorf("batch orchestrator: load document for %s/%s: %w", v.Method, v.Model, err)
				}
				if !found {
					return fmt.Errorf("batch orchestrator: document %s not found for %s/%s", documentID, v.Method, v.Model)
				}
				chunks := pipeline.BuildChunks(gctx, o.chunker, documentID, doc)
				if err := p.Init(gctx, username, documentID, chunks); err != nil {
					res := AnalysisResult{BatchID: batchID, Method: v.Method, Model: v.Model, Err: err.Error()}
					if appendErr := o.store.AppendResult(persistCtx, res); appendErr != nil {
						return fmt.Errorf("batch orchestrator: persist init failure for %s/%s: %w", v.Method, v.Model, appendErr)
					}
					mu.Lock()
					out <- res
					mu.Unlock()
					return nil
				}
			}

			res := AnalysisResult{BatchID: batchID, Method: v.Method, Model: v.Model}
			runResult, err := p.Run(gctx, username, documentID, query)
			if err != nil {
				res.Err = err.Error()
			} else {
				res.Answer = runResult.Answer
				res.Sources = runResult.Sources
			}

			if appendErr := o.store.AppendResult(persistCtx, res); appendErr != nil {
				return fmt.Errorf("batch orchestrator: persist result for %s/%s: %w", v.Method, v.Model, appendErr)
			}

			mu.Lock()
			out <- res
			mu.Unlock()
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(out)
	}()

	return batchID, out, nil
}

// RedisCache adapts go-redis to the Cache interface, grounded on
// internal/skills/redis_cache.go's namespaced-key TTL pattern.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache builds a Cache backed by a go-redis client.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis cache: get %s: %w", key, err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, batchID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, batchID, ttl).Err(); err != nil {
		return fmt.Errorf("redis cache: set %s: %w", key, err)
	}
	return nil
}
