package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultRRFK is the Reciprocal Rank Fusion smoothing constant, matching
// the source's and the teacher's fusion.go default.
const DefaultRRFK = 60

// hybridEngine fuses independent sparse and dense retrievals with
// Reciprocal Rank Fusion, grounded on
// internal/rag/retrieve/fusion.go's FuseRRF and on
// original_source/backend/hybrid_rag/hybrid_rag.py for the child
// candidate-pool sizing (each child is asked for 2x the final top-k).
type hybridEngine struct {
	sparse Engine
	dense  Engine
	rrfK   int
}

// NewHybrid composes a sparse and dense child engine behind the Hybrid
// method.
func NewHybrid(sparse, dense Engine) Engine {
	return &hybridEngine{sparse: sparse, dense: dense, rrfK: DefaultRRFK}
}

func (h *hybridEngine) Method() Method { return MethodHybrid }

func (h *hybridEngine) Empty() bool { return h.sparse.Empty() && h.dense.Empty() }

func (h *hybridEngine) Build(ctx context.Context, chunks []Chunk) error {
	if err := h.sparse.Build(ctx, chunks); err != nil {
		return fmt.Errorf("hybrid engine: build sparse child: %w", err)
	}
	if err := h.dense.Build(ctx, chunks); err != nil {
		return fmt.Errorf("hybrid engine: build dense child: %w", err)
	}
	return nil
}

// FuseRRF combines ranked result lists with Reciprocal Rank Fusion:
// score(doc) = sum over lists containing doc of 1/(k+rank). Ties break by
// fused score desc, then by appearance order in lists[0] (the sparse
// list), then lists[1] (the dense list), matching the first position each
// chunk is seen at across the inputs in the order given.
func FuseRRF(k int, lists ...[]Result) []Result {
	type acc struct {
		chunk Chunk
		score float64
	}
	byID := make(map[string]*acc)
	appearance := make(map[string]int)
	var ids []string

	for _, list := range lists {
		for _, r := range list {
			a, ok := byID[r.Chunk.ID]
			if !ok {
				a = &acc{chunk: r.Chunk}
				byID[r.Chunk.ID] = a
				appearance[r.Chunk.ID] = len(ids)
				ids = append(ids, r.Chunk.ID)
			}
			a.score += 1.0 / float64(k+r.Rank)
		}
	}

	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		a := byID[id]
		out = append(out, Result{Chunk: a.chunk, Score: a.score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return appearance[out[i].Chunk.ID] < appearance[out[j].Chunk.ID]
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func (h *hybridEngine) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	childK := k * 2

	type childResult struct {
		results []Result
		err     error
	}
	sparseCh := make(chan childResult, 1)
	denseCh := make(chan childResult, 1)

	go func() {
		r, err := h.sparse.Retrieve(ctx, query, childK)
		sparseCh <- childResult{results: r, err: err}
	}()
	go func() {
		r, err := h.dense.Retrieve(ctx, query, childK)
		denseCh <- childResult{results: r, err: err}
	}()

	sr := <-sparseCh
	dr := <-denseCh
	if sr.err != nil {
		return nil, fmt.Errorf("hybrid engine: sparse retrieve: %w", sr.err)
	}
	if dr.err != nil {
		return nil, fmt.Errorf("hybrid engine: dense retrieve: %w", dr.err)
	}

	fused := FuseRRF(h.rrfK, sr.results, dr.results)
	if k < len(fused) {
		fused = fused[:k]
	}
	return fused, nil
}

func (h *hybridEngine) Save(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("hybrid engine: create artifact dir: %w", err)
	}
	if err := h.sparse.Save(filepath.Join(path, "sparse.bleve")); err != nil {
		return fmt.Errorf("hybrid engine: save sparse child: %w", err)
	}
	if err := h.dense.Save(filepath.Join(path, "dense.bin")); err != nil {
		return fmt.Errorf("hybrid engine: save dense child: %w", err)
	}
	return nil
}

func (h *hybridEngine) Load(path string) error {
	if err := h.sparse.Load(filepath.Join(path, "sparse.bleve")); err != nil {
		return fmt.Errorf("hybrid engine: load sparse child: %w", err)
	}
	if err := h.dense.Load(filepath.Join(path, "dense.bin")); err != nil {
		return fmt.Errorf("hybrid engine: load dense child: %w", err)
	}
	return nil
}
