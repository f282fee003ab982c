package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// rerankEngine wraps Hybrid with a lexical term-overlap rerank pass over
// the fused candidate set, grounded on
// internal/rag/retrieve/rerank.go's Reranker interface. It is a
// deliberate simplification of the source's sentence_transformers
// cross-encoder reranker (see DESIGN.md), consistent with the spec's
// Non-goal excluding ranking-quality tuning beyond RRF/BM25/cosine
// defaults.
type rerankEngine struct {
	hybrid Engine
}

// NewRerank composes a Hybrid engine with a lexical rerank pass.
func NewRerank(hybrid Engine) Engine {
	return &rerankEngine{hybrid: hybrid}
}

func (r *rerankEngine) Method() Method { return MethodRerank }
func (r *rerankEngine) Empty() bool    { return r.hybrid.Empty() }

func (r *rerankEngine) Build(ctx context.Context, chunks []Chunk) error {
	if err := r.hybrid.Build(ctx, chunks); err != nil {
		return fmt.Errorf("rerank engine: build hybrid child: %w", err)
	}
	return nil
}

func (r *rerankEngine) Save(path string) error { return r.hybrid.Save(path) }
func (r *rerankEngine) Load(path string) error { return r.hybrid.Load(path) }

func termOverlap(query, text string) float64 {
	qTerms := strings.Fields(strings.ToLower(query))
	if len(qTerms) == 0 {
		return 0
	}
	lowText := strings.ToLower(text)
	var hits int
	for _, t := range qTerms {
		if strings.Contains(lowText, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(qTerms))
}

func (r *rerankEngine) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	candidates, err := r.hybrid.Retrieve(ctx, query, k*2)
	if err != nil {
		return nil, fmt.Errorf("rerank engine: candidate retrieve: %w", err)
	}

	maxFused := 0.0
	for _, c := range candidates {
		if c.Score > maxFused {
			maxFused = c.Score
		}
	}
	if maxFused == 0 {
		maxFused = 1
	}

	type reScored struct {
		result Result
		score  float64
	}
	out := make([]reScored, len(candidates))
	for i, c := range candidates {
		normFused := c.Score / maxFused
		lexical := termOverlap(query, c.Chunk.Text)
		out[i] = reScored{result: c, score: 0.5*normFused + 0.5*lexical}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })

	if k > len(out) {
		k = len(out)
	}
	results := make([]Result, 0, k)
	for i, rs := range out[:k] {
		rs.result.Score = rs.score
		rs.result.Rank = i + 1
		results = append(results, rs.result)
	}
	return results, nil
}
