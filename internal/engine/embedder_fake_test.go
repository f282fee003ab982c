package engine

import (
	"context"
	"hash/fnv"
	"strings"
)

// deterministicEmbedder hashes overlapping terms into a small fixed-width
// vector so cosine similarity rewards shared vocabulary, without requiring
// a real embeddings endpoint in tests. Grounded on the teacher's
// internal/rag/embedder.deterministicEmbedder test double.
type deterministicEmbedder struct {
	dim int
}

func newDeterministicEmbedder(dim int) *deterministicEmbedder {
	return &deterministicEmbedder{dim: dim}
}

func (d *deterministicEmbedder) Dimension() int { return d.dim }

func (d *deterministicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, d.dim)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(term))
		idx := int(h.Sum32()) % d.dim
		if idx < 0 {
			idx += d.dim
		}
		vec[idx]++
	}
	return vec, nil
}

type fakeJudge struct {
	sufficientAfter int
	calls           int
	reformulations  []string
}

func (f *fakeJudge) JudgeSufficiency(ctx context.Context, query string, collected []Result) (bool, error) {
	f.calls++
	return f.calls > f.sufficientAfter, nil
}

func (f *fakeJudge) Reformulate(ctx context.Context, currentQuery string, collected []Result) (string, error) {
	if len(f.reformulations) == 0 {
		return currentQuery + " more", nil
	}
	next := f.reformulations[0]
	f.reformulations = f.reformulations[1:]
	return next, nil
}
