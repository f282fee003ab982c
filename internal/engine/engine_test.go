package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChunks() []Chunk {
	return []Chunk{
		{ID: "c1", Text: "cats are small domestic pets that like to sleep"},
		{ID: "c2", Text: "dogs are loyal pets that like to play fetch"},
		{ID: "c3", Text: "the stock market fell sharply amid rate fears"},
		{ID: "c4", Text: "interest rates rose again this quarter"},
	}
}

func TestSparseEngineRetrieveOrdersByRelevance(t *testing.T) {
	ctx := context.Background()
	e := NewSparse()
	require.NoError(t, e.Build(ctx, sampleChunks()))

	results, err := e.Retrieve(ctx, "pets", 4)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, []string{"c1", "c2"}, results[0].Chunk.ID)
}

func TestSparseEngineSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := NewSparse()
	require.NoError(t, e.Build(ctx, sampleChunks()))

	dir := filepath.Join(t.TempDir(), "sparse.bleve")
	require.NoError(t, e.Save(dir))

	e2 := NewSparse()
	require.NoError(t, e2.Load(dir))

	results, err := e2.Retrieve(ctx, "rates", 4)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c4", results[0].Chunk.ID)
}

func TestDenseEngineRetrieveIsReproducible(t *testing.T) {
	ctx := context.Background()
	e := NewDense(newDeterministicEmbedder(32))
	require.NoError(t, e.Build(ctx, sampleChunks()))

	r1, err := e.Retrieve(ctx, "pets", 2)
	require.NoError(t, err)
	r2, err := e.Retrieve(ctx, "pets", 2)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestDenseEngineSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := NewDense(newDeterministicEmbedder(16))
	require.NoError(t, e.Build(ctx, sampleChunks()))

	path := filepath.Join(t.TempDir(), "dense.bin")
	require.NoError(t, e.Save(path))

	e2 := NewDense(newDeterministicEmbedder(16))
	require.NoError(t, e2.Load(path))

	got, err := e2.Retrieve(ctx, "rates quarter", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c4", got[0].Chunk.ID)
}

type inconsistentDimEmbedder struct{ calls int }

func (e *inconsistentDimEmbedder) Dimension() int { return 8 }

func (e *inconsistentDimEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.calls == 1 {
		return make([]float32, 8), nil
	}
	return make([]float32, 4), nil // inconsistent dimensionality
}

func TestDenseEngineBuildRejectsInconsistentDimensionality(t *testing.T) {
	ctx := context.Background()
	e := NewDense(&inconsistentDimEmbedder{})
	err := e.Build(ctx, sampleChunks()[:2])
	require.Error(t, err)
}

func TestDenseEngineLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a dense artifact"), 0o644))

	e := NewDense(newDeterministicEmbedder(8))
	err := e.Load(path)
	require.Error(t, err)
}

func TestFuseRRFOrdersByCombinedRank(t *testing.T) {
	sparse := []Result{
		{Chunk: Chunk{ID: "a"}, Rank: 1},
		{Chunk: Chunk{ID: "b"}, Rank: 2},
	}
	dense := []Result{
		{Chunk: Chunk{ID: "b"}, Rank: 1},
		{Chunk: Chunk{ID: "c"}, Rank: 2},
	}
	fused := FuseRRF(DefaultRRFK, sparse, dense)
	require.Len(t, fused, 3)
	assert.Equal(t, "b", fused[0].Chunk.ID, "b appears in both lists and should rank first")
}

func TestFuseRRFTiesBreakByAppearanceOrder(t *testing.T) {
	// x and y never co-occur with anything else, so each gets an identical
	// fused score of 1/(k+1). x appears first in the sparse list and should
	// sort before y, which only appears in the dense list.
	sparse := []Result{
		{Chunk: Chunk{ID: "x"}, Rank: 1},
	}
	dense := []Result{
		{Chunk: Chunk{ID: "y"}, Rank: 1},
	}
	fused := FuseRRF(DefaultRRFK, sparse, dense)
	require.Len(t, fused, 2)
	assert.Equal(t, "x", fused[0].Chunk.ID, "sparse-list appearance order should win the tie")
	assert.Equal(t, "y", fused[1].Chunk.ID)

	// Reversing appearance order (y first via sparse, x only in dense)
	// should flip the tie-break, proving it isn't keyed off chunk ID.
	sparse2 := []Result{
		{Chunk: Chunk{ID: "y"}, Rank: 1},
	}
	dense2 := []Result{
		{Chunk: Chunk{ID: "x"}, Rank: 1},
	}
	fused2 := FuseRRF(DefaultRRFK, sparse2, dense2)
	require.Len(t, fused2, 2)
	assert.Equal(t, "y", fused2[0].Chunk.ID)
	assert.Equal(t, "x", fused2[1].Chunk.ID)
}

func TestHybridEngineBuildAndRetrieve(t *testing.T) {
	ctx := context.Background()
	h := NewHybrid(NewSparse(), NewDense(newDeterministicEmbedder(16)))
	require.NoError(t, h.Build(ctx, sampleChunks()))

	results, err := h.Retrieve(ctx, "pets", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestHybridEngineSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := NewHybrid(NewSparse(), NewDense(newDeterministicEmbedder(16)))
	require.NoError(t, h.Build(ctx, sampleChunks()))

	dir := filepath.Join(t.TempDir(), "hybrid-artifact")
	require.NoError(t, h.Save(dir))

	h2 := NewHybrid(NewSparse(), NewDense(newDeterministicEmbedder(16)))
	require.NoError(t, h2.Load(dir))

	results, err := h2.Retrieve(ctx, "rates", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestIterativeEngineStopsWhenJudgeSatisfied(t *testing.T) {
	ctx := context.Background()
	judge := &fakeJudge{sufficientAfter: 1}
	it := NewIterative(NewDense(newDeterministicEmbedder(16)), judge)
	require.NoError(t, it.Build(ctx, sampleChunks()))

	results, err := it.Retrieve(ctx, "pets", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	// Judged insufficient on the first pass, sufficient on the second.
	assert.Equal(t, 2, judge.calls)
}

func TestIterativeEngineStopsAtMaxRetries(t *testing.T) {
	ctx := context.Background()
	judge := &fakeJudge{sufficientAfter: 100}
	it := NewIterative(NewDense(newDeterministicEmbedder(16)), judge)
	require.NoError(t, it.Build(ctx, sampleChunks()))

	_, err := it.Retrieve(ctx, "pets", 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRetries+1, judge.calls)
}

func TestRerankEngineOrdersByBlendedScore(t *testing.T) {
	ctx := context.Background()
	r := NewRerank(NewHybrid(NewSparse(), NewDense(newDeterministicEmbedder(16))))
	require.NoError(t, r.Build(ctx, sampleChunks()))

	results, err := r.Retrieve(ctx, "pets sleep", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].Chunk.ID)
}
