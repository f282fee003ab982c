package chunker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordOverlapEmbedder is a deterministic test double: each dimension is a
// fixed vocabulary word's count in the text, so sentences sharing more
// words get higher cosine similarity without any network call.
type wordOverlapEmbedder struct {
	vocab []string
}

func (e *wordOverlapEmbedder) Dimension() int { return len(e.vocab) }

func (e *wordOverlapEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(e.vocab))
	for i, w := range e.vocab {
		vec[i] = float32(strings.Count(lower, w))
	}
	return vec, nil
}

func newWordOverlapEmbedder() *wordOverlapEmbedder {
	return &wordOverlapEmbedder{vocab: []string{"cats", "pets", "sleep", "stock", "market", "rates", "quarter"}}
}

type failingEmbedder struct{}

func (failingEmbedder) Dimension() int { return 1 }
func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding provider unavailable")
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	_, err := New(Strategy("bogus"), DefaultConfig())
	require.Error(t, err)
}

func TestNewClampsOverlapBelowSize(t *testing.T) {
	c, err := New(Fixed, Config{Size: 10, Overlap: 10})
	require.NoError(t, err)
	out := c.Chunk(context.Background(), strings.Repeat("a", 50))
	require.NotEmpty(t, out)
}

func TestFixedChunkCoversAllInputAndRespectsOverlap(t *testing.T) {
	c, err := New(Fixed, Config{Size: 10, Overlap: 3})
	require.NoError(t, err)
	text := strings.Repeat("x", 25)
	out := c.Chunk(context.Background(), text)
	require.NotEmpty(t, out)
	total := 0
	for _, chunk := range out {
		assert.LessOrEqual(t, len([]rune(chunk)), 10)
		total += len([]rune(chunk))
	}
	// Every chunk after the first repeats the previous chunk's last 3 runes.
	assert.Equal(t, len(text), total-(len(out)-1)*3)
}

func TestFixedChunkEmptyInput(t *testing.T) {
	c, _ := New(Fixed, DefaultConfig())
	assert.Empty(t, c.Chunk(context.Background(), "   "))
	assert.Empty(t, c.Chunk(context.Background(), ""))
}

func TestParagraphChunkPacksParagraphsWithinSize(t *testing.T) {
	c, err := New(Paragraph, Config{Size: 1000, Overlap: 0})
	require.NoError(t, err)
	text := "first paragraph here.\n\nsecond paragraph here.\n\nthird paragraph here."
	out := c.Chunk(context.Background(), text)
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "first paragraph")
	assert.Contains(t, out[0], "third paragraph")
}

func TestParagraphChunkSplitsWhenOverSize(t *testing.T) {
	c, err := New(Paragraph, Config{Size: 20, Overlap: 5})
	require.NoError(t, err)
	text := "one two three four five.\n\nsix seven eight nine ten.\n\neleven twelve thirteen."
	out := c.Chunk(context.Background(), text)
	require.Greater(t, len(out), 1)
}

func TestSemanticChunkGroupsSimilarSentences(t *testing.T) {
	c, err := New(Semantic, Config{Size: 1000, Threshold: 0.1, Embedder: newWordOverlapEmbedder()})
	require.NoError(t, err)
	text := "Cats are small pets. Cats like to sleep. The stock market fell sharply today. Interest rates rose this quarter."
	out := c.Chunk(context.Background(), text)
	require.NotEmpty(t, out)
	assert.LessOrEqual(t, len(out), 4)
}

func TestSemanticChunkEmptyInput(t *testing.T) {
	c, _ := New(Semantic, Config{Embedder: newWordOverlapEmbedder()})
	assert.Empty(t, c.Chunk(context.Background(), ""))
}

func TestSemanticChunkWithoutEmbedderFallsBackToOneSentencePerChunk(t *testing.T) {
	c, err := New(Semantic, DefaultConfig())
	require.NoError(t, err)
	text := "Cats are small pets. Dogs are loyal pets. Rates rose this quarter."
	out := c.Chunk(context.Background(), text)
	require.Len(t, out, 3)
}

func TestSemanticChunkEmbedFailureFallsBackToOneSentencePerChunk(t *testing.T) {
	c, err := New(Semantic, Config{Size: 1000, Threshold: 0.5, Embedder: failingEmbedder{}})
	require.NoError(t, err)
	text := "Cats are small pets. Dogs are loyal pets. Rates rose this quarter."
	out := c.Chunk(context.Background(), text)
	require.Len(t, out, 3)
}

func TestStrategyReportedCorrectly(t *testing.T) {
	for _, s := range []Strategy{Fixed, Paragraph, Semantic} {
		c, err := New(s, DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, s, c.Strategy())
	}
}
