package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirza258/ragreader/internal/chunker"
	"github.com/thirza258/ragreader/internal/documents"
	"github.com/thirza258/ragreader/internal/engine"
	"github.com/thirza258/ragreader/internal/indexstore"
	"github.com/thirza258/ragreader/internal/llm"
)

type fakeAdapter struct{ model string }

func (f *fakeAdapter) Model() string { return f.model }
func (f *fakeAdapter) RAGGenerate(ctx context.Context, query string, contexts []string) (string, error) {
	return "answer for: " + query, nil
}

// PromptGenerate hands back the question an optimization prompt carries,
// so Run retrieves with the caller's own (sanitized) query.
func (f *fakeAdapter) PromptGenerate(ctx context.Context, prompt string) (string, error) {
	if i := strings.LastIndex(prompt, "Question: "); i >= 0 {
		return prompt[i+len("Question: "):], nil
	}
	return prompt, nil
}
func (f *fakeAdapter) VoteGenerate(ctx context.Context, prompt string) (llm.VoteDecision, error) {
	return llm.VoteDecision{Vote: "yes"}, nil
}

func sampleDoc() documents.Document {
	return documents.Document{
		ID:       "doc-1",
		Username: "alice",
		Source:   documents.SourceText,
		Text:     "cats are small pets. dogs are loyal pets. rates rose this quarter.",
	}
}

func newTestSparsePipeline(t *testing.T) (Pipeline, indexstore.Store) {
	t.Helper()
	store := indexstore.NewMemory()
	root := t.TempDir()
	p := New(engine.MethodSparse, engine.NewSparse(), &fakeAdapter{model: "gpt-4o-mini"}, root, store)
	return p, store
}

func TestInitRejectsEmptyChunks(t *testing.T) {
	p, _ := newTestSparsePipeline(t)
	err := p.Init(context.Background(), "alice", "doc-1", nil)
	require.Error(t, err)
}

func TestInitThenRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, store := newTestSparsePipeline(t)

	chunks := []engine.Chunk{
		{ID: "c1", Text: "cats are small pets"},
		{ID: "c2", Text: "rates rose this quarter"},
	}
	require.NoError(t, p.Init(ctx, "alice", "doc-1", chunks))

	ready, err := p.IsInitialized(ctx, "alice", "doc-1")
	require.NoError(t, err)
	assert.True(t, ready)

	record, ok, err := store.GetReady(ctx, "alice", "doc-1", string(engine.MethodSparse))
	require.NoError(t, err)
	require.True(t, ok)
	assert.DirExists(t, filepath.Join(record.Location))

	result, err := p.Run(ctx, "alice", "doc-1", "  cats   pets  ")
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "cats pets")
	assert.NotEmpty(t, result.Sources)
}

func TestRunBeforeInitReturnsNotReady(t *testing.T) {
	p, _ := newTestSparsePipeline(t)
	_, err := p.Run(context.Background(), "alice", "doc-1", "cats")
	require.Error(t, err)
}

func TestRunRejectsBlankQuery(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestSparsePipeline(t)
	require.NoError(t, p.Init(ctx, "alice", "doc-1", []engine.Chunk{{ID: "c1", Text: "hello"}}))

	_, err := p.Run(ctx, "alice", "doc-1", "   ")
	require.Error(t, err)
}

func TestSanitizeQueryCollapsesWhitespace(t *testing.T) {
	got, err := SanitizeQuery("  what   is  X?  ")
	require.NoError(t, err)
	assert.Equal(t, "what is X?", got)

	_, err = SanitizeQuery("   ")
	require.Error(t, err)
}

func TestBuildChunksAssignsStableIDs(t *testing.T) {
	c, err := chunker.New(chunker.Fixed, chunker.Config{Size: 40, Overlap: 5})
	require.NoError(t, err)

	chunks := BuildChunks(context.Background(), c, "doc-1", sampleDoc())
	require.NotEmpty(t, chunks)
	assert.Equal(t, "doc-1-0", chunks[0].ID)
	assert.Equal(t, "alice", chunks[0].Metadata["username"])
}
