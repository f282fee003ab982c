package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirza258/ragreader/internal/config"
	"github.com/thirza258/ragreader/internal/engine"
	"github.com/thirza258/ragreader/internal/indexstore"
)

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		OpenAI:         config.ProviderConfig{APIKey: "test-openai-key"},
		Anthropic:      config.ProviderConfig{APIKey: "test-anthropic-key"},
		Google:         config.ProviderConfig{APIKey: "test-google-key"},
		EmbeddingsURL:  "http://localhost:0/embeddings",
		EmbeddingModel: "test-embedding-model",
	}
}

func TestNewBuildsOnePipelinePerVariant(t *testing.T) {
	variants := DefaultVariants([]string{"gpt-4o-mini", "claude-3-haiku-20240307", "gemini-1.5-flash"})
	reg, err := New(context.Background(), testLLMConfig(), t.TempDir(), indexstore.NewMemory(), variants)
	require.NoError(t, err)
	assert.Len(t, reg.Variants(), len(variants))

	p, ok := reg.Get(engine.MethodHybrid, "gpt-4o-mini")
	require.True(t, ok)
	assert.Equal(t, engine.MethodHybrid, p.Method())
	assert.Equal(t, "gpt-4o-mini", p.Model())
}

func TestGetMissingVariantReturnsFalse(t *testing.T) {
	reg, err := New(context.Background(), testLLMConfig(), t.TempDir(), indexstore.NewMemory(), DefaultVariants([]string{"gpt-4o-mini"}))
	require.NoError(t, err)

	_, ok := reg.Get(engine.MethodDense, "claude-3-haiku-20240307")
	assert.False(t, ok)
}

func TestNewRejectsUnsupportedModelPrefix(t *testing.T) {
	_, err := New(context.Background(), testLLMConfig(), t.TempDir(), indexstore.NewMemory(), []Variant{
		{Method: engine.MethodSparse, Model: "llama-unsupported"},
	})
	require.Error(t, err)
}
