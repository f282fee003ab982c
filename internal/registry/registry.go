// Package registry eagerly builds one Pipeline per (method, model) pair
// named in the variant table and exposes a read-only lookup, grounded on
// SPEC_FULL.md §9's "explicit application object" redesign note and the
// teacher's internal/agentd/run.go dependency-injection app struct.
package registry

import (
	"context"
	"fmt"

	"github.com/thirza258/ragreader/internal/config"
	"github.com/thirza258/ragreader/internal/embedding"
	"github.com/thirza258/ragreader/internal/engine"
	"github.com/thirza258/ragreader/internal/indexstore"
	"github.com/thirza258/ragreader/internal/llm"
	"github.com/thirza258/ragreader/internal/llm/providers"
	"github.com/thirza258/ragreader/internal/pipeline"
)

// Variant names one (method, model) row of the table.
type Variant struct {
	Method engine.Method
	Model  string
}

// DefaultVariants is the cross product named in the spec's variant
// table: dense/sparse/hybrid/iterative x 3 models, plus the optional
// rerank method which is model-agnostic (it composes Hybrid and does not
// call an LLM for ranking), and is registered once per model anyway so
// a caller can route by (method, model) uniformly.
func DefaultVariants(models []string) []Variant {
	var out []Variant
	for _, m := range models {
		out = append(out,
			Variant{Method: engine.MethodSparse, Model: m},
			Variant{Method: engine.MethodDense, Model: m},
			Variant{Method: engine.MethodHybrid, Model: m},
			Variant{Method: engine.MethodIterative, Model: m},
			Variant{Method: engine.MethodRerank, Model: m},
		)
	}
	return out
}

// Registry holds one constructed Pipeline per Variant.
type Registry struct {
	pipelines map[Variant]pipeline.Pipeline
}

// Get returns the Pipeline for (method, model), or false if that variant
// was never registered (the closed-enum "unsupported variant" case).
func (r *Registry) Get(method engine.Method, model string) (pipeline.Pipeline, bool) {
	p, ok := r.pipelines[Variant{Method: method, Model: model}]
	return p, ok
}

// Variants lists every registered (method, model) pair.
func (r *Registry) Variants() []Variant {
	out := make([]Variant, 0, len(r.pipelines))
	for v := range r.pipelines {
		out = append(out, v)
	}
	return out
}

// New eagerly constructs a Pipeline for every requested Variant.
func New(ctx context.Context, cfg config.LLMConfig, root string, store indexstore.Store, variants []Variant) (*Registry, error) {
	embedder := embedding.New(cfg.EmbeddingsURL, cfg.OpenAI.APIKey, cfg.EmbeddingModel, 1536)

	adapters := make(map[string]llm.Adapter)
	getAdapter := func(model string) (llm.Adapter, error) {
		if a, ok := adapters[model]; ok {
			return a, nil
		}
		a, err := providers.New(ctx, cfg, model)
		if err != nil {
			return nil, err
		}
		adapters[model] = a
		return a, nil
	}

	pipelines := make(map[Variant]pipeline.Pipeline, len(variants))
	for _, v := range variants {
		adapter, err := getAdapter(v.Model)
		if err != nil {
			return nil, fmt.Errorf("registry: build adapter for model %s: %w", v.Model, err)
		}

		var eng engine.Engine
		switch v.Method {
		case engine.MethodSparse:
			eng = engine.NewSparse()
		case engine.MethodDense:
			eng = engine.NewDense(embedder)
		case engine.MethodHybrid:
			eng = engine.NewHybrid(engine.NewSparse(), engine.NewDense(embedder))
		case engine.MethodIterative:
			eng = engine.NewIterative(engine.NewDense(embedder), llm.NewJudge(adapter))
		case engine.MethodRerank:
			eng = engine.NewRerank(engine.NewHybrid(engine.NewSparse(), engine.NewDense(embedder)))
		default:
			return nil, fmt.Errorf("registry: unknown method %q", v.Method)
		}

		pipelines[v] = pipeline.New(v.Method, eng, adapter, root, store)
	}

	return &Registry{pipelines: pipelines}, nil
}
