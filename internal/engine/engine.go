// Package engine implements the four retrieval strategies (sparse, dense,
// hybrid, iterative) plus the optional lexical reranker, behind one shared
// contract so Pipeline can treat them uniformly.
package engine

import "context"

// Method names a retrieval strategy. Values are the closed enum named in
// the variant table.
type Method string

const (
	MethodSparse    Method = "sparse"
	MethodDense     Method = "dense"
	MethodHybrid    Method = "hybrid"
	MethodIterative Method = "iterative"
	MethodRerank    Method = "rerank"
)

// Chunk is the unit of retrieval: a span of source text plus metadata
// carried through from ingestion.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Result is one retrieved chunk with its method-specific score. Scores are
// not comparable across methods.
type Result struct {
	Chunk Chunk
	Score float64
	Rank  int
}

// Engine is the uniform contract every retrieval strategy satisfies.
// Build constructs the in-memory index from chunks (replacing any prior
// state); Retrieve returns the top K results for a query; Save/Load
// persist and restore the in-memory state to/from a single io artifact
// addressed by path.
type Engine interface {
	Method() Method
	Build(ctx context.Context, chunks []Chunk) error
	Retrieve(ctx context.Context, query string, k int) ([]Result, error)
	Save(path string) error
	Load(path string) error
	Empty() bool
}

// Embedder produces a dense vector for a piece of text. DenseEngine and
// IterativeEngine depend on this narrow interface rather than a concrete
// HTTP client so tests can supply a deterministic double.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
