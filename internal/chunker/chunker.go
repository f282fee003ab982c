// Package chunker splits document text into retrieval chunks using one of
// three strategies: fixed-size, paragraph-boundary, or semantic similarity.
package chunker

import (
	"context"
	"fmt"

	"github.com/thirza258/ragreader/internal/engine"
)

// Strategy names a chunking strategy.
type Strategy string

const (
	Fixed     Strategy = "fixed"
	Paragraph Strategy = "paragraph"
	Semantic  Strategy = "semantic"
)

// Chunker splits text into an ordered slice of chunk strings. Implementations
// must be safe for concurrent use by multiple goroutines, since the same
// Chunker is shared across pipelines for a given method.
type Chunker interface {
	Chunk(ctx context.Context, text string) []string
	Strategy() Strategy
}

// Config parameterizes chunk construction. Size and Overlap are measured in
// runes. Semantic uses Size as a per-chunk rune cap and ignores Overlap.
type Config struct {
	Size      int
	Overlap   int
	Threshold float64 // Semantic only; similarity drop that marks a boundary.
	Embedder  engine.Embedder // Semantic only; per-sentence vectors.
}

// DefaultConfig mirrors the spec's defaults: 512-unit chunks, 50-unit
// overlap, semantic threshold 0.5.
func DefaultConfig() Config {
	return Config{Size: 512, Overlap: 50, Threshold: 0.5}
}

// New builds the Chunker for the named strategy, clamping Overlap below
// Size per the chunker contract (overlap must never reach or exceed size,
// or chunking would never make progress).
func New(strategy Strategy, cfg Config) (Chunker, error) {
	if cfg.Size <= 0 {
		cfg.Size = DefaultConfig().Size
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = cfg.Size - 1
	}
	switch strategy {
	case Fixed:
		return newFixed(cfg), nil
	case Paragraph:
		return newParagraph(cfg), nil
	case Semantic:
		if cfg.Threshold <= 0 {
			cfg.Threshold = DefaultConfig().Threshold
		}
		return newSemantic(cfg), nil
	default:
		return nil, fmt.Errorf("chunker: unknown strategy %q", strategy)
	}
}
