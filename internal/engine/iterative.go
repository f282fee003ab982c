package engine

import (
	"context"
	"fmt"
	"strings"
)

// DefaultMaxRetries is the iterative engine's reformulation budget,
// matching original_source/backend/iterative_rag/iterative_rag.py's
// max_retries default.
const DefaultMaxRetries = 3

// Judge supplies the LLM-backed sufficiency check and query reformulation
// the iterative engine drives. A JSON-parse failure from the underlying
// model is the judge implementation's responsibility to surface as a
// plain error; IterativeEngine treats any error from JudgeSufficiency as
// "insufficient" rather than failing the whole retrieval, matching the
// source's behavior.
type Judge interface {
	JudgeSufficiency(ctx context.Context, originalQuery string, collected []Result) (bool, error)
	Reformulate(ctx context.Context, currentQuery string, collected []Result) (string, error)
}

// iterativeEngine wraps a dense child engine with a judged
// retrieve-evaluate-reformulate loop, grounded on the source's
// iterative_rag.py state machine: dense retrieve, accumulate with
// insertion-order dedup, judge sufficiency, and on insufficiency
// reformulate the query and retry up to MaxRetries times.
type iterativeEngine struct {
	dense      Engine
	judge      Judge
	maxRetries int
}

// NewIterative composes a dense child engine with a Judge.
func NewIterative(dense Engine, judge Judge) Engine {
	return &iterativeEngine{dense: dense, judge: judge, maxRetries: DefaultMaxRetries}
}

func (it *iterativeEngine) Method() Method { return MethodIterative }

func (it *iterativeEngine) Empty() bool { return it.dense.Empty() }

func (it *iterativeEngine) Build(ctx context.Context, chunks []Chunk) error {
	if err := it.dense.Build(ctx, chunks); err != nil {
		return fmt.Errorf("iterative engine: build dense child: %w", err)
	}
	return nil
}

func (it *iterativeEngine) Save(path string) error { return it.dense.Save(path) }
func (it *iterativeEngine) Load(path string) error { return it.dense.Load(path) }

func (it *iterativeEngine) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = 10
	}

	var collected []Result
	seen := make(map[string]bool)
	currentQuery := query

	merge := func(batch []Result) {
		for _, r := range batch {
			if seen[r.Chunk.ID] {
				continue
			}
			seen[r.Chunk.ID] = true
			collected = append(collected, r)
		}
	}

	for attempt := 0; attempt <= it.maxRetries; attempt++ {
		batch, err := it.dense.Retrieve(ctx, currentQuery, k)
		if err != nil {
			return nil, fmt.Errorf("iterative engine: retrieve (attempt %d): %w", attempt, err)
		}
		merge(batch)

		sufficient, jErr := it.judge.JudgeSufficiency(ctx, query, collected)
		if jErr != nil {
			// A malformed judge response is treated as "insufficient" so the
			// loop keeps trying rather than failing the whole retrieval.
			sufficient = false
		}
		if sufficient || attempt == it.maxRetries {
			break
		}

		next, rErr := it.judge.Reformulate(ctx, currentQuery, collected)
		next = strings.TrimSpace(next)
		if rErr != nil || next == "" {
			next = query
		}
		currentQuery = next
	}

	for i := range collected {
		collected[i].Rank = i + 1
	}
	if k < len(collected) {
		collected = collected[:k]
	}
	return collected, nil
}
