package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thirza258/ragreader/internal/engine"
)

// adapterJudge implements engine.Judge over an Adapter's PromptGenerate
// capability, grounded on
// original_source/backend/iterative_rag/iterative_rag.py's JUDGING and
// REWRITING prompts.
type adapterJudge struct {
	adapter Adapter
}

// NewJudge wraps adapter as an engine.Judge for IterativeEngine.
func NewJudge(adapter Adapter) engine.Judge {
	return &adapterJudge{adapter: adapter}
}

type sufficiencyResponse struct {
	Sufficient bool `json:"sufficient"`
}

func (j *adapterJudge) JudgeSufficiency(ctx context.Context, query string, collected []engine.Result) (bool, error) {
	var sb strings.Builder
	for i, r := range collected {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, r.Chunk.Text)
	}
	prompt := fmt.Sprintf(
		`Question: %s

Retrieved passages:
%s

Respond with strict JSON only, of the form {"sufficient": true|false}, judging whether the passages above are enough to fully answer the question.`,
		query, sb.String(),
	)

	raw, err := j.adapter.PromptGenerate(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("judge: sufficiency prompt: %w", err)
	}

	var resp sufficiencyResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &resp); err != nil {
		return false, fmt.Errorf("judge: parse sufficiency response: %w", err)
	}
	return resp.Sufficient, nil
}

func (j *adapterJudge) Reformulate(ctx context.Context, currentQuery string, collected []engine.Result) (string, error) {
	prompt := fmt.Sprintf(
		`The question "%s" was not fully answered by the passages retrieved so far. Rewrite it as a single, more specific search query that would surface the missing information. Respond with the rewritten query only, on one line, with no extra commentary.`,
		currentQuery,
	)
	raw, err := j.adapter.PromptGenerate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("judge: reformulate prompt: %w", err)
	}
	line := strings.TrimSpace(strings.SplitN(raw, "\n", 2)[0])
	return line, nil
}

func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
