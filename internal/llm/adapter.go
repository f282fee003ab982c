// Package llm defines the provider-agnostic contract every LLM backend
// satisfies, grounded on the teacher's internal/llm/provider.go simplified
// to this spec's single-turn, three-capability surface.
package llm

import (
	"context"
	"strings"
)

// RAGSystemPrompt is the system prompt every provider's RAGGenerate sends:
// answer strictly from context, format the answer as Markdown, and wrap
// it in <answer>...</answer> so ExtractAnswer can pull it back out of any
// surrounding prose a model adds despite instructions.
const RAGSystemPrompt = "You are a retrieval-augmented assistant. Answer the user's question using only the provided context; if the context is insufficient, say so plainly. " +
	"Format the answer as Markdown. Wrap the final answer in <answer></answer> tags, with nothing outside them."

// ExtractAnswer pulls the content of an <answer>...</answer> tag out of a
// RAGGenerate reply. If no tag is present, the whole reply is returned
// with surrounding whitespace trimmed, so a model that ignores the
// wrapping instruction still produces an answer.
func ExtractAnswer(raw string) string {
	start := strings.Index(raw, "<answer>")
	end := strings.LastIndex(raw, "</answer>")
	if start == -1 || end == -1 || end < start {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(raw[start+len("<answer>") : end])
}

// VoteDecision is the structured output of VoteGenerate: a binary
// decision plus the model's reasoning, matching
// original_source/backend/agent_voter/voter.py's vote shape.
type VoteDecision struct {
	Vote          string `json:"vote"` // "yes" or "no"
	Justification string `json:"justification"`
}

// Adapter is the uniform interface every provider client satisfies.
// RAGGenerate answers a query grounded in retrieved contexts.
// PromptGenerate answers a bare prompt with no retrieval context (used by
// IterativeEngine's judge and by reformulation).
// VoteGenerate asks the model to cast a structured yes/no vote with
// justification, used for multi-provider majority decisions.
type Adapter interface {
	Model() string
	RAGGenerate(ctx context.Context, query string, contexts []string) (string, error)
	PromptGenerate(ctx context.Context, prompt string) (string, error)
	VoteGenerate(ctx context.Context, prompt string) (VoteDecision, error)
}

// Majority tallies a set of VoteDecisions into a final verdict. Ties
// (including an empty input) resolve to "no", matching the source's
// fail-closed default.
func Majority(decisions []VoteDecision) (yes, no int, verdict string) {
	for _, d := range decisions {
		if d.Vote == "yes" {
			yes++
		} else {
			no++
		}
	}
	if yes > no {
		verdict = "yes"
	} else {
		verdict = "no"
	}
	return yes, no, verdict
}
