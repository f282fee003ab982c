package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirza258/ragreader/internal/engine"
)

func TestMajorityResolvesTies(t *testing.T) {
	yes, no, verdict := Majority(nil)
	assert.Equal(t, 0, yes)
	assert.Equal(t, 0, no)
	assert.Equal(t, "no", verdict)

	yes, no, verdict = Majority([]VoteDecision{{Vote: "yes"}, {Vote: "no"}, {Vote: "yes"}})
	assert.Equal(t, 2, yes)
	assert.Equal(t, 1, no)
	assert.Equal(t, "yes", verdict)
}

type scriptedAdapter struct {
	model     string
	responses []string
	calls     int
}

func (s *scriptedAdapter) Model() string { return s.model }

func (s *scriptedAdapter) next() string {
	if s.calls >= len(s.responses) {
		return ""
	}
	r := s.responses[s.calls]
	s.calls++
	return r
}

func (s *scriptedAdapter) RAGGenerate(ctx context.Context, query string, contexts []string) (string, error) {
	return s.next(), nil
}

func (s *scriptedAdapter) PromptGenerate(ctx context.Context, prompt string) (string, error) {
	return s.next(), nil
}

func (s *scriptedAdapter) VoteGenerate(ctx context.Context, prompt string) (VoteDecision, error) {
	return VoteDecision{Vote: "yes"}, nil
}

func TestJudgeSufficiencyParsesJSON(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{`{"sufficient": true}`}}
	judge := NewJudge(adapter)

	ok, err := judge.JudgeSufficiency(context.Background(), "what is X", []engine.Result{
		{Chunk: engine.Chunk{Text: "X is a thing"}},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExtractAnswerUnwrapsTag(t *testing.T) {
	got := ExtractAnswer("Sure, here you go:\n<answer>**Paris** is the capital.</answer>\nLet me know if you need more.")
	assert.Equal(t, "**Paris** is the capital.", got)
}

func TestExtractAnswerFallsBackWithoutTag(t *testing.T) {
	got := ExtractAnswer("  Paris is the capital.  ")
	assert.Equal(t, "Paris is the capital.", got)
}

func TestJudgeReformulateTakesFirstLine(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{"refined query here\nextra commentary"}}
	judge := NewJudge(adapter)

	q, err := judge.Reformulate(context.Background(), "original query", nil)
	require.NoError(t, err)
	assert.Equal(t, "refined query here", q)
}
