// Package anthropic adapts Anthropic's Messages API to llm.Adapter,
// grounded on the teacher's internal/llm/anthropic/client.go constructor
// and request-building pattern.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/thirza258/ragreader/internal/llm"
)

// Client adapts one Claude model.
type Client struct {
	sdk   anthropicsdk.Client
	model string
}

// New builds a Client for model using apiKey and an optional custom
// baseURL.
func New(apiKey, baseURL, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("anthropic adapter: missing API key")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{sdk: anthropicsdk.NewClient(opts...), model: model}, nil
}

func (c *Client) Model() string { return c.model }

const defaultMaxTokens = 1024

func (c *Client) message(ctx context.Context, system, user string) (string, error) {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.model),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic adapter: messages.new: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic adapter: empty response")
	}
	return sb.String(), nil
}

func (c *Client) RAGGenerate(ctx context.Context, query string, contexts []string) (string, error) {
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(contexts, "\n---\n"), query)
	raw, err := c.message(ctx, llm.RAGSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	return llm.ExtractAnswer(raw), nil
}

func (c *Client) PromptGenerate(ctx context.Context, prompt string) (string, error) {
	return c.message(ctx, "", prompt)
}

func (c *Client) VoteGenerate(ctx context.Context, prompt string) (llm.VoteDecision, error) {
	system := `Respond with strict JSON only, of the form {"vote":"yes"|"no","justification":"..."}. No other text.`
	raw, err := c.message(ctx, system, prompt)
	if err != nil {
		return llm.VoteDecision{}, err
	}
	var decision llm.VoteDecision
	if err := json.Unmarshal([]byte(extractJSON(raw)), &decision); err != nil {
		raw2, err2 := c.message(ctx, system+" Return JSON only, nothing else.", prompt)
		if err2 != nil {
			return llm.VoteDecision{}, fmt.Errorf("anthropic adapter: vote response not JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(extractJSON(raw2)), &decision); err != nil {
			return llm.VoteDecision{}, fmt.Errorf("anthropic adapter: vote response not JSON after retry: %w", err)
		}
	}
	return decision, nil
}

func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
