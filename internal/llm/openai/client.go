// Package openai adapts OpenAI's chat completions API to llm.Adapter,
// grounded on the teacher's internal/llm/openai/client.go constructor
// pattern, simplified to this spec's single-turn text contract. The same
// client also serves OpenRouter-style OpenAI-compatible gateways when
// configured with a different BaseURL/APIKey, per SPEC_FULL.md §4.6.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/thirza258/ragreader/internal/llm"
)

// Client adapts one OpenAI (or OpenAI-compatible) chat model.
type Client struct {
	sdk   openai.Client
	model string
}

// New builds a Client for model using apiKey, optionally against a custom
// baseURL (empty uses OpenAI's default endpoint).
func New(apiKey, baseURL, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai adapter: missing API key")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{sdk: openai.NewClient(opts...), model: model}, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	resp, err := c.sdk.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai adapter: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai adapter: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) RAGGenerate(ctx context.Context, query string, contexts []string) (string, error) {
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(contexts, "\n---\n"), query)
	raw, err := c.chat(ctx, llm.RAGSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	return llm.ExtractAnswer(raw), nil
}

func (c *Client) PromptGenerate(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, "", prompt)
}

func (c *Client) VoteGenerate(ctx context.Context, prompt string) (llm.VoteDecision, error) {
	system := `Respond with strict JSON only, of the form {"vote":"yes"|"no","justification":"..."}. No other text.`
	raw, err := c.chat(ctx, system, prompt)
	if err != nil {
		return llm.VoteDecision{}, err
	}
	var decision llm.VoteDecision
	if err := json.Unmarshal([]byte(extractJSON(raw)), &decision); err != nil {
		// One retry with a stricter reminder, per the structured-output
		// design note: never fail the whole call on a parse miss alone.
		raw2, err2 := c.chat(ctx, system+" Return JSON only, nothing else.", prompt)
		if err2 != nil {
			return llm.VoteDecision{}, fmt.Errorf("openai adapter: vote response not JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(extractJSON(raw2)), &decision); err != nil {
			return llm.VoteDecision{}, fmt.Errorf("openai adapter: vote response not JSON after retry: %w", err)
		}
	}
	return decision, nil
}

// extractJSON trims leading/trailing prose some models add around a JSON
// object despite instructions, by slicing to the outermost braces.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
