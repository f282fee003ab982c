// Package google adapts Gemini's GenerateContent API to llm.Adapter,
// grounded on the teacher's internal/llm/google/client.go constructor
// and request-building pattern.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/thirza258/ragreader/internal/llm"
)

// Client adapts one Gemini model.
type Client struct {
	sdk   *genai.Client
	model string
}

// New builds a Client for model using apiKey and an optional custom
// baseURL.
func New(ctx context.Context, apiKey, baseURL, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("google adapter: missing API key")
	}
	cfg := &genai.ClientConfig{APIKey: apiKey}
	if strings.TrimSpace(baseURL) != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("google adapter: new client: %w", err)
	}
	return &Client{sdk: client, model: model}, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) generate(ctx context.Context, systemPrompt, userText string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if systemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}

	contents := []*genai.Content{genai.NewContentFromText(userText, genai.RoleUser)}
	resp, err := c.sdk.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("google adapter: generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("google adapter: empty response")
	}
	return text, nil
}

func (c *Client) RAGGenerate(ctx context.Context, query string, contexts []string) (string, error) {
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(contexts, "\n---\n"), query)
	raw, err := c.generate(ctx, llm.RAGSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	return llm.ExtractAnswer(raw), nil
}

func (c *Client) PromptGenerate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "", prompt)
}

func (c *Client) VoteGenerate(ctx context.Context, prompt string) (llm.VoteDecision, error) {
	system := `Respond with strict JSON only, of the form {"vote":"yes"|"no","justification":"..."}. No other text.`
	raw, err := c.generate(ctx, system, prompt)
	if err != nil {
		return llm.VoteDecision{}, err
	}
	var decision llm.VoteDecision
	if err := json.Unmarshal([]byte(extractJSON(raw)), &decision); err != nil {
		raw2, err2 := c.generate(ctx, system+" Return JSON only, nothing else.", prompt)
		if err2 != nil {
			return llm.VoteDecision{}, fmt.Errorf("google adapter: vote response not JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(extractJSON(raw2)), &decision); err != nil {
			return llm.VoteDecision{}, fmt.Errorf("google adapter: vote response not JSON after retry: %w", err)
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
