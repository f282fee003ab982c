// Package providers dispatches a model name to the right llm.Adapter
// implementation by prefix, grounded on the teacher's
// internal/llm/providers/factory.go config-string dispatch pattern
// adapted to dispatch-by-model-prefix per SPEC_FULL.md §4.6.
package providers

import (
	"context"
	"strings"

	"github.com/thirza258/ragreader/internal/apperr"
	"github.com/thirza258/ragreader/internal/config"
	"github.com/thirza258/ragreader/internal/llm"
	"github.com/thirza258/ragreader/internal/llm/anthropic"
	"github.com/thirza258/ragreader/internal/llm/google"
	"github.com/thirza258/ragreader/internal/llm/openai"
)

// New builds the llm.Adapter for model, dispatched by its prefix:
// "gpt-"/"text-" -> OpenAI, "gemini-" -> Google, "claude-" -> Anthropic.
// Any other prefix is a KindInput error, per the closed model enum
// design note.
func New(ctx context.Context, cfg config.LLMConfig, model string) (llm.Adapter, error) {
	switch {
	case strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "text-"):
		c, err := openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, model)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindProviderFatal, "construct openai adapter", err)
		}
		return c, nil
	case strings.HasPrefix(model, "gemini-"):
		c, err := google.New(ctx, cfg.Google.APIKey, cfg.Google.BaseURL, model)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindProviderFatal, "construct google adapter", err)
		}
		return c, nil
	case strings.HasPrefix(model, "claude-"):
		c, err := anthropic.New(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, model)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindProviderFatal, "construct anthropic adapter", err)
		}
		return c, nil
	default:
		return nil, apperr.New(apperr.KindInput, "unsupported model: "+model)
	}
}

// SupportedModels is the closed variant-table model list this service
// dispatches.
var SupportedModels = []string{"gpt-4o-mini", "gemini-2.5-flash", "claude-3.5-sonnet"}
