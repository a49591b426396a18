package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/taxgraph/internal/config"
	"github.com/sirupsen/logrus"
)

var defaultModels = map[string]string{
	"openai": "gpt-4o-mini",
	"gemini": "gemini-1.5-flash",
	"claude": "claude-3-5-haiku-latest",
	"ollama": "llama3.1",
}

// NewClient builds the configured provider. An empty provider disables LLM
// enhancement and returns a nil client without error.
func NewClient(ctx context.Context, cfg config.LLMConfig, log logrus.FieldLogger) (LLMClient, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		return nil, nil
	}
	model := cfg.Model
	if model == "" {
		model = defaultModels[provider]
	}

	switch provider {
	case "openai":
		return NewOpenAIClient(cfg.APIKey, model, cfg.BaseURL), nil

	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, model)

	case "claude":
		return NewClaudeClient(cfg.APIKey, model, cfg.BaseURL), nil

	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
		}
		if log != nil {
			log.WithField("base_url", baseURL).Info("using ollama through its OpenAI-compatible API")
		}
		// ollama ignores the key but the client requires one
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		return NewOpenAIClient(apiKey, model, baseURL), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}
