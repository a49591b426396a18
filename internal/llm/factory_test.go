package llm

import (
	"context"
	"testing"

	"github.com/agenthands/taxgraph/internal/config"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()

	c, err := NewClient(ctx, config.LLMConfig{}, logger)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewClient(ctx, config.LLMConfig{Provider: "OpenAI", APIKey: "k"}, logger)
	require.NoError(t, err)
	require.IsType(t, &OpenAIClient{}, c)
	assert.Equal(t, "gpt-4o-mini", c.(*OpenAIClient).model)

	c, err = NewClient(ctx, config.LLMConfig{Provider: "claude", Model: "m"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClient{}, c)

	c, err = NewClient(ctx, config.LLMConfig{Provider: "ollama", BaseURL: "http://ollama:11434/"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "http://ollama:11434/v1", hook.LastEntry().Data["base_url"])

	_, err = NewClient(ctx, config.LLMConfig{Provider: "groq"}, logger)
	assert.ErrorContains(t, err, "unsupported llm provider")
}
