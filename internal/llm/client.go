package llm

import (
	"context"
	"errors"
)

// LLMClient generates free text for a single prompt.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var ErrEmptyResponse = errors.New("llm returned no content")

// DefaultMaxTokens bounds explanation length.
const DefaultMaxTokens = 300
