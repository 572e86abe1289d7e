package narrator

import (
	"context"
	"fmt"

	"github.com/calebsage/fable/internal/config"
)

// Generator produces the next narrative beat as a stream of text chunks.
// onChunk is called for each chunk in order; returning an error from it
// stops the stream. Generate returns the full concatenated text, so a
// consumer that only wants the final result can ignore the chunks.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userInput string, onChunk func(string) error) (string, error)
}

// New creates a Generator based on the config provider setting.
func New(cfg config.NarratorConfig) (Generator, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY or config")
		}
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	case "mock":
		return &Mock{}, nil
	default:
		return nil, fmt.Errorf("unknown narrator provider: %q", cfg.Provider)
	}
}
