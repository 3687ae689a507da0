package llm

import (
	"fmt"

	"github.com/rvenkatesh9/outreach/internal/config"
)

// NewClient constructs the configured LLM client. Called once at server startup.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg)
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: must be one of openai, mock", cfg.Provider)
	}
}
