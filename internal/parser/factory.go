package parser

import (
	"context"
	"fmt"
	"time"
)

// ClientConfig is the provider-neutral client configuration, filled from the
// config layer.
type ClientConfig struct {
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// NewClient constructs the LLM client for the configured provider.
func NewClient(ctx context.Context, cfg ClientConfig) (LLMClient, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
