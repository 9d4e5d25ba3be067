// Package llm wraps the language model providers used to write explanations.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Client completes a single system + user prompt.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider    string // "anthropic", "openai" or "gemini"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// New creates the client for cfg.Provider.
func New(ctx context.Context, cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", cfg.Provider)
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "anthropic", "claude":
		return NewClaudeClient(ClaudeConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}), nil
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}), nil
	case "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
