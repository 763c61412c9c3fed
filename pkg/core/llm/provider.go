// Package llm wraps the language-model backends used for document extraction.
package llm

import (
	"context"
	"fmt"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// Name identifies the backend and model for extraction metadata.
	Name() string
}

// NewProvider builds the provider named in configuration.
func NewProvider(name string, model string) (Provider, error) {
	switch name {
	case "", "gemini":
		return &GeminiProvider{Model: model}, nil
	case "deepseek":
		return &DeepSeekProvider{Model: model}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", name)
	}
}
