// Package gherkin turns page analyses into Gherkin feature files, using an
// LLM provider when one is configured and a deterministic template when not.
package gherkin

import (
	"context"
	"fmt"

	"github.com/v0xg/bddprobe/internal/detect"
)

// Provider defines the interface for feature text generation.
type Provider interface {
	GenerateFeature(ctx context.Context, analysis *detect.PageAnalysis) (string, error)
}

// NewProvider creates a provider by name.
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai, none)", name)
	}
}
