// Package ai wires AI provider implementations behind the models.AIProvider
// interface.
package ai

import (
	"fmt"

	"github.com/unitutor/pagetutor/internal/ai/gemini"
	"github.com/unitutor/pagetutor/internal/ai/ollama"
	"github.com/unitutor/pagetutor/internal/ai/openai"
	"github.com/unitutor/pagetutor/internal/config"
	"github.com/unitutor/pagetutor/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewProvider(cfg.Gemini), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of gemini, openai, ollama", cfg.Provider)
	}
}
