package ai

import (
	"fmt"
	"time"

	"certhub-backend/pkg/gemini"
)

// Config holds AI provider configuration. Ollama settings are getters so the
// settings API can change them without a restart.
type Config struct {
	Provider ProviderType

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	GetOllamaBaseURL func() string
	GetOllamaModel   func() string

	Timeout time.Duration
}

// NewEnricher builds the Enricher for cfg.Provider. ProviderNone returns a nil
// Enricher and no error; callers treat that as enrichment disabled.
func NewEnricher(cfg Config) (Enricher, error) {
	newGemini := func() Enricher {
		svc := gemini.NewGeminiService(cfg.GeminiAPIKey,
			gemini.WithModel(cfg.GeminiModel),
			gemini.WithBaseURL(cfg.GeminiBaseURL),
		)
		return NewPromptEnricher(svc, cfg.Timeout)
	}
	newOllama := func() Enricher {
		if cfg.GetOllamaBaseURL == nil || cfg.GetOllamaModel == nil {
			return NewPromptEnricher(NewOllamaService("", ""), cfg.Timeout)
		}
		return NewPromptEnricher(NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel), cfg.Timeout)
	}

	switch cfg.Provider {
	case ProviderNone:
		return nil, nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return newGemini(), nil

	case ProviderOllama:
		return newOllama(), nil

	case ProviderAuto, "":
		if cfg.GeminiAPIKey != "" {
			return NewFallbackService(newGemini(), newOllama()), nil
		}
		return newOllama(), nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
