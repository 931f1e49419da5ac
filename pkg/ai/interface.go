package ai

import "context"

// Enricher improves extracted certificate fields with a language model.
// Implement Generator to add a provider; PromptEnricher turns any Generator
// into an Enricher.
type Enricher interface {
	SummarizeSkills(ctx context.Context, body, subject string) (string, error)
	ExtractCourseName(ctx context.Context, body, subject string) (string, error)
	TestConnection(ctx context.Context) error
	Name() string
}

// Generator is a raw text completion backend.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
	Name() string
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
	ProviderNone   ProviderType = "none"
)
