package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
)

// FallbackService routes every call to Gemini first and falls back to Ollama.
// When Ollama then fails with a connection error and Gemini failed only on
// quota, the Gemini error is returned so callers can report QUOTA_EXCEEDED.
type FallbackService struct {
	gemini Enricher
	ollama Enricher
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(gemini, ollama Enricher) *FallbackService {
	return &FallbackService{
		gemini: gemini,
		ollama: ollama,
	}
}

func (f *FallbackService) Name() string {
	switch {
	case f.gemini != nil && f.ollama != nil:
		return "gemini+ollama"
	case f.gemini != nil:
		return f.gemini.Name()
	case f.ollama != nil:
		return f.ollama.Name()
	}
	return "none"
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}
	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource_exhausted",
		"resource exhausted",
	}
	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

func route[T any](f *FallbackService, op string, call func(Enricher) (T, error)) (T, error) {
	var zero T
	var geminiErr error

	if f.gemini != nil {
		result, err := call(f.gemini)
		if err == nil {
			return result, nil
		}
		geminiErr = err
		if isQuotaError(err) {
			log.Printf("[AI] Gemini quota exhausted for %s: %v, falling back to Ollama", op, err)
		} else {
			log.Printf("[AI] Gemini error for %s: %v, falling back to Ollama", op, err)
		}
	}

	if f.ollama != nil {
		result, err := call(f.ollama)
		if err == nil {
			return result, nil
		}
		if geminiErr != nil && isQuotaError(geminiErr) && isConnectionError(err) {
			return zero, geminiErr
		}
		return zero, fmt.Errorf("ollama %s failed: %w", op, err)
	}

	if geminiErr != nil {
		return zero, geminiErr
	}
	return zero, fmt.Errorf("no AI provider available for %s", op)
}

func (f *FallbackService) SummarizeSkills(ctx context.Context, body, subject string) (string, error) {
	return route(f, "skills", func(e Enricher) (string, error) {
		return e.SummarizeSkills(ctx, body, subject)
	})
}

func (f *FallbackService) ExtractCourseName(ctx context.Context, body, subject string) (string, error) {
	return route(f, "course name", func(e Enricher) (string, error) {
		return e.ExtractCourseName(ctx, body, subject)
	})
}

// TestConnection succeeds when at least one provider answers.
func (f *FallbackService) TestConnection(ctx context.Context) error {
	_, err := route(f, "connection test", func(e Enricher) (struct{}, error) {
		return struct{}{}, e.TestConnection(ctx)
	})
	return err
}
