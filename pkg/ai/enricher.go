package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PromptEnricher implements Enricher on top of a Generator, bounding every
// call with its own timeout.
type PromptEnricher struct {
	gen     Generator
	timeout time.Duration
}

func NewPromptEnricher(gen Generator, timeout time.Duration) *PromptEnricher {
	return &PromptEnricher{gen: gen, timeout: timeout}
}

func (p *PromptEnricher) Name() string { return p.gen.Name() }

func (p *PromptEnricher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func (p *PromptEnricher) SummarizeSkills(ctx context.Context, body, subject string) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	text, err := p.gen.Generate(ctx, skillsPrompt(body, subject), 0.1, 200)
	if err != nil {
		return "", fmt.Errorf("%s skills: %w", p.gen.Name(), err)
	}
	return text, nil
}

func (p *PromptEnricher) ExtractCourseName(ctx context.Context, body, subject string) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	text, err := p.gen.Generate(ctx, courseNamePrompt(body, subject), 0.1, 100)
	if err != nil {
		return "", fmt.Errorf("%s course name: %w", p.gen.Name(), err)
	}
	return cleanCourseName(text), nil
}

func (p *PromptEnricher) TestConnection(ctx context.Context) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if _, err := p.gen.Generate(ctx, pingPrompt, 0, 10); err != nil {
		return fmt.Errorf("%s unreachable: %w", p.gen.Name(), err)
	}
	return nil
}

// cleanCourseName keeps the first line and strips quotes and a leading label
// that chat models like to echo back.
func cleanCourseName(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "Course name:")
	s = strings.Trim(strings.TrimSpace(s), `"'*`)
	return strings.TrimSpace(s)
}
