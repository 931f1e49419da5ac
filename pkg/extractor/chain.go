package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SkillSummarizer asks an external model for a free-text skills list.
type SkillSummarizer interface {
	SummarizeSkills(ctx context.Context, body, subject string) (string, error)
}

// CourseNamer asks an external model for the course title.
type CourseNamer interface {
	ExtractCourseName(ctx context.Context, body, subject string) (string, error)
}

const (
	TierEnrichment = "enrichment"
	TierKeywords   = "keywords"
	TierDefault    = "default"
)

var (
	ErrEnrichmentDisabled = errors.New("enrichment disabled")
	ErrEmptyAnswer        = errors.New("enrichment returned no usable skills")
	ErrNoKeywordMatch     = errors.New("no skill keyword matched")
)

// TierFailure records why a tier was skipped.
type TierFailure struct {
	Tier string
	Err  error
}

func (f TierFailure) String() string {
	return fmt.Sprintf("%s: %v", f.Tier, f.Err)
}

// SkillsResult is the outcome of the skills chain. Skills is never empty.
type SkillsResult struct {
	Skills   string
	Tier     string
	Failures []TierFailure
}

// FailureSummary joins the recorded failures for logging.
func (r SkillsResult) FailureSummary() string {
	parts := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

// ResolveSkills runs enrichment, then the keyword heuristic, then the default
// value. A nil summarizer counts as a failed enrichment tier.
func ResolveSkills(ctx context.Context, summarizer SkillSummarizer, subject, body string) SkillsResult {
	var res SkillsResult

	if summarizer == nil {
		res.Failures = append(res.Failures, TierFailure{Tier: TierEnrichment, Err: ErrEnrichmentDisabled})
	} else {
		raw, err := summarizer.SummarizeSkills(ctx, body, subject)
		if err != nil {
			res.Failures = append(res.Failures, TierFailure{Tier: TierEnrichment, Err: err})
		} else if skills := SanitizeSkillList(raw); len(skills) > 0 {
			res.Skills = JoinSkills(skills)
			res.Tier = TierEnrichment
			return res
		} else {
			res.Failures = append(res.Failures, TierFailure{Tier: TierEnrichment, Err: ErrEmptyAnswer})
		}
	}

	if skills := KeywordSkills(subject, body); len(skills) > 0 {
		res.Skills = JoinSkills(skills)
		res.Tier = TierKeywords
		return res
	}
	res.Failures = append(res.Failures, TierFailure{Tier: TierKeywords, Err: ErrNoKeywordMatch})

	res.Skills = DefaultSkills
	res.Tier = TierDefault
	return res
}

const minEnrichedNameLength = 5

// ResolveCourseName returns the enriched course name when it is longer than
// five characters, otherwise the heuristic one. The error reports why the
// heuristic name was kept and is informational only.
func ResolveCourseName(ctx context.Context, namer CourseNamer, heuristic, subject, body string) (string, error) {
	if namer == nil {
		return heuristic, ErrEnrichmentDisabled
	}
	name, err := namer.ExtractCourseName(ctx, body, subject)
	if err != nil {
		return heuristic, err
	}
	name = strings.TrimSpace(name)
	if len(name) <= minEnrichedNameLength {
		return heuristic, fmt.Errorf("enriched course name %q too short", name)
	}
	return name, nil
}
