package extractor

import (
	"regexp"
	"strings"
)

// DefaultSkills is stored when no tier produces anything.
const DefaultSkills = "General Knowledge"

const (
	maxKeywordSkills   = 5
	maxSanitizedSkills = 8
	maxSkillLength     = 50
)

type skillKeywords struct {
	Skill    string
	Keywords []string
}

// skillTable is checked in order; each skill is listed at most once.
var skillTable = []skillKeywords{
	{"Python", []string{"python", "django", "flask", "pandas", "numpy"}},
	{"JavaScript", []string{"javascript", "js", "node.js", "react", "vue", "angular"}},
	{"Data Science", []string{"data science", "data analysis", "statistics", "analytics"}},
	{"Machine Learning", []string{"machine learning", "ml", "artificial intelligence", "ai", "deep learning"}},
	{"Web Development", []string{"web development", "html", "css", "frontend", "backend"}},
	{"Cloud Computing", []string{"aws", "azure", "google cloud", "cloud", "docker", "kubernetes"}},
	{"Database", []string{"sql", "mysql", "postgresql", "mongodb", "database"}},
	{"Project Management", []string{"project management", "agile", "scrum", "pmp"}},
	{"Digital Marketing", []string{"digital marketing", "seo", "sem", "social media"}},
	{"Business Analysis", []string{"business analysis", "requirements", "process improvement"}},
	{"Cybersecurity", []string{"cybersecurity", "security", "penetration testing", "ethical hacking"}},
	{"Mobile Development", []string{"mobile development", "android", "ios", "react native", "flutter"}},
}

// keywordPatterns holds one whole-word matcher per skill, so that "ai" does
// not fire inside "email".
var keywordPatterns = compileKeywords(skillTable)

func compileKeywords(table []skillKeywords) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(table))
	for i, entry := range table {
		alts := make([]string, len(entry.Keywords))
		for j, kw := range entry.Keywords {
			alts[j] = regexp.QuoteMeta(kw)
		}
		out[i] = regexp.MustCompile(`(?:^|[^a-z0-9])(?:` + strings.Join(alts, "|") + `)(?:$|[^a-z0-9])`)
	}
	return out
}

var topicRules = []Rule{
	{Name: "certification in", Pattern: regexp.MustCompile(`\b(certification|certificate)\s+in\s+([^,.\n]+)`)},
	{Name: "course in", Pattern: regexp.MustCompile(`\b(specialization|course)\s+in\s+([^,.\n]+)`)},
	{Name: "introduction to", Pattern: regexp.MustCompile(`\b(fundamentals?|basics?|introduction)\s+(?:to|of)\s+([^,.\n]+)`)},
}

var (
	topicNoise     = regexp.MustCompile(`\b(course|certification|certificate|specialization)\b`)
	skillPreamble  = regexp.MustCompile(`(?i)^\s*(skills learned:|skills:|the skills learned are:|here are the skills:)`)
	bulletPrefix   = regexp.MustCompile(`(?m)^\s*[-•*]\s*`)
	skillSeparator = regexp.MustCompile(`[,;•\n]`)
	wordStart      = regexp.MustCompile(`\b\w+`)
)

// KeywordSkills is the local heuristic: skill table hits followed by topics
// lifted from phrases like "certification in X". It returns nil when nothing
// matched.
func KeywordSkills(subject, body string) []string {
	text := strings.ToLower(subject + " " + FlattenHTML(body))

	var found []string
	seen := make(map[string]bool)
	add := func(skill string) {
		key := strings.ToLower(skill)
		if !seen[key] {
			seen[key] = true
			found = append(found, skill)
		}
	}

	for i, entry := range skillTable {
		if keywordPatterns[i].MatchString(text) {
			add(entry.Skill)
		}
	}

	for _, r := range topicRules {
		m := r.Pattern.FindStringSubmatch(text)
		if len(m) < 3 {
			continue
		}
		topic := strings.TrimSpace(spaceRun.ReplaceAllString(topicNoise.ReplaceAllString(m[2], ""), " "))
		if len(topic) > 2 && len(topic) < 30 {
			add(capitalizeWords(topic))
		}
	}

	if len(found) > maxKeywordSkills {
		found = found[:maxKeywordSkills]
	}
	return found
}

func capitalizeWords(s string) string {
	return wordStart.ReplaceAllStringFunc(s, func(w string) string {
		return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	})
}

// SanitizeSkillList cleans a free-text skills answer from a language model.
func SanitizeSkillList(raw string) []string {
	s := skillPreamble.ReplaceAllString(strings.TrimSpace(raw), "")
	s = bulletPrefix.ReplaceAllString(s, "")

	var out []string
	for _, part := range skillSeparator.Split(s, -1) {
		part = strings.TrimSpace(spaceRun.ReplaceAllString(part, " "))
		if part == "" || len(part) >= maxSkillLength {
			continue
		}
		out = append(out, part)
		if len(out) == maxSanitizedSkills {
			break
		}
	}
	return out
}

// SanitizeSkills is SanitizeSkillList joined for storage, never empty.
func SanitizeSkills(raw string) string {
	return JoinSkills(SanitizeSkillList(raw))
}

func JoinSkills(skills []string) string {
	if len(skills) == 0 {
		return DefaultSkills
	}
	return strings.Join(skills, ", ")
}

// SplitSkills is the inverse of JoinSkills for stored values.
func SplitSkills(stored string) []string {
	var out []string
	for _, s := range strings.Split(stored, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
