package extractor

import "regexp"

// Rule is one named pattern in an ordered, first-match-wins list.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// PlatformRule maps a sender substring to a platform label.
type PlatformRule struct {
	Substring string
	Platform  string
}

const UnknownPlatform = "Unknown"

var PlatformRules = []PlatformRule{
	{Substring: "coursera", Platform: "Coursera"},
	{Substring: "infosysspringboard", Platform: "Infosys Springboard"},
	{Substring: "edx", Platform: "edX"},
	{Substring: "udacity", Platform: "Udacity"},
	{Substring: "udemy", Platform: "Udemy"},
	{Substring: "linkedin", Platform: "LinkedIn Learning"},
}

// CourseRules capture a course title from the body. Each capture group 1 is
// the candidate name.
var CourseRules = []Rule{
	{Name: "course", Pattern: regexp.MustCompile(`(?i)course[:\s]+([^.\n\r]{10,100})`)},
	{Name: "completed", Pattern: regexp.MustCompile(`(?i)completed[:\s]+([^.\n\r]{10,100})`)},
	{Name: "certification", Pattern: regexp.MustCompile(`(?i)certification[:\s]+([^.\n\r]{10,100})`)},
	{Name: "quoted", Pattern: regexp.MustCompile(`"([^"]{10,100})"`)},
}

// LinkRules find the certificate download URL in the raw body.
var LinkRules = []Rule{
	{Name: "certificate", Pattern: regexp.MustCompile(`(?i)https?://[^\s<>"']+certificate[^\s<>"']*`)},
	{Name: "credential", Pattern: regexp.MustCompile(`(?i)https?://[^\s<>"']+credential[^\s<>"']*`)},
	{Name: "download", Pattern: regexp.MustCompile(`(?i)https?://[^\s<>"']+download[^\s<>"']*`)},
}

var (
	replyPrefix    = regexp.MustCompile(`(?i)^\s*(re|fwd?)\s*:\s*`)
	subjectNoise   = regexp.MustCompile(`(?i)\b(certificates?|completion|congratulations)\b`)
	edgePunct      = regexp.MustCompile(`^[\s\-:!,.|]+|[\s\-:!,|]+$`)
	spaceRun       = regexp.MustCompile(`[\s\x{00a0}]+`)
	htmlTagSniffer = regexp.MustCompile(`(?i)<(html|body|div|p|br|table|td|span|a)\b`)
)
