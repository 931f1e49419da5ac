// Package extractor turns a fetched certificate email into certificate fields
// using ordered pattern rules. Nothing here performs I/O; enrichment is
// layered on top through the Skills and CourseName chains.
package extractor

import (
	"strings"
	"time"
)

// Message is the part of a mailbox message extraction reads.
type Message struct {
	Subject string
	From    string
	Date    string
	Body    string
}

// Result holds the heuristic fields of one certificate. Skills are resolved
// separately.
type Result struct {
	Platform     string
	CourseName   string
	CourseRule   string
	IssueDate    time.Time
	DownloadLink *string
	LinkRule     string
	EmailSubject string
}

// Extract never fails: every field has a defined fallback.
func Extract(msg Message, now time.Time) Result {
	text := FlattenHTML(msg.Body)

	name, courseRule := MatchCourseName(CleanSubject(msg.Subject), text)
	link, linkRule := FindDownloadLink(msg.Body)

	return Result{
		Platform:     InferPlatform(msg.From),
		CourseName:   name,
		CourseRule:   courseRule,
		IssueDate:    ParseIssueDate(msg.Date, now),
		DownloadLink: link,
		LinkRule:     linkRule,
		EmailSubject: msg.Subject,
	}
}

// InferPlatform matches the sender against PlatformRules in order.
func InferPlatform(from string) string {
	from = strings.ToLower(from)
	for _, r := range PlatformRules {
		if strings.Contains(from, r.Substring) {
			return r.Platform
		}
	}
	return UnknownPlatform
}

// CleanSubject drops reply/forward prefixes and the generic words that carry
// no course information.
func CleanSubject(subject string) string {
	s := subject
	for replyPrefix.MatchString(s) {
		s = replyPrefix.ReplaceAllString(s, "")
	}
	s = subjectNoise.ReplaceAllString(s, "")
	s = spaceRun.ReplaceAllString(s, " ")
	s = edgePunct.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// MatchCourseName walks CourseRules and returns the first capture longer than
// current, with the rule name. When nothing is longer, current is kept and the
// rule name is empty.
func MatchCourseName(current, text string) (string, string) {
	for _, r := range CourseRules {
		m := r.Pattern.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if len(candidate) > len(current) {
			return candidate, r.Name
		}
	}
	return current, ""
}

// FindDownloadLink returns the first URL of the first LinkRule with any match.
func FindDownloadLink(body string) (*string, string) {
	for _, r := range LinkRules {
		if m := r.Pattern.FindString(body); m != "" {
			return &m, r.Name
		}
	}
	return nil, ""
}
