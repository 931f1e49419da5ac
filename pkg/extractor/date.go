package extractor

import (
	"net/mail"
	"strings"
	"time"
)

// Layouts tried after net/mail's RFC 5322 parser gives up.
var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseIssueDate reduces a Date header to a UTC calendar date. Anything
// unparsable becomes the calendar date of now.
func ParseIssueDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			return calendarDate(t)
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return calendarDate(t)
			}
		}
	}
	return calendarDate(now)
}

func calendarDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
