// Package fuzzy implements the typo-tolerant certificate search behind the
// q filter of the certificates endpoint.
package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LevenshteinDistance is the edit distance between the normalized forms of
// s1 and s2.
func LevenshteinDistance(s1, s2 string) int {
	return distance([]rune(Normalize(s1)), []rune(Normalize(s2)))
}

func distance(r1, r2 []rune) int {
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	// two rolling rows instead of the full matrix
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}

// Threshold is the number of typos tolerated for a query of this length.
func Threshold(query string) int {
	n := len([]rune(Normalize(query)))
	switch {
	case n <= 3:
		return 0
	case n <= 5:
		return 1
	case n >= 10:
		return 3
	default:
		return 2
	}
}

// Match reports whether query matches text as a substring, a word prefix or
// a word within the typo threshold. Multi-word queries need every word to
// match.
func Match(query, text string) bool {
	query = Normalize(query)
	text = Normalize(text)
	if query == "" {
		return true
	}
	if strings.Contains(text, query) {
		return true
	}

	words := strings.Fields(text)
	for _, q := range strings.Fields(query) {
		if !matchWord(q, words) {
			return false
		}
	}
	return true
}

func matchWord(q string, words []string) bool {
	limit := Threshold(q)
	qr := []rune(q)
	for _, w := range words {
		if strings.HasPrefix(w, q) {
			return true
		}
		if limit > 0 && distance(qr, []rune(w)) <= limit {
			return true
		}
	}
	return false
}

// MatchCertificate checks the searchable fields of a certificate.
func MatchCertificate(query, courseName, platform, skills string) bool {
	return Match(query, courseName) || Match(query, platform) || Match(query, skills)
}

// RelevanceScore ranks a certificate for query; higher is better. Course name
// hits outweigh skills, which outweigh platform.
func RelevanceScore(query, courseName, platform, skills string) float64 {
	query = Normalize(query)
	if query == "" {
		return 0
	}
	return fieldScore(query, courseName, 100) +
		fieldScore(query, skills, 60) +
		fieldScore(query, platform, 40)
}

func fieldScore(query, field string, weight float64) float64 {
	field = Normalize(field)
	if strings.Contains(field, query) {
		score := weight
		if containsWord(field, query) {
			score += weight / 2
		}
		return score
	}

	score := 0.0
	qr := []rune(query)
	limit := Threshold(query)
	for _, w := range strings.Fields(field) {
		if strings.HasPrefix(w, query) {
			score += weight * 0.4
			continue
		}
		if d := distance(qr, []rune(w)); limit > 0 && d <= limit {
			score += weight*0.5 - float64(d)*weight*0.15
		}
	}
	return score
}

func containsWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if w == word {
			return true
		}
	}
	return false
}

// Normalize lowercases, strips diacritics and collapses whitespace so that
// "Análisis  de Datos" matches "analisis de datos".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	out = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) && r != '+' && r != '#' {
			return ' '
		}
		return r
	}, out)
	return strings.Join(strings.Fields(out), " ")
}
