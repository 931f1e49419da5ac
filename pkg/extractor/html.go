package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockElements = "p, div, tr, li, table, h1, h2, h3, h4, h5, h6, blockquote"

// FlattenHTML renders an HTML (or mixed plain and HTML) body as text with one
// line per block element. Bodies without markup are returned unchanged.
func FlattenHTML(body string) string {
	if !htmlTagSniffer.MatchString(body) {
		return body
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("script, style, title").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockElements).AppendHtml("\n")

	lines := strings.Split(doc.Text(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
