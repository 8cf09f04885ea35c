// Package sanitize cleans free text typed by users before it is stored.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict     = bluemonday.StrictPolicy()
	blankLines = regexp.MustCompile(`\n\s*\n+`)
	spaces     = regexp.MustCompile(`[ \t]+`)
)

// Text strips markup and control characters from multi-line text, keeping
// at most one empty line between paragraphs.
func Text(s string) string {
	s = StripMarkup(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaces.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}

// Line is Text flattened to a single line.
func Line(s string) string {
	return strings.Join(strings.Fields(Text(s)), " ")
}

// StripMarkup removes HTML tags and leaves everything else, newlines included,
// as it was. Entities come back as plain characters.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	return html.UnescapeString(strict.Sanitize(s))
}
