package labextract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize prepares extracted document text for location. It applies NFKC
// (full-width digits, compatibility micro sign), drops control characters
// other than newline and tab, turns tabs and non-breaking spaces into plain
// spaces and collapses runs of spaces. Line breaks are kept.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range text {
		switch {
		case r == '\r':
			continue
		case r == '\n':
			b.WriteRune('\n')
			lastSpace = false
			continue
		case r == '\t' || r == ' ' || unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		case unicode.IsControl(r):
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
