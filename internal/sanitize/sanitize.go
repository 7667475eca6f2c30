// Package sanitize cleans free-form strings supplied by CLI users and MCP
// clients before they are stored with a run or echoed back.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxLabelLength is the maximum stored length of a run label.
const MaxLabelLength = 64

// MaxNoteLength bounds free-text notes.
const MaxNoteLength = 1000

var (
	reRepeatedSeparators = regexp.MustCompile(`([-_. ])[-_. ]+`)
	reTags               = regexp.MustCompile(`<[^>]*>`)
	reSpaces             = regexp.MustCompile(`[ \t]+`)
)

// Label keeps only [a-zA-Z0-9-_. ], collapses runs of separators to the
// first one and truncates to MaxLabelLength.
func Label(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' || r == ' ' {
			b.WriteRune(r)
		}
	}
	s := reRepeatedSeparators.ReplaceAllString(b.String(), "$1")
	s = strings.TrimSpace(s)

	if len(s) > MaxLabelLength {
		s = strings.TrimSpace(s[:MaxLabelLength])
	}
	return s
}

// Note strips control characters (keeping newlines) and markup tags,
// squeezes blank runs and truncates to MaxNoteLength bytes on a rune
// boundary.
func Note(input string) string {
	s := stripControlChars(input)
	s = reTags.ReplaceAllString(s, "")
	s = reSpaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if len(s) > MaxNoteLength {
		cut := MaxNoteLength
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// stripControlChars removes ASCII control characters except newline and tab.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r < 0x20 && r != '\n' && r != '\t') || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
