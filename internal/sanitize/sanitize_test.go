package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "baseline", "baseline"},
		{"keeps separators", "sweep-p0.2_run 3", "sweep-p0.2_run 3"},
		{"strips unsafe", "run;ls /tmp", "runls tmp"},
		{"collapses repeats", "a---b__c  d", "a-b_c d"},
		{"trims", "  spaced  ", "spaced"},
		{"drops brackets", "<b>bold</b>", "bboldb"},
		{"truncates", strings.Repeat("x", 100), strings.Repeat("x", MaxLabelLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Label(tt.input)
			if got != tt.want {
				t.Errorf("Label(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNote(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"keeps newlines", "line one\nline two", "line one\nline two"},
		{"strips control chars", "a\x00b\x07c\x7f", "abc"},
		{"strips tags", "rate <script>alert(1)</script>ok", "rate alert(1)ok"},
		{"squeezes blanks", "a \t  b", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Note(tt.input); got != tt.want {
				t.Errorf("Note(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNote_TruncatesOnRuneBoundary(t *testing.T) {
	input := strings.Repeat("é", MaxNoteLength)
	got := Note(input)
	if len(got) > MaxNoteLength {
		t.Errorf("len = %d, want <= %d", len(got), MaxNoteLength)
	}
	if !utf8.ValidString(got) {
		t.Error("truncated note is not valid UTF-8")
	}
}
