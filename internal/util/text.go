// Package util provides text helpers for terminal output.
package util

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// Truncate shortens s to at most width visible columns, ending in Ellipsis
// when anything was cut. Escape sequences and wide characters are measured
// by their rendered width.
func Truncate(s string, width int) string {
	if width <= len(Ellipsis) {
		return Ellipsis
	}
	if ansi.StringWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, Ellipsis)
}

// FirstLine returns the first non-blank line of s, trimmed. Multi-line
// provider responses are previewed this way in one-line reports.
func FirstLine(s string) string {
	for line := range strings.Lines(s) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Preview flattens s to its first line and fits it into width columns. A
// marker is appended when lines were dropped.
func Preview(s string, width int) string {
	first := FirstLine(s)
	if first != strings.TrimSpace(s) {
		first += " " + Ellipsis
	}
	return Truncate(first, width)
}

// Plural returns "1 agent" or "3 agents".
func Plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
