package utils

import "strings"

// Truncate shortens s to at most maxRunes runes, appending "..." when it cut
// something. It never splits a multi-byte character, which matters for proof
// text full of unicode notation.
func Truncate(s string, maxRunes int) string {
	if maxRunes < 0 {
		maxRunes = 0
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

// OneLine collapses every run of whitespace, newlines included, into a single
// space so diagnostics and proofs fit in a table cell.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
