// Package text provides input normalization for speech synthesis requests.
package text

import (
	"strings"
	"unicode"
)

// MaxLength is the cap on normalized synthesis input, in runes. Input beyond
// the cap is truncated.
const MaxLength = 5000

// Normalize prepares raw request text for synthesis: control characters
// become spaces, runs of whitespace collapse to a single space, and the
// result is capped at MaxLength runes. The result is trimmed; an
// all-whitespace input normalizes to the empty string.
func Normalize(input string) string {
	if input == "" {
		return ""
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}

		return r
	}, input)

	return truncate(strings.Join(strings.Fields(cleaned), " "), MaxLength)
}

// truncate cuts the string to at most limit runes, dropping any trailing
// whitespace the cut leaves behind.
func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}

	return strings.TrimRight(string(runes[:limit]), " ")
}
