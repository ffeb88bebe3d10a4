// Package sanitize is the formula-injection defense. Every cell value bound
// for the spreadsheet backend passes through Sanitize before it reaches a
// dry-run preview, so the user confirms exactly what will be stored.
package sanitize

import (
	"strings"
	"unicode/utf8"
)

// MaxCellLength is the hard cap on outbound cell values, in characters.
const MaxCellLength = 1000

const ellipsis = "..."

// formulaPrefixes are the characters a spreadsheet engine interprets as the
// start of a formula or control sequence.
const formulaPrefixes = "=+-@"

// IsFormulaLike reports whether the trimmed value would be evaluated as a
// formula by a spreadsheet engine.
func IsFormulaLike(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	return strings.ContainsRune(formulaPrefixes, rune(trimmed[0]))
}

// Sanitize neutralizes a single cell value. It trims surrounding whitespace,
// prefixes formula-like values with a single quote so the engine renders
// them as literal text, and truncates to MaxCellLength with a visible
// ellipsis marker. Total: it never fails, regardless of input.
func Sanitize(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.ContainsRune(formulaPrefixes, rune(trimmed[0])) {
		trimmed = "'" + trimmed
	}

	// Truncation counts characters, not bytes, and cuts on a rune boundary
	// so multi-byte values stay valid UTF-8.
	if utf8.RuneCountInString(trimmed) > MaxCellLength {
		runes := []rune(trimmed)
		trimmed = string(runes[:MaxCellLength-len(ellipsis)]) + ellipsis
	}

	return trimmed
}

// SanitizeAny applies Sanitize to string values and passes other scalar
// types through unchanged. Nil becomes the empty string, matching the
// contract that absent input produces an empty cell.
func SanitizeAny(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return Sanitize(v)
	default:
		return value
	}
}
