package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_FormulaInjection(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"equals prefix", "=SUM(A1:A10)", "'=SUM(A1:A10)"},
		{"plus prefix", "+1 (555) 0100", "'+1 (555) 0100"},
		{"minus prefix", "-42", "'-42"},
		{"at prefix", "@import", "'@import"},
		{"leading whitespace before formula", "   =HYPERLINK(\"x\")", "'=HYPERLINK(\"x\")"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sanitize(tc.input))
			assert.True(t, IsFormulaLike(tc.input))
		})
	}
}

func TestSanitize_SafeValuesPassThrough(t *testing.T) {
	assert.Equal(t, "iPhone 15", Sanitize("  iPhone 15  "))
	assert.Equal(t, "hello", Sanitize("hello"))
	assert.Equal(t, "", Sanitize(""))
	assert.Equal(t, "", Sanitize("   "))
}

func TestSanitize_IdempotentOnSafeInput(t *testing.T) {
	inputs := []string{"iPhone 15", "1200", "a.b@example.com", "", "   padded   ", "O'Brien"}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "sanitize should be idempotent for %q", in)
	}
}

func TestSanitize_EscapedValueStaysEscaped(t *testing.T) {
	// A second pass over an escaped formula must not stack quotes.
	once := Sanitize("=1+1")
	twice := Sanitize(once)
	assert.Equal(t, "'=1+1", once)
	assert.Equal(t, once, twice)
}

func TestSanitize_Truncation(t *testing.T) {
	long := strings.Repeat("x", MaxCellLength+500)
	got := Sanitize(long)

	assert.Len(t, got, MaxCellLength)
	assert.True(t, strings.HasSuffix(got, "..."), "truncated value must end with ellipsis")

	// Exactly at the limit: untouched.
	exact := strings.Repeat("y", MaxCellLength)
	assert.Equal(t, exact, Sanitize(exact))
}

func TestSanitize_TruncationCountsCharacters(t *testing.T) {
	// 400 characters but 1200 bytes: under the cap, must pass untouched.
	short := strings.Repeat("€", 400)
	assert.Equal(t, short, Sanitize(short))

	// Over the cap: cut lands on a rune boundary and the result is exactly
	// MaxCellLength characters including the ellipsis.
	long := strings.Repeat("€", MaxCellLength+200)
	got := Sanitize(long)
	assert.Equal(t, MaxCellLength, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got), "truncated value must remain valid UTF-8")
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("€", MaxCellLength-3)+"...", got)
}

func TestSanitizeAny(t *testing.T) {
	assert.Equal(t, "", SanitizeAny(nil))
	assert.Equal(t, "'=cmd", SanitizeAny("=cmd"))
	assert.Equal(t, 1200.0, SanitizeAny(1200.0))
	assert.Equal(t, true, SanitizeAny(true))
}
