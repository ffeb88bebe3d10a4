package normalizer

import (
	"regexp"
	"strings"

	"sheetpilot/internal/action"
)

// verbRule maps natural-language phrasing to an action kind. Rules are
// evaluated in order; the first match wins.
type verbRule struct {
	kind     action.Kind
	keywords []string
	patterns []*regexp.Regexp
}

var verbRules = []verbRule{
	{
		kind:     action.KindAddRow,
		keywords: []string{"add", "new row", "append", "insert", "create"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(please\s+)?(add|append|insert|create)\b`),
			regexp.MustCompile(`(?i)\bnew\s+(row|entry|record)\b`),
		},
	},
	{
		kind:     action.KindUpdateCell,
		keywords: []string{"update", "change", "set cell", "modify", "edit"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(please\s+)?(update|change|modify|edit)\b`),
			regexp.MustCompile(`(?i)\bset\s+(the\s+)?cell\b`),
		},
	},
	{
		kind:     action.KindReadRange,
		keywords: []string{"show", "read", "range", "display", "what is in"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(please\s+)?(show|read|display|list)\b`),
			regexp.MustCompile(`(?i)\brange\b`),
		},
	},
}

// ClassifyVerb extracts an action verb from natural language. Returns false
// when no rule matches; the caller must treat that as a failure, never as a
// default action.
func ClassifyVerb(text string) (action.Kind, bool) {
	lower := strings.ToLower(text)
	for _, rule := range verbRules {
		for _, p := range rule.patterns {
			if p.MatchString(text) {
				return rule.kind, true
			}
		}
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.kind, true
			}
		}
	}
	return action.KindUnsupported, false
}

// Field is one extracted name/value pair, in source order.
type Field struct {
	Name  string
	Value string
}

// fieldPattern matches loosely structured "Name: value" text, e.g.
// "Product: iPhone 15, Revenue: $1,200". Values run to the next separator,
// except that a comma followed by exactly three digits is kept as a
// thousands separator.
var fieldPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9 _-]*?)\s*[:=]\s*("[^"]*"|[^,;\n]+(?:,\d{3})*)`)

// ExtractFields pulls field/value pairs out of loosely structured text,
// preserving their order of appearance.
func ExtractFields(text string) []Field {
	matches := fieldPattern.FindAllStringSubmatch(text, -1)
	fields := make([]Field, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		value := strings.Trim(strings.TrimSpace(m[2]), `"`)
		if name == "" || value == "" {
			continue
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	return fields
}

// ResolveHeader maps an extracted field name onto a known header, returning
// the canonical header name. Extraction can glue a leading verb onto the
// first name ("Add Product"), so an unmatched name is retried with leading
// words stripped one at a time.
func ResolveHeader(name string, headers []string) (string, bool) {
	words := strings.Fields(name)
	for i := 0; i < len(words); i++ {
		candidate := strings.Join(words[i:], " ")
		for _, h := range headers {
			if strings.EqualFold(candidate, h) {
				return h, true
			}
		}
	}
	return name, false
}

// rangePattern matches A1-style references: B2, A1:C10, AA10:AB20.
var rangePattern = regexp.MustCompile(`\b[A-Z]{1,3}[0-9]+(:[A-Z]{1,3}[0-9]+)?\b`)

// ExtractRange finds the first A1-style range in the text, or "".
func ExtractRange(text string) string {
	return rangePattern.FindString(text)
}

// LooksStructured reports whether raw text superficially resembles a
// structured payload (brace-delimited). The coordinator uses this to decide
// whether apparent JSON that fails strict parsing should be normalized
// rather than treated as conversation.
func LooksStructured(text string) bool {
	trimmed := strings.TrimSpace(text)
	open := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	return open != -1 && end > open
}
