package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"sheetpilot/internal/action"
)

// RenderPreview turns a dry-run preview into the text shown to the user
// before confirmation. For cell updates whose preview carries the current
// value, the change is rendered as an inline diff.
func RenderPreview(intent *action.Intent, preview map[string]any) string {
	var b strings.Builder

	switch intent.Kind {
	case action.KindAddRow:
		fmt.Fprintf(&b, "Append row to %s:\n", location(intent))
		for _, name := range previewOrder(intent, preview) {
			fmt.Fprintf(&b, "  %s: %v\n", name, preview[name])
		}
	case action.KindUpdateCell:
		fmt.Fprintf(&b, "Update %s:\n", location(intent))
		before, after, ok := beforeAfter(preview)
		if ok {
			fmt.Fprintf(&b, "  %s\n", RenderDiff(before, after))
		} else {
			for _, name := range previewOrder(intent, preview) {
				fmt.Fprintf(&b, "  %s: %v\n", name, preview[name])
			}
		}
	default:
		fmt.Fprintf(&b, "%s on %s\n", intent.Kind, location(intent))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderDiff renders a before/after value change as inline [-old-][+new+]
// markup.
func RenderDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			fmt.Fprintf(&b, "[-%s-]", d.Text)
		case diffmatchpatch.DiffInsert:
			fmt.Fprintf(&b, "[+%s+]", d.Text)
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}

func location(intent *action.Intent) string {
	tab := intent.Tab
	if tab == "" {
		tab = "(current tab)"
	}
	if intent.Range != "" {
		return fmt.Sprintf("%s!%s", tab, intent.Range)
	}
	return tab
}

// previewOrder lists preview keys in the intent's field order, with any
// backend-added keys appended alphabetically.
func previewOrder(intent *action.Intent, preview map[string]any) []string {
	seen := make(map[string]bool, len(preview))
	var order []string
	for _, name := range intent.OrderedFields() {
		if _, ok := preview[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range preview {
		if !seen[name] && name != "before" && name != "after" {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func beforeAfter(preview map[string]any) (string, string, bool) {
	before, okB := preview["before"].(string)
	after, okA := preview["after"].(string)
	return before, after, okB && okA
}
