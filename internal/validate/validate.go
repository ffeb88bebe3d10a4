// Package validate checks a candidate action against the declared schema.
// Unknown columns are dropped (never fatal), retained values are coerced to
// their column's inferred type, and every outbound string passes through the
// sanitizer so the dry-run preview shows exactly what would be stored.
package validate

import (
	"fmt"

	"sheetpilot/internal/action"
	"sheetpilot/internal/sanitize"
	"sheetpilot/internal/schema"
)

// lowConfidence is the inference confidence below which a retained field
// gets a warning, matching the threshold Schema.Summary flags for the model.
const lowConfidence = 0.8

// Options carries the locale-sensitive knobs of coercion.
type Options struct {
	// DecimalComma treats ',' as the decimal separator and '.' as a
	// thousands separator when coercing numbers. Default is the reverse.
	DecimalComma bool
}

// Validate is a pure function over the intent, the schema, and the
// sanitizer. It never mutates its input intent.
func Validate(intent *action.Intent, sch *schema.Schema, opts Options) action.ValidationResult {
	if intent == nil {
		return reject("no action to validate")
	}

	switch intent.Kind {
	case action.KindAddRow, action.KindUpdateCell:
		return validateFields(intent, sch, opts)
	case action.KindReadRange:
		if intent.Range == "" {
			return reject("readRange requires a target range")
		}
		return accept(intent.Clone(), nil, nil)
	case action.KindFetchTabData:
		if intent.Tab == "" {
			return reject("fetchTabData requires a target tab")
		}
		return accept(intent.Clone(), nil, nil)
	case action.KindUnsupported:
		return reject("unsupported action")
	}
	return reject(fmt.Sprintf("unknown action kind %q", intent.Kind))
}

func validateFields(intent *action.Intent, sch *schema.Schema, opts Options) action.ValidationResult {
	if intent.Kind == action.KindUpdateCell && intent.Range == "" {
		return reject("updateCell requires a target range")
	}

	sanitized := intent.Clone()
	sanitized.Data = make(map[string]any)
	sanitized.FieldOrder = nil

	var removed []string
	var warnings []string

	for _, name := range intent.OrderedFields() {
		raw := intent.Data[name]

		col, known := sch.Column(name)
		if !known {
			removed = append(removed, name)
			continue
		}

		coerced, err := coerce(raw, col.InferredType, opts)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		if col.Confidence < lowConfidence {
			warnings = append(warnings, fmt.Sprintf(
				"%s: column type %s was inferred with low confidence (%.2f)",
				name, col.InferredType, col.Confidence))
		}

		sanitized.Data[name] = sanitize.SanitizeAny(coerced)
		sanitized.FieldOrder = append(sanitized.FieldOrder, name)
	}

	if len(sanitized.Data) == 0 {
		r := reject("no valid fields after validation")
		r.RemovedFields = removed
		r.CoercionWarnings = warnings
		return r
	}

	return accept(sanitized, removed, warnings)
}

func accept(sanitized *action.Intent, removed, warnings []string) action.ValidationResult {
	return action.ValidationResult{
		Outcome:          action.OutcomeAccepted,
		Sanitized:        sanitized,
		RemovedFields:    removed,
		CoercionWarnings: warnings,
	}
}

func reject(reason string) action.ValidationResult {
	return action.ValidationResult{
		Outcome:         action.OutcomeRejected,
		RejectionReason: reason,
	}
}
