// Package action defines the typed vocabulary that flows through the
// guardrail pipeline: the candidate intent produced by the parsing stages,
// the validation verdict, and the dry-run/execution results returned by the
// spreadsheet backend.
package action

import "fmt"

// Kind identifies what the user wants done to the spreadsheet.
// It is a closed set; every stage boundary switches exhaustively over it so
// adding a new kind is a compile-visible change.
type Kind string

const (
	KindAddRow       Kind = "addRow"
	KindUpdateCell   Kind = "updateCell"
	KindReadRange    Kind = "readRange"
	KindFetchTabData Kind = "fetchTabData"
	KindUnsupported  Kind = "unsupported"
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{KindAddRow, KindUpdateCell, KindReadRange, KindFetchTabData}

// ParseKind maps a raw tag to a Kind, tolerating snake_case tool names.
func ParseKind(raw string) Kind {
	switch raw {
	case "addRow", "add_row":
		return KindAddRow
	case "updateCell", "update_cell":
		return KindUpdateCell
	case "readRange", "read_range":
		return KindReadRange
	case "fetchTabData", "fetch_tab_data":
		return KindFetchTabData
	default:
		return KindUnsupported
	}
}

// IsMutation reports whether the kind writes to the backend.
func (k Kind) IsMutation() bool {
	switch k {
	case KindAddRow, KindUpdateCell:
		return true
	case KindReadRange, KindFetchTabData, KindUnsupported:
		return false
	}
	return false
}

// Intent is the structured, not-yet-validated candidate produced by the
// parsing stages. It is created fresh per user instruction and discarded
// after execution or rejection.
type Intent struct {
	Kind          Kind           `json:"kind"`
	SpreadsheetID string         `json:"spreadsheetId"`
	Tab           string         `json:"tab"`
	Data          map[string]any `json:"data,omitempty"`
	Range         string         `json:"range,omitempty"`
	Confidence    float64        `json:"confidence"`
	RawSource     string         `json:"rawSource"`
	// FieldOrder preserves the order fields were extracted in, so previews
	// and warnings are stable. Data alone is an unordered map.
	FieldOrder []string `json:"-"`
}

// Clone returns a deep copy so validation can build a sanitized intent
// without mutating the candidate it was given.
func (in *Intent) Clone() *Intent {
	if in == nil {
		return nil
	}
	out := *in
	if in.Data != nil {
		out.Data = make(map[string]any, len(in.Data))
		for k, v := range in.Data {
			out.Data[k] = v
		}
	}
	out.FieldOrder = append([]string(nil), in.FieldOrder...)
	return &out
}

// OrderedFields returns the field names in extraction order, falling back to
// whatever order the map yields when no order was recorded.
func (in *Intent) OrderedFields() []string {
	if len(in.FieldOrder) > 0 {
		return in.FieldOrder
	}
	fields := make([]string, 0, len(in.Data))
	for k := range in.Data {
		fields = append(fields, k)
	}
	return fields
}

// Outcome is the binary verdict of schema validation.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
)

// ValidationResult captures what the validator kept, dropped, and altered.
// Invariant: Sanitized.Data contains only keys present in the schema, and
// every value in it has passed type coercion for its column.
type ValidationResult struct {
	Outcome          Outcome  `json:"outcome"`
	Sanitized        *Intent  `json:"sanitizedAction,omitempty"`
	RemovedFields    []string `json:"removedFields,omitempty"`
	CoercionWarnings []string `json:"coercionWarnings,omitempty"`
	RejectionReason  string   `json:"rejectionReason,omitempty"`
}

// Accepted reports whether the intent survived validation.
func (r ValidationResult) Accepted() bool { return r.Outcome == OutcomeAccepted }

// PreviewResult is what a dry run reports: the row/cell as it would appear
// after the write. It never reflects a mutation.
type PreviewResult struct {
	DryRun  bool           `json:"dryRun"`
	Preview map[string]any `json:"preview"`
	// Rendered is a human-readable rendering of Preview, shown verbatim to
	// the user before confirmation.
	Rendered string `json:"rendered,omitempty"`
}

// ExecutionResult is the backend's answer to a real (non-dry-run) write, or
// to a read. RowIndex is the backend-assigned identifier for a new row.
type ExecutionResult struct {
	Success  bool           `json:"success"`
	RowIndex int            `json:"rowIndex,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Describe renders a one-line summary for logs and history entries.
func (in *Intent) Describe() string {
	switch in.Kind {
	case KindAddRow:
		return fmt.Sprintf("addRow tab=%q fields=%d", in.Tab, len(in.Data))
	case KindUpdateCell:
		return fmt.Sprintf("updateCell tab=%q range=%q fields=%d", in.Tab, in.Range, len(in.Data))
	case KindReadRange:
		return fmt.Sprintf("readRange tab=%q range=%q", in.Tab, in.Range)
	case KindFetchTabData:
		return fmt.Sprintf("fetchTabData tab=%q", in.Tab)
	case KindUnsupported:
		return "unsupported"
	}
	return string(in.Kind)
}
