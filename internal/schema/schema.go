// Package schema holds the declared shape of the target tabular surface.
// A Schema is built once from a prior read of the tab and is immutable for
// the lifetime of a session; every pipeline call receives it explicitly.
package schema

import (
	"fmt"
	"strings"
)

// Type is the inferred data type of a column. Closed set.
type Type string

const (
	TypeText    Type = "text"
	TypeNumber  Type = "number"
	TypeDate    Type = "date"
	TypeEmail   Type = "email"
	TypeURL     Type = "url"
	TypeBoolean Type = "boolean"
)

// ColumnDescriptor describes one column of the target surface.
type ColumnDescriptor struct {
	Name          string   `json:"name"`
	Index         int      `json:"index"`
	InferredType  Type     `json:"inferredType"`
	Confidence    float64  `json:"confidence"`
	SampleValues  []string `json:"sampleValues,omitempty"`
	NonEmptyCount int      `json:"nonEmptyCount"`
}

// Schema is an ordered sequence of column descriptors plus tab-level facts.
// Invariants: column names are unique and Index values form a contiguous
// 0-based sequence matching position.
type Schema struct {
	Columns      []ColumnDescriptor `json:"columns"`
	TotalRows    int                `json:"totalRows"`
	HasHeaderRow bool               `json:"hasHeaderRow"`
}

// Column looks up a descriptor by exact, case-sensitive name.
func (s *Schema) Column(name string) (*ColumnDescriptor, bool) {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// Headers returns the ordered column names.
func (s *Schema) Headers() []string {
	headers := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		headers[i] = c.Name
	}
	return headers
}

// Check verifies the schema invariants. A schema that fails Check must not
// enter the pipeline.
func (s *Schema) Check() error {
	seen := make(map[string]struct{}, len(s.Columns))
	for i, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Index != i {
			return fmt.Errorf("column %q has index %d, want %d", c.Name, c.Index, i)
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			return fmt.Errorf("column %q has confidence %v outside [0,1]", c.Name, c.Confidence)
		}
	}
	return nil
}

// Summary renders the schema compactly for an LLM prompt, one column per
// line with its type, confidence, and a sample value.
func (s *Schema) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Columns (%d), rows (%d):\n", len(s.Columns), s.TotalRows)
	for _, c := range s.Columns {
		fmt.Fprintf(&sb, "- %s: %s", c.Name, c.InferredType)
		if c.Confidence < 0.8 {
			fmt.Fprintf(&sb, " (low confidence %.2f)", c.Confidence)
		}
		if len(c.SampleValues) > 0 {
			fmt.Fprintf(&sb, ", e.g. %q", c.SampleValues[0])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
