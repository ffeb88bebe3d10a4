package schema

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxSampleValues caps how many raw values each descriptor retains.
const maxSampleValues = 5

var (
	// numberPattern accepts optional currency symbol, thousands separators,
	// and a decimal part: "$1,200", "1200", "-3.14", "€2 500,00".
	numberPattern = regexp.MustCompile(`^[-+]?[$€£¥]?\s?\d{1,3}([,.\s]\d{3})*([.,]\d+)?%?$`)

	boolWords = map[string]struct{}{
		"true": {}, "false": {}, "yes": {}, "no": {}, "y": {}, "n": {},
	}
)

// dateLayouts are the calendar formats inference and coercion agree on.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	time.RFC3339,
}

// Infer builds a Schema from a raw header row and data rows, classifying
// each column by majority vote over its non-empty cells. Confidence is the
// share of non-empty cells that voted for the winning type.
func Infer(headers []string, rows [][]string) (*Schema, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("cannot infer schema: no header row")
	}

	s := &Schema{
		Columns:      make([]ColumnDescriptor, len(headers)),
		TotalRows:    len(rows),
		HasHeaderRow: true,
	}

	for i, name := range headers {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Column%d", i+1)
		}
		col := ColumnDescriptor{
			Name:         name,
			Index:        i,
			InferredType: TypeText,
			Confidence:   1.0,
		}

		votes := make(map[Type]int)
		for _, row := range rows {
			if i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			col.NonEmptyCount++
			if len(col.SampleValues) < maxSampleValues {
				col.SampleValues = append(col.SampleValues, cell)
			}
			votes[ClassifyCell(cell)]++
		}

		if col.NonEmptyCount > 0 {
			winner, count := TypeText, 0
			// Fixed precedence keeps ties deterministic.
			for _, t := range []Type{TypeBoolean, TypeNumber, TypeDate, TypeEmail, TypeURL, TypeText} {
				if votes[t] > count {
					winner, count = t, votes[t]
				}
			}
			col.InferredType = winner
			col.Confidence = float64(count) / float64(col.NonEmptyCount)
		}

		s.Columns[i] = col
	}

	if err := s.Check(); err != nil {
		return nil, fmt.Errorf("inferred schema is invalid: %w", err)
	}
	return s, nil
}

// ClassifyCell assigns a single raw cell value to the most specific type it
// satisfies.
func ClassifyCell(cell string) Type {
	lower := strings.ToLower(cell)
	if _, ok := boolWords[lower]; ok {
		return TypeBoolean
	}
	if _, err := strconv.ParseFloat(cell, 64); err == nil {
		return TypeNumber
	}
	if numberPattern.MatchString(cell) {
		return TypeNumber
	}
	if IsDate(cell) {
		return TypeDate
	}
	if strings.Contains(cell, "@") {
		if _, err := mail.ParseAddress(cell); err == nil {
			return TypeEmail
		}
	}
	if u, err := url.Parse(cell); err == nil && u.Scheme != "" && u.Host != "" {
		return TypeURL
	}
	return TypeText
}

// IsDate reports whether the value parses under any accepted calendar layout.
func IsDate(cell string) bool {
	_, err := ParseDate(cell)
	return err == nil
}

// ParseDate parses a calendar date using the shared layout list.
func ParseDate(cell string) (time.Time, error) {
	cell = strings.TrimSpace(cell)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", cell)
}
