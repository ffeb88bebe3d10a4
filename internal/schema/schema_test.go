package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfer_TypeClassification(t *testing.T) {
	headers := []string{"Product", "Revenue", "Launched", "Contact", "Site", "Active"}
	rows := [][]string{
		{"iPhone 15", "$1,200", "2023-09-22", "sales@apple.com", "https://apple.com", "true"},
		{"Pixel 8", "999", "2023-10-04", "store@google.com", "https://store.google.com", "false"},
		{"Galaxy S24", "$1,099.99", "2024-01-17", "shop@samsung.com", "https://samsung.com", "yes"},
	}

	s, err := Infer(headers, rows)
	require.NoError(t, err)
	require.Len(t, s.Columns, 6)

	expect := map[string]Type{
		"Product":  TypeText,
		"Revenue":  TypeNumber,
		"Launched": TypeDate,
		"Contact":  TypeEmail,
		"Site":     TypeURL,
		"Active":   TypeBoolean,
	}
	for name, want := range expect {
		col, ok := s.Column(name)
		require.True(t, ok, "column %s", name)
		assert.Equal(t, want, col.InferredType, "column %s", name)
		assert.Equal(t, 1.0, col.Confidence, "column %s", name)
		assert.Equal(t, 3, col.NonEmptyCount, "column %s", name)
	}

	assert.Equal(t, 3, s.TotalRows)
	assert.True(t, s.HasHeaderRow)
}

func TestInfer_MixedColumnLowersConfidence(t *testing.T) {
	headers := []string{"Amount"}
	rows := [][]string{{"100"}, {"200"}, {"n/a"}, {"300"}}

	s, err := Infer(headers, rows)
	require.NoError(t, err)

	col, ok := s.Column("Amount")
	require.True(t, ok)
	assert.Equal(t, TypeNumber, col.InferredType)
	assert.InDelta(t, 0.75, col.Confidence, 1e-9)
}

func TestInfer_EmptyColumnDefaultsToText(t *testing.T) {
	s, err := Infer([]string{"Notes"}, [][]string{{""}, {"  "}})
	require.NoError(t, err)

	col, _ := s.Column("Notes")
	assert.Equal(t, TypeText, col.InferredType)
	assert.Equal(t, 0, col.NonEmptyCount)
}

func TestInfer_BlankHeaderGetsPlaceholderName(t *testing.T) {
	s, err := Infer([]string{"A", ""}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Column2", s.Columns[1].Name)
}

func TestInfer_NoHeaders(t *testing.T) {
	_, err := Infer(nil, nil)
	assert.Error(t, err)
}

func TestSchema_Check(t *testing.T) {
	t.Run("duplicate names rejected", func(t *testing.T) {
		s := &Schema{Columns: []ColumnDescriptor{
			{Name: "A", Index: 0}, {Name: "A", Index: 1},
		}}
		assert.ErrorContains(t, s.Check(), "duplicate column name")
	})

	t.Run("non-contiguous index rejected", func(t *testing.T) {
		s := &Schema{Columns: []ColumnDescriptor{
			{Name: "A", Index: 0}, {Name: "B", Index: 2},
		}}
		assert.ErrorContains(t, s.Check(), "index")
	})
}

func TestSchema_Summary(t *testing.T) {
	s := &Schema{
		TotalRows: 2,
		Columns: []ColumnDescriptor{
			{Name: "Product", Index: 0, InferredType: TypeText, Confidence: 1.0, SampleValues: []string{"iPhone 15"}},
			{Name: "Revenue", Index: 1, InferredType: TypeNumber, Confidence: 0.5},
		},
	}
	sum := s.Summary()
	assert.Contains(t, sum, "Product: text")
	assert.Contains(t, sum, `e.g. "iPhone 15"`)
	assert.Contains(t, sum, "Revenue: number")
	assert.Contains(t, sum, "low confidence 0.50")
}

func TestClassifyCell(t *testing.T) {
	cases := map[string]Type{
		"$1,200":              TypeNumber,
		"-3.14":               TypeNumber,
		"2024-01-17":          TypeDate,
		"Jan 2, 2024":         TypeDate,
		"user@example.com":    TypeEmail,
		"https://example.com": TypeURL,
		"yes":                 TypeBoolean,
		"iPhone 15":           TypeText,
		"v1.2.3":              TypeText,
	}
	for cell, want := range cases {
		assert.Equal(t, want, ClassifyCell(cell), "cell %q", cell)
	}
}
