package normalizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetpilot/internal/action"
)

var salesHeaders = []string{"Product", "Revenue"}

func TestLocal_AddRowFromLooseText(t *testing.T) {
	res := NewLocal().Normalize(context.Background(), "Add Product: iPhone 15, Revenue: $1,200", Context{Headers: salesHeaders})

	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, action.KindAddRow, res.Intent.Kind)
	assert.Equal(t, "iPhone 15", res.Intent.Data["Product"])
	assert.Equal(t, "$1,200", res.Intent.Data["Revenue"])
	assert.Empty(t, res.Warnings)
}

func TestLocal_UnknownFieldsActivelyStripped(t *testing.T) {
	res := NewLocal().Normalize(context.Background(), "Add Product: x, Color: red", Context{Headers: salesHeaders})

	require.True(t, res.Success)
	assert.NotContains(t, res.Intent.Data, "Color")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Color")
}

func TestLocal_VerbClassification(t *testing.T) {
	cases := []struct {
		text string
		want action.Kind
	}{
		{"add a new row for Widget", action.KindAddRow},
		{"insert Product: x", action.KindAddRow},
		{"update the revenue in B2 to 500", action.KindUpdateCell},
		{"change B2: 500", action.KindUpdateCell},
		{"set cell C3 to done", action.KindUpdateCell},
		{"show me A1:C10", action.KindReadRange},
		{"read range B2:B20", action.KindReadRange},
	}
	for _, tc := range cases {
		kind, ok := ClassifyVerb(tc.text)
		require.True(t, ok, "text %q", tc.text)
		assert.Equal(t, tc.want, kind, "text %q", tc.text)
	}
}

func TestLocal_NoVerbFails(t *testing.T) {
	res := NewLocal().Normalize(context.Background(), "the weather is nice today", Context{Headers: salesHeaders})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestLocal_ExpectedActionBreaksTie(t *testing.T) {
	res := NewLocal().Normalize(context.Background(), "Product: x, Revenue: 5", Context{
		ExpectedAction: "addRow",
		Headers:        salesHeaders,
	})
	require.True(t, res.Success)
	assert.Equal(t, action.KindAddRow, res.Intent.Kind)
}

func TestLocal_StructuredJSONPayload(t *testing.T) {
	raw := `{"action":"addRow","data":{"Product":"iPhone 15","Revenue":1200,"NonExistentColumn":"x"}}`
	res := NewLocal().Normalize(context.Background(), raw, Context{Headers: salesHeaders})

	require.True(t, res.Success)
	assert.Equal(t, action.KindAddRow, res.Intent.Kind)
	assert.Equal(t, "iPhone 15", res.Intent.Data["Product"])
	assert.NotContains(t, res.Intent.Data, "NonExistentColumn")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "NonExistentColumn")
}

func TestLocal_RangeExtraction(t *testing.T) {
	res := NewLocal().Normalize(context.Background(), "show me the range A1:C10", Context{Headers: salesHeaders})
	require.True(t, res.Success)
	assert.Equal(t, action.KindReadRange, res.Intent.Kind)
	assert.Equal(t, "A1:C10", res.Intent.Range)
}

func TestExtractFields_OrderPreserved(t *testing.T) {
	fields := ExtractFields("Zeta: 1, Alpha: 2, Mid: 3")
	require.Len(t, fields, 3)
	assert.Equal(t, "Zeta", fields[0].Name)
	assert.Equal(t, "Alpha", fields[1].Name)
	assert.Equal(t, "Mid", fields[2].Name)
}

func TestRemote_Success(t *testing.T) {
	var gotReq remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"normalized": map[string]any{
				"action": "addRow",
				"data":   map[string]any{"Product": "iPhone 15"},
			},
			"warnings": []string{"dropped unknown field \"Color\""},
		})
	}))
	defer srv.Close()

	res := NewRemote(srv.URL, 0).Normalize(context.Background(), "Add Product: iPhone 15", Context{Headers: salesHeaders})

	require.True(t, res.Success)
	assert.Equal(t, action.KindAddRow, res.Intent.Kind)
	assert.Equal(t, "iPhone 15", res.Intent.Data["Product"])
	assert.Len(t, res.Warnings, 1)

	assert.Equal(t, "Add Product: iPhone 15", gotReq.Raw)
	assert.Equal(t, salesHeaders, gotReq.Context.Headers)
}

func TestRemote_ServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "no verb found"})
	}))
	defer srv.Close()

	res := NewRemote(srv.URL, 0).Normalize(context.Background(), "gibberish", Context{})
	assert.False(t, res.Success)
	assert.Equal(t, "no verb found", res.Error)
}

func TestRemote_TransportFailureIsValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	res := NewRemote(srv.URL, 0).Normalize(context.Background(), "Add Product: x", Context{})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}
