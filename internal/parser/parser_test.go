package parser

import (
	"context"
	"errors"
	"testing"

	"sheetpilot/internal/action"
	"sheetpilot/internal/schema"
)

// fakeClient scripts a single CompleteWithTools response.
type fakeClient struct {
	resp     *LLMToolResponse
	err      error
	lastSys  string
	lastUser string
	tools    []ToolDefinition
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeClient) CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*LLMToolResponse, error) {
	f.lastSys = systemPrompt
	f.lastUser = userPrompt
	f.tools = tools
	return f.resp, f.err
}

func testSchema() *schema.Schema {
	return &schema.Schema{
		Columns: []schema.ColumnDescriptor{
			{Name: "Product", Index: 0, InferredType: schema.TypeText, Confidence: 1},
			{Name: "Revenue", Index: 1, InferredType: schema.TypeNumber, Confidence: 1},
		},
	}
}

func TestParse_StructuredCallBecomesAction(t *testing.T) {
	client := &fakeClient{resp: &LLMToolResponse{
		StopReason: "tool_use",
		ToolCalls: []ToolCall{{
			ID:   "call_0",
			Name: "add_row",
			Input: map[string]any{
				"data": map[string]any{"Product": "iPhone 15", "Revenue": 1200.0},
			},
		}},
	}}

	out := New(client).Parse(context.Background(), "Add iPhone 15 with revenue $1,200", testSchema(), Target{SpreadsheetID: "sheet-1", Tab: "Sales"})

	if out.Type != OutcomeAction {
		t.Fatalf("outcome = %s, want action", out.Type)
	}
	if out.Intent.Kind != action.KindAddRow {
		t.Errorf("kind = %s, want addRow", out.Intent.Kind)
	}
	if out.Intent.SpreadsheetID != "sheet-1" || out.Intent.Tab != "Sales" {
		t.Errorf("target not carried: %+v", out.Intent)
	}
	if out.Intent.Data["Product"] != "iPhone 15" {
		t.Errorf("data not mapped: %+v", out.Intent.Data)
	}
	if out.Intent.RawSource != "Add iPhone 15 with revenue $1,200" {
		t.Errorf("raw source not preserved")
	}
}

func TestParse_HallucinatedFieldsSurviveParsing(t *testing.T) {
	// Stripping unknown fields is the validator's job, not the parser's.
	client := &fakeClient{resp: &LLMToolResponse{
		ToolCalls: []ToolCall{{
			Name: "add_row",
			Input: map[string]any{
				"data": map[string]any{"Product": "x", "NonExistentColumn": "y"},
			},
		}},
	}}

	out := New(client).Parse(context.Background(), "add x", testSchema(), Target{})
	if out.Type != OutcomeAction {
		t.Fatalf("outcome = %s, want action", out.Type)
	}
	if _, ok := out.Intent.Data["NonExistentColumn"]; !ok {
		t.Errorf("parser must not strip fields; validation owns that")
	}
}

func TestParse_FreeTextIsConversational(t *testing.T) {
	client := &fakeClient{resp: &LLMToolResponse{Text: "The tab has 2 columns.", StopReason: "end_turn"}}

	out := New(client).Parse(context.Background(), "what columns are there?", testSchema(), Target{})

	if out.Type != OutcomeText {
		t.Fatalf("outcome = %s, want text", out.Type)
	}
	if out.Content != "The tab has 2 columns." {
		t.Errorf("content = %q", out.Content)
	}
}

func TestParse_TransportFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}

	out := New(client).Parse(context.Background(), "Add Product: iPhone 15, Revenue: $1,200", testSchema(), Target{})

	if out.Type != OutcomeFailure {
		t.Fatalf("outcome = %s, want failure", out.Type)
	}
	if out.RawResponse != "Add Product: iPhone 15, Revenue: $1,200" {
		t.Errorf("failure must carry the original instruction for the normalizer, got %q", out.RawResponse)
	}
}

func TestParse_EmptyResponseIsFailure(t *testing.T) {
	client := &fakeClient{resp: &LLMToolResponse{}}

	out := New(client).Parse(context.Background(), "do something", testSchema(), Target{})
	if out.Type != OutcomeFailure {
		t.Fatalf("outcome = %s, want failure", out.Type)
	}
}

func TestParse_SchemaReachesPrompt(t *testing.T) {
	client := &fakeClient{resp: &LLMToolResponse{Text: "ok"}}

	New(client).Parse(context.Background(), "hello", testSchema(), Target{})

	if client.lastSys == "" || client.tools == nil {
		t.Fatal("system prompt and tools must be sent")
	}
	if len(client.tools) != 4 {
		t.Fatalf("tool count = %d, want 4", len(client.tools))
	}
}

func TestBuildTools_DataConstrainedToColumns(t *testing.T) {
	tools := BuildTools(testSchema())

	var addRow *ToolDefinition
	for i := range tools {
		if tools[i].Name == "add_row" {
			addRow = &tools[i]
		}
	}
	if addRow == nil {
		t.Fatal("add_row tool missing")
	}

	props := addRow.InputSchema["properties"].(map[string]any)
	data := props["data"].(map[string]any)
	cols := data["properties"].(map[string]any)
	if _, ok := cols["Product"]; !ok {
		t.Error("Product column missing from tool schema")
	}
	rev := cols["Revenue"].(map[string]any)
	if rev["type"] != "number" {
		t.Errorf("Revenue type = %v, want number", rev["type"])
	}
	if data["additionalProperties"] != false {
		t.Error("data object must not allow additional properties")
	}
}
