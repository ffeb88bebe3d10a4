package parser

import (
	"context"
	"fmt"

	"sheetpilot/internal/action"
	"sheetpilot/internal/logging"
	"sheetpilot/internal/schema"
)

// OutcomeType is the closed set of results the primary parser can produce.
type OutcomeType string

const (
	// OutcomeAction means the model produced a structured call.
	OutcomeAction OutcomeType = "action"
	// OutcomeText means the model replied in prose rather than with a
	// structured call.
	OutcomeText OutcomeType = "text"
	// OutcomeFailure means the model call failed; the coordinator routes
	// RawResponse to the fallback normalizer.
	OutcomeFailure OutcomeType = "failure"
)

// Outcome is the typed result of the primary parse. The adapter never
// returns an error; every failure path is captured here.
type Outcome struct {
	Type        OutcomeType
	Intent      *action.Intent
	Content     string
	RawResponse string
}

// Target identifies the spreadsheet surface an instruction applies to. It
// comes from the session, never from the model.
type Target struct {
	SpreadsheetID string
	Tab           string
}

// Parser adapts a structured-output model into the pipeline's first stage.
type Parser struct {
	client LLMClient
	log    *logging.Logger
}

// New creates a parser over the given LLM client.
func New(client LLMClient) *Parser {
	return &Parser{
		client: client,
		log:    logging.Get(logging.CategoryParser),
	}
}

const systemPromptTemplate = `You are a spreadsheet assistant. The user gives instructions about a spreadsheet tab with this schema:

%s
Use exactly one of the provided tools to express the user's request. Only use column names that exist in the schema. If the user is chatting or asking a general question rather than requesting a spreadsheet operation, answer in plain text without calling a tool.`

// Parse asks the model for a single function-style call constrained to the
// action vocabulary and maps it into an intent. No validation happens here.
func (p *Parser) Parse(ctx context.Context, instruction string, sch *schema.Schema, target Target) Outcome {
	tools := BuildTools(sch)
	system := fmt.Sprintf(systemPromptTemplate, sch.Summary())

	resp, err := p.client.CompleteWithTools(ctx, system, instruction, tools)
	if err != nil {
		p.log.Warn("primary model failed: %v", err)
		return Outcome{Type: OutcomeFailure, RawResponse: instruction}
	}

	if len(resp.ToolCalls) == 0 {
		if resp.Text == "" {
			p.log.Warn("primary model returned neither tool call nor text")
			return Outcome{Type: OutcomeFailure, RawResponse: instruction}
		}
		p.log.Debug("conversational reply, no structured call")
		return Outcome{Type: OutcomeText, Content: resp.Text}
	}

	call := resp.ToolCalls[0]
	intent := intentFromCall(call, instruction, target)
	p.log.Info("structured call %s -> %s", call.Name, intent.Describe())
	return Outcome{Type: OutcomeAction, Intent: intent}
}

// intentFromCall maps tool-call arguments directly into an ActionIntent.
// Hallucinated fields survive this mapping on purpose; stripping them is the
// validator's responsibility.
func intentFromCall(call ToolCall, instruction string, target Target) *action.Intent {
	intent := &action.Intent{
		Kind:          action.ParseKind(call.Name),
		SpreadsheetID: target.SpreadsheetID,
		Tab:           target.Tab,
		Confidence:    0.9,
		RawSource:     instruction,
	}

	if tab, ok := call.Input["tab"].(string); ok && tab != "" {
		intent.Tab = tab
	}
	if rng, ok := call.Input["range"].(string); ok {
		intent.Range = rng
	}
	if data, ok := call.Input["data"].(map[string]any); ok {
		intent.Data = data
	}
	return intent
}

// BuildTools declares the four-action vocabulary as tool definitions, with
// the data object constrained to the schema's columns.
func BuildTools(sch *schema.Schema) []ToolDefinition {
	dataSchema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           columnProperties(sch),
	}
	tabProp := map[string]any{"type": "string", "description": "Tab name; omit to use the current tab"}
	rangeProp := map[string]any{"type": "string", "description": "A1-style range, e.g. B2 or A1:C10"}

	return []ToolDefinition{
		{
			Name:        "add_row",
			Description: "Append a new row to the tab. data maps column names to values.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"tab": tabProp, "data": dataSchema},
				"required":   []string{"data"},
			},
		},
		{
			Name:        "update_cell",
			Description: "Update one or more cells in an existing row identified by an A1-style range.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"tab": tabProp, "range": rangeProp, "data": dataSchema},
				"required":   []string{"range", "data"},
			},
		},
		{
			Name:        "read_range",
			Description: "Read the values of an A1-style range without modifying anything.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"tab": tabProp, "range": rangeProp},
				"required":   []string{"range"},
			},
		},
		{
			Name:        "fetch_tab_data",
			Description: "Fetch the full contents of a tab.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"tab": tabProp},
				"required":   []string{"tab"},
			},
		},
	}
}

func columnProperties(sch *schema.Schema) map[string]any {
	props := make(map[string]any, len(sch.Columns))
	for _, col := range sch.Columns {
		var jsType string
		switch col.InferredType {
		case schema.TypeNumber:
			jsType = "number"
		case schema.TypeBoolean:
			jsType = "boolean"
		default:
			jsType = "string"
		}
		props[col.Name] = map[string]any{
			"type":        jsType,
			"description": fmt.Sprintf("%s column", col.InferredType),
		}
	}
	return props
}
