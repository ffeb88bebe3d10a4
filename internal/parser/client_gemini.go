package parser

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient implements LLMClient on the google.golang.org/genai SDK.
// Function calling is native here, which makes Gemini the reference provider
// for the structured-output path.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: config.Model}, nil
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), config)
	if err != nil {
		return "", fmt.Errorf("Gemini request failed: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// CompleteWithTools sends a prompt with function declarations and maps any
// function calls back into the provider-neutral shape.
func (c *GeminiClient) CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*LLMToolResponse, error) {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  mapJSONSchemaToGenai(t.InputSchema),
		}
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
		Tools:       []*genai.Tool{{FunctionDeclarations: decls}},
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), config)
	if err != nil {
		return nil, fmt.Errorf("Gemini request failed: %w", err)
	}

	out := &LLMToolResponse{
		Text:       strings.TrimSpace(resp.Text()),
		StopReason: "end_turn",
	}
	for i, fc := range resp.FunctionCalls() {
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:    id,
			Name:  fc.Name,
			Input: fc.Args,
		})
	}
	if len(out.ToolCalls) > 0 {
		out.StopReason = "tool_use"
	}
	return out, nil
}

// mapJSONSchemaToGenai converts a generic JSON Schema map into the SDK's
// typed Schema. Only the subset the action vocabulary uses is supported.
func mapJSONSchemaToGenai(js map[string]any) *genai.Schema {
	if js == nil {
		return nil
	}

	s := &genai.Schema{}
	if t, ok := js["type"].(string); ok {
		switch t {
		case "object":
			s.Type = genai.TypeObject
		case "string":
			s.Type = genai.TypeString
		case "number":
			s.Type = genai.TypeNumber
		case "boolean":
			s.Type = genai.TypeBoolean
		case "array":
			s.Type = genai.TypeArray
		default:
			s.Type = genai.TypeString
		}
	}
	if d, ok := js["description"].(string); ok {
		s.Description = d
	}
	if props, ok := js["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, sub := range props {
			if subMap, ok := sub.(map[string]any); ok {
				s.Properties[name] = mapJSONSchemaToGenai(subMap)
			}
		}
	}
	if req, ok := js["required"].([]string); ok {
		s.Required = req
	} else if reqAny, ok := js["required"].([]any); ok {
		for _, r := range reqAny {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	return s
}

// GetModel returns the current model.
func (c *GeminiClient) GetModel() string { return c.model }
