package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClient_CompleteWithTools(t *testing.T) {
	var gotReq openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call_abc",
						"type": "function",
						"function": map[string]any{
							"name":      "add_row",
							"arguments": `{"data":{"Product":"iPhone 15","Revenue":1200}}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	resp, err := client.CompleteWithTools(context.Background(), "sys", "add iphone", []ToolDefinition{
		{Name: "add_row", InputSchema: map[string]any{"type": "object"}},
	})
	if err != nil {
		t.Fatalf("CompleteWithTools: %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.Name != "add_row" || call.ID != "call_abc" {
		t.Errorf("call = %+v", call)
	}
	data := call.Input["data"].(map[string]any)
	if data["Product"] != "iPhone 15" {
		t.Errorf("arguments not decoded: %+v", call.Input)
	}

	if gotReq.ToolChoice != "auto" {
		t.Errorf("tool_choice = %q, want auto", gotReq.ToolChoice)
	}
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].Function.Name != "add_row" {
		t.Errorf("tools not forwarded: %+v", gotReq.Tools)
	}
}

func TestOpenAIClient_FreeTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "Hello there."},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	resp, err := client.CompleteWithTools(context.Background(), "", "hi", nil)
	if err != nil {
		t.Fatalf("CompleteWithTools: %v", err)
	}
	if resp.Text != "Hello there." || len(resp.ToolCalls) != 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOpenAIClient_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	_, err := client.CompleteWithTools(context.Background(), "", "hi", nil)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestOpenAIClient_MissingAPIKey(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{Model: "m"})
	if _, err := client.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error without API key")
	}
}
