// Package normalizer is the fallback parsing stage. When the primary model
// yields no structure, it re-derives a typed action from raw text — either
// locally via deterministic keyword/pattern rules, or by calling a remote
// normalization service. It is the last line of defense against hallucinated
// column names: unknown fields are actively stripped, never silently kept.
package normalizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sheetpilot/internal/action"
	"sheetpilot/internal/logging"
)

// Context carries what the normalizer may rely on besides the raw text.
type Context struct {
	ExpectedAction string   `json:"expectedAction,omitempty"`
	Headers        []string `json:"headers"`
}

// Result is the normalizer's typed outcome. Transport and classification
// failures are values here, not Go errors, so the coordinator can treat the
// cascade uniformly.
type Result struct {
	Success  bool
	Intent   *action.Intent
	Warnings []string
	Error    string
}

// Normalizer re-derives a structured action from raw text.
type Normalizer interface {
	Normalize(ctx context.Context, raw string, nc Context) Result
}

// ---------------------------------------------------------------------------
// Local heuristic engine
// ---------------------------------------------------------------------------

// Local is the deterministic, offline normalizer. It is also the reference
// implementation of the remote service's behavior.
type Local struct {
	log *logging.Logger
}

// NewLocal creates the heuristic normalizer.
func NewLocal() *Local {
	return &Local{log: logging.Get(logging.CategoryNormalizer)}
}

// Normalize extracts an action verb and field/value pairs from the raw text,
// dropping any field whose name does not exactly match a known header.
func (n *Local) Normalize(_ context.Context, raw string, nc Context) Result {
	if intent, warnings, ok := n.fromJSON(raw, nc); ok {
		return Result{Success: true, Intent: intent, Warnings: warnings}
	}

	kind, ok := ClassifyVerb(raw)
	if !ok && nc.ExpectedAction != "" {
		kind = action.ParseKind(nc.ExpectedAction)
		ok = kind != action.KindUnsupported
	}
	if !ok {
		n.log.Info("no action verb recognized in %q", raw)
		return Result{Success: false, Error: "could not determine an action verb"}
	}

	intent := &action.Intent{
		Kind:       kind,
		Confidence: 0.6,
		RawSource:  raw,
	}

	var warnings []string
	switch kind {
	case action.KindAddRow, action.KindUpdateCell:
		intent.Data = make(map[string]any)
		for _, f := range ExtractFields(raw) {
			name, known := ResolveHeader(f.Name, nc.Headers)
			if !known {
				warnings = append(warnings, fmt.Sprintf("dropped unknown field %q", f.Name))
				continue
			}
			intent.Data[name] = f.Value
			intent.FieldOrder = append(intent.FieldOrder, name)
		}
		if kind == action.KindUpdateCell {
			intent.Range = ExtractRange(raw)
		}
	case action.KindReadRange:
		intent.Range = ExtractRange(raw)
	case action.KindFetchTabData, action.KindUnsupported:
		// Nothing to extract.
	}

	n.log.Debug("normalized %q -> %s (%d warnings)", raw, intent.Describe(), len(warnings))
	return Result{Success: true, Intent: intent, Warnings: warnings}
}

// jsonPayload is the strict shape accepted when raw text is brace-delimited
// model output rather than prose.
type jsonPayload struct {
	Action string         `json:"action"`
	Tab    string         `json:"tab,omitempty"`
	Range  string         `json:"range,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

func (n *Local) fromJSON(raw string, nc Context) (*action.Intent, []string, bool) {
	if !LooksStructured(raw) {
		return nil, nil, false
	}
	start := strings.Index(raw, "{")

	var payload jsonPayload
	dec := json.NewDecoder(strings.NewReader(raw[start:]))
	if err := dec.Decode(&payload); err != nil || payload.Action == "" {
		return nil, nil, false
	}

	kind := action.ParseKind(payload.Action)
	if kind == action.KindUnsupported {
		return nil, nil, false
	}

	intent := &action.Intent{
		Kind:       kind,
		Tab:        payload.Tab,
		Range:      payload.Range,
		Confidence: 0.7,
		RawSource:  raw,
	}

	var warnings []string
	if payload.Data != nil {
		intent.Data = make(map[string]any, len(payload.Data))
		for _, name := range sortedKeys(payload.Data) {
			if !headerKnown(name, nc.Headers) {
				warnings = append(warnings, fmt.Sprintf("dropped unknown field %q", name))
				continue
			}
			intent.Data[name] = payload.Data[name]
			intent.FieldOrder = append(intent.FieldOrder, name)
		}
	}
	return intent, warnings, true
}

func headerKnown(name string, headers []string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// ---------------------------------------------------------------------------
// Remote service client
// ---------------------------------------------------------------------------

// Remote calls a stateless normalization service over HTTP.
type Remote struct {
	endpoint   string
	httpClient *http.Client
	log        *logging.Logger
}

// NewRemote creates a client for the configured normalization endpoint.
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Remote{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		log:        logging.Get(logging.CategoryNormalizer),
	}
}

type remoteRequest struct {
	Raw     string  `json:"raw"`
	Context Context `json:"context"`
}

type remoteResponse struct {
	Success    bool     `json:"success"`
	Normalized *struct {
		Action     string         `json:"action"`
		Tab        string         `json:"tab,omitempty"`
		Range      string         `json:"range,omitempty"`
		Data       map[string]any `json:"data,omitempty"`
		Confidence float64        `json:"confidence,omitempty"`
	} `json:"normalized,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Normalize posts the raw text and context to the service. Any transport or
// backend failure surfaces as an unsuccessful Result, never as a panic or a
// Go error the coordinator would have to interpret.
func (n *Remote) Normalize(ctx context.Context, raw string, nc Context) Result {
	body, err := json.Marshal(remoteRequest{Raw: raw, Context: nc})
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Warn("normalizer service unreachable: %v", err)
		return Result{Success: false, Error: fmt.Sprintf("normalizer service unreachable: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to read normalizer response: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Success: false, Error: fmt.Sprintf("normalizer service returned status %d", resp.StatusCode)}
	}

	var parsed remoteResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to parse normalizer response: %v", err)}
	}
	if !parsed.Success || parsed.Normalized == nil {
		msg := parsed.Error
		if msg == "" {
			msg = "normalizer could not derive an action"
		}
		return Result{Success: false, Error: msg, Warnings: parsed.Warnings}
	}

	kind := action.ParseKind(parsed.Normalized.Action)
	confidence := parsed.Normalized.Confidence
	if confidence == 0 {
		confidence = 0.6
	}

	intent := &action.Intent{
		Kind:       kind,
		Tab:        parsed.Normalized.Tab,
		Range:      parsed.Normalized.Range,
		Data:       parsed.Normalized.Data,
		Confidence: confidence,
		RawSource:  raw,
	}
	return Result{Success: true, Intent: intent, Warnings: parsed.Warnings}
}
