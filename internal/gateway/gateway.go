// Package gateway is the execution boundary: it issues validated actions to
// the spreadsheet backend over HTTP. A mutation is always sent twice, first
// as a dry run that returns a preview without touching stored data, then,
// only after the caller confirms, as the real write. The gateway itself does
// not enforce that ordering; the pipeline coordinator does.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sheetpilot/internal/action"
	"sheetpilot/internal/logging"
)

// Options controls how a single backend call is issued.
type Options struct {
	DryRun bool
	Author string
}

// Client talks to the spreadsheet backend service.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient creates a backend client. The token authenticates every request.
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		log:        logging.Get(logging.CategoryGateway),
	}
}

// backendRequest is the wire shape the backend accepts for every action.
type backendRequest struct {
	Token         string         `json:"token"`
	Action        string         `json:"action"`
	SpreadsheetID string         `json:"spreadsheetId"`
	TabName       string         `json:"tabName,omitempty"`
	Range         string         `json:"range,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	Options       requestOptions `json:"options"`
}

type requestOptions struct {
	Author string `json:"author"`
	DryRun bool   `json:"dryRun"`
}

// Response is the backend's answer. Which fields are populated depends on
// the action: tabs for listTabs, headers/rows for fetchTabData, values for
// readRange, preview for dry runs, rowIndex/result for real writes.
type Response struct {
	Success  bool           `json:"success"`
	Preview  map[string]any `json:"preview,omitempty"`
	RowIndex int            `json:"rowIndex,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
	Tabs     []string       `json:"tabs,omitempty"`
	Headers  []string       `json:"headers,omitempty"`
	Rows     [][]string     `json:"rows,omitempty"`
	Values   [][]any        `json:"values,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Execute sends one action to the backend and decodes its response. Non-2xx
// statuses are mapped to stage-context errors; there is no retry.
func (c *Client) Execute(ctx context.Context, intent *action.Intent, opts Options) (*Response, error) {
	reqBody := backendRequest{
		Token:         c.token,
		Action:        string(intent.Kind),
		SpreadsheetID: intent.SpreadsheetID,
		TabName:       intent.Tab,
		Range:         intent.Range,
		Data:          intent.Data,
		Options:       requestOptions{Author: opts.Author, DryRun: opts.DryRun},
	}
	c.log.Debug("executing %s (dryRun=%v)", intent.Describe(), opts.DryRun)
	return c.do(ctx, reqBody)
}

// DryRun asks the backend what the write would produce without mutating
// anything. Backend rejection of a dry run is an error: there is nothing to
// confirm if the preview itself failed.
func (c *Client) DryRun(ctx context.Context, intent *action.Intent, author string) (action.PreviewResult, error) {
	resp, err := c.Execute(ctx, intent, Options{DryRun: true, Author: author})
	if err != nil {
		return action.PreviewResult{}, err
	}
	if !resp.Success {
		return action.PreviewResult{}, fmt.Errorf("dry run rejected: %s", resp.Error)
	}
	preview := resp.Preview
	if preview == nil {
		preview = intent.Data
	}
	return action.PreviewResult{
		DryRun:   true,
		Preview:  preview,
		Rendered: RenderPreview(intent, preview),
	}, nil
}

// Apply issues the real call. Backend errors are folded into the result as
// Success:false with a human-readable message, never returned as Go errors,
// so history records the failure the same way it records a success.
func (c *Client) Apply(ctx context.Context, intent *action.Intent, author string) action.ExecutionResult {
	resp, err := c.Execute(ctx, intent, Options{DryRun: false, Author: author})
	if err != nil {
		return action.ExecutionResult{Success: false, Error: err.Error()}
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "backend rejected the request"
		}
		return action.ExecutionResult{Success: false, Error: msg}
	}
	result := resp.Result
	if result == nil && resp.Values != nil {
		result = map[string]any{"values": resp.Values}
	}
	return action.ExecutionResult{
		Success:  true,
		RowIndex: resp.RowIndex,
		Result:   result,
	}
}

// ListTabs returns the tab names of a spreadsheet.
func (c *Client) ListTabs(ctx context.Context, spreadsheetID string) ([]string, error) {
	resp, err := c.do(ctx, backendRequest{
		Token:         c.token,
		Action:        "listTabs",
		SpreadsheetID: spreadsheetID,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("listTabs failed: %s", resp.Error)
	}
	return resp.Tabs, nil
}

// FetchTabData reads a tab's header row and cell grid. The schema registry
// infers column types from this.
func (c *Client) FetchTabData(ctx context.Context, spreadsheetID, tab string) ([]string, [][]string, error) {
	resp, err := c.do(ctx, backendRequest{
		Token:         c.token,
		Action:        "fetchTabData",
		SpreadsheetID: spreadsheetID,
		TabName:       tab,
	})
	if err != nil {
		return nil, nil, err
	}
	if !resp.Success {
		return nil, nil, fmt.Errorf("fetchTabData failed for tab %q: %s", tab, resp.Error)
	}
	return resp.Headers, resp.Rows, nil
}

func (c *Client) do(ctx context.Context, reqBody backendRequest) (*Response, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("backend unreachable: %v", err)
		return nil, fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp.StatusCode, body)
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse backend response: %w", err)
	}
	return &parsed, nil
}

// statusError maps the backend's HTTP status conventions to readable errors.
func (c *Client) statusError(status int, body []byte) error {
	detail := ""
	var parsed Response
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		detail = parsed.Error
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("backend rejected token (status 401)")
	case http.StatusUnprocessableEntity:
		if detail != "" {
			return fmt.Errorf("backend validation failed (status 422): %s", detail)
		}
		return fmt.Errorf("backend validation failed (status 422)")
	case http.StatusTooManyRequests:
		return fmt.Errorf("backend rate limited (status 429)")
	case http.StatusInternalServerError:
		return fmt.Errorf("backend fault (status 500)")
	default:
		if detail != "" {
			return fmt.Errorf("backend returned status %d: %s", status, detail)
		}
		return fmt.Errorf("backend returned status %d", status)
	}
}
