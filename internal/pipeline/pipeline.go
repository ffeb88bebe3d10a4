// Package pipeline is the coordinator: it drives one user instruction
// through parse, fallback normalization, validation, and the dry-run/confirm
// execution protocol. Each instruction yields exactly one terminal outcome:
// a text reply, an error, or an action held pending confirmation. A real
// write is only ever issued from ConfirmPending, and only after the dry-run
// preview of the same sanitized payload was produced.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"sheetpilot/internal/action"
	"sheetpilot/internal/logging"
	"sheetpilot/internal/normalizer"
	"sheetpilot/internal/parser"
	"sheetpilot/internal/schema"
	"sheetpilot/internal/validate"
)

// OutcomeType is the closed set of terminal outcomes per instruction.
type OutcomeType string

const (
	// OutcomeText is a conversational reply or a read result; nothing to
	// confirm.
	OutcomeText OutcomeType = "text"
	// OutcomePending means a mutation passed validation and dry run; it
	// waits for ConfirmPending or CancelPending.
	OutcomePending OutcomeType = "pending"
	// OutcomeError is a rejection or a stage failure, with a human-readable
	// message.
	OutcomeError OutcomeType = "error"
)

// Outcome is the terminal result of one submitted instruction.
type Outcome struct {
	Type    OutcomeType
	Text    string
	Pending *PendingAction
	Err     string
}

// PendingAction is a validated mutation awaiting human confirmation. The
// intent it holds is the sanitized one; its preview came from a dry run of
// exactly that payload.
type PendingAction struct {
	ID            string
	Intent        *action.Intent
	RemovedFields []string
	Warnings      []string
	Preview       action.PreviewResult
}

// PrimaryParser is the structured-output model adapter.
type PrimaryParser interface {
	Parse(ctx context.Context, instruction string, sch *schema.Schema, target parser.Target) parser.Outcome
}

// Gateway issues actions to the spreadsheet backend.
type Gateway interface {
	DryRun(ctx context.Context, intent *action.Intent, author string) (action.PreviewResult, error)
	Apply(ctx context.Context, intent *action.Intent, author string) action.ExecutionResult
}

// Recorder journals applied actions. history.Store satisfies it.
type Recorder interface {
	RecordExecution(intent *action.Intent, author string, result action.ExecutionResult) error
}

// Coordinator runs the guardrail pipeline. It processes one instruction
// end-to-end at a time and holds at most one pending action.
type Coordinator struct {
	parser     PrimaryParser
	normalizer normalizer.Normalizer
	gateway    Gateway
	recorder   Recorder
	author     string
	vopts      validate.Options
	log        *logging.Logger

	mu      sync.Mutex
	pending *PendingAction
}

// Config wires the coordinator's collaborators. Recorder may be nil to
// disable journaling.
type Config struct {
	Parser     PrimaryParser
	Normalizer normalizer.Normalizer
	Gateway    Gateway
	Recorder   Recorder
	Author     string
	Validation validate.Options
}

// New creates a coordinator.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		parser:     cfg.Parser,
		normalizer: cfg.Normalizer,
		gateway:    cfg.Gateway,
		recorder:   cfg.Recorder,
		author:     cfg.Author,
		vopts:      cfg.Validation,
		log:        logging.Get(logging.CategoryPipeline),
	}
}

// Submit drives one instruction to its terminal outcome. The schema is
// passed explicitly per call; the coordinator has no ambient tab state.
func (c *Coordinator) Submit(ctx context.Context, instruction string, sch *schema.Schema, target parser.Target) Outcome {
	id := uuid.NewString()
	c.log.Info("[%s] submit %q", id, instruction)

	intent, outcome, done := c.deriveIntent(ctx, id, instruction, sch, target)
	if done {
		return outcome
	}

	result := validate.Validate(intent, sch, c.vopts)
	if result.Outcome == action.OutcomeRejected {
		c.log.Info("[%s] rejected: %s", id, result.RejectionReason)
		return Outcome{Type: OutcomeError, Err: result.RejectionReason}
	}
	sanitized := result.Sanitized

	if !sanitized.Kind.IsMutation() {
		return c.executeRead(ctx, id, sanitized)
	}

	pending := &PendingAction{
		ID:            id,
		Intent:        sanitized,
		RemovedFields: result.RemovedFields,
		Warnings:      result.CoercionWarnings,
	}

	// Reserve the single pending slot before spending a backend call; a
	// competing instruction is refused without a dry run.
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return Outcome{Type: OutcomeError, Err: "an action is already pending confirmation; confirm or cancel it first"}
	}
	c.pending = pending
	c.mu.Unlock()

	preview, err := c.gateway.DryRun(ctx, sanitized, c.author)
	if err != nil {
		c.clearPending(pending)
		c.log.Warn("[%s] dry run failed: %v", id, err)
		return Outcome{Type: OutcomeError, Err: fmt.Sprintf("dry run failed: %v", err)}
	}
	pending.Preview = preview

	c.log.Info("[%s] pending confirmation: %s", id, sanitized.Describe())
	return Outcome{Type: OutcomePending, Pending: pending}
}

// deriveIntent runs the primary parse and, when it yields no structure, the
// fallback normalizer exactly once. done=true means a terminal outcome was
// reached before validation.
func (c *Coordinator) deriveIntent(ctx context.Context, id, instruction string, sch *schema.Schema, target parser.Target) (*action.Intent, Outcome, bool) {
	parsed := c.parser.Parse(ctx, instruction, sch, target)

	switch parsed.Type {
	case parser.OutcomeAction:
		return parsed.Intent, Outcome{}, false

	case parser.OutcomeText:
		// Brace-delimited model text that fails strict parsing is mangled
		// structure, not conversation. Route it through the normalizer.
		if normalizer.LooksStructured(parsed.Content) {
			return c.normalizeOnce(ctx, id, parsed.Content, sch, target)
		}
		c.log.Debug("[%s] conversational reply", id)
		return nil, Outcome{Type: OutcomeText, Text: parsed.Content}, true

	case parser.OutcomeFailure:
		return c.normalizeOnce(ctx, id, parsed.RawResponse, sch, target)
	}

	return nil, Outcome{Type: OutcomeError, Err: "unable to understand instruction"}, true
}

func (c *Coordinator) normalizeOnce(ctx context.Context, id, raw string, sch *schema.Schema, target parser.Target) (*action.Intent, Outcome, bool) {
	c.log.Info("[%s] falling back to normalizer", id)
	res := c.normalizer.Normalize(ctx, raw, normalizer.Context{Headers: sch.Headers()})
	if !res.Success {
		c.log.Info("[%s] normalizer failed: %s", id, res.Error)
		return nil, Outcome{Type: OutcomeError, Err: "unable to understand instruction"}, true
	}
	intent := res.Intent
	if intent.SpreadsheetID == "" {
		intent.SpreadsheetID = target.SpreadsheetID
	}
	if intent.Tab == "" {
		intent.Tab = target.Tab
	}
	return intent, Outcome{}, false
}

// executeRead applies a non-mutating action immediately; reads need no
// confirmation.
func (c *Coordinator) executeRead(ctx context.Context, id string, intent *action.Intent) Outcome {
	result := c.gateway.Apply(ctx, intent, c.author)
	c.record(intent, result)
	if !result.Success {
		c.log.Warn("[%s] read failed: %s", id, result.Error)
		return Outcome{Type: OutcomeError, Err: result.Error}
	}
	return Outcome{Type: OutcomeText, Text: renderReadResult(intent, result)}
}

// ConfirmPending issues the single real write for the pending action and
// clears it. The pending slot is cleared whether or not the write succeeds;
// a failed write is a terminal outcome, not a retryable state.
func (c *Coordinator) ConfirmPending(ctx context.Context) (action.ExecutionResult, error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending == nil {
		return action.ExecutionResult{}, fmt.Errorf("no action pending confirmation")
	}

	c.log.Info("[%s] confirmed, applying %s", pending.ID, pending.Intent.Describe())
	result := c.gateway.Apply(ctx, pending.Intent, c.author)
	c.record(pending.Intent, result)
	return result, nil
}

// CancelPending discards the pending action. Returns false when nothing was
// pending.
func (c *Coordinator) CancelPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return false
	}
	c.log.Info("[%s] cancelled", c.pending.ID)
	c.pending = nil
	return true
}

func (c *Coordinator) clearPending(p *PendingAction) {
	c.mu.Lock()
	if c.pending == p {
		c.pending = nil
	}
	c.mu.Unlock()
}

// Pending returns the action awaiting confirmation, or nil.
func (c *Coordinator) Pending() *PendingAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Coordinator) record(intent *action.Intent, result action.ExecutionResult) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordExecution(intent, c.author, result); err != nil {
		c.log.Warn("failed to journal execution: %v", err)
	}
}

func renderReadResult(intent *action.Intent, result action.ExecutionResult) string {
	if values, ok := result.Result["values"]; ok {
		return fmt.Sprintf("%s!%s: %v", intent.Tab, intent.Range, values)
	}
	if result.Result != nil {
		return fmt.Sprintf("%v", result.Result)
	}
	return "done"
}
