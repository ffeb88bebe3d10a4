// Package history journals every executed action, successful or not, so
// users can audit what the pipeline actually wrote and when.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"sheetpilot/internal/action"
	"sheetpilot/internal/logging"
)

// Entry is one journaled execution.
type Entry struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Author        string         `json:"author"`
	Action        string         `json:"action"`
	SpreadsheetID string         `json:"spreadsheetId"`
	Tab           string         `json:"tab,omitempty"`
	Range         string         `json:"range,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	RawSource     string         `json:"rawSource,omitempty"`
	Success       bool           `json:"success"`
	RowIndex      int            `json:"rowIndex,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Store is the on-disk execution journal.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
	log    *logging.Logger
}

// NewStore creates or opens the journal under the workspace directory.
func NewStore(workspaceDir string) (*Store, error) {
	dbPath := filepath.Join(workspaceDir, "history.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
		log:    logging.Get(logging.CategoryHistory),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the journal file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		author TEXT NOT NULL,
		action TEXT NOT NULL,
		spreadsheet_id TEXT NOT NULL,
		tab TEXT,
		cell_range TEXT,
		data_json TEXT,
		raw_source TEXT,
		success INTEGER NOT NULL,
		row_index INTEGER,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_executions_timestamp ON executions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_executions_spreadsheet ON executions(spreadsheet_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record journals one execution. Entries with no ID get a generated one.
func (s *Store) Record(entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	dataJSON, _ := json.Marshal(entry.Data)

	_, err := s.db.Exec(`
		INSERT INTO executions (id, timestamp, author, action, spreadsheet_id,
			tab, cell_range, data_json, raw_source, success, row_index, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Timestamp, entry.Author, entry.Action, entry.SpreadsheetID,
		entry.Tab, entry.Range, string(dataJSON), entry.RawSource,
		entry.Success, entry.RowIndex, entry.Error)

	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	s.log.Debug("recorded execution %s (%s success=%v)", entry.ID, entry.Action, entry.Success)
	return nil
}

// RecordExecution journals the outcome of an applied intent.
func (s *Store) RecordExecution(intent *action.Intent, author string, result action.ExecutionResult) error {
	return s.Record(&Entry{
		Author:        author,
		Action:        string(intent.Kind),
		SpreadsheetID: intent.SpreadsheetID,
		Tab:           intent.Tab,
		Range:         intent.Range,
		Data:          intent.Data,
		RawSource:     intent.RawSource,
		Success:       result.Success,
		RowIndex:      result.RowIndex,
		Error:         result.Error,
	})
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, timestamp, author, action, spreadsheet_id, tab, cell_range,
			data_json, raw_source, success, row_index, error
		FROM executions
		ORDER BY timestamp DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var dataJSON, tab, rng, rawSource, errMsg sql.NullString
		var rowIndex sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Author, &e.Action, &e.SpreadsheetID,
			&tab, &rng, &dataJSON, &rawSource, &e.Success, &rowIndex, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Tab = tab.String
		e.Range = rng.String
		e.RawSource = rawSource.String
		e.Error = errMsg.String
		e.RowIndex = int(rowIndex.Int64)
		if dataJSON.Valid && dataJSON.String != "" && dataJSON.String != "null" {
			if err := json.Unmarshal([]byte(dataJSON.String), &e.Data); err != nil {
				return nil, fmt.Errorf("corrupt data for history entry %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
