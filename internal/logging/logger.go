// Package logging provides config-driven categorized file-based logging.
// Logs are written to .sheetpilot/logs/ with a separate file per category.
// When debug mode is off, every call is a silent no-op.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Category represents a log category/system.
type Category string

const (
	CategoryPipeline   Category = "pipeline"   // Coordinator state machine
	CategoryParser     Category = "parser"     // Primary structured-output model
	CategoryNormalizer Category = "normalizer" // Fallback normalizer
	CategoryValidate   Category = "validate"   // Schema validation and coercion
	CategoryGateway    Category = "gateway"    // Spreadsheet backend calls
	CategorySchema     Category = "schema"     // Schema reads and inference
	CategoryHistory    Category = "history"    // Execution journal
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options controls logger behavior, supplied by the config layer.
type Options struct {
	DebugMode  bool
	Level      string          // debug, info, warn, error
	Categories map[string]bool // nil means all categories enabled
}

// Logger writes category-scoped lines to its own file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	mu       sync.Mutex
	loggers  = make(map[Category]*Logger)
	logsDir  string
	opts     Options
	logLevel = LevelInfo
)

// Initialize sets up the logging directory under the workspace and records
// the options. Safe to skip entirely; Get returns no-op loggers until then.
func Initialize(workspace string, o Options) error {
	mu.Lock()
	defer mu.Unlock()

	opts = o
	switch o.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}

	if !o.DebugMode {
		return nil
	}

	logsDir = filepath.Join(workspace, ".sheetpilot", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	return nil
}

// Get returns the logger for a category, creating its file lazily.
func Get(category Category) *Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{category: category}
	if opts.DebugMode && logsDir != "" && categoryEnabled(category) {
		path := filepath.Join(logsDir, string(category)+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			l.file = f
			l.logger = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
		} else {
			fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", path, err)
		}
	}
	loggers[category] = l
	return l
}

func categoryEnabled(category Category) bool {
	if opts.Categories == nil {
		return true
	}
	return opts.Categories[string(category)]
}

// Shutdown flushes and closes all open log files.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
	logsDir = ""
}

func (l *Logger) write(level int, tag, format string, args ...any) {
	if l == nil || l.logger == nil || level < logLevel {
		return
	}
	l.logger.Printf("[%s] %s", tag, fmt.Sprintf(format, args...))
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...any) { l.write(LevelDebug, "DEBUG", format, args...) }

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) { l.write(LevelInfo, "INFO", format, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...any) { l.write(LevelWarn, "WARN", format, args...) }

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) { l.write(LevelError, "ERROR", format, args...) }
