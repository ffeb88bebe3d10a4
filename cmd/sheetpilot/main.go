package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sheetpilot/internal/config"
	"sheetpilot/internal/gateway"
	"sheetpilot/internal/history"
	"sheetpilot/internal/logging"
	"sheetpilot/internal/normalizer"
	"sheetpilot/internal/parser"
	"sheetpilot/internal/pipeline"
	"sheetpilot/internal/schema"
	"sheetpilot/internal/validate"
)

var (
	// Global flags
	verbose    bool
	configPath string
	tabName    string
	sheetID    string
	assumeYes  bool
	timeout    time.Duration

	// Loaded on startup
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sheetpilot",
	Short: "sheetpilot - natural-language spreadsheet editing with guardrails",
	Long: `sheetpilot turns natural-language instructions into spreadsheet edits.

Every instruction runs through a guardrail pipeline: a structured-output
model proposes the action, a fallback normalizer recovers from unstructured
replies, fields are validated against the tab's inferred schema, cell values
are sanitized against formula injection, and a dry-run preview is shown
before anything is written. No write happens without confirmation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if sheetID != "" {
			cfg.Backend.SpreadsheetID = sheetID
		}

		categories := map[string]bool{}
		for _, c := range cfg.Logging.Categories {
			categories[c] = true
		}
		if len(categories) == 0 {
			categories = nil
		}
		return logging.Initialize(cfg.History.Dir, logging.Options{
			DebugMode:  cfg.Logging.DebugMode || verbose,
			Level:      cfg.Logging.Level,
			Categories: categories,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Shutdown()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd executes a single instruction
var runCmd = &cobra.Command{
	Use:   "run [instruction]",
	Short: "Run one instruction through the guardrail pipeline",
	Long: `Processes a natural-language instruction end to end:
  1. Parse: the primary model proposes a structured action
  2. Normalize: fallback recovery when the model yields no structure
  3. Validate: drop unknown fields, coerce values to column types
  4. Sanitize: defuse formula-prefixed cell values
  5. Preview: dry run against the backend, shown before any write
  6. Confirm: the real write happens only after you approve

Example:
  sheetpilot run --tab Sales "Add iPhone 15 with revenue $1,200"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstruction,
}

// tabsCmd lists spreadsheet tabs
var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List the tabs of the configured spreadsheet",
	RunE:  listTabs,
}

// schemaCmd shows the inferred schema of a tab
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the inferred column schema of a tab",
	RunE:  showSchema,
}

// historyCmd shows the execution journal
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently executed actions",
	RunE:  showHistory,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "sheetpilot.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&sheetID, "spreadsheet", "", "Spreadsheet ID (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	runCmd.Flags().StringVar(&tabName, "tab", "", "Tab to operate on (required)")
	runCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Apply the previewed action without prompting")
	_ = runCmd.MarkFlagRequired("tab")

	schemaCmd.Flags().StringVar(&tabName, "tab", "", "Tab to inspect (required)")
	_ = schemaCmd.MarkFlagRequired("tab")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tabsCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runInstruction(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	if err := cfg.Validate(); err != nil {
		return err
	}

	instruction := strings.Join(args, " ")
	logger.Info("Processing instruction",
		zap.String("input", instruction),
		zap.String("tab", tabName))

	backend := gateway.NewClient(cfg.Backend.Endpoint, cfg.Backend.Token, cfg.GetBackendTimeout())

	sch, err := loadSchema(ctx, backend)
	if err != nil {
		return err
	}

	llmClient, err := parser.NewClient(ctx, parser.ClientConfig{
		Provider: parser.Provider(cfg.LLM.Provider),
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.GetLLMTimeout(),
	})
	if err != nil {
		return err
	}

	var norm normalizer.Normalizer
	if cfg.Normalizer.Mode == "remote" {
		norm = normalizer.NewRemote(cfg.Normalizer.Endpoint, cfg.GetNormalizerTimeout())
	} else {
		norm = normalizer.NewLocal()
	}

	var recorder pipeline.Recorder
	if cfg.History.Enabled {
		journal, err := history.NewStore(cfg.History.Dir)
		if err != nil {
			return err
		}
		defer journal.Close()
		recorder = journal
	}

	coordinator := pipeline.New(pipeline.Config{
		Parser:     parser.New(llmClient),
		Normalizer: norm,
		Gateway:    backend,
		Recorder:   recorder,
		Author:     cfg.Backend.Author,
		Validation: validate.Options{DecimalComma: cfg.Validation.DecimalComma},
	})

	target := parser.Target{SpreadsheetID: cfg.Backend.SpreadsheetID, Tab: tabName}
	outcome := coordinator.Submit(ctx, instruction, sch, target)

	switch outcome.Type {
	case pipeline.OutcomeText:
		fmt.Println(outcome.Text)
		return nil

	case pipeline.OutcomeError:
		return fmt.Errorf("%s", outcome.Err)

	case pipeline.OutcomePending:
		return confirmAndApply(ctx, coordinator, outcome.Pending)
	}
	return nil
}

func confirmAndApply(ctx context.Context, coordinator *pipeline.Coordinator, pending *pipeline.PendingAction) error {
	fmt.Println(pending.Preview.Rendered)
	for _, name := range pending.RemovedFields {
		fmt.Printf("note: dropped unknown field %q\n", name)
	}
	for _, w := range pending.Warnings {
		fmt.Printf("note: %s\n", w)
	}

	if !assumeYes {
		fmt.Print("Apply this change? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			coordinator.CancelPending()
			fmt.Println("Cancelled; nothing was written.")
			return nil
		}
	}

	result, err := coordinator.ConfirmPending(ctx)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("write failed: %s", result.Error)
	}
	if result.RowIndex > 0 {
		fmt.Printf("Done (row %d).\n", result.RowIndex)
	} else {
		fmt.Println("Done.")
	}
	return nil
}

func loadSchema(ctx context.Context, backend *gateway.Client) (*schema.Schema, error) {
	headers, rows, err := backend.FetchTabData(ctx, cfg.Backend.SpreadsheetID, tabName)
	if err != nil {
		return nil, fmt.Errorf("failed to read tab %q: %w", tabName, err)
	}
	sch, err := schema.Infer(headers, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to infer schema for tab %q: %w", tabName, err)
	}
	logger.Debug("Schema inferred",
		zap.String("tab", tabName),
		zap.Int("columns", len(sch.Columns)),
		zap.Int("rows", sch.TotalRows))
	return sch, nil
}

func listTabs(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	backend := gateway.NewClient(cfg.Backend.Endpoint, cfg.Backend.Token, cfg.GetBackendTimeout())
	tabs, err := backend.ListTabs(ctx, cfg.Backend.SpreadsheetID)
	if err != nil {
		return err
	}
	for _, t := range tabs {
		fmt.Println(t)
	}
	return nil
}

func showSchema(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	backend := gateway.NewClient(cfg.Backend.Endpoint, cfg.Backend.Token, cfg.GetBackendTimeout())
	sch, err := loadSchema(ctx, backend)
	if err != nil {
		return err
	}
	fmt.Println(sch.Summary())
	return nil
}

func showHistory(cmd *cobra.Command, args []string) error {
	journal, err := history.NewStore(cfg.History.Dir)
	if err != nil {
		return err
	}
	defer journal.Close()

	entries, err := journal.Recent(20)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No executions recorded yet.")
		return nil
	}
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "FAILED: " + e.Error
		}
		loc := e.Tab
		if e.Range != "" {
			loc = fmt.Sprintf("%s!%s", e.Tab, e.Range)
		}
		fmt.Printf("%s  %-10s %-20s %s  %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, loc, e.Author, status)
	}
	return nil
}
