package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"covnorm/internal/cli"
	"covnorm/internal/config"
	"covnorm/internal/discovery"
	"covnorm/internal/execution"
	"covnorm/internal/logging"
	"covnorm/internal/parser"
	"covnorm/internal/report"
	"covnorm/internal/storage"
	"covnorm/internal/ui"
)

// Commands holds all CLI commands
type Commands struct {
	Run     *RunCommand
	List    *ListCommand
	Rewrite *RewriteCommand
	Results *ResultsCommand

	config *config.Config
	runner *execution.Runner
	logger *zap.Logger
}

// NewCommands creates all commands with dependencies
func NewCommands(cfg *config.Config) *Commands {
	// Initialize dependencies
	scanner := discovery.NewScanner(cfg.PathsToIgnore)
	filter := discovery.NewFilter()
	testCaseParser := discovery.NewParser()
	rewriter := report.NewXMLRewriter(cfg.SkipPrefixed)
	runner := execution.NewRunner(cfg, rewriter, parser.NewPytestParser(), parser.NewCoberturaParser(), nil)
	executor := execution.NewWorkerPool(cfg, runner)
	jsonStorage := storage.NewJSONStorage(cfg)
	formatter := ui.NewFormatter(cfg, scanner, testCaseParser)
	resultsViewer := ui.NewResultsViewer(jsonStorage)

	return &Commands{
		Run:     NewRunCommand(cfg, filter, runner, executor, jsonStorage, formatter),
		List:    NewListCommand(cfg, scanner, filter, formatter, jsonStorage),
		Rewrite: NewRewriteCommand(cfg, filter),
		Results: NewResultsCommand(cfg, jsonStorage, resultsViewer),
		config:  cfg,
		runner:  runner,
		logger:  zap.NewNop(),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	rootCmd.PersistentFlags().StringVarP(&flags.ProjectPath, "project", "d", "", "Deployment directory holding covnorm.yaml, .env and .covnorm/ (default \".\")")
	rootCmd.PersistentFlags().StringVarP(&flags.SourcePath, "source", "s", "", "Source root the target directories are relative to (default \"../source\")")
	rootCmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "Config file, relative to the project directory (default \"covnorm.yaml\")")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Log debug output to stderr")

	// Update config with flags after parsing
	prepare := func(cmd *cobra.Command, args []string) error {
		flags.HaltOnTestFailureSet = cmd.Flags().Changed("halt-on-test-failure")
		flags.StrictSet = cmd.Flags().Changed("strict")
		return cfg.Prepare(flags.ToConfigFlags())
	}
	prepareWithLogging := func(cmd *cobra.Command, args []string) error {
		if err := prepare(cmd, args); err != nil {
			return err
		}
		return c.setupLogging()
	}

	// Run command
	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Run tests under coverage and normalize the reports",
		Long:    "Run every target's tests under coverage, generate coverage.xml and prefix its filename references with the target's path from the repository root",
		Args:    cobra.NoArgs,
		RunE:    c.Run.Execute,
		PreRunE: prepareWithLogging,
	}
	runCmd.Flags().IntVarP(&flags.Processors, "processors", "p", 0, "Number of targets to run in parallel (default 4)")
	runCmd.Flags().StringVarP(&flags.Filter, "filter", "f", "", "Filter targets by name or directory (supports wildcards, e.g. 'core-api*' or '*custom_resources*')")
	runCmd.Flags().BoolVar(&flags.HaltOnTestFailure, "halt-on-test-failure", false, "Skip report generation for targets whose tests fail")
	runCmd.Flags().BoolVar(&flags.Strict, "strict", false, "Exit non-zero when tests fail, even if every report was normalized")
	runCmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "Skip targets that have not started after the first failed target; running ones finish")
	runCmd.Flags().DurationVar(&flags.Timeout, "timeout", 0, "Per-target timeout, e.g. 10m (0 means none)")
	runCmd.Flags().StringVar(&flags.RewriteMode, "mode", "", "Rewrite mode: xml or literal (default \"xml\")")
	runCmd.Flags().StringVar(&flags.DatabaseDSN, "db-dsn", "", "MySQL DSN for the run history (also COVNORM_DB_DSN)")
	runCmd.Flags().BoolVar(&flags.NoProgress, "no-progress", false, "Do not draw the progress bar")
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List targets and their tests",
		Long:    "Show the configured targets, their prefixes and discovered test files without running anything",
		Args:    cobra.NoArgs,
		RunE:    c.List.Execute,
		PreRunE: prepare,
	}
	listCmd.Flags().StringVarP(&flags.Filter, "filter", "f", "", "Filter targets by name or directory (supports wildcards)")
	listCmd.Flags().BoolVarP(&flags.TestCases, "test-cases", "c", false, "List test files and test cases of every target")
	rootCmd.AddCommand(listCmd)

	// Rewrite command
	rewriteCmd := &cobra.Command{
		Use:     "rewrite",
		Short:   "Normalize existing coverage reports",
		Long:    "Prefix the filename references of reports that already exist, either one --file with --prefix or every target's report",
		Args:    cobra.NoArgs,
		RunE:    c.Rewrite.Execute,
		PreRunE: prepareWithLogging,
	}
	rewriteCmd.Flags().StringVar(&flags.File, "file", "", "Report file to rewrite")
	rewriteCmd.Flags().StringVar(&flags.Prefix, "prefix", "", "Prefix for --file, e.g. source/shared")
	rewriteCmd.Flags().StringVarP(&flags.Filter, "filter", "f", "", "Filter targets by name or directory (supports wildcards)")
	rewriteCmd.Flags().StringVar(&flags.RewriteMode, "mode", "", "Rewrite mode: xml or literal (default \"xml\")")
	rewriteCmd.MarkFlagsRequiredTogether("file", "prefix")
	rewriteCmd.MarkFlagsMutuallyExclusive("file", "filter")
	rootCmd.AddCommand(rewriteCmd)

	// Results command
	resultsCmd := &cobra.Command{
		Use:     "results",
		Short:   "View the results of the last run",
		Long:    "Browse the targets of the last run interactively, or print them with --plain",
		Args:    cobra.NoArgs,
		RunE:    c.Results.Execute,
		PreRunE: prepare,
	}
	resultsCmd.Flags().BoolVar(&flags.Plain, "plain", false, "Print results instead of opening the viewer")
	resultsCmd.Flags().StringVar(&flags.DatabaseDSN, "db-dsn", "", "Read the run history from MySQL when the results file is missing")
	rootCmd.AddCommand(resultsCmd)
}

// setupLogging opens the structured log once the config is final
func (c *Commands) setupLogging() error {
	logger, err := logging.New(c.config.GetLogPath(), c.config.Flags.Verbose)
	if err != nil {
		return err
	}
	c.logger = logger
	c.runner.SetLogger(logger)
	c.Rewrite.logger = logger
	return nil
}

// Close flushes the structured log
func (c *Commands) Close() {
	// Sync fails on terminals that do not support fsync
	_ = c.logger.Sync()
}

// openStorage returns the JSON storage, combined with the MySQL run history
// when a DSN is configured. The returned func releases the database.
func openStorage(cfg *config.Config, jsonStorage storage.Storage) (storage.Storage, func() error, error) {
	if cfg.DatabaseDSN == "" {
		return jsonStorage, func() error { return nil }, nil
	}
	db, err := storage.NewMySQLStorage(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("run history: %w", err)
	}
	multi := storage.NewMultiStorage(jsonStorage, db)
	return multi, multi.Close, nil
}
