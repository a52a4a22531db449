package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"covnorm/internal/config"
	"covnorm/internal/discovery"
	"covnorm/internal/domain"
	"covnorm/internal/execution"
	"covnorm/internal/report"
	"covnorm/internal/storage"
	"covnorm/internal/ui"
)

// RunCommand handles the run command
type RunCommand struct {
	config    *config.Config
	filter    *discovery.Filter
	runner    *execution.Runner
	executor  *execution.WorkerPool
	storage   storage.Storage
	formatter *ui.Formatter
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(
	cfg *config.Config,
	filter *discovery.Filter,
	runner *execution.Runner,
	executor *execution.WorkerPool,
	st storage.Storage,
	formatter *ui.Formatter,
) *RunCommand {
	return &RunCommand{
		config:    cfg,
		filter:    filter,
		runner:    runner,
		executor:  executor,
		storage:   st,
		formatter: formatter,
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) (err error) {
	targets := rc.filter.FilterByName(rc.config.GetTargets(), rc.config.Flags.Filter)
	if len(targets) == 0 {
		color.Yellow("No targets to normalize")
		return nil
	}

	rewriter, err := report.New(rc.config.RewriteMode, rc.config.SkipPrefixed)
	if err != nil {
		return err
	}
	rc.runner.SetRewriter(rewriter)

	st, closeStorage, err := openStorage(rc.config, rc.storage)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(closeStorage))

	if ui.ShowProgress(rc.config.Flags.NoProgress) {
		rc.executor.SetProgress(ui.NewProgressBar(len(targets)))
	}

	results, duration, err := rc.executor.ExecuteWithOptions(cmd.Context(), targets, rc.config.Flags.FailFast)
	if err != nil {
		return err
	}

	run := storage.BuildRunOutput(results, duration, rc.config.Processors, rc.config.RewriteMode, time.Now())
	if saveErr := st.Save(run); saveErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to save results: %w", saveErr))
	}

	if printErr := rc.formatter.PrintRunSummary(run); printErr != nil {
		err = multierr.Append(err, printErr)
	}

	return multierr.Append(err, resultsError(results, rc.config.Strict))
}

// resultsError combines the errors that make the run fail: every fatal
// target error, plus test failures when strict is set.
func resultsError(results []domain.TargetResult, strict bool) error {
	var err error
	for _, r := range results {
		switch {
		case r.Fatal():
			err = multierr.Append(err, r.Err)
		case strict && r.Status == domain.StatusTestsFailed:
			err = multierr.Append(err, r.Err)
		}
	}
	return err
}
