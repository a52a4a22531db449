package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"covnorm/internal/config"
	"covnorm/internal/discovery"
	"covnorm/internal/storage"
	"covnorm/internal/ui"
)

// ListCommand handles the list command
type ListCommand struct {
	config    *config.Config
	scanner   *discovery.Scanner
	filter    *discovery.Filter
	formatter *ui.Formatter
	storage   storage.Storage
}

// NewListCommand creates a new ListCommand
func NewListCommand(
	cfg *config.Config,
	scanner *discovery.Scanner,
	filter *discovery.Filter,
	formatter *ui.Formatter,
	st storage.Storage,
) *ListCommand {
	return &ListCommand{
		config:    cfg,
		scanner:   scanner,
		filter:    filter,
		formatter: formatter,
		storage:   st,
	}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	targets := lc.filter.FilterByName(lc.config.GetTargets(), lc.config.Flags.Filter)
	if len(targets) == 0 {
		color.Yellow("No targets found")
		return nil
	}

	// The config file may have replaced the ignore list
	lc.scanner.SetSkipDirs(lc.config.PathsToIgnore)

	// Mark targets that failed last time; no previous run is fine
	lastRun, _ := lc.storage.Load()

	return lc.formatter.PrintTargetList(targets, lc.config.Flags.TestCases, lastRun)
}
