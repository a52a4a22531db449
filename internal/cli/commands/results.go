package commands

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"covnorm/internal/config"
	"covnorm/internal/storage"
	"covnorm/internal/ui"
)

// ResultsCommand handles the results command
type ResultsCommand struct {
	config  *config.Config
	storage storage.Storage
	viewer  ui.Viewer
}

// NewResultsCommand creates a new ResultsCommand
func NewResultsCommand(cfg *config.Config, st storage.Storage, viewer ui.Viewer) *ResultsCommand {
	return &ResultsCommand{
		config:  cfg,
		storage: st,
		viewer:  viewer,
	}
}

// Execute runs the command
func (rc *ResultsCommand) Execute(cmd *cobra.Command, args []string) (err error) {
	st, closeStorage, err := openStorage(rc.config, rc.storage)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(closeStorage))

	run, err := st.Load()
	if err != nil {
		return err
	}

	viewer := rc.viewer
	if rc.config.Flags.Plain || !isatty.IsTerminal(os.Stdout.Fd()) {
		viewer = ui.NewPlainViewer(color.Output)
	}
	return viewer.View(run)
}
