package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"covnorm/internal/config"
	"covnorm/internal/discovery"
	"covnorm/internal/domain"
	"covnorm/internal/report"
)

// RewriteCommand handles the rewrite command
type RewriteCommand struct {
	config *config.Config
	filter *discovery.Filter
	logger *zap.Logger
	out    io.Writer
}

// NewRewriteCommand creates a new RewriteCommand
func NewRewriteCommand(cfg *config.Config, filter *discovery.Filter) *RewriteCommand {
	return &RewriteCommand{
		config: cfg,
		filter: filter,
		logger: zap.NewNop(),
		out:    color.Output,
	}
}

// Execute runs the command
func (rw *RewriteCommand) Execute(cmd *cobra.Command, args []string) error {
	rewriter, err := report.New(rw.config.RewriteMode, rw.config.SkipPrefixed)
	if err != nil {
		return err
	}

	if file := rw.config.Flags.File; file != "" {
		n, err := report.RewriteFile(rewriter, file, rw.config.Flags.Prefix)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrRewriteIO, file, err)
		}
		rw.logger.Info("report normalized", zap.String("file", file), zap.Int("rewritten", n))
		fmt.Fprintf(rw.out, "%s %s: %d reference(s) rewritten\n", color.GreenString("✓"), file, n)
		return nil
	}

	targets := rw.filter.FilterByName(rw.config.GetTargets(), rw.config.Flags.Filter)
	if len(targets) == 0 {
		color.Yellow("No targets to normalize")
		return nil
	}

	var errs error
	for _, target := range targets {
		path := target.ReportPath(rw.config.GetTargetDir(target))
		n, err := rw.rewriteTarget(rewriter, target, path)
		if err != nil {
			rw.logger.Error("report rewrite failed", zap.String("target", target.Name), zap.Error(err))
			fmt.Fprintf(rw.out, "%s %s: %v\n", color.RedString("✗"), target.Name, err)
			errs = multierr.Append(errs, err)
			continue
		}
		rw.logger.Info("report normalized", zap.String("target", target.Name), zap.String("file", path), zap.Int("rewritten", n))
		fmt.Fprintf(rw.out, "%s %s: %d reference(s) rewritten\n", color.GreenString("✓"), target.Name, n)
	}
	return errs
}

func (rw *RewriteCommand) rewriteTarget(rewriter report.Rewriter, target domain.Target, path string) (int, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return 0, domain.NewTargetError(target.Name, domain.StageReport, domain.ErrReportGeneration, err)
	}
	n, err := report.RewriteFile(rewriter, path, target.Prefix)
	if err != nil {
		return 0, domain.NewTargetError(target.Name, domain.StageRewrite, domain.ErrRewriteIO, err)
	}
	return n, nil
}
