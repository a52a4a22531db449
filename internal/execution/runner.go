package execution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"covnorm/internal/config"
	"covnorm/internal/domain"
	"covnorm/internal/parser"
	"covnorm/internal/report"
)

// Runner runs and normalizes a single target
type Runner struct {
	config   *config.Config
	rewriter report.Rewriter
	parser   parser.Parser
	reports  parser.ReportParser
	logger   *zap.Logger
	clock    clock.Clock
}

// NewRunner creates a new Runner
func NewRunner(
	cfg *config.Config,
	rewriter report.Rewriter,
	testParser parser.Parser,
	reportParser parser.ReportParser,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		config:   cfg,
		rewriter: rewriter,
		parser:   testParser,
		reports:  reportParser,
		logger:   logger,
		clock:    clock.New(),
	}
}

// SetClock replaces the clock used to time targets
func (r *Runner) SetClock(c clock.Clock) {
	r.clock = c
}

// SetLogger replaces the structured logger
func (r *Runner) SetLogger(logger *zap.Logger) {
	r.logger = logger
}

// SetRewriter replaces the report rewriter
func (r *Runner) SetRewriter(rw report.Rewriter) {
	r.rewriter = rw
}

// Run executes the target's tests under coverage, generates the report and
// rewrites its filename references. A failing test run is recorded but only
// stops the target when HaltOnTestFailure is set.
func (r *Runner) Run(ctx context.Context, target domain.Target) (result domain.TargetResult) {
	start := r.clock.Now()
	dir := r.config.GetTargetDir(target)
	result = domain.TargetResult{
		Target:     target,
		Dir:        dir,
		ReportPath: target.ReportPath(dir),
		Status:     domain.StatusOK,
	}
	log := r.logger.With(zap.String("target", target.Name), zap.String("dir", dir))

	defer func() {
		result.Duration = r.clock.Since(start)
		if result.Fatal() {
			log.Error("target failed", zap.Error(result.Err), zap.Duration("duration", result.Duration))
		} else {
			log.Info("target normalized",
				zap.String("status", string(result.Status)),
				zap.Int("rewritten", result.Rewritten),
				zap.Duration("duration", result.Duration))
		}
	}()

	if err := ctx.Err(); err != nil {
		return r.fail(result, domain.StageResolve, domain.ErrCanceled, err)
	}
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	// Resolve
	if err := checkDir(dir); err != nil {
		return r.fail(result, domain.StageResolve, domain.ErrDirectoryNotFound, err)
	}
	if target.EntryPoint != "" {
		entry, _, _ := strings.Cut(target.EntryPoint, "::")
		if _, err := os.Stat(filepath.Join(dir, entry)); err != nil {
			return r.fail(result, domain.StageResolve, domain.ErrEntryPointNotFound, err)
		}
	}

	// A report left over from an earlier run must not pass for this one
	if err := os.Remove(result.ReportPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return r.fail(result, domain.StageReport, domain.ErrReportGeneration, err)
	}

	// Test
	var extra []string
	if target.EntryPoint != "" {
		extra = append(extra, target.EntryPoint)
	}
	log.Debug("running tests", zap.String("command", target.TestCommand))
	output, testErr := r.command(ctx, dir, target.TestCommand, extra...)
	result.TestOutput = output
	result.Passed, result.Failed = r.parser.ParseTestCounts(output, testErr == nil)
	if testErr != nil {
		testErr = domain.NewTargetError(target.Name, domain.StageTest, domain.ErrTestExecution, testErr)
		log.Warn("tests failed", zap.Error(testErr), zap.Int("failed", result.Failed))
		if ctx.Err() != nil {
			result.Err = domain.NewTargetError(target.Name, domain.StageTest, domain.ErrTestExecution, ctx.Err())
			result.Status = domain.StatusFailed
			return result
		}
		if r.config.HaltOnTestFailure {
			result.Err = testErr
			result.Status = domain.StatusFailed
			return result
		}
	}

	// Report
	log.Debug("generating report", zap.String("command", target.ReportCommand))
	reportOutput, err := r.command(ctx, dir, target.ReportCommand)
	if reportOutput != "" {
		result.TestOutput += reportOutput
	}
	if err != nil {
		return r.fail(result, domain.StageReport, domain.ErrReportGeneration, withOutput(err, reportOutput))
	}
	if _, err := os.Stat(result.ReportPath); err != nil {
		return r.fail(result, domain.StageReport, domain.ErrReportGeneration, err)
	}

	// Rewrite
	n, err := report.RewriteFile(r.rewriter, result.ReportPath, target.Prefix)
	if err != nil {
		return r.fail(result, domain.StageRewrite, domain.ErrRewriteIO, err)
	}
	result.Rewritten = n

	if r.reports != nil {
		if data, err := os.ReadFile(result.ReportPath); err == nil {
			if summary, err := r.reports.Summarize(data); err == nil {
				result.Coverage = summary
			} else {
				log.Debug("report summary unavailable", zap.Error(err))
			}
			if n := absoluteFilenames(r.reports, data, target.Prefix); n > 0 {
				log.Warn("report has absolute filenames, enable relative_files in the coverage config",
					zap.Int("count", n))
			}
		}
	}

	if testErr != nil {
		result.Status = domain.StatusTestsFailed
		result.Err = testErr
	}
	return result
}

func (r *Runner) fail(result domain.TargetResult, stage domain.Stage, kind, err error) domain.TargetResult {
	result.Status = domain.StatusFailed
	result.Err = domain.NewTargetError(result.Target.Name, stage, kind, err)
	return result
}

// command runs a shell-style command line in dir and returns its combined output
func (r *Runner) command(ctx context.Context, dir, line string, extra ...string) (string, error) {
	p := shellwords.NewParser()
	p.ParseEnv = true
	args, err := p.Parse(line)
	if err != nil {
		return "", fmt.Errorf("parse command %q: %w", line, err)
	}
	if len(args) == 0 {
		return "", errors.New("empty command")
	}
	args = append(args, extra...)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	output, err := cmd.CombinedOutput()
	return string(output), err
}

// absoluteFilenames counts references that were absolute before the prefix was added
func absoluteFilenames(reports parser.ReportParser, data []byte, prefix string) int {
	lister, ok := reports.(interface {
		Filenames(data []byte) ([]string, error)
	})
	if !ok {
		return 0
	}
	names, err := lister.Filenames(data)
	if err != nil {
		return 0
	}
	n := 0
	for _, name := range names {
		if strings.HasPrefix(name, prefix+"//") || filepath.IsAbs(name) {
			n++
		}
	}
	return n
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// withOutput attaches the last line of tool output to err
func withOutput(err error, output string) error {
	output = strings.TrimSpace(output)
	if output == "" {
		return err
	}
	lines := strings.Split(output, "\n")
	return fmt.Errorf("%w: %s", err, strings.TrimSpace(lines[len(lines)-1]))
}
