package ui

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covnorm/internal/config"
	"covnorm/internal/discovery"
	"covnorm/internal/domain"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func sampleRun(source string) *domain.RunOutput {
	return &domain.RunOutput{
		Meta: domain.RunMeta{
			RunID:           "0b6c7f0e-8f57-4c1e-9d7e-2b8f1d1f0a11",
			TotalTargets:    3,
			OKTargets:       1,
			TestFailTargets: 1,
			FailedTargets:   1,
			DurationSeconds: 4.2,
			Workers:         4,
			RewriteMode:     "xml",
			Timestamp:       "2024-05-01T12:00:00Z",
		},
		Targets: []domain.TargetRecord{
			{
				Name: "shared", Dir: filepath.Join(source, "shared"), Prefix: "source/shared",
				Status: domain.StatusOK, Passed: 10, Rewritten: 3,
				Coverage: &domain.ReportSummary{LineRate: 0.825, LinesValid: 40, LinesCovered: 33, Classes: 3},
			},
			{
				Name: "core-api-lambda-functions", Dir: filepath.Join(source, "core-api", "lambda_functions"),
				Prefix: "source/core-api/lambda_functions", Status: domain.StatusTestsFailed,
				Stage: "test", Error: "core-api-lambda-functions: test execution failed: exit status 1",
				Passed: 4, Failed: 1, Rewritten: 5,
			},
			{
				Name: "core-api-custom-resources", Dir: filepath.Join(source, "core-api", "custom_resources"),
				Prefix: "source/core-api/custom_resources", Status: domain.StatusFailed,
				Stage: "resolve", Error: "core-api-custom-resources: target directory not found",
				Output: "line one\n[red]line two",
			},
		},
	}
}

func newTestFormatter(t *testing.T) (*Formatter, *bytes.Buffer, *config.Config) {
	t.Helper()
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	cfg.SourcePath = filepath.Join(cfg.ProjectPath, "source")

	var buf bytes.Buffer
	f := NewFormatter(cfg, discovery.NewScanner(cfg.PathsToIgnore), discovery.NewParser())
	f.SetOutput(&buf)
	return f, &buf, cfg
}

func TestFormatter_PrintRunSummary(t *testing.T) {
	f, buf, cfg := newTestFormatter(t)

	require.NoError(t, f.PrintRunSummary(sampleRun(cfg.GetSourcePath())))
	out := buf.String()

	row := func(label, value string) string {
		return fmt.Sprintf("│ %-31s │ %-27s │", label, value)
	}
	assert.Contains(t, out, row("Total Targets", "3"))
	assert.Contains(t, out, row("Rewritten References", "8"))
	assert.Contains(t, out, row("Duration", "4.20s"))

	targetRow := func(name, status, tests, rewritten, coverage string) string {
		return fmt.Sprintf("│ %-36s │ %-12s │ %-9s │ %-9s │ %-8s │", name, status, tests, rewritten, coverage)
	}
	assert.Contains(t, out, targetRow("shared", "ok", "10/0", "3", "82.5%"))
	assert.Contains(t, out, targetRow("core-api-custom-resources", "failed", "0/0", "0", "-"))
	assert.Contains(t, out, "✗ 1 of 3 target(s) failed")

	// Failure tree groups targets by directory under the source root
	assert.Contains(t, out, "└── core-api\n")
	assert.Contains(t, out, "    ├── custom_resources\n")
	assert.Contains(t, out, "    │   └── ✗ core-api-custom-resources [resolve]\n")
	assert.Contains(t, out, "    └── lambda_functions\n")
	assert.Contains(t, out, "        └── ✗ core-api-lambda-functions [test]\n")
	assert.NotContains(t, out, "✗ shared")
}

func TestFormatter_PrintRunSummary_AllOK(t *testing.T) {
	f, buf, _ := newTestFormatter(t)

	run := &domain.RunOutput{
		Meta:    domain.RunMeta{TotalTargets: 1, OKTargets: 1},
		Targets: []domain.TargetRecord{{Name: "shared", Status: domain.StatusOK}},
	}
	require.NoError(t, f.PrintRunSummary(run))
	assert.Contains(t, buf.String(), "✓ All reports normalized!")

	buf.Reset()
	run.Meta.OKTargets, run.Meta.TestFailTargets = 0, 1
	run.Targets[0].Status = domain.StatusTestsFailed
	require.NoError(t, f.PrintRunSummary(run))
	assert.Contains(t, buf.String(), "! All reports normalized, tests failed in 1 target(s)")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFormatter_PrintTargetList(t *testing.T) {
	f, buf, cfg := newTestFormatter(t)
	source := cfg.GetSourcePath()

	writeFile(t, filepath.Join(source, "shared", "tests", "test_util.py"),
		"def test_a():\n    pass\n\nasync def test_b():\n    pass\n")
	writeFile(t, filepath.Join(source, "shared", "tests", "helpers.py"), "def test_not_collected(): pass\n")
	writeFile(t, filepath.Join(source, "shared", "venv", "test_vendored.py"), "def test_x(): pass\n")
	writeFile(t, filepath.Join(source, "core-api", "lambda_functions", "test_handler.py"), "import os\n")

	cfg.Targets = []domain.Target{
		{Name: "shared", Dir: "shared"},
		{Name: "core-api-lambda-functions", Dir: "core-api/lambda_functions"},
		{Name: "gone", Dir: "gone"},
	}
	targets := cfg.GetTargets()
	lastRun := &domain.RunOutput{Targets: []domain.TargetRecord{
		{Name: "shared", Status: domain.StatusOK},
		{Name: "core-api-lambda-functions", Status: domain.StatusFailed},
	}}

	require.NoError(t, f.PrintTargetList(targets, false, lastRun))
	out := buf.String()
	assert.Contains(t, out, "Found 3 target(s):")
	assert.Contains(t, out, "├── shared shared → source/shared/, 1 test file(s)\n")
	assert.Contains(t, out, "├── core-api-lambda-functions core-api/lambda_functions → source/core-api/lambda_functions/, 1 test file(s) [F]\n")
	assert.Contains(t, out, "└── gone gone → source/gone/\n")
	assert.Contains(t, out, "    └── (directory not found)")
	assert.NotContains(t, out, "test_util.py")

	buf.Reset()
	require.NoError(t, f.PrintTargetList(targets[:2], true, nil))
	out = buf.String()
	assert.Contains(t, out, "│   └── tests/test_util.py\n")
	assert.Contains(t, out, "│       ├── test_a\n")
	assert.Contains(t, out, "│       └── test_b\n")
	assert.Contains(t, out, "    └── test_handler.py\n")
	assert.Contains(t, out, "        └── (no test cases found)\n")
	assert.NotContains(t, out, "test_vendored")
	assert.NotContains(t, out, "[F]")
}

func TestPlainViewer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlainViewer(&buf).View(sampleRun("/repo/source")))
	out := buf.String()

	assert.Contains(t, out, "run 0b6c7f0e-8f57-4c1e-9d7e-2b8f1d1f0a11  2024-05-01T12:00:00Z  3 target(s), 1 failed")
	assert.Contains(t, out, "✓ shared (ok)")
	assert.Contains(t, out, "  coverage:  82.5% (33/40 lines)")
	assert.Contains(t, out, "! core-api-lambda-functions (tests_failed)")
	assert.Contains(t, out, "✗ core-api-custom-resources (failed)")
	assert.Contains(t, out, "  error:     core-api-custom-resources: target directory not found")
	assert.Contains(t, out, "    [red]line two")
}

func TestFormatTargetDetails(t *testing.T) {
	rec := sampleRun("/repo/source").Targets[2]
	details := formatTargetDetails(rec)

	assert.Contains(t, details, "Failed during resolve")
	assert.Contains(t, details, "target directory not found")
	// Tool output must not be interpreted as color tags
	assert.Contains(t, details, "[red[]line two")

	var lines []string
	for i := 0; i < maxOutputLines+5; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	rec.Output = strings.Join(lines, "\n")
	details = formatTargetDetails(rec)
	assert.Contains(t, details, "... 5 earlier lines")
	assert.NotContains(t, details, "line 4\n")
	assert.Contains(t, details, fmt.Sprintf("line %d\n", maxOutputLines+4))
}

func TestHeaderText(t *testing.T) {
	run := sampleRun("/repo/source")
	assert.Contains(t, headerText(run), "Run 0b6c7f0e (3 targets, 2 unreviewed problems)")

	run.Targets[1].Reviewed = true
	assert.Contains(t, headerText(run), "1 unreviewed problems")
	assert.Contains(t, listItemText(run.Targets[1], 1), "[gray]✓ 2. core-api-lambda-functions")
	assert.Contains(t, listItemText(run.Targets[2], 2), "[red]✗[white] 3. core-api-custom-resources")
}

func TestProgress(t *testing.T) {
	assert.False(t, ShowProgress(true))
	assert.Equal(t, "Normalizing reports: [ok: 2 | failed: 1]", describe(2, 1))

	var buf bytes.Buffer
	bar := newProgressBar(4, &buf)
	bar.Update(1, 1, 0)
	bar.Update(4, 3, 1)
	bar.Finish()
	assert.Contains(t, buf.String(), "Normalizing reports")
}
