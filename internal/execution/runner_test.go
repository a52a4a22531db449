package execution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covnorm/internal/config"
	"covnorm/internal/domain"
	"covnorm/internal/parser"
	"covnorm/internal/report"
)

// fakeCoverage mimics "coverage run -m pytest" and "coverage xml". Marker
// files in the working directory select failure modes, so each target
// behaves according to its own directory.
const fakeCoverage = `#!/bin/sh
case "$1" in
run)
	echo "collected 3 items"
	[ -n "$2" ] && echo "entry: $2"
	if [ -f FAIL_TESTS ]; then
		echo "==== 1 failed, 2 passed in 0.01s ===="
		exit 1
	fi
	echo "==== 3 passed in 0.01s ===="
	;;
xml)
	if [ -f NO_REPORT ]; then
		echo "No data to report."
		exit 1
	fi
	if [ -f BAD_REPORT ]; then
		printf '<coverage' > coverage.xml
		exit 0
	fi
	cat > coverage.xml <<'XML'
<?xml version="1.0" ?>
<coverage line-rate="0.5" lines-valid="4" lines-covered="2">
	<sources><source>/tmp/work</source></sources>
	<packages><package name="."><classes>
		<class name="a.py" filename="a.py" line-rate="1"/>
		<class name="b.py" filename="pkg/b.py" line-rate="0"/>
	</classes></package></packages>
</coverage>
XML
	;;
esac
`

type fixture struct {
	cfg    *config.Config
	source string
}

func newFixture(t *testing.T, dirs ...string) *fixture {
	t.Helper()

	root := t.TempDir()
	script := filepath.Join(root, "fakecov.sh")
	require.NoError(t, os.WriteFile(script, []byte(fakeCoverage), 0755))

	source := filepath.Join(root, "source")
	for _, dir := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(source, dir), 0755))
	}

	cfg := config.New()
	cfg.ProjectPath = filepath.Join(root, "deployment")
	cfg.SourcePath = source
	cfg.TestCommand = fmt.Sprintf("sh %s run", script)
	cfg.ReportCommand = fmt.Sprintf("sh %s xml", script)
	cfg.Targets = nil
	for _, dir := range dirs {
		cfg.Targets = append(cfg.Targets, domain.Target{Name: filepath.Base(dir), Dir: dir})
	}
	return &fixture{cfg: cfg, source: source}
}

func (f *fixture) mark(t *testing.T, dir, marker string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.source, dir, marker), nil, 0644))
}

func (f *fixture) runner() *Runner {
	return NewRunner(f.cfg, report.NewXMLRewriter(f.cfg.SkipPrefixed), parser.NewPytestParser(), parser.NewCoberturaParser(), nil)
}

func (f *fixture) target(t *testing.T, name string) domain.Target {
	t.Helper()
	for _, target := range f.cfg.GetTargets() {
		if target.Name == name {
			return target
		}
	}
	t.Fatalf("no target %s", name)
	return domain.Target{}
}

func TestRunner_Run(t *testing.T) {
	f := newFixture(t, "shared")

	result := f.runner().Run(context.Background(), f.target(t, "shared"))
	require.NoError(t, result.Err)
	assert.Equal(t, domain.StatusOK, result.Status)
	assert.Equal(t, 3, result.Passed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.Rewritten)
	require.NotNil(t, result.Coverage)
	assert.InDelta(t, 0.5, result.Coverage.LineRate, 1e-9)
	assert.Equal(t, 2, result.Coverage.Classes)
	assert.Equal(t, filepath.Join(f.source, "shared", "coverage.xml"), result.ReportPath)

	data, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `filename="source/shared/a.py"`)
	assert.Contains(t, string(data), `filename="source/shared/pkg/b.py"`)
	assert.Contains(t, string(data), `<source>/tmp/work</source>`)
}

func TestRunner_TestFailure(t *testing.T) {
	t.Run("continues to report by default", func(t *testing.T) {
		f := newFixture(t, "shared")
		f.mark(t, "shared", "FAIL_TESTS")

		result := f.runner().Run(context.Background(), f.target(t, "shared"))
		assert.Equal(t, domain.StatusTestsFailed, result.Status)
		assert.False(t, result.Fatal())
		assert.ErrorIs(t, result.Err, domain.ErrTestExecution)
		assert.Equal(t, domain.StageTest, domain.StageOf(result.Err))
		assert.Equal(t, 2, result.Passed)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, 2, result.Rewritten)
		assert.FileExists(t, result.ReportPath)
	})

	t.Run("halts when configured", func(t *testing.T) {
		f := newFixture(t, "shared")
		f.cfg.HaltOnTestFailure = true
		f.mark(t, "shared", "FAIL_TESTS")

		result := f.runner().Run(context.Background(), f.target(t, "shared"))
		assert.Equal(t, domain.StatusFailed, result.Status)
		assert.ErrorIs(t, result.Err, domain.ErrTestExecution)
		assert.NoFileExists(t, result.ReportPath)
	})
}

func TestRunner_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		f := newFixture(t, "shared")
		f.cfg.Targets = append(f.cfg.Targets, domain.Target{Name: "gone", Dir: "gone"})

		result := f.runner().Run(context.Background(), f.target(t, "gone"))
		assert.Equal(t, domain.StatusFailed, result.Status)
		assert.ErrorIs(t, result.Err, domain.ErrDirectoryNotFound)
		assert.ErrorIs(t, result.Err, os.ErrNotExist)
		assert.Equal(t, domain.StageResolve, domain.StageOf(result.Err))
	})

	t.Run("missing entry point", func(t *testing.T) {
		f := newFixture(t, "shared")
		f.cfg.Targets[0].EntryPoint = "test/test_missing.py::test_a"

		result := f.runner().Run(context.Background(), f.target(t, "shared"))
		assert.ErrorIs(t, result.Err, domain.ErrEntryPointNotFound)
	})

	t.Run("entry point is passed to the test command", func(t *testing.T) {
		f := newFixture(t, "shared")
		require.NoError(t, os.MkdirAll(filepath.Join(f.source, "shared", "test"), 0755))
		f.cfg.Targets[0].EntryPoint = "test"

		result := f.runner().Run(context.Background(), f.target(t, "shared"))
		require.NoError(t, result.Err)
		assert.Contains(t, result.TestOutput, "entry: test")
	})

	t.Run("no report data", func(t *testing.T) {
		f := newFixture(t, "shared")
		f.mark(t, "shared", "NO_REPORT")

		result := f.runner().Run(context.Background(), f.target(t, "shared"))
		assert.Equal(t, domain.StatusFailed, result.Status)
		assert.ErrorIs(t, result.Err, domain.ErrReportGeneration)
		assert.ErrorContains(t, result.Err, "No data to report.")
	})

	t.Run("stale report is not reused", func(t *testing.T) {
		f := newFixture(t, "shared")
		f.mark(t, "shared", "NO_REPORT")
		stale := filepath.Join(f.source, "shared", "coverage.xml")
		require.NoError(t, os.WriteFile(stale, []byte(`<coverage/>`), 0644))

		result := f.runner().Run(context.Background(), f.target(t, "shared"))
		assert.ErrorIs(t, result.Err, domain.ErrReportGeneration)
		assert.NoFileExists(t, stale)
	})

	t.Run("malformed report", func(t *testing.T) {
		f := newFixture(t, "shared")
		f.mark(t, "shared", "BAD_REPORT")

		result := f.runner().Run(context.Background(), f.target(t, "shared"))
		assert.ErrorIs(t, result.Err, domain.ErrRewriteIO)
		assert.Equal(t, domain.StageRewrite, domain.StageOf(result.Err))
	})

	t.Run("unparsable command", func(t *testing.T) {
		f := newFixture(t, "shared")
		f.cfg.Targets[0].ReportCommand = `coverage "xml`

		result := f.runner().Run(context.Background(), f.target(t, "shared"))
		assert.ErrorIs(t, result.Err, domain.ErrReportGeneration)
	})

	t.Run("timeout", func(t *testing.T) {
		f := newFixture(t, "shared")
		f.cfg.Timeout = 50 * time.Millisecond
		f.cfg.Targets[0].TestCommand = "sleep 5"

		result := f.runner().Run(context.Background(), f.target(t, "shared"))
		assert.Equal(t, domain.StatusFailed, result.Status)
		assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
		assert.Less(t, result.Duration, 5*time.Second)
	})

	t.Run("canceled before start", func(t *testing.T) {
		f := newFixture(t, "shared")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := f.runner().Run(ctx, f.target(t, "shared"))
		assert.ErrorIs(t, result.Err, domain.ErrCanceled)
		assert.NoFileExists(t, result.ReportPath)
	})
}

func TestRunner_LiteralMode(t *testing.T) {
	f := newFixture(t, "core-api/lambda_functions")
	r := f.runner()
	r.SetRewriter(report.NewLiteralRewriter())

	target := f.target(t, "lambda_functions")
	result := r.Run(context.Background(), target)
	require.NoError(t, result.Err)
	assert.Equal(t, 2, result.Rewritten)

	data, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `filename="source/core-api/lambda_functions/pkg/b.py"`)
}

func TestAbsoluteFilenames(t *testing.T) {
	report := []byte(`<coverage><packages><package><classes>
		<class filename="source/shared/a.py"/>
		<class filename="source/shared//home/ci/shared/b.py"/>
	</classes></package></packages></coverage>`)

	assert.Equal(t, 1, absoluteFilenames(parser.NewCoberturaParser(), report, "source/shared"))
	assert.Equal(t, 0, absoluteFilenames(parser.NewCoberturaParser(), []byte("<coverage"), "source/shared"))
}
