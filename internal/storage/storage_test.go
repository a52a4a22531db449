package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covnorm/internal/config"
	"covnorm/internal/domain"
)

func sampleResults() []domain.TargetResult {
	return []domain.TargetResult{
		{
			Target:     domain.Target{Name: "shared", Dir: "shared", Prefix: "source/shared"},
			Dir:        "/repo/source/shared",
			ReportPath: "/repo/source/shared/coverage.xml",
			Status:     domain.StatusOK,
			Passed:     12,
			Rewritten:  4,
			Coverage:   &domain.ReportSummary{LineRate: 0.75, LinesValid: 40, LinesCovered: 30, Classes: 4},
			Duration:   1500 * time.Millisecond,
			TestOutput: "==== 12 passed ====",
		},
		{
			Target:     domain.Target{Name: "core-api-lambda-functions", Dir: "core-api/lambda_functions"},
			Status:     domain.StatusTestsFailed,
			Err:        domain.NewTargetError("core-api-lambda-functions", domain.StageTest, domain.ErrTestExecution, errors.New("exit status 1")),
			Passed:     3,
			Failed:     1,
			Rewritten:  2,
			TestOutput: "==== 1 failed, 3 passed ====",
		},
		{
			Target:     domain.Target{Name: "openid-waitingroom-custom-resources", Dir: "openid-waitingroom/custom_resources"},
			Status:     domain.StatusFailed,
			Err:        domain.NewTargetError("openid-waitingroom-custom-resources", domain.StageResolve, domain.ErrDirectoryNotFound, os.ErrNotExist),
			TestOutput: "",
		},
	}
}

func TestBuildRunOutput(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run := BuildRunOutput(sampleResults(), 3*time.Second, 4, "xml", now)

	_, err := uuid.Parse(run.Meta.RunID)
	assert.NoError(t, err)
	assert.Equal(t, 3, run.Meta.TotalTargets)
	assert.Equal(t, 1, run.Meta.OKTargets)
	assert.Equal(t, 1, run.Meta.TestFailTargets)
	assert.Equal(t, 1, run.Meta.FailedTargets)
	assert.Equal(t, "3s", run.Meta.Duration)
	assert.Equal(t, 4, run.Meta.Workers)
	assert.Equal(t, "xml", run.Meta.RewriteMode)
	assert.Equal(t, "2024-05-01T12:00:00Z", run.Meta.Timestamp)

	require.Len(t, run.Targets, 3)
	ok := run.Targets[0]
	assert.Equal(t, "source/shared", ok.Prefix)
	assert.Empty(t, ok.Error)
	assert.Empty(t, ok.Output, "output is only kept for failing targets")
	assert.InDelta(t, 1.5, ok.DurationSeconds, 1e-9)
	assert.Equal(t, 0.75, ok.Coverage.LineRate)

	testFail := run.Targets[1]
	assert.Equal(t, "test", testFail.Stage)
	assert.Contains(t, testFail.Error, "test execution failed")
	assert.Equal(t, "==== 1 failed, 3 passed ====", testFail.Output)

	failed := run.Targets[2]
	assert.Equal(t, "resolve", failed.Stage)
	assert.Contains(t, failed.Error, "target directory not found")

	other := BuildRunOutput(nil, 0, 1, "literal", now)
	assert.NotEqual(t, run.Meta.RunID, other.Meta.RunID)
	assert.Empty(t, other.Targets)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("short", 10))

	long := strings.Repeat("x", 20) + "\nlast line"
	assert.Equal(t, "last line", tail(long, 12))
	assert.Equal(t, "xxxxxxxxxxxx", tail(strings.Repeat("x", 30), 12))

	// Cuts inside a character move forward to the next whole one
	assert.Equal(t, "éé", tail(strings.Repeat("é", 10), 5))
	assert.Equal(t, "日日", tail(strings.Repeat("日", 10), 7))
	assert.True(t, utf8.ValidString(tail("ok "+strings.Repeat("ü", 3000), maxOutput)))
}

func TestJSONStorage(t *testing.T) {
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	st := NewJSONStorage(cfg)

	_, err := st.Load()
	assert.ErrorIs(t, err, os.ErrNotExist)

	run := BuildRunOutput(sampleResults(), time.Second, 2, "xml", time.Now())
	require.NoError(t, st.Save(run))
	assert.FileExists(t, filepath.Join(cfg.ProjectPath, ".covnorm", "results.json"))

	loaded, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, run, loaded)

	// A second save replaces the first
	next := BuildRunOutput(sampleResults()[:1], time.Second, 2, "xml", time.Now())
	require.NoError(t, st.Save(next))
	loaded, err = st.Load()
	require.NoError(t, err)
	assert.Equal(t, next.Meta.RunID, loaded.Meta.RunID)
	assert.Len(t, loaded.Targets, 1)
}

func TestJSONStorage_Corrupt(t *testing.T) {
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	path := cfg.GetOutputPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewJSONStorage(cfg).Load()
	assert.ErrorContains(t, err, "parse results")
}
