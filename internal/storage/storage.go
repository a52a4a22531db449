package storage

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"covnorm/internal/domain"
)

// maxOutput bounds the tool output kept per failing target
const maxOutput = 4096

// Storage persists and loads run results (e.g. for the results viewer).
type Storage interface {
	Save(run *domain.RunOutput) error
	Load() (*domain.RunOutput, error)
}

// BuildRunOutput converts the results of a run into its stored form.
func BuildRunOutput(results []domain.TargetResult, duration time.Duration, workers int, mode string, now time.Time) *domain.RunOutput {
	run := &domain.RunOutput{
		Meta: domain.RunMeta{
			RunID:           uuid.NewString(),
			TotalTargets:    len(results),
			Duration:        duration.String(),
			DurationSeconds: duration.Seconds(),
			Workers:         workers,
			RewriteMode:     mode,
			Timestamp:       now.Format(time.RFC3339),
		},
		Targets: make([]domain.TargetRecord, 0, len(results)),
	}

	for _, r := range results {
		switch r.Status {
		case domain.StatusOK:
			run.Meta.OKTargets++
		case domain.StatusTestsFailed:
			run.Meta.TestFailTargets++
		default:
			run.Meta.FailedTargets++
		}
		run.Targets = append(run.Targets, record(r))
	}
	return run
}

func record(r domain.TargetResult) domain.TargetRecord {
	rec := domain.TargetRecord{
		Name:            r.Target.Name,
		Dir:             r.Dir,
		Prefix:          r.Target.Prefix,
		ReportPath:      r.ReportPath,
		Status:          r.Status,
		Passed:          r.Passed,
		Failed:          r.Failed,
		Rewritten:       r.Rewritten,
		Coverage:        r.Coverage,
		DurationSeconds: r.Duration.Seconds(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
		rec.Stage = string(domain.StageOf(r.Err))
		rec.Output = tail(r.TestOutput, maxOutput)
	}
	return rec
}

// tail keeps the last n bytes of s, starting at a line boundary when possible
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[i+1:]
		}
	}
	// No line boundary, so at least start on a whole character
	for i := 0; i < len(s) && i < utf8.UTFMax; i++ {
		if utf8.RuneStart(s[i]) {
			return s[i:]
		}
	}
	return s
}
