package domain

import "time"

// Status of a finished target
type Status string

const (
	StatusOK          Status = "ok"
	StatusTestsFailed Status = "tests_failed"
	StatusFailed      Status = "failed"
)

// TargetResult represents the outcome of normalizing one target
type TargetResult struct {
	Target     Target
	Dir        string         // Resolved working directory
	ReportPath string         // Resolved report path
	Status     Status         // Final status
	Err        error          // Fatal error, or the test error when tests failed
	TestOutput string         // Combined output of the test command
	Passed     int            // Passed test cases
	Failed     int            // Failed test cases (failures + errors)
	Rewritten  int            // Number of filename references rewritten
	Coverage   *ReportSummary // Parsed report summary, nil when unavailable
	Duration   time.Duration  // Time taken for all steps
}

// Fatal reports whether the target stopped before producing a normalized report
func (r TargetResult) Fatal() bool {
	return r.Status == StatusFailed
}

// ReportSummary holds the headline numbers of a Cobertura report
type ReportSummary struct {
	LineRate     float64 `json:"line_rate"`
	LinesValid   int     `json:"lines_valid"`
	LinesCovered int     `json:"lines_covered"`
	Classes      int     `json:"classes"`
}

// RunMeta contains metadata about a run
type RunMeta struct {
	RunID           string  `json:"run_id"`
	TotalTargets    int     `json:"total_targets"`
	OKTargets       int     `json:"ok_targets"`
	TestFailTargets int     `json:"test_fail_targets"`
	FailedTargets   int     `json:"failed_targets"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Workers         int     `json:"workers"`
	RewriteMode     string  `json:"rewrite_mode"`
	Timestamp       string  `json:"timestamp"`
}

// TargetRecord is the persisted form of a TargetResult
type TargetRecord struct {
	Name            string         `json:"name"`
	Dir             string         `json:"dir"`
	Prefix          string         `json:"prefix"`
	ReportPath      string         `json:"report_path"`
	Status          Status         `json:"status"`
	Stage           string         `json:"stage,omitempty"`
	Error           string         `json:"error,omitempty"`
	Passed          int            `json:"passed"`
	Failed          int            `json:"failed"`
	Rewritten       int            `json:"rewritten"`
	Coverage        *ReportSummary `json:"coverage,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	Output          string         `json:"output,omitempty"`
	Reviewed        bool           `json:"reviewed,omitempty"`
}

// RunOutput is the complete stored structure of a run
type RunOutput struct {
	Meta    RunMeta        `json:"meta"`
	Targets []TargetRecord `json:"targets"`
}
