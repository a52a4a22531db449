package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDirectoryNotFound means the target directory is missing
	ErrDirectoryNotFound = errors.New("target directory not found")
	// ErrEntryPointNotFound means the configured test entry point is missing
	ErrEntryPointNotFound = errors.New("test entry point not found")
	// ErrTestExecution means the test command exited non-zero
	ErrTestExecution = errors.New("test execution failed")
	// ErrReportGeneration means the coverage tool produced no report
	ErrReportGeneration = errors.New("report generation failed")
	// ErrRewriteIO means the report could not be read, parsed or written back
	ErrRewriteIO = errors.New("report rewrite failed")
	// ErrCanceled means the target never started because the run was canceled
	ErrCanceled = errors.New("run canceled")
)

// Stage names the step of runAndNormalize that failed
type Stage string

const (
	StageResolve Stage = "resolve"
	StageTest    Stage = "test"
	StageReport  Stage = "report"
	StageRewrite Stage = "rewrite"
)

// TargetError ties an error to the target and stage it happened in
type TargetError struct {
	Target string
	Stage  Stage
	Kind   error // One of the Err* sentinels
	Err    error // Underlying cause, may be nil
}

func (e *TargetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Target, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Target, e.Kind, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is and errors.As
func (e *TargetError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewTargetError builds a TargetError
func NewTargetError(target string, stage Stage, kind, err error) *TargetError {
	return &TargetError{Target: target, Stage: stage, Kind: kind, Err: err}
}

// StageOf returns the failing stage recorded in err, or "" when err carries none
func StageOf(err error) Stage {
	var te *TargetError
	if errors.As(err, &te) {
		return te.Stage
	}
	return ""
}
