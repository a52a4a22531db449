package parser

import "covnorm/internal/domain"

// Parser extracts test counts from the output of a target's test command
type Parser interface {
	ParseTestCounts(output string, success bool) (passed, failed int)
}

// ReportParser summarizes a coverage report
type ReportParser interface {
	Summarize(data []byte) (*domain.ReportSummary, error)
}
