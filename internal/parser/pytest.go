package parser

import (
	"regexp"
	"strconv"
)

var (
	// Final pytest line, e.g. "==== 3 passed, 1 failed, 2 errors in 0.12s ===="
	pytestSummaryRe = regexp.MustCompile(`(?m)^=+ (.*\d+ (?:passed|failed|errors?|skipped|xfailed|xpassed|deselected|warnings?).*) in [\d.]+s(?: \([^)]*\))? =+\s*$`)
	pytestCountRe   = regexp.MustCompile(`(\d+) (passed|failed|errors?|xpassed)`)
	// unittest prints "Ran 5 tests in 0.003s" followed by "OK" or "FAILED (failures=1, errors=2)"
	unittestRanRe    = regexp.MustCompile(`Ran (\d+) tests? in`)
	unittestFailedRe = regexp.MustCompile(`FAILED \(([^)]*)\)`)
	unittestCountRe  = regexp.MustCompile(`(failures|errors)=(\d+)`)
)

// PytestParser parses pytest (and plain unittest) console output
type PytestParser struct{}

// NewPytestParser creates a new PytestParser
func NewPytestParser() *PytestParser {
	return &PytestParser{}
}

// ParseTestCounts extracts passed and failed test counts from the output.
// Returns (passed, failed). If parsing fails, returns (1,0) for success or (0,1) for failure (target-level fallback).
func (p *PytestParser) ParseTestCounts(output string, success bool) (passed, failed int) {
	if m := pytestSummaryRe.FindAllStringSubmatch(output, -1); len(m) > 0 {
		summary := m[len(m)-1][1]
		for _, c := range pytestCountRe.FindAllStringSubmatch(summary, -1) {
			n, _ := strconv.Atoi(c[1])
			switch c[2] {
			case "passed", "xpassed":
				passed += n
			default:
				failed += n
			}
		}
		if passed > 0 || failed > 0 {
			return passed, failed
		}
	}

	if m := unittestRanRe.FindStringSubmatch(output); len(m) == 2 {
		total, _ := strconv.Atoi(m[1])
		if f := unittestFailedRe.FindStringSubmatch(output); len(f) == 2 {
			for _, c := range unittestCountRe.FindAllStringSubmatch(f[1], -1) {
				n, _ := strconv.Atoi(c[2])
				failed += n
			}
		}
		if total >= failed {
			passed = total - failed
		}
		if passed > 0 || failed > 0 {
			return passed, failed
		}
	}

	// Fallback: one "test" per target
	if success {
		return 1, 0
	}
	return 0, 1
}
