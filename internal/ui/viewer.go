package ui

import (
	"fmt"
	"io"
	"strings"

	"covnorm/internal/domain"
)

// Viewer displays the results of a run
type Viewer interface {
	View(run *domain.RunOutput) error
}

var (
	_ Viewer = (*PlainViewer)(nil)
	_ Viewer = (*ResultsViewer)(nil)
)

// PlainViewer prints every target's details as text, for pipes and CI logs
type PlainViewer struct {
	out io.Writer
}

// NewPlainViewer creates a PlainViewer writing to w
func NewPlainViewer(w io.Writer) *PlainViewer {
	return &PlainViewer{out: w}
}

// View implements Viewer
func (v *PlainViewer) View(run *domain.RunOutput) error {
	w := v.out
	fmt.Fprintf(w, "run %s  %s  %d target(s), %d failed\n",
		run.Meta.RunID, run.Meta.Timestamp, run.Meta.TotalTargets, run.Meta.FailedTargets)

	for _, t := range run.Targets {
		fmt.Fprintln(w)
		statusColor(t.Status).Fprintf(w, "%s %s (%s)\n", statusMark(t.Status), t.Name, t.Status)
		fmt.Fprintf(w, "  dir:       %s\n", t.Dir)
		fmt.Fprintf(w, "  prefix:    %s/\n", t.Prefix)
		fmt.Fprintf(w, "  report:    %s\n", t.ReportPath)
		fmt.Fprintf(w, "  tests:     %d passed, %d failed\n", t.Passed, t.Failed)
		fmt.Fprintf(w, "  rewritten: %d\n", t.Rewritten)
		if t.Coverage != nil {
			fmt.Fprintf(w, "  coverage:  %.1f%% (%d/%d lines)\n",
				t.Coverage.LineRate*100, t.Coverage.LinesCovered, t.Coverage.LinesValid)
		}
		if t.Error != "" {
			red.Fprintf(w, "  error:     %s\n", t.Error)
		}
		if out := strings.TrimSpace(t.Output); out != "" {
			fmt.Fprintln(w, "  output:")
			for _, line := range strings.Split(out, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
	return nil
}

func statusMark(s domain.Status) string {
	switch s {
	case domain.StatusOK:
		return "✓"
	case domain.StatusTestsFailed:
		return "!"
	default:
		return "✗"
	}
}
