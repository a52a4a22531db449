package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"

	"covnorm/internal/config"
	"covnorm/internal/discovery"
	"covnorm/internal/domain"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	white  = color.New(color.FgWhite)
)

// Formatter formats and displays output
type Formatter struct {
	config  *config.Config
	scanner *discovery.Scanner
	parser  *discovery.Parser
	out     io.Writer
}

// NewFormatter creates a new Formatter writing to stdout
func NewFormatter(cfg *config.Config, scanner *discovery.Scanner, parser *discovery.Parser) *Formatter {
	return &Formatter{
		config:  cfg,
		scanner: scanner,
		parser:  parser,
		out:     color.Output,
	}
}

// SetOutput redirects the formatter
func (f *Formatter) SetOutput(w io.Writer) {
	f.out = w
}

// PrintRunSummary prints the statistics table of a run, one row per target,
// and a tree of the targets that did not finish cleanly.
func (f *Formatter) PrintRunSummary(run *domain.RunOutput) error {
	meta := run.Meta
	w := f.out

	fmt.Fprint(w, "\n")
	cyan.Fprintln(w, "╔═══════════════════════════════════════════════════════════════╗")
	cyan.Fprintln(w, "║                  Coverage Report Normalization                ║")
	cyan.Fprintln(w, "╚═══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)

	rewritten := 0
	for _, t := range run.Targets {
		rewritten += t.Rewritten
	}

	rows := []struct {
		label string
		value string
		c     *color.Color
	}{
		{"Total Targets", fmt.Sprint(meta.TotalTargets), white},
		{"Normalized", fmt.Sprint(meta.OKTargets), green},
		{"Normalized, Tests Failed", fmt.Sprint(meta.TestFailTargets), yellow},
		{"Failed", fmt.Sprint(meta.FailedTargets), red},
		{"Rewritten References", fmt.Sprint(rewritten), white},
		{"Rewrite Mode", meta.RewriteMode, white},
		{"Duration", fmt.Sprintf("%.2fs", meta.DurationSeconds), white},
		{"Workers", fmt.Sprint(meta.Workers), white},
		{"Timestamp", meta.Timestamp, white},
	}

	fmt.Fprintln(w, "┌─────────────────────────────────┬─────────────────────────────┐")
	for i, row := range rows {
		fmt.Fprintf(w, "│ %-31s │ ", row.label)
		row.c.Fprintf(w, "%-27s", row.value)
		fmt.Fprintln(w, " │")
		if i < len(rows)-1 {
			fmt.Fprintln(w, "├─────────────────────────────────┼─────────────────────────────┤")
		}
	}
	fmt.Fprintln(w, "└─────────────────────────────────┴─────────────────────────────┘")

	if len(run.Targets) > 0 {
		fmt.Fprintln(w)
		f.printTargetTable(run.Targets)
	}

	fmt.Fprintln(w)
	switch {
	case meta.FailedTargets > 0:
		red.Fprintf(w, "✗ %d of %d target(s) failed\n", meta.FailedTargets, meta.TotalTargets)
	case meta.TestFailTargets > 0:
		yellow.Fprintf(w, "! All reports normalized, tests failed in %d target(s)\n", meta.TestFailTargets)
	default:
		green.Fprintln(w, "✓ All reports normalized!")
	}

	var failing []domain.TargetRecord
	for _, t := range run.Targets {
		if t.Status != domain.StatusOK {
			failing = append(failing, t)
		}
	}
	if len(failing) > 0 {
		fmt.Fprintln(w)
		f.printFailureTree(failing)
	}
	return nil
}

func (f *Formatter) printTargetTable(targets []domain.TargetRecord) {
	w := f.out
	fmt.Fprintln(w, "┌──────────────────────────────────────┬──────────────┬───────────┬───────────┬──────────┐")
	fmt.Fprintf(w, "│ %-36s │ %-12s │ %-9s │ %-9s │ %-8s │\n", "Target", "Status", "Tests", "Rewritten", "Coverage")
	fmt.Fprintln(w, "├──────────────────────────────────────┼──────────────┼───────────┼───────────┼──────────┤")
	for _, t := range targets {
		coverage := "-"
		if t.Coverage != nil {
			coverage = fmt.Sprintf("%.1f%%", t.Coverage.LineRate*100)
		}
		fmt.Fprintf(w, "│ %-36s │ ", truncate(t.Name, 36))
		statusColor(t.Status).Fprintf(w, "%-12s", t.Status)
		fmt.Fprintf(w, " │ %-9s │ %-9d │ %-8s │\n", fmt.Sprintf("%d/%d", t.Passed, t.Failed), t.Rewritten, coverage)
	}
	fmt.Fprintln(w, "└──────────────────────────────────────┴──────────────┴───────────┴───────────┴──────────┘")
}

// TreeNode represents a directory in the failure tree
type TreeNode struct {
	Name     string
	Children map[string]*TreeNode
	Records  []domain.TargetRecord
}

// printFailureTree prints failing targets grouped by their directory
func (f *Formatter) printFailureTree(records []domain.TargetRecord) {
	root := &TreeNode{Children: make(map[string]*TreeNode)}
	source := f.config.GetSourcePath()

	for _, rec := range records {
		dir := rec.Dir
		if rel, err := filepath.Rel(source, rec.Dir); err == nil && !strings.HasPrefix(rel, "..") {
			dir = rel
		}
		if dir == "" {
			dir = rec.Name
		}

		current := root
		for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
			if part == "" || part == "." {
				continue
			}
			if current.Children[part] == nil {
				current.Children[part] = &TreeNode{Name: part, Children: make(map[string]*TreeNode)}
			}
			current = current.Children[part]
		}
		current.Records = append(current.Records, rec)
	}

	f.printTreeNode(root, "")
}

func (f *Formatter) printTreeNode(node *TreeNode, prefix string) {
	w := f.out

	keys := make([]string, 0, len(node.Children))
	for key := range node.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		child := node.Children[key]
		connector, childPrefix := "├── ", "│   "
		if i == len(keys)-1 {
			connector, childPrefix = "└── ", "    "
		}

		if len(child.Records) > 0 {
			yellow.Fprintf(w, "%s%s%s\n", prefix, connector, child.Name)
		} else {
			cyan.Fprintf(w, "%s%s%s\n", prefix, connector, child.Name)
		}

		for j, rec := range child.Records {
			recConnector := "├── "
			if j == len(child.Records)-1 && len(child.Children) == 0 {
				recConnector = "└── "
			}
			line := fmt.Sprintf("%s%s%s✗ %s", prefix, childPrefix, recConnector, rec.Name)
			if rec.Stage != "" {
				line += fmt.Sprintf(" [%s]", rec.Stage)
			}
			statusColor(rec.Status).Fprintln(w, line)
		}

		f.printTreeNode(child, prefix+childPrefix)
	}
}

// PrintTargetList prints the configured targets, optionally with their test
// files and test cases. Targets that failed in lastRun are marked with [F].
func (f *Formatter) PrintTargetList(targets []domain.Target, showTestCases bool, lastRun *domain.RunOutput) error {
	w := f.out

	failed := make(map[string]bool)
	if lastRun != nil {
		for _, t := range lastRun.Targets {
			if t.Status != domain.StatusOK {
				failed[t.Name] = true
			}
		}
	}

	green.Fprintf(w, "Found %d target(s):\n\n", len(targets))

	for i, target := range targets {
		isLastTarget := i == len(targets)-1
		connector, childPrefix := "├── ", "│   "
		if isLastTarget {
			connector, childPrefix = "└── ", "    "
		}

		failMarker := ""
		if failed[target.Name] {
			failMarker = " " + red.Sprint("[F]")
		}

		dir := f.config.GetTargetDir(target)
		tests, err := f.scanner.Scan(dir)

		summary := fmt.Sprintf("%s → %s", target.Dir, target.Prefix+"/")
		if err == nil {
			summary += fmt.Sprintf(", %d test file(s)", len(tests))
		}
		fmt.Fprintf(w, "%s%s %s%s\n", connector, cyan.Sprint(target.Name), summary, failMarker)

		if err != nil {
			fmt.Fprintf(w, "%s└── %s\n", childPrefix, red.Sprint("(directory not found)"))
			continue
		}
		if !showTestCases {
			continue
		}
		f.printTestFiles(dir, tests, childPrefix)
	}

	return nil
}

func (f *Formatter) printTestFiles(dir string, tests []string, prefix string) {
	w := f.out

	if len(tests) == 0 {
		fmt.Fprintf(w, "%s└── %s\n", prefix, red.Sprint("(no test files found)"))
		return
	}

	for i, test := range tests {
		isLastFile := i == len(tests)-1
		connector, casePrefix := "├── ", prefix+"│   "
		if isLastFile {
			connector, casePrefix = "└── ", prefix+"    "
		}

		relPath, err := filepath.Rel(dir, test)
		if err != nil {
			relPath = test
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, connector, yellow.Sprint(filepath.ToSlash(relPath)))

		testCases, err := f.parser.FindTestCases(test)
		if err != nil {
			fmt.Fprintf(w, "%s└── %s\n", casePrefix, red.Sprintf("error reading test file: %v", err))
			continue
		}
		if len(testCases) == 0 {
			fmt.Fprintf(w, "%s└── %s\n", casePrefix, red.Sprint("(no test cases found)"))
			continue
		}
		for j, testCase := range testCases {
			caseConnector := "├── "
			if j == len(testCases)-1 {
				caseConnector = "└── "
			}
			fmt.Fprintf(w, "%s%s%s\n", casePrefix, caseConnector, testCase)
		}
	}
}

func statusColor(s domain.Status) *color.Color {
	switch s {
	case domain.StatusOK:
		return green
	case domain.StatusTestsFailed:
		return yellow
	default:
		return red
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
