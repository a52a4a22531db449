package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ProgressBar shows how many targets have been normalized
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a new progress bar on stderr
func NewProgressBar(count int) *ProgressBar {
	return newProgressBar(count, os.Stderr)
}

func newProgressBar(count int, w io.Writer) *ProgressBar {
	bar := progressbar.NewOptions(count,
		progressbar.OptionSetDescription(describe(0, 0)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// Update sets the bar to completed targets and refreshes the ok/failed counts
func (p *ProgressBar) Update(completed, ok, failed int) {
	_ = p.bar.Set(completed)
	p.bar.Describe(describe(ok, failed))
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}

func describe(ok, failed int) string {
	return color.CyanString("Normalizing reports: ") +
		color.GreenString("[ok: %d", ok) +
		" | " +
		color.RedString("failed: %d]", failed)
}

// ShowProgress reports whether a progress bar should be drawn on stderr
func ShowProgress(disabled bool) bool {
	if disabled {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
