package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"covnorm/internal/domain"
	"covnorm/internal/storage"
)

// maxOutputLines is how much tool output the details pane shows
const maxOutputLines = 40

// ResultsViewer displays the targets of a run in an interactive TUI
type ResultsViewer struct {
	storage storage.Storage
}

// NewResultsViewer creates a new ResultsViewer. Review marks are saved to st.
func NewResultsViewer(st storage.Storage) *ResultsViewer {
	return &ResultsViewer{storage: st}
}

// View implements Viewer
func (rv *ResultsViewer) View(run *domain.RunOutput) error {
	if len(run.Targets) == 0 {
		color.Yellow("No targets in the last run")
		return nil
	}

	app := tview.NewApplication()

	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)

	updateListItem := func(index int) {
		if index < 0 || index >= list.GetItemCount() {
			return
		}
		list.SetItemText(index, listItemText(run.Targets[index], index), "")
	}

	for i, t := range run.Targets {
		list.AddItem(listItemText(t, i), "", 0, nil)
	}

	list.SetMainTextColor(tview.Styles.PrimaryTextColor).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan).
		SetSecondaryTextColor(tview.Styles.SecondaryTextColor)

	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetWordWrap(false)

	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)

	detailsContainer := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(detailsView, 0, 1, false).
		AddItem(tview.NewBox(), 2, 0, false)

	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 3, 0, false).
		AddItem(detailsContainer, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(rightSide, 0, 2, false)

	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)

	updateHeader := func() {
		headerView.SetText(headerText(run))
	}
	updateHeader()

	updateDetails := func() {
		index := list.GetCurrentItem()
		if index >= 0 && index < len(run.Targets) {
			statsView.SetText(formatTargetStats(run.Targets[index]))
			detailsView.SetText(formatTargetDetails(run.Targets[index])).ScrollToBeginning()
		}
	}

	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyUp, tcell.KeyDown:
			return event
		case tcell.KeyEnter, tcell.KeyRight:
			app.SetFocus(detailsView)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q':
				app.Stop()
				return nil
			case 'r', 'R':
				index := list.GetCurrentItem()
				if index >= 0 && index < len(run.Targets) {
					run.Targets[index].Reviewed = !run.Targets[index].Reviewed
					updateListItem(index)
					updateHeader()
					updateDetails()
					if rv.storage != nil {
						// Best effort: a failed save only loses the review mark
						_ = rv.storage.Save(run)
					}
				}
				return nil
			}
		}
		return event
	})

	detailsView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft, tcell.KeyEsc:
			app.SetFocus(list)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		return event
	})

	list.SetChangedFunc(func(index int, mainText string, secondaryText string, shortcut rune) {
		updateDetails()
	})
	updateDetails()

	mainLayout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(flex, 0, 1, true)

	if err := app.SetRoot(mainLayout, true).SetFocus(list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func headerText(run *domain.RunOutput) string {
	pending := 0
	for _, t := range run.Targets {
		if t.Status != domain.StatusOK && !t.Reviewed {
			pending++
		}
	}
	return fmt.Sprintf(" Run %s (%d targets, %d unreviewed problems) | ↑↓ navigate, [yellow]R[white] mark reviewed, → details, ← back, q to exit ",
		shortID(run.Meta.RunID), len(run.Targets), pending)
}

func listItemText(t domain.TargetRecord, index int) string {
	tag := "green"
	switch t.Status {
	case domain.StatusTestsFailed:
		tag = "yellow"
	case domain.StatusFailed:
		tag = "red"
	}
	if t.Reviewed {
		return fmt.Sprintf("[gray]✓ %d. %s[white]", index+1, tview.Escape(t.Name))
	}
	return fmt.Sprintf("[%s]%s[white] %d. %s", tag, statusMark(t.Status), index+1, tview.Escape(t.Name))
}

// formatTargetStats formats the one-line header of the details pane
func formatTargetStats(t domain.TargetRecord) string {
	return fmt.Sprintf("[cyan]target:[white] [yellow]%s[white]  [cyan]status:[white] %s  [cyan]prefix:[white] %s/\n",
		tview.Escape(t.Name), t.Status, tview.Escape(t.Prefix))
}

// formatTargetDetails formats a target record using tview color tags
func formatTargetDetails(t domain.TargetRecord) string {
	var builder strings.Builder
	w := tabwriter.NewWriter(&builder, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "[cyan]Directory:\t[white]%s\n", tview.Escape(t.Dir))
	fmt.Fprintf(w, "[cyan]Report:\t[white]%s\n", tview.Escape(t.ReportPath))
	fmt.Fprintf(w, "[cyan]Tests:\t[white]%d passed, %d failed\n", t.Passed, t.Failed)
	fmt.Fprintf(w, "[cyan]Rewritten:\t[white]%d reference(s)\n", t.Rewritten)
	if t.Coverage != nil {
		fmt.Fprintf(w, "[cyan]Coverage:\t[white]%.1f%% (%d/%d lines, %d files)\n",
			t.Coverage.LineRate*100, t.Coverage.LinesCovered, t.Coverage.LinesValid, t.Coverage.Classes)
	}
	fmt.Fprintf(w, "[cyan]Duration:\t[white]%.2fs\n", t.DurationSeconds)
	w.Flush()

	if t.Error != "" {
		builder.WriteString("\n")
		if t.Stage != "" {
			fmt.Fprintf(&builder, "[red]✗ Failed during %s[white]\n", t.Stage)
		}
		fmt.Fprintf(&builder, "[yellow]Error:[white]\n%s\n", tview.Escape(t.Error))
	}

	if out := strings.TrimSpace(t.Output); out != "" {
		lines := strings.Split(out, "\n")
		builder.WriteString("\n[yellow]Output:[white]\n")
		if len(lines) > maxOutputLines {
			fmt.Fprintf(&builder, "  [gray]... %d earlier lines[white]\n", len(lines)-maxOutputLines)
			lines = lines[len(lines)-maxOutputLines:]
		}
		for _, line := range lines {
			fmt.Fprintf(&builder, "  %s\n", tview.Escape(line))
		}
	}

	return builder.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
