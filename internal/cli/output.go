package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
)

// outputStyles holds lipgloss styles for text output.
type outputStyles struct {
	title        lipgloss.Style
	dim          lipgloss.Style
	errText      lipgloss.Style
	statusColors map[constants.Status]lipgloss.AdaptiveColor
}

// newOutputStyles creates the styles used by the text renderers.
func newOutputStyles() *outputStyles {
	gray := lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}
	return &outputStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
		dim:     lipgloss.NewStyle().Foreground(gray),
		errText: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"}),
		statusColors: map[constants.Status]lipgloss.AdaptiveColor{
			constants.StatusSuccess:     {Light: "#008700", Dark: "#5FD75F"}, // Green
			constants.StatusWarn:        {Light: "#AF8700", Dark: "#FFD75F"}, // Yellow
			constants.StatusFailure:     {Light: "#D70000", Dark: "#FF5F5F"}, // Red
			constants.StatusStopped:     {Light: "#AF5F00", Dark: "#FFAF5F"}, // Orange
			constants.StatusNotExecuted: gray,
			constants.StatusPaused:      {Light: "#0087AF", Dark: "#00D7FF"}, // Blue
			constants.StatusRunning:     {Light: "#0087AF", Dark: "#00D7FF"},
		},
	}
}

// status renders a colored status badge.
func (s *outputStyles) status(status constants.Status) string {
	color, ok := s.statusColors[status]
	if !ok {
		return status.String()
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(status.String())
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

// renderExecutionReport writes the header and step tree of a scenario
// execution report.
func renderExecutionReport(w io.Writer, r domain.ExecutionReport) {
	styles := newOutputStyles()

	_, _ = fmt.Fprintf(w, "%s %s\n",
		styles.title.Render(fmt.Sprintf("Execution #%d", r.ExecutionID)),
		styles.status(r.Status))
	_, _ = fmt.Fprintln(w, styles.dim.Render(fmt.Sprintf("scenario %s | environment %s | dataset %s | %s",
		r.ScenarioID, r.Environment, orDash(r.DatasetID), formatDuration(r.Duration))))
	if r.Error != "" {
		_, _ = fmt.Fprintln(w, styles.errText.Render(r.Error))
	}
	_, _ = fmt.Fprintln(w, stepTree(styles, r.Report))
}

// stepTree builds the tree of a step report and its children.
func stepTree(styles *outputStyles, r domain.StepReport) *tree.Tree {
	t := tree.Root(stepLabel(styles, r)).Enumerator(tree.RoundedEnumerator)
	for _, info := range r.Information {
		t.Child(styles.dim.Render(info))
	}
	for _, msg := range r.Errors {
		t.Child(styles.errText.Render(msg))
	}
	for _, child := range r.Steps {
		if len(child.Steps) == 0 && len(child.Information) == 0 && len(child.Errors) == 0 {
			t.Child(stepLabel(styles, child))
			continue
		}
		t.Child(stepTree(styles, child))
	}
	return t
}

func stepLabel(styles *outputStyles, r domain.StepReport) string {
	label := fmt.Sprintf("%s %s", styles.status(r.Status), r.Name)
	if r.Type != "" {
		label += styles.dim.Render(" [" + r.Type + "]")
	}
	if r.Status.IsTerminal() {
		label += styles.dim.Render(" " + formatDuration(r.Duration))
	}
	return label
}

// newTable creates a table with the standard style.
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

// renderCampaignExecution writes a campaign execution summary table.
func renderCampaignExecution(w io.Writer, exec domain.CampaignExecution) {
	styles := newOutputStyles()

	title := fmt.Sprintf("Campaign %s execution #%d", exec.CampaignID, exec.ID)
	if exec.Partial {
		title += " (replay)"
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", styles.title.Render(title), styles.status(exec.Status()))
	_, _ = fmt.Fprintln(w, styles.dim.Render(fmt.Sprintf("environment %s | %s",
		exec.Environment, formatDuration(exec.EndDate.Sub(exec.StartDate)))))

	t := newTable()
	t.AppendHeader(table.Row{"#", "Scenario", "Dataset", "Execution", "Status", "Duration", "Error"})
	for i, s := range exec.Scenarios {
		execID := "-"
		if s.ExecutionID > 0 {
			execID = strconv.FormatInt(s.ExecutionID, 10)
		}
		t.AppendRow(table.Row{
			i + 1, s.ScenarioID, orDash(s.DatasetID), execID,
			styles.status(s.Status), formatDuration(s.Duration), s.Error,
		})
	}
	_, _ = fmt.Fprintln(w, t.Render())
}

// renderCampaigns writes the table of campaign definitions.
func renderCampaigns(w io.Writer, campaigns []domain.Campaign) {
	t := newTable()
	t.AppendHeader(table.Row{"ID", "Title", "Scenarios", "Environment", "Dataset", "Parallel", "Retry"})
	for _, c := range campaigns {
		t.AppendRow(table.Row{
			c.ID, c.Title, len(c.Scenarios), orDash(c.Environment), orDash(c.DatasetID),
			yesNo(c.ParallelRun), yesNo(c.RetryAuto),
		})
	}
	_, _ = fmt.Fprintln(w, t.Render())
}

// renderExecutions writes the table of stored executions of a scenario.
func renderExecutions(w io.Writer, reports []domain.ExecutionReport) {
	styles := newOutputStyles()

	t := newTable()
	t.AppendHeader(table.Row{"Execution", "Started", "Environment", "Dataset", "Status", "Duration"})
	for _, r := range reports {
		t.AppendRow(table.Row{
			r.ExecutionID, r.StartDate.Local().Format(time.DateTime), r.Environment,
			orDash(r.DatasetID), styles.status(r.Status), formatDuration(r.Duration),
		})
	}
	_, _ = fmt.Fprintln(w, t.Render())
}

// formatDuration rounds a duration for display.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
