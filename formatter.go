package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/razim-manzoor/AI-Data-Analyst/agent"
)

// formatResult renders a finalized turn for the terminal. Tabular results
// become a Markdown table, chart results report the artifact path, and a
// failed turn shows the full error trail so the root-cause progression is
// visible.
func formatResult(turn *agent.Turn) string {
	var b strings.Builder

	switch res := turn.Result.(type) {
	case *agent.TabularResult:
		b.WriteString(renderMarkdownTable(res.Columns, res.Rows))
		if res.Truncated {
			fmt.Fprintf(&b, "\n_Results truncated to the first %d rows._\n", len(res.Rows))
		}
	case *agent.ChartResult:
		fmt.Fprintf(&b, "Chart saved: %s\n", res.ArtifactPath)
		if res.Description != "" {
			fmt.Fprintf(&b, "%s\n", res.Description)
		}
	case *agent.ExecutionFailure:
		fmt.Fprintf(&b, "Could not answer this question (%s): %s\n", res.Kind, res.Message)
	default:
		b.WriteString("No result.\n")
	}

	if turn.Status == agent.StatusFailed && len(turn.Trail) > 0 {
		b.WriteString("\nAttempt history:\n")
		for i, a := range turn.Trail {
			fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, a.Kind, a.Message)
		}
	}

	fmt.Fprintf(&b, "\n(intent: %s, attempts: %d, elapsed: %s)\n",
		turn.Intent, turn.Attempts, turn.Elapsed.Round(time.Millisecond))
	return b.String()
}

// renderMarkdownTable renders columns and rows as a GitHub-style table.
// Cells are padded so the raw text stays readable in a terminal.
func renderMarkdownTable(columns []string, rows [][]string) string {
	if len(columns) == 0 {
		return "(no columns)\n"
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := range columns {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			fmt.Fprintf(&b, " %-*s |", widths[i], cell)
		}
		b.WriteString("\n")
	}

	writeRow(columns)
	b.WriteString("|")
	for i := range columns {
		b.WriteString(" " + strings.Repeat("-", widths[i]) + " |")
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	if len(rows) == 0 {
		b.WriteString("(no rows)\n")
	}
	return b.String()
}

// formatSessionStats summarizes a session for the exit banner.
func formatSessionStats(session *agent.Session) string {
	turns := session.Turns()
	var ok, failed int
	var total time.Duration
	for _, t := range turns {
		if t.Status == agent.StatusFailed {
			failed++
		} else {
			ok++
		}
		total += t.Elapsed
	}
	if len(turns) == 0 {
		return fmt.Sprintf("Session %s: 0 turns", session.ID)
	}
	avg := total / time.Duration(len(turns))
	return fmt.Sprintf("Session %s: %d turns (%d answered, %d failed), total %s, avg %s",
		session.ID, len(turns), ok, failed,
		total.Round(time.Millisecond), avg.Round(time.Millisecond))
}
