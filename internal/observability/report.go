package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// ReportRow is one step line of a terminal run report.
type ReportRow struct {
	Index    int
	Name     string
	Action   string
	Success  bool
	Warning  bool
	Note     string // error, warning or bound variable
	Duration time.Duration
}

// Report is a finished run as printed by the CLI.
type Report struct {
	Title  string
	Passed bool
	Rows   []ReportRow
	Footer string
}

var (
	passColor = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
	headColor = color.New(color.FgCyan, color.Bold)
)

// PrintReport writes r as a table sized to the terminal.
func PrintReport(w io.Writer, r Report) {
	width := clamp(termWidth(), 60, 160)

	headColor.Fprintln(w, r.Title)
	fmt.Fprintln(w, strings.Repeat("─", width))

	nameWidth := clamp(width/3, 16, 40)
	noteWidth := width - nameWidth - 34
	if noteWidth < 10 {
		noteWidth = 10
	}

	for _, row := range r.Rows {
		mark := passColor.Sprint("✔")
		if !row.Success {
			mark = failColor.Sprint("✘")
		} else if row.Warning {
			mark = warnColor.Sprint("!")
		}
		note := fit(row.Note, noteWidth)
		switch {
		case !row.Success:
			note = failColor.Sprint(note)
		case row.Warning:
			note = warnColor.Sprint(note)
		default:
			note = dimColor.Sprint(note)
		}
		fmt.Fprintf(w, " %s %3d  %-*s  %-12s %7s  %s\n",
			mark, row.Index, nameWidth, fit(row.Name, nameWidth), fit(row.Action, 12),
			row.Duration.Round(time.Millisecond), note)
	}

	fmt.Fprintln(w, strings.Repeat("─", width))
	if r.Passed {
		passColor.Fprint(w, "PASSED")
	} else {
		failColor.Fprint(w, "FAILED")
	}
	if r.Footer != "" {
		fmt.Fprintf(w, "  %s", r.Footer)
	}
	fmt.Fprintln(w)
}

// fit shortens s to n runes.
func fit(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	if n <= 3 {
		return string(rs[:n])
	}
	return string(rs[:n-3]) + "..."
}
