package main

import (
	"fmt"
	"io"

	"composition-corrector/report"

	"github.com/fatih/color"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	green  = color.New(color.FgGreen)
	faint  = color.New(color.Faint)
)

// printSummary writes the flagged words and counts of one page.
func printSummary(w io.Writer, s report.Summary, out string) {
	bold.Fprintf(w, "%s\n", s.Title)

	if len(s.Rows) == 0 {
		green.Fprintln(w, "  no corrections")
	}
	for _, r := range s.Rows {
		c := red
		if r.Tier == "medium" {
			c = yellow
		}
		c.Fprintf(w, "  %-16s", r.Word)
		fmt.Fprintf(w, " -> %s", r.Suggestion)
		if r.Tier == "medium" {
			fmt.Fprint(w, " (?)")
		}
		faint.Fprintf(w, "  at %d,%d\n", r.Box.Left, r.Box.Top)
	}

	fmt.Fprintf(w, "%d words, %d known errors, %d possible errors", s.TotalWords, s.KnownErrors, s.PossibleErrors)
	if s.Skipped > 0 {
		yellow.Fprintf(w, ", %d skipped", s.Skipped)
	}
	if s.Overflow > 0 {
		yellow.Fprintf(w, ", %d comments below the page", s.Overflow)
	}
	if s.Unmatched > 0 {
		yellow.Fprintf(w, ", %d unmatched remarks", s.Unmatched)
	}
	fmt.Fprintln(w)
	faint.Fprintf(w, "wrote %s\n", out)
}
