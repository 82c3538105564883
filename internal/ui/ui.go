package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/sokinpui/changegate/internal/state"
	"github.com/sokinpui/changegate/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
)

// Out receives reports; Err receives status lines.
var (
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr
)

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(Err, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(Err, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(Err, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(Err, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(Err, format+"\n", a...)
}

// JSON writes v to Out as indented JSON.
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(Out, string(data))
	return err
}

func list(c *color.Color, title string, items []string) {
	if len(items) == 0 {
		return
	}
	c.Fprintf(Out, "%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(Out, "  - %s\n", item)
	}
}

func paths(c *color.Color, title string, items []string) {
	if len(items) == 0 {
		return
	}
	c.Fprintf(Out, "%s (%d):\n", title, len(items))
	for _, item := range items {
		PathColor.Fprintf(Out, "  %s\n", item)
	}
}

// --- Summaries ---

func PrintValidation(ok bool, errs []model.ValidationError) {
	HeaderColor.Fprintln(Out, "--- Validation ---")
	if ok {
		SuccessColor.Fprintln(Out, "Change set is valid.")
		return
	}
	list(ErrorColor, "Validation errors", model.Messages(errs))
}

func PrintApplyResult(res model.ApplyResult) {
	HeaderColor.Fprintln(Out, "--- Apply Summary ---")
	if len(res.ChangedFiles) == 0 && len(res.Errors) == 0 {
		InfoColor.Fprintln(Out, "No files changed.")
	}
	paths(SuccessColor, "Changed files", res.ChangedFiles)
	list(WarningColor, "Warnings", res.Warnings)
	list(ErrorColor, "Errors", res.Errors)
}

func PrintRequirements(reqs model.PlanRequirements) {
	HeaderColor.Fprintln(Out, "--- Plan Requirements ---")
	list(InfoColor, "Functions", reqs.Functions)
	list(InfoColor, "CSS selectors", reqs.CSSSelectors)
	paths(InfoColor, "Test files", reqs.TestFiles)
	paths(InfoColor, "Required files", reqs.RequiredFiles)
}

func PrintCoverage(report model.CoverageReport) {
	HeaderColor.Fprintln(Out, "--- Coverage ---")
	if report.IsComplete {
		SuccessColor.Fprintln(Out, "Coverage complete.")
		return
	}
	ErrorColor.Fprintln(Out, "Coverage incomplete.")
	list(ErrorColor, "Missing functions", report.Missing.Functions)
	list(ErrorColor, "Missing CSS selectors", report.Missing.CSSSelectors)
	paths(ErrorColor, "Missing test files", report.Missing.TestFiles)
	paths(ErrorColor, "Missing files", report.Missing.RequiredFiles)
}

func PrintRunState(st model.RunState) {
	HeaderColor.Fprintf(Out, "--- Run %s ---\n", st.RunID)
	gate := func(name string, ok bool) {
		if ok {
			SuccessColor.Fprintf(Out, "  [pass] %s\n", name)
		} else {
			ErrorColor.Fprintf(Out, "  [fail] %s\n", name)
		}
	}
	gate("validated", st.Validated)
	gate("applied", st.AppliedOK)
	gate("coverage", st.CoverageOK)
	gate("criteria", st.CriteriaOK)

	paths(SuccessColor, "Changed files", st.ChangedFiles)
	list(WarningColor, "Warnings", st.Warnings)
	list(ErrorColor, "Errors", st.Errors)
	if st.Coverage != nil && !st.Coverage.IsComplete {
		PrintCoverage(*st.Coverage)
	}
	list(ErrorColor, "Unsatisfied criteria", st.UnsatisfiedCriteria)

	if st.CanCommit() {
		SuccessColor.Fprintln(Out, "Ready to commit.")
	} else {
		ErrorColor.Fprintln(Out, "Not ready to commit.")
	}
}

func PrintUndo(entry state.HistoryEntry) {
	HeaderColor.Fprintln(Out, "--- Revert Summary ---")
	if len(entry.Operations) == 0 {
		InfoColor.Fprintln(Out, "Nothing was reverted.")
		return
	}
	SuccessColor.Fprintf(Out, "Reverted run %s (%d file(s)):\n", entry.RunID, len(entry.Operations))
	for _, op := range entry.Operations {
		fmt.Fprintf(Out, "  %-6s ", op.Action)
		PathColor.Fprintf(Out, "%s\n", op.Path)
	}
}
