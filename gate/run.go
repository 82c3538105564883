package gate

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"github.com/sokinpui/changegate/internal/parser"
	"github.com/sokinpui/changegate/internal/plan"
	"github.com/sokinpui/changegate/internal/schema"
	"github.com/sokinpui/changegate/model"
)

// RunOptions are the inputs of a gated run.
type RunOptions struct {
	// Text is the model output carrying the change set.
	Text string
	// PlanPath is the implementation plan coverage is checked against.
	// Empty skips the coverage gate.
	PlanPath string
	// Issue is the issue markdown acceptance criteria are read from. Its
	// first "# " heading is used as the title. Empty skips the criteria gate.
	Issue string
	// MinOverlap is the number of criterion words the plan must mention.
	// Zero uses plan.DefaultMinOverlap.
	MinOverlap int
}

// Run parses, validates and applies the change set in opts.Text, then checks
// coverage and acceptance criteria. Every stage must pass for the returned
// state to allow a commit; later stages are skipped once one fails.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (st model.RunState) {
	st = model.RunState{
		ChangedFiles: []string{},
		Errors:       []string{},
		Warnings:     []string{},
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("internal panic", "panic", r, "stack", string(debug.Stack()))
			st.Errors = append(st.Errors, fmt.Sprintf("internal panic: %v", r))
			st.AppliedOK = false
		}
		e.logger.Info("run finished",
			"run_id", st.RunID,
			"changed", len(st.ChangedFiles),
			"can_commit", st.CanCommit())
	}()

	raw := parser.ParseChangeSet(opts.Text)
	ok, verrs, err := e.Validate(raw)
	if err != nil {
		st.Errors = append(st.Errors, err.Error())
		return st
	}
	if !ok {
		st.Errors = append(st.Errors, model.Messages(verrs)...)
		return st
	}
	st.Validated = true

	if err := ctx.Err(); err != nil {
		st.Errors = append(st.Errors, err.Error())
		return st
	}

	set, err := schema.Decode(raw)
	if err != nil {
		st.Errors = append(st.Errors, err.Error())
		return st
	}
	result, runID, err := e.Apply(set)
	st.RunID = runID
	if st.RunID == "" {
		st.RunID = uuid.NewString()
	}
	st.ChangedFiles = result.ChangedFiles
	st.Errors = append(st.Errors, result.Errors...)
	st.Warnings = append(st.Warnings, result.Warnings...)
	if err != nil {
		st.Errors = append(st.Errors, err.Error())
		return st
	}
	st.AppliedOK = result.Success
	if !st.AppliedOK {
		return st
	}

	var planText string
	if opts.PlanPath != "" {
		report, err := e.Coverage(opts.PlanPath)
		if err != nil {
			st.Errors = append(st.Errors, err.Error())
			return st
		}
		st.Coverage = &report
		st.CoverageOK = report.IsComplete
		if !st.CoverageOK {
			return st
		}
		data, err := os.ReadFile(opts.PlanPath)
		if err != nil {
			st.Errors = append(st.Errors, fmt.Sprintf("failed to read plan: %v", err))
			return st
		}
		planText = string(data)
	} else {
		st.CoverageOK = true
	}

	if strings.TrimSpace(opts.Issue) == "" {
		st.CriteriaOK = true
		return st
	}
	title, body := SplitIssue(opts.Issue)
	criteria := plan.ExtractCriteria(body, title)
	minOverlap := opts.MinOverlap
	if minOverlap <= 0 {
		minOverlap = plan.DefaultMinOverlap
	}
	satisfied, unsatisfied := plan.CheckCriteria(criteria, planText, minOverlap)
	st.CriteriaOK = satisfied
	st.UnsatisfiedCriteria = unsatisfied
	return st
}

// Run is Engine.Run with default settings.
func Run(ctx context.Context, root string, opts RunOptions) model.RunState {
	return New(root, nil, nil).Run(ctx, opts)
}

// SplitIssue separates an issue document into its title, taken from the
// first "# " heading, and the remaining body.
func SplitIssue(issue string) (title, body string) {
	lines := strings.Split(issue, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			rest := append(append([]string(nil), lines[:i]...), lines[i+1:]...)
			return title, strings.Join(rest, "\n")
		}
	}
	return "", issue
}
