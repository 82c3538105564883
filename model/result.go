package model

import "fmt"

// ErrorKind classifies validation and apply problems.
type ErrorKind string

const (
	KindSchema       ErrorKind = "schema"
	KindPathSafety   ErrorKind = "path_safety"
	KindReference    ErrorKind = "reference"
	KindApplyFailure ErrorKind = "apply_failure"
)

// SetLevel is the Index of errors that concern the change set as a whole.
const SetLevel = -1

// ValidationError is a single problem found while validating a change set.
type ValidationError struct {
	Index   int       `json:"index"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Index == SetLevel {
		return e.Message
	}
	return fmt.Sprintf("Change %d: %s", e.Index, e.Message)
}

// Messages flattens validation errors into display strings.
func Messages(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

// ApplyResult reports the outcome of applying a change set.
type ApplyResult struct {
	Success      bool     `json:"success"`
	ChangedFiles []string `json:"changed_files"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
}

// PlanRequirements are the items an implementation plan promised.
type PlanRequirements struct {
	Functions     []string `json:"functions"`
	CSSSelectors  []string `json:"css_selectors"`
	TestFiles     []string `json:"test_files"`
	RequiredFiles []string `json:"required_files"`
}

// Missing lists requirement items not found in the working directory.
type Missing struct {
	Functions     []string `json:"functions"`
	CSSSelectors  []string `json:"css_selectors"`
	TestFiles     []string `json:"test_files"`
	RequiredFiles []string `json:"required_files"`
}

// Empty reports whether nothing is missing.
func (m Missing) Empty() bool {
	return len(m.Functions) == 0 && len(m.CSSSelectors) == 0 &&
		len(m.TestFiles) == 0 && len(m.RequiredFiles) == 0
}

// CoverageReport is the verdict of comparing plan requirements with a tree.
type CoverageReport struct {
	IsComplete bool    `json:"is_complete"`
	Missing    Missing `json:"missing"`
}

// RunState is the single source of truth for a gated run.
type RunState struct {
	RunID               string          `json:"run_id"`
	Validated           bool            `json:"validated"`
	AppliedOK           bool            `json:"applied_ok"`
	CoverageOK          bool            `json:"coverage_ok"`
	CriteriaOK          bool            `json:"criteria_ok"`
	ChangedFiles        []string        `json:"changed_files"`
	Errors              []string        `json:"errors"`
	Warnings            []string        `json:"warnings"`
	Coverage            *CoverageReport `json:"coverage,omitempty"`
	UnsatisfiedCriteria []string        `json:"unsatisfied_criteria,omitempty"`
}

// CanCommit is true only when every gate passed.
func (s RunState) CanCommit() bool {
	return s.Validated && s.AppliedOK && s.CoverageOK && s.CriteriaOK
}

// FileAction is the effect one apply run had on a single file.
type FileAction string

const (
	ActionCreate FileAction = "create"
	ActionModify FileAction = "modify"
	ActionDelete FileAction = "delete"
)
