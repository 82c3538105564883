package ui

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/changegate/internal/state"
	"github.com/sokinpui/changegate/model"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevErr, prevNoColor := Out, Err, color.NoColor
	Out, Err, color.NoColor = &buf, &buf, true
	t.Cleanup(func() { Out, Err, color.NoColor = prevOut, prevErr, prevNoColor })
	return &buf
}

func TestPrintApplyResult(t *testing.T) {
	buf := capture(t)
	PrintApplyResult(model.ApplyResult{
		Success:      false,
		ChangedFiles: []string{"app.js"},
		Warnings:     []string{"Used regex fallback for edit in app.js"},
		Errors:       []string{"File not found for edit: x.js"},
	})

	out := buf.String()
	assert.Contains(t, out, "Changed files (1):")
	assert.Contains(t, out, "  app.js")
	assert.Contains(t, out, "Warnings (1):")
	assert.Contains(t, out, "  - File not found for edit: x.js")
	assert.NotContains(t, out, "No files changed.")
}

func TestPrintApplyResultNoop(t *testing.T) {
	buf := capture(t)
	PrintApplyResult(model.ApplyResult{Success: true})
	assert.Contains(t, buf.String(), "No files changed.")
}

func TestPrintValidation(t *testing.T) {
	buf := capture(t)
	PrintValidation(false, []model.ValidationError{
		{Index: 0, Kind: model.KindPathSafety, Message: "Path traversal rejected: '../x'."},
		{Index: model.SetLevel, Kind: model.KindSchema, Message: "Missing 'changes' key in structured changes"},
	})
	out := buf.String()
	assert.Contains(t, out, "Validation errors (2):")
	assert.Contains(t, out, "Change 0: Path traversal rejected")
	assert.Contains(t, out, "  - Missing 'changes' key")
}

func TestPrintCoverage(t *testing.T) {
	buf := capture(t)
	PrintCoverage(model.CoverageReport{Missing: model.Missing{
		Functions:    []string{"openModal"},
		CSSSelectors: []string{".modal"},
	}})
	out := buf.String()
	assert.Contains(t, out, "Coverage incomplete.")
	assert.Contains(t, out, "Missing functions (1):")
	assert.Contains(t, out, "  - .modal")
}

func TestPrintRunState(t *testing.T) {
	buf := capture(t)
	PrintRunState(model.RunState{RunID: "r1", Validated: true, AppliedOK: true, CoverageOK: true, CriteriaOK: true})
	out := buf.String()
	assert.Contains(t, out, "[pass] coverage")
	assert.Contains(t, out, "Ready to commit.")

	buf.Reset()
	PrintRunState(model.RunState{RunID: "r2", Validated: true, UnsatisfiedCriteria: []string{"Toggle persists"}})
	out = buf.String()
	assert.Contains(t, out, "[fail] applied")
	assert.Contains(t, out, "Unsatisfied criteria (1):")
	assert.Contains(t, out, "Not ready to commit.")
}

func TestPrintUndo(t *testing.T) {
	buf := capture(t)
	PrintUndo(state.HistoryEntry{RunID: "abc", Operations: []state.Operation{
		{Path: "app.js", Action: model.ActionModify},
	}})
	assert.Contains(t, buf.String(), "Reverted run abc (1 file(s)):")
	assert.Contains(t, buf.String(), "modify app.js")
}

func TestJSON(t *testing.T) {
	buf := capture(t)
	require.NoError(t, JSON(model.CoverageReport{IsComplete: true, Missing: model.Missing{Functions: []string{}}}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, true, got["is_complete"])
}
