// Package gate is the library entry point of changegate: it validates and
// applies structured change sets, and checks a working tree against an
// implementation plan.
package gate

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/sokinpui/changegate/internal/config"
	"github.com/sokinpui/changegate/internal/coverage"
	"github.com/sokinpui/changegate/internal/fs"
	"github.com/sokinpui/changegate/internal/patcher"
	"github.com/sokinpui/changegate/internal/plan"
	"github.com/sokinpui/changegate/internal/schema"
	"github.com/sokinpui/changegate/internal/state"
	"github.com/sokinpui/changegate/model"
)

// Engine runs changegate operations against one working directory.
type Engine struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
}

// New creates an Engine for root. A nil cfg uses config.DefaultConfig and a
// nil logger uses slog.Default.
func New(root string, cfg *config.Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{root: root, cfg: cfg, logger: logger}
}

// Root is the working directory the engine operates on.
func (e *Engine) Root() string {
	return e.root
}

// Config returns the settings in use.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Allowlist walks the working directory for the files an existing-file
// operation may target. The history directory is never part of it.
func (e *Engine) Allowlist() (fs.Allowlist, error) {
	opts := e.cfg.AllowlistOptions()
	opts.ExcludeDirs = append(append([]string(nil), opts.ExcludeDirs...), filepath.Base(e.cfg.State.Dir))
	allow, err := fs.BuildAllowlist(e.root, opts)
	if err != nil {
		return allow, fmt.Errorf("failed to index %s: %w", e.root, err)
	}
	return allow, nil
}

// Validate checks raw in place (normalizing file to path) and returns every
// problem found. The error is only set when the tree could not be indexed.
func (e *Engine) Validate(raw model.RawChangeSet) (bool, []model.ValidationError, error) {
	allow, err := e.Allowlist()
	if err != nil {
		return false, nil, err
	}
	ok, errs := schema.NewValidator(e.root, allow, e.logger).Validate(raw)
	return ok, errs, nil
}

// Apply executes a validated change set. When history recording is on, the
// run is backed up and written to history, and its ID is returned.
func (e *Engine) Apply(set model.ChangeSet) (model.ApplyResult, string, error) {
	applier := patcher.New(e.root, patcher.Options{
		BraceScanner: e.cfg.Apply.BraceScanner,
		FuzzyEdits:   e.cfg.Apply.FuzzyEdits,
	}, e.logger)

	if !e.cfg.Apply.RecordHistory {
		return applier.Apply(set), "", nil
	}

	mgr, err := state.New(e.root, e.cfg.State.Dir)
	if err != nil {
		return model.ApplyResult{}, "", fmt.Errorf("failed to initialize state manager: %w", err)
	}
	rec := mgr.NewRecorder()
	result := applier.WithJournal(rec).Apply(set)
	if err := rec.Commit(); err != nil {
		return result, rec.RunID(), fmt.Errorf("failed to record history: %w", err)
	}
	return result, rec.RunID(), nil
}

// ValidateAndApply validates raw and, only when it is valid, decodes and
// applies it. Validation errors are returned as the apply errors.
func (e *Engine) ValidateAndApply(raw model.RawChangeSet) (model.ApplyResult, []model.ValidationError, string, error) {
	ok, verrs, err := e.Validate(raw)
	if err != nil {
		return model.ApplyResult{}, nil, "", err
	}
	if !ok {
		return model.ApplyResult{
			Success:      false,
			ChangedFiles: []string{},
			Errors:       model.Messages(verrs),
			Warnings:     []string{},
		}, verrs, "", nil
	}
	set, err := schema.Decode(raw)
	if err != nil {
		return model.ApplyResult{}, nil, "", err
	}
	result, runID, err := e.Apply(set)
	return result, nil, runID, err
}

// Requirements extracts what the plan at planPath promises.
func (e *Engine) Requirements(planPath string) (model.PlanRequirements, error) {
	return plan.ExtractRequirementsFile(planPath)
}

// Checker returns the coverage checker for the working directory.
func (e *Engine) Checker() *coverage.Checker {
	return coverage.NewChecker(e.root, e.cfg.CoverageOptions(), e.logger)
}

// Coverage compares the plan at planPath with the working directory.
func (e *Engine) Coverage(planPath string) (model.CoverageReport, error) {
	return e.Checker().CheckPlan(planPath)
}

// Undo reverts the latest recorded run.
func (e *Engine) Undo() (state.HistoryEntry, error) {
	mgr, err := state.New(e.root, e.cfg.State.Dir)
	if err != nil {
		return state.HistoryEntry{}, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	return mgr.Undo()
}
