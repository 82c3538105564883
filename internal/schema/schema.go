// Package schema normalizes and validates loosely typed change sets before
// anything touches the working tree.
package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sokinpui/changegate/internal/fs"
	"github.com/sokinpui/changegate/model"
)

// ErrMissingPath is returned by Normalize when a change names no file.
var ErrMissingPath = errors.New("Missing 'path' or 'file' field")

// backendHints are path fragments that usually mean the generator invented
// a server-side file the repository does not have.
var backendHints = []string{"api/", "routes.js", "controllers/", "models/", "backend/", "server/"}

// Normalize copies "file" into "path" when needed and always removes
// "file", mutating change in place. It returns the normalized path.
func Normalize(change map[string]any) (string, error) {
	_, hasPath := change["path"]
	_, hasFile := change["file"]
	if !hasPath && !hasFile {
		return "", ErrMissingPath
	}

	path, _ := change["path"].(string)
	if path == "" {
		path, _ = change["file"].(string)
	}
	change["path"] = path
	delete(change, "file")

	if path == "" {
		return "", ErrMissingPath
	}
	return path, nil
}

// Validator checks change sets against a working directory. The allowlist
// is supplied by the caller so validation stays a function of its inputs.
type Validator struct {
	root      string
	allowlist fs.Allowlist
	logger    *slog.Logger
}

// NewValidator creates a Validator for root.
func NewValidator(root string, allowlist fs.Allowlist, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{root: root, allowlist: allowlist, logger: logger}
}

// Validate normalizes raw in place and reports every problem found. A
// change that fails one stage is not checked further; other changes are.
func (v *Validator) Validate(raw model.RawChangeSet) (bool, []model.ValidationError) {
	if msg, ok := raw.ErrorMessage(); ok {
		return false, []model.ValidationError{setError(msg)}
	}

	rawChanges, ok := raw["changes"]
	if !ok {
		return false, []model.ValidationError{setError("Missing 'changes' key in structured changes")}
	}
	changes, ok := rawChanges.([]any)
	if !ok {
		return false, []model.ValidationError{setError("'changes' must be a list")}
	}

	var errs []model.ValidationError
	for i, item := range changes {
		change, ok := item.(map[string]any)
		if !ok {
			errs = append(errs, model.ValidationError{Index: i, Kind: model.KindSchema, Message: "Change must be an object"})
			continue
		}
		errs = append(errs, v.validateChange(i, change)...)
	}

	v.logger.Info("validated change set", "changes", len(changes), "errors", len(errs))
	return len(errs) == 0, errs
}

func (v *Validator) validateChange(i int, change map[string]any) []model.ValidationError {
	schemaErr := func(msg string) []model.ValidationError {
		return []model.ValidationError{{Index: i, Kind: model.KindSchema, Message: msg}}
	}

	path, err := Normalize(change)
	if err != nil {
		return schemaErr(err.Error())
	}

	rawOp, ok := change["operation"]
	if !ok {
		return schemaErr("Missing 'operation'")
	}

	if err := fs.CheckPath(v.root, path); err != nil {
		return []model.ValidationError{{Index: i, Kind: model.KindPathSafety, Message: err.Error()}}
	}

	if msg, found := checkDiffMarkers(change); found {
		return schemaErr(msg)
	}

	name, _ := rawOp.(string)
	op, ok := model.ParseOperation(name)
	if !ok {
		return schemaErr(fmt.Sprintf("Invalid operation '%v' (must be one of %v)", rawOp, model.OperationNames()))
	}
	change["operation"] = string(op)

	f, err := decodeFields(change, op)
	if err != nil {
		return schemaErr(err.Error())
	}
	if msgs := requiredFieldErrors(f); len(msgs) > 0 {
		out := make([]model.ValidationError, len(msgs))
		for j, msg := range msgs {
			out[j] = model.ValidationError{Index: i, Kind: model.KindSchema, Message: msg}
		}
		return out
	}

	if op.RequiresExistingFile() {
		if msg, missing := v.checkExisting(path, op); missing {
			return []model.ValidationError{{Index: i, Kind: model.KindReference, Message: msg}}
		}
	}
	return nil
}

// checkExisting reports a message when path is neither on disk nor in the
// allowlist.
func (v *Validator) checkExisting(path string, op model.Operation) (string, bool) {
	normalized := filepath.ToSlash(filepath.Clean(path))
	if v.allowlist.Contains(normalized) {
		return "", false
	}
	if _, err := os.Stat(filepath.Join(v.root, filepath.FromSlash(normalized))); err == nil {
		return "", false
	}

	if similar, ok := v.allowlist.CloseMatch(normalized); ok {
		return fmt.Sprintf("File '%s' not found, but similar file exists: %s", path, similar), true
	}

	lower := strings.ToLower(normalized)
	for _, hint := range backendHints {
		if strings.Contains(lower, hint) {
			return fmt.Sprintf("File '%s' does not exist and appears to be a backend/API file not in this repo. Only modify existing files in this repo.", path), true
		}
	}
	return fmt.Sprintf("File '%s' does not exist (for %s operation). Only modify existing files in this repo.", path, op), true
}

// Decode converts a validated raw change set into its typed form. It only
// fails on input Validate would have rejected.
func Decode(raw model.RawChangeSet) (model.ChangeSet, error) {
	changes, ok := raw["changes"].([]any)
	if !ok {
		return model.ChangeSet{}, errors.New("change set has no 'changes' list")
	}

	set := model.ChangeSet{Changes: make([]model.Change, 0, len(changes))}
	for i, item := range changes {
		change, ok := item.(map[string]any)
		if !ok {
			return model.ChangeSet{}, fmt.Errorf("change %d is not an object", i)
		}
		path, err := Normalize(change)
		if err != nil {
			return model.ChangeSet{}, fmt.Errorf("change %d: %w", i, err)
		}
		name, _ := change["operation"].(string)
		op, ok := model.ParseOperation(name)
		if !ok {
			return model.ChangeSet{}, fmt.Errorf("change %d: unknown operation %q", i, name)
		}
		f, err := decodeFields(change, op)
		if err != nil {
			return model.ChangeSet{}, fmt.Errorf("change %d: %w", i, err)
		}
		set.Changes = append(set.Changes, toChange(path, f))
	}
	return set, nil
}

func setError(msg string) model.ValidationError {
	return model.ValidationError{Index: model.SetLevel, Kind: model.KindSchema, Message: msg}
}
