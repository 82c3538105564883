package state

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/sokinpui/changegate/internal/fs"
	"github.com/sokinpui/changegate/model"
)

// Recorder collects the effects of one apply run. It backs up each
// existing file before its first change so the run can be undone.
type Recorder struct {
	manager  *Manager
	runID    string
	snapshot map[string]bool
	actions  map[string]model.FileAction
}

// NewRecorder starts recording a run with a fresh ID.
func (m *Manager) NewRecorder() *Recorder {
	return &Recorder{
		manager:  m,
		runID:    uuid.NewString(),
		snapshot: make(map[string]bool),
		actions:  make(map[string]model.FileAction),
	}
}

// RunID identifies the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// Snapshot copies the current content of path into the run's trash once.
func (r *Recorder) Snapshot(path string) error {
	if r.snapshot[path] {
		return nil
	}
	src := filepath.Join(r.manager.root, filepath.FromSlash(path))
	if err := fs.CopyFile(src, r.manager.trashPath(r.runID, path)); err != nil {
		return err
	}
	r.snapshot[path] = true
	return nil
}

// Record folds a mutation into the file's net effect for the run.
func (r *Recorder) Record(path string, action model.FileAction) {
	prev, seen := r.actions[path]
	if !seen {
		r.actions[path] = action
		return
	}

	switch {
	case prev == model.ActionCreate && action == model.ActionDelete:
		delete(r.actions, path)
	case prev == model.ActionCreate:
		// Still a new file.
	case prev == model.ActionDelete && action == model.ActionCreate:
		r.actions[path] = model.ActionModify
	default:
		r.actions[path] = action
	}
}

// Operations returns the recorded effects sorted by path, with content
// hashes filled in.
func (r *Recorder) Operations() ([]Operation, error) {
	ops := make([]Operation, 0, len(r.actions))
	for path, action := range r.actions {
		hashPath := filepath.Join(r.manager.root, filepath.FromSlash(path))
		if action == model.ActionDelete {
			hashPath = r.manager.trashPath(r.runID, path)
		}
		hash, err := fs.GetFileSHA256(hashPath)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", path, err)
		}
		ops = append(ops, Operation{Path: path, Action: action, ContentHash: hash})
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Path < ops[j].Path
	})
	return ops, nil
}

// Commit writes the run to history. Runs that changed nothing leave no
// entry.
func (r *Recorder) Commit() error {
	ops, err := r.Operations()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	return r.manager.Write(r.runID, ops)
}
