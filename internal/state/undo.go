package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sokinpui/changegate/internal/fs"
	"github.com/sokinpui/changegate/model"
)

// ConflictError lists files that changed after the run being undone.
type ConflictError struct {
	Paths []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("files changed since the last run, refusing to undo: %v", e.Paths)
}

// Undo reverts the latest recorded run. Every file is checked before any is
// touched: if one was modified since the run, nothing is reverted and a
// *ConflictError is returned.
func (m *Manager) Undo() (HistoryEntry, error) {
	entry, ok := m.Latest()
	if !ok {
		return HistoryEntry{}, ErrNothingToUndo
	}

	var conflicts []string
	for _, op := range entry.Operations {
		if !m.canRevert(entry.RunID, op) {
			conflicts = append(conflicts, op.Path)
		}
	}
	if len(conflicts) > 0 {
		return entry, &ConflictError{Paths: conflicts}
	}

	for _, op := range entry.Operations {
		if err := m.revert(entry.RunID, op); err != nil {
			return entry, fmt.Errorf("failed to revert %s: %w", op.Path, err)
		}
	}

	m.state.CurrentIndex--
	if err := m.save(); err != nil {
		return entry, err
	}
	if err := os.RemoveAll(filepath.Join(m.StateDir, TrashDir, entry.RunID)); err != nil {
		return entry, fmt.Errorf("failed to remove backups of run %s: %w", entry.RunID, err)
	}
	return entry, nil
}

func (m *Manager) canRevert(runID string, op Operation) bool {
	abs := filepath.Join(m.root, filepath.FromSlash(op.Path))
	switch op.Action {
	case model.ActionDelete:
		if fs.Exists(abs) {
			return false
		}
		hash, err := fs.GetFileSHA256(m.trashPath(runID, op.Path))
		return err == nil && hash == op.ContentHash
	case model.ActionModify:
		if !fs.Exists(m.trashPath(runID, op.Path)) {
			return false
		}
		fallthrough
	default:
		hash, err := fs.GetFileSHA256(abs)
		return err == nil && hash == op.ContentHash
	}
}

func (m *Manager) revert(runID string, op Operation) error {
	abs := filepath.Join(m.root, filepath.FromSlash(op.Path))
	switch op.Action {
	case model.ActionCreate:
		if err := os.Remove(abs); err != nil {
			return err
		}
		fs.RemoveEmptyParents(filepath.Dir(abs), filepath.Clean(m.root))
		return nil
	case model.ActionModify, model.ActionDelete:
		return fs.CopyFile(m.trashPath(runID, op.Path), abs)
	default:
		return fmt.Errorf("unknown action %q", op.Action)
	}
}
