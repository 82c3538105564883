// Package state records apply runs so they can be undone.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sokinpui/changegate/model"
)

const (
	DefaultDirName = ".changegate"
	stateFileName  = "history"
	TrashDir       = "trash"
)

// ErrNothingToUndo is returned by Undo when no recorded run remains.
var ErrNothingToUndo = errors.New("nothing to undo")

// Operation is the recorded effect of one run on one file.
type Operation struct {
	Path        string           `json:"path"`
	Action      model.FileAction `json:"action"`
	ContentHash string           `json:"content_hash"` // SHA256 of the file after the run; of the backup for deletes
}

// HistoryEntry represents one complete apply run.
type HistoryEntry struct {
	Timestamp  int64       `json:"timestamp"`
	RunID      string      `json:"run_id"`
	Operations []Operation `json:"operations"`
}

// State represents the entire state file.
type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Manager handles the lifecycle of the state file under a root.
type Manager struct {
	root      string
	statePath string
	state     *State
	StateDir  string
}

// New loads the state kept in dir (relative to root). The directory is
// created on first write.
func New(root, dir string) (*Manager, error) {
	if dir == "" {
		dir = DefaultDirName
	}
	stateDir := filepath.Join(root, dir)
	m := &Manager{
		root:      root,
		statePath: filepath.Join(stateDir, stateFileName),
		StateDir:  stateDir,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	m.state = &State{CurrentIndex: -1}

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		return nil
	}

	// First block is current index
	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("invalid state file: could not parse current index: %w", err)
	}
	m.state.CurrentIndex = index

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		header := strings.Fields(lines[0])
		if len(header) == 0 {
			return fmt.Errorf("invalid state file: empty entry header")
		}
		ts, err := strconv.ParseInt(header[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid state file: could not parse timestamp from '%s': %w", header[0], err)
		}
		entry := HistoryEntry{Timestamp: ts}
		if len(header) > 1 {
			entry.RunID = header[1]
		}

		opLines := lines[1:]
		if len(opLines)%3 != 0 {
			return fmt.Errorf("invalid state file: incomplete operation record")
		}
		for i := 0; i < len(opLines); i += 3 {
			entry.Operations = append(entry.Operations, Operation{
				Action:      model.FileAction(opLines[i]),
				Path:        opLines[i+1],
				ContentHash: opLines[i+2],
			})
		}
		m.state.History = append(m.state.History, entry)
	}

	if m.state.CurrentIndex >= len(m.state.History) {
		return fmt.Errorf("invalid state file: index %d out of range", m.state.CurrentIndex)
	}
	return nil
}

func (m *Manager) save() error {
	blocks := []string{strconv.Itoa(m.state.CurrentIndex)}

	for _, entry := range m.state.History {
		var b strings.Builder
		b.WriteString(strconv.FormatInt(entry.Timestamp, 10))
		if entry.RunID != "" {
			b.WriteString(" " + entry.RunID)
		}
		for _, op := range entry.Operations {
			b.WriteString("\n" + string(op.Action))
			b.WriteString("\n" + op.Path)
			b.WriteString("\n" + op.ContentHash)
		}
		blocks = append(blocks, b.String())
	}

	if err := os.MkdirAll(m.StateDir, 0755); err != nil {
		return fmt.Errorf("could not create state directory: %w", err)
	}
	if err := os.WriteFile(m.statePath, []byte(strings.Join(blocks, "\n\n")+"\n"), 0644); err != nil {
		return fmt.Errorf("could not write state file: %w", err)
	}
	return nil
}

// Write adds a new run to the history, discarding any entries past the
// current index.
func (m *Manager) Write(runID string, operations []Operation) error {
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}

	m.state.History = append(m.state.History, HistoryEntry{
		Timestamp:  time.Now().UTC().Unix(),
		RunID:      runID,
		Operations: operations,
	})
	m.state.CurrentIndex++
	return m.save()
}

// Latest returns the entry Undo would revert.
func (m *Manager) Latest() (HistoryEntry, bool) {
	if m.state.CurrentIndex < 0 {
		return HistoryEntry{}, false
	}
	return m.state.History[m.state.CurrentIndex], true
}

// History returns every recorded entry, oldest first.
func (m *Manager) History() []HistoryEntry {
	return m.state.History
}

func (m *Manager) trashPath(runID, path string) string {
	return filepath.Join(m.StateDir, TrashDir, runID, filepath.FromSlash(path))
}
