// Package patcher applies validated change sets to a working tree.
package patcher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	cgfs "github.com/sokinpui/changegate/internal/fs"
	"github.com/sokinpui/changegate/model"
)

// Options selects optional matching behavior.
type Options struct {
	// BraceScanner bounds upserted blocks by brace depth instead of the
	// single-level pattern.
	BraceScanner bool
	// FuzzyEdits adds a whitespace-normalized line matcher after the exact
	// and regex edit matchers.
	FuzzyEdits bool
}

// Journal observes mutations so a run can be undone. Snapshot is called
// before an existing file is first changed; Record after each mutation.
type Journal interface {
	Snapshot(path string) error
	Record(path string, action model.FileAction)
}

// Applier executes change sets against a root directory, sequentially and
// in order.
type Applier struct {
	root     string
	opts     Options
	logger   *slog.Logger
	journal  Journal
	matchers []matcher
}

// New creates an Applier rooted at root.
func New(root string, opts Options, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	matchers := []matcher{exactMatcher{}, regexMatcher{}}
	if opts.FuzzyEdits {
		matchers = append(matchers, lineBlockMatcher{})
	}
	return &Applier{root: root, opts: opts, logger: logger, matchers: matchers}
}

// WithJournal attaches a journal that sees every mutation.
func (a *Applier) WithJournal(j Journal) *Applier {
	a.journal = j
	return a
}

type runResult struct {
	changed  map[string]struct{}
	errors   []string
	warnings []string
}

// Apply runs every change in order. Failures are collected per change and
// never stop later changes; Success is true iff no errors were recorded.
func (a *Applier) Apply(set model.ChangeSet) model.ApplyResult {
	res := &runResult{changed: make(map[string]struct{})}
	for _, c := range set.Changes {
		a.applyOne(res, c)
	}

	changed := make([]string, 0, len(res.changed))
	for p := range res.changed {
		changed = append(changed, p)
	}
	sort.Strings(changed)

	for _, w := range res.warnings {
		a.logger.Warn(w)
	}

	return model.ApplyResult{
		Success:      len(res.errors) == 0,
		ChangedFiles: changed,
		Errors:       nonNil(res.errors),
		Warnings:     nonNil(res.warnings),
	}
}

func (a *Applier) applyOne(res *runResult, c model.Change) {
	path := filepath.ToSlash(filepath.Clean(c.Target()))
	defer func() {
		if p := recover(); p != nil {
			res.errors = append(res.errors, fmt.Sprintf("Error applying change to %s: %v", path, p))
		}
	}()

	abs, err := cgfs.SafeJoin(a.root, path)
	if err != nil {
		res.errors = append(res.errors, err.Error())
		return
	}

	current, exists, err := readCurrent(abs)
	if err != nil {
		res.errors = append(res.errors, fmt.Sprintf("Error applying change to %s: %v", path, err))
		return
	}

	out := a.transform(c, current, exists)
	res.warnings = append(res.warnings, out.warnings...)
	for _, e := range out.errs {
		res.errors = append(res.errors, e.Error())
	}
	if !out.write && !out.remove {
		if len(out.errs) == 0 {
			a.logger.Debug("no changes needed", "path", path, "operation", c.Operation())
		}
		return
	}

	if err := a.commit(path, abs, exists, out); err != nil {
		res.errors = append(res.errors, fmt.Sprintf("Error applying change to %s: %v", path, err))
		return
	}
	res.changed[path] = struct{}{}
	a.logger.Info(out.verb, "path", path, "operation", c.Operation())
}

func (a *Applier) transform(c model.Change, current string, exists bool) outcome {
	switch c := c.(type) {
	case model.Create:
		return createFile(c, current, exists)
	case model.Replace:
		return replaceFile(c, current, exists)
	case model.Delete:
		return deleteFile(c, exists)
	case model.Edit:
		return editFile(c, current, exists, a.matchers)
	case model.UpsertFunction:
		return upsertFunction(c, current, exists, a.opts.BraceScanner)
	case model.UpsertCSSSelector:
		return upsertCSSSelector(c, current, exists, a.opts.BraceScanner)
	case model.InsertAtAnchor:
		return insertAtAnchor(c, current, exists)
	case model.AppendIfMissing:
		return appendIfMissing(c, current, exists)
	default:
		return failed(fmt.Errorf("Unknown operation '%s' for %s", c.Operation(), c.Target()))
	}
}

func (a *Applier) commit(path, abs string, exists bool, out outcome) error {
	if exists && a.journal != nil {
		if err := a.journal.Snapshot(path); err != nil {
			return fmt.Errorf("failed to back up: %w", err)
		}
	}

	action := model.ActionModify
	switch {
	case out.remove:
		action = model.ActionDelete
		if err := os.Remove(abs); err != nil {
			return err
		}
	case !exists:
		action = model.ActionCreate
		if err := cgfs.WriteFile(abs, []byte(out.content)); err != nil {
			return err
		}
	default:
		if err := cgfs.WriteFile(abs, []byte(out.content)); err != nil {
			return err
		}
	}

	if a.journal != nil {
		a.journal.Record(path, action)
	}
	return nil
}

// readCurrent returns the file's content and whether it exists.
func readCurrent(abs string) (string, bool, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
