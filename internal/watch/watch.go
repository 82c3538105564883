// Package watch re-runs checks when files under a root change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	cgfs "github.com/sokinpui/changegate/internal/fs"
	"github.com/sokinpui/changegate/model"
)

// DefaultDebounce is how long the tree must be quiet before a burst of
// events is reported.
const DefaultDebounce = 200 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Root is the directory watched recursively.
	Root string
	// ExcludeDirs are directory base names never watched. Dot directories
	// are always skipped.
	ExcludeDirs []string
	Debounce    time.Duration
	Logger      *slog.Logger
}

// Watcher reports debounced batches of changed paths under a root.
type Watcher struct {
	root     string
	skip     map[string]struct{}
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
}

// New registers watches on root and every directory below it that is not
// excluded.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	skip := make(map[string]struct{}, len(cfg.ExcludeDirs))
	for _, d := range cfg.ExcludeDirs {
		skip[d] = struct{}{}
	}

	w := &Watcher{
		root:     cfg.Root,
		skip:     skip,
		debounce: debounce,
		fsw:      fsw,
		logger:   logger,
	}
	if err := w.addRecursive(cfg.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && cgfs.ExcludedDir(d.Name(), w.skip) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	dir := filepath.Dir(rel)
	for dir != "." && dir != string(filepath.Separator) {
		if cgfs.ExcludedDir(filepath.Base(dir), w.skip) {
			return true
		}
		dir = filepath.Dir(dir)
	}
	return false
}

// Run calls onChange with the sorted, root-relative paths touched by each
// debounced burst of events. It returns nil when onChange reports done,
// and the context error when ctx ends first.
func (w *Watcher) Run(ctx context.Context, onChange func(changed []string) (done bool)) error {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.excluded(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if cgfs.ExcludedDir(info.Name(), w.skip) {
						continue
					}
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			rel, err := filepath.Rel(w.root, event.Name)
			if err != nil {
				continue
			}
			pending[filepath.ToSlash(rel)] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			w.logger.Debug("files changed", "count", len(changed))
			if onChange(changed) {
				return nil
			}
		}
	}
}

// Coverage checks once, then again after every batch of changes, passing
// each report to report. It returns the first complete report, or the last
// one with the context error when ctx ends first.
func Coverage(ctx context.Context, w *Watcher, check func() (model.CoverageReport, error), report func(model.CoverageReport)) (model.CoverageReport, error) {
	last, err := check()
	if err != nil {
		return last, err
	}
	report(last)
	if last.IsComplete {
		return last, nil
	}

	var checkErr error
	err = w.Run(ctx, func([]string) bool {
		r, err := check()
		if err != nil {
			checkErr = err
			return true
		}
		last = r
		report(r)
		return r.IsComplete
	})
	if checkErr != nil {
		return last, checkErr
	}
	return last, err
}
