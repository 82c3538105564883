package fs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludeDirs are directory names never walked when building an
// allowlist: VCS metadata, build output and dependency caches.
var DefaultExcludeDirs = []string{
	".git", "node_modules", "dist", "build", ".next", ".nuxt",
	"__pycache__", ".pytest_cache", ".venv", "venv", "env",
	".crewai_cache", "coverage", ".coverage",
}

// AllowlistOptions controls which parts of the tree are indexed.
type AllowlistOptions struct {
	// ExcludeDirs are directory base names to skip. Dot directories are
	// always skipped.
	ExcludeDirs []string
	// ExcludeGlobs are doublestar patterns matched against slash-separated
	// paths relative to the root.
	ExcludeGlobs []string
}

// Allowlist is the set of files that exist in a repository checkout.
type Allowlist struct {
	files  map[string]struct{}
	folded map[string]string
}

// NewAllowlist builds an allowlist from slash-separated relative paths.
func NewAllowlist(paths ...string) Allowlist {
	a := Allowlist{
		files:  make(map[string]struct{}, len(paths)),
		folded: make(map[string]string, len(paths)),
	}
	for _, p := range paths {
		a.add(p)
	}
	return a
}

func (a Allowlist) add(p string) {
	p = filepath.ToSlash(p)
	a.files[p] = struct{}{}
	if _, ok := a.folded[strings.ToLower(p)]; !ok {
		a.folded[strings.ToLower(p)] = p
	}
}

// BuildAllowlist walks root and records every file outside excluded
// directories. A missing root yields an empty allowlist.
func BuildAllowlist(root string, opts AllowlistOptions) (Allowlist, error) {
	a := NewAllowlist()
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return a, nil
	}

	skip := make(map[string]struct{}, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		skip[d] = struct{}{}
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if ExcludedDir(d.Name(), skip) || matchesAny(opts.ExcludeGlobs, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAny(opts.ExcludeGlobs, rel) {
			return nil
		}
		a.add(rel)
		return nil
	})
	return a, err
}

// ExcludedDir reports whether a directory with the given base name is
// skipped by allowlist walks.
func ExcludedDir(name string, skip map[string]struct{}) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := skip[name]
	return ok
}

func matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Contains reports whether rel is a known file.
func (a Allowlist) Contains(rel string) bool {
	_, ok := a.files[filepath.ToSlash(rel)]
	return ok
}

// CloseMatch returns a known file that differs from rel only by case.
func (a Allowlist) CloseMatch(rel string) (string, bool) {
	match, ok := a.folded[strings.ToLower(filepath.ToSlash(rel))]
	return match, ok
}

// Len returns the number of known files.
func (a Allowlist) Len() int {
	return len(a.files)
}

// Files returns the known files, sorted.
func (a Allowlist) Files() []string {
	out := make([]string, 0, len(a.files))
	for f := range a.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
