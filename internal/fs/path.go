package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrAbsolutePath is returned for paths that are not relative.
	ErrAbsolutePath = errors.New("absolute path")
	// ErrTraversal is returned for paths with a ".." segment.
	ErrTraversal = errors.New("path traversal")
	// ErrEscapesRoot is returned when a path resolves outside the root.
	ErrEscapesRoot = errors.New("path escapes root")
)

// PathError describes why a candidate path was rejected.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	switch {
	case errors.Is(e.Err, ErrAbsolutePath):
		return fmt.Sprintf("Absolute path rejected: '%s'. Use relative paths only.", e.Path)
	case errors.Is(e.Err, ErrTraversal):
		return fmt.Sprintf("Path traversal rejected: '%s'. Paths containing '..' are not allowed.", e.Path)
	case errors.Is(e.Err, ErrEscapesRoot):
		return fmt.Sprintf("Path escapes repository root: '%s' resolves outside repo.", e.Path)
	default:
		return fmt.Sprintf("Invalid path '%s': %v", e.Path, e.Err)
	}
}

func (e *PathError) Unwrap() error { return e.Err }

// CheckPath rejects a relative path that is absolute, contains a ".."
// segment, or resolves (after following symlinks) outside root. Checks run
// in that order and the first failure wins.
func CheckPath(root, path string) error {
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") || strings.HasPrefix(path, `\`) {
		return &PathError{Path: path, Err: ErrAbsolutePath}
	}
	for _, segment := range strings.FieldsFunc(path, isSeparator) {
		if segment == ".." {
			return &PathError{Path: path, Err: ErrTraversal}
		}
	}
	if _, err := resolveUnder(root, path); err != nil {
		return &PathError{Path: path, Err: err}
	}
	return nil
}

// SafeJoin returns the absolute location of path under root after running
// CheckPath. The returned path is the lexical join, not the symlink target.
func SafeJoin(root, path string) (string, error) {
	if err := CheckPath(root, path); err != nil {
		return "", err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}
	return filepath.Join(absRoot, filepath.FromSlash(path)), nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// resolveUnder resolves root/path to a symlink-free absolute path and
// verifies it stays inside the resolved root.
func resolveUnder(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}

	target, err := evalExisting(filepath.Join(absRoot, filepath.FromSlash(path)))
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(realRoot, target)
	if err != nil {
		return "", ErrEscapesRoot
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrEscapesRoot
	}
	return target, nil
}

// evalExisting follows symlinks on the longest existing prefix of p and
// re-attaches the components that do not exist yet.
func evalExisting(p string) (string, error) {
	var rest []string
	cur := p
	for {
		if _, err := os.Lstat(cur); err == nil {
			real, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			return filepath.Join(append([]string{real}, rest...)...), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}
