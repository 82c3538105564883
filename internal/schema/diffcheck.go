package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// diffMarkers are the unified-diff fragments that mark a content field as a
// patch rather than file content.
var diffMarkers = []string{"diff --git", "--- a/", "+++ b/", "@@"}

// contentKeys are the only keys scanned for diff markers.
var contentKeys = []string{"content", "before", "after"}

// checkDiffMarkers returns a rejection message when any content-bearing
// field of change looks like a unified diff.
func checkDiffMarkers(change map[string]any) (string, bool) {
	for _, key := range contentKeys {
		text, ok := change[key].(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(text)
		for _, marker := range diffMarkers {
			if !strings.Contains(lower, marker) {
				continue
			}
			msg := fmt.Sprintf("Contains diff-like content in content field (rejecting - use structured format only). Found marker: '%s'", marker)
			if files := diffTargets(text); len(files) > 0 {
				msg += fmt.Sprintf(" (diff touches: %s)", strings.Join(files, ", "))
			}
			return msg, true
		}
	}
	return "", false
}

// diffTargets names the files a stray patch would touch, when it parses.
func diffTargets(text string) []string {
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(text))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	for _, fd := range fileDiffs {
		name := fd.NewName
		if name == "" || name == "/dev/null" {
			name = fd.OrigName
		}
		name = strings.TrimPrefix(strings.TrimPrefix(name, "b/"), "a/")
		if name == "" || name == "/dev/null" {
			continue
		}
		seen[name] = struct{}{}
	}

	files := make([]string, 0, len(seen))
	for name := range seen {
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}
