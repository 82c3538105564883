package patcher

import (
	"fmt"
	"regexp"
	"strings"
)

// span is a half-open byte range [start, end) in file content.
type span struct {
	start, end int
}

// matcher locates the first occurrence of a search text in content.
type matcher interface {
	name() string
	find(content, needle string) (span, bool)
}

// exactMatcher is a plain first-occurrence substring search.
type exactMatcher struct{}

func (exactMatcher) name() string { return "exact" }

func (exactMatcher) find(content, needle string) (span, bool) {
	idx := strings.Index(content, needle)
	if idx < 0 {
		return span{}, false
	}
	return span{idx, idx + len(needle)}, true
}

// regexMatcher searches for the escaped literal in multi-line,
// dot-matches-all mode.
type regexMatcher struct{}

func (regexMatcher) name() string { return "regex" }

func (regexMatcher) find(content, needle string) (span, bool) {
	re, err := regexp.Compile(`(?s)(?m)` + regexp.QuoteMeta(needle))
	if err != nil {
		return span{}, false
	}
	loc := re.FindStringIndex(content)
	if loc == nil {
		return span{}, false
	}
	return span{loc[0], loc[1]}, true
}

// lineBlockMatcher matches the needle's non-blank lines against the
// content's non-blank lines with all whitespace runs collapsed. The span
// covers whole lines, from the first matched line's start to the last
// matched line's end (excluding its newline).
type lineBlockMatcher struct{}

func (lineBlockMatcher) name() string { return "whitespace-normalized" }

func (lineBlockMatcher) find(content, needle string) (span, bool) {
	var block []string
	for _, line := range strings.Split(needle, "\n") {
		if n := normalizeLineForMatching(line); n != "" {
			block = append(block, n)
		}
	}
	if len(block) == 0 {
		return span{}, false
	}

	type line struct {
		text       string
		start, end int
	}
	var lines []line
	offset := 0
	for _, raw := range strings.SplitAfter(content, "\n") {
		end := offset + len(strings.TrimSuffix(raw, "\n"))
		if n := normalizeLineForMatching(raw); n != "" {
			lines = append(lines, line{text: n, start: offset, end: end})
		}
		offset += len(raw)
	}

	for i := 0; i <= len(lines)-len(block); i++ {
		match := true
		for j := range block {
			if lines[i+j].text != block[j] {
				match = false
				break
			}
		}
		if match {
			return span{lines[i].start, lines[i+len(block)-1].end}, true
		}
	}
	return span{}, false
}

// normalizeLineForMatching trims a line and collapses internal whitespace
// sequences to a single space.
func normalizeLineForMatching(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// findFirst tries each matcher in order. It returns the span, the matcher
// that succeeded, and the names of every matcher attempted.
func findFirst(matchers []matcher, content, needle string) (span, matcher, []string) {
	tried := make([]string, 0, len(matchers))
	for _, m := range matchers {
		tried = append(tried, m.name())
		if s, ok := m.find(content, needle); ok {
			return s, m, tried
		}
	}
	return span{}, nil, tried
}

// truncate shortens s to at most n characters for display.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func anchorNotFound(path, needle string) error {
	return fmt.Errorf("Could not find anchor in %s: %s...", path, truncate(needle, 50))
}
