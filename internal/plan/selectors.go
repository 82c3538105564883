package plan

import (
	"regexp"
	"strings"
)

// selectorToken is one class, id or attribute selector.
const selectorToken = `(?:[.#][\w-]+|\[[^\]\n]+\])`

var (
	// codeSelectorRegex captures the leading token run of a selector line
	// inside a stylesheet block. The run ends the line or is followed by a
	// brace, a comma, a combinator or a pseudo-class.
	codeSelectorRegex = regexp.MustCompile(`(?m)^[ \t]*(` + selectorToken + `(?:[ \t]*` + selectorToken + `)*)(?:[ \t]*(?:$|[{,>+~])|:)`)
	inlineRegex       = regexp.MustCompile("`(" + selectorToken + ")`")
	declarationRegex  = regexp.MustCompile(`(?m)^[ \t]*(` + selectorToken + `(?:[ \t]+` + selectorToken + `)*)[ \t]*[{>+~]`)
	bulletRegex       = regexp.MustCompile(`(?m)^[ \t]*[-*][ \t]+.*$`)
)

// stylesheetLangs are the fence languages scanned for selector lines.
var stylesheetLangs = map[string]bool{"": true, "css": true, "scss": true, "less": true}

// extractSelectors unions four independent scans: stylesheet code blocks,
// inline code spans, bare declaration lines outside code blocks, and
// bullet items quoting a selector. Only candidates starting with '.', '#'
// or '[' survive.
func extractSelectors(doc document) []string {
	set := newStringSet()
	add := func(candidate string) {
		candidate = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(candidate), "{"))
		if isSelector(candidate) {
			set.add(candidate)
		}
	}

	for _, b := range doc.blocks {
		if !stylesheetLangs[b.Lang] {
			continue
		}
		for _, m := range codeSelectorRegex.FindAllStringSubmatch(b.Content, -1) {
			add(m[1])
		}
	}

	for _, m := range inlineRegex.FindAllStringSubmatch(doc.text, -1) {
		add(m[1])
	}

	for _, m := range declarationRegex.FindAllStringSubmatch(doc.masked, -1) {
		add(m[1])
	}

	for _, line := range bulletRegex.FindAllString(doc.masked, -1) {
		for _, m := range inlineRegex.FindAllStringSubmatch(line, -1) {
			add(m[1])
		}
	}

	return set.sorted()
}

// isSelector reports whether s is shaped like a class, id or attribute
// selector.
func isSelector(s string) bool {
	return strings.HasPrefix(s, ".") || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "[")
}
