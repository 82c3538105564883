// Package plan mines implementation plans and issue bodies for the items a
// change is expected to deliver.
package plan

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/sokinpui/changegate/model"
)

var (
	functionBulletRegex = regexp.MustCompile("[-*]\\s*`?(\\w+)\\s*\\([^)]*\\)`?")
	testFileRegex       = regexp.MustCompile(`(?:^|[^\w/])(tests?/[\w./-]+\.(?:js|ts|jsx|tsx|mjs|cjs|py|go))`)
	backtickRegex       = regexp.MustCompile("`([^`\n]+)`")
	itemPrefixRegex     = regexp.MustCompile(`^[ \t]*(?:[-*+]|\d+[.)])?[ \t]*$`)
)

// ExtractRequirementsFile reads a plan document and extracts its
// requirements.
func ExtractRequirementsFile(path string) (model.PlanRequirements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.PlanRequirements{}, fmt.Errorf("failed to read plan: %w", err)
	}
	return ExtractRequirements(string(data)), nil
}

// ExtractRequirements scans plan text for promised functions, selectors,
// test files and files to change. Every list is deduplicated and sorted.
func ExtractRequirements(text string) model.PlanRequirements {
	doc := newDocument(text)
	return model.PlanRequirements{
		Functions:     extractFunctions(doc),
		CSSSelectors:  extractSelectors(doc),
		TestFiles:     extractTestFiles(doc),
		RequiredFiles: extractRequiredFiles(doc),
	}
}

func extractFunctions(doc document) []string {
	set := newStringSet()
	for _, body := range doc.sectionBodies("new functions") {
		for _, m := range functionBulletRegex.FindAllStringSubmatch(body, -1) {
			if m[1] == "function" {
				continue
			}
			set.add(m[1])
		}
	}
	return set.sorted()
}

func extractTestFiles(doc document) []string {
	set := newStringSet()
	for _, m := range testFileRegex.FindAllStringSubmatch(doc.text, -1) {
		set.add(m[1])
	}
	return set.sorted()
}

func extractRequiredFiles(doc document) []string {
	set := newStringSet()
	for _, body := range doc.sectionBodies("files to change") {
		for _, line := range strings.Split(body, "\n") {
			for _, loc := range backtickRegex.FindAllStringSubmatchIndex(line, -1) {
				tok := strings.TrimSpace(line[loc[2]:loc[3]])
				if isPathLike(tok, leadsItem(line[:loc[0]])) {
					set.add(tok)
				}
			}
		}
	}
	return set.sorted()
}

// leadsItem reports whether prefix is only a list marker, so the code span
// after it is the subject of the item.
func leadsItem(prefix string) bool {
	return itemPrefixRegex.MatchString(prefix)
}

// isPathLike rejects tokens that are plainly code: anything with whitespace
// or call parentheses, id and attribute selectors, and a bare ".name" that
// does not lead its list item. Extensionless names such as Makefile are
// kept.
func isPathLike(tok string, leading bool) bool {
	if tok == "" || strings.ContainsAny(tok, " \t(") {
		return false
	}
	if strings.HasPrefix(tok, "#") || strings.HasPrefix(tok, "[") {
		return false
	}
	if strings.HasPrefix(tok, ".") && !strings.ContainsAny(tok[1:], "./") {
		return leading
	}
	return true
}

type stringSet map[string]struct{}

func newStringSet() stringSet { return make(stringSet) }

func (s stringSet) add(v string) { s[v] = struct{}{} }

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
