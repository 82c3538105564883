package plan

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	criteriaHeadingRegex = regexp.MustCompile(`(?im)^#{2,3}[ \t]*(?:acceptance[ \t]+criteria|definition[ \t]+of[ \t]+done|requirements|done[ \t]+when|scope|must[ \t]+have|done|criteria)[ \t]*$`)
	anyHeadingRegex      = regexp.MustCompile(`(?m)^#{1,6}[ \t]`)
	checklistRegex       = regexp.MustCompile(`^[-*•]\s*(?:\[[ xX]?\]\s*)?(.+)$`)
	numberedRegex        = regexp.MustCompile(`^\d+[.)]\s*(.+)$`)
	plainBulletRegex     = regexp.MustCompile(`^[-*•]\s*(.+)$`)
	wordRegex            = regexp.MustCompile(`\b\w+\b`)
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "to": true, "of": true, "and": true,
	"or": true, "in": true, "on": true, "for": true, "is": true, "be": true,
	"can": true, "that": true, "this": true, "with": true, "so": true,
	"when": true, "if": true, "as": true,
}

// DefaultMinOverlap is the number of significant words a criterion must
// share with a plan to count as addressed.
const DefaultMinOverlap = 2

// ExtractCriteria lists acceptance criteria from an issue. Bullets and
// numbered items under criteria-like headings are preferred; otherwise the
// first bullets of the body are used, and failing that the title.
func ExtractCriteria(body, title string) []string {
	text := strings.TrimSpace(body)
	var out []string
	seen := make(map[string]bool)
	add := func(item string, minLen int) {
		item = strings.TrimSpace(item)
		if utf8.RuneCountInString(item) > minLen && !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}

	for _, loc := range criteriaHeadingRegex.FindAllStringIndex(text, -1) {
		sectionText := text[loc[1]:]
		if next := anyHeadingRegex.FindStringIndex(sectionText); next != nil {
			sectionText = sectionText[:next[0]]
		}
		for _, line := range strings.Split(sectionText, "\n") {
			line = strings.TrimSpace(line)
			if m := checklistRegex.FindStringSubmatch(line); m != nil {
				add(m[1], 3)
			}
			if m := numberedRegex.FindStringSubmatch(line); m != nil {
				add(m[1], 3)
			}
		}
	}

	if len(out) == 0 && text != "" {
		lines := strings.Split(text, "\n")
		if len(lines) > 40 {
			lines = lines[:40]
		}
		for _, line := range lines {
			if m := plainBulletRegex.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
				add(m[1], 5)
				if len(out) >= 15 {
					break
				}
			}
		}
	}

	if len(out) == 0 {
		add(title, 5)
	}
	return out
}

// CheckCriteria reports whether planText addresses every criterion and
// lists the ones it does not. A criterion is addressed when at least
// min(minOverlap, n) of its n significant words occur in the plan; one with
// no significant words must appear verbatim, ignoring case.
func CheckCriteria(criteria []string, planText string, minOverlap int) (bool, []string) {
	planLower := strings.ToLower(planText)
	var unsatisfied []string

	for _, criterion := range criteria {
		var words []string
		for _, w := range wordRegex.FindAllString(criterion, -1) {
			w = strings.ToLower(w)
			if len(w) > 1 && !stopwords[w] {
				words = append(words, w)
			}
		}

		if len(words) == 0 {
			if !strings.Contains(planLower, strings.ToLower(strings.TrimSpace(criterion))) {
				unsatisfied = append(unsatisfied, criterion)
			}
			continue
		}

		found := 0
		for _, w := range words {
			if strings.Contains(planLower, w) {
				found++
			}
		}
		if found < min(minOverlap, len(words)) {
			unsatisfied = append(unsatisfied, criterion)
		}
	}
	return len(unsatisfied) == 0, unsatisfied
}
