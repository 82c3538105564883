// Package coverage verifies that a working tree delivers what a plan
// promised.
package coverage

import (
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/sokinpui/changegate/internal/fs"
	"github.com/sokinpui/changegate/internal/plan"
	"github.com/sokinpui/changegate/model"
)

// Options names the conventional files searched for functions and
// selectors.
type Options struct {
	EntryFiles []string
	Stylesheet string
}

// DefaultOptions returns the conventional script entry points and
// stylesheet of a small web project.
func DefaultOptions() Options {
	return Options{
		EntryFiles: []string{"app.js", "index.js", "main.js"},
		Stylesheet: "styles.css",
	}
}

// Checker compares plan requirements against files under root.
type Checker struct {
	root   string
	opts   Options
	logger *slog.Logger
}

// NewChecker creates a Checker for root.
func NewChecker(root string, opts Options, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{root: root, opts: opts, logger: logger}
}

// CheckPlan extracts requirements from the plan at planPath and checks them.
func (c *Checker) CheckPlan(planPath string) (model.CoverageReport, error) {
	reqs, err := plan.ExtractRequirementsFile(planPath)
	if err != nil {
		return model.CoverageReport{}, err
	}
	return c.Check(reqs), nil
}

// Check reports which requirements are not present under root.
func (c *Checker) Check(reqs model.PlanRequirements) model.CoverageReport {
	missing := model.Missing{
		Functions:     c.missingFunctions(reqs.Functions),
		CSSSelectors:  c.missingSelectors(reqs.CSSSelectors),
		TestFiles:     c.missingFiles(reqs.TestFiles),
		RequiredFiles: c.missingFiles(reqs.RequiredFiles),
	}
	report := model.CoverageReport{IsComplete: missing.Empty(), Missing: missing}

	c.logger.Info("checked coverage",
		"complete", report.IsComplete,
		"missing_functions", len(missing.Functions),
		"missing_selectors", len(missing.CSSSelectors),
		"missing_test_files", len(missing.TestFiles),
		"missing_required_files", len(missing.RequiredFiles))
	return report
}

func (c *Checker) missingFunctions(names []string) []string {
	missing := []string{}
	if len(names) == 0 {
		return missing
	}

	var sources []string
	for _, entry := range c.opts.EntryFiles {
		if content, ok := c.read(entry); ok {
			sources = append(sources, content)
		}
	}

	for _, name := range names {
		if !definesFunction(sources, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// definesFunction reports whether any source declares name as a function
// or assigns it with const, let or var.
func definesFunction(sources []string, name string) bool {
	n := regexp.QuoteMeta(name)
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`function\s+` + n + `\s*\(`),
		regexp.MustCompile(`const\s+` + n + `\s*=`),
		regexp.MustCompile(`let\s+` + n + `\s*=`),
		regexp.MustCompile(`var\s+` + n + `\s*=`),
	}
	for _, src := range sources {
		for _, re := range patterns {
			if re.MatchString(src) {
				return true
			}
		}
	}
	return false
}

func (c *Checker) missingSelectors(selectors []string) []string {
	var valid []string
	for _, s := range selectors {
		if strings.HasPrefix(s, ".") || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "[") {
			valid = append(valid, s)
		}
	}

	missing := []string{}
	css, ok := c.read(c.opts.Stylesheet)
	if !ok {
		return append(missing, valid...)
	}

	for _, selector := range valid {
		if !declaresSelector(css, selector) {
			missing = append(missing, selector)
		}
	}
	return missing
}

// declaresSelector requires every whitespace-separated part of selector to
// appear in css followed by an opening brace.
func declaresSelector(css, selector string) bool {
	for _, part := range strings.Fields(selector) {
		re := regexp.MustCompile(`(?m)` + regexp.QuoteMeta(part) + `\s*\{`)
		if !re.MatchString(css) {
			return false
		}
	}
	return true
}

func (c *Checker) missingFiles(paths []string) []string {
	missing := []string{}
	for _, p := range paths {
		abs, err := fs.SafeJoin(c.root, p)
		if err != nil || !fs.Exists(abs) {
			missing = append(missing, p)
		}
	}
	return missing
}

// read returns the content of a file under root, if it is readable.
func (c *Checker) read(rel string) (string, bool) {
	if rel == "" {
		return "", false
	}
	abs, err := fs.SafeJoin(c.root, rel)
	if err != nil {
		return "", false
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", false
	}
	return string(data), true
}
