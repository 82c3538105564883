package patcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sokinpui/changegate/model"
)

// outcome is what one operation wants done to its target file. Operations
// are pure: they see the current content and never touch the filesystem.
type outcome struct {
	content  string
	write    bool
	remove   bool
	verb     string
	warnings []string
	errs     []error
}

func failed(err error) outcome {
	return outcome{errs: []error{err}}
}

func notFound(op model.Operation, path string) outcome {
	return failed(fmt.Errorf("File not found for %s: %s", op, path))
}

func createFile(c model.Create, current string, exists bool) outcome {
	if exists && current == c.Content {
		return outcome{}
	}
	out := outcome{content: c.Content, write: true, verb: "created file"}
	if exists {
		out.warnings = append(out.warnings, fmt.Sprintf("File %s already exists, overwriting (create operation)", c.Path))
	}
	return out
}

func replaceFile(c model.Replace, current string, exists bool) outcome {
	if !exists {
		return notFound(model.OpReplace, c.Path)
	}
	if current == c.Content {
		return outcome{}
	}
	return outcome{content: c.Content, write: true, verb: "replaced file"}
}

func deleteFile(c model.Delete, exists bool) outcome {
	if !exists {
		return notFound(model.OpDelete, c.Path)
	}
	return outcome{remove: true, verb: "deleted file"}
}

// editFile applies each find/replace pair in order, trying matchers until
// one locates the find text. Pairs that fail are reported and skipped; the
// file is written only if at least one pair applied.
func editFile(c model.Edit, current string, exists bool, matchers []matcher) outcome {
	if !exists {
		return notFound(model.OpEdit, c.Path)
	}

	var out outcome
	next := current
	applied := false
	for _, pair := range c.Edits {
		if pair.Find == "" {
			out.errs = append(out.errs, fmt.Errorf("Empty find text in edit for %s", c.Path))
			continue
		}
		s, m, tried := findFirst(matchers, next, pair.Find)
		if m == nil {
			out.errs = append(out.errs, fmt.Errorf("Could not find anchor in %s: %s... (tried %s)",
				c.Path, truncate(pair.Find, 50), strings.Join(tried, ", ")))
			continue
		}
		if _, exact := m.(exactMatcher); !exact {
			out.warnings = append(out.warnings, fmt.Sprintf("Used %s fallback for edit in %s", m.name(), c.Path))
		}
		next = next[:s.start] + pair.Replace + next[s.end:]
		applied = true
	}

	if !applied {
		out.errs = append(out.errs, fmt.Errorf("No changes applied to %s (all find texts not found)", c.Path))
		return out
	}
	if next != current {
		out.content, out.write, out.verb = next, true, "edited file"
	}
	return out
}

func upsertFunction(c model.UpsertFunction, current string, exists, scanner bool) outcome {
	if !exists {
		return notFound(model.OpUpsertFunction, c.Path)
	}
	s, found, err := findBlock(current, functionHeaders(c.FunctionName), scanner, true)
	if err != nil {
		return failed(fmt.Errorf("Invalid function name %q in %s: %w", c.FunctionName, c.Path, err))
	}
	next, changed := upsertBlock(current, c.Content, s, found)
	if !changed {
		return outcome{}
	}
	return outcome{content: next, write: true, verb: "upserted function"}
}

func upsertCSSSelector(c model.UpsertCSSSelector, current string, exists, scanner bool) outcome {
	if !exists {
		return notFound(model.OpUpsertCSSSelector, c.Path)
	}
	s, found, err := findBlock(current, selectorHeaders(c.Selector), scanner, false)
	if err != nil {
		return failed(fmt.Errorf("Invalid selector %q in %s: %w", c.Selector, c.Path, err))
	}
	next, changed := upsertBlock(current, c.Content, s, found)
	if !changed {
		return outcome{}
	}
	return outcome{content: next, write: true, verb: "upserted css selector"}
}

// insertAtAnchor inserts content on its own line after the anchor's end,
// or before the anchor's start.
func insertAtAnchor(c model.InsertAtAnchor, current string, exists bool) outcome {
	if !exists {
		return notFound(c.Operation(), c.Path)
	}

	var (
		s     span
		found bool
	)
	if c.UseRegex {
		re, err := regexp.Compile(c.Anchor)
		if err != nil {
			return failed(fmt.Errorf("Invalid anchor regex in %s: %w", c.Path, err))
		}
		if loc := re.FindStringIndex(current); loc != nil {
			s, found = span{loc[0], loc[1]}, true
		}
	} else {
		s, found = exactMatcher{}.find(current, c.Anchor)
	}
	if !found {
		return failed(anchorNotFound(c.Path, c.Anchor))
	}

	var next string
	if c.Before {
		next = current[:s.start] + c.Content + "\n" + current[s.start:]
	} else {
		next = current[:s.end] + "\n" + c.Content + current[s.end:]
	}
	return outcome{content: next, write: true, verb: "inserted at anchor"}
}

// appendIfMissing creates the file with content verbatim, or appends
// content unless signature already occurs.
func appendIfMissing(c model.AppendIfMissing, current string, exists bool) outcome {
	if !exists {
		return outcome{content: c.Content, write: true, verb: "created file"}
	}
	if strings.Contains(current, c.Signature) {
		return outcome{}
	}
	if !strings.HasSuffix(current, "\n") {
		current += "\n"
	}
	return outcome{content: current + c.Content + "\n", write: true, verb: "appended to file"}
}
