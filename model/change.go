package model

import "sort"

// Operation names the kind of a single change.
type Operation string

const (
	OpCreate             Operation = "create"
	OpReplace            Operation = "replace"
	OpEdit               Operation = "edit"
	OpDelete             Operation = "delete"
	OpUpsertFunction     Operation = "upsert_function"
	OpUpsertCSSSelector  Operation = "upsert_css_selector"
	OpInsertAfterAnchor  Operation = "insert_after_anchor"
	OpInsertBeforeAnchor Operation = "insert_before_anchor"
	OpAppendIfMissing    Operation = "append_if_missing"
)

var canonicalOperations = []Operation{
	OpCreate,
	OpReplace,
	OpEdit,
	OpDelete,
	OpUpsertFunction,
	OpUpsertCSSSelector,
	OpInsertAfterAnchor,
	OpInsertBeforeAnchor,
	OpAppendIfMissing,
}

// operationAliases maps accepted spellings onto canonical operations.
var operationAliases = map[string]Operation{
	"replace_file":       OpReplace,
	"upsert_function_js": OpUpsertFunction,
}

// ParseOperation resolves an operation name, including aliases.
func ParseOperation(name string) (Operation, bool) {
	if op, ok := operationAliases[name]; ok {
		return op, true
	}
	for _, op := range canonicalOperations {
		if string(op) == name {
			return op, true
		}
	}
	return "", false
}

// OperationNames lists every accepted operation name, sorted.
func OperationNames() []string {
	names := make([]string, 0, len(canonicalOperations)+len(operationAliases))
	for _, op := range canonicalOperations {
		names = append(names, string(op))
	}
	for alias := range operationAliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// RequiresExistingFile reports whether the operation assumes its target
// file is already part of the repository.
func (o Operation) RequiresExistingFile() bool {
	switch o {
	case OpCreate:
		return false
	default:
		return true
	}
}

// Change is one entry of a ChangeSet. The concrete types below are the only
// implementations; consumers switch on them exhaustively.
type Change interface {
	Operation() Operation
	Target() string
}

// Create writes Content to Path, creating parent directories.
type Create struct {
	Path    string
	Content string
}

// Replace overwrites an existing file with Content.
type Replace struct {
	Path    string
	Content string
}

// Delete removes an existing file.
type Delete struct {
	Path string
}

// EditPair is one find/replace step of an Edit.
type EditPair struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// Edit applies ordered find/replace pairs to an existing file.
type Edit struct {
	Path  string
	Edits []EditPair
}

// UpsertFunction replaces or appends a named function definition.
type UpsertFunction struct {
	Path         string
	FunctionName string
	Content      string
}

// UpsertCSSSelector replaces or appends a selector block.
type UpsertCSSSelector struct {
	Path     string
	Selector string
	Content  string
}

// InsertAtAnchor inserts Content next to the first match of Anchor.
// Before selects insert_before_anchor; otherwise insert_after_anchor.
type InsertAtAnchor struct {
	Path     string
	Anchor   string
	Content  string
	UseRegex bool
	Before   bool
}

// AppendIfMissing appends Content unless Signature is already present.
type AppendIfMissing struct {
	Path      string
	Content   string
	Signature string
}

func (c Create) Operation() Operation            { return OpCreate }
func (c Replace) Operation() Operation           { return OpReplace }
func (c Delete) Operation() Operation            { return OpDelete }
func (c Edit) Operation() Operation              { return OpEdit }
func (c UpsertFunction) Operation() Operation    { return OpUpsertFunction }
func (c UpsertCSSSelector) Operation() Operation { return OpUpsertCSSSelector }
func (c AppendIfMissing) Operation() Operation   { return OpAppendIfMissing }

func (c InsertAtAnchor) Operation() Operation {
	if c.Before {
		return OpInsertBeforeAnchor
	}
	return OpInsertAfterAnchor
}

func (c Create) Target() string            { return c.Path }
func (c Replace) Target() string           { return c.Path }
func (c Delete) Target() string            { return c.Path }
func (c Edit) Target() string              { return c.Path }
func (c UpsertFunction) Target() string    { return c.Path }
func (c UpsertCSSSelector) Target() string { return c.Path }
func (c InsertAtAnchor) Target() string    { return c.Path }
func (c AppendIfMissing) Target() string   { return c.Path }

// ChangeSet is an ordered, validated sequence of changes.
type ChangeSet struct {
	Changes []Change
}

// RawChangeSet is the loosely typed wire form of a change set, as decoded
// from JSON: {"changes": [...]} or the sentinel {"error": "..."}.
type RawChangeSet map[string]any

// ErrorSet builds the rejection sentinel.
func ErrorSet(message string) RawChangeSet {
	return RawChangeSet{"error": message}
}

// ErrorMessage returns the top-level error carried by the sentinel, if any.
func (r RawChangeSet) ErrorMessage() (string, bool) {
	v, ok := r["error"]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return "upstream change set carried a non-string error", true
}
