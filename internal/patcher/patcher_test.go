package patcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sokinpui/changegate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func apply(root string, opts Options, changes ...model.Change) model.ApplyResult {
	return New(root, opts, nil).Apply(model.ChangeSet{Changes: changes})
}

func TestUpsertFunctionIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.js", "function foo() { return 1; }\n")
	change := model.UpsertFunction{Path: "app.js", FunctionName: "foo", Content: "function foo() { return 2; }"}

	first := apply(root, Options{}, change)
	assert.True(t, first.Success)
	assert.Equal(t, []string{"app.js"}, first.ChangedFiles)
	content := readFile(t, root, "app.js")
	assert.Contains(t, content, "return 2")
	assert.NotContains(t, content, "return 1")

	second := apply(root, Options{}, change)
	assert.True(t, second.Success)
	assert.Empty(t, second.ChangedFiles)
	assert.Equal(t, content, readFile(t, root, "app.js"))
}

func TestUpsertFunctionShapes(t *testing.T) {
	tests := []struct {
		name    string
		initial string
		content string
		want    string
	}{
		{
			name:    "const function expression",
			initial: "const add = function(a, b) { return a + b; };\n",
			content: "const add = function(a, b) { return b + a; }",
			want:    "const add = function(a, b) { return b + a; };\n",
		},
		{
			name:    "const arrow",
			initial: "const add = (a, b) => {\n  return a + b;\n};\n",
			content: "const add = (a, b) => { return 0; }",
			want:    "const add = (a, b) => { return 0; };\n",
		},
		{
			name:    "let arrow",
			initial: "let go = () => { run(); }",
			content: "let go = () => { walk(); }",
			want:    "let go = () => { walk(); }",
		},
		{
			name:    "append when missing",
			initial: "const x = 1;",
			content: "function bar() {}",
			want:    "const x = 1;\n\nfunction bar() {}\n",
		},
		{
			name:    "append to empty file",
			initial: "",
			content: "function bar() {}",
			want:    "\n\nfunction bar() {}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, "app.js", tt.initial)
			name := "add"
			switch tt.name {
			case "let arrow":
				name = "go"
			case "append when missing", "append to empty file":
				name = "bar"
			}

			res := apply(root, Options{}, model.UpsertFunction{Path: "app.js", FunctionName: name, Content: tt.content})
			require.True(t, res.Success, "%v", res.Errors)
			assert.Equal(t, tt.want, readFile(t, root, "app.js"))
		})
	}
}

func TestUpsertFunctionNestedBraces(t *testing.T) {
	initial := "function cfg() {\n  return { a: 1 };\n}\n\nfunction other() {}\n"
	replacement := "function cfg() {\n  return { a: 2 };\n}"

	t.Run("flat matcher stops at first closing brace", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app.js", initial)
		res := apply(root, Options{}, model.UpsertFunction{Path: "app.js", FunctionName: "cfg", Content: replacement})
		require.True(t, res.Success)
		assert.Equal(t, replacement+";\n}\n\nfunction other() {}\n", readFile(t, root, "app.js"))
	})

	t.Run("brace scanner replaces the whole body", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app.js", initial)
		opts := Options{BraceScanner: true}
		change := model.UpsertFunction{Path: "app.js", FunctionName: "cfg", Content: replacement}

		res := apply(root, opts, change)
		require.True(t, res.Success)
		assert.Equal(t, replacement+"\n\nfunction other() {}\n", readFile(t, root, "app.js"))

		again := apply(root, opts, change)
		assert.True(t, again.Success)
		assert.Empty(t, again.ChangedFiles)
	})
}

func TestUpsertFunctionMissingFile(t *testing.T) {
	root := t.TempDir()
	res := apply(root, Options{}, model.UpsertFunction{Path: "app.js", FunctionName: "f", Content: "function f() {}"})
	assert.False(t, res.Success)
	assert.Equal(t, []string{"File not found for upsert_function: app.js"}, res.Errors)
	assert.NoFileExists(t, filepath.Join(root, "app.js"))
}

func TestUpsertCSSSelector(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "styles.css", ".modal {\n  display: none;\n}\n")

	change := model.UpsertCSSSelector{Path: "styles.css", Selector: ".modal", Content: ".modal {\n  display: block;\n}"}
	res := apply(root, Options{}, change)
	require.True(t, res.Success)
	assert.Equal(t, []string{"styles.css"}, res.ChangedFiles)
	assert.Equal(t, ".modal {\n  display: block;\n}\n", readFile(t, root, "styles.css"))

	again := apply(root, Options{}, change)
	assert.True(t, again.Success)
	assert.Empty(t, again.ChangedFiles)

	toast := model.UpsertCSSSelector{Path: "styles.css", Selector: "#toast", Content: "#toast { color: red; }"}
	res = apply(root, Options{}, toast)
	require.True(t, res.Success)
	assert.Equal(t, ".modal {\n  display: block;\n}\n\n#toast { color: red; }\n", readFile(t, root, "styles.css"))
}

func TestCreateReplaceDelete(t *testing.T) {
	root := t.TempDir()

	res := apply(root, Options{}, model.Create{Path: "src/new/file.js", Content: "a"})
	require.True(t, res.Success)
	assert.Equal(t, []string{"src/new/file.js"}, res.ChangedFiles)
	assert.Equal(t, "a", readFile(t, root, "src/new/file.js"))

	res = apply(root, Options{}, model.Create{Path: "src/new/file.js", Content: "b"})
	require.True(t, res.Success)
	assert.Equal(t, []string{"File src/new/file.js already exists, overwriting (create operation)"}, res.Warnings)
	assert.Equal(t, "b", readFile(t, root, "src/new/file.js"))

	res = apply(root, Options{}, model.Create{Path: "src/new/file.js", Content: "b"})
	assert.True(t, res.Success)
	assert.Empty(t, res.ChangedFiles)

	res = apply(root, Options{}, model.Replace{Path: "src/new/file.js", Content: "b"})
	assert.True(t, res.Success)
	assert.Empty(t, res.ChangedFiles)

	res = apply(root, Options{}, model.Replace{Path: "src/new/file.js", Content: "c"})
	assert.Equal(t, []string{"src/new/file.js"}, res.ChangedFiles)

	res = apply(root, Options{}, model.Replace{Path: "missing.js", Content: "c"})
	assert.False(t, res.Success)
	assert.Equal(t, []string{"File not found for replace: missing.js"}, res.Errors)

	res = apply(root, Options{}, model.Delete{Path: "src/new/file.js"})
	require.True(t, res.Success)
	assert.Equal(t, []string{"src/new/file.js"}, res.ChangedFiles)
	assert.NoFileExists(t, filepath.Join(root, "src/new/file.js"))

	res = apply(root, Options{}, model.Delete{Path: "src/new/file.js"})
	assert.False(t, res.Success)
	assert.Equal(t, []string{"File not found for delete: src/new/file.js"}, res.Errors)
}

func TestEdit(t *testing.T) {
	t.Run("ordered pairs", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app.js", "let a = 1;\nlet a = 1;\n")
		res := apply(root, Options{}, model.Edit{Path: "app.js", Edits: []model.EditPair{
			{Find: "let a = 1;", Replace: "let a = 2;"},
			{Find: "a = 2", Replace: "b = 3"},
		}})
		require.True(t, res.Success, "%v", res.Errors)
		assert.Equal(t, []string{"app.js"}, res.ChangedFiles)
		assert.Equal(t, "let b = 3;\nlet a = 1;\n", readFile(t, root, "app.js"))
	})

	t.Run("partial failure still writes", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app.js", "one\ntwo\n")
		res := apply(root, Options{}, model.Edit{Path: "app.js", Edits: []model.EditPair{
			{Find: "one", Replace: "1"},
			{Find: "three", Replace: "3"},
		}})
		assert.False(t, res.Success)
		assert.Equal(t, []string{"Could not find anchor in app.js: three... (tried exact, regex)"}, res.Errors)
		assert.Equal(t, []string{"app.js"}, res.ChangedFiles)
		assert.Equal(t, "1\ntwo\n", readFile(t, root, "app.js"))
	})

	t.Run("nothing found", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app.js", "one\n")
		res := apply(root, Options{}, model.Edit{Path: "app.js", Edits: []model.EditPair{{Find: "zzz", Replace: "y"}}})
		assert.False(t, res.Success)
		assert.Contains(t, res.Errors, "No changes applied to app.js (all find texts not found)")
		assert.Empty(t, res.ChangedFiles)
		assert.Equal(t, "one\n", readFile(t, root, "app.js"))
	})

	t.Run("replacement equal to find is not a change", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app.js", "one\n")
		res := apply(root, Options{}, model.Edit{Path: "app.js", Edits: []model.EditPair{{Find: "one", Replace: "one"}}})
		assert.True(t, res.Success)
		assert.Empty(t, res.ChangedFiles)
	})

	t.Run("long find text is truncated", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app.js", "x")
		find := "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz"
		res := apply(root, Options{}, model.Edit{Path: "app.js", Edits: []model.EditPair{{Find: find}}})
		assert.Contains(t, res.Errors, "Could not find anchor in app.js: "+find[:50]+"... (tried exact, regex)")
	})

	t.Run("empty find text", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app.js", "x")
		res := apply(root, Options{}, model.Edit{Path: "app.js", Edits: []model.EditPair{{Find: "", Replace: "y"}}})
		assert.False(t, res.Success)
		assert.Contains(t, res.Errors, "Empty find text in edit for app.js")
		assert.Equal(t, "x", readFile(t, root, "app.js"))
	})

	t.Run("whitespace-normalized fallback", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app.js", "function a() {\n    if (x)   {\n        go();\n    }\n}\n")
		change := model.Edit{Path: "app.js", Edits: []model.EditPair{{
			Find:    "if (x) {\n  go();\n}",
			Replace: "    if (y) {\n        stop();\n    }",
		}}}

		res := apply(root, Options{}, change)
		assert.False(t, res.Success)

		res = apply(root, Options{FuzzyEdits: true}, change)
		require.True(t, res.Success, "%v", res.Errors)
		assert.Equal(t, []string{"Used whitespace-normalized fallback for edit in app.js"}, res.Warnings)
		assert.Equal(t, "function a() {\n    if (y) {\n        stop();\n    }\n}\n", readFile(t, root, "app.js"))
	})
}

func TestInsertAtAnchor(t *testing.T) {
	tests := []struct {
		name    string
		change  model.InsertAtAnchor
		want    string
		wantErr string
	}{
		{
			name:   "after literal",
			change: model.InsertAtAnchor{Anchor: "<body>", Content: "<main></main>"},
			want:   "<html>\n<body>\n<main></main>\n</body>\n",
		},
		{
			name:   "before literal",
			change: model.InsertAtAnchor{Anchor: "</body>", Content: "<footer></footer>", Before: true},
			want:   "<html>\n<body>\n<footer></footer>\n</body>\n",
		},
		{
			name:   "after regex",
			change: model.InsertAtAnchor{Anchor: `<b\w+>`, Content: "x", UseRegex: true},
			want:   "<html>\n<body>\nx\n</body>\n",
		},
		{
			name:    "missing anchor",
			change:  model.InsertAtAnchor{Anchor: "<head>", Content: "x"},
			want:    "<html>\n<body>\n</body>\n",
			wantErr: "Could not find anchor in index.html: <head>...",
		},
		{
			name:    "invalid regex",
			change:  model.InsertAtAnchor{Anchor: "(", Content: "x", UseRegex: true},
			want:    "<html>\n<body>\n</body>\n",
			wantErr: "Invalid anchor regex in index.html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, "index.html", "<html>\n<body>\n</body>\n")
			tt.change.Path = "index.html"

			res := apply(root, Options{}, tt.change)
			if tt.wantErr != "" {
				assert.False(t, res.Success)
				require.Len(t, res.Errors, 1)
				assert.Contains(t, res.Errors[0], tt.wantErr)
				assert.Empty(t, res.ChangedFiles)
			} else {
				assert.True(t, res.Success, "%v", res.Errors)
				assert.Equal(t, []string{"index.html"}, res.ChangedFiles)
			}
			assert.Equal(t, tt.want, readFile(t, root, "index.html"))
		})
	}
}

func TestAppendIfMissing(t *testing.T) {
	root := t.TempDir()
	change := model.AppendIfMissing{Path: "notes.txt", Content: "TODO: X", Signature: "TODO: X"}

	first := apply(root, Options{}, change)
	require.True(t, first.Success)
	assert.Equal(t, []string{"notes.txt"}, first.ChangedFiles)
	assert.Equal(t, "TODO: X", readFile(t, root, "notes.txt"))

	second := apply(root, Options{}, change)
	assert.True(t, second.Success)
	assert.Empty(t, second.ChangedFiles)
	assert.Equal(t, "TODO: X", readFile(t, root, "notes.txt"))

	res := apply(root, Options{}, model.AppendIfMissing{Path: "notes.txt", Content: "DONE: Y", Signature: "DONE"})
	require.True(t, res.Success)
	assert.Equal(t, "TODO: X\nDONE: Y\n", readFile(t, root, "notes.txt"))
}

func TestApplyContinuesAfterErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.js", "a")

	res := apply(root, Options{},
		model.Replace{Path: "missing.js", Content: "x"},
		model.Replace{Path: "a.js", Content: "b"},
		model.Edit{Path: "a.js", Edits: []model.EditPair{{Find: "b", Replace: "c"}}},
		model.Create{Path: "../escape.js", Content: "x"},
	)

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "File not found for replace: missing.js", res.Errors[0])
	assert.Contains(t, res.Errors[1], "Path traversal rejected")
	assert.Equal(t, []string{"a.js"}, res.ChangedFiles)
	assert.Equal(t, "c", readFile(t, root, "a.js"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "escape.js"))
}

func TestChangedFilesAreSortedAndDeduplicated(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.js", "b")

	res := apply(root, Options{},
		model.Create{Path: "c.js", Content: "c"},
		model.Replace{Path: "b.js", Content: "b2"},
		model.Create{Path: "a.js", Content: "a"},
		model.AppendIfMissing{Path: "b.js", Content: "more", Signature: "more"},
	)
	require.True(t, res.Success)
	assert.Equal(t, []string{"a.js", "b.js", "c.js"}, res.ChangedFiles)
}

type recordingJournal struct {
	snapshots []string
	records   []string
}

func (j *recordingJournal) Snapshot(path string) error {
	j.snapshots = append(j.snapshots, path)
	return nil
}

func (j *recordingJournal) Record(path string, action model.FileAction) {
	j.records = append(j.records, string(action)+":"+path)
}

func TestJournal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "old.js", "old")
	writeFile(t, root, "keep.js", "keep")

	j := &recordingJournal{}
	res := New(root, Options{}, nil).WithJournal(j).Apply(model.ChangeSet{Changes: []model.Change{
		model.Create{Path: "new.js", Content: "n"},
		model.Replace{Path: "keep.js", Content: "keep"},
		model.Replace{Path: "old.js", Content: "older"},
		model.Delete{Path: "old.js"},
	}})

	require.True(t, res.Success)
	assert.Equal(t, []string{"old.js", "old.js"}, j.snapshots)
	assert.Equal(t, []string{"create:new.js", "modify:old.js", "delete:old.js"}, j.records)
}
