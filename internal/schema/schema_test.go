package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sokinpui/changegate/internal/fs"
	"github.com/sokinpui/changegate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T, files map[string]string) (string, *Validator) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	allow, err := fs.BuildAllowlist(root, fs.AllowlistOptions{ExcludeDirs: fs.DefaultExcludeDirs})
	require.NoError(t, err)
	return root, NewValidator(root, allow, nil)
}

func parseRaw(t *testing.T, text string) model.RawChangeSet {
	t.Helper()
	var raw model.RawChangeSet
	require.NoError(t, json.Unmarshal([]byte(text), &raw))
	return raw
}

func TestValidateSetLevel(t *testing.T) {
	_, v := setupRepo(t, nil)

	ok, errs := v.Validate(model.ErrorSet("No structured changes JSON found in output"))
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "No structured changes JSON found in output", errs[0].Error())

	ok, errs = v.Validate(model.RawChangeSet{"other": 1})
	assert.False(t, ok)
	assert.Equal(t, []string{"Missing 'changes' key in structured changes"}, model.Messages(errs))

	ok, errs = v.Validate(model.RawChangeSet{"changes": []any{}})
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidatePathTraversalHasNoSideEffects(t *testing.T) {
	root, v := setupRepo(t, nil)
	raw := parseRaw(t, `{"changes":[{"path":"../secret.js","operation":"create","content":"x"}]}`)

	ok, errs := v.Validate(raw)
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, model.KindPathSafety, errs[0].Kind)
	assert.Contains(t, errs[0].Error(), "Path traversal rejected")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "secret.js"))
}

func TestValidateAbsolutePath(t *testing.T) {
	_, v := setupRepo(t, nil)
	raw := parseRaw(t, `{"changes":[{"path":"/tmp/x.js","operation":"create","content":"x"}]}`)

	ok, errs := v.Validate(raw)
	assert.False(t, ok)
	assert.Equal(t, []string{"Change 0: Absolute path rejected: '/tmp/x.js'. Use relative paths only."}, model.Messages(errs))
}

func TestFileAndPathAreEquivalent(t *testing.T) {
	cases := []string{
		`{"operation":"replace","content":"b"}`,
		`{"operation":"replace"}`,
		`{"operation":"edit","edits":"nope"}`,
		`{"operation":"delete"}`,
	}
	for _, body := range cases {
		t.Run(body, func(t *testing.T) {
			for _, name := range []string{"x.js", "missing.js"} {
				_, v := setupRepo(t, map[string]string{"x.js": "a"})

				withPath := parseRaw(t, `{"changes":[`+body+`]}`)
				withPath["changes"].([]any)[0].(map[string]any)["path"] = name
				withFile := parseRaw(t, `{"changes":[`+body+`]}`)
				withFile["changes"].([]any)[0].(map[string]any)["file"] = name

				okPath, errsPath := v.Validate(withPath)
				okFile, errsFile := v.Validate(withFile)
				assert.Equal(t, okPath, okFile)
				assert.Equal(t, model.Messages(errsPath), model.Messages(errsFile))

				normalized := withFile["changes"].([]any)[0].(map[string]any)
				assert.Equal(t, name, normalized["path"])
				assert.NotContains(t, normalized, "file")
			}
		})
	}
}

func TestValidateRejectsDiffContent(t *testing.T) {
	_, v := setupRepo(t, map[string]string{"app.js": "a"})

	patch := "diff --git a/app.js b/app.js\n--- a/app.js\n+++ b/app.js\n@@ -1,1 +1,1 @@\n-a\n+b\n"
	raw := model.RawChangeSet{"changes": []any{
		map[string]any{"path": "app.js", "operation": "replace", "content": patch},
		map[string]any{"path": "new.js", "operation": "create", "content": "ok\n@@ hunk"},
		map[string]any{"path": "app.js", "operation": "edit", "edits": []any{}, "description": "diff --git is fine here"},
	}}

	ok, errs := v.Validate(raw)
	assert.False(t, ok)
	require.Len(t, errs, 2)

	assert.Equal(t, 0, errs[0].Index)
	assert.Contains(t, errs[0].Message, "Found marker: 'diff --git'")
	assert.Contains(t, errs[0].Message, "diff touches: app.js")
	assert.Equal(t, 1, errs[1].Index)
	assert.Contains(t, errs[1].Message, "Found marker: '@@'")
}

func TestValidateOperations(t *testing.T) {
	tests := []struct {
		name   string
		change string
		want   []string
	}{
		{
			name:   "missing path",
			change: `{"operation":"create","content":"x"}`,
			want:   []string{"Change 0: Missing 'path' or 'file' field"},
		},
		{
			name:   "missing operation",
			change: `{"path":"a.js","content":"x"}`,
			want:   []string{"Change 0: Missing 'operation'"},
		},
		{
			name:   "unknown operation",
			change: `{"path":"a.js","operation":"rename"}`,
			want: []string{"Change 0: Invalid operation 'rename' (must be one of [append_if_missing create delete edit insert_after_anchor insert_before_anchor replace replace_file upsert_css_selector upsert_function upsert_function_js])"},
		},
		{
			name:   "create needs content",
			change: `{"path":"a.js","operation":"create"}`,
			want:   []string{"Change 0: Missing 'content' for create operation"},
		},
		{
			name:   "create with empty content",
			change: `{"path":"a.js","operation":"create","content":""}`,
		},
		{
			name:   "edit needs list",
			change: `{"path":"app.js","operation":"edit","edits":{"find":"a"}}`,
			want:   []string{"Change 0: 'edits' must be a list"},
		},
		{
			name:   "edit needs edits",
			change: `{"path":"app.js","operation":"edit"}`,
			want:   []string{"Change 0: Missing 'edits' for edit operation"},
		},
		{
			name:   "upsert function fields",
			change: `{"path":"app.js","operation":"upsert_function"}`,
			want: []string{
				"Change 0: Missing 'content' for upsert_function operation",
				"Change 0: Missing 'function_name' for upsert_function operation",
			},
		},
		{
			name:   "alias accepted",
			change: `{"path":"app.js","operation":"upsert_function_js","function_name":"f","content":"function f() {}"}`,
		},
		{
			name:   "css selector needs selector",
			change: `{"path":"app.js","operation":"upsert_css_selector","content":".a {}"}`,
			want:   []string{"Change 0: Missing 'selector' for upsert_css_selector operation"},
		},
		{
			name:   "anchor needs anchor",
			change: `{"path":"app.js","operation":"insert_before_anchor","content":"x"}`,
			want:   []string{"Change 0: Missing 'anchor' for insert_before_anchor operation"},
		},
		{
			name:   "append needs signature",
			change: `{"path":"app.js","operation":"append_if_missing","content":"x"}`,
			want:   []string{"Change 0: Missing 'signature' for append_if_missing operation"},
		},
		{
			name:   "wrong type",
			change: `{"path":"app.js","operation":"replace","content":5}`,
			want:   []string{"Change 0: 'content' must be a string"},
		},
		{
			name:   "delete needs only path",
			change: `{"path":"app.js","operation":"delete"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, v := setupRepo(t, map[string]string{"app.js": "a"})
			ok, errs := v.Validate(parseRaw(t, `{"changes":[`+tt.change+`]}`))
			assert.Equal(t, len(tt.want) == 0, ok)
			if len(tt.want) == 0 {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.want, model.Messages(errs))
		})
	}
}

func TestValidateExistingFiles(t *testing.T) {
	_, v := setupRepo(t, map[string]string{
		"src/App.js":              "a",
		"node_modules/pkg/lib.js": "b",
	})

	raw := parseRaw(t, `{"changes":[
		{"path":"src/app.js","operation":"replace","content":"x"},
		{"path":"backend/routes.js","operation":"edit","edits":[]},
		{"path":"lib/util.js","operation":"delete"},
		{"path":"node_modules/pkg/lib.js","operation":"delete"},
		{"path":"lib/new.js","operation":"create","content":"x"}
	]}`)

	ok, errs := v.Validate(raw)
	assert.False(t, ok)
	msgs := model.Messages(errs)
	require.Len(t, msgs, 3)
	assert.Equal(t, "Change 1: File 'backend/routes.js' does not exist and appears to be a backend/API file not in this repo. Only modify existing files in this repo.", msgs[1])
	assert.Equal(t, "Change 2: File 'lib/util.js' does not exist (for delete operation). Only modify existing files in this repo.", msgs[2])
	for _, e := range errs {
		assert.Equal(t, model.KindReference, e.Kind)
	}

	// On case-insensitive filesystems src/app.js exists on disk and is accepted.
	if _, err := os.Stat(filepath.Join(v.root, "src", "app.js")); err != nil {
		assert.Equal(t, "Change 0: File 'src/app.js' not found, but similar file exists: src/App.js", msgs[0])
	}
}

func TestValidateIsExhaustive(t *testing.T) {
	_, v := setupRepo(t, map[string]string{"app.js": "a"})
	raw := parseRaw(t, `{"changes":[
		{"path":"../x","operation":"create","content":"x"},
		{"path":"app.js","operation":"replace","content":"fine"},
		{"file":"app.js"}
	]}`)

	ok, errs := v.Validate(raw)
	assert.False(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, 0, errs[0].Index)
	assert.Equal(t, 2, errs[1].Index)
}

func TestDecode(t *testing.T) {
	_, v := setupRepo(t, map[string]string{"app.js": "a", "styles.css": ""})
	raw := parseRaw(t, `{"changes":[
		{"file":"new.js","operation":"create","content":"x"},
		{"path":"app.js","operation":"replace_file","content":"y"},
		{"path":"app.js","operation":"edit","edits":[{"find":"a","replace":"b"}]},
		{"path":"app.js","operation":"upsert_function_js","function_name":"f","content":"function f() {}"},
		{"path":"styles.css","operation":"upsert_css_selector","selector":".a","content":".a {}"},
		{"path":"app.js","operation":"insert_before_anchor","anchor":"^a","content":"z","use_regex":true},
		{"path":"app.js","operation":"append_if_missing","content":"s","signature":"s"},
		{"path":"app.js","operation":"delete"}
	]}`)

	ok, errs := v.Validate(raw)
	require.True(t, ok, "%v", errs)

	set, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, []model.Change{
		model.Create{Path: "new.js", Content: "x"},
		model.Replace{Path: "app.js", Content: "y"},
		model.Edit{Path: "app.js", Edits: []model.EditPair{{Find: "a", Replace: "b"}}},
		model.UpsertFunction{Path: "app.js", FunctionName: "f", Content: "function f() {}"},
		model.UpsertCSSSelector{Path: "styles.css", Selector: ".a", Content: ".a {}"},
		model.InsertAtAnchor{Path: "app.js", Anchor: "^a", Content: "z", UseRegex: true, Before: true},
		model.AppendIfMissing{Path: "app.js", Content: "s", Signature: "s"},
		model.Delete{Path: "app.js"},
	}, set.Changes)
}
