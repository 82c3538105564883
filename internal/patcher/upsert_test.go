package patcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloseBrace(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		lineComments bool
		want         int
		ok           bool
	}{
		{name: "flat", content: "{ a }", want: 5, ok: true},
		{name: "nested", content: "{ { } } tail", want: 7, ok: true},
		{name: "brace in string", content: `{ s = "}"; }`, want: 12, ok: true},
		{name: "brace in template", content: "{ s = `\n}`; }", want: 13, ok: true},
		{name: "brace in block comment", content: "{ /* } */ }", want: 11, ok: true},
		{name: "brace in line comment", content: "{ // }\n}", lineComments: true, want: 8, ok: true},
		{name: "line comments off", content: "{ a: url(//x) }", want: 15, ok: true},
		{name: "unbalanced", content: "{ { }", ok: false},
		{name: "not a brace", content: "x", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := closeBrace(tt.content, 0, tt.lineComments)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFindBlockFallsBackWhenUnbalanced(t *testing.T) {
	content := "function f() { if (x) { return; }"
	s, found, err := findBlock(content, functionHeaders("f"), true, true)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "function f() { if (x) { return; }", content[s.start:s.end])
}

func TestMatchers(t *testing.T) {
	content := "alpha\n  beta   gamma\n\n delta\n"

	s, m, tried := findFirst([]matcher{exactMatcher{}, regexMatcher{}, lineBlockMatcher{}}, content, "beta gamma\ndelta")
	assert.NotNil(t, m)
	assert.Equal(t, "whitespace-normalized", m.name())
	assert.Equal(t, []string{"exact", "regex", "whitespace-normalized"}, tried)
	assert.Equal(t, "  beta   gamma\n\n delta", content[s.start:s.end])

	_, m, tried = findFirst([]matcher{exactMatcher{}, regexMatcher{}}, content, "omega")
	assert.Nil(t, m)
	assert.Equal(t, []string{"exact", "regex"}, tried)

	s, m, _ = findFirst([]matcher{exactMatcher{}, regexMatcher{}}, content, "beta")
	assert.Equal(t, "exact", m.name())
	assert.Equal(t, span{8, 12}, s)
}
