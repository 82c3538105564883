package patcher

import (
	"regexp"
	"strings"
)

// flatBody is the single-level body matcher: everything up to the first
// closing brace. It cannot bound a block that contains nested braces.
const flatBody = `[^}]*\}`

// functionHeaders are the declaration shapes recognized for a named
// function, each ending at the body's opening brace. Order matters: the
// first shape that matches wins.
func functionHeaders(name string) []string {
	n := regexp.QuoteMeta(name)
	return []string{
		`function\s+` + n + `\s*\([^)]*\)\s*\{`,
		`const\s+` + n + `\s*=\s*function\s*\([^)]*\)\s*\{`,
		`const\s+` + n + `\s*=\s*\([^)]*\)\s*=>\s*\{`,
		`let\s+` + n + `\s*=\s*function\s*\([^)]*\)\s*\{`,
		`let\s+` + n + `\s*=\s*\([^)]*\)\s*=>\s*\{`,
	}
}

func selectorHeaders(selector string) []string {
	return []string{regexp.QuoteMeta(selector) + `\s*\{`}
}

// findBlock locates the first definition matching one of headers. With
// scanner set the body is bounded by brace depth; otherwise, or when the
// braces never balance, by the flat single-level pattern.
func findBlock(content string, headers []string, scanner, lineComments bool) (span, bool, error) {
	for _, header := range headers {
		if scanner {
			re, err := regexp.Compile(`(?s)(?m)` + header)
			if err != nil {
				return span{}, false, err
			}
			if loc := re.FindStringIndex(content); loc != nil {
				if end, ok := closeBrace(content, loc[1]-1, lineComments); ok {
					return span{loc[0], end}, true, nil
				}
			}
		}

		re, err := regexp.Compile(`(?s)(?m)` + header + flatBody)
		if err != nil {
			return span{}, false, err
		}
		if loc := re.FindStringIndex(content); loc != nil {
			return span{loc[0], loc[1]}, true, nil
		}
	}
	return span{}, false, nil
}

// upsertBlock replaces the matched block with block, or appends block when
// nothing matched. It reports false when the existing block already equals
// block up to surrounding whitespace.
func upsertBlock(content, block string, s span, found bool) (string, bool) {
	if found {
		if strings.TrimSpace(content[s.start:s.end]) == strings.TrimSpace(block) {
			return content, false
		}
		return content[:s.start] + block + content[s.end:], true
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + block + "\n", true
}

// closeBrace returns the index just past the brace that closes the one at
// open. Braces inside string literals and block comments are ignored, as
// are braces after "//" when lineComments is set.
func closeBrace(content string, open int, lineComments bool) (int, bool) {
	if open < 0 || open >= len(content) || content[open] != '{' {
		return 0, false
	}

	depth := 0
	for i := open; i < len(content); i++ {
		switch c := content[i]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		case '"', '\'', '`':
			i = skipString(content, i, c)
		case '/':
			if i+1 < len(content) {
				switch content[i+1] {
				case '/':
					if !lineComments {
						continue
					}
					if nl := strings.IndexByte(content[i:], '\n'); nl >= 0 {
						i += nl
					} else {
						return 0, false
					}
				case '*':
					if end := strings.Index(content[i+2:], "*/"); end >= 0 {
						i += end + 3
					} else {
						return 0, false
					}
				}
			}
		}
	}
	return 0, false
}

// skipString returns the index of the quote closing the literal opened at
// start. An unterminated literal consumes the rest of the content.
func skipString(content string, start int, quote byte) int {
	for i := start + 1; i < len(content); i++ {
		switch content[i] {
		case '\\':
			i++
		case quote:
			return i
		case '\n':
			if quote != '`' {
				return i
			}
		}
	}
	return len(content)
}
