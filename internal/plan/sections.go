package plan

import (
	"regexp"
	"strings"

	"github.com/sokinpui/changegate/internal/parser"
)

var headingRegex = regexp.MustCompile(`(?m)^ {0,3}(#{1,6})[ \t]+(.*?)[ \t#]*$`)

// document is a plan with its fenced code blocks located. masked has the
// same length as text, with code block contents blanked so headings and
// declarations inside fences are not mistaken for prose.
type document struct {
	text   string
	masked string
	blocks []parser.CodeBlock
}

type section struct {
	level   int
	heading string
	body    string
}

func newDocument(text string) document {
	blocks, _ := parser.ExtractCodeBlocks([]byte(text))

	masked := []byte(text)
	for _, b := range blocks {
		for i := b.Start; i < b.End && i < len(masked); i++ {
			if masked[i] != '\n' {
				masked[i] = ' '
			}
		}
	}
	return document{text: text, masked: string(masked), blocks: blocks}
}

// sections splits the document at ATX headings. A section's body runs to
// the next heading of any level.
func (d document) sections() []section {
	locs := headingRegex.FindAllStringSubmatchIndex(d.masked, -1)
	out := make([]section, 0, len(locs))
	for i, loc := range locs {
		end := len(d.text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, section{
			level:   loc[3] - loc[2],
			heading: d.masked[loc[4]:loc[5]],
			body:    d.text[loc[1]:end],
		})
	}
	return out
}

// sectionBodies returns the bodies of every section whose heading contains
// name, case-insensitively.
func (d document) sectionBodies(name string) []string {
	name = strings.ToLower(name)
	var bodies []string
	for _, s := range d.sections() {
		if strings.Contains(strings.ToLower(s.heading), name) {
			bodies = append(bodies, s.body)
		}
	}
	return bodies
}
