package feeds

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements end a run of text; a space is emitted in their place so
// adjacent paragraphs do not run together.
var blockElements = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Td: true, atom.Blockquote: true, atom.Section: true, atom.Article: true,
}

// stripHTML removes markup from s and unescapes HTML entities. Script and
// style contents are dropped.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF on normal termination; anything else is malformed
			// input, for which the text gathered so far is the best answer.
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && tt == html.StartTagToken {
				skip++
			}
			if blockElements[a] {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
			if blockElements[a] {
				b.WriteByte(' ')
			}
		}
	}
}

// StripHTML returns the visible text of an HTML fragment with whitespace
// collapsed.
func StripHTML(s string) string {
	return cleanText(stripHTML(s))
}
