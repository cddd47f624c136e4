package sqlfmt

import (
	"html"
	"strings"

	"charm.land/lipgloss/v2"
)

// Styles maps highlight classes to terminal styles. Missing classes are
// left unstyled.
type Styles map[Class]lipgloss.Style

// HighlightTerminal wraps keywords, literals and comments in ANSI styles.
func HighlightTerminal(sql string, styles Styles) string {
	return Highlight(sql, func(c Class, s string) string {
		st, ok := styles[c]
		if !ok || c == ClassPlain || s == "" {
			return s
		}
		// style line by line; Render pads multi-line blocks
		lines := strings.Split(s, "\n")
		for i, l := range lines {
			if l != "" {
				lines[i] = st.Render(l)
			}
		}
		return strings.Join(lines, "\n")
	})
}

var htmlClasses = map[Class]string{
	ClassClause:  "dumpx-sql-clause",
	ClassKeyword: "dumpx-sql-keyword",
	ClassString:  "dumpx-sql-string",
	ClassNumber:  "dumpx-sql-number",
	ClassComment: "dumpx-sql-comment",
}

// HighlightHTML escapes sql and wraps highlighted tokens in spans.
// Newlines become <br>.
func HighlightHTML(sql string) string {
	out := Highlight(sql, func(c Class, s string) string {
		esc := html.EscapeString(s)
		if cls, ok := htmlClasses[c]; ok {
			return `<span class="` + cls + `">` + esc + `</span>`
		}
		return esc
	})
	return strings.ReplaceAll(out, "\n", "<br>")
}
