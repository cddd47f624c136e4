// Package terminal serializes rendered trees to indented, optionally
// ANSI-coloured text with tree-drawing connectors.
package terminal

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/mattn/go-runewidth"

	"github.com/oakwood-commons/dumpx/internal/diff"
	"github.com/oakwood-commons/dumpx/internal/jsonfmt"
	"github.com/oakwood-commons/dumpx/internal/sqlfmt"
	"github.com/oakwood-commons/dumpx/pkg/tree"
)

// IndentTabs selects tab indentation; any other style uses spaces.
const IndentTabs = "tabs"

// maxKeyPad caps key alignment so one long key does not push every sibling
// value off screen.
const maxKeyPad = 24

// Options controls terminal output.
type Options struct {
	// Color enables ANSI styling. When false no escape sequences are written.
	Color           bool
	IndentStyle     string
	IndentSize      int
	ShowExpressions bool
	// Styles overrides DefaultStyles.
	Styles *Styles
}

type renderer struct {
	opts   Options
	st     Styles
	unit   string
	mid    string
	end    string
	cont   string
	blank  string
	colour bool
}

func newRenderer(o Options) *renderer {
	r := &renderer{opts: o, colour: o.Color}
	if o.Styles != nil {
		r.st = *o.Styles
	} else {
		r.st = DefaultStyles()
	}
	if o.IndentStyle == IndentTabs {
		r.unit = "\t"
		r.mid, r.end, r.cont, r.blank = "├─\t", "└─\t", "│\t", "\t"
		return r
	}
	n := o.IndentSize
	if n < 0 {
		n = 0
	}
	r.unit = strings.Repeat(" ", n)
	bar := strings.Repeat("─", n)
	r.mid = "├" + bar + " "
	r.end = "└" + bar + " "
	r.cont = "│" + strings.Repeat(" ", n+1)
	r.blank = strings.Repeat(" ", n+2)
	return r
}

// Render serializes tr. The value block comes first; a context block and a
// performance line follow, each separated by a blank line.
func Render(tr *tree.Tree, o Options) string {
	if tr == nil {
		return ""
	}
	r := newRenderer(o)
	blocks := make([]string, 0, len(tr.Nodes))
	for _, n := range tr.Nodes {
		switch n.Kind {
		case tree.KindContext:
			blocks = append(blocks, r.context(n))
		default:
			blocks = append(blocks, strings.Join(r.lines(n), "\n"))
		}
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// paint styles text line by line; lipgloss pads multi-line blocks.
func (r *renderer) paint(s lipgloss.Style, text string) string {
	if !r.colour || text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = s.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

func (r *renderer) leafStyle(k tree.Kind) lipgloss.Style {
	switch k {
	case tree.KindString:
		return r.st.String
	case tree.KindNumber:
		return r.st.Number
	case tree.KindBool:
		return r.st.Bool
	case tree.KindNull:
		return r.st.Null
	case tree.KindNotice, tree.KindPerformance:
		return r.st.Notice
	case tree.KindCircular:
		return r.st.Muted
	}
	return r.st.Unknown
}

func (r *renderer) suffix(n *tree.Node) string {
	if !r.opts.ShowExpressions {
		return ""
	}
	expr := n.Expression()
	if expr == "" {
		return ""
	}
	return " " + r.paint(r.st.Muted, "("+expr+")")
}

// lines renders n and its subtree without any leading prefix.
func (r *renderer) lines(n *tree.Node) []string {
	switch n.Kind {
	case tree.KindContainerArray, tree.KindContainerObject:
		return r.container(n)
	case tree.KindArrayItem:
		return r.item(n, 0)
	case tree.KindException:
		return r.exception(n)
	case tree.KindJSON:
		return r.json(n)
	case tree.KindSQL:
		return r.sql(n)
	case tree.KindDiff:
		return r.diff(n)
	case tree.KindDiffItem:
		return r.diffItem(n)
	}
	out := strings.Split(r.paint(r.leafStyle(n.Kind), n.Text), "\n")
	out[len(out)-1] += r.suffix(n)
	return out
}

func (r *renderer) container(n *tree.Node) []string {
	style := r.st.Array
	if n.Kind == tree.KindContainerObject {
		style = r.st.Object
	}
	head := r.paint(style, n.Text) + r.suffix(n)
	pad := 0
	for _, c := range n.Children {
		if c.Kind == tree.KindArrayItem {
			if w := runewidth.StringWidth(c.Text); w > pad {
				pad = w
			}
		}
	}
	if pad > maxKeyPad {
		pad = maxKeyPad
	}
	children := make([][]string, len(n.Children))
	for i, c := range n.Children {
		if c.Kind == tree.KindArrayItem {
			children[i] = r.item(c, pad)
		} else {
			children[i] = r.lines(c)
		}
	}
	return append([]string{head}, r.branch(children)...)
}

// branch attaches connectors to already rendered children.
func (r *renderer) branch(children [][]string) []string {
	var out []string
	for i, cl := range children {
		last := i == len(children)-1
		first, rest := r.mid, r.cont
		if last {
			first, rest = r.end, r.blank
		}
		for j, l := range cl {
			p := rest
			if j == 0 {
				p = first
			}
			out = append(out, r.paint(r.st.Muted, p)+l)
		}
	}
	return out
}

// item renders "key: value" with the value column aligned to pad.
func (r *renderer) item(n *tree.Node, pad int) []string {
	key := n.Text
	if len(n.Children) == 0 {
		return []string{r.paint(r.st.Key, key)}
	}
	label := key + ":"
	if pad > 0 {
		label = runewidth.FillRight(label, pad+1)
	}
	cl := r.lines(n.Children[0])
	cl[0] = r.paint(r.st.Key, key) + label[len(key):] + " " + cl[0]
	return cl
}

// exception renders the block as-is, highlighting the chain headers.
func (r *renderer) exception(n *tree.Node) []string {
	out := strings.Split(n.Text, "\n")
	for i, l := range out {
		switch {
		case strings.HasPrefix(l, "Exception:"), strings.HasPrefix(l, "Caused by:"):
			out[i] = r.paint(r.st.Exception, l)
		case strings.HasPrefix(l, "  #"):
			out[i] = r.paint(r.st.Muted, l)
		}
	}
	out[len(out)-1] += r.suffix(n)
	return out
}

func (r *renderer) indented(body string) []string {
	out := strings.Split(body, "\n")
	for i, l := range out {
		out[i] = r.unit + l
	}
	return out
}

func (r *renderer) json(n *tree.Node) []string {
	out := []string{r.paint(r.st.Array, n.Text) + r.suffix(n)}
	for _, c := range n.Children {
		if c.Kind != tree.KindJSONBody {
			continue
		}
		var b strings.Builder
		jsonfmt.Scan(c.Text, func(class jsonfmt.TokenClass, s string) {
			if st, ok := r.st.JSON[class]; ok {
				b.WriteString(r.paint(st, s))
				return
			}
			b.WriteString(s)
		})
		out = append(out, r.indented(b.String())...)
	}
	return out
}

func (r *renderer) sql(n *tree.Node) []string {
	body := n.Text
	if r.colour {
		body = sqlfmt.HighlightTerminal(body, r.st.SQL)
	}
	out := []string{r.paint(r.st.Array, "sql") + r.suffix(n)}
	out = append(out, r.indented(body)...)
	for _, c := range n.Children {
		if c.Kind == tree.KindSQLExplain {
			out = append(out, r.unit+r.paint(r.st.Muted, "plan:"))
			out = append(out, r.indented(strings.TrimRight(c.Text, "\n"))...)
		}
	}
	return out
}

func (r *renderer) diffStyle(n *tree.Node) (lipgloss.Style, bool) {
	v, _ := n.Meta(tree.MetaDiffType)
	switch v {
	case string(diff.Added):
		return r.st.Added, true
	case string(diff.Removed):
		return r.st.Removed, true
	case string(diff.Modified):
		return r.st.Modified, true
	}
	return r.st.Muted, false
}

func (r *renderer) diff(n *tree.Node) []string {
	st, _ := r.diffStyle(n)
	head := r.paint(st, n.Text)
	s := summaryOf(n)
	head += " " + r.paint(r.st.Muted, s.String())
	children := make([][]string, len(n.Children))
	for i, c := range n.Children {
		children[i] = r.lines(c)
	}
	out := append([]string{head}, r.branch(children)...)
	if table := strings.TrimRight(diff.SummaryTable(s), "\n"); table != "" {
		out = append(out, "")
		for _, l := range strings.Split(table, "\n") {
			out = append(out, r.paint(r.st.Muted, l))
		}
	}
	return out
}

func (r *renderer) diffItem(n *tree.Node) []string {
	st, _ := r.diffStyle(n)
	out := []string{r.paint(st, n.Text)}
	if v, ok := n.Meta(tree.MetaTextDiff); ok {
		if td, _ := v.(string); td != "" {
			for _, l := range strings.Split(strings.TrimRight(td, "\n"), "\n") {
				ls := r.st.Muted
				switch {
				case strings.HasPrefix(l, "+"):
					ls = r.st.Added
				case strings.HasPrefix(l, "-"):
					ls = r.st.Removed
				}
				out = append(out, r.unit+r.paint(ls, l))
			}
		}
	}
	if len(n.Children) == 0 {
		return out
	}
	children := make([][]string, len(n.Children))
	for i, c := range n.Children {
		children[i] = r.lines(c)
	}
	return append(out, r.branch(children)...)
}

func summaryOf(n *tree.Node) diff.Summary {
	s := diff.Summary{}
	v, _ := n.Meta(tree.MetaSummary)
	m, _ := v.(map[string]any)
	for k, c := range m {
		if i, ok := c.(int); ok {
			s[diff.Type(k)] = i
		}
	}
	return s
}

// context renders the snapshot block uncoloured, then mutes it as a whole.
func (r *renderer) context(n *tree.Node) string {
	plain := *r
	plain.colour = false
	items := make([][]string, len(n.Children))
	for i, c := range n.Children {
		items[i] = plain.item(c, 0)
	}
	lines := append([]string{n.Text}, plain.branch(items)...)
	return r.paint(r.st.Muted, strings.Join(lines, "\n"))
}

// Plain renders tr without colour using the default two-space indent.
func Plain(tr *tree.Tree) string {
	return Render(tr, Options{IndentSize: 2})
}
