// Package html serializes rendered trees to a self-contained HTML fragment:
// a stylesheet, a collapsible data-attributed tree and a companion script.
package html

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"github.com/oakwood-commons/dumpx/internal/exception"
	"github.com/oakwood-commons/dumpx/internal/jsonfmt"
	"github.com/oakwood-commons/dumpx/internal/sqlfmt"
	"github.com/oakwood-commons/dumpx/pkg/ordered"
	"github.com/oakwood-commons/dumpx/pkg/tree"
)

// openDepth is the number of container levels expanded on load.
const openDepth = 2

// summaryLines caps the "Label: value" lines shown in an exception summary.
const summaryLines = 2

// Options controls HTML output.
type Options struct {
	// Theme is light, dark or auto. Empty means auto.
	Theme                 string
	ExpandExceptions      bool
	ShowTableVariableMeta bool
	ShowExpressions       bool
	// Light and Dark override the built-in palettes.
	Light *Palette
	Dark  *Palette
}

type renderer struct {
	opts Options
	b    bytes.Buffer
}

// Render serializes tr. Only encoding failures are returned as errors.
func Render(tr *tree.Tree, o Options) (string, error) {
	if o.Theme == "" {
		o.Theme = "auto"
	}
	if o.Light == nil {
		o.Light = Light
	}
	if o.Dark == nil {
		o.Dark = Dark
	}
	r := &renderer{opts: o}
	id, err := dumpID(tr)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&r.b, `<div class="dumpx" id="%s" data-theme="%s" data-theme-preference="%s" data-table-meta="%t">`,
		id, html.EscapeString(o.Theme), html.EscapeString(o.Theme), o.ShowTableVariableMeta)
	r.b.WriteString("<style>")
	r.b.WriteString(Style(o.Light, o.Dark))
	r.b.WriteString("</style>")
	r.b.WriteString(`<div class="dumpx-toolbar"><button type="button" data-action="theme" title="Toggle theme">theme</button></div>`)
	if tr != nil {
		for _, n := range tr.Nodes {
			if err := r.node(n, 0, ""); err != nil {
				return "", err
			}
		}
	}
	r.b.WriteString("<script>")
	r.b.WriteString(script)
	r.b.WriteString("</script></div>")
	return r.b.String(), nil
}

// Document wraps one or more rendered fragments in a standalone page.
func Document(title string, fragments ...string) string {
	var b strings.Builder
	b.WriteString("<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title></head><body>\n")
	for _, f := range fragments {
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

// dumpID hashes the tree's texts and JSON values into a stable element id.
func dumpID(tr *tree.Tree) (string, error) {
	h := xxhash.New()
	if tr != nil {
		for _, n := range tr.Nodes {
			_, _ = h.WriteString(string(n.Kind))
			_, _ = h.WriteString(n.Text)
			if v, ok := n.JSONValue(); ok {
				data, err := json.Marshal(v)
				if err != nil {
					return "", errors.Wrap(err, "hash payload")
				}
				_, _ = h.Write(data)
			}
		}
	}
	return fmt.Sprintf("dumpx-%016x", h.Sum64()), nil
}

// attrs renders the data attributes shared by every node element.
func (r *renderer) attrs(n *tree.Node, depth int) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, ` class="dumpx-node dumpx-%s" data-node-type="%s" data-depth="%d"`, n.Kind, n.Kind, depth)
	if expr := n.Expression(); expr != "" {
		fmt.Fprintf(&b, ` data-expression="%s"`, html.EscapeString(expr))
	}
	if n.Truncated() {
		b.WriteString(` data-truncated="true"`)
	}
	if v, ok := n.JSONValue(); ok && v != nil {
		enc, err := EncodeJSON(v)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, ` data-json="%s"`, enc)
	}
	return b.String(), nil
}

// EncodeJSON marshals v and escapes it for a double-quoted attribute. The
// companion script reverses it with decodeURIComponent.
func EncodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "encode data-json")
	}
	return html.EscapeString(url.PathEscape(string(data))), nil
}

func (r *renderer) text(n *tree.Node) string {
	s := `<span class="dumpx-text">` + html.EscapeString(n.Text) + `</span>`
	if r.opts.ShowExpressions {
		if expr := n.Expression(); expr != "" {
			s += `<span class="dumpx-expression">(` + html.EscapeString(expr) + `)</span>`
		}
	}
	return s
}

func keySpan(key string) string {
	if key == "" {
		return ""
	}
	return `<span class="dumpx-key">` + html.EscapeString(key) + `</span>: `
}

// actions renders the search/copy/table buttons for nodes carrying a
// jsonValue.
func actions(n *tree.Node) string {
	v, ok := n.JSONValue()
	if !ok || v == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<span class="dumpx-actions">`)
	if len(n.Children) > 0 {
		b.WriteString(`<button type="button" data-action="search">search</button>`)
	}
	b.WriteString(`<button type="button" data-action="copy">copy</button>`)
	if Tabular(v) {
		b.WriteString(`<button type="button" data-action="table">table</button>`)
	}
	b.WriteString(`</span>`)
	return b.String()
}

func (r *renderer) node(n *tree.Node, depth int, key string) error {
	switch n.Kind {
	case tree.KindArrayItem:
		return r.item(n, depth)
	case tree.KindException:
		return r.exception(n, depth, key)
	case tree.KindJSON:
		return r.json(n, depth, key)
	case tree.KindSQL:
		return r.sql(n, depth, key)
	case tree.KindDiff, tree.KindDiffItem:
		return r.diff(n, depth, key)
	}
	a, err := r.attrs(n, depth)
	if err != nil {
		return err
	}
	if len(n.Children) == 0 {
		fmt.Fprintf(&r.b, `<div%s>%s%s%s</div>`, a, keySpan(key), r.text(n), actions(n))
		return nil
	}
	open := ""
	if depth < openDepth || n.Kind == tree.KindContext {
		open = " open"
	}
	fmt.Fprintf(&r.b, `<details%s%s><summary>%s%s%s</summary>`, a, open, keySpan(key), r.text(n), actions(n))
	for _, c := range n.Children {
		if err := r.node(c, depth+1, ""); err != nil {
			return err
		}
	}
	r.b.WriteString("</details>")
	return nil
}

// item wraps its value so the key shares the value's summary line. Items
// share the depth of the value they hold.
func (r *renderer) item(n *tree.Node, depth int) error {
	fmt.Fprintf(&r.b, `<div class="dumpx-item" data-node-type="%s" data-depth="%d">`, n.Kind, depth)
	if len(n.Children) == 0 {
		r.b.WriteString(keySpan(n.Text))
	}
	for _, c := range n.Children {
		if err := r.node(c, depth, n.Text); err != nil {
			return err
		}
	}
	r.b.WriteString("</div>")
	return nil
}

// labelled splits "Label: value" lines.
func labelled(block string) [][2]string {
	var out [][2]string
	for _, l := range strings.Split(block, "\n") {
		if strings.HasPrefix(l, " ") {
			continue
		}
		if k, v, ok := strings.Cut(l, ": "); ok {
			out = append(out, [2]string{k, v})
		}
	}
	return out
}

func (r *renderer) exception(n *tree.Node, depth int, key string) error {
	a, err := r.attrs(n, depth)
	if err != nil {
		return err
	}
	open := ""
	if r.opts.ExpandExceptions {
		open = " open"
	}
	blocks := strings.Split(n.Text, "\n\n")
	pairs := labelled(blocks[0])
	var sum []string
	for i, p := range pairs {
		if i == summaryLines {
			break
		}
		sum = append(sum, html.EscapeString(p[0]+": "+p[1]))
	}
	fmt.Fprintf(&r.b, `<details%s%s><summary>%s<span class="dumpx-text">%s</span>%s</summary>`,
		a, open, keySpan(key), strings.Join(sum, " · "), actions(n))

	r.b.WriteString(`<details class="dumpx-exception-more"><summary>details</summary><table class="dumpx-exception-info">`)
	for i, blk := range blocks {
		for _, p := range labelled(blk) {
			if p[0] == "Trace" {
				continue
			}
			label := p[0]
			if i > 0 && label != "Caused by" {
				label = fmt.Sprintf("%s #%d", label, i)
			}
			fmt.Fprintf(&r.b, `<tr><th>%s</th><td>%s</td></tr>`, html.EscapeString(label), html.EscapeString(p[1]))
		}
	}
	r.b.WriteString(`</table></details>`)

	frames, _ := n.Meta(tree.MetaStackFrames)
	if fs, ok := frames.([]exception.Frame); ok && len(fs) > 0 {
		r.b.WriteString(`<ol class="dumpx-frames" start="0">`)
		for _, f := range fs {
			fn := f.Function
			if f.Class != "" {
				fn = f.Class + f.CallType + f.Function
			}
			fmt.Fprintf(&r.b, `<li data-link="%d"><code>%s</code> %s()</li>`,
				f.Link, html.EscapeString(f.Location()), html.EscapeString(fn))
		}
		r.b.WriteString(`</ol>`)
	}
	if strings.Contains(n.Text, "\nVariables:") {
		_, vars, _ := strings.Cut(n.Text, "\nVariables:")
		vars, _, _ = strings.Cut(vars, "\n\n")
		fmt.Fprintf(&r.b, `<pre class="dumpx-exception-vars">%s</pre>`, html.EscapeString(strings.TrimLeft(vars, "\n")))
	}
	r.b.WriteString("</details>")
	return nil
}

var jsonClasses = map[jsonfmt.TokenClass]string{
	jsonfmt.Key:     "dumpx-json-key",
	jsonfmt.String:  "dumpx-json-string",
	jsonfmt.Number:  "dumpx-json-number",
	jsonfmt.Keyword: "dumpx-json-keyword",
}

// HighlightJSON escapes text and wraps each token run in a class span.
func HighlightJSON(text string) string {
	var b strings.Builder
	jsonfmt.Scan(text, func(c jsonfmt.TokenClass, s string) {
		esc := html.EscapeString(s)
		if cls, ok := jsonClasses[c]; ok {
			b.WriteString(`<span class="` + cls + `">` + esc + `</span>`)
			return
		}
		b.WriteString(esc)
	})
	return b.String()
}

func (r *renderer) json(n *tree.Node, depth int, key string) error {
	a, err := r.attrs(n, depth)
	if err != nil {
		return err
	}
	preview := ""
	if v, ok := n.Meta(tree.MetaPreview); ok {
		if s, _ := v.(string); s != "" {
			preview = `<span class="dumpx-preview">` + html.EscapeString(s) + `</span>`
		}
	}
	fmt.Fprintf(&r.b, `<details%s><summary>%s%s%s%s</summary>`, a, keySpan(key), r.text(n), preview, actions(n))
	for _, c := range n.Children {
		if c.Kind == tree.KindJSONBody {
			ca, err := r.attrs(c, depth+1)
			if err != nil {
				return err
			}
			fmt.Fprintf(&r.b, `<pre%s>%s</pre>`, ca, HighlightJSON(c.Text))
		}
	}
	r.b.WriteString("</details>")
	return nil
}

func (r *renderer) sql(n *tree.Node, depth int, key string) error {
	a, err := r.attrs(n, depth)
	if err != nil {
		return err
	}
	first, _, _ := strings.Cut(n.Text, "\n")
	fmt.Fprintf(&r.b, `<details%s open><summary>%s<span class="dumpx-text">sql</span><span class="dumpx-preview">%s</span>%s</summary>`,
		a, keySpan(key), html.EscapeString(first), actions(n))
	fmt.Fprintf(&r.b, `<div class="dumpx-sql-body">%s</div>`, sqlfmt.HighlightHTML(n.Text))
	for _, c := range n.Children {
		if c.Kind != tree.KindSQLExplain {
			continue
		}
		ca, err := r.attrs(c, depth+1)
		if err != nil {
			return err
		}
		fmt.Fprintf(&r.b, `<details%s><summary>plan%s</summary><pre>%s</pre></details>`, ca, actions(c), html.EscapeString(c.Text))
	}
	r.b.WriteString("</details>")
	return nil
}

func (r *renderer) diff(n *tree.Node, depth int, key string) error {
	a, err := r.attrs(n, depth)
	if err != nil {
		return err
	}
	dt, _ := n.Meta(tree.MetaDiffType)
	cls := fmt.Sprintf(` dumpx-diff-%v`, dt)
	a = strings.Replace(a, `class="dumpx-node`, `class="dumpx-node`+cls, 1)
	line := `<span class="dumpx-diff-line">` + keySpan(key) + html.EscapeString(n.Text) + `</span>`
	if n.Kind == tree.KindDiff {
		line += `<span class="dumpx-preview">` + html.EscapeString(summaryText(n)) + `</span>`
	}
	var td string
	if v, ok := n.Meta(tree.MetaTextDiff); ok {
		if s, _ := v.(string); s != "" {
			td = `<pre class="dumpx-text-diff">` + html.EscapeString(s) + `</pre>`
		}
	}
	if len(n.Children) == 0 {
		fmt.Fprintf(&r.b, `<div%s>%s%s</div>`, a, line, td)
		return nil
	}
	fmt.Fprintf(&r.b, `<details%s open><summary>%s</summary>%s`, a, line, td)
	for _, c := range n.Children {
		if err := r.node(c, depth+1, ""); err != nil {
			return err
		}
	}
	r.b.WriteString("</details>")
	return nil
}

func summaryText(n *tree.Node) string {
	v, _ := n.Meta(tree.MetaSummary)
	m, _ := v.(map[string]any)
	var parts []string
	for _, k := range []string{"added", "removed", "modified", "unchanged"} {
		if c, ok := m[k].(int); ok && c > 0 {
			parts = append(parts, strconv.Itoa(c)+" "+k)
		}
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// Tabular reports whether v normalizes to a non-empty list of rows that
// are all maps or all lists. Truncation and object wrappers are unwrapped.
func Tabular(v any) bool {
	rows := rowsOf(unwrap(v))
	if len(rows) == 0 {
		return false
	}
	shape := ""
	for _, row := range rows {
		var s string
		switch unwrap(row).(type) {
		case *ordered.Map, map[string]any:
			s = "map"
		case []any:
			s = "list"
		default:
			return false
		}
		if shape == "" {
			shape = s
		} else if s != shape {
			return false
		}
	}
	return true
}

func unwrap(v any) any {
	m, ok := v.(*ordered.Map)
	if !ok {
		return v
	}
	if t, _ := m.Get("__truncated__"); t == true {
		if items, ok := m.Get("__items__"); ok {
			return unwrap(items)
		}
	}
	if _, ok := m.Get("__class"); ok {
		if props, ok := m.Get("properties"); ok {
			return unwrap(props)
		}
	}
	return m
}

func rowsOf(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case *ordered.Map:
		out := make([]any, 0, t.Len())
		t.Range(func(_ string, v any) bool {
			out = append(out, v)
			return true
		})
		return out
	case map[string]any:
		out := make([]any, 0, len(t))
		for _, v := range t {
			out = append(out, v)
		}
		return out
	}
	return nil
}
