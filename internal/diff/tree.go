package diff

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/oakwood-commons/dumpx/pkg/tree"
)

// ToTree converts a diff result into a diff node with one diff-item child
// per compared key. Modified containers nest their own items.
func ToTree(n *Node) *tree.Node {
	s := Summarize(n)
	root := tree.New(tree.KindDiff, fmt.Sprintf("diff(%s)", n.Type)).
		Set(tree.MetaDiffType, string(n.Type)).
		Set(tree.MetaSummary, summaryMap(s))
	if len(n.Children) == 0 {
		root.Append(item(n))
		return root
	}
	for _, c := range n.Children {
		root.Append(item(c))
	}
	return root
}

func item(n *Node) *tree.Node {
	line := FormatLine(n)
	if len(n.Children) > 0 {
		key := n.Key
		if key == "" {
			key = "$"
		}
		marker := "  "
		if n.Type == Modified {
			marker = "~ "
		}
		line = marker + key
	}
	it := tree.New(tree.KindDiffItem, line).
		Set(tree.MetaDiffType, string(n.Type)).
		Set("key", n.Key)
	switch n.Type {
	case Added:
		it.Set(tree.MetaNew, FormatValue(n.New))
	case Removed:
		it.Set(tree.MetaOld, FormatValue(n.Old))
	default:
		it.Set(tree.MetaOld, FormatValue(n.Old)).Set(tree.MetaNew, FormatValue(n.New))
	}
	if td := TextDiff(n); td != "" {
		it.Set(tree.MetaTextDiff, td)
	}
	for _, c := range n.Children {
		it.Append(item(c))
	}
	return it
}

func summaryMap(s Summary) map[string]any {
	return map[string]any{
		string(Added):     s[Added],
		string(Removed):   s[Removed],
		string(Modified):  s[Modified],
		string(Unchanged): s[Unchanged],
	}
}

// SummaryTable renders the per-type counts as a small text table.
func SummaryTable(s Summary) string {
	var buf bytes.Buffer
	tw := tablewriter.NewWriter(&buf)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"change", "count"})
	tw.SetBorder(false)
	for _, t := range []Type{Added, Removed, Modified, Unchanged} {
		tw.Append([]string{string(t), fmt.Sprint(s[t])})
	}
	tw.Render()
	return buf.String()
}
