package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/dumpx/internal/diff"
	"github.com/oakwood-commons/dumpx/internal/jsonfmt"
	"github.com/oakwood-commons/dumpx/pkg/tree"
)

func sample() *tree.Tree {
	inner := tree.New(tree.KindContainerArray, "array(2)").Append(
		tree.New(tree.KindArrayItem, "0").Append(tree.New(tree.KindNumber, "int(1)")),
		tree.New(tree.KindArrayItem, "1").Append(tree.New(tree.KindNumber, "int(2)")),
	)
	root := tree.New(tree.KindContainerArray, "array(2)").Append(
		tree.New(tree.KindArrayItem, "a").Append(tree.New(tree.KindString, `string(2) "hi"`).Set(tree.MetaExpression, "$value['a']")),
		tree.New(tree.KindArrayItem, "list").Append(inner),
	)
	return &tree.Tree{Channel: "cli", Nodes: []*tree.Node{root}}
}

func TestRenderConnectors(t *testing.T) {
	out := Render(sample(), Options{IndentSize: 2})
	want := strings.Join([]string{
		"array(2)",
		`├── a:    string(2) "hi"`,
		"└── list: array(2)",
		"    ├── 0: int(1)",
		"    └── 1: int(2)",
		"",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestRenderAlignsValuesAfterColon(t *testing.T) {
	root := tree.New(tree.KindContainerObject, "object(Item)").Append(
		tree.New(tree.KindArrayItem, "Items:public").Append(tree.New(tree.KindContainerArray, "array(0)")),
		tree.New(tree.KindArrayItem, "id:public").Append(tree.New(tree.KindNumber, "int(7)")),
	)
	out := Render(&tree.Tree{Channel: "cli", Nodes: []*tree.Node{root}}, Options{IndentSize: 2})
	assert.Contains(t, out, "├── Items:public: array(0)")
	assert.Contains(t, out, "└── id:public:    int(7)")
	assert.NotContains(t, out, " :")
}

func TestRenderIndentOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"four spaces", Options{IndentSize: 4}, "      └──── 1: int(2)"},
		{"tabs", Options{IndentStyle: IndentTabs}, "\t└─\t1: int(2)"},
		{"zero", Options{}, "  └ 1: int(2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := strings.Split(strings.TrimRight(Render(sample(), tt.opts), "\n"), "\n")
			assert.Equal(t, tt.want, lines[len(lines)-1])
		})
	}
}

func TestRenderNoEscapesWithoutColor(t *testing.T) {
	out := Render(sample(), Options{IndentSize: 2, Color: false})
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderColorEmitsEscapes(t *testing.T) {
	out := Render(sample(), Options{IndentSize: 2, Color: true})
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "int(1)")
}

func TestRenderExpressions(t *testing.T) {
	out := Render(sample(), Options{IndentSize: 2, ShowExpressions: true})
	assert.Contains(t, out, `string(2) "hi" ($value['a'])`)
}

func TestRenderContextAndPerformanceBlocks(t *testing.T) {
	tr := sample()
	ctx := tree.New(tree.KindContext, "Context").Append(
		tree.New(tree.KindArrayItem, "origin").Append(tree.New(tree.KindString, `string(9) "main.go:1"`)),
	)
	tr.Nodes = append(tr.Nodes, ctx, tree.New(tree.KindPerformance, "Rendered in 0.100ms"))
	out := Render(tr, Options{IndentSize: 2})
	blocks := strings.Split(strings.TrimRight(out, "\n"), "\n\n")
	require.Len(t, blocks, 3)
	assert.Equal(t, "Context\n└── origin: string(9) \"main.go:1\"", blocks[1])
	assert.Equal(t, "Rendered in 0.100ms", blocks[2])
}

func TestRenderExceptionBlock(t *testing.T) {
	exc := tree.New(tree.KindException, "Exception: *errors.errorString (code: 0)\nMessage: boom\nLocation: unknown\nTrace:")
	root := tree.New(tree.KindContainerArray, "array(1)").Append(
		tree.New(tree.KindArrayItem, "err").Append(exc),
	)
	out := Render(&tree.Tree{Nodes: []*tree.Node{root}}, Options{IndentSize: 2})
	assert.Contains(t, out, "└── err: Exception: *errors.errorString (code: 0)\n    Message: boom\n")
}

func TestRenderJSONNode(t *testing.T) {
	n := jsonfmt.Transform(`{"a":[1,true]}`, 80)
	out := Render(&tree.Tree{Nodes: []*tree.Node{n}}, Options{IndentSize: 2})
	assert.Contains(t, out, "json(14)\n  {\n")
	assert.Contains(t, out, `      "a": [`)
}

func TestRenderDiff(t *testing.T) {
	d := diff.Compare(map[string]any{"a": 1, "b": 2}, map[string]any{"a": 1, "b": 3, "c": 4}, 0)
	out := Render(&tree.Tree{Nodes: []*tree.Node{diff.ToTree(d)}}, Options{IndentSize: 2})
	assert.Contains(t, out, "diff(modified) 1 added, 1 modified, 1 unchanged")
	assert.Contains(t, out, "~ b: 2 → 3")
	assert.Contains(t, out, "+ c: 4")
	assert.Contains(t, out, "change")
}
