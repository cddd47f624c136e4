package inspect

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/oakwood-commons/dumpx/internal/exception"
	"github.com/oakwood-commons/dumpx/internal/redact"
	"github.com/oakwood-commons/dumpx/pkg/ordered"
	"github.com/oakwood-commons/dumpx/pkg/tree"
)

func transform(t *testing.T, v any, overrides map[string]any) *tree.Tree {
	t.Helper()
	o, err := OptionsFromMap(overrides)
	require.NoError(t, err)
	req, err := NewRequest(v, ChannelCLI, o, nil)
	require.NoError(t, err)
	return NewTransformer().Transform(context.Background(), req)
}

func jsonOf(t *testing.T, n *tree.Node) string {
	t.Helper()
	v, ok := n.JSONValue()
	require.True(t, ok)
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func child(t *testing.T, n *tree.Node, key string) *tree.Node {
	t.Helper()
	for _, c := range n.Children {
		if c.Kind == tree.KindArrayItem && c.Text == key {
			require.Len(t, c.Children, 1)
			return c.Children[0]
		}
	}
	t.Fatalf("no child %q under %q", key, n.Text)
	return nil
}

type user struct {
	Name   string
	Email  string
	secret string
	hook   func()
}

type node struct {
	Name string
	Next *node
}

type dynamic struct {
	ID int
}

func (dynamic) DynamicFields() map[string]any {
	return map[string]any{"extra": "yes", "ID": 99}
}

func TestScalars(t *testing.T) {
	tests := []struct {
		name string
		v    any
		kind tree.Kind
		text string
		json string
	}{
		{"int", 42, tree.KindNumber, "int(42)", "42"},
		{"uint", uint8(7), tree.KindNumber, "uint(7)", "7"},
		{"float", 3.14, tree.KindNumber, "float(3.14)", "3.14"},
		{"complex", complex(1, 2), tree.KindNumber, "complex(1+2i)", `"1+2i"`},
		{"bool", true, tree.KindBool, "bool(true)", "true"},
		{"nil", nil, tree.KindNull, "null", "null"},
		{"nil pointer", (*user)(nil), tree.KindNull, "null", "null"},
		{"string", "hi", tree.KindString, `string(2) "hi"`, `"hi"`},
		{"duration", 1500 * time.Millisecond, tree.KindString, "duration(1.5s)", `"1.5s"`},
		{"time", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), tree.KindString, "time.Time(2024-01-02T03:04:05Z)", `"2024-01-02T03:04:05Z"`},
		{"json number", json.Number("12"), tree.KindNumber, "int(12)", "12"},
		{"channel", make(chan int), tree.KindUnknown, "chan int", "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := transform(t, tt.v, nil).Value()
			assert.Equal(t, tt.kind, n.Kind)
			assert.Equal(t, tt.text, n.Text)
			assert.Equal(t, tt.json, jsonOf(t, n))
			assert.Equal(t, RootExpression, n.Expression())
		})
	}
}

func TestScenarioMapOnTerminal(t *testing.T) {
	out, err := Dump(map[string]any{"a": 1}, "cli", map[string]any{"color": false})
	require.NoError(t, err)
	assert.Contains(t, out, "array(1)")
	assert.Contains(t, out, "a: int(1)")
	assert.NotContains(t, out, "\x1b[")
}

func TestMapOrder(t *testing.T) {
	tr := transform(t, map[string]int{"b": 2, "a": 1, "c": 3}, nil)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, jsonOf(t, tr.Value()))

	om := ordered.FromPairs("z", 1, "y", 2)
	tr = transform(t, om, nil)
	assert.Equal(t, `{"z":1,"y":2}`, jsonOf(t, tr.Value()))

	tr = transform(t, map[int]string{10: "x", 2: "y"}, nil)
	assert.Equal(t, "$value[2]", child(t, tr.Value(), "2").Expression())
	assert.Equal(t, "2", tr.Value().Children[0].Text)
}

func TestScenarioCircular(t *testing.T) {
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b

	tr := transform(t, a, nil)
	var circular []*tree.Node
	tree.Walk(tr.Value(), func(n *tree.Node, _ int) bool {
		if n.Kind == tree.KindCircular {
			circular = append(circular, n)
		}
		return true
	})
	require.Len(t, circular, 1)
	c := circular[0]
	assert.Empty(t, c.Children)
	assert.True(t, c.Truncated())
	jv, ok := c.JSONValue()
	assert.True(t, ok)
	assert.Nil(t, jv)
	assert.Equal(t, "$value->Next->Next", c.Expression())
	assert.Equal(t, 1, tr.Truncations)

	m := map[string]any{}
	m["self"] = m
	tr = transform(t, m, nil)
	assert.Equal(t, tree.KindCircular, child(t, tr.Value(), "self").Kind)

	s := []any{nil}
	s[0] = s
	tr = transform(t, s, nil)
	assert.Equal(t, tree.KindCircular, child(t, tr.Value(), "0").Kind)
}

func TestSharedValuesAreNotCircular(t *testing.T) {
	shared := []int{1, 2}
	leaf := &node{Name: "leaf"}
	tr := transform(t, map[string]any{"x": shared, "y": shared, "p": leaf, "q": leaf}, nil)
	tree.Walk(tr.Value(), func(n *tree.Node, _ int) bool {
		assert.NotEqual(t, tree.KindCircular, n.Kind)
		return true
	})
	assert.Equal(t, 0, tr.Truncations)
}

func nested(depth int) any {
	var v any = "leaf"
	for i := 0; i < depth; i++ {
		v = map[string]any{"k": v}
	}
	return v
}

func TestScenarioDepthLimit(t *testing.T) {
	tr := transform(t, nested(20), map[string]any{"maxDepth": 3})
	maxSeen := 0
	tree.Walk(tr.Value(), func(n *tree.Node, depth int) bool {
		if depth > maxSeen {
			maxSeen = depth
		}
		if n.Kind.IsContainer() && depth == 3 {
			assert.Empty(t, n.Children)
			assert.True(t, n.Truncated())
			assert.Contains(t, n.Text, "truncated (depth limit)")
			assert.Equal(t, `{"__truncated__":true,"__reason__":"depth"}`, jsonOf(t, n))
		}
		return true
	})
	assert.Equal(t, 3, maxSeen)
	assert.Equal(t, 1, tr.Truncations)
}

func TestDepthCountsPointersTransparently(t *testing.T) {
	tr := transform(t, &node{Name: "a", Next: &node{Name: "b"}}, map[string]any{"maxDepth": 1})
	next := child(t, tr.Value(), "Next:public")
	assert.Equal(t, tree.KindContainerObject, next.Kind)
	assert.True(t, next.Truncated())
	assert.Equal(t, "object(inspect.node) … truncated (depth limit)", next.Text)
	assert.Equal(t, `{"__truncated__":true,"__reason__":"depth","__class":"inspect.node"}`, jsonOf(t, next))
}

func TestItemLimit(t *testing.T) {
	big := make([]int, 100000)
	for i := range big {
		big[i] = i
	}
	tests := []struct {
		name  string
		opts  map[string]any
		limit int
	}{
		{"max items", map[string]any{"maxItems": 10}, 10},
		{"hard limit wins", map[string]any{"maxItems": 50, "maxItemsHardLimit": 20}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			tr := transform(t, big, tt.opts)
			assert.Less(t, time.Since(start), 2*time.Second)

			root := tr.Value()
			require.Len(t, root.Children, tt.limit+1)
			last := root.Children[tt.limit]
			assert.Equal(t, tree.KindNotice, last.Kind)
			assert.Equal(t, fmt.Sprintf("… truncated (items: 100000, limit: %d)", tt.limit), last.Text)
			assert.True(t, root.Truncated())

			var sentinel struct {
				Truncated bool  `json:"__truncated__"`
				Items     []int `json:"__items__"`
			}
			require.NoError(t, json.Unmarshal([]byte(jsonOf(t, root)), &sentinel))
			assert.True(t, sentinel.Truncated)
			assert.Len(t, sentinel.Items, tt.limit)
		})
	}
}

func TestItemBoundHolds(t *testing.T) {
	v := map[string]any{}
	for i := 0; i < 30; i++ {
		v[fmt.Sprintf("k%02d", i)] = []int{1, 2, 3, 4, 5, 6, 7}
	}
	tr := transform(t, v, map[string]any{"maxItems": 5})
	tree.Walk(tr.Value(), func(n *tree.Node, _ int) bool {
		if !n.Kind.IsContainer() {
			return true
		}
		items, notices := 0, 0
		for _, c := range n.Children {
			switch c.Kind {
			case tree.KindArrayItem:
				items++
			case tree.KindNotice:
				notices++
			}
		}
		assert.LessOrEqual(t, items, 5)
		assert.LessOrEqual(t, notices, 1)
		return true
	})
}

func TestRuneSafeTruncation(t *testing.T) {
	tr := transform(t, "héllo wörld", map[string]any{"stringLengthLimit": 4})
	n := tr.Value()
	jv, _ := n.JSONValue()
	assert.Equal(t, "héll", jv)
	assert.Equal(t, `string(11) "héll"…`, n.Text)
	assert.True(t, n.Truncated())
	assert.Equal(t, 1, tr.Truncations)
}

func TestJSONValueRoundTrip(t *testing.T) {
	raw := `{"name":"x","tags":["a","b"],"nested":{"n":1.5,"ok":true,"nil":null},"list":[1,2,3]}`
	v, err := ordered.ParseJSON([]byte(raw))
	require.NoError(t, err)
	tr := transform(t, v, nil)
	assert.JSONEq(t, raw, jsonOf(t, tr.Value()))
	assert.Equal(t, raw, jsonOf(t, tr.Value()))
}

func TestAutoDetectJSONString(t *testing.T) {
	tr := transform(t, map[string]any{"body": `{"b":1,"a":2}`}, map[string]any{"autoDetectJson": true})
	body := child(t, tr.Value(), "body")
	assert.Equal(t, tree.KindJSON, body.Kind)
	assert.Equal(t, "$value['body']", body.Expression())
	assert.Equal(t, `{"b":1,"a":2}`, jsonOf(t, body))

	tr = transform(t, map[string]any{"body": `{"b":1}`}, nil)
	assert.Equal(t, tree.KindString, child(t, tr.Value(), "body").Kind)
}

func TestAutoDetectSQLString(t *testing.T) {
	q := "select id from users where id = 1"
	tr := transform(t, q, map[string]any{"autoDetectSql": true})
	assert.Equal(t, tree.KindSQL, tr.Value().Kind)
	assert.Contains(t, tr.Value().Text, "SELECT")
	jv, _ := tr.Value().JSONValue()
	assert.Equal(t, q, jv)
}

func TestErrorValues(t *testing.T) {
	err := errors.Wrap(errors.New("disk full"), "save failed")
	tr := transform(t, map[string]any{"err": err}, nil)
	n := child(t, tr.Value(), "err")
	assert.Equal(t, tree.KindException, n.Kind)
	assert.Equal(t, "$value['err']", n.Expression())
	jv, ok := n.JSONValue()
	assert.True(t, ok)
	assert.Nil(t, jv)
	assert.Contains(t, n.Text, "Message: save failed")
	assert.Contains(t, n.Text, "Caused by:")

	obj := transform(t, map[string]any{"err": err}, nil).Value()
	assert.Equal(t, `{"err":null}`, jsonOf(t, obj))
}

func TestVariableSnapshotOnRootError(t *testing.T) {
	o := DefaultOptions()
	o.IncludeVariableSnapshots = true
	o.RedactionRules = []redact.Spec{{Pattern: "token", Scope: "context"}}
	snap := &Snapshot{Variables: map[string]any{"userID": 7, "token": "abc"}}
	req, err := NewRequest(errors.New("boom"), ChannelCLI, o, snap)
	require.NoError(t, err)
	n := NewTransformer().Transform(context.Background(), req).Value()
	assert.Contains(t, n.Text, "Variables:\n  token = [redacted]\n  userID = 7")
}

func TestObjects(t *testing.T) {
	u := user{Name: "Ada", Email: "ada@example.com", secret: "s3"}
	tr := transform(t, u, nil)
	root := tr.Value()
	assert.Equal(t, tree.KindContainerObject, root.Kind)
	assert.Equal(t, "object(inspect.user)", root.Text)

	var keys []string
	for _, c := range root.Children {
		keys = append(keys, c.Text)
	}
	assert.Equal(t, []string{"Name:public", "Email:public", "secret:private(inspect.user)", "hook:private(inspect.user)"}, keys)
	assert.Equal(t, `string(2) "s3"`, child(t, root, "secret:private(inspect.user)").Text)
	assert.Equal(t, Uninitialized, child(t, root, "hook:private(inspect.user)").Text)
	assert.Equal(t, "$value->Name", child(t, root, "Name:public").Expression())
	assert.Equal(t,
		`{"__class":"inspect.user","properties":{"Name":"Ada","Email":"ada@example.com","secret":"s3","hook":null}}`,
		jsonOf(t, root))
}

func TestDynamicFields(t *testing.T) {
	root := transform(t, &dynamic{ID: 1}, nil).Value()
	require.Len(t, root.Children, 2)
	assert.Equal(t, "int(1)", child(t, root, "ID:public").Text)
	assert.Equal(t, `string(3) "yes"`, child(t, root, "extra:public").Text)
}

func TestPayloadRedaction(t *testing.T) {
	v := map[string]any{
		"password": "hunter2",
		"user":     user{Name: "Ada", secret: "s3"},
		"list":     ordered.FromPairs("Password", "p"),
	}
	tr := transform(t, v, map[string]any{
		"redactionRules": []any{
			map[string]any{"pattern": "password"},
			map[string]any{"pattern": "/^sec/", "replacement": "***"},
			map[string]any{"pattern": "Name", "scope": "context"},
		},
	})
	root := tr.Value()
	assert.Equal(t, `string(10) "[redacted]"`, child(t, root, "password").Text)
	assert.Equal(t, `string(3) "***"`, child(t, child(t, root, "user"), "secret:private(inspect.user)").Text)
	assert.Equal(t, `string(3) "Ada"`, child(t, child(t, root, "user"), "Name:public").Text)
	assert.Equal(t, `string(10) "[redacted]"`, child(t, child(t, root, "list"), "Password").Text)
}

func TestContextAndPerformanceNodes(t *testing.T) {
	tr := transform(t, 1, map[string]any{"showPerformance": true})
	require.Len(t, tr.Nodes, 2)
	perf := tr.Find(tree.KindPerformance)
	require.NotNil(t, perf)
	assert.True(t, strings.HasPrefix(perf.Text, "Rendered in "))
	_, ok := perf.Meta(tree.MetaDurationMs)
	assert.True(t, ok)

	o := DefaultOptions()
	o.ShowContext = true
	o.RedactionRules = []redact.Spec{{Pattern: "API_KEY", Scope: "context"}}
	req, err := NewRequest(1, ChannelCLI, o, nil)
	require.NoError(t, err)
	d := New(WithCollector(stubCollector{snap: &Snapshot{Env: map[string]any{"API_KEY": "k", "HOME": "/root"}}}))
	tr = d.Tree(context.Background(), req)
	ctxNode := tr.Find(tree.KindContext)
	require.NotNil(t, ctxNode)
	assert.Equal(t, "Context", ctxNode.Text)
	env := child(t, ctxNode, "env")
	assert.Equal(t, `string(10) "[redacted]"`, child(t, env, "API_KEY").Text)
	assert.Equal(t, `string(5) "/root"`, child(t, env, "HOME").Text)
}

type stubCollector struct{ snap *Snapshot }

func (s stubCollector) Collect(context.Context) (*Snapshot, error) { return s.snap, nil }

func TestDefaultCollectorFindsCaller(t *testing.T) {
	o := DefaultOptions()
	o.ShowContext = true
	req, err := NewRequest("x", ChannelCLI, o, nil)
	require.NoError(t, err)
	tr := New().Tree(context.Background(), req)
	ctxNode := tr.Find(tree.KindContext)
	require.NotNil(t, ctxNode)
	assert.Contains(t, child(t, ctxNode, "origin").Text, "transformer_test.go")
}

func TestConcurrentTransforms(t *testing.T) {
	tf := NewTransformer()
	shared := map[string]any{"a": []any{1, 2, 3}, "b": map[string]any{"c": "d"}}
	want := transform(t, shared, nil)

	var g errgroup.Group
	results := make([]*tree.Tree, 32)
	for i := range results {
		i := i
		g.Go(func() error {
			req, err := NewRequest(shared, ChannelWeb, DefaultOptions(), nil)
			if err != nil {
				return err
			}
			results[i] = tf.Transform(context.Background(), req)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for _, r := range results {
		assert.Empty(t, cmp.Diff(jsonOf(t, want.Value()), jsonOf(t, r.Value())))
	}
}

func TestPanickingFieldIsInaccessible(t *testing.T) {
	tr := transform(t, map[string]any{"bad": panicky{}}, nil)
	bad := child(t, tr.Value(), "bad")
	assert.Equal(t, tree.KindContainerObject, bad.Kind)
	assert.Empty(t, bad.Children)
}

type panicky struct{}

func (panicky) DynamicFields() map[string]any { panic("no fields") }

type brokenError struct{}

func (brokenError) Error() string { panic("boom") }

func TestPanickingErrorAtRoot(t *testing.T) {
	var out string
	require.NotPanics(t, func() {
		var err error
		out, err = Dump(brokenError{}, "cli", map[string]any{"color": false})
		require.NoError(t, err)
	})
	assert.Contains(t, out, Inaccessible)

	tr := transform(t, brokenError{}, map[string]any{"redactUnsafeDetails": true})
	assert.Contains(t, tr.Value().Text, "Message: "+Inaccessible)
}

func TestScenarioStdlibErrorChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", stderrors.New("inner"))
	n := transform(t, err, nil).Value()
	require.Equal(t, tree.KindException, n.Kind)
	assert.Contains(t, n.Text, "Message: outer\n")
	assert.Contains(t, n.Text, "Caused by: *errors.errorString (code: 0)")
	assert.Contains(t, n.Text, "Trace:\n  #0 ")

	frames, ok := n.Metadata[tree.MetaStackFrames].([]exception.Frame)
	require.True(t, ok)
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[0].File, "transformer_test.go")
}

func TestJSONPreviewFollowsStringLimit(t *testing.T) {
	raw := `{"items":[` + strings.TrimSuffix(strings.Repeat(`"abcdefgh",`, 20), ",") + `]}`
	tr := transform(t, raw, map[string]any{"autoDetectJson": true, "stringLengthLimit": 10})
	n := tr.Value()
	require.Equal(t, tree.KindJSON, n.Kind)
	assert.Equal(t, `{"items":[…`, n.Metadata[tree.MetaPreview])
}
