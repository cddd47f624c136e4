// Package diff compares two values structurally and renders the result.
package diff

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/kr/pretty"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/oakwood-commons/dumpx/internal/limiter"
	"github.com/oakwood-commons/dumpx/internal/reflectx"
	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

// Type classifies one compared key.
type Type string

const (
	Unchanged Type = "unchanged"
	Added     Type = "added"
	Removed   Type = "removed"
	Modified  Type = "modified"
)

// Node is one compared position. Children are set only when both sides
// are containers of the same category.
type Node struct {
	Type     Type
	Key      string
	Old      any
	New      any
	Children []*Node
}

// Summary counts leaf-level changes by type.
type Summary map[Type]int

// Compare diffs before against after. Depth is bounded by maxDepth; a
// non-positive value uses the default depth limit.
func Compare(before, after any, maxDepth int) *Node {
	if maxDepth <= 0 {
		maxDepth = limiter.DefaultMaxDepth
	}
	return compare("", before, after, 0, maxDepth)
}

func compare(key string, before, after any, depth, maxDepth int) *Node {
	n := &Node{Key: key, Old: before, New: after}
	if Equal(before, after) {
		n.Type = Unchanged
		return n
	}
	oc, nc := category(before), category(after)
	if depth >= maxDepth || oc != nc || oc == catScalar {
		n.Type = Modified
		return n
	}
	if oc == catObject && concrete(before) != concrete(after) {
		n.Type = Modified
		return n
	}

	oldEntries, newEntries := entries(before), entries(after)
	n.Type = Unchanged
	for _, k := range unionKeys(oldEntries, newEntries) {
		ov, inOld := oldEntries.Get(k)
		nv, inNew := newEntries.Get(k)
		var child *Node
		switch {
		case inOld && !inNew:
			child = &Node{Type: Removed, Key: k, Old: ov}
		case !inOld && inNew:
			child = &Node{Type: Added, Key: k, New: nv}
		default:
			child = compare(k, ov, nv, depth+1, maxDepth)
		}
		if child.Type != Unchanged {
			n.Type = Modified
		}
		n.Children = append(n.Children, child)
	}
	return n
}

// Equal reports deep value equality, including unexported fields.
func Equal(a, b any) (eq bool) {
	defer func() {
		if r := recover(); r != nil {
			eq = reflect.DeepEqual(a, b)
		}
	}()
	return cmp.Equal(a, b, cmp.Exporter(func(reflect.Type) bool { return true }))
}

type cat int

const (
	catScalar cat = iota
	catArray
	catObject
)

func deref(v any) reflect.Value {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func category(v any) cat {
	if _, ok := v.(*ordered.Map); ok {
		return catArray
	}
	rv := deref(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return catScalar
		}
		return catArray
	case reflect.Struct:
		return catObject
	}
	return catScalar
}

func concrete(v any) reflect.Type {
	rv := deref(v)
	if !rv.IsValid() {
		return nil
	}
	return rv.Type()
}

// entries projects a container onto an ordered key/value view. Native maps
// are sorted by key; structs become their field map.
func entries(v any) *ordered.Map {
	if m, ok := v.(*ordered.Map); ok {
		return m
	}
	rv := deref(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := ordered.New(rv.Len())
		for i := 0; i < rv.Len(); i++ {
			val, _ := reflectx.Interface(rv.Index(i))
			out.Set(strconv.Itoa(i), val)
		}
		return out
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		out := ordered.New(len(keys))
		for _, k := range keys {
			val, _ := reflectx.Interface(rv.MapIndex(k))
			out.Set(fmt.Sprint(k.Interface()), val)
		}
		return out
	case reflect.Struct:
		fields := reflectx.Fields(rv)
		out := ordered.New(len(fields))
		for _, f := range fields {
			val, _ := reflectx.Interface(f.Value)
			out.Set(f.Name, val)
		}
		return out
	}
	return ordered.New(0)
}

func unionKeys(a, b *ordered.Map) []string {
	keys := a.Keys()
	for _, k := range b.Keys() {
		if _, ok := a.Get(k); !ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Summarize counts leaf changes. Containers with children are not counted
// themselves.
func Summarize(n *Node) Summary {
	s := Summary{}
	var walk func(*Node)
	walk = func(n *Node) {
		if len(n.Children) == 0 {
			s[n.Type]++
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return s
}

// String renders "1 added, 1 modified" in a fixed type order, omitting
// zero counts.
func (s Summary) String() string {
	var parts []string
	for _, t := range []Type{Added, Removed, Modified, Unchanged} {
		if s[t] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", s[t], t))
		}
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// FormatValue renders a value for a single diff line.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(t)
	case *ordered.Map:
		return t.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(t)
	}
	return strings.Join(strings.Fields(pretty.Sprint(v)), " ")
}

// FormatLine renders one node as "+ key: new", "- key: old",
// "~ key: old → new" or "  key: value".
func FormatLine(n *Node) string {
	key := n.Key
	if key != "" {
		key += ": "
	}
	switch n.Type {
	case Added:
		return "+ " + key + FormatValue(n.New)
	case Removed:
		return "- " + key + FormatValue(n.Old)
	case Modified:
		return "~ " + key + FormatValue(n.Old) + " → " + FormatValue(n.New)
	}
	return "  " + key + FormatValue(n.Old)
}

// TextDiff returns a unified diff for a modified pair of multi-line
// strings, or "" when either side is not a multi-line string.
func TextDiff(n *Node) string {
	if n.Type != Modified {
		return ""
	}
	a, ok1 := n.Old.(string)
	b, ok2 := n.New.(string)
	if !ok1 || !ok2 || (!strings.Contains(a, "\n") && !strings.Contains(b, "\n")) {
		return ""
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "old",
		ToFile:   "new",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return out
}
