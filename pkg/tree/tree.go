// Package tree defines the renderer-agnostic representation produced by the
// value transformer and consumed by the terminal and HTML renderers.
package tree

import (
	"github.com/cockroachdb/errors"
)

// Kind tags a node. The set is closed; see ParseKind.
type Kind string

const (
	KindContainerArray  Kind = "container-array"
	KindContainerObject Kind = "container-object"
	KindArrayItem       Kind = "array-item"
	KindString          Kind = "string"
	KindNumber          Kind = "number"
	KindBool            Kind = "bool"
	KindNull            Kind = "null"
	KindUnknown         Kind = "unknown"
	KindCircular        Kind = "circular"
	KindNotice          Kind = "notice"
	KindException       Kind = "exception"
	KindJSON            Kind = "json"
	KindJSONBody        Kind = "json-body"
	KindContext         Kind = "context"
	KindPerformance     Kind = "performance"
	KindDiff            Kind = "diff"
	KindDiffItem        Kind = "diff-item"
	KindSQL             Kind = "sql"
	KindSQLExplain      Kind = "sql-explain"
)

var allKinds = []Kind{
	KindContainerArray, KindContainerObject, KindArrayItem, KindString,
	KindNumber, KindBool, KindNull, KindUnknown, KindCircular, KindNotice,
	KindException, KindJSON, KindJSONBody, KindContext, KindPerformance,
	KindDiff, KindDiffItem, KindSQL, KindSQLExplain,
}

// Kinds returns every valid kind.
func Kinds() []Kind {
	return append([]Kind(nil), allKinds...)
}

// ParseKind validates s against the closed kind set.
func ParseKind(s string) (Kind, error) {
	for _, k := range allKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Newf("unknown node kind %q", s)
}

// IsContainer reports whether k is an array or object container.
func (k Kind) IsContainer() bool {
	return k == KindContainerArray || k == KindContainerObject
}

// Well-known metadata keys.
const (
	MetaExpression  = "expression"
	MetaJSONValue   = "jsonValue"
	MetaTruncated   = "truncated"
	MetaDiffType    = "diffType"
	MetaCollapsible = "collapsible"
	MetaPreview     = "preview"
	MetaStackFrames = "stackFrames"
	MetaDurationMs  = "durationMs"
	MetaOld         = "old"
	MetaNew         = "new"
	MetaTextDiff    = "textDiff"
	MetaRaw         = "raw"
	MetaPlan        = "plan"
	MetaTypeName    = "typeName"
	MetaCount       = "count"
	MetaSummary     = "summary"
)

// Node is one element of a rendered tree.
type Node struct {
	Kind     Kind
	Text     string
	Metadata map[string]any
	Children []*Node
}

// New returns a node with an initialized metadata map.
func New(kind Kind, text string) *Node {
	return &Node{Kind: kind, Text: text, Metadata: map[string]any{}}
}

// Set stores a metadata value and returns n for chaining.
func (n *Node) Set(key string, v any) *Node {
	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}
	n.Metadata[key] = v
	return n
}

// Meta returns a metadata value.
func (n *Node) Meta(key string) (any, bool) {
	if n == nil || n.Metadata == nil {
		return nil, false
	}
	v, ok := n.Metadata[key]
	return v, ok
}

// Append adds children.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Expression returns the node's source path, if any.
func (n *Node) Expression() string {
	v, _ := n.Meta(MetaExpression)
	s, _ := v.(string)
	return s
}

// Truncated reports whether the node was cut short by a limit.
func (n *Node) Truncated() bool {
	v, _ := n.Meta(MetaTruncated)
	b, _ := v.(bool)
	return b
}

// JSONValue returns the node's JSON payload. ok is false when the key is
// absent; a present key may still hold nil (errors, circular references).
func (n *Node) JSONValue() (v any, ok bool) {
	return n.Meta(MetaJSONValue)
}

// MarkTruncated sets the truncated flag.
func (n *Node) MarkTruncated() *Node {
	return n.Set(MetaTruncated, true)
}

// Walk visits n and its descendants depth-first, pre-order. depth counts
// value nodes: array-item wrappers share the depth of the value they hold.
func Walk(n *Node, fn func(n *Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if n == nil {
		return
	}
	if !fn(n, depth) {
		return
	}
	next := depth + 1
	if n.Kind == KindArrayItem {
		next = depth
	}
	for _, c := range n.Children {
		walk(c, next, fn)
	}
}

// Tree is the result of one transform call.
type Tree struct {
	// Channel is the output target the tree was built for ("cli" or "web").
	Channel string
	// Nodes holds the value node followed by optional context and
	// performance nodes.
	Nodes []*Node
	// Truncations counts limit cuts and circular references hit while
	// building the tree.
	Truncations int
}

// Value returns the primary value node.
func (t *Tree) Value() *Node {
	if t == nil || len(t.Nodes) == 0 {
		return nil
	}
	return t.Nodes[0]
}

// Find returns the first top-level node of the given kind.
func (t *Tree) Find(kind Kind) *Node {
	if t == nil {
		return nil
	}
	for _, n := range t.Nodes {
		if n.Kind == kind {
			return n
		}
	}
	return nil
}
