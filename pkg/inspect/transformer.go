package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/dumpx/internal/exception"
	"github.com/oakwood-commons/dumpx/internal/jsonfmt"
	"github.com/oakwood-commons/dumpx/internal/limiter"
	"github.com/oakwood-commons/dumpx/internal/redact"
	"github.com/oakwood-commons/dumpx/internal/reflectx"
	"github.com/oakwood-commons/dumpx/internal/sqlfmt"
	"github.com/oakwood-commons/dumpx/pkg/ordered"
	"github.com/oakwood-commons/dumpx/pkg/tree"
)

// Placeholder texts for fields that cannot be shown.
const (
	Uninitialized = "[uninitialized]"
	Inaccessible  = "[inaccessible]"
)

// RootExpression seeds child expressions when the request has none.
const RootExpression = "$value"

// DynamicFielder is implemented by values carrying fields beyond their
// declared struct fields. Names that collide with declared fields are
// ignored.
type DynamicFielder interface {
	DynamicFields() map[string]any
}

// Transformer turns requests into trees. It holds no per-call state and is
// safe for concurrent use.
type Transformer struct {
	log       logr.Logger
	explainer sqlfmt.Explainer
}

// NewTransformer returns a transformer configured by opts.
func NewTransformer(opts ...Option) *Transformer {
	c := newConfig(opts)
	return &Transformer{log: c.log, explainer: c.explainer}
}

// Transform builds the tree for req: the value node, then a context node
// when requested and available, then a performance node when requested.
func (t *Transformer) Transform(ctx context.Context, req *Request) *tree.Tree {
	start := time.Now()
	o := req.Options()
	w := &walker{
		ctx:       ctx,
		log:       t.log,
		explainer: t.explainer,
		opts:      o,
		limits:    o.Limits(),
		rules:     req.Rules(),
		scope:     redact.ScopePayload,
		snapshot:  req.Snapshot(),
		visiting:  map[ident]struct{}{},
	}
	expr := o.Expression
	if expr == "" {
		expr = RootExpression
	}
	root := w.safe(expr, func() *tree.Node { return w.any(req.Value(), expr, 0) })
	tr := &tree.Tree{Channel: string(req.Channel()), Nodes: []*tree.Node{root}}

	if o.ShowContext && req.Snapshot() != nil {
		cw := *w
		cw.scope = redact.ScopeContext
		cw.visiting = map[ident]struct{}{}
		cw.truncations = 0
		body := cw.any(req.Snapshot().ToMap(), "$context", 0)
		cn := tree.New(tree.KindContext, "Context")
		cn.Children = body.Children
		if jv, ok := body.JSONValue(); ok {
			cn.Set(tree.MetaJSONValue, jv)
		}
		tr.Nodes = append(tr.Nodes, cn)
		w.truncations += cw.truncations
	}
	tr.Truncations = w.truncations

	if o.ShowPerformance {
		ms := float64(time.Since(start).Microseconds()) / 1000
		tr.Nodes = append(tr.Nodes, tree.New(tree.KindPerformance, fmt.Sprintf("Rendered in %.3fms", ms)).
			Set(tree.MetaDurationMs, ms).
			Set(tree.MetaJSONValue, ms))
	}
	t.log.V(1).Info("transformed value", "channel", tr.Channel, "truncations", tr.Truncations)
	return tr
}

// ident is the identity of a reference-like container on the current
// path. Slices include their length since sub-slices share a pointer.
type ident struct {
	t reflect.Type
	p uintptr
	n int
}

// walker holds the state of one transform call.
type walker struct {
	ctx         context.Context
	log         logr.Logger
	explainer   sqlfmt.Explainer
	opts        Options
	limits      limiter.Limits
	rules       []*redact.Rule
	scope       redact.Scope
	snapshot    *Snapshot
	visiting    map[ident]struct{}
	truncations int
}

var (
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
	timeType   = reflect.TypeOf(time.Time{})
	durType    = reflect.TypeOf(time.Duration(0))
	numberType = reflect.TypeOf(json.Number(""))
)

func (w *walker) any(v any, expr string, depth int) *tree.Node {
	if v == nil {
		return leaf(tree.KindNull, "null", nil, expr)
	}
	if m, ok := v.(*ordered.Map); ok && m != nil {
		return w.orderedMap(m, expr, depth)
	}
	return w.value(reflect.ValueOf(v), expr, depth)
}

func leaf(kind tree.Kind, text string, jv any, expr string) *tree.Node {
	return tree.New(kind, text).Set(tree.MetaJSONValue, jv).Set(tree.MetaExpression, expr)
}

func (w *walker) value(rv reflect.Value, expr string, depth int) *tree.Node {
	for rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return leaf(tree.KindNull, "null", nil, expr)
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return leaf(tree.KindNull, "null", nil, expr)
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return leaf(tree.KindNull, "null", nil, expr)
	}

	if rv.Type().Implements(errorType) && rv.CanInterface() {
		return w.exception(rv.Interface().(error), expr, depth)
	}
	if rv.CanInterface() {
		if m, ok := rv.Interface().(*ordered.Map); ok {
			return w.orderedMap(m, expr, depth)
		}
	}

	switch rv.Type() {
	case timeType:
		t := rv.Interface().(time.Time)
		s := t.Format(time.RFC3339Nano)
		return leaf(tree.KindString, "time.Time("+s+")", s, expr)
	case durType:
		d := time.Duration(rv.Int())
		return leaf(tree.KindString, "duration("+d.String()+")", d.String(), expr)
	case numberType:
		num := json.Number(rv.String())
		if _, err := num.Int64(); err == nil {
			return leaf(tree.KindNumber, "int("+num.String()+")", num, expr)
		}
		return leaf(tree.KindNumber, "float("+num.String()+")", num, expr)
	}

	switch rv.Kind() {
	case reflect.Bool:
		return leaf(tree.KindBool, "bool("+strconv.FormatBool(rv.Bool())+")", rv.Bool(), expr)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return leaf(tree.KindNumber, "int("+strconv.FormatInt(rv.Int(), 10)+")", rv.Int(), expr)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return leaf(tree.KindNumber, "uint("+strconv.FormatUint(rv.Uint(), 10)+")", rv.Uint(), expr)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		s := strconv.FormatFloat(f, 'g', -1, rv.Type().Bits())
		var jv any = f
		if math.IsNaN(f) || math.IsInf(f, 0) {
			jv = s
		}
		return leaf(tree.KindNumber, "float("+s+")", jv, expr)
	case reflect.Complex64, reflect.Complex128:
		s := strings.Trim(strconv.FormatComplex(rv.Complex(), 'g', -1, rv.Type().Bits()), "()")
		return leaf(tree.KindNumber, "complex("+s+")", s, expr)
	case reflect.String:
		return w.str(rv.String(), expr)
	case reflect.Pointer:
		id := ident{t: rv.Type(), p: rv.Pointer()}
		if _, seen := w.visiting[id]; seen {
			return w.circular(rv.Type(), expr)
		}
		w.visiting[id] = struct{}{}
		defer delete(w.visiting, id)
		elem := rv.Elem()
		if elem.Kind() == reflect.Struct {
			return w.object(elem, dynamicFields(rv), expr, depth)
		}
		return w.value(elem, expr, depth)
	case reflect.Struct:
		return w.object(rv, dynamicFields(rv), expr, depth)
	case reflect.Map:
		if !rv.IsNil() {
			id := ident{t: rv.Type(), p: rv.Pointer()}
			if _, seen := w.visiting[id]; seen {
				return w.circular(rv.Type(), expr)
			}
			w.visiting[id] = struct{}{}
			defer delete(w.visiting, id)
		}
		return w.nativeMap(rv, expr, depth)
	case reflect.Slice:
		if rv.Len() > 0 {
			id := ident{t: rv.Type(), p: rv.Pointer(), n: rv.Len()}
			if _, seen := w.visiting[id]; seen {
				return w.circular(rv.Type(), expr)
			}
			w.visiting[id] = struct{}{}
			defer delete(w.visiting, id)
		}
		return w.list(rv, expr, depth)
	case reflect.Array:
		return w.list(rv, expr, depth)
	}
	return leaf(tree.KindUnknown, rv.Type().String(), nil, expr)
}

func (w *walker) str(s, expr string) *tree.Node {
	if jsonfmt.Matches(s, w.opts.AutoDetectJSON) {
		return jsonfmt.Transform(s, w.limits.StringLength).Set(tree.MetaExpression, expr)
	}
	if w.opts.AutoDetectSQL && sqlfmt.IsSQL(s) {
		return sqlfmt.Transform(w.ctx, s, nil, w.explainer, w.log).Set(tree.MetaExpression, expr)
	}
	shown, cut := limiter.Truncate(s, w.limits.StringLength)
	text := fmt.Sprintf("string(%d) \"%s\"", utf8.RuneCountInString(s), shown)
	n := leaf(tree.KindString, text, shown, expr)
	if cut {
		w.truncations++
		n.Text += "…"
		n.MarkTruncated()
	}
	return n
}

func (w *walker) circular(t reflect.Type, expr string) *tree.Node {
	w.truncations++
	return leaf(tree.KindCircular, "circular reference ("+t.String()+")", nil, expr).MarkTruncated()
}

func (w *walker) exception(err error, expr string, depth int) *tree.Node {
	opts := exception.Options{
		Rules:        w.rules,
		StackLimit:   w.limits.StackLimit,
		MessageLimit: w.limits.MessageLimit,
		RedactUnsafe: w.opts.RedactUnsafeDetails,
		Logger:       w.log,
		SkipDirs:     []string{packageDir},
	}
	if depth == 0 && w.opts.IncludeVariableSnapshots && w.snapshot != nil {
		opts.Variables = w.snapshot.Variables
	}
	return exception.Transform(err, opts).
		Set(tree.MetaJSONValue, nil).
		Set(tree.MetaExpression, expr)
}

// entry is one child of a container. produce is called only for entries
// within the item limit.
type entry struct {
	display string
	raw     string
	expr    string
	produce func(depth int) *tree.Node
}

type shape int

const (
	shapeList shape = iota
	shapeMap
	shapeObject
)

// container runs the shared container algorithm: depth cut, bounded
// iteration, array-item wrappers and jsonValue bookkeeping.
func (w *walker) container(sh shape, typeName string, count int, expr string, depth int, each func(yield func(entry) bool)) *tree.Node {
	kind := tree.KindContainerArray
	if sh == shapeObject {
		kind = tree.KindContainerObject
	}
	label := fmt.Sprintf("array(%d)", count)
	if sh == shapeObject {
		label = "object(" + typeName + ")"
	}
	n := tree.New(kind, label).
		Set(tree.MetaExpression, expr).
		Set(tree.MetaCount, count)
	if typeName != "" {
		n.Set(tree.MetaTypeName, typeName)
	}

	if depth >= w.limits.MaxDepth {
		w.truncations++
		sentinel := ordered.FromPairs("__truncated__", true, "__reason__", "depth")
		if sh == shapeObject {
			sentinel.Set("__class", typeName)
		}
		n.Text = label + " … truncated (depth limit)"
		return n.Set(tree.MetaJSONValue, sentinel).MarkTruncated()
	}

	limit := w.limits.Items()
	var list []any
	obj := ordered.New(0)
	i := 0
	truncated := false
	each(func(e entry) bool {
		if i == limit {
			truncated = true
			return false
		}
		child := w.safe(e.expr, func() *tree.Node { return e.produce(depth + 1) })
		n.Append(tree.New(tree.KindArrayItem, e.display).Append(child))
		jv, _ := child.JSONValue()
		if sh == shapeList {
			list = append(list, jv)
		} else {
			obj.Set(e.raw, jv)
		}
		i++
		return true
	})

	var result any = obj
	if sh == shapeList {
		if list == nil {
			list = []any{}
		}
		result = list
	}
	switch {
	case truncated:
		w.truncations++
		n.Append(tree.New(tree.KindNotice, fmt.Sprintf("… truncated (items: %d, limit: %d)", count, limit)))
		n.MarkTruncated()
		sentinel := ordered.FromPairs("__truncated__", true, "__items__", result)
		if sh == shapeObject {
			sentinel.Set("__class", typeName)
		}
		n.Set(tree.MetaJSONValue, sentinel)
	case sh == shapeObject:
		n.Set(tree.MetaJSONValue, ordered.FromPairs("__class", typeName, "properties", result))
	default:
		n.Set(tree.MetaJSONValue, result)
	}
	return n
}

// safe degrades a panicking child to an inaccessible marker.
func (w *walker) safe(expr string, fn func() *tree.Node) (n *tree.Node) {
	defer func() {
		if r := recover(); r != nil {
			w.log.V(1).Info("value unreadable", "expression", expr, "panic", fmt.Sprint(r))
			n = leaf(tree.KindUnknown, Inaccessible, nil, expr)
		}
	}()
	return fn()
}

func (w *walker) redacted(key string) (*redact.Rule, bool) {
	return redact.Match(w.rules, key, w.scope)
}

func (w *walker) masked(r *redact.Rule, expr string) *tree.Node {
	s := r.Replacement()
	return leaf(tree.KindString, fmt.Sprintf("string(%d) \"%s\"", utf8.RuneCountInString(s), s), s, expr)
}

func (w *walker) orderedMap(m *ordered.Map, expr string, depth int) *tree.Node {
	id := ident{t: reflect.TypeOf(m), p: reflect.ValueOf(m).Pointer()}
	if _, seen := w.visiting[id]; seen {
		return w.circular(id.t, expr)
	}
	w.visiting[id] = struct{}{}
	defer delete(w.visiting, id)

	return w.container(shapeMap, "", m.Len(), expr, depth, func(yield func(entry) bool) {
		m.Range(func(k string, v any) bool {
			e := entry{display: k, raw: k, expr: keyExpr(expr, k)}
			if r, ok := w.redacted(k); ok {
				e.produce = func(int) *tree.Node { return w.masked(r, e.expr) }
			} else {
				e.produce = func(d int) *tree.Node { return w.any(v, e.expr, d) }
			}
			return yield(e)
		})
	})
}

func (w *walker) nativeMap(rv reflect.Value, expr string, depth int) *tree.Node {
	keys := rv.MapKeys()
	sortKeys(keys)
	return w.container(shapeMap, "", len(keys), expr, depth, func(yield func(entry) bool) {
		for _, k := range keys {
			name := keyString(k)
			e := entry{display: name, raw: name}
			switch k.Kind() {
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
				reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				e.expr = expr + "[" + name + "]"
			default:
				e.expr = keyExpr(expr, name)
			}
			if r, ok := w.redacted(name); ok {
				e.produce = func(int) *tree.Node { return w.masked(r, e.expr) }
			} else {
				val := rv.MapIndex(k)
				e.produce = func(d int) *tree.Node { return w.value(val, e.expr, d) }
			}
			if !yield(e) {
				return
			}
		}
	})
}

func (w *walker) list(rv reflect.Value, expr string, depth int) *tree.Node {
	return w.container(shapeList, "", rv.Len(), expr, depth, func(yield func(entry) bool) {
		for i := 0; i < rv.Len(); i++ {
			idx := strconv.Itoa(i)
			e := entry{display: idx, raw: idx, expr: expr + "[" + idx + "]"}
			val := rv.Index(i)
			e.produce = func(d int) *tree.Node { return w.value(val, e.expr, d) }
			if !yield(e) {
				return
			}
		}
	})
}

func (w *walker) object(rv reflect.Value, dyn map[string]any, expr string, depth int) *tree.Node {
	typeName := reflectx.TypeName(rv.Type())
	fields := reflectx.Fields(rv)
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
	}
	extra := make([]string, 0, len(dyn))
	for k := range dyn {
		if !declared[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)

	return w.container(shapeObject, typeName, len(fields)+len(extra), expr, depth, func(yield func(entry) bool) {
		for _, f := range fields {
			f := f
			e := entry{display: f.DisplayName(), raw: f.Name, expr: expr + "->" + f.Name}
			switch r, ok := w.redacted(f.Name); {
			case ok:
				e.produce = func(int) *tree.Node { return w.masked(r, e.expr) }
			case reflectx.IsUnset(f.Value):
				e.produce = func(int) *tree.Node { return leaf(tree.KindUnknown, Uninitialized, nil, e.expr) }
			default:
				e.produce = func(d int) *tree.Node {
					if _, ok := reflectx.Interface(f.Value); !ok {
						return leaf(tree.KindUnknown, Inaccessible, nil, e.expr)
					}
					return w.value(f.Value, e.expr, d)
				}
			}
			if !yield(e) {
				return
			}
		}
		for _, k := range extra {
			v := dyn[k]
			e := entry{display: k + ":public", raw: k, expr: expr + "->" + k}
			if r, ok := w.redacted(k); ok {
				e.produce = func(int) *tree.Node { return w.masked(r, e.expr) }
			} else {
				e.produce = func(d int) *tree.Node { return w.any(v, e.expr, d) }
			}
			if !yield(e) {
				return
			}
		}
	})
}

// dynamicFields asks rv for its dynamic fields. A panicking implementation
// contributes none.
func dynamicFields(rv reflect.Value) (out map[string]any) {
	if !rv.CanInterface() {
		return nil
	}
	d, ok := rv.Interface().(DynamicFielder)
	if !ok {
		return nil
	}
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()
	return d.DynamicFields()
}

func keyExpr(parent, key string) string {
	return parent + "['" + strings.ReplaceAll(key, "'", `\'`) + "']"
}

func keyString(k reflect.Value) string {
	for k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() {
		return fmt.Sprint(k.Interface())
	}
	return k.String()
}

// sortKeys orders map keys: numerically for numeric kinds, lexically
// otherwise. Go maps have no insertion order to preserve.
func sortKeys(keys []reflect.Value) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Kind() == b.Kind() {
			switch a.Kind() {
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				return a.Int() < b.Int()
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
				return a.Uint() < b.Uint()
			case reflect.Float32, reflect.Float64:
				return a.Float() < b.Float()
			}
		}
		return keyString(a) < keyString(b)
	})
}
