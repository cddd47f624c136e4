// Package cel selects part of a loaded value with a CEL expression before it
// is dumped. The value is bound to the variable "_".
package cel

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	celext "github.com/google/cel-go/ext"

	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

// Variable is the name the input is bound to.
const Variable = "_"

// Evaluator compiles and evaluates CEL expressions. Compiled programs are
// cached, so re-evaluating one expression (as --watch does) is cheap. It is
// safe for concurrent use.
type Evaluator struct {
	env      *cel.Env
	programs sync.Map // string -> cel.Program
}

// NewEvaluator creates an evaluator with the strings, encoders, lists and
// math extensions.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable(Variable, cel.DynType),
		celext.Strings(),
		celext.Encoders(),
		celext.Lists(),
		celext.Math(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create CEL environment")
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and checks expr without evaluating it.
func (e *Evaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	if p, ok := e.programs.Load(expr); ok {
		return p.(cel.Program), nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "compile %q", expr)
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "program %q", expr)
	}
	e.programs.Store(expr, prg)
	return prg, nil
}

// Evaluate runs expr against data and converts the result to Go values:
// maps become map[string]any, lists []any, numbers int64/uint64/float64.
func (e *Evaluator) Evaluate(expr string, data any) (any, error) {
	prg, err := e.program(expr)
	if err != nil {
		return nil, err
	}
	in, err := Normalize(data)
	if err != nil {
		return nil, err
	}
	out, _, err := prg.Eval(map[string]any{Variable: in})
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate %q", expr)
	}
	return ToGo(out), nil
}

// Normalize converts data into types CEL can adapt: ordered maps become
// native maps, json.Number becomes int64 or float64, and structs go through
// a JSON round trip so their json tags name the fields.
func Normalize(data any) (any, error) {
	switch t := data.(type) {
	case nil, bool, string, int, int64, uint64, float64, []byte:
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, errors.Wrapf(err, "number %q", string(t))
		}
		return f, nil
	case *ordered.Map:
		out := make(map[string]any, t.Len())
		var err error
		t.Range(func(k string, v any) bool {
			out[k], err = Normalize(v)
			return err == nil
		})
		return out, err
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			n, err := Normalize(v)
			if err != nil {
				return nil, errors.Wrapf(err, "key %q", k)
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			n, err := Normalize(v)
			if err != nil {
				return nil, errors.Wrapf(err, "element [%d]", i)
			}
			out[i] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(data)
	//exhaustive:ignore // scalars are adapted by CEL itself
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			n, err := Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, errors.Wrapf(err, "element [%d]", i)
			}
			out[i] = n
		}
		return out, nil
	case reflect.Map, reflect.Struct:
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, errors.Wrapf(err, "convert %T", data)
		}
		v, err := ordered.ParseJSON(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "convert %T", data)
		}
		return Normalize(v)
	}
	return data, nil
}

// ToGo converts a CEL value to Go values, recursively.
func ToGo(val ref.Val) any {
	switch v := val.(type) {
	case nil:
		return nil
	case types.Null:
		return nil
	case types.Bool:
		return bool(v)
	case types.Int:
		return int64(v)
	case types.Uint:
		return uint64(v)
	case types.Double:
		return float64(v)
	case types.String:
		return string(v)
	case types.Bytes:
		return []byte(v)
	case traits.Mapper:
		out := make(map[string]any, int(v.Size().(types.Int)))
		for it := v.Iterator(); it.HasNext() == types.True; {
			k := it.Next()
			out[fmt.Sprint(ToGo(k))] = ToGo(v.Get(k))
		}
		return out
	case traits.Lister:
		n := int(v.Size().(types.Int))
		out := make([]any, n)
		for i := range out {
			out[i] = ToGo(v.Get(types.Int(i)))
		}
		return out
	}
	return val.Value()
}

// Functions lists the callable functions and macros of the environment as
// "name() - usage" lines, sorted.
func (e *Evaluator) Functions() []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, fn := range e.env.Functions() {
		if isOperator(fn.Name()) {
			continue
		}
		for _, o := range fn.OverloadDecls() {
			add(fn.Name() + "() - " + usage(fn.Name(), o))
		}
	}
	for _, m := range e.env.Macros() {
		if !isOperator(m.Function()) {
			add(m.Function() + "() - macro")
		}
	}
	sort.Strings(out)
	return out
}

func usage(name string, o *decls.OverloadDecl) string {
	params := o.ArgTypes()
	call := name + "(" + typeList(params) + ")"
	if o.IsMemberFunction() && len(params) > 0 {
		call = typeLabel(params[0]) + "." + name + "(" + typeList(params[1:]) + ")"
	}
	if r := o.ResultType(); r != nil {
		call += " -> " + typeLabel(r)
	}
	return call
}

func typeList(ts []*types.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = typeLabel(t)
	}
	return strings.Join(parts, ", ")
}

func typeLabel(t *types.Type) string {
	if t == nil {
		return "any"
	}
	if name := t.DeclaredTypeName(); name != "" {
		return name
	}
	return "any"
}

// isOperator reports internal operator declarations such as _+_ or @in.
func isOperator(name string) bool {
	return strings.HasPrefix(name, "@") ||
		strings.HasPrefix(name, "!") ||
		strings.HasPrefix(name, "-") ||
		(strings.HasPrefix(name, "_") && strings.HasSuffix(name, "_")) ||
		name == "_[_]"
}
