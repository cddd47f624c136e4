package loader

import (
	"reflect"
	"sort"

	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

const maxDecodeDepth = 20

// TryDecode parses s when it holds a serialized object or array. Scalars
// and plain text return false.
func TryDecode(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	v, err := LoadRoot(s)
	if err != nil || !isStructured(v) {
		return nil, false
	}
	return v, true
}

// Expand replaces every string leaf of v that holds serialized data with the
// parsed structure, recursively. Typed maps and slices are converted to
// *ordered.Map and []any on the way.
func Expand(v any) any {
	return expand(v, 0)
}

func expand(v any, depth int) any {
	if depth > maxDecodeDepth {
		return v
	}
	switch t := v.(type) {
	case *ordered.Map:
		out := ordered.New(t.Len())
		t.Range(func(k string, val any) bool {
			out.Set(k, expand(val, depth+1))
			return true
		})
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = expand(e, depth+1)
		}
		return out
	case string:
		if decoded, ok := TryDecode(t); ok {
			return expand(decoded, depth+1)
		}
		return t
	}
	return expandReflect(v, depth)
}

func expandReflect(v any, depth int) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	//exhaustive:ignore // only containers are expanded
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		keys := sortedKeys(rv)
		out := ordered.New(len(keys))
		for _, k := range keys {
			out.Set(k.String(), expand(rv.MapIndex(k).Interface(), depth+1))
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = expand(rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return v
		}
		return expand(rv.Elem().Interface(), depth+1)
	}
	return v
}

func sortedKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func isStructured(v any) bool {
	switch v.(type) {
	case nil:
		return false
	case *ordered.Map, []any:
		return true
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Map || k == reflect.Slice
}
