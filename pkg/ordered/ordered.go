// Package ordered provides an insertion-ordered string-keyed map.
//
// Go maps do not remember insertion order, but inspected documents (JSON,
// YAML, TOML) and the JSON payloads attached to rendered nodes do. Map keeps
// both the order and O(1) lookups, and marshals to a JSON object whose keys
// appear in insertion order.
package ordered

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Map is an insertion-ordered map from string keys to arbitrary values.
// The zero value is ready to use.
type Map struct {
	keys   []string
	values map[string]any
}

// New returns an empty map with room for n entries.
func New(n int) *Map {
	return &Map{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// FromPairs builds a map from alternating key/value arguments.
// It panics when a key is not a string; intended for tests and literals.
func FromPairs(kv ...any) *Map {
	m := New(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("ordered.FromPairs: key %v is %T, not string", kv[i], kv[i]))
		}
		m.Set(k, kv[i+1])
	}
	return m
}

// Set stores v under k. Existing keys keep their position.
func (m *Map) Set(k string, v any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

// Get returns the value stored under k.
func (m *Map) Get(k string) (any, bool) {
	if m == nil || m.values == nil {
		return nil, false
	}
	v, ok := m.values[k]
	return v, ok
}

// Delete removes k, preserving the order of the remaining keys.
func (m *Map) Delete(k string) {
	if m == nil {
		return
	}
	if _, ok := m.values[k]; !ok {
		return
	}
	delete(m.values, k)
	for i, key := range m.keys {
		if key == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Range calls fn for each entry in order until fn returns false.
func (m *Map) Range(fn func(k string, v any) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy.
func (m *Map) Clone() *Map {
	out := New(m.Len())
	m.Range(func(k string, v any) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// ToMap converts m (recursively) into plain map[string]any / []any values.
// Order is lost; used when handing data to libraries that need native maps.
func (m *Map) ToMap() map[string]any {
	out := make(map[string]any, m.Len())
	m.Range(func(k string, v any) bool {
		out[k] = Plain(v)
		return true
	})
	return out
}

// Plain strips ordered maps from v, recursively.
func Plain(v any) any {
	switch t := v.(type) {
	case *Map:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Plain(e)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encode(&buf, m.values[k]); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encode writes v without HTML escaping and without the encoder's trailing
// newline.
func encode(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// UnmarshalJSON decodes a JSON object, preserving key order at every level.
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := DecodeJSON(dec)
	if err != nil {
		return err
	}
	obj, ok := v.(*Map)
	if !ok {
		return fmt.Errorf("ordered: expected JSON object, got %T", v)
	}
	*m = *obj
	return nil
}

// String renders the map in a compact key: value form.
func (m *Map) String() string {
	var b strings.Builder
	b.WriteString("{")
	i := 0
	m.Range(func(k string, v any) bool {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", k, v)
		i++
		return true
	})
	b.WriteString("}")
	return b.String()
}

// DecodeJSON reads one JSON value from dec. Objects become *Map, arrays
// []any. Numbers follow the decoder's UseNumber setting.
func DecodeJSON(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

// ParseJSON decodes a complete JSON document, rejecting trailing data.
func ParseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := DecodeJSON(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("ordered: trailing data after JSON value")
	}
	return v, nil
}

func decodeToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := New(4)
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("ordered: object key is %T", kt)
				}
				val, err := DecodeJSON(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := make([]any, 0, 4)
			for dec.More() {
				val, err := DecodeJSON(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("ordered: unexpected delimiter %q", t)
		}
	default:
		return tok, nil
	}
}
