// Package jsonfmt detects JSON-encoded strings and pretty-prints them.
package jsonfmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/oakwood-commons/dumpx/internal/limiter"
	"github.com/oakwood-commons/dumpx/pkg/ordered"
	"github.com/oakwood-commons/dumpx/pkg/tree"
)

// Indent is the indentation unit of pretty-printed bodies.
const Indent = "    "

// Matches reports whether v is a string holding valid JSON and detection is
// enabled.
func Matches(v any, autoDetect bool) bool {
	if !autoDetect {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	return json.Valid([]byte(s))
}

// Pretty re-indents raw, preserving key order and number literals.
func Pretty(raw string) (string, any, error) {
	v, err := ordered.ParseJSON([]byte(raw))
	if err != nil {
		return "", nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", Indent)
	if err := enc.Encode(v); err != nil {
		return "", nil, err
	}
	return strings.TrimSuffix(buf.String(), "\n"), v, nil
}

// Transform returns a collapsible json node with a single json-body child.
// A string that fails to decode keeps its raw text as the body and a nil
// jsonValue.
func Transform(raw string, previewLimit int) *tree.Node {
	body, decoded, err := Pretty(raw)
	if err != nil {
		body, decoded = raw, nil
	}
	preview := strings.Join(strings.Fields(raw), " ")
	if cut, ok := limiter.Truncate(preview, previewLimit); ok {
		preview = cut + "…"
	}
	n := tree.New(tree.KindJSON, fmt.Sprintf("json(%d)", utf8.RuneCountInString(raw)))
	n.Set(tree.MetaCollapsible, true).
		Set(tree.MetaPreview, preview).
		Set(tree.MetaJSONValue, decoded).
		Set(tree.MetaRaw, raw)
	n.Append(tree.New(tree.KindJSONBody, body))
	return n
}

// TokenClass classifies a run of pretty-printed JSON text.
type TokenClass int

const (
	Plain TokenClass = iota
	Key
	String
	Number
	Keyword
)

// Scan walks text in one pass, calling emit for each run. Strings followed
// (after optional spaces) by a colon are keys. Escaped quotes never end a
// string.
func Scan(text string, emit func(class TokenClass, s string)) {
	i, start := 0, 0
	flush := func(end int) {
		if end > start {
			emit(Plain, text[start:end])
		}
	}
	for i < len(text) {
		c := text[i]
		switch {
		case c == '"':
			flush(i)
			j := i + 1
			for j < len(text) {
				if text[j] == '\\' {
					j += 2
					continue
				}
				if text[j] == '"' {
					j++
					break
				}
				j++
			}
			if j > len(text) {
				j = len(text)
			}
			k := j
			for k < len(text) && (text[k] == ' ' || text[k] == '\t') {
				k++
			}
			class := String
			if k < len(text) && text[k] == ':' {
				class = Key
			}
			emit(class, text[i:j])
			i, start = j, j
		case c == '-' || (c >= '0' && c <= '9'):
			flush(i)
			j := i + 1
			for j < len(text) && strings.IndexByte("0123456789.eE+-", text[j]) >= 0 {
				j++
			}
			emit(Number, text[i:j])
			i, start = j, j
		case c == 't' || c == 'f' || c == 'n':
			matched := false
			for _, kw := range []string{"true", "false", "null"} {
				if strings.HasPrefix(text[i:], kw) {
					flush(i)
					emit(Keyword, kw)
					i += len(kw)
					start = i
					matched = true
					break
				}
			}
			if !matched {
				i++
			}
		default:
			i++
		}
	}
	flush(len(text))
}
