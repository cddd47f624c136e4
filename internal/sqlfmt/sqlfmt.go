// Package sqlfmt detects SQL statements in strings, lays them out one
// clause per line and highlights them for the terminal or HTML.
//
// It is a tokenizer, not a parser: string literals, quoted identifiers and
// comments pass through untouched, everything else is laid out by keyword.
package sqlfmt

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

var (
	leadingKeyword = regexp.MustCompile(`(?i)^(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP|WITH)\b`)
	bodyKeyword    = regexp.MustCompile(`(?i)\b(FROM|WHERE|SET|VALUES|INTO|TABLE)\b`)
)

// IsSQL reports whether text starts with a statement keyword and contains
// a clause keyword. Both are required; a leading comment defeats detection.
func IsSQL(text string) bool {
	t := strings.TrimSpace(text)
	return leadingKeyword.MatchString(t) && bodyKeyword.MatchString(t)
}

// Class is a highlighting category.
type Class int

const (
	ClassPlain Class = iota
	// ClassClause covers statement and clause keywords (SELECT, FROM, JOIN...).
	ClassClause
	// ClassKeyword covers operators and modifiers (AND, AS, NULL...).
	ClassKeyword
	ClassString
	ClassNumber
	ClassComment
)

var clauseWords = wordSet(
	"SELECT", "FROM", "WHERE", "JOIN", "INNER", "LEFT", "RIGHT", "FULL", "OUTER",
	"CROSS", "ORDER", "GROUP", "BY", "HAVING", "LIMIT", "OFFSET", "UNION", "ALL",
	"INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE", "WITH", "CREATE",
	"ALTER", "DROP", "TABLE", "RETURNING",
)

var keywordWords = wordSet(
	"AND", "OR", "NOT", "NULL", "IS", "IN", "AS", "ON", "LIKE", "ILIKE",
	"BETWEEN", "EXISTS", "DISTINCT", "CASE", "WHEN", "THEN", "ELSE", "END",
	"ASC", "DESC", "TRUE", "FALSE", "USING", "INDEX", "PRIMARY", "KEY",
	"DEFAULT", "IF", "COUNT", "SUM", "AVG", "MIN", "MAX", "COALESCE",
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func classify(t token) Class {
	switch t.kind {
	case tokString:
		return ClassString
	case tokNumber:
		return ClassNumber
	case tokComment:
		return ClassComment
	case tokWord:
		u := strings.ToUpper(t.text)
		if clauseWords[u] {
			return ClassClause
		}
		if keywordWords[u] {
			return ClassKeyword
		}
	}
	return ClassPlain
}

// clause keywords that start a new line, longest first so multi-word forms
// win over their prefixes.
var breaks = []struct {
	words  []string
	indent int
	list   bool // commas after this clause break the line
}{
	{words: []string{"LEFT", "OUTER", "JOIN"}, indent: 1},
	{words: []string{"RIGHT", "OUTER", "JOIN"}, indent: 1},
	{words: []string{"FULL", "OUTER", "JOIN"}, indent: 1},
	{words: []string{"INNER", "JOIN"}, indent: 1},
	{words: []string{"LEFT", "JOIN"}, indent: 1},
	{words: []string{"RIGHT", "JOIN"}, indent: 1},
	{words: []string{"FULL", "JOIN"}, indent: 1},
	{words: []string{"CROSS", "JOIN"}, indent: 1},
	{words: []string{"ORDER", "BY"}},
	{words: []string{"GROUP", "BY"}},
	{words: []string{"INSERT", "INTO"}},
	{words: []string{"DELETE", "FROM"}},
	{words: []string{"UNION", "ALL"}},
	{words: []string{"JOIN"}, indent: 1},
	{words: []string{"SELECT"}, list: true},
	{words: []string{"FROM"}},
	{words: []string{"WHERE"}},
	{words: []string{"HAVING"}},
	{words: []string{"LIMIT"}},
	{words: []string{"UNION"}},
	{words: []string{"VALUES"}},
	{words: []string{"UPDATE"}},
	{words: []string{"SET"}},
}

// IndentUnit is one level of continuation indent.
const IndentUnit = "  "

// matchBreak returns the clause starting at toks[i], if any.
func matchBreak(toks []token, i int) (n, indent int, list bool) {
	for _, b := range breaks {
		if i+len(b.words) > len(toks) {
			continue
		}
		ok := true
		for j, w := range b.words {
			t := toks[i+j]
			if t.kind != tokWord || !strings.EqualFold(t.text, w) {
				ok = false
				break
			}
		}
		if ok {
			return len(b.words), b.indent, b.list
		}
	}
	return 0, 0, false
}

// Format substitutes bindings, collapses whitespace and breaks the
// statement into one clause per line. bindings may be nil, a []any for
// "?" placeholders, or a map[string]any / *ordered.Map for ":name" ones.
func Format(sql string, bindings any) string {
	toks := bind(lex(sql), bindings)

	var lines []string
	var cur strings.Builder
	newline := func(indent int) {
		if s := strings.TrimRight(cur.String(), " "); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
		cur.WriteString(strings.Repeat(IndentUnit, indent))
	}
	write := func(t token, text string) {
		if t.space && cur.Len() > 0 && !strings.HasSuffix(cur.String(), " ") {
			cur.WriteByte(' ')
		}
		cur.WriteString(text)
	}

	depth := 0
	inList := false
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if depth == 0 && t.kind == tokWord {
			if n, indent, list := matchBreak(toks, i); n > 0 {
				newline(indent)
				words := make([]string, n)
				for j := range words {
					words[j] = strings.ToUpper(toks[i+j].text)
				}
				write(token{space: false}, strings.Join(words, " "))
				inList = list
				i += n - 1
				continue
			}
			u := strings.ToUpper(t.text)
			if u == "AND" || u == "OR" {
				newline(1)
				write(token{}, u)
				continue
			}
		}
		switch t.kind {
		case tokPunct:
			switch t.text {
			case "(":
				depth++
			case ")":
				if depth > 0 {
					depth--
				}
			case ",":
				if depth == 0 && inList {
					write(token{}, ",")
					newline(1)
					continue
				}
			}
			write(t, t.text)
		case tokComment:
			write(t, t.text)
			if strings.HasPrefix(t.text, "--") {
				newline(0)
			}
		case tokWord:
			if c := classify(t); c == ClassClause || c == ClassKeyword {
				write(t, strings.ToUpper(t.text))
			} else {
				write(t, t.text)
			}
		default:
			write(t, t.text)
		}
	}
	newline(0)
	return strings.Join(lines, "\n")
}

// bind replaces placeholders with literal tokens. Placeholders without a
// binding are kept.
func bind(toks []token, bindings any) []token {
	if bindings == nil {
		return toks
	}
	var positional []any
	named := map[string]any{}
	switch b := bindings.(type) {
	case []any:
		positional = b
	case map[string]any:
		named = b
	case *ordered.Map:
		named = b.ToMap()
	default:
		rv := reflect.ValueOf(bindings)
		if rv.Kind() == reflect.Slice {
			for i := 0; i < rv.Len(); i++ {
				positional = append(positional, rv.Index(i).Interface())
			}
		}
	}
	out := make([]token, 0, len(toks))
	pos := 0
	for _, t := range toks {
		switch t.kind {
		case tokPositional:
			if pos < len(positional) {
				t = literalToken(positional[pos], t.space)
			}
			pos++
		case tokNamed:
			name := t.text[1:]
			if v, ok := named[name]; ok {
				t = literalToken(v, t.space)
			} else if v, ok := named[t.text]; ok {
				t = literalToken(v, t.space)
			}
		}
		out = append(out, t)
	}
	return out
}

func literalToken(v any, space bool) token {
	s := Literal(v)
	kind := tokString
	switch {
	case s == "NULL":
		kind = tokWord
	case strings.HasPrefix(s, "("):
		kind = tokWord
	case !strings.HasPrefix(s, "'"):
		kind = tokNumber
	}
	return token{kind: kind, text: s, space: space}
}

// Literal renders v as an SQL literal: strings quoted with doubled single
// quotes, booleans as 1/0, nil as NULL, slices as parenthesized lists.
func Literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case []byte:
		return "'" + strings.ReplaceAll(string(t), "'", "''") + "'"
	case bool:
		if t {
			return "1"
		}
		return "0"
	case time.Time:
		return "'" + t.Format("2006-01-02 15:04:05") + "'"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case fmt.Stringer:
		return Literal(t.String())
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = Literal(rv.Index(i).Interface())
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL"
		}
		return Literal(rv.Elem().Interface())
	}
	return Literal(fmt.Sprint(v))
}

// Highlight calls paint for every token and keeps the original spacing
// between them. Newlines in sql are preserved.
func Highlight(sql string, paint func(c Class, s string) string) string {
	var b strings.Builder
	last := 0
	for _, span := range spans(sql) {
		b.WriteString(paint(ClassPlain, sql[last:span.start]))
		b.WriteString(paint(span.class, sql[span.start:span.end]))
		last = span.end
	}
	b.WriteString(paint(ClassPlain, sql[last:]))
	return b.String()
}

type span struct {
	start, end int
	class      Class
}

// spans locates highlightable tokens in sql by byte offset.
func spans(sql string) []span {
	var out []span
	offset := 0
	for _, t := range lex(sql) {
		idx := strings.Index(sql[offset:], t.text)
		if idx < 0 {
			continue
		}
		start := offset + idx
		end := start + len(t.text)
		offset = end
		if c := classify(t); c != ClassPlain {
			out = append(out, span{start, end, c})
		}
	}
	return out
}
