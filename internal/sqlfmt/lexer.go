package sqlfmt

import (
	"strings"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokQuotedIdent
	tokNumber
	tokPositional
	tokNamed
	tokComment
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	// space records whether whitespace preceded the token.
	space bool
}

// lex splits sql into tokens, dropping whitespace. Unterminated literals
// run to the end of the input.
func lex(sql string) []token {
	var toks []token
	space := false
	i := 0
	for i < len(sql) {
		c := sql[i]
		start := i
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			space = true
			i++
			continue
		case c == '\'':
			i = scanQuoted(sql, i, '\'')
			toks = append(toks, token{tokString, sql[start:i], space})
		case c == '"' || c == '`':
			i = scanQuoted(sql, i, c)
			toks = append(toks, token{tokQuotedIdent, sql[start:i], space})
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			toks = append(toks, token{tokComment, sql[start:i], space})
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 4
			}
			toks = append(toks, token{tokComment, sql[start:i], space})
		case c >= '0' && c <= '9':
			for i < len(sql) && (isDigit(sql[i]) || sql[i] == '.' || sql[i] == 'e' || sql[i] == 'E') {
				i++
			}
			toks = append(toks, token{tokNumber, sql[start:i], space})
		case c == '?':
			i++
			toks = append(toks, token{tokPositional, "?", space})
		case c == ':' && i+1 < len(sql) && isIdentStart(sql[i+1]) && (i == 0 || sql[i-1] != ':'):
			i++
			for i < len(sql) && isIdent(sql[i]) {
				i++
			}
			toks = append(toks, token{tokNamed, sql[start:i], space})
		case isIdentStart(c):
			for i < len(sql) && isIdent(sql[i]) {
				i++
			}
			toks = append(toks, token{tokWord, sql[start:i], space})
		default:
			i++
			// keep multi-byte operators together
			if i < len(sql) && strings.Contains("<>=!|:", string(c)) && strings.ContainsRune("<>=|:", rune(sql[i])) {
				i++
			}
			toks = append(toks, token{tokPunct, sql[start:i], space})
		}
		space = false
	}
	return toks
}

// scanQuoted returns the index after the closing quote. Doubled quotes and
// backslash escapes stay inside the literal.
func scanQuoted(s string, i int, q byte) int {
	i++
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
			continue
		case q:
			if i+1 < len(s) && s[i+1] == q {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c == '@' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdent(c byte) bool { return isIdentStart(c) || isDigit(c) }
