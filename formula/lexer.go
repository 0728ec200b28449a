package formula

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ============================================================================
// LEXER
// ============================================================================

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokRef   // [field name]
	tokIdent // function names, true/false
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// twoCharOps are matched before single characters.
var twoCharOps = []string{"<=", ">=", "==", "!=", "<>", "&&", "||"}

const singleCharOps = "+-*/%<>=!?:"

func tokenize(src string) ([]token, error) {
	toks := []token{}
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '[':
			end := strings.IndexByte(src[i+1:], ']')
			if end < 0 {
				return nil, &SyntaxError{Formula: src, Pos: i, Msg: "unterminated field reference"}
			}
			name := strings.TrimSpace(src[i+1 : i+1+end])
			if name == "" {
				return nil, &SyntaxError{Formula: src, Pos: i, Msg: "empty field reference"}
			}
			toks = append(toks, token{kind: tokRef, text: name, pos: i})
			i += end + 2

		case c == '"' || c == '\'':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return nil, &SyntaxError{Formula: src, Pos: i, Msg: "unterminated string"}
			}
			toks = append(toks, token{kind: tokString, text: src[i+1 : i+1+end], pos: i})
			i += end + 2

		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && isDigit(src[j]) {
					i = j
					for i < len(src) && isDigit(src[i]) {
						i++
					}
				}
			}
			n, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, &SyntaxError{Formula: src, Pos: start, Msg: "malformed number " + strconv.Quote(src[start:i])}
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], num: n, pos: start})

		case c >= utf8.RuneSelf || isIdentStart(rune(c)):
			start := i
			for i < len(src) {
				r, size := utf8.DecodeRuneInString(src[i:])
				if !isIdentPart(r) || (i == start && !isIdentStart(r)) {
					break
				}
				i += size
			}
			if i == start {
				r, _ := utf8.DecodeRuneInString(src[i:])
				return nil, &SyntaxError{Formula: src, Pos: i, Msg: "unexpected character " + strconv.Quote(string(r))}
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})

		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++

		default:
			op := ""
			for _, two := range twoCharOps {
				if strings.HasPrefix(src[i:], two) {
					op = two
					break
				}
			}
			if op == "" && strings.IndexByte(singleCharOps, c) >= 0 {
				op = string(c)
			}
			if op == "" {
				return nil, &SyntaxError{Formula: src, Pos: i, Msg: "unexpected character " + strconv.Quote(string(c))}
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
