package formula

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ============================================================================
// PARSE — Lightweight extraction of what a formula mentions
// ============================================================================
// Parse never builds a tree. It reports references, functions, operators
// and numeric constants so authors can inspect a formula before saving it.
// ============================================================================

var (
	funcPattern   = regexp.MustCompile(`(?i)\b(ABS|ROUND|FLOOR|CEIL|MAX|MIN|AVG|IF|SUM|COUNT|SQRT|POW)\s*\(`)
	numberPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?(?:[eE][+-]?\d+)?\b|\.\d+\b`)
	ifPattern     = regexp.MustCompile(`(?i)\bIF\s*\(`)
)

const operatorChars = "+-*/%<>=!&|?:"

// Parse extracts dependencies, functions, operators and constants.
func Parse(formula string) (*ParseResult, error) {
	res := &ParseResult{
		Dependencies: []string{},
		Functions:    []string{},
		Operators:    []string{},
		Constants:    []float64{},
	}

	seen := map[string]bool{}
	for _, l := range scanLiterals(formula) {
		if !l.ref {
			continue
		}
		name := l.name(formula)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		res.Dependencies = append(res.Dependencies, name)
	}

	// Operators and constants are read with references and strings masked,
	// so "[q1 total]" contributes no constant.
	bare := stripLiterals(formula)

	seen = map[string]bool{}
	for _, m := range funcPattern.FindAllStringSubmatch(bare, -1) {
		fn := strings.ToUpper(m[1])
		if !seen[fn] {
			seen[fn] = true
			res.Functions = append(res.Functions, fn)
		}
	}

	seen = map[string]bool{}
	for _, c := range bare {
		op := string(c)
		if strings.ContainsRune(operatorChars, c) && !seen[op] {
			seen[op] = true
			res.Operators = append(res.Operators, op)
		}
	}

	seenNum := map[float64]bool{}
	for _, lit := range numberPattern.FindAllString(bare, -1) {
		n, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, &SyntaxError{Formula: formula, Pos: -1, Msg: "malformed number " + strconv.Quote(lit)}
		}
		if !seenNum[n] {
			seenNum[n] = true
			res.Constants = append(res.Constants, n)
		}
	}
	return res, nil
}

// ParseValue parses a formula of unknown type, as read from persisted
// configuration. Anything but a string is a SyntaxError.
func ParseValue(formula any) (*ParseResult, error) {
	switch f := formula.(type) {
	case string:
		return Parse(f)
	case *string:
		if f != nil {
			return Parse(*f)
		}
	case nil:
	default:
		return nil, &SyntaxError{Pos: -1, Msg: fmt.Sprintf("formula must be a string, got %T", formula)}
	}
	return nil, &SyntaxError{Pos: -1, Msg: "formula is null"}
}

// literal is a bracketed reference or quoted string, as a byte span
// including its delimiters.
type literal struct {
	start, end int
	ref        bool
}

func (l literal) name(formula string) string {
	return strings.TrimSpace(formula[l.start+1 : l.end-1])
}

// scanLiterals finds references and strings left to right the way the
// lexer does, so brackets inside a string are text and quotes inside a
// reference are part of the name. An unterminated literal ends the scan.
func scanLiterals(formula string) []literal {
	out := []literal{}
	for i := 0; i < len(formula); i++ {
		c := formula[i]
		if c != '[' && c != '"' && c != '\'' {
			continue
		}
		closer := c
		if c == '[' {
			closer = ']'
		}
		end := strings.IndexByte(formula[i+1:], closer)
		if end < 0 {
			break
		}
		out = append(out, literal{start: i, end: i + end + 2, ref: c == '['})
		i += end + 1
	}
	return out
}

// stripLiterals masks bracketed references and quoted strings with
// underscores, keeping byte offsets.
func stripLiterals(formula string) string {
	out := []byte(formula)
	for _, l := range scanLiterals(formula) {
		for i := l.start; i < l.end; i++ {
			out[i] = '_'
		}
	}
	return string(out)
}
