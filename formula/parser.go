package formula

import (
	"fmt"
	"strings"
)

// ============================================================================
// PARSER — Pratt parser producing an expression tree
// ============================================================================
// Grammar:
//   expr    := cond
//   cond    := or ( "?" expr ":" expr )?
//   binary  := || && (== != = <>) (< <= > >=) (+ -) (* / %)   lowest first
//   unary   := (- + !) unary | primary
//   primary := number | string | [ref] | true | false | call | "(" expr ")"
// IF(c, a, b) becomes a conditional node, so only the chosen branch runs.
// ============================================================================

type node interface {
	eval(e *env) (value, error)
}

type (
	numberNode struct{ v float64 }
	stringNode struct{ s string }
	boolNode   struct{ b bool }
	refNode    struct{ name string }
	unaryNode  struct {
		op string
		x  node
	}
	binaryNode struct {
		op   string
		l, r node
	}
	condNode struct {
		cond, then, els node
	}
	callNode struct {
		name string
		args []node
	}
)

// arity bounds; max < 0 means variadic.
type arity struct{ min, max int }

var functions = map[string]arity{
	"ABS":   {1, 1},
	"ROUND": {1, 2},
	"FLOOR": {1, 1},
	"CEIL":  {1, 1},
	"SQRT":  {1, 1},
	"POW":   {2, 2},
	"MAX":   {1, -1},
	"MIN":   {1, -1},
	"AVG":   {0, -1},
	"SUM":   {0, -1},
	"COUNT": {0, -1},
	"IF":    {3, 3},
}

const precTernary = 1

var binaryPrec = map[string]int{
	"||": 2,
	"&&": 3,
	"==": 4, "!=": 4, "=": 4, "<>": 4,
	"<": 5, "<=": 5, ">": 5, ">=": 5,
	"+": 6, "-": 6,
	"*": 7, "/": 7, "%": 7,
}

const precUnary = 8

type parser struct {
	src  string
	toks []token
	pos  int
}

// parseExpr builds the expression tree for src.
func parseExpr(src string) (node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	if p.peek().kind == tokEOF {
		return nil, p.errorf(p.peek(), "formula is empty")
	}
	n, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) *SyntaxError {
	return &SyntaxError{Formula: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expr(minPrec int) (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}

	for {
		t := p.peek()
		if t.kind != tokOp {
			return left, nil
		}

		if t.text == "?" {
			if precTernary < minPrec {
				return left, nil
			}
			p.next()
			then, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			if c := p.next(); c.kind != tokOp || c.text != ":" {
				return nil, p.errorf(c, "expected ':' in conditional")
			}
			els, err := p.expr(precTernary)
			if err != nil {
				return nil, err
			}
			left = &condNode{cond: left, then: then, els: els}
			continue
		}

		prec, ok := binaryPrec[t.text]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.expr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: t.text, l: left, r: right}
	}
}

func (p *parser) unary() (node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+" || t.text == "!") {
		p.next()
		x, err := p.expr(precUnary)
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: t.text, x: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &numberNode{v: t.num}, nil
	case tokString:
		return &stringNode{s: t.text}, nil
	case tokRef:
		return &refNode{name: t.text}, nil
	case tokLParen:
		n, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, p.errorf(c, "expected ')'")
		}
		return n, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		switch strings.ToLower(t.text) {
		case "true":
			return &boolNode{b: true}, nil
		case "false":
			return &boolNode{b: false}, nil
		}
		return nil, p.errorf(t, "unknown name %s; field references are written [%s]", t.text, t.text)
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of formula")
	}
	return nil, p.errorf(t, "unexpected %q", t.text)
}

func (p *parser) call(name token) (node, error) {
	fn := strings.ToUpper(name.text)
	bounds, ok := functions[fn]
	if !ok {
		return nil, p.errorf(name, "unknown function %s", name.text)
	}
	p.next() // (

	args := []node{}
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if c := p.next(); c.kind != tokRParen {
		return nil, p.errorf(c, "expected ')' after %s arguments", fn)
	}

	if len(args) < bounds.min || (bounds.max >= 0 && len(args) > bounds.max) {
		return nil, p.errorf(name, "%s takes %s, got %d", fn, describeArity(bounds), len(args))
	}
	if fn == "IF" {
		return &condNode{cond: args[0], then: args[1], els: args[2]}, nil
	}
	return &callNode{name: fn, args: args}, nil
}

func describeArity(a arity) string {
	switch {
	case a.max < 0:
		return fmt.Sprintf("at least %d arguments", a.min)
	case a.min == a.max && a.min == 1:
		return "1 argument"
	case a.min == a.max:
		return fmt.Sprintf("exactly %d arguments", a.min)
	}
	return fmt.Sprintf("%d to %d arguments", a.min, a.max)
}
