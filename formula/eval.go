package formula

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// EVALUATOR — Walks the expression tree against one row
// ============================================================================
// The only inputs are the row and the field mapping. Missing and null
// references read as 0. Numeric strings take part in arithmetic; any other
// string there is a CalculationError.
// ============================================================================

type value = record.Value

type env struct {
	row     *record.Record
	mapping map[string]string
}

// lookup resolves a reference through the mapping, then by key.
func (e *env) lookup(name string) value {
	if key, ok := e.mapping[name]; ok {
		if v, ok := e.row.Get(key); ok {
			return v
		}
	}
	if v, ok := e.row.Get(name); ok {
		return v
	}
	return record.Null()
}

func (n *numberNode) eval(*env) (value, error) { return record.Number(n.v), nil }
func (n *stringNode) eval(*env) (value, error) { return record.String(n.s), nil }
func (n *boolNode) eval(*env) (value, error)   { return record.Bool(n.b), nil }

func (n *refNode) eval(e *env) (value, error) {
	v := e.lookup(n.name)
	switch v.Kind() {
	case record.KindNull:
		return record.Number(0), nil
	case record.KindRecord, record.KindList:
		return v, calcErrorf("field %s holds a %s, not a scalar", n.name, v.Kind())
	}
	return v, nil
}

func (n *unaryNode) eval(e *env) (value, error) {
	x, err := n.x.eval(e)
	if err != nil {
		return x, err
	}
	if n.op == "!" {
		return record.Bool(!truthy(x)), nil
	}
	f, err := toNumber(x)
	if err != nil {
		return x, err
	}
	if n.op == "-" {
		f = -f
	}
	return record.Number(f), nil
}

func (n *condNode) eval(e *env) (value, error) {
	c, err := n.cond.eval(e)
	if err != nil {
		return c, err
	}
	if truthy(c) {
		return n.then.eval(e)
	}
	return n.els.eval(e)
}

func (n *binaryNode) eval(e *env) (value, error) {
	// Short-circuit logical operators.
	if n.op == "&&" || n.op == "||" {
		l, err := n.l.eval(e)
		if err != nil {
			return l, err
		}
		if (n.op == "&&") != truthy(l) {
			return record.Bool(truthy(l)), nil
		}
		r, err := n.r.eval(e)
		if err != nil {
			return r, err
		}
		return record.Bool(truthy(r)), nil
	}

	l, err := n.l.eval(e)
	if err != nil {
		return l, err
	}
	r, err := n.r.eval(e)
	if err != nil {
		return r, err
	}

	switch n.op {
	case "==", "=", "!=", "<>", "<", "<=", ">", ">=":
		return compare(n.op, l, r)
	}

	a, err := toNumber(l)
	if err != nil {
		return l, err
	}
	b, err := toNumber(r)
	if err != nil {
		return r, err
	}
	switch n.op {
	case "+":
		return record.Number(a + b), nil
	case "-":
		return record.Number(a - b), nil
	case "*":
		return record.Number(a * b), nil
	case "/":
		return record.Number(a / b), nil
	case "%":
		return record.Number(math.Mod(a, b)), nil
	}
	return l, calcErrorf("unsupported operator %s", n.op)
}

// compare orders strings as text when neither side is numeric, and
// everything else as numbers.
func compare(op string, l, r value) (value, error) {
	var c int
	ls, lok := l.AsString()
	rs, rok := r.AsString()
	_, lnum := parseNumeric(ls)
	_, rnum := parseNumeric(rs)

	if lok && rok && !(lnum && rnum) {
		c = strings.Compare(ls, rs)
	} else {
		a, err := toNumber(l)
		if err != nil {
			return l, err
		}
		b, err := toNumber(r)
		if err != nil {
			return r, err
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	}

	switch op {
	case "==", "=":
		return record.Bool(c == 0), nil
	case "!=", "<>":
		return record.Bool(c != 0), nil
	case "<":
		return record.Bool(c < 0), nil
	case "<=":
		return record.Bool(c <= 0), nil
	case ">":
		return record.Bool(c > 0), nil
	}
	return record.Bool(c >= 0), nil
}

func (n *callNode) eval(e *env) (value, error) {
	args := make([]value, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(e)
		if err != nil {
			return v, err
		}
		args[i] = v
	}

	switch n.name {
	case "SUM", "AVG", "COUNT":
		nums := numericArgs(args)
		switch n.name {
		case "COUNT":
			return record.Number(float64(len(nums))), nil
		case "SUM":
			return record.Number(total(nums)), nil
		}
		if len(nums) == 0 {
			return record.Number(0), nil
		}
		return record.Number(total(nums) / float64(len(nums))), nil
	}

	nums := make([]float64, len(args))
	for i, a := range args {
		f, err := toNumber(a)
		if err != nil {
			return a, err
		}
		nums[i] = f
	}

	switch n.name {
	case "ABS":
		return record.Number(math.Abs(nums[0])), nil
	case "FLOOR":
		return record.Number(math.Floor(nums[0])), nil
	case "CEIL":
		return record.Number(math.Ceil(nums[0])), nil
	case "SQRT":
		return record.Number(math.Sqrt(nums[0])), nil
	case "POW":
		return record.Number(math.Pow(nums[0], nums[1])), nil
	case "ROUND":
		places := 0.0
		if len(nums) == 2 {
			places = nums[1]
		}
		return record.Number(roundTo(nums[0], int32(places))), nil
	case "MAX":
		m := nums[0]
		for _, f := range nums[1:] {
			m = math.Max(m, f)
		}
		return record.Number(m), nil
	case "MIN":
		m := nums[0]
		for _, f := range nums[1:] {
			m = math.Min(m, f)
		}
		return record.Number(m), nil
	}
	return record.Null(), calcErrorf("unknown function %s", n.name)
}

// numericArgs keeps only finite numbers, ignoring everything else.
func numericArgs(args []value) []float64 {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		if f, ok := a.Finite(); ok {
			out = append(out, f)
		}
	}
	return out
}

func total(nums []float64) float64 {
	var t float64
	for _, n := range nums {
		t += n
	}
	return t
}

// roundTo rounds half away from zero at the given decimal places.
func roundTo(f float64, places int32) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	out, _ := decimal.NewFromFloat(f).Round(places).Float64()
	return out
}

func toNumber(v value) (float64, error) {
	switch v.Kind() {
	case record.KindNull:
		return 0, nil
	case record.KindNumber:
		f, _ := v.AsNumber()
		return f, nil
	case record.KindBool:
		if b, _ := v.AsBool(); b {
			return 1, nil
		}
		return 0, nil
	case record.KindString:
		s, _ := v.AsString()
		if f, ok := parseNumeric(s); ok {
			return f, nil
		}
		return 0, calcErrorf("non-numeric value %q", s)
	}
	return 0, calcErrorf("cannot use a %s as a number", v.Kind())
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func truthy(v value) bool {
	switch v.Kind() {
	case record.KindBool:
		b, _ := v.AsBool()
		return b
	case record.KindNumber:
		f, _ := v.AsNumber()
		return f != 0 && !math.IsNaN(f)
	case record.KindString:
		s, _ := v.AsString()
		return s != ""
	case record.KindRecord, record.KindList:
		return true
	}
	return false
}
