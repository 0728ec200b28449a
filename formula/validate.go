package formula

import (
	"math"
	"strings"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// VALIDATE → COMPILE → EXECUTE
// ============================================================================
// Validation is pure and fails closed: a formula that does not validate is
// never compiled, so it can never run.
// ============================================================================

// Validate checks formula against the fields it may reference.
func Validate(formula string, available []Field) ValidationResult {
	res := ValidationResult{
		IsValid:      true,
		Errors:       []string{},
		Warnings:     []string{},
		Dependencies: []string{},
	}

	if strings.TrimSpace(formula) == "" {
		res.fail(&SyntaxError{Formula: formula, Pos: -1, Msg: "formula is empty"})
		return res
	}

	parsed, err := Parse(formula)
	if err != nil {
		res.fail(err)
		return res
	}
	res.Dependencies = parsed.Dependencies

	for _, l := range scanLiterals(formula) {
		if l.ref && l.name(formula) == "" {
			res.fail(&SyntaxError{Formula: formula, Pos: l.start, Msg: "empty field reference"})
			break
		}
	}

	bare := stripLiterals(formula)
	if pos, msg := checkParens(bare); msg != "" {
		res.fail(&SyntaxError{Formula: formula, Pos: pos, Msg: msg})
	}
	for _, loc := range ifPattern.FindAllStringIndex(bare, -1) {
		if n := countArgs(bare, loc[1]); n != 3 {
			res.fail(&SyntaxError{Formula: formula, Pos: loc[0], Msg: "IF requires exactly 3 arguments"})
		}
	}

	known := fieldIndex(available)
	for _, dep := range parsed.Dependencies {
		if _, ok := known[dep]; !ok {
			res.fail(&DependencyError{Field: dep})
		}
	}

	if strings.Contains(bare, "/") && !ifPattern.MatchString(bare) {
		res.warn("formula divides without an IF guard; division by zero yields 0")
	}

	// Only a formula that passed the checks above gets a full parse, so
	// errors are not reported twice.
	if res.IsValid {
		if _, err := parseExpr(formula); err != nil {
			res.fail(err)
		}
	}

	return res
}

// Program is a validated, parsed formula ready to run against rows.
type Program struct {
	formula string
	root    node
	mapping map[string]string
}

// Compile validates formula and parses it once. The returned error combines
// every validation error.
func Compile(formula string, available []Field) (*Program, error) {
	res := Validate(formula, available)
	if !res.IsValid {
		return nil, res.Err()
	}
	root, err := parseExpr(formula)
	if err != nil {
		return nil, err
	}
	return &Program{formula: formula, root: root, mapping: nameMapping(available)}, nil
}

// Formula returns the source text.
func (p *Program) Formula() string { return p.formula }

// Eval runs the program against one row. fieldMapping maps reference names
// to record keys and takes precedence over the field names given to
// Compile. Non-finite results become 0.
func (p *Program) Eval(row *record.Record, fieldMapping map[string]string) (float64, error) {
	mapping := p.mapping
	if len(fieldMapping) > 0 {
		mapping = make(map[string]string, len(p.mapping)+len(fieldMapping))
		for k, v := range p.mapping {
			mapping[k] = v
		}
		for k, v := range fieldMapping {
			mapping[k] = v
		}
	}

	v, err := p.root.eval(&env{row: row, mapping: mapping})
	if err != nil {
		if ce, ok := err.(*CalculationError); ok {
			ce.Formula = p.formula
		}
		return 0, err
	}
	f, err := toNumber(v)
	if err != nil {
		return 0, &CalculationError{Formula: p.formula, Msg: "result is not a number"}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil
	}
	return f, nil
}

// Execute validates formula and evaluates it against row. A nil available
// list accepts every field present on row.
func Execute(formula string, row *record.Record, available []Field, fieldMapping map[string]string) (float64, error) {
	if available == nil {
		available = RowFields(row)
		for name := range fieldMapping {
			available = append(available, Field{Key: name})
		}
	}
	prog, err := Compile(formula, available)
	if err != nil {
		return 0, err
	}
	return prog.Eval(row, fieldMapping)
}

// RowFields lists the fields of row as available fields.
func RowFields(row *record.Record) []Field {
	keys := row.Keys()
	out := make([]Field, len(keys))
	for i, k := range keys {
		out[i] = Field{Key: k}
	}
	return out
}

// fieldIndex accepts references by key or by display name.
func fieldIndex(available []Field) map[string]string {
	idx := make(map[string]string, len(available)*2)
	for _, f := range available {
		if f.Key != "" {
			idx[f.Key] = f.Key
		}
	}
	for _, f := range available {
		if f.Name != "" {
			if _, taken := idx[f.Name]; !taken {
				idx[f.Name] = f.Key
			}
		}
	}
	return idx
}

// nameMapping maps display names to keys where they differ.
func nameMapping(available []Field) map[string]string {
	m := map[string]string{}
	for name, key := range fieldIndex(available) {
		if name != key {
			m[name] = key
		}
	}
	return m
}

// checkParens returns the offset and message of the first imbalance.
func checkParens(s string) (int, string) {
	depth, open := 0, -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			if depth == 0 {
				open = i
			}
			depth++
		case ')':
			depth--
			if depth < 0 {
				return i, "unmatched ')'"
			}
		}
	}
	if depth > 0 {
		return open, "unclosed '('"
	}
	return -1, ""
}

// countArgs counts top-level comma-separated arguments of the call whose
// opening parenthesis ends just before start.
func countArgs(s string, start int) int {
	depth, args, empty := 0, 1, true
	for i := start; i < len(s); i++ {
		switch c := s[i]; c {
		case '(':
			depth++
			empty = false
		case ')':
			if depth == 0 {
				if empty && args == 1 {
					return 0
				}
				return args
			}
			depth--
		case ',':
			if depth == 0 {
				args++
			}
		case ' ', '\t', '\n', '\r':
		default:
			empty = false
		}
	}
	return args
}
