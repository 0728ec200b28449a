package formula

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ============================================================================
// FORMULA TYPES
// ============================================================================
// A calculated field is a formula over bracketed field references:
//
//	[revenue] - [cost]
//	IF([units] > 0, [revenue] / [units], 0)
//	ROUND(AVG([q1], [q2], [q3]), 1)
//
// Formulas are persisted as plain strings and stay opaque until validated.
// ============================================================================

// ErrorValue is written into a row when its formula fails to evaluate.
const ErrorValue = "Error"

// DefaultPrecision is the grand-total rounding when a field declares none.
const DefaultPrecision = 2

// Field is one field a formula may reference.
type Field struct {
	Key  string `json:"key" mapstructure:"key"`
	Name string `json:"name,omitempty" mapstructure:"name"` // display name, also accepted in references
	Type string `json:"type,omitempty" mapstructure:"type"`
}

// CalculatedField is a named formula producing one new field per row.
type CalculatedField struct {
	ID           string   `json:"id,omitempty" mapstructure:"id"`
	Name         string   `json:"name" mapstructure:"name"`
	Formula      string   `json:"formula" mapstructure:"formula"`
	Format       string   `json:"format,omitempty" mapstructure:"format"`
	Precision    *int     `json:"precision,omitempty" mapstructure:"precision"`
	Dependencies []string `json:"dependencies,omitempty" mapstructure:"dependencies"`
}

// Key is the output field: the ID when set, else the name.
func (c CalculatedField) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Name
}

// Digits returns the grand-total precision.
func (c CalculatedField) Digits() int {
	if c.Precision == nil || *c.Precision < 0 {
		return DefaultPrecision
	}
	return *c.Precision
}

// ParseResult lists what a formula mentions, each in first-seen order.
type ParseResult struct {
	Dependencies []string  `json:"dependencies"`
	Functions    []string  `json:"functions"`
	Operators    []string  `json:"operators"`
	Constants    []float64 `json:"constants"`
}

// ValidationResult reports every problem found in a formula.
type ValidationResult struct {
	IsValid      bool     `json:"isValid"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
	Dependencies []string `json:"dependencies"`

	errs []error
}

// Err combines all validation errors, or returns nil when valid.
func (v ValidationResult) Err() error {
	return multierr.Combine(v.errs...)
}

func (v *ValidationResult) fail(err error) {
	v.errs = append(v.errs, err)
	v.Errors = append(v.Errors, err.Error())
	v.IsValid = false
}

func (v *ValidationResult) warn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// DependencyReport is the outcome of a cycle check.
type DependencyReport struct {
	HasCircularDependency bool     `json:"hasCircularDependency"`
	CircularFields        []string `json:"circularFields"`
}

// ============================================================================
// ERRORS
// ============================================================================

// SyntaxError reports a malformed formula. Pos is a byte offset, or -1.
type SyntaxError struct {
	Formula string
	Pos     int
	Msg     string
}

func (e *SyntaxError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("formula syntax: %s at position %d", e.Msg, e.Pos)
	}
	return "formula syntax: " + e.Msg
}

// DependencyError reports a reference to a missing field or a cycle.
type DependencyError struct {
	Field string
	Cycle []string
}

func (e *DependencyError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("formula dependency: circular reference %s", strings.Join(e.Cycle, " -> "))
	}
	return fmt.Sprintf("formula dependency: field not available: %s", e.Field)
}

// CalculationError reports a runtime failure evaluating a valid formula.
type CalculationError struct {
	Formula string
	Msg     string
}

func (e *CalculationError) Error() string {
	return "calculation error: " + e.Msg
}

func calcErrorf(format string, args ...any) *CalculationError {
	return &CalculationError{Msg: fmt.Sprintf(format, args...)}
}
