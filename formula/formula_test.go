package formula

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// PARSE / VALIDATE / EXECUTE
// ============================================================================

var abFields = []Field{{Key: "a"}, {Key: "b"}}

func row(kv ...any) *record.Record {
	r := record.New()
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i].(string), record.FromAny(kv[i+1]))
	}
	return r
}

func TestFormulaRoundTrip(t *testing.T) {
	res := Validate("[a]+[b]", abFields)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.NoError(t, res.Err())
	assert.Equal(t, []string{"a", "b"}, res.Dependencies)

	got, err := Execute("[a]+[b]", row("a", 2, "b", 3), abFields, nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)
}

func TestParse(t *testing.T) {
	res, err := Parse(`ROUND(IF([q1 total] >= 10, [q1 total] * 1.5, -2), 1) + abs([x])`)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1 total", "x"}, res.Dependencies)
	assert.Equal(t, []string{"ROUND", "IF", "ABS"}, res.Functions)
	assert.Equal(t, []string{">", "=", "*", "-", "+"}, res.Operators)
	assert.Equal(t, []float64{10, 1.5, 2, 1}, res.Constants)
}

func TestParseValueRejectsNonStrings(t *testing.T) {
	var syntaxErr *SyntaxError
	_, err := ParseValue(nil)
	assert.ErrorAs(t, err, &syntaxErr)
	_, err = ParseValue(42)
	assert.ErrorAs(t, err, &syntaxErr)

	res, err := ParseValue("[a] * 2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Dependencies)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		formula string
		syntax  bool
		dep     bool
	}{
		{"[a] + [missing]", false, true},
		{"([a] + [b]", true, false},
		{"[a] + [b])", true, false},
		{"[a] + []", true, false},
		{"IF([a] > 0, [b])", true, false},
		{"IF([a] > 0, [b], 1, 2)", true, false},
		{"MEDIAN([a])", true, false},
		{"[a] +* [b]", true, false},
		{"   ", true, false},
	}

	for _, tc := range tests {
		t.Run(tc.formula, func(t *testing.T) {
			res := Validate(tc.formula, abFields)
			assert.False(t, res.IsValid)
			assert.NotEmpty(t, res.Errors)

			var syntaxErr *SyntaxError
			var depErr *DependencyError
			assert.Equal(t, tc.syntax, errors.As(res.Err(), &syntaxErr), "syntax error")
			assert.Equal(t, tc.dep, errors.As(res.Err(), &depErr), "dependency error")
		})
	}
}

func TestValidateDivisionWarning(t *testing.T) {
	res := Validate("[a]/[b]", abFields)
	assert.True(t, res.IsValid)
	require.Len(t, res.Warnings, 1)

	guarded := Validate("IF([b] = 0, 0, [a] / [b])", abFields)
	assert.True(t, guarded.IsValid)
	assert.Empty(t, guarded.Warnings)
}

func TestValidateAcceptsDisplayNames(t *testing.T) {
	fields := []Field{{Key: "rev", Name: "Revenue"}, {Key: "cost", Name: "Cost"}}
	assert.True(t, Validate("[Revenue] - [cost]", fields).IsValid)

	got, err := Execute("[Revenue] - [cost]", row("rev", 10, "cost", 4), fields, nil)
	require.NoError(t, err)
	assert.Equal(t, 6.0, got)
}

func TestDivisionByZeroIsZero(t *testing.T) {
	got, err := Execute("[a]/[b]", row("a", 5, "b", 0), abFields, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	got, err = Execute("[a]/[b] + 1", row("a", 0, "b", 0), abFields, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got, "NaN propagates, then becomes 0")
}

func TestExecute(t *testing.T) {
	r := row("a", 7, "b", -2.5, "s", "12", "name", "Oslo", "flag", true)
	// "missing" is a known field this row happens not to carry.
	fields := append(RowFields(r), Field{Key: "missing"})

	tests := []struct {
		formula string
		want    float64
	}{
		{"[a] * 2 + [b]", 11.5},
		{"-[a] + 10 % 4", -5},
		{"([a] + 1) * ([b] - 0.5)", -24},
		{"ABS([b])", 2.5},
		{"ROUND(2.345, 2)", 2.35},
		{"ROUND([b])", -3},
		{"FLOOR([b])", -3},
		{"CEIL([b])", -2},
		{"SQRT(16)", 4},
		{"POW(2, 10)", 1024},
		{"MAX([a], [b], 3)", 7},
		{"MIN([a], [b], 3)", -2.5},
		{"AVG([a], [b], [name])", 2.25},
		{"SUM(1, 2, [name])", 3},
		{"COUNT([a], [b], [name], [missing])", 3},
		{"IF([a] > 5, 1, 0)", 1},
		{"IF([a] > 5 && [b] > 0, 1, 0)", 0},
		{"IF([a] > 5 || [b] > 0, 1, 0)", 1},
		{"IF(![flag], 1, 2)", 2},
		{"IF([name] = \"Oslo\", 100, 0)", 100},
		{"IF([name] <> 'Oslo', 100, 0)", 0},
		{"[s] * 2", 24},
		{"[missing] + 1", 1},
		{"[a] > 3 ? 10 : 20", 10},
		{"1e3 + .5", 1000.5},
		{"if([a] >= 7, TRUE, false)", 1},
	}

	for _, tc := range tests {
		t.Run(tc.formula, func(t *testing.T) {
			got, err := Execute(tc.formula, r, fields, nil)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestExecuteOnlyRunsChosenBranch(t *testing.T) {
	r := row("qty", 0, "label", "n/a")
	got, err := Execute("IF([qty] = 0, 0, [label] * 2)", r, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestCalculationError(t *testing.T) {
	_, err := Execute("[name] * 2", row("name", "Oslo"), nil, nil)
	var calcErr *CalculationError
	require.ErrorAs(t, err, &calcErr)
	assert.Equal(t, "[name] * 2", calcErr.Formula)
}

func TestExecuteFailsClosed(t *testing.T) {
	_, err := Execute("[a] + [zzz]", row("a", 1), abFields, nil)
	var depErr *DependencyError
	assert.ErrorAs(t, err, &depErr)
}

func TestUnbracketedNamesAreRejected(t *testing.T) {
	res := Validate("revenu * 2", []Field{{Key: "revenue"}})
	assert.False(t, res.IsValid)
	var syntaxErr *SyntaxError
	require.ErrorAs(t, res.Err(), &syntaxErr)
	assert.Contains(t, syntaxErr.Msg, "[revenu]")

	_, err := Execute("secret * 1", row("a", 1, "secret", 42), []Field{{Key: "a"}}, nil)
	assert.ErrorAs(t, err, &syntaxErr)

	res = Validate("prix_é * 2", nil)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "prix_é")

	got, err := Execute("IF([a] > 0 && true, 1, 0)", row("a", 1), abFields, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	ev := EvaluateCalculatedFields([]*record.Record{row("a", 1)}, []CalculatedField{
		{Name: "X", Formula: "Y + 1"},
		{Name: "Y", Formula: "X + 1"},
	}, abFields)
	require.Len(t, ev.Rejected, 2)
	for _, r := range ev.Rejected {
		assert.ErrorAs(t, r.Err, &syntaxErr, r.Field)
	}
	assert.Equal(t, 1, ev.Records[0].Len())
}

func TestBracketsInsideStringsAreText(t *testing.T) {
	res := Validate(`IF([a] = "[x]", 1, 0)`, abFields)
	assert.True(t, res.IsValid, res.Errors)
	assert.Equal(t, []string{"a"}, res.Dependencies)
	assert.True(t, Validate(`IF([a] = "[]", 1, 0)`, abFields).IsValid)

	got, err := Execute(`IF([a] = "[x]", 1, 0)`, row("a", "[x]"), abFields, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	parsed, err := Parse(`[it's] + ['o]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"it's", "'o"}, parsed.Dependencies)
}

func TestFieldMapping(t *testing.T) {
	got, err := Execute("[Total] * 2", row("total_amount", 4), nil, map[string]string{"Total": "total_amount"})
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)
}

// ============================================================================
// DEPENDENCIES
// ============================================================================

func TestCircularDependency(t *testing.T) {
	report := CheckDependencies([]CalculatedField{
		{Name: "X", Formula: "[Y] + 1"},
		{Name: "Y", Formula: "[X] + 1"},
		{Name: "Z", Formula: "[a] * 2"},
	})
	assert.True(t, report.HasCircularDependency)
	assert.Equal(t, []string{"X", "Y"}, report.CircularFields)

	self := CheckDependencies([]CalculatedField{{Name: "S", Formula: "[S] * 2"}})
	assert.Equal(t, []string{"S"}, self.CircularFields)

	clean := CheckDependencies([]CalculatedField{
		{Name: "margin", Formula: "[revenue] - [cost]"},
		{Name: "marginPct", Formula: "[margin] / [revenue]"},
	})
	assert.False(t, clean.HasCircularDependency)
	assert.Empty(t, clean.CircularFields)
}
