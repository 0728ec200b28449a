package formula

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/pivotkit/record"
)

func precision(n int) *int { return &n }

func sampleFields() []CalculatedField {
	return []CalculatedField{
		{Name: "double", Formula: "[margin] * 2"},
		{Name: "margin", Formula: "[a] + [b]"},
		{Name: "ratio", Formula: "[a] / [b]", Precision: precision(3)},
		{Name: "X", Formula: "[Y] + 1"},
		{Name: "Y", Formula: "[X] + 1"},
		{Name: "bad", Formula: "[nope] + 1"},
	}
}

func TestEvaluateCalculatedFields(t *testing.T) {
	records := []*record.Record{
		row("a", 2, "b", 3),
		row("a", 10, "b", 0),
		row("a", "x", "b", 1),
	}

	for _, batch := range []int{1, 2, DefaultBatchSize} {
		ev := EvaluateCalculatedFields(records, sampleFields(), abFields, WithBatchSize(batch))

		keys := make([]string, len(ev.Fields))
		for i, f := range ev.Fields {
			keys[i] = f.Key()
		}
		assert.Equal(t, []string{"margin", "double", "ratio"}, keys, "dependencies evaluate first")
		assert.Equal(t, []string{"a", "b"}, ev.Fields[0].Dependencies)

		rejected := map[string]bool{}
		for _, r := range ev.Rejected {
			rejected[r.Field] = true
			assert.Error(t, r.Err)
		}
		assert.Equal(t, map[string]bool{"X": true, "Y": true, "bad": true}, rejected)

		require.Len(t, ev.Records, 3)
		first, second, third := ev.Records[0], ev.Records[1], ev.Records[2]

		assert.Equal(t, 5.0, mustFloat(t, first.Value("margin")))
		assert.Equal(t, 10.0, mustFloat(t, first.Value("double")))
		assert.InDelta(t, 2.0/3, mustFloat(t, first.Value("ratio")), 1e-12)

		assert.Equal(t, 0.0, mustFloat(t, second.Value("ratio")), "division by zero becomes 0")

		for _, key := range []string{"margin", "double", "ratio"} {
			assert.Equal(t, ErrorValue, third.Value(key).Text(), key)
		}
		assert.Equal(t, 3, ev.RowErrors)
		assert.False(t, third.Has("X"))

		require.NotNil(t, ev.GrandTotal)
		assert.Equal(t, 15.0, mustFloat(t, ev.GrandTotal.Value("margin")))
		assert.Equal(t, 30.0, mustFloat(t, ev.GrandTotal.Value("double")))
		assert.Equal(t, 0.667, mustFloat(t, ev.GrandTotal.Value("ratio")))
	}

	assert.False(t, records[0].Has("margin"), "input rows are untouched")
}

func TestGrandTotalsFollowVisibleRows(t *testing.T) {
	fields := []CalculatedField{{Name: "share", Formula: "[a] / 3"}}
	ev := EvaluateCalculatedFields([]*record.Record{row("a", 1), row("a", 1), row("a", 5)}, fields, []Field{{Key: "a"}})

	assert.Equal(t, 2.33, mustFloat(t, ev.GrandTotal.Value("share")))

	visible := ev.Records[:2]
	assert.Equal(t, 0.67, mustFloat(t, GrandTotals(visible, ev.Fields).Value("share")))
}

func TestCalculatedFieldKeyPrefersID(t *testing.T) {
	fields := []CalculatedField{
		{ID: "cf_margin", Name: "Margin", Formula: "[a] - [b]"},
		{ID: "cf_half", Name: "Half Margin", Formula: "[Margin] / 2"},
	}
	ev := EvaluateCalculatedFields([]*record.Record{row("a", 9, "b", 1)}, fields, abFields)
	require.Empty(t, ev.Rejected)
	assert.Equal(t, 8.0, mustFloat(t, ev.Records[0].Value("cf_margin")))
	assert.Equal(t, 4.0, mustFloat(t, ev.Records[0].Value("cf_half")))
}

// ============================================================================
// FORMAT
// ============================================================================

func TestFormat(t *testing.T) {
	tests := []struct {
		v      float64
		format string
		want   string
	}{
		{1234.5, FormatNumber, "1,234.50"},
		{0.1234, FormatPercentage, "12.34%"},
		{1234.5, FormatDecimal2, "1234.50"},
		{math.Pi, FormatDecimal4, "3.1416"},
		{1234.5, FormatInteger, "1235"},
		{12345, FormatScientific, "1.23e+04"},
		{2.5, "", "2.50"},
		{2.5, "unknown", "2.50"},
		{math.NaN(), "", "0.00"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Format(tc.v, tc.format), "%v as %q", tc.v, tc.format)
	}
}

func TestFormatCurrency(t *testing.T) {
	usd := Format(1234.5, FormatCurrency)
	assert.Contains(t, usd, "1,234")
	assert.Contains(t, usd, "USD")

	eur := Format(1234.5, FormatCurrency, WithCurrency("EUR"))
	assert.Contains(t, eur, "EUR")

	ignored := Format(1, FormatCurrency, WithCurrency("not-a-code"))
	assert.Contains(t, ignored, "USD")
}

func mustFloat(t *testing.T, v record.Value) float64 {
	t.Helper()
	f, ok := v.AsNumber()
	require.True(t, ok, "expected a number, got %s %q", v.Kind(), v.Text())
	return f
}
