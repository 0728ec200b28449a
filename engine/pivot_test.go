package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// PIVOT TESTS
// ============================================================================

var salesRecords = `[
  {"team": "X", "quarter": "Q1", "amt": 10},
  {"team": "X", "quarter": "Q2", "amt": 5},
  {"team": "Y", "quarter": "Q1", "amt": 20}
]`

func TestGrandTotalTracksFilter(t *testing.T) {
	records := mustRecords(`[{"team":"X","amt":10},{"team":"Y","amt":20}]`)
	spec := PivotSpec{
		Rows:            []string{"team"},
		Values:          []ValueSpec{{Field: "amt", Aggregation: AggSum}},
		ShowGrandTotals: true,
	}

	result := Pivot(records, spec)
	require.True(t, result.IsPivot)
	require.NotNil(t, result.GrandTotal)
	assert.Equal(t, 30.0, number(t, result.GrandTotal.Value("amt")))
	assert.Equal(t, true, result.GrandTotal.Value(FieldGrandTotal).ToAny())

	visible := ApplyFilters(records, Filters{Columns: map[string][]string{"team": {"X"}}})
	require.Len(t, visible, 1)

	total, err := GrandTotal(visible, spec)
	require.NoError(t, err)
	assert.Equal(t, 10.0, number(t, total.Value("amt")))

	filtered := Pivot(records, spec, WithVisible(visible))
	assert.Equal(t, 10.0, number(t, filtered.GrandTotal.Value("amt")))
	assert.Len(t, filtered.PivotData, 2, "rows still come from the pivot input")
}

func TestPivotGroupByWithoutColumns(t *testing.T) {
	result := Pivot(mustRecords(salesRecords), PivotSpec{
		Rows:   []string{"team"},
		Values: []ValueSpec{{Field: "amt", Aggregation: AggSum}, {Field: "amt", Aggregation: "avg"}},
	})
	require.True(t, result.IsPivot)
	require.NoError(t, result.Err)

	assert.Equal(t, []string{"team", "amt_sum", "amt_average"}, columnKeys(result))
	require.Len(t, result.PivotData, 2)

	x := result.PivotData[0]
	assert.Equal(t, "X", x.Value("team").Text())
	assert.Equal(t, 15.0, number(t, x.Value("amt_sum")))
	assert.Equal(t, 7.5, number(t, x.Value("amt_average")))
	assert.Nil(t, result.GrandTotal, "grand total only on request")
}

func TestPivotSpreadsColumns(t *testing.T) {
	result := Pivot(mustRecords(salesRecords), PivotSpec{
		Rows:             []string{"team"},
		Columns:          []string{"quarter"},
		Values:           []ValueSpec{{Field: "amt", Aggregation: AggSum}},
		ShowRowTotals:    true,
		ShowColumnTotals: true,
	})
	require.True(t, result.IsPivot)

	assert.Equal(t, []string{"team", "Q1__amt_sum", "Q2__amt_sum", "total__amt_sum"}, columnKeys(result))
	assert.Equal(t, []string{"Q1"}, result.PivotColumns[1].ColumnPath)
	assert.Equal(t, ColumnRowTotal, result.PivotColumns[3].Type)

	require.Len(t, result.PivotData, 2)
	x, y := result.PivotData[0], result.PivotData[1]
	assert.Equal(t, 10.0, number(t, x.Value("Q1__amt_sum")))
	assert.Equal(t, 5.0, number(t, x.Value("Q2__amt_sum")))
	assert.Equal(t, 15.0, number(t, x.Value("total__amt_sum")))
	assert.Equal(t, 20.0, number(t, y.Value("Q1__amt_sum")))
	assert.Equal(t, 0.0, number(t, y.Value("Q2__amt_sum")), "empty intersection sums to zero")

	require.NotNil(t, result.ColumnTotals)
	assert.Equal(t, 30.0, number(t, result.ColumnTotals.Value("Q1__amt_sum")))
	assert.Equal(t, 5.0, number(t, result.ColumnTotals.Value("Q2__amt_sum")))
	assert.Equal(t, 35.0, number(t, result.ColumnTotals.Value("total__amt_sum")))
}

func TestPivotColumnKeysStayUniqueAcrossKinds(t *testing.T) {
	records := mustRecords(`[
	  {"team": "X", "yr": 2024, "amt": 1},
	  {"team": "X", "yr": "2024", "amt": 2},
	  {"team": "X", "yr": "total", "amt": 4}
	]`)
	result := Pivot(records, PivotSpec{
		Rows:            []string{"team"},
		Columns:         []string{"yr"},
		Values:          []ValueSpec{{Field: "amt", Aggregation: AggSum}},
		ShowRowTotals:   true,
		ShowGrandTotals: true,
	})
	require.True(t, result.IsPivot)

	assert.Equal(t, []string{"team", "2024__amt_sum", "2024~2__amt_sum", "total~2__amt_sum", "total__amt_sum"}, columnKeys(result))
	assert.Equal(t, result.PivotColumns[1].Label, result.PivotColumns[2].Label, "labels keep the display text")

	require.Len(t, result.PivotData, 1)
	row := result.PivotData[0]
	assert.Equal(t, 1.0, number(t, row.Value("2024__amt_sum")))
	assert.Equal(t, 2.0, number(t, row.Value("2024~2__amt_sum")))
	assert.Equal(t, 4.0, number(t, row.Value("total~2__amt_sum")))
	assert.Equal(t, 7.0, number(t, row.Value("total__amt_sum")))

	grand := result.GrandTotal
	require.NotNil(t, grand)
	assert.Equal(t, 3.0, number(t, grand.Value("2024__amt_sum"))+number(t, grand.Value("2024~2__amt_sum")))
	assert.Equal(t, 7.0, number(t, grand.Value("total__amt_sum")))
}

func TestPivotSorting(t *testing.T) {
	records := mustRecords(`[{"k":"b","v":1},{"k":"c","v":2},{"k":"a","v":3}]`)
	spec := PivotSpec{Rows: []string{"k"}, Values: []ValueSpec{{Field: "v", Aggregation: AggSum}}}

	assert.Equal(t, []string{"b", "c", "a"}, rowLabels(Pivot(records, spec), "k"), "first-seen order")

	spec.SortRows = true
	assert.Equal(t, []string{"a", "b", "c"}, rowLabels(Pivot(records, spec), "k"))

	spec.SortDirection = "desc"
	assert.Equal(t, []string{"c", "b", "a"}, rowLabels(Pivot(records, spec), "k"))
}

func TestPivotSubTotals(t *testing.T) {
	records := mustRecords(`[
	  {"region":"E","team":"a","amt":1},
	  {"region":"W","team":"b","amt":2},
	  {"region":"E","team":"c","amt":3}
	]`)
	result := Pivot(records, PivotSpec{
		Rows:          []string{"region", "team"},
		Values:        []ValueSpec{{Field: "amt", Aggregation: AggSum}},
		ShowSubTotals: true,
	})
	require.True(t, result.IsPivot)
	require.Len(t, result.PivotData, 5)

	rows := result.PivotData
	assert.Equal(t, "a", rows[0].Value("team").Text())
	assert.Equal(t, "c", rows[1].Value("team").Text())

	assert.True(t, rows[2].Has(FieldSubTotal))
	assert.Equal(t, "E", rows[2].Value("region").Text())
	assert.True(t, rows[2].Value("team").IsNull())
	assert.Equal(t, 1.0, number(t, rows[2].Value(FieldSubTotalLevel)))
	assert.Equal(t, 4.0, number(t, rows[2].Value("amt")))

	assert.Equal(t, "b", rows[3].Value("team").Text())
	assert.Equal(t, 2.0, number(t, rows[4].Value("amt")))
	assert.True(t, rows[4].Has(FieldSubTotal))
}

func TestAggregationSkipsNonNumbers(t *testing.T) {
	records := []*record.Record{
		record.New().Set("g", record.String("x")).Set("amt", record.Number(10)),
		record.New().Set("g", record.String("x")).Set("amt", record.String("12")),
		record.New().Set("g", record.String("x")).Set("amt", record.Null()),
		record.New().Set("g", record.String("y")).Set("amt", record.String("n/a")),
	}
	result := Pivot(records, PivotSpec{
		Rows: []string{"g"},
		Values: []ValueSpec{
			{Field: "amt", Aggregation: AggSum},
			{Field: "amt", Aggregation: AggCount},
			{Field: "amt", Aggregation: AggMax},
		},
	})
	require.True(t, result.IsPivot)
	x, y := result.PivotData[0], result.PivotData[1]

	assert.Equal(t, 10.0, number(t, x.Value("amt_sum")), "strings are never coerced")
	assert.Equal(t, 2.0, number(t, x.Value("amt_count")), "count counts defined values")
	assert.Equal(t, 10.0, number(t, x.Value("amt_max")))

	assert.Equal(t, 0.0, number(t, y.Value("amt_sum")))
	assert.True(t, y.Value("amt_max").IsNull())
}

func TestAggregateValues(t *testing.T) {
	vals := []record.Value{record.Number(4), record.Number(1), record.Number(7)}
	for agg, want := range map[Aggregation]float64{
		AggSum:     12,
		AggCount:   3,
		AggAverage: 4,
		AggMin:     1,
		AggMax:     7,
		AggFirst:   4,
		AggLast:    7,
	} {
		assert.Equal(t, want, number(t, AggregateValues(agg, vals)), string(agg))
	}
	assert.Equal(t, 0.0, number(t, AggregateValues(AggCount, nil)))
	assert.True(t, AggregateValues(AggAverage, nil).IsNull())
}

func TestInvalidSpecReturnsInput(t *testing.T) {
	records := mustRecords(salesRecords)

	for name, spec := range map[string]PivotSpec{
		"no values":       {Rows: []string{"team"}},
		"unknown agg":     {Rows: []string{"team"}, Values: []ValueSpec{{Field: "amt", Aggregation: "median"}}},
		"empty field":     {Rows: []string{"team"}, Values: []ValueSpec{{Aggregation: AggSum}}},
		"bad sort":        {Values: []ValueSpec{{Field: "amt"}}, SortDirection: "sideways"},
		"blank dimension": {Rows: []string{" "}, Values: []ValueSpec{{Field: "amt"}}},
	} {
		t.Run(name, func(t *testing.T) {
			result := Pivot(records, spec)
			assert.False(t, result.IsPivot)
			assert.Equal(t, records, result.PivotData)

			var cfgErr *PivotConfigurationError
			assert.ErrorAs(t, result.Err, &cfgErr)
		})
	}
}

func TestPivotSpecJSONAcceptsAliases(t *testing.T) {
	var spec PivotSpec
	require.NoError(t, json.Unmarshal([]byte(`{
	  "rows": ["team"],
	  "values": [{"field": "amt", "aggregation": "mean"}],
	  "showGrandTotals": true
	}`), &spec))
	assert.Equal(t, AggAverage, spec.Values[0].Aggregation)
	assert.True(t, spec.ShowGrandTotals)

	assert.Error(t, json.Unmarshal([]byte(`{"values": [{"field": "amt", "aggregation": "median"}]}`), &spec))
}

func TestPivotViewOverTypedStructs(t *testing.T) {
	type ticket struct {
		Team   string
		Points int
	}
	view := NewDomainAdapter[ticket]().
		Field("team", func(t ticket) any { return t.Team }).
		Field("points", func(t ticket) any { return t.Points }).
		Bind([]ticket{{"Core", 3}, {"Edge", 5}, {"Core", 8}})

	result := PivotView(view, PivotSpec{
		Rows:   []string{"team"},
		Values: []ValueSpec{{Field: "points", Aggregation: AggSum}},
	})
	require.True(t, result.IsPivot)
	require.Len(t, result.PivotData, 2)
	assert.Equal(t, 11.0, number(t, result.PivotData[0].Value("points")))

	bad := PivotView(view, PivotSpec{})
	assert.False(t, bad.IsPivot)
	require.Len(t, bad.PivotData, 3)
	assert.Equal(t, []string{"team", "points"}, bad.PivotData[0].Keys())
}

// ============================================================================
// HELPERS
// ============================================================================

func mustRecords(src string) []*record.Record {
	v, err := record.DecodeJSON([]byte(src))
	if err != nil {
		panic(err)
	}
	return record.Collect(v)
}

func number(t *testing.T, v record.Value) float64 {
	t.Helper()
	n, ok := v.AsNumber()
	require.True(t, ok, "expected a number, got %s", v.Kind())
	return n
}

func columnKeys(result *PivotResult) []string {
	keys := make([]string, len(result.PivotColumns))
	for i, c := range result.PivotColumns {
		keys[i] = c.Key
	}
	return keys
}

func rowLabels(result *PivotResult, field string) []string {
	out := make([]string, len(result.PivotData))
	for i, r := range result.PivotData {
		out[i] = r.Value(field).Text()
	}
	return out
}
