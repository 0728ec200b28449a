package engine

import (
	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// TABLE BUILDER — Flattens records into a render-ready grid
// ============================================================================
// Pivoted results keep their column descriptors. Plain record sets get
// columns discovered in first-seen key order; a column holding only numbers
// is a value column aligned right. Total rows go to the footer.
// ============================================================================

// TableData is a grid of display strings.
type TableData struct {
	Columns []ColumnDescriptor `json:"columns"`
	Rows    [][]string         `json:"rows"`
	Footer  [][]string         `json:"footer,omitempty"`
}

// CellFormatter renders one cell. Nil uses Value.Text.
type CellFormatter func(col ColumnDescriptor, v record.Value) string

// BuildTable lays out a pivot result.
func BuildTable(res *PivotResult, format CellFormatter) *TableData {
	if res == nil {
		return &TableData{Columns: []ColumnDescriptor{}, Rows: [][]string{}}
	}
	cols := res.PivotColumns
	if !res.IsPivot || len(cols) == 0 {
		cols = DiscoverColumns(res.PivotData)
	}
	return BuildGrid(cols, res.PivotData, format, res.ColumnTotals, res.GrandTotal)
}

// BuildGrid lays out rows under cols. Nil totals are skipped.
func BuildGrid(cols []ColumnDescriptor, rows []*record.Record, format CellFormatter, totals ...*record.Record) *TableData {
	if format == nil {
		format = func(_ ColumnDescriptor, v record.Value) string { return v.Text() }
	}
	line := func(r *record.Record) []string {
		out := make([]string, len(cols))
		for i, c := range cols {
			out[i] = format(c, r.Value(c.Key))
		}
		return out
	}

	td := &TableData{Columns: cols, Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		td.Rows = append(td.Rows, line(r))
	}
	for _, t := range totals {
		if t != nil {
			td.Footer = append(td.Footer, line(t))
		}
	}
	return td
}

// DiscoverColumns lists every key of records in first-seen order. Marker
// fields of total rows are left out.
func DiscoverColumns(records []*record.Record) []ColumnDescriptor {
	order := []string{}
	numeric := map[string]bool{}
	seen := map[string]bool{}
	for _, r := range records {
		r.Range(func(key string, v record.Value) bool {
			if isMarker(key) {
				return true
			}
			if !seen[key] {
				seen[key] = true
				numeric[key] = true
				order = append(order, key)
			}
			if !v.IsNull() && v.Kind() != record.KindNumber {
				numeric[key] = false
			}
			return true
		})
	}

	cols := make([]ColumnDescriptor, 0, len(order))
	for _, key := range order {
		c := ColumnDescriptor{Key: key, Label: LabelForField(key), Type: ColumnDimension, Field: key, Align: "left"}
		if numeric[key] {
			c.Type, c.Align = ColumnValue, "right"
		}
		cols = append(cols, c)
	}
	return cols
}

func isMarker(key string) bool {
	switch key {
	case FieldGrandTotal, FieldColumnTotal, FieldSubTotal, FieldSubTotalLevel:
		return true
	}
	return false
}
