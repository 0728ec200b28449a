package engine

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// PIVOT — Entry point
// ============================================================================
// Pipeline:
//   1. Validate spec, normalize aggregation aliases
//   2. Bucket columns (first-seen or sorted) → column layout
//   3. Bucket rows, hierarchically when sub-totals are requested
//   4. Fill cells per row bucket
//   5. Column totals over the pivot input
//   6. Grand total over the visible set (WithVisible), defaulting to input
//
// Pivot never fails outward: a bad spec or internal fault returns the input
// unpivoted with IsPivot=false and Err set.
// ============================================================================

// GrandTotalLabel is written into the first row field of total rows.
const GrandTotalLabel = "Grand Total"

// Pivot aggregates records per spec.
func Pivot(records []*record.Record, spec PivotSpec, opts ...Option) *PivotResult {
	return pivotView(NewSliceView(records), records, spec, opts...)
}

// PivotView aggregates any RecordView per spec.
func PivotView(view RecordView, spec PivotSpec, opts ...Option) *PivotResult {
	return pivotView(view, nil, spec, opts...)
}

func pivotView(view RecordView, original []*record.Record, spec PivotSpec, opts ...Option) (result *PivotResult) {
	cfg := applyOptions(opts)

	fallback := func(err error) *PivotResult {
		if original == nil {
			original = Records(view)
		}
		cfg.logger.Warnw("pivot: returning unpivoted records", "error", err, "records", len(original))
		return &PivotResult{
			IsPivot:      false,
			PivotData:    original,
			PivotColumns: []ColumnDescriptor{},
			Err:          err,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result = fallback(errors.Wrap(&PivotConfigurationError{Reason: fmt.Sprint(r)}, "pivot"))
		}
	}()

	spec, err := normalizeSpec(spec)
	if err != nil {
		return fallback(err)
	}

	var colBuckets []bucket
	if len(spec.Columns) > 0 {
		colBuckets = groupBy(view, spec.Columns)
		if spec.SortColumns {
			sortBuckets(colBuckets, spec.SortDirection)
		}
	}
	descs, cols := buildColumns(spec, spec.Values, colBuckets)

	var rows []*record.Record
	if spec.ShowSubTotals && len(spec.Rows) > 1 {
		rows = emitLevel(view, spec, cols, nil, 0)
	} else {
		rowBuckets := groupBy(view, spec.Rows)
		if spec.SortRows {
			sortBuckets(rowBuckets, spec.SortDirection)
		}
		rows = make([]*record.Record, 0, len(rowBuckets))
		for _, b := range rowBuckets {
			rows = append(rows, dataRow(b, spec, cols))
		}
	}

	result = &PivotResult{
		IsPivot:      true,
		PivotData:    rows,
		PivotColumns: descs,
	}

	if spec.ShowColumnTotals {
		totals := totalRow(spec)
		totals.Set(FieldColumnTotal, record.Bool(true))
		fillCells(totals, view, spec, cols)
		result.ColumnTotals = totals
	}

	if spec.ShowGrandTotals {
		visible := view
		if cfg.hasVisible {
			visible = NewSliceView(cfg.visible)
		}
		result.GrandTotal = grandTotal(visible, spec, cols)
	}

	cfg.logger.Debugw("pivot: done",
		"records", view.Len(), "rows", len(rows), "columns", len(descs),
		"rowFields", spec.Rows, "columnFields", spec.Columns)
	return result
}

// GrandTotal computes the grand-total record over visible records. Call it
// again whenever the active filter changes; it needs no pivot result.
func GrandTotal(visible []*record.Record, spec PivotSpec) (*record.Record, error) {
	spec, err := normalizeSpec(spec)
	if err != nil {
		return nil, err
	}
	view := NewSliceView(visible)

	var colBuckets []bucket
	if len(spec.Columns) > 0 {
		colBuckets = groupBy(view, spec.Columns)
		if spec.SortColumns {
			sortBuckets(colBuckets, spec.SortDirection)
		}
	}
	_, cols := buildColumns(spec, spec.Values, colBuckets)
	return grandTotal(view, spec, cols), nil
}

func grandTotal(visible RecordView, spec PivotSpec, cols []valueColumn) *record.Record {
	rec := totalRow(spec)
	rec.Set(FieldGrandTotal, record.Bool(true))
	fillCells(rec, visible, spec, cols)
	return rec
}

// totalRow starts a total record: the first row field carries the label,
// the rest are null so every dimension column is present.
func totalRow(spec PivotSpec) *record.Record {
	rec := record.NewWithCapacity(len(spec.Rows) + 1)
	for i, f := range spec.Rows {
		if i == 0 {
			rec.Set(f, record.String(GrandTotalLabel))
		} else {
			rec.Set(f, record.Null())
		}
	}
	return rec
}

// normalizeSpec validates and returns a copy with canonical aggregations.
func normalizeSpec(spec PivotSpec) (PivotSpec, error) {
	if err := spec.Validate(); err != nil {
		return spec, err
	}
	values := make([]ValueSpec, len(spec.Values))
	for i, v := range spec.Values {
		agg, _ := ParseAggregation(string(v.Aggregation))
		values[i] = ValueSpec{Field: v.Field, Aggregation: agg, Label: v.Label}
	}
	spec.Values = values
	return spec, nil
}

// ============================================================================
// ROWS
// ============================================================================

func dataRow(b bucket, spec PivotSpec, cols []valueColumn) *record.Record {
	rec := record.NewWithCapacity(len(spec.Rows) + len(cols))
	for i, f := range spec.Rows {
		rec.Set(f, b.tuple[i].Clone())
	}
	fillCells(rec, b.view, spec, cols)
	return rec
}

// emitLevel groups view by spec.Rows[depth], recursing into children and
// closing each intermediate group with a sub-total row. prefix holds the
// values fixed by outer levels.
func emitLevel(view RecordView, spec PivotSpec, cols []valueColumn, prefix []record.Value, depth int) []*record.Record {
	buckets := groupBy(view, spec.Rows[depth:depth+1])
	if spec.SortRows {
		sortBuckets(buckets, spec.SortDirection)
	}

	last := depth == len(spec.Rows)-1
	out := []*record.Record{}
	for _, b := range buckets {
		tuple := append(append([]record.Value{}, prefix...), b.tuple[0])
		if last {
			out = append(out, dataRow(bucket{key: b.key, tuple: tuple, view: b.view}, spec, cols))
			continue
		}

		out = append(out, emitLevel(b.view, spec, cols, tuple, depth+1)...)

		sub := record.NewWithCapacity(len(spec.Rows) + len(cols) + 2)
		for i, f := range spec.Rows {
			if i < len(tuple) {
				sub.Set(f, tuple[i].Clone())
			} else {
				sub.Set(f, record.Null())
			}
		}
		sub.Set(FieldSubTotal, record.Bool(true))
		sub.Set(FieldSubTotalLevel, record.Number(float64(len(tuple))))
		fillCells(sub, b.view, spec, cols)
		out = append(out, sub)
	}
	return out
}
