package engine

import (
	"fmt"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// COLUMN BUILDER — Output column layout + cell filling
// ============================================================================
// Key formats:
//   no column fields   <field>, or <field>_<agg> when a field is aggregated
//                      more than one way
//   column fields      <c1|c2>__<field>_<agg>; a label shared by buckets of
//                      different kinds gets ~2, ~3, ... on later buckets
//   row totals         total__<field>_<agg>
// Every synthesized row (data, sub-total, column total, grand total) is
// filled through the same valueColumn list, so keys always line up.
// ============================================================================

// RowTotalPrefix prefixes row-total column keys.
const RowTotalPrefix = "total"

// valueColumn is one computed column and the recipe for its cells.
type valueColumn struct {
	desc     ColumnDescriptor
	colKey   string // column bucket identity; "" without column fields
	value    ValueSpec
	rowTotal bool
}

// buildColumns lays out dimension columns followed by value columns.
func buildColumns(spec PivotSpec, values []ValueSpec, colBuckets []bucket) ([]ColumnDescriptor, []valueColumn) {
	descs := make([]ColumnDescriptor, 0, len(spec.Rows)+len(values)*(len(colBuckets)+1))
	for _, f := range spec.Rows {
		descs = append(descs, ColumnDescriptor{
			Key:   f,
			Label: LabelForField(f),
			Type:  ColumnDimension,
			Field: f,
			Align: "left",
		})
	}

	cols := make([]valueColumn, 0, len(values)*(len(colBuckets)+1))
	if len(spec.Columns) == 0 {
		perField := map[string]int{}
		for _, v := range values {
			perField[v.Field]++
		}
		for _, v := range values {
			key, label := v.Field, valueLabel(v)
			if perField[v.Field] > 1 {
				key = v.Field + "_" + string(v.Aggregation)
				label += " (" + LabelForAggregation(v.Aggregation) + ")"
			}
			cols = append(cols, valueColumn{
				desc:  valueDescriptor(key, label, ColumnValue, v, nil),
				value: v,
			})
		}
	} else {
		prefixes := columnPrefixes(colBuckets, spec.ShowRowTotals)
		for bi, b := range colBuckets {
			path := make([]string, len(b.tuple))
			for i, t := range b.tuple {
				path[i] = t.Text()
			}
			for _, v := range values {
				key := prefixes[bi] + "__" + fieldAggKey(v)
				label := b.label() + " / " + valueLabel(v) + " (" + LabelForAggregation(v.Aggregation) + ")"
				cols = append(cols, valueColumn{
					desc:   valueDescriptor(key, label, ColumnValue, v, path),
					colKey: b.key,
					value:  v,
				})
			}
		}
		if spec.ShowRowTotals {
			for _, v := range values {
				key := RowTotalPrefix + "__" + fieldAggKey(v)
				label := "Total " + valueLabel(v) + " (" + LabelForAggregation(v.Aggregation) + ")"
				cols = append(cols, valueColumn{
					desc:     valueDescriptor(key, label, ColumnRowTotal, v, nil),
					value:    v,
					rowTotal: true,
				})
			}
		}
	}

	for _, c := range cols {
		descs = append(descs, c.desc)
	}
	return descs, cols
}

// columnPrefixes returns one key prefix per column bucket. Buckets are
// distinct by kind but labels are not (2024 and "2024"), so a repeated label
// gets an ordinal suffix. The row-total prefix is reserved when used.
func columnPrefixes(colBuckets []bucket, rowTotals bool) []string {
	used := map[string]bool{}
	if rowTotals {
		used[RowTotalPrefix] = true
	}
	out := make([]string, len(colBuckets))
	for i, b := range colBuckets {
		prefix := b.label()
		for n := 2; used[prefix]; n++ {
			prefix = fmt.Sprintf("%s~%d", b.label(), n)
		}
		used[prefix] = true
		out[i] = prefix
	}
	return out
}

func valueDescriptor(key, label, typ string, v ValueSpec, path []string) ColumnDescriptor {
	return ColumnDescriptor{
		Key:         key,
		Label:       label,
		Type:        typ,
		Field:       v.Field,
		Aggregation: v.Aggregation,
		ColumnPath:  path,
		Align:       "right",
	}
}

func valueLabel(v ValueSpec) string {
	if v.Label != "" {
		return v.Label
	}
	return LabelForField(v.Field)
}

func fieldAggKey(v ValueSpec) string {
	return v.Field + "_" + string(v.Aggregation)
}

// fillCells writes every value column computed over view into rec.
func fillCells(rec *record.Record, view RecordView, spec PivotSpec, cols []valueColumn) {
	var byColumn map[string]RecordView
	if len(spec.Columns) > 0 {
		byColumn = make(map[string]RecordView)
		for _, b := range groupBy(view, spec.Columns) {
			byColumn[b.key] = b.view
		}
	}

	for _, c := range cols {
		switch {
		case len(spec.Columns) == 0 || c.rowTotal:
			rec.Set(c.desc.Key, Aggregate(c.value.Aggregation, view, c.value.Field))
		default:
			if sub, ok := byColumn[c.colKey]; ok {
				rec.Set(c.desc.Key, Aggregate(c.value.Aggregation, sub, c.value.Field))
			} else {
				rec.Set(c.desc.Key, AggregateValues(c.value.Aggregation, nil))
			}
		}
	}
}
