package engine

import (
	"sort"
	"strings"

	"github.com/spektr-org/pivotkit/record"
	"github.com/spektr-org/pivotkit/schema"
)

// ============================================================================
// AGGREGATORS — Bucketing, Aggregation, and Sorting via RecordView
// ============================================================================
// Buckets are SubViews (index lists into the parent view).
// Only finite numbers feed numeric aggregations; strings are never coerced.
// count counts every non-null value.
// ============================================================================

// bucket is one row or column group.
type bucket struct {
	key   string         // identity, exact text of each tuple member
	tuple []record.Value // the dimension values, one per field
	view  RecordView
}

// label is the tuple's string form, used for display and sorting.
func (b bucket) label() string {
	return tupleLabel(b.tuple)
}

func tupleLabel(tuple []record.Value) string {
	parts := make([]string, len(tuple))
	for i, v := range tuple {
		parts[i] = v.Text()
	}
	return strings.Join(parts, "|")
}

// ============================================================================
// GROUPING
// ============================================================================

// groupBy buckets view by the tuple of fields in first-seen order. No fields
// yields one bucket holding everything.
func groupBy(view RecordView, fields []string) []bucket {
	if len(fields) == 0 {
		all := make([]int, view.Len())
		for i := range all {
			all[i] = i
		}
		return []bucket{{key: "", view: newSubView(view, all)}}
	}

	grouped := make(map[string][]int)
	tuples := make(map[string][]record.Value)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		tuple := make([]record.Value, len(fields))
		for j, f := range fields {
			tuple[j] = view.Value(i, f)
		}
		key := tupleKey(tuple)
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
			tuples[key] = tuple
		}
		grouped[key] = append(grouped[key], i)
	}

	buckets := make([]bucket, 0, len(order))
	for _, key := range order {
		buckets = append(buckets, bucket{
			key:   key,
			tuple: tuples[key],
			view:  newSubView(view, grouped[key]),
		})
	}
	return buckets
}

// tupleKey distinguishes kinds so that 1 and "1" are separate buckets.
func tupleKey(tuple []record.Value) string {
	var b strings.Builder
	for i, v := range tuple {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(v.Kind().String())
		b.WriteByte(':')
		b.WriteString(v.Text())
	}
	return b.String()
}

// sortBuckets orders buckets lexicographically by their string form.
func sortBuckets(buckets []bucket, direction string) {
	desc := strings.EqualFold(direction, "desc")
	sort.SliceStable(buckets, func(i, j int) bool {
		a, b := buckets[i].label(), buckets[j].label()
		if desc {
			return a > b
		}
		return a < b
	})
}

// ============================================================================
// AGGREGATION
// ============================================================================

// Aggregate applies agg to field across view.
func Aggregate(agg Aggregation, view RecordView, field string) record.Value {
	values := make([]record.Value, view.Len())
	for i := range values {
		values[i] = view.Value(i, field)
	}
	return AggregateValues(agg, values)
}

// AggregateValues applies agg to values. sum and count of nothing are 0;
// the others are null.
func AggregateValues(agg Aggregation, values []record.Value) record.Value {
	if agg == AggCount {
		n := 0
		for _, v := range values {
			if !v.IsNull() {
				n++
			}
		}
		return record.Number(float64(n))
	}

	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := v.Finite(); ok {
			nums = append(nums, f)
		}
	}

	if agg == AggSum || agg == "" {
		return record.Number(sum(nums))
	}
	if len(nums) == 0 {
		return record.Null()
	}

	switch agg {
	case AggAverage:
		return record.Number(sum(nums) / float64(len(nums)))
	case AggMin:
		m := nums[0]
		for _, n := range nums[1:] {
			if n < m {
				m = n
			}
		}
		return record.Number(m)
	case AggMax:
		m := nums[0]
		for _, n := range nums[1:] {
			if n > m {
				m = n
			}
		}
		return record.Number(m)
	case AggFirst:
		return record.Number(nums[0])
	case AggLast:
		return record.Number(nums[len(nums)-1])
	}
	return record.Null()
}

func sum(nums []float64) float64 {
	var total float64
	for _, n := range nums {
		total += n
	}
	return total
}

// ============================================================================
// LABELS
// ============================================================================

// LabelForField returns a display label for a field key.
func LabelForField(field string) string {
	if field == "" {
		return ""
	}
	words := strings.Split(schema.ToSnakeCase(field), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// LabelForAggregation returns a human-readable label for an aggregation.
func LabelForAggregation(agg Aggregation) string {
	switch agg {
	case AggSum:
		return "Sum"
	case AggCount:
		return "Count"
	case AggAverage:
		return "Average"
	case AggMax:
		return "Maximum"
	case AggMin:
		return "Minimum"
	case AggFirst:
		return "First"
	case AggLast:
		return "Last"
	default:
		return "Value"
	}
}
