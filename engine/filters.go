package engine

import (
	"strings"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// FILTERS — Search and Column Filtering via RecordView
// ============================================================================
// Single-pass filter: checks ALL constraints per record in one loop.
// Returns a SubView (index list into parent), so no record is copied.
// The result is the "visible" set that grand totals are computed over.
// ============================================================================

// ApplyFilters returns the records matching filters, in input order.
func ApplyFilters(records []*record.Record, filters Filters) []*record.Record {
	if filters.IsEmpty() {
		return records
	}
	return Records(FilterView(NewSliceView(records), filters))
}

// FilterView returns a view of records matching every column filter and
// the global search. Column values are OR-combined; columns AND-combined.
// Empty filter = no restriction (returns original view).
func FilterView(view RecordView, filters Filters) RecordView {
	if filters.IsEmpty() {
		return view
	}

	// Pre-build lowercase lookup sets for each column filter
	sets := make(map[string]map[string]bool)
	for field, allowed := range filters.Columns {
		if len(allowed) > 0 {
			sets[field] = toLowerSet(allowed)
		}
	}
	fields := record.SortedKeys(sets)
	search := strings.ToLower(strings.TrimSpace(filters.Search))

	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pass := true
		for _, field := range fields {
			if !sets[field][strings.ToLower(view.Value(i, field).Text())] {
				pass = false
				break
			}
		}
		if pass && search != "" {
			pass = matchesSearch(view.Record(i), search)
		}
		if pass {
			indices = append(indices, i)
		}
	}

	return newSubView(view, indices)
}

// matchesSearch reports whether any scalar field contains needle.
func matchesSearch(r *record.Record, needle string) bool {
	found := false
	r.Range(func(_ string, v record.Value) bool {
		if v.IsScalar() && strings.Contains(strings.ToLower(v.Text()), needle) {
			found = true
			return false
		}
		return true
	})
	return found
}

// toLowerSet converts a string slice to a lowercase lookup set.
func toLowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}
