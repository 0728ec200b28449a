package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// PIVOT ENGINE TYPES
// ============================================================================
// PivotSpec is persisted configuration: plain field names, arrays of strings,
// and value specs. It is passed by value and never mutated by the engine.
// ============================================================================

// Aggregation names an aggregation function.
type Aggregation string

const (
	AggSum     Aggregation = "sum"
	AggCount   Aggregation = "count"
	AggAverage Aggregation = "average"
	AggMin     Aggregation = "min"
	AggMax     Aggregation = "max"
	AggFirst   Aggregation = "first"
	AggLast    Aggregation = "last"
)

// ParseAggregation resolves a name or alias ("avg", "mean") to an
// Aggregation.
func ParseAggregation(s string) (Aggregation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sum", "":
		return AggSum, nil
	case "count":
		return AggCount, nil
	case "average", "avg", "mean":
		return AggAverage, nil
	case "min":
		return AggMin, nil
	case "max":
		return AggMax, nil
	case "first":
		return AggFirst, nil
	case "last":
		return AggLast, nil
	}
	return "", errors.Errorf("unknown aggregation %q", s)
}

// UnmarshalJSON accepts aliases.
func (a *Aggregation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "aggregation")
	}
	parsed, err := ParseAggregation(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ValueSpec is one aggregated field.
type ValueSpec struct {
	Field       string      `json:"field" mapstructure:"field"`
	Aggregation Aggregation `json:"aggregation" mapstructure:"aggregation"`
	Label       string      `json:"label,omitempty" mapstructure:"label"`
}

// PivotSpec defines a pivot.
type PivotSpec struct {
	Rows             []string    `json:"rows" mapstructure:"rows"`
	Columns          []string    `json:"columns,omitempty" mapstructure:"columns"`
	Values           []ValueSpec `json:"values" mapstructure:"values"`
	ShowRowTotals    bool        `json:"showRowTotals,omitempty" mapstructure:"showRowTotals"`
	ShowColumnTotals bool        `json:"showColumnTotals,omitempty" mapstructure:"showColumnTotals"`
	ShowGrandTotals  bool        `json:"showGrandTotals,omitempty" mapstructure:"showGrandTotals"`
	ShowSubTotals    bool        `json:"showSubTotals,omitempty" mapstructure:"showSubTotals"`
	SortRows         bool        `json:"sortRows,omitempty" mapstructure:"sortRows"`
	SortColumns      bool        `json:"sortColumns,omitempty" mapstructure:"sortColumns"`
	SortDirection    string      `json:"sortDirection,omitempty" mapstructure:"sortDirection"` // "asc" (default), "desc"
}

// Validate reports a PivotConfigurationError for specs the engine cannot
// compute.
func (s PivotSpec) Validate() error {
	if len(s.Values) == 0 {
		return &PivotConfigurationError{Reason: "no value fields"}
	}
	for i, v := range s.Values {
		if strings.TrimSpace(v.Field) == "" {
			return &PivotConfigurationError{Reason: fmt.Sprintf("value %d has no field", i)}
		}
		if _, err := ParseAggregation(string(v.Aggregation)); err != nil {
			return &PivotConfigurationError{Reason: err.Error()}
		}
	}
	for _, f := range append(append([]string{}, s.Rows...), s.Columns...) {
		if strings.TrimSpace(f) == "" {
			return &PivotConfigurationError{Reason: "empty dimension field"}
		}
	}
	switch strings.ToLower(s.SortDirection) {
	case "", "asc", "desc":
	default:
		return &PivotConfigurationError{Reason: fmt.Sprintf("sort direction %q", s.SortDirection)}
	}
	return nil
}

// PivotConfigurationError reports a spec that cannot be pivoted. The pivot
// degrades to the original records.
type PivotConfigurationError struct {
	Reason string
}

func (e *PivotConfigurationError) Error() string {
	return "pivot configuration: " + e.Reason
}

// ============================================================================
// RESULT
// ============================================================================

// Marker fields on synthesized rows.
const (
	FieldGrandTotal    = "isGrandTotal"
	FieldColumnTotal   = "isColumnTotal"
	FieldSubTotal      = "isSubTotal"
	FieldSubTotalLevel = "subTotalLevel"
)

// Column types.
const (
	ColumnDimension  = "dimension"
	ColumnValue      = "value"
	ColumnRowTotal   = "rowTotal"
	ColumnCalculated = "calculated"
)

// ColumnDescriptor describes one output column.
type ColumnDescriptor struct {
	Key         string      `json:"key"`
	Label       string      `json:"label"`
	Type        string      `json:"type"`
	Field       string      `json:"field,omitempty"`
	Aggregation Aggregation `json:"aggregation,omitempty"`
	ColumnPath  []string    `json:"columnPath,omitempty"` // column bucket values, outermost first
	Align       string      `json:"align"`                // "left", "right"
}

// PivotResult is the engine's output.
//
// When IsPivot is false, PivotData holds the original records and Err says
// why.
type PivotResult struct {
	IsPivot      bool               `json:"isPivot"`
	PivotData    []*record.Record   `json:"pivotData"`
	PivotColumns []ColumnDescriptor `json:"pivotColumns"`
	GrandTotal   *record.Record     `json:"grandTotal"`
	ColumnTotals *record.Record     `json:"columnTotals,omitempty"`
	Err          error              `json:"-"`
}

// ============================================================================
// FILTERS
// ============================================================================

// Filters select the visible record set.
// Columns maps a field to its allowed values: OR within a field, AND across
// fields. Search matches any scalar field, case-insensitively. Empty = all.
type Filters struct {
	Search  string              `json:"search,omitempty" mapstructure:"search"`
	Columns map[string][]string `json:"columns,omitempty" mapstructure:"columns"`
}

// HasFilter returns true if a specific column filter is set.
func (f Filters) HasFilter(field string) bool {
	if f.Columns == nil {
		return false
	}
	vals, ok := f.Columns[field]
	return ok && len(vals) > 0
}

// IsEmpty returns true if no filters are set.
func (f Filters) IsEmpty() bool {
	if strings.TrimSpace(f.Search) != "" {
		return false
	}
	for _, vals := range f.Columns {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}
