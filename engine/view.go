package engine

import (
	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// RECORD VIEW — Zero-Copy Data Access Interface
// ============================================================================
// The engine never owns caller data. It reads through this interface.
//
// Implementations:
//   SliceView      — wraps []*record.Record
//   SubView        — filtered subset or bucket (indices into parent)
//   DomainView[T]  — reads typed structs via accessor functions
//
// Buckets and filters are SubViews, so grouping never copies records.
// ============================================================================

// RecordView provides indexed access to a dataset.
type RecordView interface {
	Len() int
	Value(index int, field string) record.Value
	Record(index int) *record.Record
}

// ============================================================================
// SLICE VIEW
// ============================================================================

// SliceView wraps a record slice. Nil records read as empty.
type SliceView struct {
	records []*record.Record
}

// NewSliceView creates a RecordView from a record slice.
func NewSliceView(records []*record.Record) RecordView {
	return &SliceView{records: records}
}

func (v *SliceView) Len() int { return len(v.records) }

func (v *SliceView) Value(i int, field string) record.Value {
	if i < 0 || i >= len(v.records) {
		return record.Null()
	}
	return v.records[i].Value(field)
}

func (v *SliceView) Record(i int) *record.Record {
	if i < 0 || i >= len(v.records) {
		return nil
	}
	return v.records[i]
}

// ============================================================================
// SUB VIEW — filtered subset (zero-copy)
// ============================================================================

// SubView is a subset of a parent RecordView.
type SubView struct {
	parent  RecordView
	indices []int
}

func newSubView(parent RecordView, indices []int) RecordView {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) Value(i int, field string) record.Value {
	if i < 0 || i >= len(v.indices) {
		return record.Null()
	}
	return v.parent.Value(v.indices[i], field)
}

func (v *SubView) Record(i int) *record.Record {
	if i < 0 || i >= len(v.indices) {
		return nil
	}
	return v.parent.Record(v.indices[i])
}

// Records materializes a view. The records themselves are shared.
func Records(view RecordView) []*record.Record {
	out := make([]*record.Record, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		if r := view.Record(i); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// ============================================================================
// DOMAIN ADAPTER — typed struct access
// ============================================================================
//
// Usage:
//
//	adapter := engine.NewDomainAdapter[Ticket]().
//	    Field("team", func(t Ticket) any { return t.Team }).
//	    Field("points", func(t Ticket) any { return t.Points })
//
//	view := adapter.Bind(tickets)
//	result := engine.PivotView(view, spec)
//
// ============================================================================

// DomainAdapter builds a RecordView from typed structs.
// Declare once, bind many times.
type DomainAdapter[T any] struct {
	order  []string
	fields map[string]func(T) any
}

// NewDomainAdapter creates a new adapter for type T.
func NewDomainAdapter[T any]() *DomainAdapter[T] {
	return &DomainAdapter[T]{fields: make(map[string]func(T) any)}
}

// Field registers an accessor. Results go through record.FromAny.
func (a *DomainAdapter[T]) Field(key string, fn func(T) any) *DomainAdapter[T] {
	if _, exists := a.fields[key]; !exists {
		a.order = append(a.order, key)
	}
	a.fields[key] = fn
	return a
}

// Bind creates a RecordView over data. The slice is referenced, not copied.
func (a *DomainAdapter[T]) Bind(data []T) RecordView {
	return &DomainView[T]{data: data, adapter: a}
}

// DomainView reads typed struct fields via registered accessor functions.
type DomainView[T any] struct {
	data    []T
	adapter *DomainAdapter[T]
}

func (v *DomainView[T]) Len() int { return len(v.data) }

func (v *DomainView[T]) Value(i int, field string) record.Value {
	if i < 0 || i >= len(v.data) {
		return record.Null()
	}
	if fn, ok := v.adapter.fields[field]; ok {
		return record.FromAny(fn(v.data[i]))
	}
	return record.Null()
}

// Record builds a fresh record for row i in registration order.
func (v *DomainView[T]) Record(i int) *record.Record {
	if i < 0 || i >= len(v.data) {
		return nil
	}
	out := record.NewWithCapacity(len(v.adapter.order))
	for _, key := range v.adapter.order {
		out.Set(key, record.FromAny(v.adapter.fields[key](v.data[i])))
	}
	return out
}
