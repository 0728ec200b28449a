package record

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/maps"
)

// ============================================================================
// VALUE — Tagged union for every cell the engine touches
// ============================================================================
// A field may hold a scalar, a nested record, or a list at any depth.
// The deep-merge recursion switches on Kind, never on reflection.
// ============================================================================

// Kind identifies which member of the union a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindRecord
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is an immutable cell value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	r    *Record
	l    []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Nested wraps a record. A nil record is null.
func Nested(r *Record) Value {
	if r == nil {
		return Null()
	}
	return Value{kind: KindRecord, r: r}
}

// List wraps a sequence of values.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, l: items}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsList() bool   { return v.kind == KindList }
func (v Value) IsRecord() bool { return v.kind == KindRecord }

// IsScalar reports whether v is null, bool, number or string.
func (v Value) IsScalar() bool { return v.kind != KindRecord && v.kind != KindList }

// AsBool returns the boolean and whether v is a boolean.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the float and whether v is a number.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string and whether v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsRecord returns the nested record, or nil.
func (v Value) AsRecord() *Record {
	if v.kind != KindRecord {
		return nil
	}
	return v.r
}

// AsList returns the list items, or nil.
func (v Value) AsList() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.l
}

// Finite returns the number and true only for finite numeric values.
// Strings are never coerced.
func (v Value) Finite() (float64, bool) {
	if v.kind != KindNumber || math.IsNaN(v.n) || math.IsInf(v.n, 0) {
		return 0, false
	}
	return v.n, true
}

// IsEmpty reports null, blank strings, NaN, and empty containers.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.s) == ""
	case KindNumber:
		return math.IsNaN(v.n)
	case KindList:
		return len(v.l) == 0
	case KindRecord:
		return v.r == nil || v.r.Len() == 0
	}
	return false
}

// Text renders a scalar for display and bucketing. Containers render as
// canonical JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return v.s
	default:
		return Canonical(v)
	}
}

// Clone deep-copies containers. Scalars are returned as-is.
func (v Value) Clone() Value {
	switch v.kind {
	case KindRecord:
		return Nested(v.r.Clone())
	case KindList:
		items := make([]Value, len(v.l))
		for i, item := range v.l {
			items[i] = item.Clone()
		}
		return List(items...)
	}
	return v
}

// Equal reports structural equality. NaN equals NaN so that equality is
// reflexive for merge idempotence checks.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n || (math.IsNaN(a.n) && math.IsNaN(b.n))
	case KindString:
		return a.s == b.s
	case KindRecord:
		return a.r.Equal(b.r)
	case KindList:
		if len(a.l) != len(b.l) {
			return false
		}
		for i := range a.l {
			if !Equal(a.l[i], b.l[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// ============================================================================
// CONVERSION — decoded any-trees in and out
// ============================================================================

// FromAny converts a decoded JSON/YAML/TOML tree into a Value.
// Plain maps take sorted key order since Go maps carry none.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case *Record:
		return Nested(t)
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case interface{ Float64() (float64, error) }: // json.Number
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return Null()
	case time.Time:
		return String(t.UTC().Format(time.RFC3339))
	case map[string]any:
		keys := SortedKeys(t)
		r := NewWithCapacity(len(keys))
		for _, k := range keys {
			r.Set(k, FromAny(t[k]))
		}
		return Nested(r)
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[toKeyString(k)] = val
		}
		return FromAny(m)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return List(items...)
	case []map[string]any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return List(items...)
	case []*Record:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = Nested(item)
		}
		return List(items...)
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return List(items...)
	case []float64:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = Number(item)
		}
		return List(items...)
	}
	return Null()
}

func toKeyString(k any) string {
	switch t := k.(type) {
	case string:
		return t
	default:
		return FromAny(t).Text()
	}
}

// ToAny converts a Value back into plain Go values.
func (v Value) ToAny() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindRecord:
		return v.r.ToMap()
	case KindList:
		out := make([]any, len(v.l))
		for i, item := range v.l {
			out[i] = item.ToAny()
		}
		return out
	}
	return nil
}

// SortedKeys returns the keys of a plain map in sorted order.
func SortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	sort.Strings(keys)
	return keys
}
