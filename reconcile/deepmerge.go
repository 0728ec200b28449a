package reconcile

import (
	"strconv"
	"strings"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// DEEP MERGE
// ============================================================================
// Field-level rules for two values a (earlier) and b (later):
//   either is a list  → concatenate, then dedupe
//   both are records  → recurse field by field
//   otherwise         → the non-empty one; later wins when both are set
// Inputs are never modified; results share no containers with them.
// ============================================================================

// Merge deep-merges b into a.
func Merge(a, b record.Value) record.Value {
	if a.IsList() || b.IsList() {
		return mergeLists(listItems(a), listItems(b))
	}
	if a.IsRecord() && b.IsRecord() {
		return record.Nested(MergeRecords(a.AsRecord(), b.AsRecord()))
	}
	switch {
	case !b.IsEmpty():
		return b.Clone()
	case !a.IsEmpty():
		return a.Clone()
	case a.IsNull():
		return b.Clone()
	}
	return a.Clone()
}

// MergeRecords deep-merges b into a. Fields keep a's order, with b's new
// fields appended.
func MergeRecords(a, b *record.Record) *record.Record {
	out := a.Clone()
	if out == nil {
		out = record.New()
	}
	b.Range(func(key string, v record.Value) bool {
		if existing, ok := out.Get(key); ok {
			out.Set(key, Merge(existing, v))
		} else {
			out.Set(key, v.Clone())
		}
		return true
	})
	return out
}

// mergeUnder deep-merges under beneath top: top wins scalar conflicts and
// keeps its field order.
func mergeUnder(top, under *record.Record) *record.Record {
	out := top.Clone()
	under.Range(func(key string, v record.Value) bool {
		if existing, ok := out.Get(key); ok {
			out.Set(key, Merge(v, existing))
		} else {
			out.Set(key, v.Clone())
		}
		return true
	})
	return out
}

func listItems(v record.Value) []record.Value {
	if v.IsList() {
		return v.AsList()
	}
	if v.IsEmpty() {
		return nil
	}
	return []record.Value{v}
}

// mergeLists concatenates and dedupes. Scalars dedupe by normalized value;
// records dedupe by an auto-detected identifier field, deep-merging records
// that share it, else by structural equality.
func mergeLists(a, b []record.Value) record.Value {
	items := make([]record.Value, 0, len(a)+len(b))
	items = append(items, a...)
	items = append(items, b...)

	idField := detectIdentifierField(items)
	out := make([]record.Value, 0, len(items))
	index := make(map[string]int, len(items))

	for _, item := range items {
		key := itemKey(item, idField)
		if i, ok := index[key]; ok {
			if out[i].IsRecord() && item.IsRecord() {
				out[i] = Merge(out[i], item)
			}
			continue
		}
		index[key] = len(out)
		out = append(out, item.Clone())
	}
	return record.List(out...)
}

func itemKey(item record.Value, idField string) string {
	switch {
	case item.IsRecord():
		if idField != "" {
			if id := item.AsRecord().Value(idField); !id.IsEmpty() {
				return "id:" + record.NormalizeKey(id)
			}
		}
		return "h:" + strconv.FormatUint(record.Hash(item), 16)
	case item.IsList():
		return "h:" + strconv.FormatUint(record.Hash(item), 16)
	}
	return "s:" + record.NormalizeKey(item)
}

// detectIdentifierField returns the first field, across record elements in
// order, whose name looks like an identifier.
func detectIdentifierField(items []record.Value) string {
	for _, item := range items {
		rec := item.AsRecord()
		if rec == nil {
			continue
		}
		found := ""
		rec.Range(func(key string, _ record.Value) bool {
			if isIdentifierName(key) {
				found = key
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func isIdentifierName(key string) bool {
	switch strings.ToLower(key) {
	case "id", "uuid", "code", "key", "pk":
		return true
	}
	return strings.HasSuffix(key, "_id") || strings.HasSuffix(key, "Id") || strings.HasSuffix(key, "ID")
}
