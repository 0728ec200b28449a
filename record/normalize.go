package record

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Date layouts recognized as temporal values in key normalization and type
// inference. Only full dates qualify; bare years and month names are text.
var DateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// DateTimeLayouts are date layouts that also carry a time of day.
var DateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseDate tries every known layout. The second result reports whether
// the string carried a time of day.
func ParseDate(s string) (t time.Time, hasTime bool, ok bool) {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return time.Time{}, false, false
	}
	for _, layout := range DateTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true, true
		}
	}
	for _, layout := range DateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, false, true
		}
	}
	return time.Time{}, false, false
}

// NormalizeKey renders a value for identity comparison:
// strings are trimmed and lowercased (dates become epoch millis), numbers
// use their shortest form, booleans become "1"/"0", null becomes "".
func NormalizeKey(v Value) string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "1"
		}
		return "0"
	case KindNumber:
		return cast.ToString(v.n)
	case KindString:
		s := strings.TrimSpace(v.s)
		if t, _, ok := ParseDate(s); ok {
			return strconv.FormatInt(t.UnixMilli(), 10)
		}
		return strings.ToLower(s)
	}
	return Canonical(v)
}

// CompositeKey joins the normalized values of fields. The separator is a
// control character that cannot appear in trimmed user text boundaries.
func CompositeKey(r *Record, fields []string) string {
	if len(fields) == 1 {
		return NormalizeKey(r.Value(fields[0]))
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = NormalizeKey(r.Value(f))
	}
	return strings.Join(parts, "\x1f")
}

// HasAny reports whether at least one of fields is non-empty on r.
func HasAny(r *Record, fields []string) bool {
	for _, f := range fields {
		if !r.Value(f).IsEmpty() {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of fields is non-empty on r.
func HasAll(r *Record, fields []string) bool {
	for _, f := range fields {
		if r.Value(f).IsEmpty() {
			return false
		}
	}
	return true
}
