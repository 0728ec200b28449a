package schema

import (
	"strings"
	"unicode"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// FIELD DISCOVERY — Heuristic type classification over a sample
// ============================================================================
// Pipeline per field:
//   1. Sample up to SampleSize records, collect non-empty values
//   2. Detect type by majority (80%+ of non-empty values)
//   3. Count distinct normalized values → cardinality hint
// Strings are never promoted to numbers: aggregation does not coerce them,
// so the descriptor must not promise it.
// ============================================================================

// DescribeFields infers a descriptor for every field seen in the sample, in
// first-seen order.
func DescribeFields(records []*record.Record) []FieldDescriptor {
	sample := Sample(records)

	order := []string{}
	values := map[string][]record.Value{}
	for _, r := range sample {
		r.Range(func(key string, v record.Value) bool {
			if _, seen := values[key]; !seen {
				order = append(order, key)
				values[key] = nil
			}
			if !v.IsEmpty() {
				values[key] = append(values[key], v)
			}
			return true
		})
	}

	out := make([]FieldDescriptor, 0, len(order))
	for _, key := range order {
		out = append(out, describe(key, values[key]))
	}
	return out
}

// Sample returns the first SampleSize non-nil records.
func Sample(records []*record.Record) []*record.Record {
	out := make([]*record.Record, 0, min(len(records), SampleSize))
	for _, r := range records {
		if r == nil {
			continue
		}
		out = append(out, r)
		if len(out) == SampleSize {
			break
		}
	}
	return out
}

func describe(key string, vals []record.Value) FieldDescriptor {
	unique := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		unique[record.NormalizeKey(v)] = struct{}{}
	}

	d := FieldDescriptor{
		Key:               key,
		DisplayName:       toDisplayName(key),
		InferredType:      detectType(vals),
		SampleUniqueCount: len(unique),
	}

	switch {
	case d.SampleUniqueCount <= 10:
		d.CardinalityHint = "low"
	case d.SampleUniqueCount <= 100:
		d.CardinalityHint = "medium"
	default:
		d.CardinalityHint = "high"
	}
	return d
}

// detectType requires 80%+ of non-empty values to agree on number, boolean,
// date or datetime; anything else is text.
func detectType(values []record.Value) FieldType {
	if len(values) == 0 {
		return TypeText
	}

	numCount, boolCount, dateCount, dateTimeCount := 0, 0, 0, 0
	for _, v := range values {
		switch v.Kind() {
		case record.KindNumber:
			numCount++
		case record.KindBool:
			boolCount++
		case record.KindString:
			s, _ := v.AsString()
			if _, hasTime, ok := record.ParseDate(s); ok {
				if hasTime {
					dateTimeCount++
				} else {
					dateCount++
				}
			}
		}
	}

	threshold := int(float64(len(values)) * 0.8)
	if threshold == 0 {
		threshold = 1
	}

	switch {
	case boolCount >= threshold:
		return TypeBoolean
	case numCount >= threshold:
		return TypeNumber
	case dateTimeCount >= threshold:
		return TypeDateTime
	case dateCount+dateTimeCount >= threshold:
		return TypeDate
	}
	return TypeText
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

// ToSnakeCase converts "Column Name" or "columnName" → "column_name".
func ToSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 {
			prev := rune(s[i-1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}

	s = result.String()
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "__", "_")
	s = strings.Trim(s, "_")
	return s
}

// toDisplayName cleans a key for human display.
// "story_points" → "Story Points", "teamName" → "Team Name"
func toDisplayName(s string) string {
	if strings.Contains(s, " ") {
		return strings.TrimSpace(s)
	}

	s = ToSnakeCase(s)
	s = strings.ReplaceAll(s, "_", " ")

	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
