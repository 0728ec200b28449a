package schema

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// DISCOVERY TESTS
// ============================================================================

// Sample ticket export, already decoded.
var ticketRecords = mustRecords(`[
  {"ticketId": "T-1", "team": "Backend",  "points": 5,  "urgent": true,  "opened": "2026-01-15", "closedAt": "2026-01-20T10:00:00Z"},
  {"ticketId": "T-2", "team": "Frontend", "points": 3,  "urgent": false, "opened": "2026-01-16", "closedAt": "2026-01-21T11:30:00Z"},
  {"ticketId": "T-3", "team": "Backend",  "points": 8,  "urgent": false, "opened": "2026-01-10", "closedAt": null},
  {"ticketId": "T-4", "team": "Docs",     "points": 2,  "urgent": true,  "opened": "2026-01-18", "closedAt": "2026-01-25T09:00:00Z"},
  {"ticketId": "T-5", "team": "Backend",  "points": 13, "urgent": false, "opened": "2026-01-12"}
]`)

func TestDescribeFields(t *testing.T) {
	fields := DescribeFields(ticketRecords)

	pretty, _ := json.MarshalIndent(fields, "", "  ")
	fmt.Printf("=== TICKET FIELDS ===\n%s\n\n", string(pretty))

	byKey := map[string]FieldDescriptor{}
	keys := []string{}
	for _, f := range fields {
		byKey[f.Key] = f
		keys = append(keys, f.Key)
	}

	assert.Equal(t, []string{"ticketId", "team", "points", "urgent", "opened", "closedAt"}, keys, "first-seen order")
	assert.Equal(t, TypeText, byKey["ticketId"].InferredType)
	assert.Equal(t, TypeNumber, byKey["points"].InferredType)
	assert.Equal(t, TypeBoolean, byKey["urgent"].InferredType)
	assert.Equal(t, TypeDate, byKey["opened"].InferredType)
	assert.Equal(t, TypeDateTime, byKey["closedAt"].InferredType)

	assert.Equal(t, 5, byKey["ticketId"].SampleUniqueCount)
	assert.Equal(t, 3, byKey["team"].SampleUniqueCount)
	assert.Equal(t, 3, byKey["closedAt"].SampleUniqueCount, "nulls and missing values are not counted")
	assert.Equal(t, "low", byKey["team"].CardinalityHint)

	assert.Equal(t, "Ticket Id", byKey["ticketId"].DisplayName)
	assert.Equal(t, "Closed At", byKey["closedAt"].DisplayName)
}

func TestDescribeFieldsSamplesAtMost500(t *testing.T) {
	records := make([]*record.Record, 0, 800)
	for i := 0; i < 800; i++ {
		records = append(records, record.New().Set("n", record.Number(float64(i))))
	}
	fields := DescribeFields(records)
	require.Len(t, fields, 1)
	assert.Equal(t, SampleSize, fields[0].SampleUniqueCount)
}

func TestNumericStringsStayText(t *testing.T) {
	records := mustRecords(`[{"v":"1"},{"v":"2"},{"v":"3"}]`)
	fields := DescribeFields(records)
	require.Len(t, fields, 1)
	assert.Equal(t, TypeText, fields[0].InferredType)
}

func TestToSnakeCase(t *testing.T) {
	for in, want := range map[string]string{
		"Column Name":  "column_name",
		"columnName":   "column_name",
		"Story-Points": "story_points",
		"id":           "id",
	} {
		assert.Equal(t, want, ToSnakeCase(in), in)
	}
}

func mustRecords(src string) []*record.Record {
	v, err := record.DecodeJSON([]byte(src))
	if err != nil {
		panic(err)
	}
	return record.Collect(v)
}
