package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectSequenceDropsNonRecords(t *testing.T) {
	input := []any{
		map[string]any{"id": 1},
		nil,
		42,
		[]any{map[string]any{"id": 9}},
		"text",
		map[string]any{"id": 2},
	}
	out := Collect(input)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].Value("id").Text())
	assert.Equal(t, "2", out[1].Value("id").Text())
}

func TestCollectObjectOfArrays(t *testing.T) {
	input := map[string]any{
		"support": []any{map[string]any{"id": 3}},
		"service": []any{map[string]any{"id": 1}, map[string]any{"id": 2}, 7},
	}

	out := Collect(input)
	require.Len(t, out, 3)
	// Keys iterate in sorted order: service before support.
	assert.Equal(t, []string{"1", "2", "3"}, ids(out))
	assert.False(t, out[0].Has("source"), "no group marker by default")

	marked := Collect(input, WithGroupMarker("source"))
	require.Len(t, marked, 3)
	assert.Equal(t, "service", marked[0].Value("source").Text())
	assert.Equal(t, "support", marked[2].Value("source").Text())
}

func TestCollectObjectOfRecords(t *testing.T) {
	input := map[string]any{
		"b": map[string]any{"id": 2},
		"a": map[string]any{"id": 1},
	}
	out := Collect(input)
	assert.Equal(t, []string{"1", "2"}, ids(out))
}

func TestCollectUnknownShapesAreEmpty(t *testing.T) {
	for _, input := range []any{nil, 42, "rows", true, map[string]any{"a": 1, "b": "x"}} {
		out := Collect(input)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	}

	_, err := DetectShape(42)
	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "number", shapeErr.Got)
}

func TestCollectDoesNotAliasInput(t *testing.T) {
	src := New().Set("id", Number(1))
	out := Collect([]*Record{src})
	require.Len(t, out, 1)
	out[0].Set("id", Number(2))
	assert.Equal(t, "1", src.Value("id").Text())
}

func ids(records []*Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Value("id").Text()
	}
	return out
}
