package record

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPreservesOrder(t *testing.T) {
	r := New().Set("zeta", Number(1)).Set("alpha", String("a")).Set("mid", Bool(true))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Keys())

	r.Set("zeta", Number(2))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Keys(), "overwrite keeps position")

	r.Delete("alpha")
	assert.Equal(t, []string{"zeta", "mid"}, r.Keys())
}

func TestJSONRoundTripKeepsOrder(t *testing.T) {
	src := []byte(`{"b":1,"a":{"y":[1,"x",null],"x":true},"c":null}`)

	var r Record
	require.NoError(t, json.Unmarshal(src, &r))
	assert.Equal(t, []string{"b", "a", "c"}, r.Keys())
	assert.Equal(t, []string{"y", "x"}, r.Value("a").AsRecord().Keys())

	out, err := json.Marshal(&r)
	require.NoError(t, err)
	assert.JSONEq(t, string(src), string(out))
	assert.Equal(t, string(src), string(out))
}

func TestNonFiniteMarshalsAsNull(t *testing.T) {
	r := New().Set("n", Number(math.NaN())).Set("i", Number(math.Inf(1)))
	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"n":null,"i":null}`, string(out))
}

func TestCloneIsDeep(t *testing.T) {
	inner := New().Set("x", Number(1))
	r := New().Set("inner", Nested(inner)).Set("list", List(Number(1)))

	c := r.Clone()
	c.Value("inner").AsRecord().Set("x", Number(99))

	assert.Equal(t, float64(1), mustNumber(t, inner.Value("x")))
	assert.True(t, r.Value("list").IsList())
}

func TestIsEmpty(t *testing.T) {
	for _, tc := range []struct {
		name  string
		value Value
		want  bool
	}{
		{"null", Null(), true},
		{"blank", String("   "), true},
		{"text", String("x"), false},
		{"zero", Number(0), false},
		{"nan", Number(math.NaN()), true},
		{"false", Bool(false), false},
		{"empty list", List(), true},
		{"empty record", Nested(New()), true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.value.IsEmpty())
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "acme", NormalizeKey(String("  ACME ")))
	assert.Equal(t, "42", NormalizeKey(Number(42)))
	assert.Equal(t, "1.5", NormalizeKey(Number(1.5)))
	assert.Equal(t, "1", NormalizeKey(Bool(true)))
	assert.Equal(t, "0", NormalizeKey(Bool(false)))
	assert.Equal(t, "", NormalizeKey(Null()))

	// Date-only and midnight datetime strings identify the same instant.
	assert.Equal(t, NormalizeKey(String("2025-01-01")), NormalizeKey(String("2025-01-01T00:00:00Z")))
	assert.Equal(t, "1735689600000", NormalizeKey(String("2025-01-01")))
}

func TestCanonicalIgnoresFieldOrder(t *testing.T) {
	a := Nested(New().Set("x", Number(1)).Set("y", String("b")))
	b := Nested(New().Set("y", String("b")).Set("x", Number(1)))
	assert.Equal(t, Canonical(a), Canonical(b))
	assert.Equal(t, Hash(a), Hash(b))
	assert.False(t, Equal(a, b), "Equal is order-sensitive")
}

func TestFromAnySortsMapKeys(t *testing.T) {
	r := FromMap(map[string]any{"b": 2, "a": "x", "c": []any{1, map[string]any{"z": nil}}})
	assert.Equal(t, []string{"a", "b", "c"}, r.Keys())
	assert.Equal(t, float64(2), mustNumber(t, r.Value("b")))
	assert.True(t, r.Value("c").AsList()[1].IsRecord())
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]bool{"c": true, "a": false, "b": true}))
	assert.Empty(t, SortedKeys(map[string]int(nil)))
}

func mustNumber(t *testing.T, v Value) float64 {
	t.Helper()
	n, ok := v.AsNumber()
	require.True(t, ok, "expected number, got %s", v.Kind())
	return n
}
