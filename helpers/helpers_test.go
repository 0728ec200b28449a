package helpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/pivotkit/record"
)

const salesCSV = `Order ID,Region,Amount,Shipped,Order Date
A-1,North,120.5,true,2024-01-05
A-2,South,80,false,2024-01-06
A-3,North,,TRUE,2024-02-01
`

func TestParseCSV(t *testing.T) {
	records, keys, err := ParseCSV([]byte(salesCSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "region", "amount", "shipped", "order_date"}, keys)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, keys, first.Keys())
	assert.Equal(t, record.String("A-1"), first.Value("order_id"))
	assert.Equal(t, record.Number(120.5), first.Value("amount"))
	assert.Equal(t, record.Bool(true), first.Value("shipped"))
	assert.Equal(t, record.String("2024-01-05"), first.Value("order_date"))

	third := records[2]
	assert.True(t, third.Value("amount").IsNull())
	assert.Equal(t, record.Bool(true), third.Value("shipped"))
}

func TestParseCSVOptions(t *testing.T) {
	records, keys, err := ParseCSV([]byte("Team Name;Score\nRed;NaN\n"), WithComma(';'), WithRawHeaders())
	require.NoError(t, err)
	assert.Equal(t, []string{"Team Name", "Score"}, keys)
	require.Len(t, records, 1)
	assert.Equal(t, record.String("NaN"), records[0].Value("Score"), "non-finite text stays text")
}

func TestParseCSVRaggedRows(t *testing.T) {
	records, _, err := ParseCSV([]byte("a,b\n1\n2,3,4\n"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].Has("b"))
	assert.Equal(t, []string{"a", "b"}, records[1].Keys())
}

func TestParseCSVEmpty(t *testing.T) {
	_, _, err := ParseCSV(nil)
	assert.Error(t, err)
}

func TestParseCSVView(t *testing.T) {
	view, _, err := ParseCSVView([]byte(salesCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, view.Len())
	assert.Equal(t, record.String("South"), view.Value(1, "region"))
}

func TestLoadSource(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "sales.csv")
	jsonPath := filepath.Join(dir, "sales.json")
	require.NoError(t, os.WriteFile(csvPath, []byte(salesCSV), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"q1": [{"id": 1}], "q2": [{"id": 2}]}`), 0o644))

	src, err := LoadSource(csvPath, "")
	require.NoError(t, err)
	assert.Len(t, record.Collect(src), 3)

	src, err = LoadSource(jsonPath, "")
	require.NoError(t, err)
	assert.Len(t, record.Collect(src), 2)

	_, err = LoadSource(csvPath, "xml")
	assert.Error(t, err)

	_, err = LoadSource(filepath.Join(dir, "nope.csv"), "")
	assert.Error(t, err)
}
