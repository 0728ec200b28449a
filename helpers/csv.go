package helpers

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/spektr-org/pivotkit/engine"
	"github.com/spektr-org/pivotkit/record"
	"github.com/spektr-org/pivotkit/schema"
)

// ============================================================================
// CSV HELPER — Parses CSV data into []*record.Record
// ============================================================================
// Consumer reads the CSV from wherever it lives (file, S3, Sheets).
// Headers become snake_case keys; each cell is typed on its own:
//   ""            null
//   true / false  boolean
//   1234.5        number
//   anything else string (dates stay strings, inference picks them up)
// ============================================================================

// CSVOption configures ParseCSV.
type CSVOption func(*csvConfig)

type csvConfig struct {
	rawHeaders bool
	comma      rune
}

// WithRawHeaders keeps header text as-is instead of snake_casing it.
func WithRawHeaders() CSVOption {
	return func(c *csvConfig) { c.rawHeaders = true }
}

// WithComma sets the field delimiter.
func WithComma(r rune) CSVOption {
	return func(c *csvConfig) { c.comma = r }
}

// ParseCSV parses CSV bytes into records. The second return value lists
// the keys in header order.
func ParseCSV(data []byte, opts ...CSVOption) ([]*record.Record, []string, error) {
	cfg := &csvConfig{comma: ','}
	for _, opt := range opts {
		opt(cfg)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = cfg.comma
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read CSV headers")
	}

	keys := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if !cfg.rawHeaders {
			h = schema.ToSnakeCase(h)
		}
		keys[i] = h
	}

	records := []*record.Record{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		rec := record.NewWithCapacity(len(keys))
		for i, val := range row {
			if i >= len(keys) {
				break
			}
			if keys[i] == "" {
				continue
			}
			rec.Set(keys[i], typedCell(val))
		}
		records = append(records, rec)
	}

	return records, keys, nil
}

// ParseCSVView parses CSV into a RecordView (convenience wrapper).
func ParseCSVView(data []byte, opts ...CSVOption) (engine.RecordView, []string, error) {
	records, keys, err := ParseCSV(data, opts...)
	if err != nil {
		return nil, nil, err
	}
	return engine.NewSliceView(records), keys, nil
}

func typedCell(val string) record.Value {
	val = strings.TrimSpace(val)
	if val == "" {
		return record.Null()
	}
	switch strings.ToLower(val) {
	case "true":
		return record.Bool(true)
	case "false":
		return record.Bool(false)
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return record.Number(f)
	}
	return record.String(val)
}
