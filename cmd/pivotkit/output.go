package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/pkg/errors"

	"github.com/spektr-org/pivotkit/engine"
	"github.com/spektr-org/pivotkit/formula"
	"github.com/spektr-org/pivotkit/record"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

// cellFormatter renders calculated fields in their display format and
// everything else as plain text.
func cellFormatter(calc []formula.CalculatedField) engine.CellFormatter {
	formats := map[string]string{}
	for _, f := range calc {
		formats[f.Key()] = f.Format
	}
	opts := settings.FormatOptions()
	return func(c engine.ColumnDescriptor, v record.Value) string {
		if format, ok := formats[c.Key]; ok {
			if n, ok := v.AsNumber(); ok {
				return formula.Format(n, format, opts...)
			}
		}
		return v.Text()
	}
}

// writeRecords renders records (plus optional total rows) in the chosen
// output format.
func writeRecords(w io.Writer, records []*record.Record, calc []formula.CalculatedField, totals ...*record.Record) error {
	if outputFormat == formatJSON {
		payload := map[string]interface{}{"records": records}
		kept := []*record.Record{}
		for _, t := range totals {
			if t != nil {
				kept = append(kept, t)
			}
		}
		if len(kept) > 0 {
			payload["totals"] = kept
		}
		return writeJSON(w, payload)
	}
	cols := engine.DiscoverColumns(records)
	writeGrid(w, engine.BuildGrid(cols, records, cellFormatter(calc), totals...))
	return nil
}

// writeGrid renders a table, or CSV when asked.
func writeGrid(w io.Writer, td *engine.TableData) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	// Don't uppercase the header values.
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(td.Columns))
	align := make([]text.Align, len(td.Columns))
	for i, c := range td.Columns {
		header[i] = c.Label
		if c.Align == "right" {
			align[i] = text.AlignRight
		}
	}
	t.AppendHeader(header)
	t.SetAlign(align)
	for _, r := range td.Rows {
		t.AppendRow(toRow(r))
	}
	for _, r := range td.Footer {
		t.AppendFooter(toRow(r))
	}
	render(t)
}

// writeRows renders a plain table, or CSV when asked.
func writeRows(w io.Writer, header table.Row, rows []table.Row) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(header)
	t.AppendRows(rows)
	render(t)
}

func render(t table.Writer) {
	if outputFormat == formatCSV {
		t.RenderCSV()
		return
	}
	t.Render()
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func writeJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal output")
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func stdout() io.Writer { return os.Stdout }
