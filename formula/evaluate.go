package formula

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// CALCULATED-FIELD PASS
// ============================================================================
// 1. Reject fields on a reference cycle
// 2. Compile the rest in dependency order; earlier outputs become available
//    to later formulas, and a field that fails to compile is rejected
// 3. Evaluate row by row in batches; a failing row gets ErrorValue
// 4. Grand totals: sum per field, rounded to the field's precision
// Input rows are never modified.
// ============================================================================

// Rejection records a calculated field that was not evaluated.
type Rejection struct {
	Field string `json:"field"`
	Err   error  `json:"-"`
	Error string `json:"error"`
}

// Evaluation is the outcome of a calculated-field pass.
type Evaluation struct {
	Records    []*record.Record  `json:"records"`
	Fields     []CalculatedField `json:"fields"` // evaluated, in evaluation order
	Rejected   []Rejection       `json:"rejected,omitempty"`
	GrandTotal *record.Record    `json:"grandTotal"`
	RowErrors  int               `json:"rowErrors"`
}

type compiled struct {
	field CalculatedField
	prog  *Program
}

// EvaluateCalculatedFields adds one field per calculated field to a copy of
// each record.
func EvaluateCalculatedFields(records []*record.Record, fields []CalculatedField, available []Field, opts ...Option) *Evaluation {
	cfg := applyOptions(opts)
	ev := &Evaluation{Records: make([]*record.Record, 0, len(records)), Fields: []CalculatedField{}}

	graph := newDepGraph(fields)
	excluded := map[int]bool{}
	for i, cycle := range graph.cycles() {
		if cycle == nil {
			continue
		}
		excluded[i] = true
		names := make([]string, 0, len(cycle)+1)
		for _, k := range cycle {
			names = append(names, displayName(fields[k]))
		}
		names = append(names, names[0])
		ev.reject(cfg, fields[i], &DependencyError{Field: displayName(fields[i]), Cycle: names})
	}

	avail := append([]Field{}, available...)
	progs := []compiled{}
	for _, i := range graph.order(excluded) {
		f := fields[i]
		prog, err := Compile(f.Formula, avail)
		if err != nil {
			ev.reject(cfg, f, err)
			continue
		}
		f.Dependencies = dependenciesOf(f)
		progs = append(progs, compiled{field: f, prog: prog})
		ev.Fields = append(ev.Fields, f)
		avail = append(avail, Field{Key: f.Key(), Name: f.Name, Type: "number"})
	}

	for _, batch := range lo.Chunk(records, cfg.batchSize) {
		for _, r := range batch {
			if r == nil {
				continue
			}
			row := r.Clone()
			for _, c := range progs {
				v, err := c.prog.Eval(row, cfg.fieldMapping)
				if err != nil {
					ev.RowErrors++
					cfg.logger.Debugw("formula: row evaluation failed", "field", c.field.Key(), "error", err)
					row.Set(c.field.Key(), record.String(ErrorValue))
					continue
				}
				row.Set(c.field.Key(), record.Number(v))
			}
			ev.Records = append(ev.Records, row)
		}
	}

	ev.GrandTotal = GrandTotals(ev.Records, ev.Fields)

	cfg.logger.Debugw("formula: calculated fields evaluated",
		"rows", len(ev.Records), "fields", len(ev.Fields),
		"rejected", len(ev.Rejected), "rowErrors", ev.RowErrors)
	return ev
}

func (ev *Evaluation) reject(cfg *config, f CalculatedField, err error) {
	err = errors.Wrapf(err, "calculated field %s", displayName(f))
	cfg.logger.Warnw("formula: calculated field rejected", "field", displayName(f), "error", err)
	ev.Rejected = append(ev.Rejected, Rejection{Field: displayName(f), Err: err, Error: err.Error()})
}

// GrandTotals sums each calculated field over the visible rows and rounds
// to the field's precision. Rows holding ErrorValue are skipped.
func GrandTotals(visible []*record.Record, fields []CalculatedField) *record.Record {
	out := record.NewWithCapacity(len(fields))
	for _, f := range fields {
		total := decimal.Zero
		for _, r := range visible {
			if n, ok := r.Value(f.Key()).Finite(); ok {
				total = total.Add(decimal.NewFromFloat(n))
			}
		}
		rounded, _ := total.Round(int32(f.Digits())).Float64()
		out.Set(f.Key(), record.Number(rounded))
	}
	return out
}
