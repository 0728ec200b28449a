// Package pivotkit reconciles, pivots and extends tabular records.
//
// Usage:
//
//	import "github.com/spektr-org/pivotkit"
//
//	records := pivotkit.Collect(source)
//	merged := pivotkit.Reconcile(records, schema.AutoMerge)
//	result := pivotkit.Pivot(merged, engine.PivotSpec{
//	    Rows:   []string{"region"},
//	    Values: []engine.ValueSpec{{Field: "amount", Aggregation: engine.AggSum}},
//	    ShowGrandTotals: true,
//	})
//
// Run chains every stage from a saved config.View. All computation is local
// and synchronous; no stage fails outward except formula validation, which
// rejects the offending calculated field only.
package pivotkit

import (
	"go.uber.org/zap"

	"github.com/spektr-org/pivotkit/config"
	"github.com/spektr-org/pivotkit/engine"
	"github.com/spektr-org/pivotkit/formula"
	"github.com/spektr-org/pivotkit/reconcile"
	"github.com/spektr-org/pivotkit/record"
	"github.com/spektr-org/pivotkit/schema"
)

// Collect flattens a sequence, an object of arrays or an object of records.
func Collect(input any, opts ...record.CollectOption) []*record.Record {
	return record.Collect(input, opts...)
}

// Reconcile merges records per spec. schema.AutoMerge infers the key.
func Reconcile(records []*record.Record, spec schema.MergeSpec, opts ...reconcile.Option) []*record.Record {
	return reconcile.Reconcile(records, spec, opts...)
}

// Pivot aggregates records per spec.
func Pivot(records []*record.Record, spec engine.PivotSpec, opts ...engine.Option) *engine.PivotResult {
	return engine.Pivot(records, spec, opts...)
}

// EvaluateCalculatedFields adds calculated fields to copies of records.
func EvaluateCalculatedFields(records []*record.Record, fields []formula.CalculatedField, available []formula.Field, opts ...formula.Option) *formula.Evaluation {
	return formula.EvaluateCalculatedFields(records, fields, available, opts...)
}

// ============================================================================
// RUN — Full pipeline from a view definition
// ============================================================================
//   collect → reconcile → filter → pivot → calculated fields → grand total
// Calculated fields see the pivot columns when a pivot is configured and
// the record keys otherwise.
// ============================================================================

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger    *zap.SugaredLogger
	batchSize int
}

// WithLogger sets the logger handed to every stage.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBatchSize sets the calculated-field batch size.
func WithBatchSize(n int) Option {
	return func(c *runConfig) { c.batchSize = n }
}

// Output is the result of Run.
type Output struct {
	Collected  int `json:"collected"`
	Reconciled int `json:"reconciled"`
	Visible    int `json:"visible"`

	Merge     schema.MergeSpec          `json:"merge"`
	Inference *schema.MergeInference    `json:"inference,omitempty"`
	IsPivot   bool                      `json:"isPivot"`
	Records   []*record.Record          `json:"records"`
	Columns   []engine.ColumnDescriptor `json:"columns,omitempty"`

	GrandTotal   *record.Record `json:"grandTotal,omitempty"`
	ColumnTotals *record.Record `json:"columnTotals,omitempty"`

	Calculated []formula.CalculatedField `json:"calculated,omitempty"`
	Rejected   []formula.Rejection       `json:"rejected,omitempty"`
	RowErrors  int                       `json:"rowErrors,omitempty"`

	// PivotErr is set when the pivot degraded to the filtered records.
	PivotErr error `json:"-"`
}

// Run executes view against source.
func Run(source any, view config.View, opts ...Option) *Output {
	cfg := &runConfig{logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(cfg)
	}
	log := cfg.logger

	collectOpts := []record.CollectOption{record.WithLogger(log)}
	if view.Source.GroupMarker != "" {
		collectOpts = append(collectOpts, record.WithGroupMarker(view.Source.GroupMarker))
	}
	collected := record.Collect(source, collectOpts...)
	out := &Output{Collected: len(collected), Merge: view.Merge}

	merged := collected
	if view.Merge.Auto {
		var inf schema.MergeInference
		merged, inf = reconcile.Auto(collected, reconcile.WithLogger(log))
		out.Merge = inf.Spec
		out.Inference = &inf
	} else if !view.Merge.IsZero() {
		merged = reconcile.Reconcile(collected, view.Merge, reconcile.WithLogger(log))
	}
	out.Reconciled = len(merged)

	visible := engine.ApplyFilters(merged, view.Filters)
	out.Visible = len(visible)

	rows := visible
	var available []formula.Field
	if view.Pivot != nil {
		res := engine.Pivot(visible, *view.Pivot, engine.WithLogger(log))
		out.IsPivot = res.IsPivot
		out.PivotErr = res.Err
		out.Columns = res.PivotColumns
		out.GrandTotal = res.GrandTotal
		out.ColumnTotals = res.ColumnTotals
		rows = res.PivotData
		if res.IsPivot {
			available = columnFields(res.PivotColumns)
		}
	}
	if available == nil {
		available = recordFields(rows)
	}

	if len(view.CalculatedFields) == 0 {
		out.Records = rows
		return out
	}

	formulaOpts := []formula.Option{formula.WithLogger(log), formula.WithFieldMapping(view.FieldMapping)}
	if cfg.batchSize > 0 {
		formulaOpts = append(formulaOpts, formula.WithBatchSize(cfg.batchSize))
	}
	ev := formula.EvaluateCalculatedFields(rows, view.CalculatedFields, available, formulaOpts...)
	out.Records = ev.Records
	out.Calculated = ev.Fields
	out.Rejected = ev.Rejected
	out.RowErrors = ev.RowErrors

	totals := formula.GrandTotals(dataRows(ev.Records), ev.Fields)
	if out.GrandTotal == nil {
		out.GrandTotal = record.New().Set(engine.FieldGrandTotal, record.Bool(true))
	} else {
		out.GrandTotal = out.GrandTotal.Clone()
	}
	totals.Range(func(key string, v record.Value) bool {
		out.GrandTotal.Set(key, v)
		return true
	})

	if out.IsPivot {
		for _, f := range ev.Fields {
			out.Columns = append(out.Columns, engine.ColumnDescriptor{
				Key:   f.Key(),
				Label: f.Name,
				Type:  engine.ColumnCalculated,
				Align: "right",
			})
		}
	}

	log.Debugw("run: done",
		"collected", out.Collected, "reconciled", out.Reconciled, "visible", out.Visible,
		"rows", len(out.Records), "calculated", len(out.Calculated), "rejected", len(out.Rejected))
	return out
}

// columnFields exposes pivot columns to formulas by key and label.
func columnFields(cols []engine.ColumnDescriptor) []formula.Field {
	fields := make([]formula.Field, 0, len(cols))
	for _, c := range cols {
		typ := "number"
		if c.Type == engine.ColumnDimension {
			typ = "text"
		}
		fields = append(fields, formula.Field{Key: c.Key, Name: c.Label, Type: typ})
	}
	return fields
}

// recordFields exposes every key seen in records, named by their display
// names from the inference sample.
func recordFields(records []*record.Record) []formula.Field {
	names := map[string]schema.FieldDescriptor{}
	for _, d := range schema.DescribeFields(records) {
		names[d.Key] = d
	}
	seen := map[string]bool{}
	fields := []formula.Field{}
	for _, r := range records {
		for _, key := range r.Keys() {
			if seen[key] {
				continue
			}
			seen[key] = true
			d := names[key]
			fields = append(fields, formula.Field{Key: key, Name: d.DisplayName, Type: string(d.InferredType)})
		}
	}
	return fields
}

// dataRows drops subtotal rows so totals count each record once.
func dataRows(rows []*record.Record) []*record.Record {
	out := make([]*record.Record, 0, len(rows))
	for _, r := range rows {
		if b, _ := r.Value(engine.FieldSubTotal).AsBool(); b {
			continue
		}
		out = append(out, r)
	}
	return out
}
