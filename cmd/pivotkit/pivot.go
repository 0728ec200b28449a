package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/spektr-org/pivotkit"
	"github.com/spektr-org/pivotkit/config"
	"github.com/spektr-org/pivotkit/engine"
	"github.com/spektr-org/pivotkit/helpers"
)

var pivotCmd = &cobra.Command{
	Use:   "pivot",
	Short: "Group and aggregate a data file",
	Example: `  pivotkit pivot -f sales.csv --rows region --columns year --value amount:sum --grand-totals
  pivotkit pivot -f sales.json --merge auto --rows team --value points:avg --filter team=red,blue`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		rows, _ := flags.GetStringSlice("rows")
		columns, _ := flags.GetStringSlice("columns")
		valueEntries, _ := flags.GetStringSlice("value")
		merge, _ := flags.GetString("merge")
		preserve, _ := flags.GetStringSlice("preserve")
		search, _ := flags.GetString("search")
		filterEntries, _ := flags.GetStringSlice("filter")

		values, err := parseValues(valueEntries)
		if err != nil {
			return err
		}
		filters, err := parseFilters(search, filterEntries)
		if err != nil {
			return err
		}

		spec := engine.PivotSpec{Rows: rows, Columns: columns, Values: values}
		spec.ShowRowTotals, _ = flags.GetBool("row-totals")
		spec.ShowColumnTotals, _ = flags.GetBool("column-totals")
		spec.ShowGrandTotals, _ = flags.GetBool("grand-totals")
		spec.ShowSubTotals, _ = flags.GetBool("subtotals")
		spec.SortRows, _ = flags.GetBool("sort-rows")
		spec.SortColumns, _ = flags.GetBool("sort-columns")
		if desc, _ := flags.GetBool("desc"); desc {
			spec.SortDirection = "desc"
		}
		if err := spec.Validate(); err != nil {
			return err
		}

		src, err := helpers.LoadSource(sourcePath, sourceFormat)
		if err != nil {
			return err
		}
		view := config.View{
			Source:  config.Source{Path: sourcePath, GroupMarker: groupMarker},
			Merge:   parseMerge(merge, preserve),
			Filters: filters,
			Pivot:   &spec,
		}
		return writeOutput(pivotkit.Run(src, view, pivotkit.WithLogger(logger), pivotkit.WithBatchSize(settings.BatchSize)))
	},
}

var runCmd = &cobra.Command{
	Use:   "run <view>",
	Short: "Run a saved view definition (json, toml or yaml)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := config.LoadView(args[0])
		if err != nil {
			return err
		}
		path, format := view.Source.Path, view.Source.Format
		if sourcePath != "" {
			path, format = sourcePath, sourceFormat
		}
		if groupMarker != "" {
			view.Source.GroupMarker = groupMarker
		}
		if path == "" {
			return errors.New("no source: set source.path in the view or pass --file")
		}
		src, err := helpers.LoadSource(path, format)
		if err != nil {
			return err
		}
		logger.Debugw("running view", "view", args[0], "name", view.Name, "source", path)
		return writeOutput(pivotkit.Run(src, *view, pivotkit.WithLogger(logger), pivotkit.WithBatchSize(settings.BatchSize)))
	},
}

func init() {
	f := pivotCmd.Flags()
	f.StringSlice("rows", nil, "row fields, outermost first")
	f.StringSlice("columns", nil, "column fields, outermost first")
	f.StringSlice("value", nil, `value fields as "field" or "field:aggregation" (repeatable)`)
	f.String("merge", "", `merge key before pivoting: "auto" or a comma list of fields`)
	f.StringSlice("preserve", nil, "fields back-filled across records sharing the primary key")
	f.String("search", "", "case-insensitive text every visible record must contain")
	f.StringSlice("filter", nil, `column filter as "field=value[,value]" (repeatable)`)
	f.Bool("row-totals", false, "add a total column per value")
	f.Bool("column-totals", false, "add a column-totals row")
	f.Bool("grand-totals", true, "add a grand-total row over the visible records")
	f.Bool("subtotals", false, "add subtotal rows per row level")
	f.Bool("sort-rows", false, "sort rows by label")
	f.Bool("sort-columns", false, "sort columns by label")
	f.Bool("desc", false, "sort descending")
	_ = pivotCmd.MarkFlagRequired("value")
}

// writeOutput writes a pipeline result and reports degraded stages on the
// log.
func writeOutput(out *pivotkit.Output) error {
	if out.PivotErr != nil {
		logger.Warnw("pivot skipped", "error", out.PivotErr)
	}
	for _, r := range out.Rejected {
		logger.Warnw("calculated field rejected", "field", r.Field, "error", r.Error)
	}
	if out.RowErrors > 0 {
		logger.Warnw("calculated fields failed on some rows", "count", out.RowErrors)
	}

	if outputFormat == formatJSON {
		return writeJSON(stdout(), out)
	}

	cols := out.Columns
	if !out.IsPivot {
		cols = engine.DiscoverColumns(out.Records)
	}
	writeGrid(stdout(), engine.BuildGrid(cols, out.Records, cellFormatter(out.Calculated), out.ColumnTotals, out.GrandTotal))
	return nil
}
