package main

import (
	"github.com/jedib0t/go-pretty/table"
	"github.com/spf13/cobra"

	"github.com/spektr-org/pivotkit/reconcile"
	"github.com/spektr-org/pivotkit/schema"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describe the fields found in a data file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := loadRecords()
		if err != nil {
			return err
		}
		fields := schema.DescribeFields(records)
		if outputFormat == formatJSON {
			return writeJSON(stdout(), fields)
		}

		rows := make([]table.Row, 0, len(fields))
		for _, f := range fields {
			rows = append(rows, table.Row{f.Key, f.DisplayName, f.InferredType, f.SampleUniqueCount, f.CardinalityHint})
		}
		writeRows(stdout(), table.Row{"Key", "Name", "Type", "Unique", "Cardinality"}, rows)
		return nil
	},
}

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Infer the merge key of a data file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := loadRecords()
		if err != nil {
			return err
		}
		inf := schema.Infer(records)
		if outputFormat == formatJSON {
			return writeJSON(stdout(), inf)
		}

		rows := make([]table.Row, 0, len(inf.Candidates))
		for _, c := range inf.Candidates {
			rows = append(rows, table.Row{c.Key, c.Presence, c.Bonus, c.Score})
		}
		writeRows(stdout(), table.Row{"Key", "Presence", "Bonus", "Score"}, rows)
		logger.Infow("merge key inferred",
			"mergeBy", inf.Spec.MergeBy, "preserve", inf.Spec.Preserve,
			"uniqueness", inf.Ratio, "sampled", inf.Sampled, "bestEffort", inf.BestEffort)
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Merge records describing the same entity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		merge, _ := cmd.Flags().GetString("merge")
		preserve, _ := cmd.Flags().GetStringSlice("preserve")
		fallbackID, _ := cmd.Flags().GetString("fallback-id")

		records, err := loadRecords()
		if err != nil {
			return err
		}
		spec := parseMerge(merge, preserve)
		merged := reconcile.Reconcile(records, spec,
			reconcile.WithLogger(logger),
			reconcile.WithFallbackIDField(fallbackID),
		)
		logger.Infow("reconciled", "input", len(records), "output", len(merged))
		return writeRecords(stdout(), merged, nil)
	},
}

func init() {
	reconcileCmd.Flags().String("merge", "auto", `merge key: "auto" or a comma list of fields`)
	reconcileCmd.Flags().StringSlice("preserve", nil, "fields back-filled across records sharing the primary key")
	reconcileCmd.Flags().String("fallback-id", reconcile.DefaultFallbackIDField, "field receiving generated identifiers")
}
