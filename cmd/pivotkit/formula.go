package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/spektr-org/pivotkit/formula"
	"github.com/spektr-org/pivotkit/record"
)

var formulaCmd = &cobra.Command{
	Use:   "formula",
	Short: "Validate and evaluate calculated-field formulas",
}

var formulaValidateCmd = &cobra.Command{
	Use:   "validate <formula>",
	Short: "Check a formula against a list of fields",
	Example: `  pivotkit formula validate "[revenue] - [cost]" --fields revenue,cost
  pivotkit formula validate "IF([qty] = 0, 0, [total] / [qty])" --fields qty,total`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, _ := cmd.Flags().GetStringSlice("fields")
		fields := make([]formula.Field, 0, len(names))
		for _, n := range names {
			fields = append(fields, formula.Field{Key: n})
		}

		res := formula.Validate(args[0], fields)
		if outputFormat == formatJSON {
			if err := writeJSON(stdout(), res); err != nil {
				return err
			}
		} else {
			rows := []table.Row{{"valid", res.IsValid}, {"dependencies", fmt.Sprint(res.Dependencies)}}
			for _, e := range res.Errors {
				rows = append(rows, table.Row{"error", e})
			}
			for _, w := range res.Warnings {
				rows = append(rows, table.Row{"warning", w})
			}
			writeRows(stdout(), table.Row{"Check", "Result"}, rows)
		}
		if !res.IsValid {
			return errors.New("formula is invalid")
		}
		return nil
	},
}

var formulaEvalCmd = &cobra.Command{
	Use:     "eval <formula>",
	Short:   "Evaluate a formula against one JSON row",
	Example: `  pivotkit formula eval "[a] * 2 + [b]" --row '{"a": 7, "b": -2.5}'`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rowJSON, _ := cmd.Flags().GetString("row")
		format, _ := cmd.Flags().GetString("display")

		row := record.New()
		if rowJSON != "" {
			if err := row.UnmarshalJSON([]byte(rowJSON)); err != nil {
				return errors.Wrap(err, "--row")
			}
		}

		v, err := formula.Execute(args[0], row, nil, nil)
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return writeJSON(stdout(), map[string]interface{}{"value": v, "display": formula.Format(v, format, settings.FormatOptions()...)})
		}
		fmt.Fprintln(stdout(), formula.Format(v, format, settings.FormatOptions()...))
		return nil
	},
}

func init() {
	formulaValidateCmd.Flags().StringSlice("fields", nil, "available field keys")
	formulaEvalCmd.Flags().String("row", "", "row as a JSON object")
	formulaEvalCmd.Flags().String("display", formula.FormatNumber, "display format: number, percentage, currency, decimal2, decimal4, integer, scientific")

	formulaCmd.AddCommand(formulaValidateCmd)
	formulaCmd.AddCommand(formulaEvalCmd)
}
