package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spektr-org/pivotkit/config"
	"github.com/spektr-org/pivotkit/engine"
	"github.com/spektr-org/pivotkit/helpers"
	"github.com/spektr-org/pivotkit/record"
	"github.com/spektr-org/pivotkit/schema"
)

// ============================================================================
// PIVOTKIT CLI — Reconcile, pivot and extend tabular data
// ============================================================================

const version = "0.3.0"

var (
	verbose      bool
	outputFormat string
	sourcePath   string
	sourceFormat string
	groupMarker  string

	settings *config.Settings
	logger   *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:           "pivotkit",
	Short:         "Reconcile, pivot and extend tabular records",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.LoadSettings()
		if err != nil {
			return err
		}
		logger, err = newLogger(verbose, settings)
		if err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		switch outputFormat {
		case formatTable, formatJSON, formatCSV:
		default:
			return errors.Errorf("unknown output format %q", outputFormat)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// newLogger builds a development logger when verbose, production otherwise.
func newLogger(verbose bool, s *config.Settings) (*zap.SugaredLogger, error) {
	var z zap.Config
	if verbose {
		z = zap.NewDevelopmentConfig()
	} else {
		z = zap.NewProductionConfig()
		z.Level = zap.NewAtomicLevelAt(s.LogLevel)
	}
	z.OutputPaths = []string{"stderr"}
	l, err := z.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging at debug level")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatTable, "output format: table, json, csv")

	for _, cmd := range []*cobra.Command{describeCmd, inferCmd, reconcileCmd, pivotCmd} {
		addSourceFlags(cmd)
		_ = cmd.MarkFlagRequired("file")
	}
	addSourceFlags(runCmd)

	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(pivotCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(formulaCmd)
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sourcePath, "file", "f", "", "path to a CSV or JSON data file")
	cmd.Flags().StringVar(&sourceFormat, "format", "", "source format: csv, json (default: by extension)")
	cmd.Flags().StringVar(&groupMarker, "group-marker", "", "field that records the origin group of each record")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ============================================================================
// SHARED FLAG PARSING
// ============================================================================

// loadRecords reads --file and collects it.
func loadRecords() ([]*record.Record, error) {
	src, err := helpers.LoadSource(sourcePath, sourceFormat)
	if err != nil {
		return nil, err
	}
	opts := []record.CollectOption{record.WithLogger(logger)}
	if groupMarker != "" {
		opts = append(opts, record.WithGroupMarker(groupMarker))
	}
	records := record.Collect(src, opts...)
	logger.Debugw("loaded source", "path", sourcePath, "records", len(records))
	return records, nil
}

// parseMerge turns --merge into a spec: "auto", "" (no merge) or a comma
// list of key fields.
func parseMerge(merge string, preserve []string) schema.MergeSpec {
	merge = strings.TrimSpace(merge)
	switch {
	case merge == "":
		return schema.MergeSpec{}
	case strings.EqualFold(merge, "auto"):
		return schema.AutoMerge
	}
	return schema.MergeSpec{MergeBy: splitList(merge), Preserve: preserve}
}

// parseValues reads "field" or "field:aggregation" entries.
func parseValues(entries []string) ([]engine.ValueSpec, error) {
	values := make([]engine.ValueSpec, 0, len(entries))
	for _, e := range entries {
		field, agg, _ := strings.Cut(e, ":")
		a, err := engine.ParseAggregation(agg)
		if err != nil {
			return nil, errors.Wrapf(err, "--value %s", e)
		}
		values = append(values, engine.ValueSpec{Field: strings.TrimSpace(field), Aggregation: a})
	}
	return values, nil
}

// parseFilters reads "field=a,b" entries.
func parseFilters(search string, entries []string) (engine.Filters, error) {
	f := engine.Filters{Search: search}
	for _, e := range entries {
		field, vals, ok := strings.Cut(e, "=")
		if !ok || strings.TrimSpace(field) == "" {
			return f, errors.Errorf("--filter %q: expected field=value[,value]", e)
		}
		if f.Columns == nil {
			f.Columns = map[string][]string{}
		}
		key := strings.TrimSpace(field)
		f.Columns[key] = append(f.Columns[key], splitList(vals)...)
	}
	return f, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
