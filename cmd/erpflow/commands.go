package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/zoobzio/clockz"

	"github.com/wdm0006/erpflow/pkg/config"
	"github.com/wdm0006/erpflow/pkg/logging"
	"github.com/wdm0006/erpflow/pkg/pipeline"
	"github.com/wdm0006/erpflow/pkg/profile"
	"github.com/wdm0006/erpflow/pkg/transform/validate"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "erpflow",
		Short: "Extract ERP data, validate it and publish derived reports",
		Long: `erpflow extracts procurement, profit-and-loss and product margin data from
ERP databases and file exports, validates it against column rules, derives
the reporting datasets and loads them into an object store and a warehouse.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "config.yaml", "path to the YAML or TOML configuration file")
	root.AddCommand(newRunCmd(), newValidateCmd(), newVersionCmd())
	return root
}

// setup loads configuration and builds the logger. The returned close
// function releases the log file.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, func() error, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	log, closeFn, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, closeFn, nil
}

func newRunCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every enabled dataset end to end",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, closeLog, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			if dryRun {
				cfg.DryRun = true
			}
			ctx := cmd.Context()
			r, err := pipeline.Build(ctx, cfg, clockz.RealClock, log)
			if err != nil {
				log.ErrorContext(ctx, "pipeline setup failed", "error", err)
				return err
			}
			sum, err := r.Run(ctx)
			if err != nil {
				log.ErrorContext(ctx, "pipeline failed", "run_id", sum.RunID, "error", err)
				return err
			}
			for _, d := range sum.Datasets {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d rows\t%s\t%s\n", d.Name, d.Rows, d.Key, d.Table)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "transform without loading")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var (
		dataset     string
		showProfile bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Extract one dataset's sources and report rule violations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, closeLog, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			dc, ok := cfg.Dataset(dataset)
			if !ok {
				return fmt.Errorf("unknown dataset %q", dataset)
			}
			one := *cfg
			one.Datasets = []config.DatasetConfig{dc}
			one.Datasets[0].Enabled = nil
			datasets, err := pipeline.Datasets(&one, log)
			if err != nil {
				return err
			}
			ds := datasets[0]
			r := pipeline.NewRunner(datasets, nil, nil, pipeline.Options{}, log)
			frames, err := r.Extract(cmd.Context(), ds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showProfile {
				for i, f := range frames {
					fmt.Fprintf(out, "source %s\n%s", ds.Sources[i].Name(), profile.Of(f, 5).ReportText())
				}
			}
			verr := pipeline.Check(ds, frames)
			if verr == nil {
				fmt.Fprintf(out, "%s: no validation issues\n", ds.Name)
				return nil
			}
			printIssues(out, verr)
			return verr
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset to validate")
	cmd.Flags().BoolVar(&showProfile, "profile", false, "print a column profile of each extract")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func printIssues(w io.Writer, verr *pipeline.ValidationError) {
	for _, src := range verr.Sources() {
		for _, d := range validate.Details(verr.Issues[src]) {
			fmt.Fprintf(w, "%s\t%s\n", src, d)
		}
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "erpflow", version)
		},
	}
}
