package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ipamtools/bamsync/bam"
	"github.com/ipamtools/bamsync/changelog"
	"github.com/ipamtools/bamsync/config"
	"github.com/ipamtools/bamsync/importer"
	"github.com/ipamtools/bamsync/logger"
	"github.com/ipamtools/bamsync/metrics"
	"github.com/ipamtools/bamsync/model"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath     string
		metricsAddr string
	)

	root := &cobra.Command{
		Use:           "bamsync",
		Short:         "Import network configuration CSV files into a remote IPAM server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "expose prometheus metrics on this address during the run")

	root.AddCommand(newValidateCmd(&cfgPath, &metricsAddr))
	root.AddCommand(newApplyCmd(&cfgPath, &metricsAddr))
	return root
}

func setup(cfgPath, metricsAddr string) (*config.Config, *metrics.Metrics, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Env)

	m := metrics.New(true)
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		go func() {
			slog.Info("Starting metrics server", "address", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}
	return cfg, m, nil
}

func newValidateCmd(cfgPath, metricsAddr *string) *cobra.Command {
	var lenient bool

	cmd := &cobra.Command{
		Use:   "validate <csv>",
		Short: "Parse and classify a CSV file without side effects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, m, err := setup(*cfgPath, *metricsAddr)
			if err != nil {
				return err
			}

			client := bam.New(cfg.BAM, m)
			imp := importer.New(cfg, client, nil, m)

			rows, warnings, risks, err := imp.Validate(args[0], !lenient)
			if err != nil {
				return err
			}

			for _, w := range warnings {
				fmt.Printf("warning: line %d field %q: %s\n", w.Line, w.Field, w.Message)
			}
			for _, r := range risks {
				fmt.Printf("line %-4d %-12s %-35s %-30s %s\n", r.Line, r.Risk, r.ObjectType, r.Name, r.Action)
			}
			fmt.Printf("%d valid row(s), %d warning(s)\n", len(rows), len(warnings))
			return nil
		},
	}
	cmd.Flags().BoolVar(&lenient, "lenient", false, "skip invalid rows instead of aborting")
	return cmd
}

func newApplyCmd(cfgPath, metricsAddr *string) *cobra.Command {
	var opts importer.Options

	cmd := &cobra.Command{
		Use:   "apply <csv>",
		Short: "Validate, classify and execute a CSV file against the remote server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, m, err := setup(*cfgPath, *metricsAddr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := bam.New(cfg.BAM, m)

			var store changelog.Store
			if !opts.DryRun {
				store, err = changelog.New(cfg.ChangelogPath, m)
				if err != nil {
					return fmt.Errorf("open changelog: %w", err)
				}
				defer store.Close()
			}

			imp := importer.New(cfg, client, store, m)
			report, err := imp.Apply(ctx, args[0], opts)
			if err != nil {
				return err
			}

			printReport(report)
			if report.Failed() > 0 {
				return fmt.Errorf("%d row(s) failed", report.Failed())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "build and classify operations without remote calls")
	cmd.Flags().BoolVar(&opts.AllowDestructive, "allow-destructive", false, "permit irreversible operations in the batch")
	return cmd
}

func printReport(report model.RunReport) {
	fmt.Printf("run %s (%s)\n", report.RunID, report.Finished.Sub(report.Started))
	for _, res := range report.Results {
		line := fmt.Sprintf("line %-4d %-35s %-30s %s", res.Line, res.ObjectType, res.Name, res.Outcome)
		if res.Reason != "" {
			line += " (" + res.Reason + ")"
		}
		fmt.Println(line)
	}
	fmt.Printf("applied=%d exists=%d simulated=%d failed=%d\n",
		report.Count(model.OutcomeApplied),
		report.Count(model.OutcomeAlreadyExists),
		report.Count(model.OutcomeSimulated),
		report.Failed())
}
