package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/skuhub/internal/recon"
	"github.com/leapstack-labs/skuhub/internal/source"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Watch  bool
	DryRun bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile the invoice, flow and stock datasets",
		Long: `Load the three source datasets, join them per SKU and update the master.

Every run validates invoice tolerances and flow transitions, flags weight and
volume outliers, recommends alternative packages for failed matches and
recomputes warehouse occupancy. Results are written in one transaction.

Missing or malformed sources degrade the run: it continues with the
remaining data and records a warning in the run KPIs.`,
		Example: `  # Reconcile using paths from skuhub.yaml
  skuhub run

  # Override source files
  skuhub run --invoice data/invoice.csv --flow data/flow.csv --stock data/stock.csv

  # Compute everything without writing to the master
  skuhub run --dry-run

  # Re-run whenever a source file changes
  skuhub run --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run when a source file changes")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Reconcile without writing to the master store or run log")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	if opts.Watch && opts.DryRun {
		return fmt.Errorf("--watch and --dry-run cannot be combined")
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !opts.Watch {
		_, err := reconcile(ctx, cc, opts.DryRun)
		return err
	}

	w := newSourceWatcher(sourcePaths(cc), cc.Runs, cc.Cfg.Watch.Debounce, func(ctx context.Context) error {
		_, err := reconcile(ctx, cc, false)
		return err
	}, cc.Logger)
	cc.Renderer.Println(cc.Renderer.Muted(fmt.Sprintf("watching %d source files, press Ctrl+C to stop", len(w.paths))))
	return w.Watch(ctx)
}

// reconcile runs the engine once and prints the report. Source
// fingerprints are recorded after a successful persisted run.
func reconcile(ctx context.Context, cc *CommandContext, dryRun bool) (*recon.Report, error) {
	cfg := cc.Cfg
	deps := recon.Deps{
		Environment: cfg.Environment,
		Logger:      cc.Logger,
	}
	if src := csvSource(cc, core.SourceInvoice, cfg.Sources.Invoice.Path, cfg.Sources.Invoice.Sheet); src != nil {
		deps.Invoice = src
	}
	if src := csvSource(cc, core.SourceFlow, cfg.Sources.Flow.Path, cfg.Sources.Flow.Sheet); src != nil {
		deps.Flow = src
	}
	if src := csvSource(cc, core.SourceStock, cfg.Sources.Stock.Path, cfg.Sources.Stock.Sheet); src != nil {
		deps.Stock = src
	}
	if !dryRun {
		deps.Store = cc.Store
		deps.Runs = cc.Runs
	}

	eng, err := recon.New(&cfg.Settings, deps)
	if err != nil {
		return nil, err
	}
	report, err := eng.Run(ctx)
	if err != nil {
		if report != nil {
			cc.Renderer.Println(cc.Renderer.Fail("run " + report.RunID + " failed"))
		}
		return report, err
	}

	if !dryRun {
		recordFingerprints(cc, sourcePaths(cc))
	}
	return report, renderReport(cc.Renderer, report, dryRun)
}

// csvSource returns nil when no path is configured so the engine reports
// the source as missing.
func csvSource(cc *CommandContext, name, path, sheet string) *source.CSV {
	if path == "" {
		return nil
	}
	return source.NewCSV(name, path, sheet, cc.Cfg.Flow.LocationNames(), cc.DB, cc.Logger)
}

// sourcePaths maps each configured source file to its dataset name.
func sourcePaths(cc *CommandContext) map[string]string {
	paths := make(map[string]string, 3)
	for name, p := range map[string]string{
		core.SourceInvoice: cc.Cfg.Sources.Invoice.Path,
		core.SourceFlow:    cc.Cfg.Sources.Flow.Path,
		core.SourceStock:   cc.Cfg.Sources.Stock.Path,
	} {
		if p != "" {
			paths[p] = name
		}
	}
	return paths
}

func recordFingerprints(cc *CommandContext, paths map[string]string) {
	for path, name := range paths {
		hash, err := source.Fingerprint(path)
		if err != nil {
			cc.Logger.Debug("skipping fingerprint", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		if err := cc.Runs.SetContentHash(path, hash, name); err != nil {
			cc.Logger.Warn("failed to record fingerprint", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
}
