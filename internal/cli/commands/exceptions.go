package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

// ExceptionsOptions holds options for the exceptions command.
type ExceptionsOptions struct {
	RunID  string
	Limit  int
	Export string
	File   string
}

// NewExceptionsCommand creates the exceptions command.
func NewExceptionsCommand() *cobra.Command {
	opts := &ExceptionsOptions{}

	cmd := &cobra.Command{
		Use:   "exceptions",
		Short: "List or export tolerance and flow exceptions",
		Long: `List the exceptions recorded by reconciliation runs, newest first.

Tolerance failures carry the recommended alternative package combinations.
Use --export to write every matching exception as CSV or JSON.`,
		Example: `  # Latest exceptions
  skuhub exceptions

  # Exceptions of one run
  skuhub exceptions --run 6f1c...

  # Export for the audit team
  skuhub exceptions --export csv --file exceptions.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExceptions(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "Only exceptions of this run")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "Maximum rows (0 for all)")
	cmd.Flags().StringVar(&opts.Export, "export", "", "Export format: csv or json")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Export destination (default stdout)")

	_ = cmd.RegisterFlagCompletionFunc("export", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"csv", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runExceptions(cmd *cobra.Command, opts *ExceptionsOptions) error {
	if opts.Export != "" && opts.Export != "csv" && opts.Export != "json" {
		return fmt.Errorf("unknown export format %q (want csv or json)", opts.Export)
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	limit := opts.Limit
	if opts.Export != "" {
		limit = 0
	}
	exceptions, err := cc.Store.Exceptions(cmd.Context(), opts.RunID, limit)
	if err != nil {
		return err
	}

	if opts.Export == "" {
		cols, rows := exceptionRows(exceptions)
		return cc.Renderer.Table(cols, rows)
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.File, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := exportExceptions(w, opts.Export, exceptions); err != nil {
		return err
	}
	if opts.File != "" {
		cc.Logger.Info("exported exceptions", "count", len(exceptions), "file", opts.File)
	}
	return nil
}

// exportExceptions writes exceptions as CSV (alternatives JSON-encoded in
// one column) or as a JSON array.
func exportExceptions(w io.Writer, format string, exceptions []core.Exception) error {
	if format == "json" {
		if exceptions == nil {
			exceptions = []core.Exception{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(exceptions)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"run_id", "sku", "reason", "weight_error", "volume_error", "alternatives", "details"}); err != nil {
		return err
	}
	for _, e := range exceptions {
		alts := ""
		if len(e.Alternatives) > 0 {
			b, err := json.Marshal(e.Alternatives)
			if err != nil {
				return err
			}
			alts = string(b)
		}
		if err := cw.Write([]string{e.RunID, e.SKU, e.Reason, floatField(e.WeightError), floatField(e.VolumeError), alts, e.Details}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func floatField(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}
