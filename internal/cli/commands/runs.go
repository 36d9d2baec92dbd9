package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/skuhub/internal/cli/output"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List reconciliation run history",
		Long:  `List recorded runs, newest first, with their status and headline KPIs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := cc.Runs.ListRuns(limit)
			if err != nil {
				return err
			}
			if cc.Renderer.EffectiveMode() == output.ModeJSON {
				return cc.Renderer.JSON(runs)
			}
			cols, rows := runRows(runs)
			return cc.Renderer.Table(cols, rows)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs (0 for all)")

	cmd.AddCommand(newRunsShowCommand())
	return cmd
}

func newRunsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show the KPIs of one run (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var run *core.Run
			if len(args) == 1 {
				run, err = cc.Runs.GetRun(args[0])
			} else {
				run, err = cc.Runs.GetLatestRun(cc.Cfg.Environment)
			}
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("no runs recorded for environment %q", cc.Cfg.Environment)
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(run)
			}
			r.Header(1, "Run "+run.ID)
			pairs := [][2]string{
				{"environment", run.Environment},
				{"status", r.Status(string(run.Status))},
				{"started", output.FormatValue(run.StartedAt)},
			}
			if run.CompletedAt != nil {
				pairs = append(pairs, [2]string{"completed", output.FormatValue(*run.CompletedAt)})
			}
			if run.Error != "" {
				pairs = append(pairs, [2]string{"error", r.Fail(run.Error)})
			}
			r.KeyValues(append(pairs, kpiPairs(run.KPI)...))
			if run.KPI != nil && len(run.KPI.Warnings) > 0 {
				r.Println()
				r.Header(2, fmt.Sprintf("Warnings (%d)", len(run.KPI.Warnings)))
				for _, w := range run.KPI.Warnings {
					r.Println("- " + w)
				}
			}
			return nil
		},
	}
}
