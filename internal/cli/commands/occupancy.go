package commands

import (
	"github.com/spf13/cobra"
)

// NewOccupancyCommand creates the occupancy command.
func NewOccupancyCommand() *cobra.Command {
	var warehouse string

	cmd := &cobra.Command{
		Use:   "occupancy",
		Short: "Show daily warehouse occupancy and charges",
		Long: `Print the occupancy computed by the latest run: packages in each billable
warehouse per day, occupied area, the daily charge and the running total.`,
		Example: `  skuhub occupancy
  skuhub occupancy --warehouse "DSV Indoor" -o csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := cc.Store.Occupancy(cmd.Context(), warehouse)
			if err != nil {
				return err
			}
			cols := []string{"date", "warehouse", "packages", "area", "daily_charge", "cumulative_charge"}
			rows := make([][]any, len(records))
			for i, o := range records {
				rows[i] = []any{o.Date, o.Warehouse, o.Packages, o.Area, o.DailyCharge, o.CumulativeCharge}
			}
			return cc.Renderer.Table(cols, rows)
		},
	}

	cmd.Flags().StringVar(&warehouse, "warehouse", "", "Only this warehouse")
	return cmd
}
