package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPurgeCommand creates the purge command.
func NewPurgeCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete superseded master rows",
		Long: `Remove master rows that are no longer the live version of their SKU.

The master keeps every distinct version of a SKU row. Purging is never
done automatically; it drops history that past runs referenced.`,
		Example: `  skuhub purge --yes`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := cc.Store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			superseded := stats.TotalRows - stats.LiveRows
			r := cc.Renderer
			if !yes {
				r.Printf("%d of %d master rows are superseded. Re-run with --yes to delete them.\n", superseded, stats.TotalRows)
				return nil
			}

			n, err := cc.Store.Purge(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}
			r.Println(r.Success(fmt.Sprintf("deleted %d superseded rows", n)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
