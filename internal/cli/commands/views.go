package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/skuhub/internal/store"
)

// viewAliases lets users name views the way the API routes do.
var viewAliases = map[string]string{
	"live":               store.ViewLive,
	"flow-mix":           store.ViewFlowMix,
	"location-daily":     store.ViewLocationDaily,
	"invoice-failures":   store.ViewInvoiceFailures,
	"flow-location":      store.ViewFlowLocation,
	"exceptions-summary": store.ViewExceptionsSummary,
	"location-monthly":   store.ViewLocationMonthly,
}

func resolveView(name string) (string, error) {
	if v, ok := viewAliases[strings.ToLower(name)]; ok {
		return v, nil
	}
	if store.IsView(name) {
		return name, nil
	}
	return "", fmt.Errorf("unknown view %q (available: %s)", name, strings.Join(viewNames(), ", "))
}

func viewNames() []string {
	names := make([]string, 0, len(viewAliases))
	for _, v := range store.Views {
		for alias, target := range viewAliases {
			if target == v {
				names = append(names, alias)
			}
		}
	}
	return names
}

// NewViewsCommand creates the views command.
func NewViewsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "views [name]",
		Short: "Query the reporting views",
		Long: `Print a reporting view over the live SKU master.

Without a name, lists the available views.`,
		Example: `  # List views
  skuhub views

  # Worst invoice mismatches
  skuhub views invoice-failures --limit 10

  # Flow code distribution as CSV
  skuhub views flow-mix -o csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cc, err := NewCommandContextWithoutStore(cmd)
				if err != nil {
					return err
				}
				rows := make([][]any, 0, len(store.Views))
				for _, name := range viewNames() {
					rows = append(rows, []any{name, viewAliases[name]})
				}
				return cc.Renderer.Table([]string{"name", "view"}, rows)
			}

			view, err := resolveView(args[0])
			if err != nil {
				return err
			}
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := cc.Store.View(cmd.Context(), view, limit)
			if err != nil {
				return err
			}
			return cc.Renderer.Table(res.Columns, res.Rows)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows (0 for all)")
	return cmd
}
