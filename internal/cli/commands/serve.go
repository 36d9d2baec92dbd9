package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/skuhub/internal/api"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only reporting API",
		Long: `Start the HTTP reporting API over the SKU master and the run log.

Routes:
  GET /healthz
  GET /api/kpi                 latest run KPIs
  GET /api/runs                run history
  GET /api/threeway?tol=       PASS/FAIL counts, optionally re-evaluated
  GET /api/flow-mix            flow code distribution
  GET /api/flow-location       flow code by final location
  GET /api/location-daily      first/last seen per location and day
  GET /api/invoice-failures    worst invoice mismatches
  GET /api/exceptions          exception records
  GET /api/exceptions/summary  exceptions per run and reason
  GET /api/occupancy           daily occupancy and charges`,
		Example: `  skuhub serve
  skuhub serve --addr 127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			apiCfg := cc.Cfg.API
			if addr != "" {
				apiCfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := api.NewServer(api.Config{
				Store:       cc.Store,
				Runs:        cc.Runs,
				API:         apiCfg,
				Environment: cc.Cfg.Environment,
				Logger:      cc.Logger,
			})
			cc.Renderer.Println(cc.Renderer.Muted("serving on " + apiCfg.Addr))
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from api.addr)")
	return cmd
}
