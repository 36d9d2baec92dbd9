package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/skuhub/internal/cli/config"
	"github.com/leapstack-labs/skuhub/internal/cli/output"
	"github.com/leapstack-labs/skuhub/internal/state"
	"github.com/leapstack-labs/skuhub/internal/store"
	"github.com/leapstack-labs/skuhub/pkg/adapter"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	DB       adapter.Adapter
	Store    *store.Store
	Runs     *state.SQLiteStore
	Renderer *output.Renderer
}

// NewCommandContext opens the master store and the run log.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc, err := NewCommandContextWithoutStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := openTarget(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(db, cc.Logger)
	if err := st.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	runs, err := openRuns(cc.Cfg.StatePath, cc.Logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	cc.DB = db
	cc.Store = st
	cc.Runs = runs
	cleanup := func() {
		_ = runs.Close()
		_ = db.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without database access.
func NewCommandContextWithoutStore(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	mode, _ := output.ParseMode(cfg.OutputFormat)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(ctx),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

// getConfig returns the loaded configuration, loading defaults and the
// project file when the root command did not run.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func openTarget(ctx context.Context, cfg *config.Config, logger *slog.Logger) (adapter.Adapter, error) {
	acfg := cfg.Target.AdapterConfig()
	if acfg.Type == "duckdb" && acfg.Path != "" && acfg.Path != ":memory:" {
		if err := ensureDir(acfg.Path); err != nil {
			return nil, err
		}
	}
	db, err := adapter.NewAdapter(acfg, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx, acfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s target: %w", acfg.Type, err)
	}
	logger.Debug("connected master store", slog.Any("target", acfg))
	return db, nil
}

func openRuns(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	if path != ":memory:" {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}
	runs := state.NewSQLiteStore(logger)
	if err := runs.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return runs, nil
}
