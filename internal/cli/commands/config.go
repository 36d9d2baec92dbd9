package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/skuhub/internal/cli/config"
)

const maskedSecret = "********"

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newConfigShowCommand(), newConfigPathCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as YAML",
		Long: `Print the configuration after defaults, skuhub.yaml, .env, SKUHUB_*
variables and flags were merged. Passwords are masked.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContextWithoutStore(cmd)
			if err != nil {
				return err
			}
			out, err := effectiveConfigYAML(cc.Cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := getConfig(); err != nil {
				return err
			}
			used := config.GetConfigFileUsed()
			if used == "" {
				used = "(none, using defaults)"
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), used)
			return err
		},
	}
}

// effectiveConfigYAML renders the layered koanf values with the resolved
// target, state path and sources of the selected environment on top.
func effectiveConfigYAML(cfg *config.Config) ([]byte, error) {
	raw := config.Koanf().Raw()
	delete(raw, "environments")

	target := map[string]any{
		"type":     cfg.Target.Type,
		"database": cfg.Target.Database,
		"schema":   cfg.Target.Schema,
	}
	if cfg.Target.Host != "" {
		target["host"] = cfg.Target.Host
		target["port"] = cfg.Target.Port
		target["user"] = cfg.Target.User
	}
	if cfg.Target.Password != "" {
		target["password"] = maskedSecret
	}
	if len(cfg.Target.Options) > 0 {
		target["options"] = cfg.Target.Options
	}
	if len(cfg.Target.Params) > 0 {
		target["params"] = cfg.Target.Params
	}
	raw["target"] = target
	raw["environment"] = cfg.Environment
	raw["state_path"] = cfg.StatePath
	raw["sources"] = map[string]any{
		"invoice": map[string]any{"path": cfg.Sources.Invoice.Path, "sheet": cfg.Sources.Invoice.Sheet},
		"flow":    map[string]any{"path": cfg.Sources.Flow.Path, "sheet": cfg.Sources.Flow.Sheet},
		"stock":   map[string]any{"path": cfg.Sources.Stock.Path, "sheet": cfg.Sources.Stock.Sheet},
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}
