package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	sharedcfg "github.com/leapstack-labs/skuhub/internal/config"
)

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// flagKeys maps CLI flag names onto config keys where they differ.
var flagKeys = map[string]string{
	"state":    "state_path",
	"env":      "environment",
	"database": "target.database",
	"invoice":  "sources.invoice.path",
	"flow":     "sources.flow.path",
	"stock":    "sources.stock.path",
}

// flags that select how config is loaded rather than what it contains.
var skipFlags = map[string]bool{
	"config": true,
	"target": true,
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// defaults returns the shared defaults plus the CLI-only keys.
func defaults() map[string]any {
	m := sharedcfg.Defaults()
	m["target.database"] = DefaultDatabase
	m["state_path"] = DefaultStateFile
	m["environment"] = DefaultEnv
	m["verbose"] = false
	m["output"] = DefaultOutput
	return m
}

// projectRoot picks the directory that anchors relative paths.
func projectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
		return filepath.Dir(cfgFile)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if root := sharedcfg.FindProjectRoot(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from defaults, file, .env, environment and flags.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	return LoadConfigWithTarget(cfgFile, "", flags)
}

// LoadConfigWithTarget loads configuration and applies the overrides of the
// named environment. An empty targetOverride uses the configured environment.
// Precedence (highest to lowest): flags > env vars > .env > config file > defaults
func LoadConfigWithTarget(cfgFile, targetOverride string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	root := projectRoot(cfgFile)
	if cfgFile == "" {
		cfgFile = sharedcfg.FindConfigFile(root)
	}
	configFileUsed = cfgFile

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. .env next to the config; variables already set win
	if err := godotenv.Load(filepath.Join(root, DotEnvFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	// 4. Environment: SKUHUB_API__ADDR -> api.addr
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Explicitly set flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || skipFlags[f.Name] {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, sharedcfg.UnmarshalConf(&cfg)); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = root

	envName := cfg.Environment
	if targetOverride != "" {
		envName = targetOverride
		cfg.Environment = targetOverride
	}
	if envCfg, ok := cfg.Environments[envName]; ok {
		applyEnvironment(&cfg, envCfg)
	}

	if cfg.Target == nil {
		cfg.Target = &TargetConfig{}
	}
	sharedcfg.ApplyTargetDefaults(cfg.Target)
	expandTargetEnvVars(cfg.Target)

	cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, root)
	if strings.EqualFold(cfg.Target.Type, "duckdb") {
		cfg.Target.Database = resolvePathRelativeTo(cfg.Target.Database, root)
	}
	cfg.Sources.Invoice.Path = resolvePathRelativeTo(cfg.Sources.Invoice.Path, root)
	cfg.Sources.Flow.Path = resolvePathRelativeTo(cfg.Sources.Flow.Path, root)
	cfg.Sources.Stock.Path = resolvePathRelativeTo(cfg.Sources.Stock.Path, root)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func applyEnvironment(cfg *Config, e EnvConfig) {
	if e.StatePath != "" {
		cfg.StatePath = e.StatePath
	}
	if e.Target != nil {
		cfg.Target = MergeTargetConfig(cfg.Target, e.Target)
	}
	if e.Sources != nil {
		if e.Sources.Invoice.Path != "" {
			cfg.Sources.Invoice = e.Sources.Invoice
		}
		if e.Sources.Flow.Path != "" {
			cfg.Sources.Flow = e.Sources.Flow
		}
		if e.Sources.Stock.Path != "" {
			cfg.Sources.Stock = e.Sources.Stock
		}
	}
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration from the last successful load.
func GetCurrentConfig() *Config {
	return currentConfig
}

// Koanf returns the koanf instance of the last load.
func Koanf() *koanf.Koanf {
	return k
}

// LoggerKey returns the context key used for storing the logger.
// The commands package reads the logger with it without importing cli.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns, leaving unknown variables as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Password = expandEnvVars(t.Password)
	t.User = expandEnvVars(t.User)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = maps.Clone(base.Options)
	merged.Params = maps.Clone(base.Params)
	if merged.Options == nil {
		merged.Options = make(map[string]string)
	}
	if merged.Params == nil {
		merged.Params = make(map[string]any)
	}

	if override.Type != "" {
		merged.Type = override.Type
		// A new engine does not inherit the old engine's schema.
		merged.Schema = override.Schema
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	maps.Copy(merged.Options, override.Options)
	maps.Copy(merged.Params, override.Params)

	return &merged
}
