// Package config provides configuration management for the skuhub CLI.
//
// The reconciliation settings live in internal/config and are shared with
// the engine and the API server. This package adds CLI-only fields (state
// path, environment, output mode) and the layered loader.
package config

import (
	sharedcfg "github.com/leapstack-labs/skuhub/internal/config"
)

// TargetConfig is an alias for the shared master store target.
type TargetConfig = sharedcfg.TargetConfig

// SourcesConfig is an alias for the shared source locations.
type SourcesConfig = sharedcfg.SourcesConfig

// Config holds all CLI configuration options.
type Config struct {
	sharedcfg.Settings `koanf:",squash"`

	StatePath    string               `koanf:"state_path"`
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot anchors relative paths. It is the directory holding the
	// config file, or the working directory when there is none.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	StatePath string         `koanf:"state_path"`
	Target    *TargetConfig  `koanf:"target"`
	Sources   *SourcesConfig `koanf:"sources"`
}

// Default configuration values.
const (
	DefaultDatabase  = ".skuhub/sku_master.duckdb"
	DefaultStateFile = ".skuhub/state.db"
	DefaultEnv       = "dev"
	DefaultOutput    = "auto" // TTY=text, non-TTY=markdown
	EnvPrefix        = "SKUHUB_"
	DotEnvFile       = ".env"
)
