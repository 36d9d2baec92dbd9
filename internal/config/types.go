// Package config provides shared configuration types for skuhub.
// This package is decoupled from CLI concerns and is consumed by the
// reconciliation engine, the API server, and tests.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/skuhub/pkg/adapter"
	"github.com/shopspring/decimal"
)

// TargetConfig holds master store target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres

	// File-based databases (DuckDB)
	Database string `koanf:"database"` // file path or database name

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Common
	Schema string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (e.g., DuckDB session settings)
	Params map[string]any `koanf:"params"`
}

// Validate checks if the target configuration is valid.
// It uses the adapter registry to determine which adapter types are available.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}

	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}

	return nil
}

// AdapterConfig converts the target to an adapter configuration.
func (t *TargetConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     strings.ToLower(t.Type),
		Path:     t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
}

// SourceConfig locates one input dataset.
type SourceConfig struct {
	Path  string `koanf:"path"`
	Sheet string `koanf:"sheet"`
}

// SourcesConfig locates the three reconciled datasets.
type SourcesConfig struct {
	Invoice SourceConfig `koanf:"invoice"`
	Flow    SourceConfig `koanf:"flow"`
	Stock   SourceConfig `koanf:"stock"`
}

// Band is a pair of relative tolerances.
type Band struct {
	Weight float64 `koanf:"weight"`
	Volume float64 `koanf:"volume"`
}

// ToleranceProfile overrides the default band for a vendor and warehouse.
// Either key may be the wildcard "*".
type ToleranceProfile struct {
	Vendor    string  `koanf:"vendor"`
	Warehouse string  `koanf:"warehouse"`
	Weight    float64 `koanf:"weight"`
	Volume    float64 `koanf:"volume"`
}

// ToleranceConfig configures invoice matching.
type ToleranceConfig struct {
	Default       Band               `koanf:"default"`
	VendorAliases map[string]string  `koanf:"vendor_aliases"`
	Profiles      []ToleranceProfile `koanf:"profiles"`
}

// Transition is a legal move between two flow codes.
type Transition struct {
	From int
	To   int
}

func (t Transition) String() string {
	return fmt.Sprintf("%d->%d", t.From, t.To)
}

// LocationConfig names a visit-date column and the flow state it represents.
type LocationConfig struct {
	Name string `koanf:"name"`
	Kind string `koanf:"kind"` // port, warehouse, mosb, site
}

// FlowConfig configures flow transition validation.
type FlowConfig struct {
	StrictSequence   bool             `koanf:"strict_sequence"`
	LegalTransitions []Transition     `koanf:"legal_transitions"`
	Locations        []LocationConfig `koanf:"locations"`
}

// LocationNames returns the configured locations in column order.
func (f FlowConfig) LocationNames() []string {
	names := make([]string, len(f.Locations))
	for i, l := range f.Locations {
		names[i] = l.Name
	}
	return names
}

// OutlierConfig configures robust outlier detection.
type OutlierConfig struct {
	Threshold float64  `koanf:"threshold"`
	GroupBy   []string `koanf:"group_by"`
}

// RecommendConfig configures the alternative-combination search.
type RecommendConfig struct {
	TopN    int `koanf:"top_n"`
	PoolCap int `koanf:"pool_cap"`
}

// OccupancyConfig configures daily occupancy and billing.
type OccupancyConfig struct {
	Warehouses     []string                   `koanf:"warehouses"`
	AreaPerPackage decimal.Decimal            `koanf:"area_per_package"`
	DefaultRate    decimal.Decimal            `koanf:"default_rate"`
	Rates          map[string]decimal.Decimal `koanf:"rates"`
}

// QualityConfig holds data quality thresholds. Ratios are in [0,1].
type QualityConfig struct {
	MinSKUCoverage      float64 `koanf:"min_sku_coverage"`
	MinFlowCoverage     float64 `koanf:"min_flow_coverage"`
	MinLocationCoverage float64 `koanf:"min_location_coverage"`
	MaxDuplicateRatio   float64 `koanf:"max_duplicate_ratio"`
	MaxNullWeightRatio  float64 `koanf:"max_null_weight_ratio"`
	MaxNullVolumeRatio  float64 `koanf:"max_null_volume_ratio"`
	MaxInvoiceFailRatio float64 `koanf:"max_invoice_fail_ratio"`
	MaxFlowErrorRatio   float64 `koanf:"max_flow_error_ratio"`
}

// APIConfig configures the read-only reporting server.
type APIConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	DefaultLimit    int           `koanf:"default_limit"`
}

// WatchConfig configures re-runs on source changes.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// Settings holds the full project configuration shared by all entry points.
type Settings struct {
	Target    *TargetConfig   `koanf:"target"`
	Sources   SourcesConfig   `koanf:"sources"`
	Tolerance ToleranceConfig `koanf:"tolerance"`
	Flow      FlowConfig      `koanf:"flow"`
	Outliers  OutlierConfig   `koanf:"outliers"`
	Recommend RecommendConfig `koanf:"recommend"`
	Occupancy OccupancyConfig `koanf:"occupancy"`
	Quality   QualityConfig   `koanf:"quality"`
	API       APIConfig       `koanf:"api"`
	Watch     WatchConfig     `koanf:"watch"`
}
