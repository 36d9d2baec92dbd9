package config

import (
	"time"
)

// Default configuration values.
const (
	DefaultTargetType      = "duckdb"
	DefaultOutlierZ        = 3.5
	DefaultTopN            = 3
	DefaultPoolCap         = 22
	DefaultAPIAddr         = ":8765"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultDebounce        = 500 * time.Millisecond
	DefaultAPILimit        = 20
)

// DefaultLocations is the visit-date column order of the flow report.
var DefaultLocations = []LocationConfig{
	{Name: "Port", Kind: "port"},
	{Name: "AAA Storage", Kind: "warehouse"},
	{Name: "DSV Al Markaz", Kind: "warehouse"},
	{Name: "DSV Indoor", Kind: "warehouse"},
	{Name: "DSV MZP", Kind: "warehouse"},
	{Name: "DSV Outdoor", Kind: "warehouse"},
	{Name: "Hauler Indoor", Kind: "warehouse"},
	{Name: "MOSB", Kind: "mosb"},
	{Name: "AGI", Kind: "site"},
	{Name: "DAS", Kind: "site"},
	{Name: "MIR", Kind: "site"},
	{Name: "SHU", Kind: "site"},
}

// Defaults returns the default configuration as a flat koanf map.
func Defaults() map[string]any {
	locations := make([]any, len(DefaultLocations))
	for i, l := range DefaultLocations {
		locations[i] = map[string]any{"name": l.Name, "kind": l.Kind}
	}

	return map[string]any{
		"target.type": DefaultTargetType,

		"tolerance.default.weight": 0.10,
		"tolerance.default.volume": 0.10,
		"tolerance.vendor_aliases": map[string]any{
			"HITACHI": "HE",
			"SIEMENS": "SIM",
		},
		"tolerance.profiles": []any{
			map[string]any{"vendor": "HE", "warehouse": "DSV Indoor", "weight": 0.15, "volume": 0.12},
			map[string]any{"vendor": "HE", "warehouse": "MOSB", "weight": 0.20, "volume": 0.15},
			map[string]any{"vendor": "SIM", "warehouse": "DSV Indoor", "weight": 0.10, "volume": 0.10},
		},

		"flow.strict_sequence":   false,
		"flow.legal_transitions": []any{"0->1", "1->2", "2->3", "3->4", "1->4"},
		"flow.locations":         locations,

		"outliers.threshold": DefaultOutlierZ,
		"outliers.group_by":  []any{"vendor", "final_location"},

		"recommend.top_n":    DefaultTopN,
		"recommend.pool_cap": DefaultPoolCap,

		"occupancy.warehouses": []any{
			"AAA Storage", "DSV Al Markaz", "DSV Indoor", "DSV MZP",
			"DSV Outdoor", "Hauler Indoor", "MOSB",
		},
		"occupancy.area_per_package": "1.0",
		"occupancy.default_rate":     "0",

		"quality.min_sku_coverage":       0.95,
		"quality.min_flow_coverage":      0.90,
		"quality.min_location_coverage":  0.95,
		"quality.max_duplicate_ratio":    0.01,
		"quality.max_null_weight_ratio":  0.05,
		"quality.max_null_volume_ratio":  0.05,
		"quality.max_invoice_fail_ratio": 0.20,
		"quality.max_flow_error_ratio":   0.02,

		"api.addr":             DefaultAPIAddr,
		"api.shutdown_timeout": DefaultShutdownTimeout.String(),
		"api.default_limit":    DefaultAPILimit,

		"watch.debounce": DefaultDebounce.String(),
	}
}

// DefaultSchemaForType returns the default schema for a database type.
func DefaultSchemaForType(dbType string) string {
	if dbType == "postgres" {
		return "public"
	}
	return "main"
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}

	if t.Type == "" {
		t.Type = DefaultTargetType
	}
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Type == "postgres" && t.Port == 0 {
		t.Port = 5432
	}
}
