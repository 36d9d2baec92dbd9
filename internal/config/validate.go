package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

// groupKeys are the record fields outliers may be grouped by.
var groupKeys = map[string]bool{
	"vendor":         true,
	"final_location": true,
	"flow_code":      true,
}

// Validate checks the settings and returns every problem found, joined.
// Each problem is a *core.ConfigError.
func (s *Settings) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, core.NewConfigError(field, format, args...))
	}

	if s.Target != nil {
		if err := s.Target.Validate(); err != nil {
			add("target", "%v", err)
		}
	}

	tol := s.Tolerance
	if tol.Default.Weight <= 0 || tol.Default.Volume <= 0 {
		add("tolerance.default", "default tolerance must be positive, got weight=%v volume=%v",
			tol.Default.Weight, tol.Default.Volume)
	}
	for i, p := range tol.Profiles {
		field := fmt.Sprintf("tolerance.profiles[%d]", i)
		if p.Vendor == "" || p.Warehouse == "" {
			add(field, "vendor and warehouse are required (use \"*\" for any)")
		}
		if p.Weight <= 0 || p.Volume <= 0 {
			add(field, "tolerance must be positive, got weight=%v volume=%v", p.Weight, p.Volume)
		}
	}
	for name, code := range tol.VendorAliases {
		if strings.TrimSpace(code) == "" {
			add("tolerance.vendor_aliases", "alias for %q is empty", name)
		}
	}

	if len(s.Flow.Locations) == 0 {
		add("flow.locations", "at least one location is required")
	}
	seen := make(map[string]bool, len(s.Flow.Locations))
	for i, l := range s.Flow.Locations {
		field := fmt.Sprintf("flow.locations[%d]", i)
		if l.Name == "" {
			add(field, "name is required")
		}
		if seen[l.Name] {
			add(field, "duplicate location %q", l.Name)
		}
		seen[l.Name] = true
		if _, ok := core.ParseFlowKind(strings.ToLower(l.Kind)); !ok {
			add(field, "unknown kind %q (want port, warehouse, mosb or site)", l.Kind)
		}
	}
	if len(s.Flow.LegalTransitions) == 0 {
		add("flow.legal_transitions", "at least one transition is required")
	}
	for _, t := range s.Flow.LegalTransitions {
		if !core.ValidFlowCode(t.From) || !core.ValidFlowCode(t.To) {
			add("flow.legal_transitions", "transition %s uses a state outside 0..4", t)
		}
	}

	if s.Outliers.Threshold <= 0 {
		add("outliers.threshold", "must be positive, got %v", s.Outliers.Threshold)
	}
	for _, g := range s.Outliers.GroupBy {
		if !groupKeys[g] {
			add("outliers.group_by", "unknown group key %q", g)
		}
	}

	if s.Recommend.TopN < 1 {
		add("recommend.top_n", "must be at least 1, got %d", s.Recommend.TopN)
	}
	if s.Recommend.PoolCap < 1 {
		add("recommend.pool_cap", "must be at least 1, got %d", s.Recommend.PoolCap)
	}

	if !s.Occupancy.AreaPerPackage.IsPositive() {
		add("occupancy.area_per_package", "must be positive, got %s", s.Occupancy.AreaPerPackage)
	}
	if s.Occupancy.DefaultRate.IsNegative() {
		add("occupancy.default_rate", "must not be negative, got %s", s.Occupancy.DefaultRate)
	}
	for wh, rate := range s.Occupancy.Rates {
		if rate.IsNegative() {
			add("occupancy.rates", "rate for %q must not be negative, got %s", wh, rate)
		}
	}

	return errors.Join(errs...)
}

// Warnings returns non-fatal configuration problems.
// Quality thresholds are ratios and should lie in [0,1].
func (s *Settings) Warnings() []string {
	var warnings []string
	v := reflect.ValueOf(s.Quality)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i).Float()
		if f < 0 || f > 1 {
			warnings = append(warnings, fmt.Sprintf("quality.%s should be between 0 and 1, got %v", t.Field(i).Tag.Get("koanf"), f))
		}
	}
	return warnings
}
