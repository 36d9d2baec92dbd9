// Package tolerance resolves per vendor and warehouse invoice tolerances
// and decides whether an invoice matches the physical measurements.
package tolerance

import (
	"math"
	"strings"

	"github.com/leapstack-labs/skuhub/internal/config"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// Wildcard matches any vendor or warehouse in a profile key.
const Wildcard = "*"

// epsilon absorbs float noise at the exact tolerance boundary.
const epsilon = 1e-9

type key struct {
	vendor    string
	warehouse string
}

// Resolver is an immutable tolerance table.
type Resolver struct {
	def      core.Tolerance
	profiles map[key]core.Tolerance
	aliases  map[string]string
}

// New builds a Resolver. A non-positive default or profile value is a
// configuration error.
func New(cfg config.ToleranceConfig) (*Resolver, error) {
	if cfg.Default.Weight <= 0 || cfg.Default.Volume <= 0 {
		return nil, core.NewConfigError("tolerance.default",
			"default tolerance must be positive, got weight=%v volume=%v", cfg.Default.Weight, cfg.Default.Volume)
	}

	r := &Resolver{
		def:      core.Tolerance{Weight: cfg.Default.Weight, Volume: cfg.Default.Volume},
		profiles: make(map[key]core.Tolerance, len(cfg.Profiles)+1),
		aliases:  make(map[string]string, len(cfg.VendorAliases)),
	}
	for name, code := range cfg.VendorAliases {
		r.aliases[strings.ToUpper(strings.TrimSpace(name))] = strings.ToUpper(strings.TrimSpace(code))
	}
	for _, p := range cfg.Profiles {
		if p.Weight <= 0 || p.Volume <= 0 {
			return nil, core.NewConfigError("tolerance.profiles",
				"tolerance for %s/%s must be positive, got weight=%v volume=%v", p.Vendor, p.Warehouse, p.Weight, p.Volume)
		}
		k := key{vendor: r.canonical(p.Vendor), warehouse: strings.TrimSpace(p.Warehouse)}
		r.profiles[k] = core.Tolerance{Weight: p.Weight, Volume: p.Volume}
	}
	if _, ok := r.profiles[key{Wildcard, Wildcard}]; !ok {
		r.profiles[key{Wildcard, Wildcard}] = r.def
	}
	return r, nil
}

// VendorCode maps a vendor name to its short code. Known names use the
// alias table; anything else becomes its first three uppercased runes.
func (r *Resolver) VendorCode(vendor string) string {
	v := strings.ToUpper(strings.TrimSpace(vendor))
	if v == "" {
		return ""
	}
	if code, ok := r.aliases[v]; ok {
		return code
	}
	runes := []rune(v)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return string(runes)
}

func (r *Resolver) canonical(vendor string) string {
	if strings.TrimSpace(vendor) == Wildcard {
		return Wildcard
	}
	return r.VendorCode(vendor)
}

// Resolve looks up the band for a vendor and warehouse, falling back to
// (vendor, *) and then (*, *). The result is always positive.
func (r *Resolver) Resolve(vendor, warehouse string) core.Tolerance {
	v := r.canonical(vendor)
	w := strings.TrimSpace(warehouse)
	for _, k := range []key{{v, w}, {v, Wildcard}, {Wildcard, Wildcard}} {
		if t, ok := r.profiles[k]; ok {
			return t
		}
	}
	return r.def
}

// Default returns the (*, *) band.
func (r *Resolver) Default() core.Tolerance {
	return r.def
}

// Within reports whether an absolute error is inside a relative tolerance
// of the reference value. Without a reference, tol is taken as an
// absolute bound.
func Within(errValue float64, ref *float64, tol float64) bool {
	bound := tol
	if ref != nil {
		bound = tol * math.Abs(*ref)
	}
	return math.Abs(errValue) <= bound+epsilon
}

// Verdict is the outcome of one invoice match.
type Verdict struct {
	Status    string         `json:"status"`
	Tolerance core.Tolerance `json:"tolerance"`
	// Margins are the unused part of each bound; negative when exceeded.
	WeightMargin float64 `json:"weight_margin"`
	VolumeMargin float64 `json:"volume_margin"`
}

// Passed reports whether both measurements are inside their bands.
func (v Verdict) Passed() bool {
	return v.Status == core.MatchPass
}

// Evaluate decides PASS or FAIL for a record. It returns false when
// either error is unknown, in which case no verdict can be computed.
func (r *Resolver) Evaluate(vendor, warehouse string, weight, volume, weightErr, volumeErr *float64) (Verdict, bool) {
	if weightErr == nil || volumeErr == nil {
		return Verdict{}, false
	}
	tol := r.Resolve(vendor, warehouse)
	verdict := Verdict{
		Status:       core.MatchFail,
		Tolerance:    tol,
		WeightMargin: bound(weight, tol.Weight) - math.Abs(*weightErr),
		VolumeMargin: bound(volume, tol.Volume) - math.Abs(*volumeErr),
	}
	if Within(*weightErr, weight, tol.Weight) && Within(*volumeErr, volume, tol.Volume) {
		verdict.Status = core.MatchPass
	}
	return verdict, true
}

func bound(ref *float64, tol float64) float64 {
	if ref == nil {
		return tol
	}
	return tol * math.Abs(*ref)
}
