package tolerance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/skuhub/internal/config"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

func defaultConfig() config.ToleranceConfig {
	return config.ToleranceConfig{
		Default:       config.Band{Weight: 0.10, Volume: 0.10},
		VendorAliases: map[string]string{"hitachi": "HE", "SIEMENS": "SIM"},
		Profiles: []config.ToleranceProfile{
			{Vendor: "HE", Warehouse: "DSV Indoor", Weight: 0.15, Volume: 0.12},
			{Vendor: "HE", Warehouse: "MOSB", Weight: 0.20, Volume: 0.15},
			{Vendor: "SIM", Warehouse: "DSV Indoor", Weight: 0.10, Volume: 0.10},
		},
	}
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := New(defaultConfig())
	require.NoError(t, err)
	return r
}

func TestResolve(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		name      string
		vendor    string
		warehouse string
		want      core.Tolerance
	}{
		{"exact profile", "HE", "DSV Indoor", core.Tolerance{Weight: 0.15, Volume: 0.12}},
		{"exact via alias", "Hitachi", "MOSB", core.Tolerance{Weight: 0.20, Volume: 0.15}},
		{"siemens alias", "SIEMENS", "DSV Indoor", core.Tolerance{Weight: 0.10, Volume: 0.10}},
		{"known vendor unknown warehouse", "HE", "UNKNOWN", core.Tolerance{Weight: 0.10, Volume: 0.10}},
		{"unknown vendor known warehouse", "UNKNOWN", "DSV Indoor", core.Tolerance{Weight: 0.10, Volume: 0.10}},
		{"both unknown", "ACME", "Nowhere", core.Tolerance{Weight: 0.10, Volume: 0.10}},
		{"empty inputs", "", "", core.Tolerance{Weight: 0.10, Volume: 0.10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.vendor, tt.warehouse)
			assert.Equal(t, tt.want, got)
			assert.Greater(t, got.Weight, 0.0)
			assert.Greater(t, got.Volume, 0.0)
		})
	}
}

func TestResolve_VendorWildcardProfile(t *testing.T) {
	cfg := defaultConfig()
	cfg.Profiles = append(cfg.Profiles, config.ToleranceProfile{Vendor: "HE", Warehouse: "*", Weight: 0.3, Volume: 0.3})
	r, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, core.Tolerance{Weight: 0.3, Volume: 0.3}, r.Resolve("HITACHI", "DSV Outdoor"))
	assert.Equal(t, core.Tolerance{Weight: 0.15, Volume: 0.12}, r.Resolve("HITACHI", "DSV Indoor"))
}

func TestVendorCode(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		in   string
		want string
	}{
		{"HITACHI", "HE"},
		{" hitachi ", "HE"},
		{"Siemens", "SIM"},
		{"samsung", "SAM"},
		{"LG", "LG"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, r.VendorCode(tt.in))
		})
	}
}

func TestNew_RejectsNonPositive(t *testing.T) {
	cfg := defaultConfig()
	cfg.Default.Weight = 0
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, core.IsConfigError(err))

	cfg = defaultConfig()
	cfg.Profiles[1].Volume = -0.1
	_, err = New(cfg)
	require.Error(t, err)
	assert.True(t, core.IsConfigError(err))
}

func TestWithin(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	assert.True(t, Within(5, f(100), 0.10))
	assert.True(t, Within(-10, f(100), 0.10))
	assert.False(t, Within(10.5, f(100), 0.10))
	assert.True(t, Within(0.2, f(2.0), 0.10), "boundary is inclusive")
	assert.True(t, Within(0.05, nil, 0.10), "absolute bound without reference")
	assert.False(t, Within(0.5, nil, 0.10))
}

func TestEvaluate(t *testing.T) {
	r := newResolver(t)
	f := func(v float64) *float64 { return &v }

	v, ok := r.Evaluate("HITACHI", "SHU", f(100), f(2.0), f(5), f(0.2))
	require.True(t, ok)
	assert.Equal(t, core.MatchPass, v.Status)
	assert.True(t, v.Passed())
	assert.InDelta(t, 5.0, v.WeightMargin, 1e-9)

	v, ok = r.Evaluate("HITACHI", "SHU", f(100), f(2.0), f(20), f(0.1))
	require.True(t, ok)
	assert.Equal(t, core.MatchFail, v.Status)
	assert.Less(t, v.WeightMargin, 0.0)

	_, ok = r.Evaluate("HITACHI", "SHU", f(100), f(2.0), nil, f(0.1))
	assert.False(t, ok)
}
