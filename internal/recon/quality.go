package recon

import (
	"fmt"

	"github.com/leapstack-labs/skuhub/internal/config"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// Quality measures the reconciled master against the configured
// thresholds. Ratios are in [0,1].
type Quality struct {
	Records int `json:"records"`

	SKUCoverage         float64 `json:"sku_coverage"`
	FlowCoverage        float64 `json:"flow_coverage"`
	LocationCoverage    float64 `json:"location_coverage"`
	PackageCompleteness float64 `json:"package_completeness"`
	DuplicateRatio      float64 `json:"duplicate_ratio"`
	NullWeightRatio     float64 `json:"null_weight_ratio"`
	NullVolumeRatio     float64 `json:"null_volume_ratio"`
	InvoiceFailRatio    float64 `json:"invoice_fail_ratio"`
	FlowErrorRatio      float64 `json:"flow_error_ratio"`

	AllFlowCodesPresent bool `json:"all_flow_codes_present"`
	SKUIntegrity        bool `json:"sku_integrity"`
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// measure computes quality metrics. sourceRows and duplicates are summed
// over all sources; flowItems is the number of validated flow rows.
func measure(records []core.SKURecord, sourceRows, duplicates, flowItems, flowInvalid int) Quality {
	var inFlow, withCode, withLoc, withPkgs, nullW, nullV, pass, fail int
	codes := make(map[int]bool, core.FlowSite+1)
	skus := make(map[string]bool, len(records))

	for i := range records {
		r := &records[i]
		skus[r.SKU] = true
		if r.HasSource(core.SourceFlow) {
			inFlow++
		}
		if r.FlowCode != nil {
			withCode++
			codes[*r.FlowCode] = true
		}
		if r.FinalLocation != "" || r.CurrentLocation != "" {
			withLoc++
		}
		if r.PackageCount != nil {
			withPkgs++
		}
		if r.Weight == nil {
			nullW++
		}
		if r.Volume == nil {
			nullV++
		}
		if r.InvoiceMatchStatus != nil {
			switch *r.InvoiceMatchStatus {
			case core.MatchPass:
				pass++
			case core.MatchFail:
				fail++
			}
		}
	}

	all := true
	for c := core.FlowPreArrival; c <= core.FlowSite; c++ {
		if !codes[c] {
			all = false
			break
		}
	}

	n := len(records)
	return Quality{
		Records:             n,
		SKUCoverage:         ratio(inFlow, n),
		FlowCoverage:        ratio(withCode, n),
		LocationCoverage:    ratio(withLoc, n),
		PackageCompleteness: ratio(withPkgs, n),
		DuplicateRatio:      ratio(duplicates, sourceRows),
		NullWeightRatio:     ratio(nullW, n),
		NullVolumeRatio:     ratio(nullV, n),
		InvoiceFailRatio:    ratio(fail, pass+fail),
		FlowErrorRatio:      ratio(flowInvalid, flowItems),
		AllFlowCodesPresent: all && n > 0,
		SKUIntegrity:        len(skus) == n,
	}
}

// Check compares the metrics against thresholds and returns one warning
// per breach. An empty master breaches nothing.
func (q Quality) Check(th config.QualityConfig) []string {
	if q.Records == 0 {
		return nil
	}
	var warnings []string
	below := func(name string, got, limit float64) {
		if got < limit {
			warnings = append(warnings, fmt.Sprintf("%s %.3f is below %.3f", name, got, limit))
		}
	}
	above := func(name string, got, limit float64) {
		if got > limit {
			warnings = append(warnings, fmt.Sprintf("%s %.3f exceeds %.3f", name, got, limit))
		}
	}

	below("sku coverage", q.SKUCoverage, th.MinSKUCoverage)
	below("flow coverage", q.FlowCoverage, th.MinFlowCoverage)
	below("location coverage", q.LocationCoverage, th.MinLocationCoverage)
	above("duplicate ratio", q.DuplicateRatio, th.MaxDuplicateRatio)
	above("null weight ratio", q.NullWeightRatio, th.MaxNullWeightRatio)
	above("null volume ratio", q.NullVolumeRatio, th.MaxNullVolumeRatio)
	above("invoice fail ratio", q.InvoiceFailRatio, th.MaxInvoiceFailRatio)
	above("flow error ratio", q.FlowErrorRatio, th.MaxFlowErrorRatio)
	if !q.SKUIntegrity {
		warnings = append(warnings, "sku integrity: duplicate SKUs in master")
	}
	return warnings
}
