package recon

import (
	"github.com/leapstack-labs/skuhub/pkg/core"
)

func newKPI() *core.KPI {
	return &core.KPI{
		SourceCounts: map[string]int{
			core.SourceInvoice: 0,
			core.SourceFlow:    0,
			core.SourceStock:   0,
		},
		SourceDuplicates: map[string]int{},
		Warnings:         []string{},
	}
}

// summarize fills the KPI fields derived from the run's artifacts.
// Merge counts are filled after persistence.
func summarize(kpi *core.KPI, r *Report) {
	kpi.TotalRecords = len(r.Records)
	unique := make(map[string]bool, len(r.Records))
	for _, rec := range r.Records {
		unique[rec.SKU] = true
		switch {
		case rec.InvoiceMatchStatus == nil:
			kpi.NoStatus++
		case *rec.InvoiceMatchStatus == core.MatchPass:
			kpi.PassCount++
		case *rec.InvoiceMatchStatus == core.MatchFail:
			kpi.FailCount++
		default:
			kpi.NoStatus++
		}
	}
	kpi.UniqueSKUs = len(unique)
	kpi.PassRate = ratio(kpi.PassCount, kpi.PassCount+kpi.FailCount)

	kpi.FlowInvalid = len(r.Flow.Invalid)
	for _, o := range r.Outliers {
		switch o.Metric {
		case "weight":
			kpi.WeightOutliers++
		case "volume":
			kpi.VolumeOutliers++
		}
	}
	kpi.Exceptions = len(r.Exceptions)
	kpi.OccupancyRows = len(r.Occupancy)

	kpi.FlowCoverage = r.Quality.FlowCoverage
	kpi.LocationCoverage = r.Quality.LocationCoverage
	kpi.PackageCompleteness = r.Quality.PackageCompleteness
	kpi.AllFlowCodesPresent = r.Quality.AllFlowCodesPresent
}
