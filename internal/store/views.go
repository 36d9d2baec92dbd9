package store

import (
	"strings"

	"github.com/leapstack-labs/skuhub/internal/merge"
)

// View names.
const (
	ViewLive              = "v_sku_master_live"
	ViewFlowMix           = "v_flow_mix"
	ViewLocationDaily     = "v_location_daily"
	ViewInvoiceFailures   = "v_invoice_failures"
	ViewFlowLocation      = "v_flow_location"
	ViewExceptionsSummary = "v_exceptions_summary"
	ViewLocationMonthly   = "v_location_monthly"
)

// Views lists the reporting views in creation order.
var Views = []string{
	ViewLive,
	ViewFlowMix,
	ViewLocationDaily,
	ViewInvoiceFailures,
	ViewFlowLocation,
	ViewExceptionsSummary,
	ViewLocationMonthly,
}

// IsView reports whether name is a known reporting view.
func IsView(name string) bool {
	for _, v := range Views {
		if v == name {
			return true
		}
	}
	return false
}

func liveColumns() string {
	cols := append([]string{merge.ColHash, merge.ColRunID, merge.ColMergedAt}, merge.Columns...)
	return strings.Join(cols, ", ")
}

func viewStatements() []string {
	cols := liveColumns()
	return []string{
		`CREATE OR REPLACE VIEW ` + ViewLive + ` AS
SELECT ` + cols + ` FROM (
    SELECT ` + cols + `,
           ROW_NUMBER() OVER (PARTITION BY sku ORDER BY merged_at DESC, row_hash) AS rn
    FROM ` + TableMaster + `
) ranked
WHERE rn = 1`,

		`CREATE OR REPLACE VIEW ` + ViewFlowMix + ` AS
SELECT flow_code, flow_desc, COUNT(*) AS n
FROM ` + ViewLive + `
GROUP BY flow_code, flow_desc`,

		`CREATE OR REPLACE VIEW ` + ViewLocationDaily + ` AS
SELECT location, day, SUM(is_first) AS first_seen_count, SUM(is_last) AS last_seen_count
FROM (
    SELECT COALESCE(current_location, final_location) AS location, CAST(first_seen AS DATE) AS day, 1 AS is_first, 0 AS is_last
    FROM ` + ViewLive + ` WHERE first_seen IS NOT NULL
    UNION ALL
    SELECT COALESCE(current_location, final_location) AS location, CAST(last_seen AS DATE) AS day, 0 AS is_first, 1 AS is_last
    FROM ` + ViewLive + ` WHERE last_seen IS NOT NULL
) seen
GROUP BY location, day`,

		`CREATE OR REPLACE VIEW ` + ViewInvoiceFailures + ` AS
SELECT sku, vendor, final_location, weight, volume, weight_error, volume_error,
       ABS(COALESCE(weight_error, 0)) + ABS(COALESCE(volume_error, 0)) AS total_error
FROM ` + ViewLive + `
WHERE invoice_match_status = 'FAIL'`,

		`CREATE OR REPLACE VIEW ` + ViewFlowLocation + ` AS
SELECT flow_code, final_location, COUNT(*) AS n
FROM ` + ViewLive + `
GROUP BY flow_code, final_location`,

		`CREATE OR REPLACE VIEW ` + ViewExceptionsSummary + ` AS
SELECT run_id, reason, COUNT(*) AS n, MIN(created_at) AS created_at
FROM ` + TableExceptions + `
GROUP BY run_id, reason`,

		// records without any seen date land in a NULL month
		`CREATE OR REPLACE VIEW ` + ViewLocationMonthly + ` AS
SELECT COALESCE(final_location, current_location, 'Unknown') AS location,
       CAST(date_trunc('month', COALESCE(first_seen, last_seen)) AS DATE) AS month,
       SUM(COALESCE(stock_qty, 0)) AS stock_qty,
       SUM(COALESCE(sqm, 0)) AS sqm,
       COUNT(*) AS sku_count
FROM ` + ViewLive + `
GROUP BY 1, 2`,
	}
}

// viewOrder gives each view a stable presentation order.
var viewOrder = map[string]string{
	ViewLive:              "sku",
	ViewFlowMix:           "flow_code",
	ViewLocationDaily:     "day, location",
	ViewInvoiceFailures:   "total_error DESC, sku",
	ViewFlowLocation:      "flow_code, final_location",
	ViewExceptionsSummary: "created_at DESC, reason",
	ViewLocationMonthly:   "location, month",
}
