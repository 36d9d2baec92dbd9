package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source names identify the three reconciled datasets.
const (
	SourceInvoice = "invoice"
	SourceFlow    = "flow"
	SourceStock   = "stock"
)

// Match statuses written to invoice_match_status.
const (
	MatchPass = "PASS"
	MatchFail = "FAIL"
)

// SKURecord is one reconciled row of the SKU master.
// Nil pointers are explicit nulls; numeric fields are never coerced to zero.
type SKURecord struct {
	SKU             string     `json:"sku"`
	Weight          *float64   `json:"weight"`
	Volume          *float64   `json:"volume"`
	PackageCount    *int       `json:"package_count"`
	Vendor          string     `json:"vendor,omitempty"`
	FinalLocation   string     `json:"final_location,omitempty"`
	FlowCode        *int       `json:"flow_code"`
	FlowDesc        string     `json:"flow_desc,omitempty"`
	FirstSeen       *time.Time `json:"first_seen"`
	LastSeen        *time.Time `json:"last_seen"`
	StockQty        *float64   `json:"stock_qty"`
	SQM             *float64   `json:"sqm"`
	CurrentLocation string     `json:"current_location,omitempty"`
	CurrentStatus   string     `json:"current_status,omitempty"`

	InvoiceMatchStatus *string  `json:"invoice_match_status"`
	WeightError        *float64 `json:"weight_error"`
	VolumeError        *float64 `json:"volume_error"`

	// Provenance
	SourceFile string   `json:"source_file,omitempty"`
	Sheet      string   `json:"sheet,omitempty"`
	RowID      int      `json:"row_id"`
	Sources    []string `json:"sources"`

	// Visits is the parsed location history. It is stored apart from the
	// master row and does not feed the row hash.
	Visits []Visit `json:"-"`
}

// HasSource reports whether src contributed to the record.
func (r *SKURecord) HasSource(src string) bool {
	for _, s := range r.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// Visit is a single arrival of a SKU at a location.
type Visit struct {
	Warehouse string
	At        time.Time
}

// Tolerance holds relative tolerance bands for weight and volume.
type Tolerance struct {
	Weight float64 `json:"weight"`
	Volume float64 `json:"volume"`
}

// Combination is a candidate set of units proposed for a failed match.
type Combination struct {
	Error   float64 `json:"error"`
	Members []int   `json:"members"`
	Weight  float64 `json:"weight"`
	Volume  float64 `json:"volume"`
	// SKUs names the members when the pool was built from known records.
	SKUs []string `json:"skus,omitempty"`
}

// Exception is an audit record for a SKU that failed tolerance or flow validation.
// Exceptions are never merged back into the master table.
type Exception struct {
	RunID        string        `json:"run_id"`
	SKU          string        `json:"sku"`
	Reason       string        `json:"reason"`
	WeightError  *float64      `json:"weight_error"`
	VolumeError  *float64      `json:"volume_error"`
	Alternatives []Combination `json:"alternatives"`
	Details      string        `json:"details,omitempty"`
}

// Exception reasons.
const (
	ReasonToleranceFail = "tolerance_fail"
	ReasonFlowInvalid   = "flow_invalid"
)

// OccupancyRecord is one day of occupied area and charges for a warehouse.
type OccupancyRecord struct {
	Date             time.Time       `json:"date"`
	Warehouse        string          `json:"warehouse"`
	Packages         int             `json:"packages"`
	Area             decimal.Decimal `json:"area"`
	DailyCharge      decimal.Decimal `json:"daily_charge"`
	CumulativeCharge decimal.Decimal `json:"cumulative_charge"`
}

// OutlierRecord is a flagged weight or volume value.
type OutlierRecord struct {
	RunID    string  `json:"run_id"`
	SKU      string  `json:"sku"`
	Metric   string  `json:"metric"`
	Value    float64 `json:"value"`
	Score    float64 `json:"score"`
	Vendor   string  `json:"vendor,omitempty"`
	Location string  `json:"location,omitempty"`
}
