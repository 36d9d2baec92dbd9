package source

import (
	"strings"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

// Canonical column names.
const (
	ColSKU             = "sku"
	ColMatchStatus     = "match_status"
	ColWeightError     = "weight_error"
	ColVolumeError     = "volume_error"
	ColInvoiceWeight   = "invoice_weight"
	ColInvoiceVolume   = "invoice_volume"
	ColPackageCount    = "package_count"
	ColWeight          = "weight"
	ColVolume          = "volume"
	ColVendor          = "vendor"
	ColFlowCode        = "flow_code"
	ColFlowDesc        = "flow_desc"
	ColFinalLocation   = "final_location"
	ColFlowHistory     = "flow_history"
	ColSQM             = "sqm"
	ColFirstSeen       = "first_seen"
	ColLastSeen        = "last_seen"
	ColCurrentLocation = "current_location"
	ColCurrentStatus   = "current_status"
	ColStockQty        = "stock_qty"
)

var sharedAliases = map[string]string{
	"sku":      ColSKU,
	"case no.": ColSKU,
	"case no":  ColSKU,
	"case_no":  ColSKU,
	"caseno":   ColSKU,
	"item":     ColSKU,
}

// Header aliases per source. Keys are lowercased, trimmed headers.
var aliases = map[string]map[string]string{
	core.SourceInvoice: {
		"match_status":   ColMatchStatus,
		"status":         ColMatchStatus,
		"weight_error":   ColWeightError,
		"gw_error":       ColWeightError,
		"volume_error":   ColVolumeError,
		"cbm_error":      ColVolumeError,
		"invoice_weight": ColInvoiceWeight,
		"invoice_gw":     ColInvoiceWeight,
		"invoice_volume": ColInvoiceVolume,
		"invoice_cbm":    ColInvoiceVolume,
		"vendor":         ColVendor,
	},
	core.SourceFlow: {
		"pkg":              ColPackageCount,
		"pkgs":             ColPackageCount,
		"package":          ColPackageCount,
		"packages":         ColPackageCount,
		"package_count":    ColPackageCount,
		"g.w(kgs)":         ColWeight,
		"g.w":              ColWeight,
		"gw":               ColWeight,
		"gross weight":     ColWeight,
		"weight":           ColWeight,
		"cbm":              ColVolume,
		"volume":           ColVolume,
		"vendor":           ColVendor,
		"supplier":         ColVendor,
		"flow_code":        ColFlowCode,
		"flow code":        ColFlowCode,
		"flow_description": ColFlowDesc,
		"flow_desc":        ColFlowDesc,
		"final_location":   ColFinalLocation,
		"final location":   ColFinalLocation,
		"flow_history":     ColFlowHistory,
		"sqm":              ColSQM,
	},
	core.SourceStock: {
		"first_seen":       ColFirstSeen,
		"first seen":       ColFirstSeen,
		"last_seen":        ColLastSeen,
		"last seen":        ColLastSeen,
		"warehouse":        ColCurrentLocation,
		"current_location": ColCurrentLocation,
		"status":           ColCurrentStatus,
		"current_status":   ColCurrentStatus,
		"qty":              ColStockQty,
		"quantity":         ColStockQty,
		"stock_qty":        ColStockQty,
	},
}

// Required columns per source. Flow also requires its configured
// location columns; see Missing.
var Required = map[string][]string{
	core.SourceInvoice: {ColSKU, ColMatchStatus, ColWeightError, ColVolumeError},
	core.SourceFlow:    {ColSKU, ColPackageCount, ColWeight, ColVolume, ColVendor, ColFlowCode, ColFinalLocation},
	core.SourceStock:   {ColSKU, ColFirstSeen, ColLastSeen, ColCurrentLocation, ColCurrentStatus},
}

// Canonicalize maps a raw header to its canonical name for a source.
// Headers naming a configured location keep the location's spelling.
// Unknown headers are lowercased with spaces replaced by underscores.
func Canonicalize(sourceName, header string, locations []string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	for _, loc := range locations {
		if strings.EqualFold(strings.TrimSpace(loc), h) {
			return loc
		}
	}
	if c, ok := sharedAliases[h]; ok {
		return c
	}
	if c, ok := aliases[sourceName][h]; ok {
		return c
	}
	return strings.Join(strings.Fields(h), "_")
}

// Missing lists required columns absent from the table. The flow source
// needs only the SKU column plus at least one location when flow_code is
// absent, since the code can be derived from visits.
func Missing(t *Table, locations []string) []string {
	var missing []string
	for _, col := range Required[t.Source] {
		if t.HasColumn(col) {
			continue
		}
		if t.Source == core.SourceFlow && col == ColFlowCode && hasAnyLocation(t, locations) {
			continue
		}
		missing = append(missing, col)
	}
	return missing
}

func hasAnyLocation(t *Table, locations []string) bool {
	for _, l := range locations {
		if t.HasColumn(l) {
			return true
		}
	}
	return false
}
