package core

import "fmt"

// Flow codes describe where an item is in its lifecycle.
const (
	FlowPreArrival = 0
	FlowPort       = 1
	FlowWarehouse  = 2
	FlowMOSB       = 3
	FlowSite       = 4
)

var flowNames = [...]string{
	FlowPreArrival: "Pre-Arrival",
	FlowPort:       "Port",
	FlowWarehouse:  "Warehouse",
	FlowMOSB:       "MOSB",
	FlowSite:       "Site",
}

// ValidFlowCode reports whether code is one of the five lifecycle states.
func ValidFlowCode(code int) bool {
	return code >= FlowPreArrival && code <= FlowSite
}

// FlowName returns the display name of a flow code.
func FlowName(code int) string {
	if !ValidFlowCode(code) {
		return fmt.Sprintf("Unknown(%d)", code)
	}
	return flowNames[code]
}

// ParseFlowKind maps a location kind name to its flow code.
func ParseFlowKind(kind string) (int, bool) {
	switch kind {
	case "pre_arrival", "pre-arrival":
		return FlowPreArrival, true
	case "port":
		return FlowPort, true
	case "warehouse":
		return FlowWarehouse, true
	case "mosb":
		return FlowMOSB, true
	case "site":
		return FlowSite, true
	}
	return 0, false
}
