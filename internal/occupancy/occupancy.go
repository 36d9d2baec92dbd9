// Package occupancy expands visit histories into daily warehouse occupancy
// and converts it into area and storage charges.
package occupancy

import (
	"sort"
	"time"

	"github.com/leapstack-labs/skuhub/internal/config"
	"github.com/leapstack-labs/skuhub/pkg/core"
	"github.com/shopspring/decimal"
)

// Item is one SKU's visit history.
type Item struct {
	SKU      string
	Packages *int
	Visits   []core.Visit
}

// Config extends the billing configuration with the run date.
type Config struct {
	config.OccupancyConfig
	// Today closes the last open visit, inclusive.
	Today time.Time
}

type slot struct {
	date      time.Time
	warehouse string
}

// Convert returns one record per (date, billable warehouse) with at least
// one package, ordered by warehouse then date. The output depends only on
// the inputs.
func Convert(items []Item, cfg Config) []core.OccupancyRecord {
	billable := make(map[string]bool, len(cfg.Warehouses))
	for _, w := range cfg.Warehouses {
		billable[w] = true
	}
	today := core.Day(cfg.Today)

	packages := make(map[slot]int)
	for _, it := range items {
		n := 1
		if it.Packages != nil && *it.Packages > 0 {
			n = *it.Packages
		}

		visits := sortedVisits(it.Visits)
		for i, v := range visits {
			if !billable[v.Warehouse] {
				continue
			}
			start := core.Day(v.At)
			end := today
			if i+1 < len(visits) {
				end = core.Day(visits[i+1].At).AddDate(0, 0, -1)
			}
			for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
				packages[slot{d, v.Warehouse}] += n
			}
		}
	}

	slots := make([]slot, 0, len(packages))
	for s := range packages {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].warehouse != slots[j].warehouse {
			return slots[i].warehouse < slots[j].warehouse
		}
		return slots[i].date.Before(slots[j].date)
	})

	fallback := fallbackRate(cfg.OccupancyConfig)
	out := make([]core.OccupancyRecord, 0, len(slots))
	cumulative := make(map[string]decimal.Decimal)
	for _, s := range slots {
		n := packages[s]
		rate, ok := cfg.Rates[s.warehouse]
		if !ok {
			rate = fallback
		}
		area := decimal.NewFromInt(int64(n)).Mul(cfg.AreaPerPackage)
		charge := area.Mul(rate).Round(2)
		cumulative[s.warehouse] = cumulative[s.warehouse].Add(charge)
		out = append(out, core.OccupancyRecord{
			Date:             s.date,
			Warehouse:        s.warehouse,
			Packages:         n,
			Area:             area,
			DailyCharge:      charge,
			CumulativeCharge: cumulative[s.warehouse],
		})
	}
	return out
}

// fallbackRate is the average of the configured warehouse rates, or the
// default rate when none are configured.
func fallbackRate(cfg config.OccupancyConfig) decimal.Decimal {
	if len(cfg.Rates) == 0 {
		return cfg.DefaultRate
	}
	sum := decimal.Zero
	for _, r := range cfg.Rates {
		sum = sum.Add(r)
	}
	return sum.Div(decimal.NewFromInt(int64(len(cfg.Rates))))
}

func sortedVisits(in []core.Visit) []core.Visit {
	out := make([]core.Visit, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Totals sums charges per warehouse.
func Totals(records []core.OccupancyRecord) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, r := range records {
		out[r.Warehouse] = out[r.Warehouse].Add(r.DailyCharge)
	}
	return out
}
