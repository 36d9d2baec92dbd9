package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

// HeatmapCell is one location × month bucket of the live master.
type HeatmapCell struct {
	Location string  `json:"location"`
	Month    string  `json:"month"` // 2006-01, empty for undated SKUs
	StockQty float64 `json:"stock_qty"`
	SQM      float64 `json:"sqm"`
	SKUCount int     `json:"sku_count"`
}

// LocationSummary totals the cells of one location.
type LocationSummary struct {
	Location     string  `json:"location"`
	ActiveMonths int     `json:"active_months"`
	StockQty     float64 `json:"stock_qty"`
	SQM          float64 `json:"sqm"`
	SKUCount     int     `json:"sku_count"`
}

type HeatmapStats struct {
	TotalStockQty float64 `json:"total_stock_qty"`
	TotalSQM      float64 `json:"total_sqm"`
	Locations     int     `json:"unique_locations"`
	Months        int     `json:"unique_months"`
	Cells         int     `json:"total_records"`
}

type Heatmap struct {
	Cells     []HeatmapCell     `json:"cells"`
	Locations []LocationSummary `json:"locations"`
	Stats     HeatmapStats      `json:"stats"`
}

// Heatmap aggregates stock and area per location and month.
func (s *Store) Heatmap(ctx context.Context) (*Heatmap, error) {
	rows, err := s.db.Query(ctx, "SELECT location, month, stock_qty, sqm, sku_count FROM "+
		ViewLocationMonthly+" ORDER BY "+viewOrder[ViewLocationMonthly])
	if err != nil {
		return nil, fmt.Errorf("failed to query heatmap: %w", err)
	}
	defer func() { _ = rows.Close() }()

	h := &Heatmap{Cells: []HeatmapCell{}, Locations: []LocationSummary{}}
	byLoc := map[string]int{}
	months := map[string]bool{}
	for rows.Next() {
		var (
			c     HeatmapCell
			month sql.NullTime
		)
		if err := rows.Scan(&c.Location, &month, &c.StockQty, &c.SQM, &c.SKUCount); err != nil {
			return nil, fmt.Errorf("failed to scan heatmap cell: %w", err)
		}
		if month.Valid {
			c.Month = month.Time.UTC().Format("2006-01")
			months[c.Month] = true
		}
		h.Cells = append(h.Cells, c)

		i, ok := byLoc[c.Location]
		if !ok {
			i = len(h.Locations)
			byLoc[c.Location] = i
			h.Locations = append(h.Locations, LocationSummary{Location: c.Location})
		}
		sum := &h.Locations[i]
		if c.Month != "" {
			sum.ActiveMonths++
		}
		sum.StockQty += c.StockQty
		sum.SQM += c.SQM
		sum.SKUCount += c.SKUCount

		h.Stats.TotalStockQty += c.StockQty
		h.Stats.TotalSQM += c.SQM
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	h.Stats.Locations = len(h.Locations)
	h.Stats.Months = len(months)
	h.Stats.Cells = len(h.Cells)
	return h, nil
}

// Event kinds of a case timeline.
const (
	EventFirstSeen = "first_seen"
	EventVisit     = "visit"
	EventLastSeen  = "last_seen"
)

// CaseEvent is one dated step in the life of a SKU.
type CaseEvent struct {
	SKU      string    `json:"sku"`
	Location string    `json:"location"`
	FlowCode *int      `json:"flow_code"`
	At       time.Time `json:"at"`
	Kind     string    `json:"kind"`
}

type CaseflowStats struct {
	TotalEvents     int     `json:"total_events"`
	UniqueSKUs      int     `json:"unique_skus"`
	CompletedFlows  int     `json:"completed_flows"`
	AvgEventsPerSKU float64 `json:"avg_events_per_sku"`
}

type Caseflow struct {
	SKU    string                 `json:"sku,omitempty"`
	Events []CaseEvent            `json:"events"`
	BySKU  map[string][]CaseEvent `json:"by_sku"`
	Stats  CaseflowStats          `json:"stats"`
}

// Caseflow builds the timeline of one SKU, or of all SKUs when sku is
// empty, from the seen dates of the live master and the stored visits.
// A limit of zero returns every event.
func (s *Store) Caseflow(ctx context.Context, sku string, limit int) (*Caseflow, error) {
	p := s.dialect.FormatPlaceholder
	filter := func(col string, n int) string {
		if sku == "" {
			return ""
		}
		return " AND " + col + " = " + p(n)
	}
	query := `SELECT sku, location, flow_code, event_at, kind FROM (
    SELECT v.sku, v.location, m.flow_code, v.visited_at AS event_at, '` + EventVisit + `' AS kind
    FROM ` + TableVisits + ` v LEFT JOIN ` + ViewLive + ` m ON m.sku = v.sku
    WHERE 1 = 1` + filter("v.sku", 1) + `
    UNION ALL
    SELECT sku, COALESCE(final_location, current_location, 'Unknown'), flow_code, first_seen, '` + EventFirstSeen + `'
    FROM ` + ViewLive + `
    WHERE first_seen IS NOT NULL` + filter("sku", 2) + `
    UNION ALL
    SELECT sku, COALESCE(current_location, final_location, 'Unknown'), flow_code, last_seen, '` + EventLastSeen + `'
    FROM ` + ViewLive + `
    WHERE last_seen IS NOT NULL AND (first_seen IS NULL OR last_seen <> first_seen)` + filter("sku", 3) + `
) events
ORDER BY sku, event_at, kind` + limitClause(limit)

	var args []any
	if sku != "" {
		args = []any{sku, sku, sku}
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query caseflow: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cf := &Caseflow{SKU: sku, Events: []CaseEvent{}, BySKU: map[string][]CaseEvent{}}
	completed := map[string]bool{}
	for rows.Next() {
		var (
			e    CaseEvent
			code sql.NullInt64
		)
		if err := rows.Scan(&e.SKU, &e.Location, &code, &e.At, &e.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan case event: %w", err)
		}
		e.FlowCode = intPtr(code)
		e.At = e.At.UTC()
		cf.Events = append(cf.Events, e)
		cf.BySKU[e.SKU] = append(cf.BySKU[e.SKU], e)
		if e.FlowCode != nil && *e.FlowCode == core.FlowSite {
			completed[e.SKU] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cf.Stats.TotalEvents = len(cf.Events)
	cf.Stats.UniqueSKUs = len(cf.BySKU)
	cf.Stats.CompletedFlows = len(completed)
	if n := len(cf.BySKU); n > 0 {
		cf.Stats.AvgEventsPerSKU = float64(len(cf.Events)) / float64(n)
	}
	return cf, nil
}
