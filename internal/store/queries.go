package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

// Result is a generic tabular query result.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// View returns up to limit rows of a reporting view. A limit of zero
// returns everything.
func (s *Store) View(ctx context.Context, name string, limit int) (*Result, error) {
	if !IsView(name) {
		return nil, fmt.Errorf("unknown view %q (available: %s)", name, strings.Join(Views, ", "))
	}
	query := "SELECT * FROM " + name + " ORDER BY " + viewOrder[name] + limitClause(limit)

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	res := &Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", name, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

// Live returns the current record for every SKU, ordered by SKU.
func (s *Store) Live(ctx context.Context) ([]core.SKURecord, error) {
	rows, err := s.db.Query(ctx, "SELECT "+liveColumns()+" FROM "+ViewLive+" ORDER BY sku")
	if err != nil {
		return nil, fmt.Errorf("failed to query live records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.SKURecord
	for rows.Next() {
		rec, err := scanRecord(rows.Rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (core.SKURecord, error) {
	var (
		rec                           core.SKURecord
		hash, runID                   string
		mergedAt                      time.Time
		weight, volume, stockQty, sqm sql.NullFloat64
		weightErr, volumeErr          sql.NullFloat64
		pkgs, flowCode, rowID         sql.NullInt64
		vendor, finalLoc, flowDesc    sql.NullString
		curLoc, curStatus, status     sql.NullString
		sourceFile, sheet, sources    sql.NullString
		firstSeen, lastSeen           sql.NullTime
	)
	err := rows.Scan(
		&hash, &runID, &mergedAt,
		&rec.SKU, &weight, &volume, &pkgs, &vendor, &finalLoc, &flowCode, &flowDesc,
		&firstSeen, &lastSeen, &stockQty, &sqm, &curLoc, &curStatus, &status,
		&weightErr, &volumeErr, &sourceFile, &sheet, &rowID, &sources,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan master row: %w", err)
	}

	rec.Weight = floatPtr(weight)
	rec.Volume = floatPtr(volume)
	rec.PackageCount = intPtr(pkgs)
	rec.Vendor = vendor.String
	rec.FinalLocation = finalLoc.String
	rec.FlowCode = intPtr(flowCode)
	rec.FlowDesc = flowDesc.String
	rec.FirstSeen = timePtr(firstSeen)
	rec.LastSeen = timePtr(lastSeen)
	rec.StockQty = floatPtr(stockQty)
	rec.SQM = floatPtr(sqm)
	rec.CurrentLocation = curLoc.String
	rec.CurrentStatus = curStatus.String
	if status.Valid {
		rec.InvoiceMatchStatus = &status.String
	}
	rec.WeightError = floatPtr(weightErr)
	rec.VolumeError = floatPtr(volumeErr)
	rec.SourceFile = sourceFile.String
	rec.Sheet = sheet.String
	rec.RowID = int(rowID.Int64)
	if sources.String != "" {
		rec.Sources = strings.Split(sources.String, ",")
	}
	return rec, nil
}

// Exceptions returns exception records, newest run first. An empty runID
// returns all runs.
func (s *Store) Exceptions(ctx context.Context, runID string, limit int) ([]core.Exception, error) {
	query := "SELECT run_id, sku, reason, weight_error, volume_error, alternatives, details FROM " + TableExceptions
	var args []any
	if runID != "" {
		query += " WHERE run_id = " + s.dialect.FormatPlaceholder(1)
		args = append(args, runID)
	}
	query += " ORDER BY created_at DESC, sku, reason" + limitClause(limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exceptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []core.Exception{}
	for rows.Next() {
		var (
			e                    core.Exception
			weightErr, volumeErr sql.NullFloat64
			alts, details        sql.NullString
		)
		if err := rows.Scan(&e.RunID, &e.SKU, &e.Reason, &weightErr, &volumeErr, &alts, &details); err != nil {
			return nil, fmt.Errorf("failed to scan exception: %w", err)
		}
		e.WeightError = floatPtr(weightErr)
		e.VolumeError = floatPtr(volumeErr)
		e.Details = details.String
		if alts.Valid && alts.String != "" {
			if err := json.Unmarshal([]byte(alts.String), &e.Alternatives); err != nil {
				return nil, fmt.Errorf("invalid alternatives for %s: %w", e.SKU, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Occupancy returns the occupancy table, optionally for one warehouse.
func (s *Store) Occupancy(ctx context.Context, warehouse string) ([]core.OccupancyRecord, error) {
	query := "SELECT date, warehouse, packages, CAST(area AS " + s.dialect.TextType + "), " +
		"CAST(daily_charge AS " + s.dialect.TextType + "), CAST(cumulative_charge AS " + s.dialect.TextType + ") FROM " + TableOccupancy
	var args []any
	if warehouse != "" {
		query += " WHERE warehouse = " + s.dialect.FormatPlaceholder(1)
		args = append(args, warehouse)
	}
	query += " ORDER BY warehouse, date"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query occupancy: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []core.OccupancyRecord{}
	for rows.Next() {
		var (
			r                    core.OccupancyRecord
			area, daily, cumulat string
		)
		if err := rows.Scan(&r.Date, &r.Warehouse, &r.Packages, &area, &daily, &cumulat); err != nil {
			return nil, fmt.Errorf("failed to scan occupancy: %w", err)
		}
		if r.Area, err = decimal.NewFromString(area); err != nil {
			return nil, fmt.Errorf("invalid area %q: %w", area, err)
		}
		if r.DailyCharge, err = decimal.NewFromString(daily); err != nil {
			return nil, fmt.Errorf("invalid daily charge %q: %w", daily, err)
		}
		if r.CumulativeCharge, err = decimal.NewFromString(cumulat); err != nil {
			return nil, fmt.Errorf("invalid cumulative charge %q: %w", cumulat, err)
		}
		r.Date = core.Day(r.Date)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats counts stored and live master rows.
type Stats struct {
	TotalRows int64 `json:"total_rows"`
	LiveRows  int64 `json:"live_rows"`
}

// Stats returns master table row counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	rows, err := s.db.Query(ctx,
		"SELECT (SELECT COUNT(*) FROM "+TableMaster+"), (SELECT COUNT(*) FROM "+ViewLive+")")
	if err != nil {
		return st, fmt.Errorf("failed to count master rows: %w", err)
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		if err := rows.Scan(&st.TotalRows, &st.LiveRows); err != nil {
			return st, fmt.Errorf("failed to scan counts: %w", err)
		}
	}
	return st, rows.Err()
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time.UTC()
	return &v
}
