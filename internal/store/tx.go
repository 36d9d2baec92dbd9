package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/skuhub/internal/merge"
	"github.com/leapstack-labs/skuhub/pkg/adapter"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// Tx is a write transaction on the master store. It implements
// merge.Store so the merge happens inside the run's transaction.
type Tx struct {
	tx      *sql.Tx
	dialect *adapter.Dialect
	logger  *slog.Logger
	now     func() time.Time
}

func (t *Tx) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now().UTC()
}

// ExistingHashes returns every stored row hash as seen by the transaction.
func (t *Tx) ExistingHashes(ctx context.Context) (map[string]bool, error) {
	rows, err := t.tx.QueryContext(ctx, "SELECT row_hash FROM "+TableMaster)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanHashes(rows)
}

func (t *Tx) insertSQL(table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), t.dialect.Placeholders(1, len(cols)))
}

func (t *Tx) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %q: %w", query, err)
	}
	return stmt, nil
}

// InsertRows appends master rows stamped with the run ID.
func (t *Tx) InsertRows(ctx context.Context, runID string, rows []merge.Row) error {
	if len(rows) == 0 {
		return nil
	}
	cols := append([]string{merge.ColHash, merge.ColRunID, merge.ColMergedAt}, merge.Columns...)
	stmt, err := t.prepare(ctx, t.insertSQL(TableMaster, cols))
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	mergedAt := t.clock()
	args := make([]any, len(cols))
	for _, r := range rows {
		args[0], args[1], args[2] = r.Hash, runID, mergedAt
		for i, c := range merge.Columns {
			args[i+3] = r.Values[c]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %s: %w", r.Hash, err)
		}
	}
	t.logger.Debug("inserted master rows", slog.Int("rows", len(rows)))
	return nil
}

// InsertExceptions writes the run's exception records.
func (t *Tx) InsertExceptions(ctx context.Context, exceptions []core.Exception) error {
	if len(exceptions) == 0 {
		return nil
	}
	cols := []string{"run_id", "sku", "reason", "weight_error", "volume_error", "alternatives", "details", "created_at"}
	stmt, err := t.prepare(ctx, t.insertSQL(TableExceptions, cols))
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	created := t.clock()
	for _, e := range exceptions {
		alts := e.Alternatives
		if alts == nil {
			alts = []core.Combination{}
		}
		b, err := json.Marshal(alts)
		if err != nil {
			return fmt.Errorf("failed to encode alternatives for %s: %w", e.SKU, err)
		}
		var details any
		if e.Details != "" {
			details = e.Details
		}
		if _, err := stmt.ExecContext(ctx,
			e.RunID, e.SKU, e.Reason, nullFloat(e.WeightError), nullFloat(e.VolumeError), string(b), details, created,
		); err != nil {
			return fmt.Errorf("failed to insert exception %s: %w", e.SKU, err)
		}
	}
	return nil
}

// InsertOutliers writes the run's outlier flags.
func (t *Tx) InsertOutliers(ctx context.Context, outliers []core.OutlierRecord) error {
	if len(outliers) == 0 {
		return nil
	}
	cols := []string{"run_id", "sku", "metric", "value", "score", "vendor", "location"}
	stmt, err := t.prepare(ctx, t.insertSQL(TableOutliers, cols))
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, o := range outliers {
		if _, err := stmt.ExecContext(ctx,
			o.RunID, o.SKU, o.Metric, o.Value, o.Score, nullString(o.Vendor), nullString(o.Location),
		); err != nil {
			return fmt.Errorf("failed to insert outlier %s: %w", o.SKU, err)
		}
	}
	return nil
}

// ReplaceOccupancy regenerates the occupancy table.
func (t *Tx) ReplaceOccupancy(ctx context.Context, records []core.OccupancyRecord) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+TableOccupancy); err != nil {
		return fmt.Errorf("failed to clear occupancy: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	p := t.dialect.FormatPlaceholder
	query := fmt.Sprintf(
		"INSERT INTO %s (date, warehouse, packages, area, daily_charge, cumulative_charge) "+
			"VALUES (%s, %s, %s, CAST(%s AS DECIMAL(18,4)), CAST(%s AS DECIMAL(18,2)), CAST(%s AS DECIMAL(18,2)))",
		TableOccupancy, p(1), p(2), p(3), p(4), p(5), p(6))
	stmt, err := t.prepare(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.Date, r.Warehouse, r.Packages,
			r.Area.StringFixed(4), r.DailyCharge.StringFixed(2), r.CumulativeCharge.StringFixed(2),
		); err != nil {
			return fmt.Errorf("failed to insert occupancy %s %s: %w", r.Warehouse, r.Date.Format(time.DateOnly), err)
		}
	}
	return nil
}

// ReplaceVisits rewrites the location history of every flow-sourced
// record. SKUs absent from the flow report keep their earlier history.
func (t *Tx) ReplaceVisits(ctx context.Context, runID string, records []core.SKURecord) error {
	p := t.dialect.FormatPlaceholder
	del, err := t.prepare(ctx, "DELETE FROM "+TableVisits+" WHERE sku = "+p(1))
	if err != nil {
		return err
	}
	defer func() { _ = del.Close() }()
	ins, err := t.prepare(ctx, t.insertSQL(TableVisits, []string{"sku", "location", "visited_at", "run_id"}))
	if err != nil {
		return err
	}
	defer func() { _ = ins.Close() }()

	n := 0
	for i := range records {
		rec := &records[i]
		if !rec.HasSource(core.SourceFlow) {
			continue
		}
		if _, err := del.ExecContext(ctx, rec.SKU); err != nil {
			return fmt.Errorf("failed to clear visits of %s: %w", rec.SKU, err)
		}
		for _, v := range rec.Visits {
			if _, err := ins.ExecContext(ctx, rec.SKU, v.Warehouse, v.At, runID); err != nil {
				return fmt.Errorf("failed to insert visit %s %s: %w", rec.SKU, v.Warehouse, err)
			}
			n++
		}
	}
	t.logger.Debug("replaced visits", slog.Int("visits", n))
	return nil
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure Tx can back an incremental merge
var _ merge.Store = (*Tx)(nil)
