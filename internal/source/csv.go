package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/skuhub/pkg/adapter"
)

// CSV stages a delimited file through a database adapter and reads it back
// as text. DuckDB sniffs delimiters and quoting; every column stays VARCHAR.
type CSV struct {
	name      string
	path      string
	sheet     string
	locations []string
	db        adapter.Adapter
	logger    *slog.Logger
}

// NewCSV creates a CSV source. locations are the configured visit-date
// columns used to canonicalize headers.
func NewCSV(name, path, sheet string, locations []string, db adapter.Adapter, logger *slog.Logger) *CSV {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CSV{name: name, path: path, sheet: sheet, locations: locations, db: db, logger: logger}
}

// Name returns the dataset name.
func (c *CSV) Name() string { return c.name }

// Path returns the file location.
func (c *CSV) Path() string { return c.path }

// Load reads the whole file. The staging table is dropped afterwards.
func (c *CSV) Load(ctx context.Context) (*Table, error) {
	if c.path == "" {
		return nil, fmt.Errorf("%s source has no path configured", c.name)
	}
	staging := "stg_" + c.name

	if err := c.db.LoadCSV(ctx, staging, c.path); err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", c.name, err)
	}
	defer func() {
		if err := c.db.Exec(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+adapter.QuoteIdent(staging)); err != nil {
			c.logger.Warn("failed to drop staging table", slog.String("table", staging), slog.String("error", err.Error()))
		}
	}()

	meta, err := c.db.GetTableMetadata(ctx, staging)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", c.name, err)
	}
	headers := make([]string, len(meta.Columns))
	quoted := make([]string, len(meta.Columns))
	for i, col := range meta.Columns {
		headers[i] = col.Name
		quoted[i] = adapter.QuoteIdent(col.Name)
	}

	//nolint:gosec // identifiers are quoted
	rows, err := c.db.Query(ctx, "SELECT "+strings.Join(quoted, ", ")+" FROM "+adapter.QuoteIdent(staging))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.name, err)
	}
	defer func() { _ = rows.Close() }()

	t := &Table{Source: c.name, File: c.path, Sheet: c.sheet, Rows: make([]Row, 0, meta.RowCount)}
	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = Canonicalize(c.name, h, c.locations)
	}
	t.Columns = dedupe(cols)

	vals := make([]sql.NullString, len(headers))
	dest := make([]any, len(headers))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row %d: %w", c.name, len(t.Rows)+1, err)
		}
		cells := make(map[string]string, len(cols))
		for i, col := range cols {
			if !vals[i].Valid {
				continue
			}
			// first occurrence wins when two headers alias to the same column
			if _, dup := cells[col]; dup {
				continue
			}
			cells[col] = strings.TrimSpace(vals[i].String)
		}
		t.Rows = append(t.Rows, Row{Index: len(t.Rows) + 1, Cells: cells})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", c.name, err)
	}

	c.logger.Debug("loaded source",
		slog.String("source", c.name),
		slog.String("path", c.path),
		slog.Int("rows", len(t.Rows)),
		slog.Int("columns", len(t.Columns)))
	return t, nil
}

func dedupe(cols []string) []string {
	seen := make(map[string]bool, len(cols))
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
