package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

// ErrNotConnected is returned by every operation issued before Connect.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter carries the database/sql plumbing shared by the master
// store targets. Concrete adapters embed it and supply Connect, LoadCSV
// and their dialect.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

func (b *BaseSQLAdapter) conn() (*sql.DB, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	return b.DB, nil
}

// trace logs a statement at debug level, clipped to its first line.
func (b *BaseSQLAdapter) trace(op, stmt string, start time.Time) {
	if b.Logger == nil {
		return
	}
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		stmt = stmt[:i] + " ..."
	}
	b.Logger.Debug(op, slog.String("sql", stmt), slog.Duration("took", time.Since(start)))
}

// Close releases the connection pool. Closing twice is a no-op.
func (b *BaseSQLAdapter) Close() error {
	if b.DB == nil {
		return nil
	}
	if b.Logger != nil {
		b.Logger.Debug("closing database connection", slog.String("type", b.Cfg.Type))
	}
	err := b.DB.Close()
	b.DB = nil
	return err
}

// Exec runs a statement that returns no rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, stmt string, args ...any) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	defer b.trace("exec", stmt, time.Now())
	if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query runs a statement that returns rows. The caller closes them and
// checks Err after iterating.
func (b *BaseSQLAdapter) Query(ctx context.Context, stmt string, args ...any) (*core.Rows, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	defer b.trace("query", stmt, time.Now())
	//nolint:rowserrcheck // checked by the caller
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &core.Rows{Rows: rows}, nil
}

// BeginTx opens the transaction a run stages its writes in.
func (b *BaseSQLAdapter) BeginTx(ctx context.Context) (*sql.Tx, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// IsConnected reports whether Connect has succeeded and Close has not run.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// ParseQualifiedName splits "schema.table", falling back to the
// dialect's default schema.
func ParseQualifiedName(table string, d *Dialect) (schema, name string) {
	if s, n, ok := strings.Cut(table, "."); ok && !strings.Contains(n, ".") {
		return s, n
	}
	return d.DefaultSchema, table
}

// GetTableMetadataCommon describes a table from information_schema.
// Staged source tables are checked against it for required headers.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, table string, d *Dialect) (*core.TableMetadata, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	schema, name := ParseQualifiedName(table, d)

	//nolint:gosec // placeholders come from the dialect
	query := fmt.Sprintf(`SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position`, d.FormatPlaceholder(1), d.FormatPlaceholder(2))

	rows, err := db.QueryContext(ctx, query, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := &core.TableMetadata{Schema: schema, Name: name}
	for rows.Next() {
		var col core.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		meta.Columns = append(meta.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(meta.Columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	count := "SELECT COUNT(*) FROM " + QuoteIdent(schema) + "." + QuoteIdent(name)
	if err := db.QueryRowContext(ctx, count).Scan(&meta.RowCount); err != nil && b.Logger != nil {
		b.Logger.Debug("row count unavailable", slog.String("table", table), slog.String("error", err.Error()))
	}
	return meta, nil
}
