// Package store persists the SKU master, exceptions, outliers and
// occupancy tables through a database adapter and exposes the reporting
// views.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/skuhub/pkg/adapter"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// Table names.
const (
	TableMaster     = "sku_master"
	TableExceptions = "sku_exceptions"
	TableOutliers   = "sku_outliers"
	TableOccupancy  = "sku_occupancy"
	TableVisits     = "sku_visits"
)

// Store is the master store.
type Store struct {
	db      adapter.Adapter
	dialect *adapter.Dialect
	logger  *slog.Logger
}

// New wraps a connected adapter. If logger is nil, a discard logger is used.
func New(db adapter.Adapter, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, dialect: db.Dialect(), logger: logger}
}

// Dialect returns the SQL dialect of the underlying adapter.
func (s *Store) Dialect() *adapter.Dialect {
	return s.dialect
}

// Init creates tables and views when missing.
func (s *Store) Init(ctx context.Context) error {
	for _, stmt := range append(schemaStatements(s.dialect), viewStatements()...) {
		if err := s.db.Exec(ctx, stmt); err != nil {
			return &core.PersistenceError{Op: "init schema", Err: err}
		}
	}
	s.logger.Debug("master store initialized", slog.String("dialect", s.dialect.Name))
	return nil
}

// WithTx runs fn in one transaction. Any error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx)
	if err != nil {
		return &core.PersistenceError{Op: "begin transaction", Err: err}
	}
	tx := &Tx{tx: sqlTx, dialect: s.dialect, logger: s.logger}

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &core.PersistenceError{Op: "commit", Err: err}
	}
	return nil
}

// ExistingHashes returns every stored row hash.
func (s *Store) ExistingHashes(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.Query(ctx, "SELECT row_hash FROM "+TableMaster)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanHashes(rows.Rows)
}

func scanHashes(rows *sql.Rows) (map[string]bool, error) {
	out := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan row hash: %w", err)
		}
		out[h] = true
	}
	return out, rows.Err()
}

// Purge deletes master rows superseded by a newer row for the same SKU.
// It is only run on explicit request.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx,
			"DELETE FROM "+TableMaster+" WHERE row_hash NOT IN (SELECT row_hash FROM "+ViewLive+")")
		if err != nil {
			return &core.PersistenceError{Op: "purge superseded rows", Err: err}
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("purged superseded master rows", slog.Int64("deleted", deleted))
	return deleted, nil
}
