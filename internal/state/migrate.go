package state

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

//go:embed migrations/*.sql
var migrations embed.FS

// newMigrator builds a goose provider over the embedded run-log schema.
func newMigrator(db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to build run log migrator: %w", err)
	}
	return p, nil
}

// Migrate brings the run log schema up to date.
func (s *SQLiteStore) Migrate() error {
	if s.db == nil {
		return core.ErrStoreClosed
	}
	p, err := newMigrator(s.db)
	if err != nil {
		return err
	}
	results, err := p.Up(context.Background())
	if err != nil {
		return fmt.Errorf("failed to migrate run log: %w", err)
	}
	for _, r := range results {
		if r.Source != nil {
			s.logger.Debug("applied run log migration",
				slog.Int64("version", r.Source.Version),
				slog.Duration("took", r.Duration))
		}
	}
	return nil
}

// GetMigrationVersion reports the highest applied run log migration.
func (s *SQLiteStore) GetMigrationVersion() (int64, error) {
	if s.db == nil {
		return 0, core.ErrStoreClosed
	}
	p, err := newMigrator(s.db)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(context.Background())
}
