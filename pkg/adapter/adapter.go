// Package adapter defines the database contract behind the skuhub master
// store. Targets live under pkg/adapters and register themselves by type
// name so skuhub.yaml can select one.
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

type (
	Config   = core.AdapterConfig
	Column   = core.Column
	Metadata = core.TableMetadata
	Rows     = core.Rows
)

// Adapter is a master store target.
type Adapter interface {
	Connect(ctx context.Context, cfg Config) error
	Close() error

	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)

	// BeginTx opens the transaction that holds all writes of one run.
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// GetTableMetadata describes a table; unqualified names use the
	// target's schema.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// LoadCSV replaces tableName with the contents of a delimited file.
	// Every column is staged as text; typing happens in the source parsers.
	LoadCSV(ctx context.Context, tableName string, filePath string) error

	Dialect() *Dialect
}
