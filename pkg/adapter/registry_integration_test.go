package adapter_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/skuhub/pkg/adapter"

	// Register the master store targets.
	_ "github.com/leapstack-labs/skuhub/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/skuhub/pkg/adapters/postgres"
)

func TestRegistry_Targets(t *testing.T) {
	assert.Equal(t, []string{"duckdb", "postgres"}, filterKnown(adapter.ListAdapters()))

	tests := []struct {
		target      string
		placeholder string
		schema      string
	}{
		{"duckdb", "?", "main"},
		{"DuckDB", "?", "main"},
		{"postgres", "$3", "public"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			require.True(t, adapter.IsRegistered(tt.target))
			db, err := adapter.NewAdapter(adapter.Config{Type: tt.target}, nil)
			require.NoError(t, err)
			d := db.Dialect()
			assert.Equal(t, tt.placeholder, d.FormatPlaceholder(3))
			assert.Equal(t, tt.schema, d.DefaultSchema)
		})
	}
}

func filterKnown(names []string) []string {
	var out []string
	for _, n := range names {
		if n == "duckdb" || n == "postgres" {
			out = append(out, n)
		}
	}
	return out
}

func TestNewAdapter_Errors(t *testing.T) {
	_, err := adapter.NewAdapter(adapter.Config{}, nil)
	require.EqualError(t, err, "adapter type not specified")

	_, err = adapter.NewAdapter(adapter.Config{Type: "sqlserver"}, nil)
	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "sqlserver", unknown.Type)
	assert.Contains(t, unknown.Available, "duckdb")
	assert.Contains(t, err.Error(), "target.type in skuhub.yaml")
}

func TestRegister_CaseInsensitive(t *testing.T) {
	var gotLogger *slog.Logger
	adapter.Register("Staging_Target", func(l *slog.Logger) adapter.Adapter {
		gotLogger = l
		return nil
	})

	assert.True(t, adapter.IsRegistered("staging_target"))
	_, err := adapter.NewAdapter(adapter.Config{Type: "STAGING_TARGET"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, gotLogger, "a nil logger is replaced with a discard logger")
}

func TestNewAdapter_StagesCSV(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stock.csv")
	require.NoError(t, os.WriteFile(path, []byte("SKU,qty\n007,3\nA-1,\n"), 0600))

	cfg := adapter.Config{Type: "duckdb", Path: ":memory:"}
	db, err := adapter.NewAdapter(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, db.Connect(ctx, cfg))
	defer func() { _ = db.Close() }()

	require.NoError(t, db.LoadCSV(ctx, "stg_stock", path))

	meta, err := db.GetTableMetadata(ctx, "stg_stock")
	require.NoError(t, err)
	assert.True(t, meta.HasColumn("SKU"))

	rows, err := db.Query(ctx, "SELECT SKU FROM stg_stock ORDER BY SKU")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var skus []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		skus = append(skus, s)
	}
	assert.Equal(t, []string{"007", "A-1"}, skus, "CSV cells are staged as text")
}
