package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/skuhub/pkg/adapter"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      adapter.Config
		expected string
	}{
		{
			name:     "defaults",
			cfg:      adapter.Config{Database: "skuhub"},
			expected: "host=localhost port=5432 dbname=skuhub sslmode=disable",
		},
		{
			name: "full config",
			cfg: adapter.Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "master",
				Username: "recon",
				Password: "secret",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=db.example.com port=5433 dbname=master sslmode=require user=recon password=secret",
		},
		{
			name: "application name",
			cfg: adapter.Config{
				Database: "skuhub",
				Options:  map[string]string{"application_name": "skuhub"},
			},
			expected: "host=localhost port=5432 dbname=skuhub sslmode=disable application_name=skuhub",
		},
		{
			name:     "reporting schema",
			cfg:      adapter.Config{Database: "skuhub", Schema: "recon"},
			expected: "host=localhost port=5432 dbname=skuhub sslmode=disable search_path=recon",
		},
		{
			name:     "default schema is implicit",
			cfg:      adapter.Config{Database: "skuhub", Schema: "public"},
			expected: "host=localhost port=5432 dbname=skuhub sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.cfg))
		})
	}
}

func TestCreateTextTableSQL(t *testing.T) {
	got := createTextTableSQL("stg_invoice", []string{"Case No.", "G.W(kgs)", ""})
	assert.Equal(t, `CREATE TABLE "stg_invoice" ("Case No." TEXT, "G.W(kgs)" TEXT, "column2" TEXT)`, got)
}

func TestDialect(t *testing.T) {
	d := New(nil).Dialect()
	assert.Equal(t, "postgres", d.Name)
	assert.Equal(t, "public", d.DefaultSchema)
	assert.Equal(t, "$2", d.FormatPlaceholder(2))
	assert.Equal(t, "$3, $4", d.Placeholders(3, 2))
	assert.Equal(t, "JSONB", d.JSONType)
}

func TestAdapter_NotConnected(t *testing.T) {
	a := New(nil)
	ctx := context.Background()

	assert.Error(t, a.Exec(ctx, "SELECT 1"))
	_, err := a.Query(ctx, "SELECT 1")
	assert.Error(t, err)
	_, err = a.GetTableMetadata(ctx, "sku_master")
	assert.Error(t, err)
	assert.Error(t, a.LoadCSV(ctx, "t", "x.csv"))
	assert.NoError(t, a.Close())
}

func TestAdapter_Registry(t *testing.T) {
	require.True(t, adapter.IsRegistered("postgres"))
	factory, ok := adapter.Get("postgres")
	require.True(t, ok)
	_, ok = factory(nil).(*Adapter)
	assert.True(t, ok)
}
