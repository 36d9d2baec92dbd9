package core

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdapterConfig_Option(t *testing.T) {
	cfg := AdapterConfig{Options: map[string]string{"sslmode": "require", "application_name": "  "}}

	assert.Equal(t, "require", cfg.Option("sslmode", "disable"))
	assert.Equal(t, "skuhub", cfg.Option("application_name", "skuhub"))
	assert.Equal(t, "", AdapterConfig{}.Option("sslmode", ""))
}

func TestAdapterConfig_LogValueHidesPassword(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("connect", slog.Any("target", AdapterConfig{
		Type: "postgres", Host: "db", Port: 5432, Database: "master", Username: "recon", Password: "hunter2",
	}))

	out := buf.String()
	assert.Contains(t, out, "target.type=postgres")
	assert.Contains(t, out, "target.user=recon")
	assert.NotContains(t, out, "hunter2")
}

func TestTableMetadata_HasColumn(t *testing.T) {
	m := &TableMetadata{Columns: []Column{{Name: "SKU"}, {Name: "qty"}}}
	assert.True(t, m.HasColumn("SKU"))
	assert.False(t, m.HasColumn("sku"))
}
