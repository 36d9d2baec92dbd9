package core

import (
	"database/sql"
	"log/slog"
	"strings"
)

// AdapterConfig locates the master store: a DuckDB file or a Postgres
// database.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	// Options are driver connection options such as sslmode.
	Options map[string]string
	// Params are session settings applied after connecting.
	Params map[string]any
}

// Option returns a driver option or fallback when unset or blank.
func (c AdapterConfig) Option(key, fallback string) string {
	if v := strings.TrimSpace(c.Options[key]); v != "" {
		return v
	}
	return fallback
}

// LogValue keeps credentials out of logs.
func (c AdapterConfig) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("type", c.Type)}
	if c.Host != "" {
		attrs = append(attrs, slog.String("host", c.Host), slog.Int("port", c.Port))
	}
	if c.Database != "" {
		attrs = append(attrs, slog.String("database", c.Database))
	}
	if c.Username != "" {
		attrs = append(attrs, slog.String("user", c.Username))
	}
	return slog.GroupValue(attrs...)
}

// Column is one column of a staged or master table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// TableMetadata describes a table as reported by information_schema.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// HasColumn reports whether the table has the named column. Staged CSV
// headers keep their case, so the match is exact.
func (m *TableMetadata) HasColumn(name string) bool {
	for _, c := range m.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Rows is the result set returned by adapter queries.
type Rows struct {
	*sql.Rows
}
