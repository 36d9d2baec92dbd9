// Package source loads the three input datasets into string tables with
// canonical column names. Typed parsing happens per cell in parse.go so a
// bad value invalidates a field, never a whole file.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Source produces one dataset snapshot.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Table, error)
}

// Row is one data row. Index is 1-based, excluding the header.
type Row struct {
	Index int
	Cells map[string]string
}

// Get returns the trimmed raw cell for a canonical column.
func (r Row) Get(col string) string {
	return r.Cells[col]
}

// Table is a loaded dataset with canonical column names.
type Table struct {
	Source  string
	File    string
	Sheet   string
	Columns []string
	Rows    []Row
}

// Empty returns a table with no rows, used when a source is unusable.
func Empty(name string) *Table {
	return &Table{Source: name}
}

// HasColumn reports whether the table carries a canonical column.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Fingerprint returns the sha256 of a file's content.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // source paths come from configuration
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
