package source

import (
	"context"
	"strings"
)

// Memory serves a dataset built in code. Headers are canonicalized the
// same way as file sources.
type Memory struct {
	name  string
	table *Table
	err   error
}

// NewMemory builds a source from a header row and string records.
func NewMemory(name string, header []string, records [][]string, locations []string) *Memory {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = Canonicalize(name, h, locations)
	}
	t := &Table{Source: name, File: "memory:" + name, Columns: dedupe(cols)}
	for i, rec := range records {
		cells := make(map[string]string, len(cols))
		for j, col := range cols {
			if j >= len(rec) {
				break
			}
			if _, dup := cells[col]; dup {
				continue
			}
			cells[col] = strings.TrimSpace(rec[j])
		}
		t.Rows = append(t.Rows, Row{Index: i + 1, Cells: cells})
	}
	return &Memory{name: name, table: t}
}

// Failing returns a source whose Load always fails.
func Failing(name string, err error) *Memory {
	return &Memory{name: name, err: err}
}

// Name returns the dataset name.
func (m *Memory) Name() string { return m.name }

// Load returns a copy of the table header with shared rows.
func (m *Memory) Load(_ context.Context) (*Table, error) {
	if m.err != nil {
		return nil, m.err
	}
	t := *m.table
	return &t, nil
}
