package adapter

import (
	"fmt"
	"strings"
)

// PlaceholderStyle selects how bind parameters are written.
type PlaceholderStyle int

// Placeholder styles.
const (
	PlaceholderQuestion PlaceholderStyle = iota // ?
	PlaceholderDollar                           // $1
)

// Dialect describes the SQL differences the store has to care about.
type Dialect struct {
	Name          string
	DefaultSchema string
	Placeholder   PlaceholderStyle

	// Column types used by the store schema.
	TextType      string
	FloatType     string
	JSONType      string
	TimestampType string
}

// FormatPlaceholder returns the n-th (1-based) bind placeholder.
func (d *Dialect) FormatPlaceholder(n int) string {
	if d.Placeholder == PlaceholderDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Placeholders returns a comma-separated list of n placeholders starting at from.
func (d *Dialect) Placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.FormatPlaceholder(from + i)
	}
	return strings.Join(parts, ", ")
}

// QuoteIdent quotes an identifier with double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
