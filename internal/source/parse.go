package source

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

// Parser converts raw cells into typed values and collects a defect for
// every cell that is present but malformed. Blank and NaN-like cells are
// nulls, not defects.
type Parser struct {
	Source  string
	Defects []core.InputDefect
}

// NewParser creates a parser for one source.
func NewParser(source string) *Parser {
	return &Parser{Source: source}
}

func isNull(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "null", "none", "n/a", "na", "-", "nat":
		return true
	}
	return false
}

func (p *Parser) defect(row int, col, value, reason string) {
	p.Defects = append(p.Defects, core.InputDefect{
		Source: p.Source, Row: row, Column: col, Value: value, Reason: reason,
	})
}

// Reject records a defect for a cell that parsed but cannot be used.
func (p *Parser) Reject(r Row, col, reason string) {
	p.defect(r.Index, col, r.Get(col), reason)
}

// Float parses a number, accepting thousands separators.
func (p *Parser) Float(r Row, col string) *float64 {
	raw := r.Get(col)
	if isNull(raw) {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.defect(r.Index, col, raw, "not a number")
		return nil
	}
	return &f
}

// Int parses an integral number. "3.0" is accepted, "3.5" is a defect.
func (p *Parser) Int(r Row, col string) *int {
	raw := r.Get(col)
	if isNull(raw) {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		p.defect(r.Index, col, raw, "not an integer")
		return nil
	}
	n := int(f)
	return &n
}

// Date parses a date or spreadsheet serial date.
func (p *Parser) Date(r Row, col string) *time.Time {
	raw := r.Get(col)
	if isNull(raw) {
		return nil
	}
	t, ok, err := core.ParseDate(raw)
	if err != nil {
		p.defect(r.Index, col, raw, "unparsable date")
		return nil
	}
	if !ok {
		return nil
	}
	return &t
}

// String returns the trimmed cell, with null markers mapped to "".
func (p *Parser) String(r Row, col string) string {
	raw := r.Get(col)
	if isNull(raw) {
		return ""
	}
	return strings.TrimSpace(raw)
}

// Key returns a trimmed key cell. Only blank and NaN cells are null; a
// key such as "NA" or "-" is kept as written.
func (p *Parser) Key(r Row, col string) string {
	raw := strings.TrimSpace(r.Get(col))
	if strings.EqualFold(raw, "nan") {
		return ""
	}
	return raw
}

// Codes parses a code history such as "0,1,2,4" or "0>1>2>4".
func (p *Parser) Codes(r Row, col string) []int {
	raw := r.Get(col)
	if isNull(raw) {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(c rune) bool {
		return c == ',' || c == '>' || c == '-' || c == ' ' || c == ';' || c == '|'
	})
	out := make([]int, 0, len(parts))
	for _, s := range parts {
		n, err := strconv.Atoi(s)
		if err != nil {
			p.defect(r.Index, col, raw, "not a code history")
			return nil
		}
		out = append(out, n)
	}
	return out
}
