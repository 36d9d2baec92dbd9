// Package sku canonicalizes item identifiers so the three sources can be joined.
package sku

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// Normalize canonicalizes a raw key. A nil key stays nil.
func Normalize(raw *string) *string {
	if raw == nil {
		return nil
	}
	s := NormalizeString(*raw)
	return &s
}

// NormalizeString applies, in order: trim, uppercase, whitespace removal,
// dash unification, and leading-zero stripping. Full-width letters and
// digits are folded to ASCII first. It is idempotent.
func NormalizeString(raw string) string {
	s := strings.TrimSpace(width.Fold.String(raw))
	s = cases.Upper(language.Und).String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r == '\u2013', r == '\u2014':
			return '-'
		}
		return r
	}, s)
	return stripLeadingZeros(s)
}

// stripLeadingZeros removes one run of leading zeros when the run is
// followed by an ASCII letter or digit. A key made only of zeros, or zeros
// followed by punctuation, keeps a single zero.
func stripLeadingZeros(s string) string {
	n := 0
	for n < len(s) && s[n] == '0' {
		n++
	}
	if n == 0 {
		return s
	}
	if n < len(s) && isAlnum(s[n]) {
		return s[n:]
	}
	return s[n-1:]
}

func isAlnum(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// DuplicateReport counts repeated keys on one side of a join.
type DuplicateReport struct {
	Rows       int      `json:"rows"`
	Unique     int      `json:"unique"`
	Duplicates int      `json:"duplicates"`
	Keys       []string `json:"keys,omitempty"`
}

// Duplicates counts rows whose normalized key already appeared earlier.
// Empty keys are ignored. Keys lists each duplicated key once, sorted.
func Duplicates(keys []string) DuplicateReport {
	seen := make(map[string]int, len(keys))
	rep := DuplicateReport{}
	for _, k := range keys {
		if k == "" {
			continue
		}
		rep.Rows++
		seen[k]++
	}
	rep.Unique = len(seen)
	rep.Duplicates = rep.Rows - rep.Unique
	for k, n := range seen {
		if n > 1 {
			rep.Keys = append(rep.Keys, k)
		}
	}
	sort.Strings(rep.Keys)
	return rep
}

// JoinReport is computed before two key sets are joined.
type JoinReport struct {
	Left  DuplicateReport `json:"left"`
	Right DuplicateReport `json:"right"`
}

// CheckJoin reports duplicate keys on both sides of a join.
func CheckJoin(left, right []string) JoinReport {
	return JoinReport{Left: Duplicates(left), Right: Duplicates(right)}
}

// HasDuplicates reports whether either side repeats a key.
func (r JoinReport) HasDuplicates() bool {
	return r.Left.Duplicates > 0 || r.Right.Duplicates > 0
}
