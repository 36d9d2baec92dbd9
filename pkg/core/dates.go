package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"2006.01.02",
	"01/02/2006", // month first
	"02-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
}

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate parses a source date value. Empty input returns ok=false with no error.
// Bare numbers in the range of spreadsheet serial dates are accepted.
func ParseDate(raw string) (t time.Time, ok bool, err error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") || strings.EqualFold(s, "nat") {
		return time.Time{}, false, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true, nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f < 2958466 {
		days := int(f)
		frac := time.Duration((f - float64(days)) * float64(24*time.Hour))
		return excelEpoch.AddDate(0, 0, days).Add(frac), true, nil
	}
	return time.Time{}, false, fmt.Errorf("unparseable date %q", raw)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
