// Package outlier flags anomalous numeric values with a robust z-score
// computed per group from the median and the median absolute deviation.
package outlier

import (
	"math"
	"sort"
	"strings"
)

// DefaultThreshold is the robust z-score above which a value is flagged.
const DefaultThreshold = 3.5

// consistency scales MAD to the standard deviation of a normal distribution.
const consistency = 0.6745

// madFloor replaces a zero MAD. Groups of identical values therefore flag
// any value more than threshold/0.6745 units from the median.
const madFloor = 1.0

// Flagged is a row whose value is an outlier within its group.
type Flagged[T any] struct {
	Index  int      `json:"index"`
	Row    T        `json:"row"`
	Group  []string `json:"group"`
	Value  float64  `json:"value"`
	Score  float64  `json:"score"`
	Median float64  `json:"median"`
	MAD    float64  `json:"mad"`
}

type member struct {
	index int
	value float64
}

// Detect groups rows by the keys returned from group, skips rows whose
// value is nil, and returns rows with |score| > threshold in input order.
// The result is never nil. A nil group func puts every row in one group.
func Detect[T any](rows []T, value func(T) *float64, group func(T) []string, threshold float64) []Flagged[T] {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	groups := make(map[string][]member)
	keys := make(map[string][]string)
	for i, row := range rows {
		v := value(row)
		if v == nil || math.IsNaN(*v) {
			continue
		}
		var g []string
		if group != nil {
			g = group(row)
		}
		k := strings.Join(g, "\x1f")
		groups[k] = append(groups[k], member{index: i, value: *v})
		if _, ok := keys[k]; !ok {
			keys[k] = g
		}
	}

	out := make([]Flagged[T], 0)
	for k, members := range groups {
		values := make([]float64, len(members))
		for i, m := range members {
			values[i] = m.value
		}
		med := Median(values)
		mad := MAD(values, med)
		if mad == 0 {
			mad = madFloor
		}
		for _, m := range members {
			score := consistency * (m.value - med) / mad
			if math.Abs(score) > threshold {
				out = append(out, Flagged[T]{
					Index:  m.index,
					Row:    rows[m.index],
					Group:  keys[k],
					Value:  m.value,
					Score:  score,
					Median: med,
					MAD:    mad,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Median returns the median of values, or 0 for an empty slice.
// The input is not modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	s := make([]float64, n)
	copy(s, values)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// MAD returns the median absolute deviation of values around med.
func MAD(values []float64, med float64) float64 {
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	return Median(dev)
}
