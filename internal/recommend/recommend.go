// Package recommend suggests unit combinations whose summed weight and
// volume come closest to an invoice line that failed tolerance matching.
package recommend

import (
	"math"
	"sort"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

// DefaultPoolCap bounds the number of units considered.
const DefaultPoolCap = 22

// sizeSpread is how far a combination size may deviate from the target count.
const sizeSpread = 2

// Unit is one physical package that may belong to a combination.
type Unit struct {
	SKU    string  `json:"sku,omitempty"`
	Weight float64 `json:"weight"`
	Volume float64 `json:"volume"`
}

type options struct {
	poolCap int
}

// Option customizes TopN.
type Option func(*options)

// WithPoolCap overrides the pool size cap. Values below 1 are ignored.
func WithPoolCap(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolCap = n
		}
	}
}

// TopN returns up to topN combinations of pool members ordered by
// ascending error |Σw-targetWeight| + |Σv-targetVolume|. Combination sizes
// range over [max(1, targetCount-2), targetCount+2]. Pools larger than the
// cap are truncated. Equal errors keep lexicographic enumeration order.
func TopN(pool []Unit, targetCount int, targetWeight, targetVolume float64, topN int, opts ...Option) []core.Combination {
	o := options{poolCap: DefaultPoolCap}
	for _, opt := range opts {
		opt(&o)
	}
	if topN <= 0 || len(pool) == 0 {
		return []core.Combination{}
	}
	if len(pool) > o.poolCap {
		pool = pool[:o.poolCap]
	}

	lo := max(1, targetCount-sizeSpread)
	hi := min(targetCount+sizeSpread, len(pool))

	best := make([]core.Combination, 0, topN+1)
	for r := lo; r <= hi; r++ {
		forEachCombination(len(pool), r, func(idx []int) {
			var w, v float64
			for _, i := range idx {
				w += pool[i].Weight
				v += pool[i].Volume
			}
			errScore := math.Abs(w-targetWeight) + math.Abs(v-targetVolume)
			if len(best) == topN && errScore >= best[len(best)-1].Error {
				return
			}
			c := core.Combination{
				Error:   errScore,
				Members: append([]int(nil), idx...),
				Weight:  w,
				Volume:  v,
			}
			// insert after all entries with error <= errScore to keep
			// enumeration order among ties
			pos := sort.Search(len(best), func(i int) bool { return best[i].Error > errScore })
			best = append(best, core.Combination{})
			copy(best[pos+1:], best[pos:])
			best[pos] = c
			if len(best) > topN {
				best = best[:topN]
			}
		})
	}
	return best
}

// forEachCombination calls fn with every size-r subset of [0, n) in
// lexicographic order. The slice passed to fn is reused.
func forEachCombination(n, r int, fn func([]int)) {
	if r <= 0 || r > n {
		return
	}
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := r - 1
		for i >= 0 && idx[i] == n-r+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < r; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
