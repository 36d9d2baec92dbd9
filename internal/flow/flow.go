// Package flow validates item movement through the logistics state machine
// Pre-Arrival(0) → Port(1) → Warehouse(2) → MOSB(3) → Site(4).
package flow

import (
	"fmt"
	"sort"
	"time"

	"github.com/leapstack-labs/skuhub/internal/config"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// DefaultTransitions is the legal code-pair table.
var DefaultTransitions = []config.Transition{
	{From: 0, To: 1},
	{From: 1, To: 2},
	{From: 2, To: 3},
	{From: 3, To: 4},
	{From: 1, To: 4},
}

// Reasons an item is invalid.
const (
	ReasonInvalidCode     = "invalid_code"
	ReasonUnparsableDate  = "unparsable_date"
	ReasonTimeReversal    = "time_reversal"
	ReasonIllegalSequence = "illegal_sequence"
)

// RawVisit is an unparsed visit date for one location column.
type RawVisit struct {
	Location string
	Value    string
}

// Item is one record to validate. Visits are given in location column order.
type Item struct {
	SKU     string
	Code    *int
	// BadCode is the raw flow code cell when it is present but not an
	// integer. Such items are invalid and never get a derived code.
	BadCode string
	Visits  []RawVisit
	History []int // optional explicit code history
}

// Issue explains why an item was invalidated.
type Issue struct {
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of a validation pass.
type Result struct {
	// Invalid holds each invalid SKU once, sorted.
	Invalid []string
	Issues  []Issue
}

// IsInvalid reports whether sku is in the invalid set.
func (r Result) IsInvalid(sku string) bool {
	i := sort.SearchStrings(r.Invalid, sku)
	return i < len(r.Invalid) && r.Invalid[i] == sku
}

// Reasons returns the issues recorded for one SKU.
func (r Result) Reasons(sku string) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.SKU == sku {
			out = append(out, is)
		}
	}
	return out
}

type pair struct{ from, to int }

// Validator checks flow codes, visit chronology and, optionally, the code
// sequence. It is immutable after construction.
type Validator struct {
	strict bool
	legal  map[pair]bool
	kinds  map[string]int
}

// New builds a Validator from configuration. An empty transition list
// falls back to DefaultTransitions.
func New(cfg config.FlowConfig) *Validator {
	transitions := cfg.LegalTransitions
	if len(transitions) == 0 {
		transitions = DefaultTransitions
	}
	v := &Validator{
		strict: cfg.StrictSequence,
		legal:  make(map[pair]bool, len(transitions)),
		kinds:  Kinds(cfg.Locations),
	}
	for _, t := range transitions {
		v.legal[pair{t.From, t.To}] = true
	}
	return v
}

// Kinds maps each configured location to its flow code.
func Kinds(locations []config.LocationConfig) map[string]int {
	kinds := make(map[string]int, len(locations))
	for _, l := range locations {
		if code, ok := core.ParseFlowKind(l.Kind); ok {
			kinds[l.Name] = code
		}
	}
	return kinds
}

// Legal reports whether a single transition is allowed.
func (v *Validator) Legal(from, to int) bool {
	return v.legal[pair{from, to}]
}

// Validate returns the set of invalid SKUs. Items are not modified.
func (v *Validator) Validate(items []Item) Result {
	invalid := make(map[string]bool)
	var issues []Issue
	flag := func(sku, reason, detail string) {
		invalid[sku] = true
		issues = append(issues, Issue{SKU: sku, Reason: reason, Detail: detail})
	}

	for _, it := range items {
		visits, bad := parseVisits(it.Visits)
		for _, b := range bad {
			flag(it.SKU, ReasonUnparsableDate, b)
		}

		switch {
		case it.Code != nil && !core.ValidFlowCode(*it.Code):
			flag(it.SKU, ReasonInvalidCode, fmt.Sprintf("flow code %d", *it.Code))
		case it.Code == nil && it.BadCode != "":
			flag(it.SKU, ReasonInvalidCode, fmt.Sprintf("flow code %q", it.BadCode))
		}

		for i := 1; i < len(visits); i++ {
			prev, cur := visits[i-1], visits[i]
			if cur.At.Before(prev.At) {
				flag(it.SKU, ReasonTimeReversal, fmt.Sprintf("%s %s before %s %s",
					cur.Warehouse, cur.At.Format(time.DateOnly), prev.Warehouse, prev.At.Format(time.DateOnly)))
				break
			}
		}

		if v.strict && len(bad) == 0 {
			seq := it.History
			if len(seq) == 0 {
				seq = v.sequence(visits)
			}
			if from, to, ok := v.firstIllegal(seq); !ok {
				flag(it.SKU, ReasonIllegalSequence, fmt.Sprintf("%d->%d", from, to))
			}
		}
	}

	out := Result{Invalid: make([]string, 0, len(invalid)), Issues: issues}
	for sku := range invalid {
		out.Invalid = append(out.Invalid, sku)
	}
	sort.Strings(out.Invalid)
	return out
}

// sequence rebuilds the code history from visits, starting at pre-arrival.
func (v *Validator) sequence(visits []core.Visit) []int {
	seq := []int{core.FlowPreArrival}
	for _, vis := range visits {
		code, ok := v.kinds[vis.Warehouse]
		if !ok || code == seq[len(seq)-1] {
			continue
		}
		seq = append(seq, code)
	}
	return seq
}

func (v *Validator) firstIllegal(seq []int) (int, int, bool) {
	for i := 1; i < len(seq); i++ {
		if seq[i] == seq[i-1] {
			continue
		}
		if !v.Legal(seq[i-1], seq[i]) {
			return seq[i-1], seq[i], false
		}
	}
	return 0, 0, true
}

// parseVisits keeps present dates in column order and returns the
// descriptions of any cells that could not be parsed.
func parseVisits(raw []RawVisit) ([]core.Visit, []string) {
	var visits []core.Visit
	var bad []string
	for _, rv := range raw {
		t, ok, err := core.ParseDate(rv.Value)
		if err != nil {
			bad = append(bad, fmt.Sprintf("%s=%q", rv.Location, rv.Value))
			continue
		}
		if ok {
			visits = append(visits, core.Visit{Warehouse: rv.Location, At: t})
		}
	}
	return visits, bad
}

// ParseVisits converts raw visit cells into visits, skipping blanks and
// cells that do not parse.
func ParseVisits(raw []RawVisit) []core.Visit {
	visits, _ := parseVisits(raw)
	return visits
}

// Derive computes a flow code from visit history: the state of the most
// recent visit, or pre-arrival when nothing was visited. Equal timestamps
// resolve to the later column.
func Derive(visits []core.Visit, kinds map[string]int) int {
	code := core.FlowPreArrival
	var latest time.Time
	seen := false
	for _, v := range visits {
		k, ok := kinds[v.Warehouse]
		if !ok {
			continue
		}
		if !seen || !v.At.Before(latest) {
			latest, code, seen = v.At, k, true
		}
	}
	return code
}

// Describe names a flow code.
func Describe(code int) string {
	return core.FlowName(code)
}
