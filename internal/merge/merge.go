// Package merge appends content-addressed SKU rows to the master store.
// Rows are never updated; a changed record is a new row with a new hash.
package merge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

// Audit and key columns excluded from the content hash.
const (
	ColHash     = "row_hash"
	ColRunID    = "run_id"
	ColMergedAt = "merged_at"
)

var excluded = map[string]bool{ColHash: true, ColRunID: true, ColMergedAt: true}

// Columns lists the content columns of the master table in storage order.
var Columns = []string{
	"sku",
	"weight",
	"volume",
	"package_count",
	"vendor",
	"final_location",
	"flow_code",
	"flow_desc",
	"first_seen",
	"last_seen",
	"stock_qty",
	"sqm",
	"current_location",
	"current_status",
	"invoice_match_status",
	"weight_error",
	"volume_error",
	"source_file",
	"sheet",
	"row_id",
	"sources",
}

// Values flattens a record into column values. Nulls stay nil.
func Values(rec core.SKURecord) map[string]any {
	return map[string]any{
		"sku":                  rec.SKU,
		"weight":               floatOrNil(rec.Weight),
		"volume":               floatOrNil(rec.Volume),
		"package_count":        intOrNil(rec.PackageCount),
		"vendor":               stringOrNil(rec.Vendor),
		"final_location":       stringOrNil(rec.FinalLocation),
		"flow_code":            intOrNil(rec.FlowCode),
		"flow_desc":            stringOrNil(rec.FlowDesc),
		"first_seen":           timeOrNil(rec.FirstSeen),
		"last_seen":            timeOrNil(rec.LastSeen),
		"stock_qty":            floatOrNil(rec.StockQty),
		"sqm":                  floatOrNil(rec.SQM),
		"current_location":     stringOrNil(rec.CurrentLocation),
		"current_status":       stringOrNil(rec.CurrentStatus),
		"invoice_match_status": ptrOrNil(rec.InvoiceMatchStatus),
		"weight_error":         floatOrNil(rec.WeightError),
		"volume_error":         floatOrNil(rec.VolumeError),
		"source_file":          stringOrNil(rec.SourceFile),
		"sheet":                stringOrNil(rec.Sheet),
		"row_id":               rec.RowID,
		"sources":              strings.Join(rec.Sources, ","),
	}
}

// Hash returns the sha256 of the row's content columns serialized as JSON
// with sorted keys. Key order of the input map does not matter.
func Hash(row map[string]any) string {
	content := make(map[string]any, len(row))
	for k, v := range row {
		if excluded[k] {
			continue
		}
		content[k] = canonical(v)
	}
	// encoding/json writes map keys in sorted order
	b, err := json.Marshal(content)
	if err != nil {
		b = []byte(fmt.Sprintf("%v", content))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// canonical makes values JSON-safe and representation independent.
func canonical(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(time.RFC3339Nano)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case *float64:
		if x == nil {
			return nil
		}
		return canonical(*x)
	case *int:
		if x == nil {
			return nil
		}
		return *x
	case *string:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}

// Row is a master row ready to insert.
type Row struct {
	Hash   string
	Values map[string]any
}

// Plan is the set of rows a merge would insert.
type Plan struct {
	Insert []Row
	// Unchanged counts incoming rows already present in the store.
	Unchanged int
	// Repeated counts incoming rows identical to an earlier incoming row.
	Repeated int
}

// NewPlan hashes every incoming row and keeps only unseen hashes. The
// existing set is not modified.
func NewPlan(existing map[string]bool, incoming []map[string]any) Plan {
	p := Plan{Insert: make([]Row, 0, len(incoming))}
	batch := make(map[string]bool, len(incoming))
	for _, values := range incoming {
		h := Hash(values)
		switch {
		case existing[h]:
			p.Unchanged++
		case batch[h]:
			p.Repeated++
		default:
			batch[h] = true
			p.Insert = append(p.Insert, Row{Hash: h, Values: values})
		}
	}
	return p
}

// Store persists master rows.
type Store interface {
	ExistingHashes(ctx context.Context) (map[string]bool, error)
	// InsertRows writes all rows in one transaction.
	InsertRows(ctx context.Context, runID string, rows []Row) error
}

// Result summarizes a merge.
type Result struct {
	Inserted  int
	Unchanged int
	Repeated  int
}

// Merger runs incremental merges against a Store.
type Merger struct {
	store  Store
	logger *slog.Logger
}

// New creates a Merger. If logger is nil, a discard logger is used.
func New(store Store, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Merger{store: store, logger: logger}
}

// Merge inserts records whose content hash is not already stored. All
// hashes are computed before anything is written.
func (m *Merger) Merge(ctx context.Context, runID string, records []core.SKURecord) (Result, error) {
	existing, err := m.store.ExistingHashes(ctx)
	if err != nil {
		return Result{}, &core.PersistenceError{Op: "read existing hashes", Err: err}
	}

	incoming := make([]map[string]any, len(records))
	for i, rec := range records {
		incoming[i] = Values(rec)
	}
	plan := NewPlan(existing, incoming)

	res := Result{Unchanged: plan.Unchanged, Repeated: plan.Repeated}
	if len(plan.Insert) == 0 {
		m.logger.Debug("merge is a no-op", slog.Int("unchanged", plan.Unchanged))
		return res, nil
	}

	if err := m.store.InsertRows(ctx, runID, plan.Insert); err != nil {
		return res, &core.PersistenceError{Op: "insert master rows", Err: err}
	}
	res.Inserted = len(plan.Insert)

	m.logger.Info("merged master rows",
		slog.Int("inserted", res.Inserted),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("repeated", res.Repeated))
	return res, nil
}

func floatOrNil(p *float64) any {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	return *p
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptrOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timeOrNil(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}
