package recon

import (
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/skuhub/internal/flow"
	"github.com/leapstack-labs/skuhub/internal/sku"
	"github.com/leapstack-labs/skuhub/internal/source"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

type invoiceRow struct {
	key       string
	row       int
	status    string
	weightErr *float64
	volumeErr *float64
	weight    *float64
	volume    *float64
	vendor    string
}

type flowRow struct {
	key      string
	row      int
	pkgs     *int
	weight   *float64
	volume   *float64
	sqm      *float64
	vendor   string
	finalLoc string
	flowDesc string
	code     *int
	badCode  string // raw cell when present but not an integer
	visits   []flow.RawVisit
	history  []int
}

type stockRow struct {
	key       string
	row       int
	firstSeen *time.Time
	lastSeen  *time.Time
	location  string
	status    string
	qty       *float64
}

// rowKey returns the normalized SKU of a row, recording a defect when the
// key is blank.
func rowKey(p *source.Parser, r source.Row) string {
	key := sku.NormalizeString(p.Key(r, source.ColSKU))
	if key == "" {
		p.Reject(r, source.ColSKU, "missing sku")
	}
	return key
}

func parseInvoice(t *source.Table, p *source.Parser) []invoiceRow {
	out := make([]invoiceRow, 0, t.Len())
	for _, r := range t.Rows {
		key := rowKey(p, r)
		if key == "" {
			continue
		}
		out = append(out, invoiceRow{
			key:       key,
			row:       r.Index,
			status:    strings.ToUpper(p.String(r, source.ColMatchStatus)),
			weightErr: p.Float(r, source.ColWeightError),
			volumeErr: p.Float(r, source.ColVolumeError),
			weight:    p.Float(r, source.ColInvoiceWeight),
			volume:    p.Float(r, source.ColInvoiceVolume),
			vendor:    p.String(r, source.ColVendor),
		})
	}
	return out
}

func parseFlow(t *source.Table, p *source.Parser, locations []string) []flowRow {
	locCols := make([]string, 0, len(locations))
	for _, loc := range locations {
		if t.HasColumn(loc) {
			locCols = append(locCols, loc)
		}
	}

	out := make([]flowRow, 0, t.Len())
	for _, r := range t.Rows {
		key := rowKey(p, r)
		if key == "" {
			continue
		}
		fr := flowRow{
			key:      key,
			row:      r.Index,
			pkgs:     p.Int(r, source.ColPackageCount),
			weight:   p.Float(r, source.ColWeight),
			volume:   p.Float(r, source.ColVolume),
			sqm:      p.Float(r, source.ColSQM),
			vendor:   p.String(r, source.ColVendor),
			finalLoc: p.String(r, source.ColFinalLocation),
			flowDesc: p.String(r, source.ColFlowDesc),
			code:     p.Int(r, source.ColFlowCode),
			history:  p.Codes(r, source.ColFlowHistory),
		}
		if fr.code == nil {
			fr.badCode = p.String(r, source.ColFlowCode)
		}
		for _, loc := range locCols {
			if v := p.String(r, loc); v != "" {
				fr.visits = append(fr.visits, flow.RawVisit{Location: loc, Value: v})
			}
		}
		out = append(out, fr)
	}
	return out
}

func parseStock(t *source.Table, p *source.Parser) []stockRow {
	out := make([]stockRow, 0, t.Len())
	for _, r := range t.Rows {
		key := rowKey(p, r)
		if key == "" {
			continue
		}
		out = append(out, stockRow{
			key:       key,
			row:       r.Index,
			firstSeen: p.Date(r, source.ColFirstSeen),
			lastSeen:  p.Date(r, source.ColLastSeen),
			location:  p.String(r, source.ColCurrentLocation),
			status:    p.String(r, source.ColCurrentStatus),
			qty:       p.Float(r, source.ColStockQty),
		})
	}
	return out
}

func keysOf[T any](rows []T, key func(T) string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = key(r)
	}
	return out
}

// firstByKey indexes rows by key. The first occurrence of a key wins.
func firstByKey[T any](rows []T, key func(T) string) map[string]*T {
	out := make(map[string]*T, len(rows))
	for i := range rows {
		k := key(rows[i])
		if _, ok := out[k]; !ok {
			out[k] = &rows[i]
		}
	}
	return out
}

// joined is one SKU after the full outer join, with the source rows it
// was built from.
type joined struct {
	rec     core.SKURecord
	invoice *invoiceRow
	flow    *flowRow
	stock   *stockRow
}

type tables struct {
	invoice *source.Table
	flow    *source.Table
	stock   *source.Table
}

// join merges the three sources over the union of their keys. Output is
// ordered by SKU.
func join(t tables, invoices []invoiceRow, flows []flowRow, stocks []stockRow) []*joined {
	invByKey := firstByKey(invoices, func(r invoiceRow) string { return r.key })
	flowByKey := firstByKey(flows, func(r flowRow) string { return r.key })
	stockByKey := firstByKey(stocks, func(r stockRow) string { return r.key })

	union := make(map[string]bool, len(flowByKey)+len(invByKey)+len(stockByKey))
	for k := range flowByKey {
		union[k] = true
	}
	for k := range invByKey {
		union[k] = true
	}
	for k := range stockByKey {
		union[k] = true
	}
	keys := make([]string, 0, len(union))
	for k := range union {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*joined, 0, len(keys))
	for _, k := range keys {
		j := &joined{
			rec:     core.SKURecord{SKU: k},
			invoice: invByKey[k],
			flow:    flowByKey[k],
			stock:   stockByKey[k],
		}
		j.fill(t)
		out = append(out, j)
	}
	return out
}

func (j *joined) fill(t tables) {
	rec := &j.rec
	provenance := func(tbl *source.Table, row int) {
		if rec.SourceFile == "" && rec.RowID == 0 {
			rec.SourceFile, rec.Sheet, rec.RowID = tbl.File, tbl.Sheet, row
		}
	}

	if f := j.flow; f != nil {
		rec.Sources = append(rec.Sources, core.SourceFlow)
		provenance(t.flow, f.row)
		rec.Weight, rec.Volume, rec.PackageCount = f.weight, f.volume, f.pkgs
		rec.SQM = f.sqm
		rec.Vendor = f.vendor
		rec.FinalLocation = f.finalLoc
		rec.FlowDesc = f.flowDesc
	}
	if inv := j.invoice; inv != nil {
		rec.Sources = append(rec.Sources, core.SourceInvoice)
		provenance(t.invoice, inv.row)
		rec.WeightError, rec.VolumeError = inv.weightErr, inv.volumeErr
		if rec.Vendor == "" {
			rec.Vendor = inv.vendor
		}
	}
	if s := j.stock; s != nil {
		rec.Sources = append(rec.Sources, core.SourceStock)
		provenance(t.stock, s.row)
		rec.FirstSeen, rec.LastSeen = s.firstSeen, s.lastSeen
		rec.CurrentLocation, rec.CurrentStatus = s.location, s.status
		rec.StockQty = s.qty
	}
}

func countFlow(rows []*joined) int {
	n := 0
	for _, j := range rows {
		if j.flow != nil {
			n++
		}
	}
	return n
}

// warehouse is the location used for tolerance lookup.
func (j *joined) warehouse() string {
	if j.rec.FinalLocation != "" {
		return j.rec.FinalLocation
	}
	return j.rec.CurrentLocation
}

// reference returns the weight and volume that tolerances are relative
// to: the flow report's measurements, else the invoice's.
func (j *joined) reference() (*float64, *float64) {
	w, v := j.rec.Weight, j.rec.Volume
	if j.invoice != nil {
		if w == nil {
			w = j.invoice.weight
		}
		if v == nil {
			v = j.invoice.volume
		}
	}
	return w, v
}

// target returns the invoiced weight and volume a remediation should hit.
// Declared invoice values win; otherwise they are rebuilt from the flow
// measurement plus the reported error.
func (j *joined) target() (float64, float64, bool) {
	var w, v *float64
	if j.invoice != nil {
		w, v = j.invoice.weight, j.invoice.volume
	}
	if w == nil && j.rec.Weight != nil && j.rec.WeightError != nil {
		tw := *j.rec.Weight + *j.rec.WeightError
		w = &tw
	}
	if v == nil && j.rec.Volume != nil && j.rec.VolumeError != nil {
		tv := *j.rec.Volume + *j.rec.VolumeError
		v = &tv
	}
	if w == nil || v == nil {
		return 0, 0, false
	}
	return *w, *v, true
}
