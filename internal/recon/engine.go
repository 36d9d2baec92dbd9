// Package recon runs the reconciliation pipeline: it loads the invoice,
// flow and stock datasets, joins them per SKU, applies the quality layer
// and persists the results in one transaction.
package recon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/skuhub/internal/config"
	"github.com/leapstack-labs/skuhub/internal/flow"
	"github.com/leapstack-labs/skuhub/internal/merge"
	"github.com/leapstack-labs/skuhub/internal/occupancy"
	"github.com/leapstack-labs/skuhub/internal/outlier"
	"github.com/leapstack-labs/skuhub/internal/recommend"
	"github.com/leapstack-labs/skuhub/internal/sku"
	"github.com/leapstack-labs/skuhub/internal/source"
	"github.com/leapstack-labs/skuhub/internal/store"
	"github.com/leapstack-labs/skuhub/internal/tolerance"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// Deps are the I/O boundaries of a run.
type Deps struct {
	Invoice source.Source
	Flow    source.Source
	Stock   source.Source

	// Store receives the master rows and artifacts. A nil store makes the
	// run a dry run.
	Store *store.Store
	// Runs records the run and its KPIs (optional).
	Runs core.RunStore

	// Environment is recorded in the run log (defaults to "dev").
	Environment string
	// Now is the clock (defaults to time.Now). Occupancy runs through its day.
	Now func() time.Time
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine reconciles the three sources. It is safe to call Run repeatedly
// but not concurrently.
type Engine struct {
	cfg       *config.Settings
	deps      Deps
	resolver  *tolerance.Resolver
	validator *flow.Validator
	kinds     map[string]int
	locations []string
	logger    *slog.Logger
}

// Report is everything a run produced.
type Report struct {
	Run        *core.Run
	RunID      string
	Records    []core.SKURecord
	Exceptions []core.Exception
	Outliers   []core.OutlierRecord
	Occupancy  []core.OccupancyRecord
	Flow       flow.Result
	Defects    []core.InputDefect
	Joins      map[string]sku.JoinReport
	Quality    Quality
	Merge      merge.Result
	KPI        *core.KPI
}

// New creates an engine. Invalid tolerance configuration is a ConfigError.
func New(cfg *config.Settings, deps Deps) (*Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.Environment == "" {
		deps.Environment = "dev"
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	resolver, err := tolerance.New(cfg.Tolerance)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		deps:      deps,
		resolver:  resolver,
		validator: flow.New(cfg.Flow),
		kinds:     flow.Kinds(cfg.Flow.Locations),
		locations: cfg.Flow.LocationNames(),
		logger:    logger,
	}, nil
}

// Run executes one reconciliation. Input problems degrade the run and are
// reported as KPI warnings; persistence failures fail it and leave the
// stored master untouched.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	started := e.deps.Now()
	kpi := newKPI()
	report := &Report{KPI: kpi}

	if e.deps.Runs != nil {
		run, err := e.deps.Runs.CreateRun(e.deps.Environment)
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		report.RunID = run.ID
	} else {
		report.RunID = uuid.NewString()
	}
	e.logger.Info("starting reconciliation", "run_id", report.RunID, "environment", e.deps.Environment)

	runErr := e.execute(ctx, report, started)
	kpi.ExecutionSeconds = e.deps.Now().Sub(started).Seconds()

	if runErr != nil {
		e.logger.Error("reconciliation failed", "run_id", report.RunID, "error", runErr.Error())
	} else {
		e.logger.Info("reconciliation completed",
			"run_id", report.RunID,
			"records", kpi.TotalRecords,
			"pass", kpi.PassCount,
			"fail", kpi.FailCount,
			"warnings", len(kpi.Warnings))
	}

	if e.deps.Runs != nil {
		status, msg := core.RunStatusCompleted, ""
		if runErr != nil {
			status, msg = core.RunStatusFailed, runErr.Error()
		}
		if err := e.deps.Runs.CompleteRun(report.RunID, status, msg, kpi); err != nil {
			e.logger.Warn("failed to complete run", "run_id", report.RunID, "error", err.Error())
		}
		run, err := e.deps.Runs.GetRun(report.RunID)
		if err != nil {
			e.logger.Warn("failed to read back run", "run_id", report.RunID, "error", err.Error())
		}
		report.Run = run
	}
	return report, runErr
}

func (e *Engine) execute(ctx context.Context, report *Report, started time.Time) error {
	kpi := report.KPI

	t := tables{
		invoice: e.load(ctx, e.deps.Invoice, core.SourceInvoice, kpi),
		flow:    e.load(ctx, e.deps.Flow, core.SourceFlow, kpi),
		stock:   e.load(ctx, e.deps.Stock, core.SourceStock, kpi),
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	invP, flowP, stockP := source.NewParser(core.SourceInvoice), source.NewParser(core.SourceFlow), source.NewParser(core.SourceStock)
	invoices := parseInvoice(t.invoice, invP)
	flows := parseFlow(t.flow, flowP, e.locations)
	stocks := parseStock(t.stock, stockP)
	report.Defects = append(append(append([]core.InputDefect{}, invP.Defects...), flowP.Defects...), stockP.Defects...)
	kpi.InputDefects = len(report.Defects)
	if len(report.Defects) > 0 {
		e.logger.Warn("input defects", "count", len(report.Defects))
	}

	invKeys := keysOf(invoices, func(r invoiceRow) string { return r.key })
	flowKeys := keysOf(flows, func(r flowRow) string { return r.key })
	stockKeys := keysOf(stocks, func(r stockRow) string { return r.key })
	report.Joins = map[string]sku.JoinReport{
		core.SourceFlow + "/" + core.SourceInvoice: sku.CheckJoin(flowKeys, invKeys),
		core.SourceFlow + "/" + core.SourceStock:   sku.CheckJoin(flowKeys, stockKeys),
	}
	sourceRows, duplicates := 0, 0
	for _, side := range []struct {
		name string
		keys []string
	}{
		{core.SourceInvoice, invKeys},
		{core.SourceFlow, flowKeys},
		{core.SourceStock, stockKeys},
	} {
		name := side.name
		rep := sku.Duplicates(side.keys)
		kpi.SourceDuplicates[name] = rep.Duplicates
		sourceRows += rep.Rows
		duplicates += rep.Duplicates
		if rep.Duplicates > 0 {
			e.logger.Warn("duplicate keys before join", "source", name, "duplicates", rep.Duplicates)
			kpi.Warn(fmt.Sprintf("%s: %d duplicate SKU rows ignored (first occurrence kept)", name, rep.Duplicates))
		}
	}

	rows := join(t, invoices, flows, stocks)
	report.Flow = e.applyFlow(rows)
	e.applyTolerance(rows)

	records := make([]core.SKURecord, len(rows))
	for i, j := range rows {
		records[i] = j.rec
	}
	report.Records = records

	report.Outliers = e.detectOutliers(report.RunID, records)
	report.Exceptions = e.buildExceptions(report.RunID, rows, report.Flow)
	report.Occupancy = e.convertOccupancy(records, started)

	report.Quality = measure(records, sourceRows, duplicates, countFlow(rows), len(report.Flow.Invalid))
	for _, w := range report.Quality.Check(e.cfg.Quality) {
		e.logger.Warn("quality threshold breached", "detail", w)
		kpi.Warn(w)
	}

	summarize(kpi, report)

	if err := e.persist(ctx, report); err != nil {
		return err
	}
	kpi.RowsInserted = report.Merge.Inserted
	kpi.RowsUnchanged = report.Merge.Unchanged
	return nil
}

// load reads one source. A source that fails or lacks required columns is
// replaced by an empty table so the run can continue.
func (e *Engine) load(ctx context.Context, src source.Source, name string, kpi *core.KPI) *source.Table {
	if src == nil {
		kpi.Warn(fmt.Sprintf("%s: no source configured", name))
		return source.Empty(name)
	}

	t, err := src.Load(ctx)
	if err != nil {
		e.logger.Warn("source unavailable", "source", name, "error", err.Error())
		kpi.Warn(fmt.Sprintf("%s: %v", name, err))
		return source.Empty(name)
	}
	if missing := source.Missing(t, e.locations); len(missing) > 0 {
		e.logger.Warn("source missing required columns", "source", name, "missing", missing)
		kpi.Warn(fmt.Sprintf("%s: missing required columns %s", name, strings.Join(missing, ", ")))
		return source.Empty(name)
	}

	kpi.SourceCounts[name] = t.Len()
	e.logger.Debug("loaded source", "source", name, "rows", t.Len(), "file", t.File)
	return t
}

// applyFlow validates flow rows and fills flow code, description and
// visits on the joined records.
func (e *Engine) applyFlow(rows []*joined) flow.Result {
	items := make([]flow.Item, 0, len(rows))
	for _, j := range rows {
		if j.flow == nil {
			continue
		}
		items = append(items, flow.Item{
			SKU:     j.rec.SKU,
			Code:    j.flow.code,
			BadCode: j.flow.badCode,
			Visits:  j.flow.visits,
			History: j.flow.history,
		})
	}
	res := e.validator.Validate(items)

	for _, j := range rows {
		if j.flow == nil {
			continue
		}
		rec := &j.rec
		rec.Visits = flow.ParseVisits(j.flow.visits)

		switch code := j.flow.code; {
		case code == nil && j.flow.badCode != "":
			// malformed codes stay unset
		case code == nil:
			derived := flow.Derive(rec.Visits, e.kinds)
			rec.FlowCode = &derived
		case core.ValidFlowCode(*code):
			c := *code
			rec.FlowCode = &c
		}
		if rec.FlowCode != nil && rec.FlowDesc == "" {
			rec.FlowDesc = flow.Describe(*rec.FlowCode)
		}
	}

	if n := len(res.Invalid); n > 0 {
		e.logger.Warn("flow validation flagged records", "invalid", n)
	}
	return res
}

// applyTolerance sets the invoice match status: a tolerance verdict when
// both errors are known, else the ledger's own status.
func (e *Engine) applyTolerance(rows []*joined) {
	for _, j := range rows {
		rec := &j.rec
		w, v := j.reference()
		if verdict, ok := e.resolver.Evaluate(rec.Vendor, j.warehouse(), w, v, rec.WeightError, rec.VolumeError); ok {
			status := verdict.Status
			rec.InvoiceMatchStatus = &status
			continue
		}
		if j.invoice != nil && j.invoice.status != "" {
			status := j.invoice.status
			rec.InvoiceMatchStatus = &status
		}
	}
}

func (e *Engine) groupKeys(rec core.SKURecord) []string {
	keys := make([]string, len(e.cfg.Outliers.GroupBy))
	for i, g := range e.cfg.Outliers.GroupBy {
		switch g {
		case "vendor":
			keys[i] = e.resolver.VendorCode(rec.Vendor)
		case "final_location":
			keys[i] = rec.FinalLocation
		case "flow_code":
			if rec.FlowCode != nil {
				keys[i] = fmt.Sprint(*rec.FlowCode)
			}
		}
	}
	return keys
}

func (e *Engine) detectOutliers(runID string, records []core.SKURecord) []core.OutlierRecord {
	out := []core.OutlierRecord{}
	metrics := []struct {
		name  string
		value func(core.SKURecord) *float64
	}{
		{"weight", func(r core.SKURecord) *float64 { return r.Weight }},
		{"volume", func(r core.SKURecord) *float64 { return r.Volume }},
	}
	for _, m := range metrics {
		for _, f := range outlier.Detect(records, m.value, e.groupKeys, e.cfg.Outliers.Threshold) {
			out = append(out, core.OutlierRecord{
				RunID:    runID,
				SKU:      f.Row.SKU,
				Metric:   m.name,
				Value:    f.Value,
				Score:    f.Score,
				Vendor:   f.Row.Vendor,
				Location: f.Row.FinalLocation,
			})
		}
	}
	return out
}

// buildExceptions emits one exception per failed match, with alternative
// package combinations, and one per flow-invalid SKU.
func (e *Engine) buildExceptions(runID string, rows []*joined, fr flow.Result) []core.Exception {
	pools := e.pools(rows)
	out := []core.Exception{}

	for _, j := range rows {
		rec := &j.rec
		if rec.InvoiceMatchStatus != nil && *rec.InvoiceMatchStatus == core.MatchFail {
			out = append(out, core.Exception{
				RunID:        runID,
				SKU:          rec.SKU,
				Reason:       core.ReasonToleranceFail,
				WeightError:  rec.WeightError,
				VolumeError:  rec.VolumeError,
				Alternatives: e.alternatives(j, pools[e.resolver.VendorCode(rec.Vendor)]),
			})
		}
		if fr.IsInvalid(rec.SKU) {
			issues := fr.Reasons(rec.SKU)
			details := make([]string, len(issues))
			for i, is := range issues {
				details[i] = is.Reason
				if is.Detail != "" {
					details[i] += ": " + is.Detail
				}
			}
			out = append(out, core.Exception{
				RunID:        runID,
				SKU:          rec.SKU,
				Reason:       core.ReasonFlowInvalid,
				WeightError:  rec.WeightError,
				VolumeError:  rec.VolumeError,
				Alternatives: []core.Combination{},
				Details:      strings.Join(details, "; "),
			})
		}
	}
	return out
}

// pools groups measured flow records by vendor code, in SKU order.
func (e *Engine) pools(rows []*joined) map[string][]recommend.Unit {
	pools := make(map[string][]recommend.Unit)
	for _, j := range rows {
		rec := &j.rec
		if j.flow == nil || rec.Weight == nil || rec.Volume == nil {
			continue
		}
		code := e.resolver.VendorCode(rec.Vendor)
		pools[code] = append(pools[code], recommend.Unit{SKU: rec.SKU, Weight: *rec.Weight, Volume: *rec.Volume})
	}
	return pools
}

func (e *Engine) alternatives(j *joined, pool []recommend.Unit) []core.Combination {
	tw, tv, ok := j.target()
	if !ok {
		return []core.Combination{}
	}
	candidates := make([]recommend.Unit, 0, len(pool))
	for _, u := range pool {
		if u.SKU != j.rec.SKU {
			candidates = append(candidates, u)
		}
	}
	k := 1
	if j.rec.PackageCount != nil && *j.rec.PackageCount > 0 {
		k = *j.rec.PackageCount
	}

	combos := recommend.TopN(candidates, k, tw, tv, e.cfg.Recommend.TopN, recommend.WithPoolCap(e.cfg.Recommend.PoolCap))
	for i := range combos {
		skus := make([]string, len(combos[i].Members))
		for m, idx := range combos[i].Members {
			skus[m] = candidates[idx].SKU
		}
		combos[i].SKUs = skus
	}
	return combos
}

func (e *Engine) convertOccupancy(records []core.SKURecord, now time.Time) []core.OccupancyRecord {
	items := make([]occupancy.Item, 0, len(records))
	for _, r := range records {
		if len(r.Visits) == 0 {
			continue
		}
		items = append(items, occupancy.Item{SKU: r.SKU, Packages: r.PackageCount, Visits: r.Visits})
	}
	return occupancy.Convert(items, occupancy.Config{
		OccupancyConfig: e.cfg.Occupancy,
		Today:           core.Day(now),
	})
}

// persist writes master rows, exceptions, outliers and occupancy in one
// transaction. A dry run only logs.
func (e *Engine) persist(ctx context.Context, report *Report) error {
	if e.deps.Store == nil {
		e.logger.Info("dry run, skipping persistence", "records", len(report.Records))
		return nil
	}

	var res merge.Result
	err := e.deps.Store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		if res, err = merge.New(tx, e.logger).Merge(ctx, report.RunID, report.Records); err != nil {
			return err
		}
		if err := tx.InsertExceptions(ctx, report.Exceptions); err != nil {
			return &core.PersistenceError{Op: "write exceptions", Err: err}
		}
		if err := tx.InsertOutliers(ctx, report.Outliers); err != nil {
			return &core.PersistenceError{Op: "write outliers", Err: err}
		}
		if err := tx.ReplaceOccupancy(ctx, report.Occupancy); err != nil {
			return &core.PersistenceError{Op: "write occupancy", Err: err}
		}
		if err := tx.ReplaceVisits(ctx, report.RunID, report.Records); err != nil {
			return &core.PersistenceError{Op: "write visits", Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}
	report.Merge = res
	return nil
}
