package recon

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/skuhub/internal/config"
	"github.com/leapstack-labs/skuhub/internal/flow"
	"github.com/leapstack-labs/skuhub/internal/source"
	"github.com/leapstack-labs/skuhub/internal/state"
	"github.com/leapstack-labs/skuhub/internal/store"
	"github.com/leapstack-labs/skuhub/internal/testutil"
	"github.com/leapstack-labs/skuhub/pkg/adapter"
	"github.com/leapstack-labs/skuhub/pkg/adapters/duckdb"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

var (
	flowHeader    = []string{"SKU", "Pkg", "GW", "CBM", "Vendor", "flow_code", "final_location", "Port", "DSV Indoor", "MOSB", "SHU", "flow_history"}
	invoiceHeader = []string{"Case No.", "match_status", "weight_error", "volume_error", "invoice_weight", "invoice_volume"}
	stockHeader   = []string{"SKU", "first_seen", "last_seen", "warehouse", "status"}

	fixedNow = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
)

type fixture struct {
	cfg   *config.Settings
	store *store.Store
	db    *duckdb.Adapter
	runs  *state.SQLiteStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	db := duckdb.New(testutil.NewTestLogger(t))
	require.NoError(t, db.Connect(context.Background(), adapter.Config{Path: ":memory:"}))
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db, testutil.NewTestLogger(t))
	require.NoError(t, st.Init(context.Background()))

	runs := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, runs.Open(":memory:"))
	t.Cleanup(func() { _ = runs.Close() })

	return &fixture{cfg: cfg, store: st, db: db, runs: runs}
}

func (f *fixture) engine(t *testing.T, inv, fl, stock source.Source) *Engine {
	t.Helper()
	e, err := New(f.cfg, Deps{
		Invoice: inv,
		Flow:    fl,
		Stock:   stock,
		Store:   f.store,
		Runs:    f.runs,
		Now:     func() time.Time { return fixedNow },
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return e
}

func locations(cfg *config.Settings) []string {
	return cfg.Flow.LocationNames()
}

func x001Sources(cfg *config.Settings) (source.Source, source.Source, source.Source) {
	locs := locations(cfg)
	fl := source.NewMemory(core.SourceFlow, flowHeader, [][]string{
		{"X-001", "1", "100", "2.0", "HITACHI", "4", "SHU", "2024-01-01", "2024-01-05", "", "2024-01-10", "0,1,2,4"},
	}, locs)
	inv := source.NewMemory(core.SourceInvoice, invoiceHeader, [][]string{
		{"x-001", "", "5", "0.2", "", ""},
	}, locs)
	stock := source.NewMemory(core.SourceStock, stockHeader, [][]string{
		{" X-001 ", "2024-01-05", "2024-01-10", "SHU", "delivered"},
	}, locs)
	return inv, fl, stock
}

func TestRun_X001(t *testing.T) {
	f := setup(t)
	f.cfg.Occupancy.Rates = map[string]decimal.Decimal{"DSV Indoor": decimal.NewFromInt(2)}
	inv, fl, stock := x001Sources(f.cfg)

	report, err := f.engine(t, inv, fl, stock).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Records, 1)
	rec := report.Records[0]
	assert.Equal(t, "X-001", rec.SKU)
	require.NotNil(t, rec.InvoiceMatchStatus)
	assert.Equal(t, core.MatchPass, *rec.InvoiceMatchStatus)
	assert.Equal(t, 4, *rec.FlowCode)
	assert.Equal(t, "Site", rec.FlowDesc)
	assert.Equal(t, []string{core.SourceFlow, core.SourceInvoice, core.SourceStock}, rec.Sources)
	assert.Equal(t, "memory:flow", rec.SourceFile)
	assert.Equal(t, 1, rec.RowID)
	assert.Equal(t, "SHU", rec.CurrentLocation)

	assert.Empty(t, report.Flow.Invalid)
	assert.Empty(t, report.Exceptions)
	assert.Empty(t, report.Outliers)
	assert.Empty(t, report.Defects)

	// DSV Indoor from Jan 5 through Jan 9
	require.Len(t, report.Occupancy, 5)
	assert.Equal(t, "DSV Indoor", report.Occupancy[0].Warehouse)
	assert.True(t, report.Occupancy[4].CumulativeCharge.Equal(decimal.NewFromInt(10)))

	kpi := report.KPI
	assert.Equal(t, 1, kpi.TotalRecords)
	assert.Equal(t, 1, kpi.PassCount)
	assert.Equal(t, 0, kpi.FlowInvalid)
	assert.InDelta(t, 1.0, kpi.PassRate, 1e-12)
	assert.Equal(t, 1, kpi.RowsInserted)
	assert.Equal(t, 5, kpi.OccupancyRows)
	assert.Equal(t, map[string]int{core.SourceInvoice: 1, core.SourceFlow: 1, core.SourceStock: 1}, kpi.SourceCounts)
	assert.Empty(t, kpi.Warnings)

	require.NotNil(t, report.Run)
	assert.Equal(t, core.RunStatusCompleted, report.Run.Status)
	require.NotNil(t, report.Run.KPI)
	assert.Equal(t, 1, report.Run.KPI.PassCount)

	live, err := f.store.Live(context.Background())
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, core.MatchPass, *live[0].InvoiceMatchStatus)

	occ, err := f.store.Occupancy(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, occ, 5)

	cf, err := f.store.Caseflow(context.Background(), "X-001", 0)
	require.NoError(t, err)
	visited := []string{}
	for _, e := range cf.Events {
		if e.Kind == store.EventVisit {
			visited = append(visited, e.Location)
		}
	}
	assert.Equal(t, []string{"Port", "DSV Indoor", "SHU"}, visited)
	assert.Equal(t, 1, cf.Stats.CompletedFlows)
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	f := setup(t)
	inv, fl, stock := x001Sources(f.cfg)
	e := f.engine(t, inv, fl, stock)

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	report, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.KPI.RowsInserted)
	assert.Equal(t, 1, report.KPI.RowsUnchanged)

	stats, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalRows)

	runs, err := f.runs.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRun_DegradedSources(t *testing.T) {
	f := setup(t)
	locs := locations(f.cfg)
	_, fl, _ := x001Sources(f.cfg)
	inv := source.Failing(core.SourceInvoice, errors.New("file locked"))
	stock := source.NewMemory(core.SourceStock, []string{"SKU", "qty"}, [][]string{{"X-001", "3"}}, locs)

	report, err := f.engine(t, inv, fl, stock).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Records, 1)
	rec := report.Records[0]
	assert.Nil(t, rec.InvoiceMatchStatus)
	assert.Nil(t, rec.FirstSeen)
	assert.Equal(t, []string{core.SourceFlow}, rec.Sources)

	warnings := report.KPI.Warnings
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "invoice: file locked")
	assert.Contains(t, warnings[1], "stock: missing required columns")
	assert.Equal(t, 1, report.KPI.NoStatus)
}

func TestRun_FailureWithAlternatives(t *testing.T) {
	f := setup(t)
	locs := locations(f.cfg)
	fl := source.NewMemory(core.SourceFlow, flowHeader, [][]string{
		{"S-A", "1", "10", "0.1", "SIEMENS", "2", "DSV Indoor", "", "2024-01-20", "", "", ""},
		{"S-B", "1", "20", "0.2", "SIEMENS", "2", "DSV Indoor", "", "2024-01-20", "", "", ""},
		{"S-C", "1", "30", "0.3", "SIEMENS", "2", "DSV Indoor", "", "2024-01-20", "", "", ""},
		{"S-F", "1", "25", "0.25", "SIEMENS", "2", "DSV Indoor", "", "2024-01-20", "", "", ""},
		{"H-1", "1", "50", "0.5", "HITACHI", "2", "DSV Indoor", "", "2024-01-20", "", "", ""},
	}, locs)
	inv := source.NewMemory(core.SourceInvoice, invoiceHeader, [][]string{
		{"S-F", "", "25", "0.25", "50", "0.5"},
		{"S-A", "", "0.5", "0.001", "", ""},
	}, locs)

	report, err := f.engine(t, inv, fl, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.KPI.PassCount)
	assert.Equal(t, 1, report.KPI.FailCount)
	require.Len(t, report.Exceptions, 1)

	ex := report.Exceptions[0]
	assert.Equal(t, "S-F", ex.SKU)
	assert.Equal(t, core.ReasonToleranceFail, ex.Reason)
	require.Len(t, ex.Alternatives, 3)
	assert.InDelta(t, 0, ex.Alternatives[0].Error, 1e-9)
	assert.Equal(t, []string{"S-B", "S-C"}, ex.Alternatives[0].SKUs)
	assert.Equal(t, []string{"S-A", "S-C"}, ex.Alternatives[1].SKUs)
	for _, alt := range ex.Alternatives {
		assert.NotContains(t, alt.SKUs, "S-F")
		assert.NotContains(t, alt.SKUs, "H-1")
	}

	stored, err := f.store.Exceptions(context.Background(), report.RunID, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, ex.Alternatives, stored[0].Alternatives)

	assert.Contains(t, report.KPI.Warnings, "stock: no source configured")
}

func TestRun_FlowChecks(t *testing.T) {
	f := setup(t)
	locs := locations(f.cfg)
	fl := source.NewMemory(core.SourceFlow, flowHeader, [][]string{
		// arrived at the warehouse before the port
		{"R-1", "2", "10", "0.1", "HITACHI", "2", "DSV Indoor", "2024-01-10", "2024-01-05", "", "", ""},
		// no code: derived from the latest visit
		{"D-1", "1", "10", "0.1", "HITACHI", "", "MOSB", "2024-01-01", "", "2024-01-03", "", ""},
		{"U-1", "1", "10", "0.1", "HITACHI", "9", "DSV Indoor", "", "31/31/2024", "", "", ""},
		// present but not an integer: never derived
		{"M-1", "1", "10", "0.1", "HITACHI", "2.5", "DSV Indoor", "2024-01-01", "2024-01-03", "", "", ""},
		{"M-2", "1", "10", "0.1", "HITACHI", "abc", "MOSB", "2024-01-01", "", "2024-01-03", "", ""},
	}, locs)

	report, err := f.engine(t, nil, fl, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"M-1", "M-2", "R-1", "U-1"}, report.Flow.Invalid)
	assert.Equal(t, 4, report.KPI.FlowInvalid)

	byKey := map[string]core.SKURecord{}
	for _, r := range report.Records {
		byKey[r.SKU] = r
	}
	require.NotNil(t, byKey["D-1"].FlowCode)
	assert.Equal(t, core.FlowMOSB, *byKey["D-1"].FlowCode)
	assert.Equal(t, "MOSB", byKey["D-1"].FlowDesc)
	assert.Nil(t, byKey["U-1"].FlowCode)
	assert.Nil(t, byKey["M-1"].FlowCode)
	assert.Nil(t, byKey["M-2"].FlowCode)

	exceptions := map[string]core.Exception{}
	for _, ex := range report.Exceptions {
		exceptions[ex.SKU] = ex
	}
	require.Len(t, exceptions, 4)
	assert.Equal(t, core.ReasonFlowInvalid, exceptions["R-1"].Reason)
	assert.Contains(t, exceptions["R-1"].Details, flow.ReasonTimeReversal)
	assert.Contains(t, exceptions["U-1"].Details, flow.ReasonInvalidCode)
	assert.Contains(t, exceptions["U-1"].Details, flow.ReasonUnparsableDate)
	assert.Contains(t, exceptions["M-1"].Details, flow.ReasonInvalidCode)
	assert.Contains(t, exceptions["M-2"].Details, flow.ReasonInvalidCode)
}

func TestRun_LedgerStatusFallback(t *testing.T) {
	f := setup(t)
	locs := locations(f.cfg)
	inv := source.NewMemory(core.SourceInvoice, invoiceHeader, [][]string{
		{"L-1", "pass", "", "", "", ""},
		{"L-2", "", "", "", "", ""},
		{"", "FAIL", "1", "1", "", ""},
		{"nan", "FAIL", "1", "1", "", ""},
		// real keys that look like null markers
		{"NA", "pass", "", "", "", ""},
	}, locs)

	report, err := f.engine(t, inv, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Records, 3)
	assert.Equal(t, core.MatchPass, *report.Records[0].InvoiceMatchStatus)
	assert.Nil(t, report.Records[1].InvoiceMatchStatus)
	assert.Equal(t, "NA", report.Records[2].SKU)
	require.Len(t, report.Defects, 2)
	assert.Equal(t, "missing sku", report.Defects[0].Reason)
	assert.Equal(t, "missing sku", report.Defects[1].Reason)
}

func TestRun_DuplicateKeys(t *testing.T) {
	f := setup(t)
	locs := locations(f.cfg)
	inv := source.NewMemory(core.SourceInvoice, invoiceHeader, [][]string{
		{"0012", "", "1", "0.01", "", ""},
		{"12", "", "99", "9", "", ""},
	}, locs)

	report, err := f.engine(t, inv, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Records, 1)
	assert.Equal(t, "12", report.Records[0].SKU)
	assert.InDelta(t, 1.0, *report.Records[0].WeightError, 1e-12)
	assert.Equal(t, 1, report.KPI.SourceDuplicates[core.SourceInvoice])
	assert.Contains(t, strings.Join(report.KPI.Warnings, "\n"), "invoice: 1 duplicate SKU rows")
}

func TestRun_PersistenceFailure(t *testing.T) {
	f := setup(t)
	inv, fl, stock := x001Sources(f.cfg)
	e := f.engine(t, inv, fl, stock)
	require.NoError(t, f.db.Close())

	report, err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsPersistenceError(err))

	require.NotNil(t, report.Run)
	assert.Equal(t, core.RunStatusFailed, report.Run.Status)
	assert.NotEmpty(t, report.Run.Error)
	assert.Zero(t, report.KPI.RowsInserted)
}

// unreadableRuns records runs but cannot read them back.
type unreadableRuns struct {
	*state.SQLiteStore
}

func (unreadableRuns) GetRun(string) (*core.Run, error) {
	return nil, errors.New("disk I/O error")
}

func TestRun_RunReadBackFailureIsLogged(t *testing.T) {
	f := setup(t)
	inv, fl, stock := x001Sources(f.cfg)

	var logs bytes.Buffer
	e, err := New(f.cfg, Deps{
		Invoice: inv,
		Flow:    fl,
		Stock:   stock,
		Store:   f.store,
		Runs:    unreadableRuns{f.runs},
		Now:     func() time.Time { return fixedNow },
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.NoError(t, err)

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report.Run)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "failed to read back run")
	assert.Contains(t, logs.String(), "disk I/O error")

	stored, err := f.runs.GetRun(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, stored.Status)
}

func TestRun_DryRun(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	inv, fl, stock := x001Sources(cfg)

	e, err := New(cfg, Deps{Invoice: inv, Flow: fl, Stock: stock, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	report, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, report.Run)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.Records, 1)
	assert.Zero(t, report.Merge.Inserted)
}

func TestNew_InvalidTolerance(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Tolerance.Default.Weight = 0

	_, err = New(cfg, Deps{})
	require.Error(t, err)
	assert.True(t, core.IsConfigError(err))
}
