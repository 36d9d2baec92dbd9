package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/skuhub/internal/merge"
	"github.com/leapstack-labs/skuhub/internal/state"
	"github.com/leapstack-labs/skuhub/internal/store"
	"github.com/leapstack-labs/skuhub/internal/testutil"
	"github.com/leapstack-labs/skuhub/pkg/adapter"
	"github.com/leapstack-labs/skuhub/pkg/adapters/duckdb"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

func seedRecords() []core.SKURecord {
	first := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)
	return []core.SKURecord{
		{
			SKU: "A-1", Weight: testutil.Ptr(100.0), Volume: testutil.Ptr(2.0), Vendor: "HITACHI",
			FinalLocation: "DSV Indoor", FlowCode: testutil.Ptr(2), FlowDesc: "Warehouse",
			FirstSeen: &first, LastSeen: &last, StockQty: testutil.Ptr(3.0), SQM: testutil.Ptr(1.5),
			Visits: []core.Visit{{Warehouse: "Port", At: first}, {Warehouse: "DSV Indoor", At: first.AddDate(0, 0, 3)}},
			InvoiceMatchStatus: testutil.Ptr(core.MatchPass), WeightError: testutil.Ptr(5.0), VolumeError: testutil.Ptr(0.1),
			Sources: []string{core.SourceFlow, core.SourceInvoice, core.SourceStock},
		},
		{
			SKU: "B-2", Weight: testutil.Ptr(40.0), Volume: testutil.Ptr(2.0), Vendor: "SIEMENS",
			FinalLocation: "MOSB", FlowCode: testutil.Ptr(3), FlowDesc: "MOSB",
			InvoiceMatchStatus: testutil.Ptr(core.MatchFail), WeightError: testutil.Ptr(-30.0), VolumeError: testutil.Ptr(1.0),
			Sources: []string{core.SourceFlow, core.SourceInvoice},
		},
		{SKU: "C-3", Sources: []string{core.SourceStock}},
	}
}

func setupServer(t *testing.T, withRun bool) http.Handler {
	t.Helper()
	ctx := context.Background()

	db := duckdb.New(testutil.NewTestLogger(t))
	require.NoError(t, db.Connect(ctx, adapter.Config{Path: ":memory:"}))
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db, testutil.NewTestLogger(t))
	require.NoError(t, st.Init(ctx))

	runs := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, runs.Open(":memory:"))
	t.Cleanup(func() { _ = runs.Close() })

	runID := "seed"
	if withRun {
		run, err := runs.CreateRun("dev")
		require.NoError(t, err)
		runID = run.ID
		require.NoError(t, runs.CompleteRun(run.ID, core.RunStatusCompleted, "", &core.KPI{TotalRecords: 3, PassCount: 1, FailCount: 1}))
	}

	require.NoError(t, st.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := merge.New(tx, nil).Merge(ctx, runID, seedRecords()); err != nil {
			return err
		}
		if err := tx.ReplaceVisits(ctx, runID, seedRecords()); err != nil {
			return err
		}
		if err := tx.InsertExceptions(ctx, []core.Exception{
			{RunID: runID, SKU: "B-2", Reason: core.ReasonToleranceFail, WeightError: testutil.Ptr(-30.0), VolumeError: testutil.Ptr(1.0)},
		}); err != nil {
			return err
		}
		return tx.ReplaceOccupancy(ctx, []core.OccupancyRecord{
			{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Warehouse: "DSV Indoor", Packages: 1,
				Area: decimal.NewFromInt(1), DailyCharge: decimal.NewFromInt(2), CumulativeCharge: decimal.NewFromInt(2)},
			{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Warehouse: "MOSB", Packages: 2,
				Area: decimal.NewFromInt(2), DailyCharge: decimal.NewFromInt(4), CumulativeCharge: decimal.NewFromInt(4)},
		})
	}))

	return NewServer(Config{Store: st, Runs: runs, Logger: testutil.NewTestLogger(t)}).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_Health(t *testing.T) {
	h := setupServer(t, false)
	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_KPI(t *testing.T) {
	rec := get(t, setupServer(t, false), "/api/kpi")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "no runs recorded")

	h := setupServer(t, true)
	rec = get(t, h, "/api/kpi")
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[core.Run](t, rec)
	assert.Equal(t, core.RunStatusCompleted, run.Status)
	require.NotNil(t, run.KPI)
	assert.Equal(t, 3, run.KPI.TotalRecords)

	rec = get(t, h, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Run](t, rec), 1)
}

func TestServer_Threeway(t *testing.T) {
	h := setupServer(t, false)

	rec := get(t, h, "/api/threeway")
	require.Equal(t, http.StatusOK, rec.Code)
	tw := decode[Threeway](t, rec)
	assert.Nil(t, tw.Tolerance)
	assert.Equal(t, 3, tw.Total)
	assert.Equal(t, 1, tw.Pass)
	assert.Equal(t, 1, tw.Fail)
	assert.Equal(t, 1, tw.NoStatus)
	assert.Equal(t, 1, tw.AllSources)
	assert.Equal(t, 2, tw.BySource[core.SourceStock])

	rec = get(t, h, "/api/threeway?tol=0.8")
	require.Equal(t, http.StatusOK, rec.Code)
	tw = decode[Threeway](t, rec)
	require.NotNil(t, tw.Tolerance)
	assert.Equal(t, 2, tw.Pass)
	assert.Equal(t, 0, tw.Fail)
	assert.InDelta(t, 1.0, tw.PassRate, 1e-12)

	rec = get(t, h, "/api/threeway?tol=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Views(t *testing.T) {
	h := setupServer(t, false)

	tests := []struct {
		path string
		rows int
	}{
		{"/api/flow-mix", 3},
		{"/api/flow-location", 3},
		{"/api/location-daily", 2},
		{"/api/location-monthly", 3},
		{"/api/invoice-failures", 1},
		{"/api/invoice-failures?limit=0", 1},
		{"/api/exceptions/summary", 1},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, h, tt.path)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			res := decode[store.Result](t, rec)
			assert.NotEmpty(t, res.Columns)
			assert.Len(t, res.Rows, tt.rows)
		})
	}

	rec := get(t, h, "/api/flow-mix?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ExceptionsAndOccupancy(t *testing.T) {
	h := setupServer(t, false)

	rec := get(t, h, "/api/exceptions")
	require.Equal(t, http.StatusOK, rec.Code)
	exceptions := decode[[]core.Exception](t, rec)
	require.Len(t, exceptions, 1)
	assert.Equal(t, "B-2", exceptions[0].SKU)
	assert.Empty(t, exceptions[0].Alternatives)

	rec = get(t, h, "/api/exceptions?run=other")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]core.Exception](t, rec))

	rec = get(t, h, "/api/occupancy?warehouse=MOSB")
	require.Equal(t, http.StatusOK, rec.Code)
	occ := decode[[]core.OccupancyRecord](t, rec)
	require.Len(t, occ, 1)
	assert.Equal(t, 2, occ[0].Packages)
	assert.True(t, occ[0].DailyCharge.Equal(decimal.NewFromInt(4)))

	rec = get(t, h, "/api/occupancy")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.OccupancyRecord](t, rec), 2)
}

func TestServer_NoRunLog(t *testing.T) {
	h := NewServer(Config{}).Handler()
	rec := get(t, h, "/api/kpi")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSummarizeThreeway_AbsoluteFallback(t *testing.T) {
	records := []core.SKURecord{
		{SKU: "X", WeightError: testutil.Ptr(0.05), VolumeError: testutil.Ptr(0.2), Sources: []string{core.SourceInvoice}},
		{SKU: "Y", WeightError: testutil.Ptr(0.05), VolumeError: testutil.Ptr(0.05), Sources: []string{core.SourceInvoice}},
	}
	tw := summarizeThreeway(records, testutil.Ptr(0.1))
	assert.Equal(t, 1, tw.Pass)
	assert.Equal(t, 1, tw.Fail)
	assert.InDelta(t, 0.5, tw.PassRate, 1e-12)
	assert.Equal(t, 2, tw.BySource[core.SourceInvoice])
	assert.Equal(t, 0, tw.BySource[core.SourceFlow])
}

func TestServer_Heatmap(t *testing.T) {
	rec := get(t, setupServer(t, false), "/api/heatmap")
	require.Equal(t, http.StatusOK, rec.Code)

	h := decode[store.Heatmap](t, rec)
	require.Len(t, h.Cells, 3)
	assert.Equal(t, store.HeatmapCell{Location: "DSV Indoor", Month: "2024-01", StockQty: 3, SQM: 1.5, SKUCount: 1}, h.Cells[0])
	assert.Equal(t, 3, h.Stats.Locations) // DSV Indoor, MOSB, Unknown
	assert.Equal(t, 1, h.Stats.Months)
	assert.Equal(t, 3.0, h.Stats.TotalStockQty)
}

func TestServer_Caseflow(t *testing.T) {
	h := setupServer(t, false)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantEvents int
	}{
		{name: "normalized sku", path: "/api/caseflow?sku=%20a-1", wantStatus: http.StatusOK, wantEvents: 4},
		{name: "explicit limit", path: "/api/caseflow?sku=A-1&limit=1", wantStatus: http.StatusOK, wantEvents: 1},
		{name: "all skus", path: "/api/caseflow", wantStatus: http.StatusOK, wantEvents: 4},
		{name: "unknown sku", path: "/api/caseflow?sku=Z-9", wantStatus: http.StatusNotFound},
		{name: "bad limit", path: "/api/caseflow?limit=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.path)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			cf := decode[store.Caseflow](t, rec)
			assert.Len(t, cf.Events, tt.wantEvents)
		})
	}

	cf := decode[store.Caseflow](t, get(t, h, "/api/caseflow?sku=A-1"))
	kinds := []string{}
	for _, e := range cf.Events {
		kinds = append(kinds, e.Kind+"@"+e.Location)
	}
	assert.Equal(t, []string{"first_seen@DSV Indoor", "visit@Port", "visit@DSV Indoor", "last_seen@DSV Indoor"}, kinds)
	assert.Equal(t, store.CaseflowStats{TotalEvents: 4, UniqueSKUs: 1, AvgEventsPerSKU: 4}, cf.Stats)
}
