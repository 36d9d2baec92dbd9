package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/skuhub/internal/cli/output"
	"github.com/leapstack-labs/skuhub/internal/recon"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// maxListedExceptions caps the exceptions printed after a run.
const maxListedExceptions = 10

// runSummary is the JSON form of a finished run.
type runSummary struct {
	RunID      string           `json:"run_id"`
	DryRun     bool             `json:"dry_run"`
	KPI        *core.KPI        `json:"kpi"`
	Exceptions []core.Exception `json:"exceptions"`
}

func renderReport(r *output.Renderer, report *recon.Report, dryRun bool) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runSummary{
			RunID:      report.RunID,
			DryRun:     dryRun,
			KPI:        report.KPI,
			Exceptions: report.Exceptions,
		})
	}

	title := "Run " + report.RunID
	if dryRun {
		title += " (dry run)"
	}
	r.Header(1, title)
	r.KeyValues(kpiPairs(report.KPI))

	if len(report.KPI.Warnings) > 0 {
		r.Println()
		r.Header(2, fmt.Sprintf("Warnings (%d)", len(report.KPI.Warnings)))
		for _, w := range report.KPI.Warnings {
			r.Println("- " + w)
		}
	}

	if len(report.Exceptions) > 0 {
		r.Println()
		r.Header(2, fmt.Sprintf("Exceptions (%d)", len(report.Exceptions)))
		shown := report.Exceptions
		if len(shown) > maxListedExceptions {
			shown = shown[:maxListedExceptions]
		}
		cols, rows := exceptionRows(shown)
		if err := r.Table(cols, rows); err != nil {
			return err
		}
		if len(report.Exceptions) > maxListedExceptions {
			r.Println(r.Muted(fmt.Sprintf("... %d more, see `skuhub exceptions`", len(report.Exceptions)-maxListedExceptions)))
		}
	}
	return nil
}

func kpiPairs(k *core.KPI) [][2]string {
	if k == nil {
		return nil
	}
	sources := make([]string, 0, 3)
	for _, s := range []string{core.SourceInvoice, core.SourceFlow, core.SourceStock} {
		sources = append(sources, fmt.Sprintf("%s=%d", s, k.SourceCounts[s]))
	}
	return [][2]string{
		{"records", strconv.Itoa(k.TotalRecords)},
		{"sources", strings.Join(sources, " ")},
		{"pass / fail / none", fmt.Sprintf("%d / %d / %d", k.PassCount, k.FailCount, k.NoStatus)},
		{"pass rate", formatRatio(k.PassRate)},
		{"flow invalid", strconv.Itoa(k.FlowInvalid)},
		{"outliers (w/v)", fmt.Sprintf("%d / %d", k.WeightOutliers, k.VolumeOutliers)},
		{"exceptions", strconv.Itoa(k.Exceptions)},
		{"input defects", strconv.Itoa(k.InputDefects)},
		{"rows inserted", strconv.Itoa(k.RowsInserted)},
		{"rows unchanged", strconv.Itoa(k.RowsUnchanged)},
		{"occupancy rows", strconv.Itoa(k.OccupancyRows)},
		{"duration", (time.Duration(k.ExecutionSeconds * float64(time.Second))).Round(time.Millisecond).String()},
	}
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}

func exceptionRows(exceptions []core.Exception) ([]string, [][]any) {
	cols := []string{"run_id", "sku", "reason", "weight_error", "volume_error", "alternatives", "details"}
	rows := make([][]any, len(exceptions))
	for i, e := range exceptions {
		rows[i] = []any{e.RunID, e.SKU, e.Reason, e.WeightError, e.VolumeError, formatAlternatives(e.Alternatives), e.Details}
	}
	return cols, rows
}

// formatAlternatives renders combinations as "[S-1+S-2] 0.004; ...".
func formatAlternatives(alts []core.Combination) string {
	parts := make([]string, 0, len(alts))
	for _, c := range alts {
		members := c.SKUs
		if len(members) == 0 {
			members = make([]string, len(c.Members))
			for i, idx := range c.Members {
				members[i] = strconv.Itoa(idx)
			}
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", strings.Join(members, "+"), strconv.FormatFloat(c.Error, 'g', 4, 64)))
	}
	return strings.Join(parts, "; ")
}

func runRows(runs []*core.Run) ([]string, [][]any) {
	cols := []string{"id", "environment", "status", "started_at", "records", "pass_rate", "warnings", "error"}
	rows := make([][]any, len(runs))
	for i, run := range runs {
		records, passRate, warnings := any(nil), any(nil), 0
		if run.KPI != nil {
			records = run.KPI.TotalRecords
			passRate = formatRatio(run.KPI.PassRate)
			warnings = len(run.KPI.Warnings)
		}
		rows[i] = []any{run.ID, run.Environment, string(run.Status), run.StartedAt, records, passRate, warnings, run.Error}
	}
	return cols, rows
}
