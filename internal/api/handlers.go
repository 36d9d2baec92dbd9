package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/leapstack-labs/skuhub/internal/sku"
	"github.com/leapstack-labs/skuhub/internal/tolerance"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// limit reads ?limit=, falling back to the configured default.
func (s *Server) limit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return s.cfg.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) kpi(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("run log not configured"))
		return
	}
	env := r.URL.Query().Get("env")
	if env == "" {
		env = s.environment
	}
	run, err := s.runs.GetLatestRun(env)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no runs recorded for environment %q", env))
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("run log not configured"))
		return
	}
	limit, err := s.limit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// view serves a reporting view with an optional ?limit=.
func (s *Server) view(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := s.limit(r)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		res, err := s.store.View(r.Context(), name, limit)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) exceptions(w http.ResponseWriter, r *http.Request) {
	limit, err := s.limit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := s.store.Exceptions(r.Context(), r.URL.Query().Get("run"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) occupancy(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.Occupancy(r.Context(), r.URL.Query().Get("warehouse"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) heatmap(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.Heatmap(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// caseflow serves the event timeline of ?sku=, or of every SKU. A single
// SKU's timeline is not paged unless ?limit= asks for it.
func (s *Server) caseflow(w http.ResponseWriter, r *http.Request) {
	id := sku.NormalizeString(r.URL.Query().Get("sku"))
	limit, err := s.limit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if id != "" && r.URL.Query().Get("limit") == "" {
		limit = 0
	}
	out, err := s.store.Caseflow(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if id != "" && len(out.Events) == 0 {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no events for sku %q", id))
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// Threeway summarizes invoice matching over the live master.
type Threeway struct {
	// Tolerance is the ad-hoc relative band, nil for stored statuses.
	Tolerance  *float64       `json:"tolerance"`
	Total      int            `json:"total"`
	Pass       int            `json:"pass"`
	Fail       int            `json:"fail"`
	NoStatus   int            `json:"no_status"`
	PassRate   float64        `json:"pass_rate"`
	BySource   map[string]int `json:"by_source"`
	AllSources int            `json:"all_sources"`
}

// threeway counts PASS/FAIL over live records. With ?tol= the statuses
// are recomputed using one relative band for weight and volume.
func (s *Server) threeway(w http.ResponseWriter, r *http.Request) {
	var tol *float64
	if raw := r.URL.Query().Get("tol"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("tol must be a positive number, got %q", raw))
			return
		}
		tol = &v
	}

	records, err := s.store.Live(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summarizeThreeway(records, tol))
}

func summarizeThreeway(records []core.SKURecord, tol *float64) Threeway {
	out := Threeway{
		Tolerance: tol,
		Total:     len(records),
		BySource:  map[string]int{core.SourceInvoice: 0, core.SourceFlow: 0, core.SourceStock: 0},
	}
	for i := range records {
		rec := &records[i]
		for _, src := range rec.Sources {
			out.BySource[src]++
		}
		if len(rec.Sources) == 3 {
			out.AllSources++
		}

		status := ""
		switch {
		case tol != nil && rec.WeightError != nil && rec.VolumeError != nil:
			status = core.MatchFail
			if tolerance.Within(*rec.WeightError, rec.Weight, *tol) && tolerance.Within(*rec.VolumeError, rec.Volume, *tol) {
				status = core.MatchPass
			}
		case rec.InvoiceMatchStatus != nil:
			status = *rec.InvoiceMatchStatus
		}
		switch status {
		case core.MatchPass:
			out.Pass++
		case core.MatchFail:
			out.Fail++
		default:
			out.NoStatus++
		}
	}
	if n := out.Pass + out.Fail; n > 0 {
		out.PassRate = float64(out.Pass) / float64(n)
	}
	return out
}
