package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
)

const maxLimit = 500

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	st, err := s.reader.Stats(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unhealthy", err)
		return
	}

	resp := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime_s":  int64(time.Since(s.started).Seconds()),
	}
	if st.LastPoll != nil {
		resp["last_poll"] = st.LastPoll.StartedAt
		resp["last_poll_status"] = st.LastPoll.Status
	}
	respondJSON(w, http.StatusOK, resp)
}

// events devuelve los próximos eventos con el último precio de cada casa.
// Query params: limit
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(parseIntParam(r, "limit", 50))

	events, err := s.reader.UpcomingEvents(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve events", err)
		return
	}

	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventDTO(ev))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"events": out,
		"count":  len(out),
	})
}

// evOpportunities devuelve evaluaciones guardadas, mejor EV primero.
// Query params: limit, offset, sport_key, bookmaker_key, positive_ev_only, min_ev
func (s *Server) evOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.AssessmentFilter{
		SportKey: q.Get("sport_key"),
		SourceID: q.Get("bookmaker_key"),
		Limit:    clampLimit(parseIntParam(r, "limit", 50)),
		Offset:   max(parseIntParam(r, "offset", 0), 0),
	}
	if v := q.Get("positive_ev_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "positive_ev_only must be a boolean", nil)
			return
		}
		f.PositiveOnly = b
	}
	if v := q.Get("min_ev"); v != "" {
		ev, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "min_ev must be a number", nil)
			return
		}
		f.MinEV = &ev
	}

	rows, total, err := s.reader.Assessments(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve assessments", err)
		return
	}

	out := make([]assessmentDTO, 0, len(rows))
	sum := summaryDTO{Count: len(rows)}
	for _, a := range rows {
		out = append(out, toAssessmentDTO(a))
		sum.AverageEV += a.ExpectedValuePer100
		if a.HasPositiveEV {
			sum.PositiveEV++
		}
		if sum.BestEV == nil || a.ExpectedValuePer100 > *sum.BestEV {
			v := a.ExpectedValuePer100
			sum.BestEV = &v
		}
	}
	if len(rows) > 0 {
		sum.AverageEV /= float64(len(rows))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"assessments": out,
		"total":       total,
		"limit":       f.Limit,
		"offset":      f.Offset,
		"summary":     sum,
	})
}

// opportunities recalcula las oportunidades de referencia sobre los snapshots guardados.
// Query params: limit (eventos), threshold
func (s *Server) opportunities(w http.ResponseWriter, r *http.Request) {
	threshold := s.opts.Threshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 {
			respondError(w, http.StatusBadRequest, "threshold must be a non-negative number", nil)
			return
		}
		threshold = t
	}

	books, err := s.reader.Bookmakers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve bookmakers", err)
		return
	}
	events, err := s.reader.UpcomingEvents(r.Context(), clampLimit(parseIntParam(r, "limit", 100)))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve events", err)
		return
	}

	scan := domain.NewOpportunityScan(books, s.opts.TrustedRegion, threshold)
	out := []opportunityDTO{}
	for _, ev := range events {
		for _, o := range scan.Find(ev) {
			out = append(out, toOpportunityDTO(o))
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"opportunities":  out,
		"count":          len(out),
		"events_scanned": len(events),
		"threshold":      threshold,
	})
}

// pollingLogs devuelve los últimos ciclos.
// Query params: limit
func (s *Server) pollingLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.reader.RecentPollLogs(r.Context(), clampLimit(parseIntParam(r, "limit", 20)))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve polling logs", err)
		return
	}
	out := make([]pollLogDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, toPollLogDTO(l))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"logs":  out,
		"count": len(out),
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.reader.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve stats", err)
		return
	}
	resp := statsDTO{
		Events:         st.Events,
		UpcomingEvents: st.UpcomingEvents,
		Bookmakers:     st.Bookmakers,
		Snapshots:      st.Snapshots,
		Assessments:    st.Assessments,
		PositiveEV:     st.PositiveEV,
	}
	if st.LastPoll != nil {
		l := toPollLogDTO(*st.LastPoll)
		resp.LastPoll = &l
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) bookmakers(w http.ResponseWriter, r *http.Request) {
	books, err := s.reader.Bookmakers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve bookmakers", err)
		return
	}
	out := make([]bookmakerDTO, 0, len(books))
	for _, b := range books {
		out = append(out, bookmakerDTO{Key: b.Key, Title: b.Title, Region: b.Region, IsP2P: b.IsP2P, Active: b.Active})
	}
	respondJSON(w, http.StatusOK, map[string]any{"bookmakers": out, "count": len(out)})
}

// pollOdds lanza un ciclo síncrono. Solo uno a la vez.
func (s *Server) pollOdds(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		respondError(w, http.StatusServiceUnavailable, "polling disabled", nil)
		return
	}
	if !s.polling.CompareAndSwap(false, true) {
		respondError(w, http.StatusConflict, "a poll is already running", nil)
		return
	}
	defer s.polling.Store(false)

	report, err := s.poller.RunOnce(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCycleInProgress):
			respondError(w, http.StatusConflict, "a poll is already running", nil)
		case errors.Is(err, context.Canceled):
			respondError(w, http.StatusServiceUnavailable, "poll failed", err)
		default:
			respondError(w, http.StatusBadGateway, "poll failed", err)
		}
		return
	}

	n, positive, opps := report.Counts()
	respondJSON(w, http.StatusOK, map[string]any{
		"run_id":          report.RunID,
		"sport":           report.Sport,
		"events":          len(report.Evaluations),
		"assessments":     n,
		"positive_ev":     positive,
		"opportunities":   opps,
		"duration_ms":     report.Duration.Milliseconds(),
		"quota_remaining": report.Quota.Remaining,
	})
}

// --- helpers ---

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	v := r.URL.Query().Get(param)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func clampLimit(n int) int {
	if n <= 0 {
		return 1
	}
	return min(n, maxLimit)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encode response", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		slog.Error(message, "err", err)
	}
	respondJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
