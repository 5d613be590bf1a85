package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/fairline/internal/adapters/httpapi"
	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockReader implementa ports.Reader en memoria.
type mockReader struct {
	events      []domain.Event
	assessments []domain.StoredAssessment
	logs        []domain.PollLog
	books       []domain.Bookmaker
	lastFilter  domain.AssessmentFilter
	shouldError bool
}

func (m *mockReader) UpcomingEvents(_ context.Context, limit int) ([]domain.Event, error) {
	if m.shouldError {
		return nil, context.DeadlineExceeded
	}
	if limit < len(m.events) {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func (m *mockReader) Assessments(_ context.Context, f domain.AssessmentFilter) ([]domain.StoredAssessment, int, error) {
	m.lastFilter = f
	if m.shouldError {
		return nil, 0, context.DeadlineExceeded
	}
	var out []domain.StoredAssessment
	for _, a := range m.assessments {
		if f.PositiveOnly && !a.HasPositiveEV {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockReader) RecentPollLogs(_ context.Context, _ int) ([]domain.PollLog, error) {
	if m.shouldError {
		return nil, context.DeadlineExceeded
	}
	return m.logs, nil
}

func (m *mockReader) Stats(_ context.Context) (domain.Stats, error) {
	if m.shouldError {
		return domain.Stats{}, context.DeadlineExceeded
	}
	st := domain.Stats{Events: len(m.events), Assessments: len(m.assessments)}
	if len(m.logs) > 0 {
		st.LastPoll = &m.logs[0]
	}
	return st, nil
}

func (m *mockReader) Bookmakers(_ context.Context) ([]domain.Bookmaker, error) {
	if m.shouldError {
		return nil, context.DeadlineExceeded
	}
	return m.books, nil
}

type mockPoller struct {
	report  domain.CycleReport
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (p *mockPoller) RunOnce(_ context.Context) (domain.CycleReport, error) {
	p.calls++
	if p.started != nil {
		close(p.started)
	}
	if p.release != nil {
		<-p.release
	}
	return p.report, p.err
}

func book(key string, home, away int) domain.BookOdds {
	return domain.BookOdds{
		Key:   key,
		Title: key,
		Markets: []domain.MarketOdds{{
			Key: "h2h",
			Outcomes: []domain.OutcomePrice{
				{Name: "Boston Celtics", Price: home},
				{Name: "Miami Heat", Price: away},
			},
		}},
	}
}

func newReader() *mockReader {
	return &mockReader{
		events: []domain.Event{{
			ExternalID:   "ev1",
			SportKey:     "basketball_nba",
			HomeTeam:     "Boston Celtics",
			AwayTeam:     "Miami Heat",
			CommenceTime: time.Date(2026, 11, 1, 0, 30, 0, 0, time.UTC),
			Books: []domain.BookOdds{
				book("draftkings", -145, 125),
				book("fanduel", -155, 135),
				book("betrivers", -140, 128),
				book("novig", -120, 150),
			},
		}},
		books: []domain.Bookmaker{
			{Key: "draftkings", Region: "us", Active: true},
			{Key: "fanduel", Region: "us", Active: true},
			{Key: "betrivers", Region: "us", Active: false},
			{Key: "novig", Region: "us_ex", IsP2P: true, Active: true},
		},
		assessments: []domain.StoredAssessment{
			{EventID: "ev1", SourceID: "novig", OfferedOdds: 150, HasPositiveEV: true, ExpectedValuePer100: 4.5, Outcome: domain.OutcomeB},
			{EventID: "ev1", SourceID: "novig", OfferedOdds: -120, ExpectedValuePer100: -1.5},
		},
		logs: []domain.PollLog{{RunID: "run-9", Status: domain.PollSuccess, Quota: domain.Quota{Remaining: 321}}},
	}
}

func newServer(r *mockReader, p httpapi.Poller) http.Handler {
	return httpapi.New(r, p, httpapi.Options{
		TrustedRegion: "us",
		Threshold:     0.02,
		Gatherer:      prometheus.NewRegistry(),
	}).Routes()
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	h := newServer(newReader(), nil)
	rec, body := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "success", body["last_poll_status"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	r := newReader()
	r.shouldError = true
	rec, body := do(t, newServer(r, nil), http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "database unhealthy", body["message"])
}

func TestEvents(t *testing.T) {
	rec, body := do(t, newServer(newReader(), nil), http.MethodGet, "/api/events?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["count"])

	events := body["events"].([]any)
	ev := events[0].(map[string]any)
	assert.Equal(t, "Miami Heat @ Boston Celtics", ev["name"])
	assert.Len(t, ev["bookmakers"].([]any), 4)
}

func TestEvOpportunities_Filters(t *testing.T) {
	r := newReader()
	h := newServer(r, nil)

	rec, body := do(t, h, http.MethodGet,
		"/api/ev-opportunities?positive_ev_only=true&min_ev=2.5&bookmaker_key=novig&sport_key=basketball_nba&limit=9999&offset=-3")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, r.lastFilter.PositiveOnly)
	require.NotNil(t, r.lastFilter.MinEV)
	assert.Equal(t, 2.5, *r.lastFilter.MinEV)
	assert.Equal(t, "novig", r.lastFilter.SourceID)
	assert.Equal(t, "basketball_nba", r.lastFilter.SportKey)
	assert.Equal(t, 500, r.lastFilter.Limit)
	assert.Equal(t, 0, r.lastFilter.Offset)

	assert.Equal(t, 1.0, body["total"])
	summary := body["summary"].(map[string]any)
	assert.Equal(t, 1.0, summary["positive_ev"])
	assert.Equal(t, 4.5, summary["best_ev"])

	row := body["assessments"].([]any)[0].(map[string]any)
	assert.Equal(t, "B", row["outcome"])
	assert.Equal(t, 150.0, row["offered_odds"])
}

func TestEvOpportunities_Summary(t *testing.T) {
	rec, body := do(t, newServer(newReader(), nil), http.MethodGet, "/api/ev-opportunities")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, 2.0, summary["count"])
	assert.InDelta(t, 1.5, summary["average_ev"], 1e-9)
}

func TestEvOpportunities_BadParams(t *testing.T) {
	h := newServer(newReader(), nil)
	rec, _ := do(t, h, http.MethodGet, "/api/ev-opportunities?positive_ev_only=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/api/ev-opportunities?min_ev=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpportunities_FromStoredSnapshots(t *testing.T) {
	h := newServer(newReader(), nil)

	// ref Boston = -150, ref Miami = +130 (draftkings + fanduel)
	rec, body := do(t, h, http.MethodGet, "/api/opportunities")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.0, body["count"])
	opps := body["opportunities"].([]any)
	first := opps[0].(map[string]any)
	assert.Equal(t, "draftkings", first["bookmaker_key"])
	assert.Equal(t, "Boston Celtics", first["outcome"])
	for _, o := range opps {
		assert.NotEqual(t, "novig", o.(map[string]any)["bookmaker_key"])
	}

	rec, body = do(t, h, http.MethodGet, "/api/opportunities?threshold=0.05")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["count"])
	only := body["opportunities"].([]any)[0].(map[string]any)
	assert.Equal(t, "betrivers", only["bookmaker_key"])
	assert.InDelta(t, 1-140.0/150.0, only["improvement"], 1e-9)

	rec, _ = do(t, h, http.MethodGet, "/api/opportunities?threshold=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPollingLogsAndStats(t *testing.T) {
	h := newServer(newReader(), nil)

	rec, body := do(t, h, http.MethodGet, "/api/polling-logs")
	require.Equal(t, http.StatusOK, rec.Code)
	logs := body["logs"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, 321.0, logs[0].(map[string]any)["requests_remaining"])

	rec, body = do(t, h, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, body["ev_calculations"])
	assert.Equal(t, "run-9", body["last_poll"].(map[string]any)["run_id"])
}

func TestReaderErrors(t *testing.T) {
	r := newReader()
	r.shouldError = true
	h := newServer(r, nil)
	for _, path := range []string{"/api/events", "/api/ev-opportunities", "/api/opportunities", "/api/polling-logs", "/api/stats", "/api/bookmakers"} {
		rec, body := do(t, h, http.MethodGet, path)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Equal(t, 500.0, body["code"], path)
	}
}

func TestPollOdds(t *testing.T) {
	p := &mockPoller{report: domain.CycleReport{
		RunID: "run-10",
		Sport: "basketball_nba",
		Evaluations: []domain.EventEvaluation{{
			Assessments: []domain.EVAssessment{{HasPositiveEV: true}, {}},
		}},
		Quota: domain.Quota{Remaining: 300},
	}}
	rec, body := do(t, newServer(newReader(), p), http.MethodPost, "/api/poll-odds")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, "run-10", body["run_id"])
	assert.Equal(t, 2.0, body["assessments"])
	assert.Equal(t, 1.0, body["positive_ev"])
	assert.Equal(t, 300.0, body["quota_remaining"])
}

func TestPollOdds_Errors(t *testing.T) {
	rec, _ := do(t, newServer(newReader(), nil), http.MethodPost, "/api/poll-odds")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	p := &mockPoller{err: errors.New("odds api down")}
	rec, body := do(t, newServer(newReader(), p), http.MethodPost, "/api/poll-odds")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "poll failed", body["message"])
}

func TestPollOdds_ConflictWhenCycleAlreadyRunning(t *testing.T) {
	p := &mockPoller{err: fmt.Errorf("evaluator.RunOnce: %w", domain.ErrCycleInProgress)}
	rec, body := do(t, newServer(newReader(), p), http.MethodPost, "/api/poll-odds")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "a poll is already running", body["message"])
}

func TestPollOdds_OneAtATime(t *testing.T) {
	p := &mockPoller{started: make(chan struct{}), release: make(chan struct{})}
	h := newServer(newReader(), p)

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/poll-odds", nil))
		done <- rec.Code
	}()

	<-p.started
	rec, body := do(t, h, http.MethodPost, "/api/poll-odds")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "a poll is already running", body["message"])

	close(p.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "fairline_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := httpapi.New(newReader(), nil, httpapi.Options{Gatherer: reg}).Routes()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fairline_test_total 1")
}

func TestCORS(t *testing.T) {
	h := newServer(newReader(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestFeedMountedOnlyWhenConfigured(t *testing.T) {
	feed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	h := httpapi.New(newReader(), nil, httpapi.Options{Feed: feed}).Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	newServer(newReader(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
