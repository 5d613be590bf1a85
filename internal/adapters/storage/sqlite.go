package storage

// sqlite.go: persistencia de cuotas y evaluaciones.
//
// Estrategia:
//   - `events`: UNA fila por evento (UPSERT por external_id).
//   - `odds_snapshots`: una fila por (evento, casa, mercado) solo cuando los
//     precios cambian. La primera de cada clave se marca como apertura.
//   - Cache en memoria: último JSON de outcomes guardado por clave. En un ciclo
//     normal la mayoría de líneas no se mueven → casi no hay escrituras.
//   - `ev_calculations`: una fila por casa objetivo y outcome, agrupadas por run_id.
//   - `polling_logs`: una fila por ciclo.
//   - Prune automático al arrancar: snapshots > 30d, evaluaciones > 14d.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookmakers (
    key     TEXT PRIMARY KEY,
    title   TEXT    NOT NULL,
    region  TEXT    NOT NULL DEFAULT '',
    is_p2p  INTEGER NOT NULL DEFAULT 0,
    active  INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS events (
    external_id   TEXT PRIMARY KEY,
    sport_key     TEXT NOT NULL,
    sport_title   TEXT NOT NULL DEFAULT '',
    home_team     TEXT NOT NULL,
    away_team     TEXT NOT NULL,
    commence_time TEXT NOT NULL,
    completed     INTEGER NOT NULL DEFAULT 0,
    first_seen    TEXT NOT NULL,
    last_seen     TEXT NOT NULL
);

-- Snapshot de un mercado de una casa; outcomes en JSON
CREATE TABLE IF NOT EXISTS odds_snapshots (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id      TEXT    NOT NULL,
    bookmaker_key TEXT    NOT NULL,
    market_key    TEXT    NOT NULL,
    outcomes_json TEXT    NOT NULL,
    is_opening    INTEGER NOT NULL DEFAULT 0,
    book_update   TEXT,
    captured_at   TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS ev_calculations (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id           TEXT    NOT NULL,
    event_id         TEXT    NOT NULL,
    market_key       TEXT    NOT NULL,
    outcome          TEXT    NOT NULL,
    outcome_name     TEXT    NOT NULL,
    bookmaker_key    TEXT    NOT NULL,
    line_class       TEXT    NOT NULL,
    offered_odds     INTEGER NOT NULL,
    offered_prob     REAL    NOT NULL,
    fair_source      TEXT    NOT NULL,
    fair_odds        REAL    NOT NULL,
    fair_prob        REAL    NOT NULL,
    recommended_odds REAL    NOT NULL,
    recommended_prob REAL    NOT NULL,
    has_positive_ev  INTEGER NOT NULL DEFAULT 0,
    ev_per_100       REAL    NOT NULL,
    divergences      INTEGER NOT NULL DEFAULT 0,
    divergences_json TEXT,
    calculated_at    TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS polling_logs (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id             TEXT    NOT NULL,
    sport_key          TEXT    NOT NULL,
    started_at         TEXT    NOT NULL,
    duration_ms        INTEGER NOT NULL DEFAULT 0,
    status             TEXT    NOT NULL,
    events_fetched     INTEGER NOT NULL DEFAULT 0,
    snapshots_saved    INTEGER NOT NULL DEFAULT 0,
    assessments        INTEGER NOT NULL DEFAULT 0,
    positive_ev        INTEGER NOT NULL DEFAULT 0,
    opportunities      INTEGER NOT NULL DEFAULT 0,
    requests_remaining INTEGER NOT NULL DEFAULT -1,
    requests_used      INTEGER NOT NULL DEFAULT -1,
    requests_last      INTEGER NOT NULL DEFAULT -1,
    response_ms        INTEGER NOT NULL DEFAULT 0,
    error              TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_commence ON events(commence_time);
CREATE INDEX IF NOT EXISTS idx_snap_key        ON odds_snapshots(event_id, bookmaker_key, market_key, id DESC);
CREATE INDEX IF NOT EXISTS idx_ev_run          ON ev_calculations(run_id);
CREATE INDEX IF NOT EXISTS idx_ev_calc_at      ON ev_calculations(calculated_at DESC);
CREATE INDEX IF NOT EXISTS idx_ev_positive     ON ev_calculations(has_positive_ev, ev_per_100 DESC);
CREATE INDEX IF NOT EXISTS idx_poll_started    ON polling_logs(started_at DESC);
`

const (
	retentionSnapshots   = 30 * 24 * time.Hour // snapshots: 30 días
	retentionEvaluations = 14 * 24 * time.Hour // evaluaciones: 14 días (los eventos ya se jugaron)
	timeLayout           = "2006-01-02T15:04:05.000000000Z07:00" // ancho fijo: ordenable como texto
)

// snapshotKey identifica un mercado de una casa para un evento.
type snapshotKey struct {
	event  string
	book   string
	market string
}

// SQLiteStorage implementa ports.Storage y ports.Reader usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db    *sql.DB
	cache map[snapshotKey]string // clave → outcomes_json guardado
	mu    sync.Mutex
	now   func() time.Time
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema, limpia datos antiguos y precarga la cache.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:    db,
		cache: make(map[snapshotKey]string),
		now:   func() time.Time { return time.Now().UTC() },
	}
	s.pruneOld(context.Background())
	s.warmCache(context.Background())
	return s, nil
}

// SeedBookmakers hace upsert del registro de casas.
func (s *SQLiteStorage) SeedBookmakers(ctx context.Context, books []domain.Bookmaker) error {
	if len(books) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SeedBookmakers: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, b := range books {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bookmakers (key, title, region, is_p2p, active) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				title  = excluded.title,
				region = excluded.region,
				is_p2p = excluded.is_p2p,
				active = excluded.active
		`, b.Key, b.Title, b.Region, boolInt(b.IsP2P), boolInt(b.Active)); err != nil {
			return fmt.Errorf("storage.SeedBookmakers: upsert %s: %w", b.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SeedBookmakers: commit: %w", err)
	}
	return nil
}

// Bookmakers devuelve el registro completo ordenado por key.
func (s *SQLiteStorage) Bookmakers(ctx context.Context) ([]domain.Bookmaker, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, title, region, is_p2p, active FROM bookmakers ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("storage.Bookmakers: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Bookmaker
	for rows.Next() {
		var b domain.Bookmaker
		var p2p, active int
		if err := rows.Scan(&b.Key, &b.Title, &b.Region, &p2p, &active); err != nil {
			return nil, fmt.Errorf("storage.Bookmakers: scan row: %w", err)
		}
		b.IsP2P = p2p == 1
		b.Active = active == 1
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveEvents hace upsert de los eventos y escribe los snapshots que cambiaron.
// Las casas desconocidas se registran como inactivas para no contaminar la referencia.
func (s *SQLiteStorage) SaveEvents(ctx context.Context, events []domain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveEvents: begin tx: %w", err)
	}
	defer tx.Rollback()

	upsertEvent, err := tx.PrepareContext(ctx, `
		INSERT INTO events
			(external_id, sport_key, sport_title, home_team, away_team,
			 commence_time, completed, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			sport_title   = excluded.sport_title,
			home_team     = excluded.home_team,
			away_team     = excluded.away_team,
			commence_time = excluded.commence_time,
			completed     = excluded.completed,
			last_seen     = excluded.last_seen
	`)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveEvents: prepare event: %w", err)
	}
	defer upsertEvent.Close()

	insertSnap, err := tx.PrepareContext(ctx, `
		INSERT INTO odds_snapshots
			(event_id, bookmaker_key, market_key, outcomes_json, is_opening, book_update, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveEvents: prepare snapshot: %w", err)
	}
	defer insertSnap.Close()

	ensureBook, err := tx.PrepareContext(ctx, `
		INSERT INTO bookmakers (key, title, region, is_p2p, active) VALUES (?, ?, '', 0, 0)
		ON CONFLICT(key) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveEvents: prepare bookmaker: %w", err)
	}
	defer ensureBook.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make(map[snapshotKey]string)
	written := 0
	for _, ev := range events {
		if _, err := upsertEvent.ExecContext(ctx,
			ev.ExternalID, ev.SportKey, ev.SportTitle, ev.HomeTeam, ev.AwayTeam,
			formatTime(ev.CommenceTime), boolInt(ev.Completed),
			formatTime(now), // first_seen: ignorado en ON CONFLICT
			formatTime(now),
		); err != nil {
			return 0, fmt.Errorf("storage.SaveEvents: upsert %s: %w", ev.ExternalID, err)
		}

		for _, b := range ev.Books {
			title := b.Title
			if title == "" {
				title = b.Key
			}
			if _, err := ensureBook.ExecContext(ctx, b.Key, title); err != nil {
				return 0, fmt.Errorf("storage.SaveEvents: ensure bookmaker %s: %w", b.Key, err)
			}

			for _, m := range b.Markets {
				key := snapshotKey{event: ev.ExternalID, book: b.Key, market: m.Key}
				payload, err := json.Marshal(toOutcomeRows(m.Outcomes))
				if err != nil {
					return 0, fmt.Errorf("storage.SaveEvents: marshal outcomes: %w", err)
				}

				prev, seen := s.cache[key]
				if seen && prev == string(payload) {
					continue // sin cambios
				}

				update := m.LastUpdate
				if update.IsZero() {
					update = b.LastUpdate
				}
				if _, err := insertSnap.ExecContext(ctx,
					key.event, key.book, key.market, string(payload),
					boolInt(!seen), nullableTime(update), formatTime(now),
				); err != nil {
					return 0, fmt.Errorf("storage.SaveEvents: insert snapshot %s/%s: %w", ev.ExternalID, b.Key, err)
				}
				pending[key] = string(payload)
				written++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.SaveEvents: commit: %w", err)
	}
	for k, v := range pending {
		s.cache[k] = v
	}
	return written, nil
}

// SaveReport persiste todas las evaluaciones del ciclo bajo su run_id.
func (s *SQLiteStorage) SaveReport(ctx context.Context, report domain.CycleReport) error {
	n, _, _ := report.Counts()
	if n == 0 {
		return nil
	}
	at := report.StartedAt
	if at.IsZero() {
		at = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveReport: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ev_calculations
			(run_id, event_id, market_key, outcome, outcome_name, bookmaker_key, line_class,
			 offered_odds, offered_prob, fair_source, fair_odds, fair_prob,
			 recommended_odds, recommended_prob, has_positive_ev, ev_per_100,
			 divergences, divergences_json, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveReport: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range report.Evaluations {
		for _, a := range ev.Assessments {
			divs, err := json.Marshal(toDivergenceRows(a.Divergences))
			if err != nil {
				return fmt.Errorf("storage.SaveReport: marshal divergences: %w", err)
			}
			if _, err := stmt.ExecContext(ctx,
				report.RunID, ev.Event.ExternalID, ev.MarketKey,
				a.TargetOutcome.String(), ev.OutcomeName(a.TargetOutcome),
				a.TargetSourceID, string(a.LineClass),
				a.OfferedOdds, a.OfferedProbability,
				a.BestFair.SourceID, a.BestFair.Odds, a.BestFair.Probability,
				a.RecommendedMinimumOdds, a.RecommendedProbability,
				boolInt(a.HasPositiveEV), a.ExpectedValuePer100,
				len(a.Divergences), string(divs), formatTime(at),
			); err != nil {
				return fmt.Errorf("storage.SaveReport: insert %s/%s: %w", ev.Event.ExternalID, a.TargetSourceID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveReport: commit: %w", err)
	}
	return nil
}

// SavePollLog registra el resultado de un ciclo.
func (s *SQLiteStorage) SavePollLog(ctx context.Context, l domain.PollLog) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO polling_logs
			(run_id, sport_key, started_at, duration_ms, status, events_fetched, snapshots_saved,
			 assessments, positive_ev, opportunities, requests_remaining, requests_used,
			 requests_last, response_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.RunID, l.Sport, formatTime(l.StartedAt), l.Duration.Milliseconds(), string(l.Status),
		l.EventsFetched, l.SnapshotsSaved, l.Assessments, l.PositiveEV, l.Opportunities,
		l.Quota.Remaining, l.Quota.Used, l.Quota.Last, l.ResponseTime.Milliseconds(), l.Error,
	); err != nil {
		return fmt.Errorf("storage.SavePollLog: insert: %w", err)
	}
	return nil
}

// RecentPollLogs devuelve los últimos logs, el más reciente primero.
func (s *SQLiteStorage) RecentPollLogs(ctx context.Context, limit int) ([]domain.PollLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, sport_key, started_at, duration_ms, status, events_fetched,
		       snapshots_saved, assessments, positive_ev, opportunities,
		       requests_remaining, requests_used, requests_last, response_ms, COALESCE(error, '')
		FROM polling_logs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentPollLogs: query: %w", err)
	}
	defer rows.Close()

	var out []domain.PollLog
	for rows.Next() {
		var l domain.PollLog
		var started, status string
		var durMs, respMs int64
		if err := rows.Scan(
			&l.RunID, &l.Sport, &started, &durMs, &status, &l.EventsFetched,
			&l.SnapshotsSaved, &l.Assessments, &l.PositiveEV, &l.Opportunities,
			&l.Quota.Remaining, &l.Quota.Used, &l.Quota.Last, &respMs, &l.Error,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentPollLogs: scan row: %w", err)
		}
		l.StartedAt = parseTime(started)
		l.Status = domain.PollStatus(status)
		l.Duration = time.Duration(durMs) * time.Millisecond
		l.ResponseTime = time.Duration(respMs) * time.Millisecond
		out = append(out, l)
	}
	return out, rows.Err()
}

// Assessments devuelve evaluaciones filtradas y paginadas, mejor EV primero,
// junto con el total que cumple el filtro.
func (s *SQLiteStorage) Assessments(ctx context.Context, f domain.AssessmentFilter) ([]domain.StoredAssessment, int, error) {
	where := []string{"1=1"}
	var args []any
	if f.SportKey != "" {
		where = append(where, "e.sport_key = ?")
		args = append(args, f.SportKey)
	}
	if f.SourceID != "" {
		where = append(where, "c.bookmaker_key = ?")
		args = append(args, f.SourceID)
	}
	if f.PositiveOnly {
		where = append(where, "c.has_positive_ev = 1")
	}
	if f.MinEV != nil {
		where = append(where, "c.ev_per_100 >= ?")
		args = append(args, *f.MinEV)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ev_calculations c JOIN events e ON e.external_id = c.event_id WHERE `+cond,
		args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage.Assessments: count: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.run_id, c.event_id, e.away_team || ' @ ' || e.home_team, e.sport_key, e.commence_time,
		       c.market_key, c.outcome, c.outcome_name, c.bookmaker_key, c.line_class,
		       c.offered_odds, c.offered_prob, c.fair_source, c.fair_odds, c.fair_prob,
		       c.recommended_odds, c.recommended_prob, c.has_positive_ev, c.ev_per_100,
		       c.divergences, c.calculated_at
		FROM ev_calculations c
		JOIN events e ON e.external_id = c.event_id
		WHERE `+cond+`
		ORDER BY c.ev_per_100 DESC, c.id ASC
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage.Assessments: query: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredAssessment
	for rows.Next() {
		var a domain.StoredAssessment
		var commence, outcome, lineClass, calcAt string
		var positive int
		if err := rows.Scan(
			&a.RunID, &a.EventID, &a.EventName, &a.SportKey, &commence,
			&a.MarketKey, &outcome, &a.OutcomeName, &a.SourceID, &lineClass,
			&a.OfferedOdds, &a.OfferedProbability, &a.FairSourceID, &a.FairOdds, &a.FairProbability,
			&a.RecommendedOdds, &a.RecommendedProbability, &positive, &a.ExpectedValuePer100,
			&a.Divergences, &calcAt,
		); err != nil {
			return nil, 0, fmt.Errorf("storage.Assessments: scan row: %w", err)
		}
		a.CommenceTime = parseTime(commence)
		a.CalculatedAt = parseTime(calcAt)
		a.Outcome, _ = domain.ParseOutcome(outcome)
		a.LineClass = domain.LineClass(lineClass)
		a.HasPositiveEV = positive == 1
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// UpcomingEvents devuelve los eventos que aún no empezaron con el último
// snapshot de cada casa y mercado, ordenados por hora de inicio.
func (s *SQLiteStorage) UpcomingEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_id, sport_key, sport_title, home_team, away_team, commence_time, completed
		FROM events
		WHERE commence_time > ? AND completed = 0
		ORDER BY commence_time ASC
		LIMIT ?
	`, formatTime(s.now()), limit)
	if err != nil {
		return nil, fmt.Errorf("storage.UpcomingEvents: query: %w", err)
	}

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var commence string
		var completed int
		if err := rows.Scan(&ev.ExternalID, &ev.SportKey, &ev.SportTitle,
			&ev.HomeTeam, &ev.AwayTeam, &commence, &completed); err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage.UpcomingEvents: scan row: %w", err)
		}
		ev.CommenceTime = parseTime(commence)
		ev.Completed = completed == 1
		events = append(events, ev)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.UpcomingEvents: rows: %w", err)
	}

	for i := range events {
		books, err := s.latestBooks(ctx, events[i].ExternalID)
		if err != nil {
			return nil, err
		}
		events[i].Books = books
	}
	return events, nil
}

// Stats devuelve los conteos globales y el último poll.
func (s *SQLiteStorage) Stats(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats
	now := formatTime(s.now())
	if err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM events WHERE commence_time > ? AND completed = 0),
			(SELECT COUNT(*) FROM bookmakers WHERE active = 1),
			(SELECT COUNT(*) FROM odds_snapshots),
			(SELECT COUNT(*) FROM ev_calculations),
			(SELECT COUNT(*) FROM ev_calculations WHERE has_positive_ev = 1)
	`, now).Scan(&st.Events, &st.UpcomingEvents, &st.Bookmakers, &st.Snapshots, &st.Assessments, &st.PositiveEV); err != nil {
		return st, fmt.Errorf("storage.Stats: query: %w", err)
	}

	logs, err := s.RecentPollLogs(ctx, 1)
	if err != nil {
		return st, err
	}
	if len(logs) == 1 {
		st.LastPoll = &logs[0]
	}
	return st, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// latestBooks reconstruye los libros de un evento a partir del último snapshot
// de cada (casa, mercado).
func (s *SQLiteStorage) latestBooks(ctx context.Context, eventID string) ([]domain.BookOdds, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.bookmaker_key, COALESCE(b.title, s.bookmaker_key), s.market_key,
		       s.outcomes_json, COALESCE(s.book_update, '')
		FROM odds_snapshots s
		JOIN (
			SELECT MAX(id) AS id FROM odds_snapshots
			WHERE event_id = ?
			GROUP BY bookmaker_key, market_key
		) latest ON latest.id = s.id
		LEFT JOIN bookmakers b ON b.key = s.bookmaker_key
		ORDER BY s.bookmaker_key, s.market_key
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("storage.latestBooks: query %s: %w", eventID, err)
	}
	defer rows.Close()

	var books []domain.BookOdds
	index := make(map[string]int)
	for rows.Next() {
		var bookKey, title, marketKey, payload, update string
		if err := rows.Scan(&bookKey, &title, &marketKey, &payload, &update); err != nil {
			return nil, fmt.Errorf("storage.latestBooks: scan row: %w", err)
		}
		var outs []outcomeRow
		if err := json.Unmarshal([]byte(payload), &outs); err != nil {
			return nil, fmt.Errorf("storage.latestBooks: decode outcomes: %w", err)
		}

		i, ok := index[bookKey]
		if !ok {
			books = append(books, domain.BookOdds{Key: bookKey, Title: title})
			i = len(books) - 1
			index[bookKey] = i
		}
		lu := parseTime(update)
		if lu.After(books[i].LastUpdate) {
			books[i].LastUpdate = lu
		}
		books[i].Markets = append(books[i].Markets, domain.MarketOdds{
			Key:        marketKey,
			LastUpdate: lu,
			Outcomes:   fromOutcomeRows(outs),
		})
	}
	return books, rows.Err()
}

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoffSnaps := formatTime(s.now().Add(-retentionSnapshots))
	cutoffEvals := formatTime(s.now().Add(-retentionEvaluations))
	s.db.ExecContext(ctx, `DELETE FROM odds_snapshots WHERE captured_at < ?`, cutoffSnaps)
	s.db.ExecContext(ctx, `DELETE FROM ev_calculations WHERE calculated_at < ?`, cutoffEvals)
	s.db.ExecContext(ctx, `DELETE FROM polling_logs WHERE started_at < ?`, cutoffSnaps)
}

// warmCache precarga la caché con el último snapshot de cada clave, evitando
// escrituras redundantes en el primer ciclo tras un reinicio.
func (s *SQLiteStorage) warmCache(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.event_id, s.bookmaker_key, s.market_key, s.outcomes_json
		FROM odds_snapshots s
		JOIN (
			SELECT MAX(id) AS id FROM odds_snapshots
			GROUP BY event_id, bookmaker_key, market_key
		) latest ON latest.id = s.id
	`)
	if err != nil {
		return
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var k snapshotKey
		var payload string
		if rows.Scan(&k.event, &k.book, &k.market, &payload) == nil {
			s.cache[k] = payload
		}
	}
}

// outcomeRow es el formato JSON de outcomes_json.
type outcomeRow struct {
	Name  string   `json:"name"`
	Price int      `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

func toOutcomeRows(outs []domain.OutcomePrice) []outcomeRow {
	rows := make([]outcomeRow, len(outs))
	for i, o := range outs {
		rows[i] = outcomeRow{Name: o.Name, Price: o.Price, Point: o.Point}
	}
	return rows
}

func fromOutcomeRows(rows []outcomeRow) []domain.OutcomePrice {
	outs := make([]domain.OutcomePrice, len(rows))
	for i, r := range rows {
		outs[i] = domain.OutcomePrice{Name: r.Name, Price: r.Price, Point: r.Point}
	}
	return outs
}

// divergenceRow es el formato JSON de divergences_json.
type divergenceRow struct {
	Source      string  `json:"source"`
	Odds        int     `json:"odds"`
	Probability float64 `json:"probability"`
	Gap         float64 `json:"gap"`
	TargetBest  bool    `json:"target_is_better"`
}

func toDivergenceRows(divs []domain.Divergence) []divergenceRow {
	rows := make([]divergenceRow, len(divs))
	for i, d := range divs {
		rows[i] = divergenceRow{
			Source:      d.OtherSourceID,
			Odds:        d.OtherOdds,
			Probability: d.OtherProbability,
			Gap:         d.ProbabilityGap,
			TargetBest:  d.TargetIsBetter,
		}
	}
	return rows
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
