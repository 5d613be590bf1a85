package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/fairline/internal/adapters/storage"
	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeEvent(id string, commence time.Time, prices map[string][2]int) domain.Event {
	ev := domain.Event{
		ExternalID:   id,
		SportKey:     "basketball_nba",
		SportTitle:   "NBA",
		HomeTeam:     "Boston Celtics",
		AwayTeam:     "Miami Heat",
		CommenceTime: commence,
	}
	for book, p := range prices {
		ev.Books = append(ev.Books, domain.BookOdds{
			Key:        book,
			Title:      book,
			LastUpdate: commence.Add(-time.Hour),
			Markets: []domain.MarketOdds{{
				Key: "h2h",
				Outcomes: []domain.OutcomePrice{
					{Name: "Boston Celtics", Price: p[0]},
					{Name: "Miami Heat", Price: p[1]},
				},
			}},
		})
	}
	return ev
}

func makeReport(runID string, ev domain.Event) domain.CycleReport {
	return domain.CycleReport{
		RunID:     runID,
		Sport:     ev.SportKey,
		StartedAt: time.Now().UTC(),
		Evaluations: []domain.EventEvaluation{{
			Event:     ev,
			MarketKey: "h2h",
			Assessments: []domain.EVAssessment{
				{
					TargetSourceID:         "novig",
					TargetOutcome:          domain.OutcomeA,
					LineClass:              domain.LineMain,
					OfferedOdds:            -132,
					OfferedProbability:     0.5690,
					RecommendedProbability: 0.5966,
					RecommendedMinimumOdds: -147.9,
					ExpectedValuePer100:    -3.65,
					HasPositiveEV:          true,
					BestFair:               domain.PricePoint{SourceID: "pinnacle", Odds: -133.7, Probability: 0.5721},
				},
				{
					TargetSourceID:      "novig",
					TargetOutcome:       domain.OutcomeB,
					LineClass:           domain.LineMain,
					OfferedOdds:         140,
					OfferedProbability:  0.4167,
					ExpectedValuePer100: -6.2,
					Divergences: []domain.Divergence{
						{OtherSourceID: "draftkings", OtherOdds: 125, OtherProbability: 0.4444, ProbabilityGap: 0.0277, TargetIsBetter: true},
					},
					BestFair: domain.PricePoint{SourceID: "fanduel", Odds: 125.1, Probability: 0.4443},
				},
			},
		}},
	}
}

func TestSQLiteStorage_SeedAndListBookmakers(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	require.NoError(t, db.SeedBookmakers(ctx, []domain.Bookmaker{
		{Key: "pinnacle", Title: "Pinnacle", Region: "eu", Active: true},
		{Key: "novig", Title: "Novig", Region: "us_ex", IsP2P: true, Active: true},
	}))
	// Re-seed actualiza en lugar de duplicar
	require.NoError(t, db.SeedBookmakers(ctx, []domain.Bookmaker{
		{Key: "pinnacle", Title: "Pinnacle", Region: "eu", Active: false},
	}))

	books, err := db.Bookmakers(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "novig", books[0].Key)
	assert.True(t, books[0].IsP2P)
	assert.Equal(t, "pinnacle", books[1].Key)
	assert.False(t, books[1].Active)
}

func TestSQLiteStorage_SaveEvents_SkipsUnchangedSnapshots(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	commence := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)

	ev := makeEvent("ev1", commence, map[string][2]int{
		"pinnacle":   {-140, 128},
		"draftkings": {-145, 125},
	})

	n, err := db.SaveEvents(ctx, []domain.Event{ev})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Mismos precios → ninguna escritura
	n, err = db.SaveEvents(ctx, []domain.Event{ev})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Solo cambia una casa
	moved := makeEvent("ev1", commence, map[string][2]int{
		"pinnacle":   {-150, 135},
		"draftkings": {-145, 125},
	})
	n, err = db.SaveEvents(ctx, []domain.Event{moved})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Events)
	assert.Equal(t, 3, st.Snapshots)
}

func TestSQLiteStorage_SaveEvents_Empty(t *testing.T) {
	db := newDB(t)
	n, err := db.SaveEvents(context.Background(), nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStorage_SaveEvents_RegistersUnknownBooksInactive(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	ev := makeEvent("ev1", time.Now().UTC().Add(time.Hour), map[string][2]int{"betrivers": {-110, -110}})
	_, err := db.SaveEvents(ctx, []domain.Event{ev})
	require.NoError(t, err)

	books, err := db.Bookmakers(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "betrivers", books[0].Key)
	assert.False(t, books[0].Active)
}

func TestSQLiteStorage_UpcomingEvents_LatestSnapshot(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	soon := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	later := time.Now().UTC().Add(26 * time.Hour).Truncate(time.Second)
	past := time.Now().UTC().Add(-3 * time.Hour).Truncate(time.Second)

	_, err := db.SaveEvents(ctx, []domain.Event{
		makeEvent("later", later, map[string][2]int{"pinnacle": {-110, -110}}),
		makeEvent("soon", soon, map[string][2]int{"pinnacle": {-140, 128}}),
		makeEvent("past", past, map[string][2]int{"pinnacle": {-200, 170}}),
	})
	require.NoError(t, err)
	_, err = db.SaveEvents(ctx, []domain.Event{
		makeEvent("soon", soon, map[string][2]int{"pinnacle": {-150, 135}}),
	})
	require.NoError(t, err)

	events, err := db.UpcomingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "soon", events[0].ExternalID)
	assert.Equal(t, "later", events[1].ExternalID)
	assert.True(t, soon.Equal(events[0].CommenceTime))

	require.Len(t, events[0].Books, 1)
	m, ok := events[0].Books[0].Market("h2h")
	require.True(t, ok)
	price, ok := m.Price("Boston Celtics")
	require.True(t, ok)
	assert.Equal(t, -150, price)

	qs := events[0].QuoteSet("h2h")
	assert.Equal(t, domain.Quote{SourceID: "pinnacle", PriceA: -150, PriceB: 135}, qs["pinnacle"])
}

func TestSQLiteStorage_SaveReport_AndFilterAssessments(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	ev := makeEvent("ev1", time.Now().UTC().Add(time.Hour), map[string][2]int{"novig": {-132, 140}})
	_, err := db.SaveEvents(ctx, []domain.Event{ev})
	require.NoError(t, err)

	require.NoError(t, db.SaveReport(ctx, makeReport("run-1", ev)))

	all, total, err := db.Assessments(ctx, domain.AssessmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, all, 2)

	// Ordenadas por EV desc
	first := all[0]
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, "Miami Heat @ Boston Celtics", first.EventName)
	assert.Equal(t, domain.OutcomeA, first.Outcome)
	assert.Equal(t, "Boston Celtics", first.OutcomeName)
	assert.Equal(t, -132, first.OfferedOdds)
	assert.Equal(t, "pinnacle", first.FairSourceID)
	assert.InDelta(t, -3.65, first.ExpectedValuePer100, 1e-9)
	assert.True(t, first.HasPositiveEV)
	assert.Equal(t, domain.LineMain, first.LineClass)

	second := all[1]
	assert.Equal(t, domain.OutcomeB, second.Outcome)
	assert.Equal(t, "Miami Heat", second.OutcomeName)
	assert.Equal(t, 1, second.Divergences)

	positive, total, err := db.Assessments(ctx, domain.AssessmentFilter{PositiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, positive, 1)

	minEV := -5.0
	above, total, err := db.Assessments(ctx, domain.AssessmentFilter{MinEV: &minEV})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, above, 1)

	none, total, err := db.Assessments(ctx, domain.AssessmentFilter{SourceID: "pinnacle"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)

	paged, total, err := db.Assessments(ctx, domain.AssessmentFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, paged, 1)
	assert.Equal(t, domain.OutcomeB, paged[0].Outcome)

	st, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Assessments)
	assert.Equal(t, 1, st.PositiveEV)
}

func TestSQLiteStorage_SaveReport_Empty(t *testing.T) {
	db := newDB(t)
	assert.NoError(t, db.SaveReport(context.Background(), domain.CycleReport{RunID: "empty"}))
}

func TestSQLiteStorage_PollLogs(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, db.SavePollLog(ctx, domain.PollLog{
		RunID: "run-1", Sport: "basketball_nba", StartedAt: start.Add(-time.Minute),
		Status: domain.PollSuccess, EventsFetched: 4, Quota: domain.Quota{Remaining: 480, Used: 20, Last: 1},
	}))
	require.NoError(t, db.SavePollLog(ctx, domain.PollLog{
		RunID: "run-2", Sport: "basketball_nba", StartedAt: start,
		Duration: 1500 * time.Millisecond, Status: domain.PollError, Error: "boom",
		Quota: domain.Quota{Remaining: -1, Used: -1, Last: -1},
	}))

	logs, err := db.RecentPollLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "run-2", logs[0].RunID)
	assert.Equal(t, domain.PollError, logs[0].Status)
	assert.Equal(t, "boom", logs[0].Error)
	assert.Equal(t, 1500*time.Millisecond, logs[0].Duration)
	assert.True(t, start.Equal(logs[0].StartedAt))
	assert.Equal(t, 480, logs[1].Quota.Remaining)

	st, err := db.Stats(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.LastPoll)
	assert.Equal(t, "run-2", st.LastPoll.RunID)
}

func TestSQLiteStorage_Stats_Empty(t *testing.T) {
	db := newDB(t)
	st, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Events)
	assert.Nil(t, st.LastPoll)
}
