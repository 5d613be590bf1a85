package httpapi

import (
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
)

// Formato JSON de la API (snake_case). Los tipos de dominio no llevan tags.

type outcomeDTO struct {
	Name  string   `json:"name"`
	Price int      `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

type marketDTO struct {
	Key        string       `json:"key"`
	LastUpdate *time.Time   `json:"last_update,omitempty"`
	Outcomes   []outcomeDTO `json:"outcomes"`
}

type bookDTO struct {
	Key     string      `json:"key"`
	Title   string      `json:"title"`
	Markets []marketDTO `json:"markets"`
}

type eventDTO struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	SportTitle   string    `json:"sport_title"`
	Name         string    `json:"name"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	CommenceTime time.Time `json:"commence_time"`
	Bookmakers   []bookDTO `json:"bookmakers"`
}

type assessmentDTO struct {
	RunID                  string    `json:"run_id"`
	EventID                string    `json:"event_id"`
	EventName              string    `json:"event_name"`
	SportKey               string    `json:"sport_key"`
	CommenceTime           time.Time `json:"commence_time"`
	MarketKey              string    `json:"market_key"`
	Outcome                string    `json:"outcome"`
	OutcomeName            string    `json:"outcome_name"`
	BookmakerKey           string    `json:"bookmaker_key"`
	LineClass              string    `json:"line_class"`
	OfferedOdds            int       `json:"offered_odds"`
	OfferedProbability     float64   `json:"offered_probability"`
	FairSource             string    `json:"fair_source"`
	FairOdds               float64   `json:"fair_odds"`
	FairProbability        float64   `json:"fair_probability"`
	RecommendedOdds        float64   `json:"recommended_min_odds"`
	RecommendedProbability float64   `json:"recommended_probability"`
	HasPositiveEV          bool      `json:"has_positive_ev"`
	EVPer100               float64   `json:"ev_per_100"`
	Divergences            int       `json:"divergences"`
	CalculatedAt           time.Time `json:"calculated_at"`
}

type summaryDTO struct {
	Count      int      `json:"count"`
	PositiveEV int      `json:"positive_ev"`
	AverageEV  float64  `json:"average_ev"`
	BestEV     *float64 `json:"best_ev"`
}

type opportunityDTO struct {
	EventID        string    `json:"event_id"`
	EventName      string    `json:"event_name"`
	SportKey       string    `json:"sport_key"`
	CommenceTime   time.Time `json:"commence_time"`
	MarketKey      string    `json:"market_key"`
	Outcome        string    `json:"outcome"`
	BookmakerKey   string    `json:"bookmaker_key"`
	BookmakerTitle string    `json:"bookmaker_title"`
	Price          int       `json:"price"`
	ReferencePrice float64   `json:"reference_price"`
	Improvement    float64   `json:"improvement"`
	Description    string    `json:"description"`
}

type pollLogDTO struct {
	RunID          string    `json:"run_id"`
	Sport          string    `json:"sport"`
	StartedAt      time.Time `json:"started_at"`
	DurationMs     int64     `json:"duration_ms"`
	Status         string    `json:"status"`
	EventsFetched  int       `json:"events_fetched"`
	SnapshotsSaved int       `json:"snapshots_saved"`
	Assessments    int       `json:"assessments"`
	PositiveEV     int       `json:"positive_ev"`
	Opportunities  int       `json:"opportunities"`
	QuotaRemaining int       `json:"requests_remaining"`
	QuotaUsed      int       `json:"requests_used"`
	ResponseMs     int64     `json:"response_ms"`
	Error          string    `json:"error,omitempty"`
}

type statsDTO struct {
	Events         int         `json:"events"`
	UpcomingEvents int         `json:"upcoming_events"`
	Bookmakers     int         `json:"active_bookmakers"`
	Snapshots      int         `json:"odds_snapshots"`
	Assessments    int         `json:"ev_calculations"`
	PositiveEV     int         `json:"positive_ev"`
	LastPoll       *pollLogDTO `json:"last_poll"`
}

type bookmakerDTO struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Region string `json:"region"`
	IsP2P  bool   `json:"is_p2p"`
	Active bool   `json:"active"`
}

func toEventDTO(ev domain.Event) eventDTO {
	out := eventDTO{
		ID:           ev.ExternalID,
		SportKey:     ev.SportKey,
		SportTitle:   ev.SportTitle,
		Name:         ev.Name(),
		HomeTeam:     ev.HomeTeam,
		AwayTeam:     ev.AwayTeam,
		CommenceTime: ev.CommenceTime,
		Bookmakers:   make([]bookDTO, 0, len(ev.Books)),
	}
	for _, b := range ev.Books {
		bd := bookDTO{Key: b.Key, Title: b.Title, Markets: make([]marketDTO, 0, len(b.Markets))}
		for _, m := range b.Markets {
			md := marketDTO{Key: m.Key, Outcomes: make([]outcomeDTO, 0, len(m.Outcomes))}
			if !m.LastUpdate.IsZero() {
				lu := m.LastUpdate
				md.LastUpdate = &lu
			}
			for _, o := range m.Outcomes {
				md.Outcomes = append(md.Outcomes, outcomeDTO{Name: o.Name, Price: o.Price, Point: o.Point})
			}
			bd.Markets = append(bd.Markets, md)
		}
		out.Bookmakers = append(out.Bookmakers, bd)
	}
	return out
}

func toAssessmentDTO(a domain.StoredAssessment) assessmentDTO {
	return assessmentDTO{
		RunID:                  a.RunID,
		EventID:                a.EventID,
		EventName:              a.EventName,
		SportKey:               a.SportKey,
		CommenceTime:           a.CommenceTime,
		MarketKey:              a.MarketKey,
		Outcome:                a.Outcome.String(),
		OutcomeName:            a.OutcomeName,
		BookmakerKey:           a.SourceID,
		LineClass:              string(a.LineClass),
		OfferedOdds:            a.OfferedOdds,
		OfferedProbability:     a.OfferedProbability,
		FairSource:             a.FairSourceID,
		FairOdds:               a.FairOdds,
		FairProbability:        a.FairProbability,
		RecommendedOdds:        a.RecommendedOdds,
		RecommendedProbability: a.RecommendedProbability,
		HasPositiveEV:          a.HasPositiveEV,
		EVPer100:               a.ExpectedValuePer100,
		Divergences:            a.Divergences,
		CalculatedAt:           a.CalculatedAt,
	}
}

func toOpportunityDTO(o domain.Opportunity) opportunityDTO {
	return opportunityDTO{
		EventID:        o.EventID,
		EventName:      o.EventName,
		SportKey:       o.SportKey,
		CommenceTime:   o.CommenceTime,
		MarketKey:      o.MarketKey,
		Outcome:        o.OutcomeName,
		BookmakerKey:   o.SourceID,
		BookmakerTitle: o.SourceTitle,
		Price:          o.Price,
		ReferencePrice: o.ReferencePrice,
		Improvement:    o.Improvement,
		Description:    o.Description,
	}
}

func toPollLogDTO(l domain.PollLog) pollLogDTO {
	return pollLogDTO{
		RunID:          l.RunID,
		Sport:          l.Sport,
		StartedAt:      l.StartedAt,
		DurationMs:     l.Duration.Milliseconds(),
		Status:         string(l.Status),
		EventsFetched:  l.EventsFetched,
		SnapshotsSaved: l.SnapshotsSaved,
		Assessments:    l.Assessments,
		PositiveEV:     l.PositiveEV,
		Opportunities:  l.Opportunities,
		QuotaRemaining: l.Quota.Remaining,
		QuotaUsed:      l.Quota.Used,
		ResponseMs:     l.ResponseTime.Milliseconds(),
		Error:          l.Error,
	}
}
