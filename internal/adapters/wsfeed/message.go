package wsfeed

import (
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
)

const messageTypeCycle = "cycle"

type cycleMessage struct {
	Type          string            `json:"type"`
	RunID         string            `json:"run_id"`
	Sport         string            `json:"sport"`
	Timestamp     time.Time         `json:"timestamp"`
	Events        int               `json:"events"`
	Assessments   int               `json:"assessments"`
	PositiveEV    int               `json:"positive_ev"`
	Opportunities int               `json:"opportunities"`
	Alerts        []alertPayload    `json:"alerts"`
	References    []opportunityLine `json:"reference_opportunities"`
}

type alertPayload struct {
	EventID     string  `json:"event_id"`
	EventName   string  `json:"event_name"`
	Outcome     string  `json:"outcome"`
	Bookmaker   string  `json:"bookmaker"`
	OfferedOdds int     `json:"offered_odds"`
	MinOdds     float64 `json:"recommended_min_odds"`
	FairOdds    float64 `json:"fair_odds"`
	FairSource  string  `json:"fair_source"`
	EVPer100    float64 `json:"ev_per_100"`
	Confidence  float64 `json:"confidence"`
}

type opportunityLine struct {
	EventID     string  `json:"event_id"`
	Outcome     string  `json:"outcome"`
	Bookmaker   string  `json:"bookmaker"`
	Price       int     `json:"price"`
	Reference   float64 `json:"reference_price"`
	Improvement float64 `json:"improvement"`
}

func newCycleMessage(r domain.CycleReport, now time.Time) cycleMessage {
	n, positive, opps := r.Counts()
	msg := cycleMessage{
		Type:          messageTypeCycle,
		RunID:         r.RunID,
		Sport:         r.Sport,
		Timestamp:     now.UTC(),
		Events:        len(r.Evaluations),
		Assessments:   n,
		PositiveEV:    positive,
		Opportunities: opps,
		Alerts:        []alertPayload{},
		References:    []opportunityLine{},
	}
	for _, ev := range r.Evaluations {
		for _, a := range ev.PositiveEV() {
			msg.Alerts = append(msg.Alerts, alertPayload{
				EventID:     ev.Event.ExternalID,
				EventName:   ev.Event.Name(),
				Outcome:     ev.OutcomeName(a.TargetOutcome),
				Bookmaker:   a.TargetSourceID,
				OfferedOdds: a.OfferedOdds,
				MinOdds:     a.RecommendedMinimumOdds,
				FairOdds:    a.BestFair.Odds,
				FairSource:  a.BestFair.SourceID,
				EVPer100:    a.ExpectedValuePer100,
				Confidence:  ev.Confidence,
			})
		}
		for _, o := range ev.Opportunities {
			msg.References = append(msg.References, opportunityLine{
				EventID:     o.EventID,
				Outcome:     o.OutcomeName,
				Bookmaker:   o.SourceID,
				Price:       o.Price,
				Reference:   o.ReferencePrice,
				Improvement: o.Improvement,
			})
		}
	}
	return msg
}
