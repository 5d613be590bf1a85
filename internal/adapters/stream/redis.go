package stream

// redis.go: publica el resultado de cada ciclo en Redis Streams.
//
// Streams (un mensaje por entrada, payload JSON en el campo "data"):
//   <prefix>.ev.<sport>            evaluaciones con EV positivo
//   <prefix>.opportunities.<sport> precios que mejoran la referencia
//   <prefix>.cycles                resumen de cada ciclo
// Los streams se recortan de forma aproximada a MaxLen entradas.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/redis/go-redis/v9"
)

// streamAdder es el subconjunto de *redis.Client que usa el publisher.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher implementa ports.Publisher.
type RedisPublisher struct {
	client streamAdder
	prefix string
	maxLen int64
}

// NewRedisPublisher crea un publisher sobre un cliente ya conectado.
func NewRedisPublisher(client streamAdder, prefix string, maxLen int64) *RedisPublisher {
	if prefix == "" {
		prefix = "fairline"
	}
	return &RedisPublisher{client: client, prefix: prefix, maxLen: maxLen}
}

// evMessage es el payload de una evaluación positiva.
type evMessage struct {
	RunID              string    `json:"run_id"`
	EventID            string    `json:"event_id"`
	EventName          string    `json:"event_name"`
	CommenceTime       time.Time `json:"commence_time"`
	MarketKey          string    `json:"market_key"`
	Outcome            string    `json:"outcome"`
	BookKey            string    `json:"book_key"`
	LineClass          string    `json:"line_class"`
	OfferedOdds        int       `json:"offered_odds"`
	FairSource         string    `json:"fair_source"`
	FairOdds           float64   `json:"fair_odds"`
	RecommendedMinOdds float64   `json:"recommended_min_odds"`
	EVPer100           float64   `json:"ev_per_100"`
	Divergences        int       `json:"divergences"`
	Confidence         float64   `json:"confidence"`
}

// opportunityMessage es el payload de una oportunidad.
type opportunityMessage struct {
	RunID          string  `json:"run_id"`
	EventID        string  `json:"event_id"`
	EventName      string  `json:"event_name"`
	MarketKey      string  `json:"market_key"`
	Outcome        string  `json:"outcome"`
	BookKey        string  `json:"book_key"`
	Price          int     `json:"price"`
	ReferencePrice float64 `json:"reference_price"`
	Improvement    float64 `json:"improvement"`
}

// cycleMessage es el resumen del ciclo.
type cycleMessage struct {
	RunID         string    `json:"run_id"`
	Sport         string    `json:"sport"`
	StartedAt     time.Time `json:"started_at"`
	DurationMs    int64     `json:"duration_ms"`
	Events        int       `json:"events"`
	Assessments   int       `json:"assessments"`
	PositiveEV    int       `json:"positive_ev"`
	Opportunities int       `json:"opportunities"`
	QuotaLeft     int       `json:"quota_remaining"`
}

// Publish envía las evaluaciones positivas, las oportunidades y el resumen del ciclo.
func (p *RedisPublisher) Publish(ctx context.Context, report domain.CycleReport) error {
	evStream := fmt.Sprintf("%s.ev.%s", p.prefix, report.Sport)
	oppStream := fmt.Sprintf("%s.opportunities.%s", p.prefix, report.Sport)

	for _, ev := range report.Evaluations {
		for _, a := range ev.PositiveEV() {
			msg := evMessage{
				RunID:              report.RunID,
				EventID:            ev.Event.ExternalID,
				EventName:          ev.Event.Name(),
				CommenceTime:       ev.Event.CommenceTime,
				MarketKey:          ev.MarketKey,
				Outcome:            ev.OutcomeName(a.TargetOutcome),
				BookKey:            a.TargetSourceID,
				LineClass:          string(a.LineClass),
				OfferedOdds:        a.OfferedOdds,
				FairSource:         a.BestFair.SourceID,
				FairOdds:           a.BestFair.Odds,
				RecommendedMinOdds: a.RecommendedMinimumOdds,
				EVPer100:           a.ExpectedValuePer100,
				Divergences:        len(a.Divergences),
				Confidence:         ev.Confidence,
			}
			if err := p.add(ctx, evStream, msg); err != nil {
				return fmt.Errorf("stream.Publish: ev %s/%s: %w", ev.Event.ExternalID, a.TargetSourceID, err)
			}
		}

		for _, o := range ev.Opportunities {
			msg := opportunityMessage{
				RunID:          report.RunID,
				EventID:        o.EventID,
				EventName:      o.EventName,
				MarketKey:      o.MarketKey,
				Outcome:        o.OutcomeName,
				BookKey:        o.SourceID,
				Price:          o.Price,
				ReferencePrice: o.ReferencePrice,
				Improvement:    o.Improvement,
			}
			if err := p.add(ctx, oppStream, msg); err != nil {
				return fmt.Errorf("stream.Publish: opportunity %s/%s: %w", o.EventID, o.SourceID, err)
			}
		}
	}

	n, positive, opps := report.Counts()
	summary := cycleMessage{
		RunID:         report.RunID,
		Sport:         report.Sport,
		StartedAt:     report.StartedAt,
		DurationMs:    report.Duration.Milliseconds(),
		Events:        len(report.Evaluations),
		Assessments:   n,
		PositiveEV:    positive,
		Opportunities: opps,
		QuotaLeft:     report.Quota.Remaining,
	}
	if err := p.add(ctx, p.prefix+".cycles", summary); err != nil {
		return fmt.Errorf("stream.Publish: cycle: %w", err)
	}
	return nil
}

func (p *RedisPublisher) add(ctx context.Context, stream string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": string(data)},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	return p.client.XAdd(ctx, args).Err()
}
