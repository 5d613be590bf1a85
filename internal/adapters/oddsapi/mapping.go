package oddsapi

import (
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
)

// toEvent convierte la respuesta raw en domain.Event.
// Los outcomes con precio 0 se descartan: no son convertibles.
func toEvent(r eventResponse) domain.Event {
	ev := domain.Event{
		ExternalID:   r.ID,
		SportKey:     r.SportKey,
		SportTitle:   r.SportTitle,
		HomeTeam:     r.HomeTeam,
		AwayTeam:     r.AwayTeam,
		CommenceTime: parseTime(r.CommenceTime),
		Completed:    r.Completed,
		Books:        make([]domain.BookOdds, 0, len(r.Bookmakers)),
	}

	for _, b := range r.Bookmakers {
		book := domain.BookOdds{
			Key:        b.Key,
			Title:      b.Title,
			LastUpdate: parseTime(b.LastUpdate),
			Markets:    make([]domain.MarketOdds, 0, len(b.Markets)),
		}
		for _, m := range b.Markets {
			market := domain.MarketOdds{
				Key:        m.Key,
				LastUpdate: parseTime(m.LastUpdate),
				Outcomes:   make([]domain.OutcomePrice, 0, len(m.Outcomes)),
			}
			for _, o := range m.Outcomes {
				price := int(math.Round(o.Price))
				if price == 0 {
					slog.Debug("dropping zero price",
						"event", r.ID, "bookmaker", b.Key, "market", m.Key, "outcome", o.Name)
					continue
				}
				market.Outcomes = append(market.Outcomes, domain.OutcomePrice{
					Name:  o.Name,
					Price: price,
					Point: o.Point,
				})
			}
			book.Markets = append(book.Markets, market)
		}
		ev.Books = append(ev.Books, book)
	}
	return ev
}

// parseTime acepta RFC3339; devuelve zero time si no parsea.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
