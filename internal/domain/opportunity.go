package domain

// opportunity.go: oportunidades por precio de referencia.
//
// El precio de referencia de un outcome es la media aritmética de las cuotas
// americanas de las fuentes de confianza. Una fuente se marca si:
//   ambos positivos: price > ref × (1 + t)
//   ambos negativos: |price| < |ref| × (1 - t)     ej: -110 vs ref -130
// Con signos mixtos no se evalúa.

import (
	"fmt"
	"math"
	"time"
)

// Opportunity es un precio que mejora la referencia de confianza por encima del umbral.
type Opportunity struct {
	EventID        string
	EventName      string
	SportKey       string
	CommenceTime   time.Time
	MarketKey      string
	OutcomeName    string
	SourceID       string
	SourceTitle    string
	Price          int
	ReferencePrice float64
	Improvement    float64 // mejora relativa sobre la referencia (en |cuota|)
	Description    string
}

// OpportunityScan configura el agregador.
type OpportunityScan struct {
	Trusted   map[string]bool // fuentes que forman la referencia
	Exclude   map[string]bool // fuentes que nunca se marcan (ej: exchanges P2P)
	Threshold float64
}

// NewOpportunityScan arma el escaneo desde el registro de casas. La referencia la
// forman las casas activas, no P2P y de la región dada (vacía = cualquiera).
// Los exchanges P2P se excluyen siempre de los resultados.
func NewOpportunityScan(books []Bookmaker, region string, threshold float64) OpportunityScan {
	s := OpportunityScan{
		Trusted:   make(map[string]bool),
		Exclude:   make(map[string]bool),
		Threshold: threshold,
	}
	for _, b := range books {
		if b.IsP2P {
			s.Exclude[b.Key] = true
			continue
		}
		if b.Active && (region == "" || b.Region == region) {
			s.Trusted[b.Key] = true
		}
	}
	return s
}

// ReferencePrice es la media de las cuotas de las fuentes de confianza para
// (market, outcome). ok=false si ninguna fuente de confianza cotiza el outcome.
func ReferencePrice(ev Event, trusted map[string]bool, marketKey, outcomeName string) (float64, bool) {
	var sum float64
	var n int
	for _, b := range ev.Books {
		if !trusted[b.Key] {
			continue
		}
		m, ok := b.Market(marketKey)
		if !ok {
			continue
		}
		price, ok := m.Price(outcomeName)
		if !ok || price == 0 {
			continue
		}
		sum += float64(price)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Find recorre libros, mercados y outcomes en el orden de entrada y devuelve
// las oportunidades encontradas en ese mismo orden.
func (s OpportunityScan) Find(ev Event) []Opportunity {
	var opps []Opportunity
	for _, b := range ev.Books {
		if s.Exclude[b.Key] {
			continue
		}
		for _, m := range b.Markets {
			for _, o := range m.Outcomes {
				ref, ok := ReferencePrice(ev, s.Trusted, m.Key, o.Name)
				if !ok {
					continue
				}
				improvement, flagged := beatsReference(o.Price, ref, s.Threshold)
				if !flagged {
					continue
				}
				title := b.Title
				if title == "" {
					title = b.Key
				}
				opps = append(opps, Opportunity{
					EventID:        ev.ExternalID,
					EventName:      ev.Name(),
					SportKey:       ev.SportKey,
					CommenceTime:   ev.CommenceTime,
					MarketKey:      m.Key,
					OutcomeName:    o.Name,
					SourceID:       b.Key,
					SourceTitle:    b.Title,
					Price:          o.Price,
					ReferencePrice: ref,
					Improvement:    improvement,
					Description: fmt.Sprintf("%s offers %+d on %s vs reference %.2f",
						title, o.Price, o.Name, ref),
				})
			}
		}
	}
	return opps
}

// FindOpportunities es el atajo sin exclusiones.
func FindOpportunities(ev Event, trusted map[string]bool, threshold float64) []Opportunity {
	return OpportunityScan{Trusted: trusted, Threshold: threshold}.Find(ev)
}

// beatsReference aplica la regla por signo. Devuelve la mejora relativa.
func beatsReference(price int, ref, threshold float64) (float64, bool) {
	p := float64(price)
	switch {
	case p > 0 && ref > 0:
		if p > ref*(1+threshold) {
			return p/ref - 1, true
		}
	case p < 0 && ref < 0:
		if math.Abs(p) < math.Abs(ref)*(1-threshold) {
			return 1 - math.Abs(p)/math.Abs(ref), true
		}
	}
	return 0, false
}
