package domain

import "time"

// Event es un partido con las cuotas de cada casa, tal como llega del proveedor.
type Event struct {
	ExternalID   string
	SportKey     string
	SportTitle   string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
	Completed    bool
	Books        []BookOdds
}

// BookOdds son los mercados publicados por una casa para un evento.
type BookOdds struct {
	Key        string
	Title      string
	LastUpdate time.Time
	Markets    []MarketOdds
}

// MarketOdds es un mercado (h2h, spreads, totals) de una casa.
type MarketOdds struct {
	Key        string
	LastUpdate time.Time
	Outcomes   []OutcomePrice
}

// OutcomePrice es el precio americano de un outcome; Point es la línea en spreads/totals.
type OutcomePrice struct {
	Name  string
	Price int
	Point *float64
}

// Bookmaker es la ficha de una casa en el registro.
type Bookmaker struct {
	Key    string
	Title  string
	Region string
	IsP2P  bool
	Active bool
}

// Quota es el consumo de la API de cuotas reportado en las cabeceras.
type Quota struct {
	Remaining int
	Used      int
	Last      int
}

// Name devuelve "Away @ Home".
func (e Event) Name() string {
	return e.AwayTeam + " @ " + e.HomeTeam
}

// IsLive indica si el evento ya empezó.
func (e Event) IsLive(now time.Time) bool {
	return !e.CommenceTime.IsZero() && !now.Before(e.CommenceTime)
}

// Market devuelve el mercado de la casa con la key dada.
func (b BookOdds) Market(key string) (MarketOdds, bool) {
	for _, m := range b.Markets {
		if m.Key == key {
			return m, true
		}
	}
	return MarketOdds{}, false
}

// Price devuelve el precio del outcome con el nombre dado.
func (m MarketOdds) Price(name string) (int, bool) {
	for _, o := range m.Outcomes {
		if o.Name == name {
			return o.Price, true
		}
	}
	return 0, false
}

// OutcomeNames devuelve los nombres [A, B] del mercado: los del primer libro
// con exactamente dos outcomes. ok=false si ningún libro tiene el mercado binario.
func (e Event) OutcomeNames(marketKey string) (names [2]string, ok bool) {
	for _, b := range e.Books {
		m, found := b.Market(marketKey)
		if !found || len(m.Outcomes) != 2 {
			continue
		}
		return [2]string{m.Outcomes[0].Name, m.Outcomes[1].Name}, true
	}
	return names, false
}

// QuoteSet construye las cotizaciones de dos lados del mercado dado.
// Los outcomes se alinean por nombre con OutcomeNames; los libros con otro
// número de outcomes o con nombres distintos se ignoran.
func (e Event) QuoteSet(marketKey string) QuoteSet {
	names, ok := e.OutcomeNames(marketKey)
	if !ok {
		return QuoteSet{}
	}

	qs := make(QuoteSet, len(e.Books))
	for _, b := range e.Books {
		m, found := b.Market(marketKey)
		if !found || len(m.Outcomes) != 2 {
			continue
		}
		pa, okA := m.Price(names[0])
		pb, okB := m.Price(names[1])
		if !okA || !okB {
			continue
		}
		qs[b.Key] = Quote{SourceID: b.Key, PriceA: pa, PriceB: pb}
	}
	return qs
}
